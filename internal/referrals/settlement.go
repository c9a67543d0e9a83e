package referrals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/referralz-backend/internal/users"
	"github.com/angelmondragon/referralz-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/referralz-backend/pkg/db/types"
	"github.com/angelmondragon/referralz-backend/pkg/enums"
	"github.com/angelmondragon/referralz-backend/pkg/outbox"
	"github.com/angelmondragon/referralz-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/referralz-backend/pkg/pagination"
)

// ReasonRefereeInactive is recorded on rewards voided by the activity check.
const ReasonRefereeInactive = "referee_inactive"

type settleResult string

const (
	settleSkipped  settleResult = "skipped"
	settleCredited settleResult = "credited"
	settleVoided   settleResult = "voided"
)

// SettlePendingRewards sweeps signup rewards whose validation period has elapsed.
// Row failures are counted in the report and never abort the sweep; only a
// failure to page through pending rows is returned as an error.
func (s *service) SettlePendingRewards(ctx context.Context, now time.Time) (SettlementReport, error) {
	now = normalizeNow(now)
	cutoff := now.Add(-s.rules.ValidationPeriod)

	var (
		report SettlementReport
		rowErr error
		cursor *pagination.Cursor
	)
	for {
		rows, err := s.repo.ListPendingSettlement(ctx, cutoff, cursor, s.batchSize)
		if err != nil {
			s.observeSettlement(ctx, report, rowErr)
			return report, fmt.Errorf("list pending referral rewards: %w", err)
		}
		report.TotalPending += len(rows)

		for _, row := range rows {
			result, err := s.settleOne(ctx, row, now)
			if err != nil {
				report.Failed++
				rowErr = multierr.Append(rowErr, fmt.Errorf("referral event %s: %w", row.ID, err))
				continue
			}
			s.logg.Debug(s.logg.WithField(s.logg.WithReferralEventID(ctx, row.ID.String()), "result", string(result)), "referral settlement row")
			switch result {
			case settleCredited:
				report.Credited++
				report.CreditedAmount += row.RewardAmount
			case settleVoided:
				report.Voided++
			default:
				report.Skipped++
			}
		}

		if len(rows) < s.batchSize {
			break
		}
		next := eventPosition(rows[len(rows)-1])
		cursor = &next
	}

	s.observeSettlement(ctx, report, rowErr)
	return report, nil
}

func (s *service) observeSettlement(ctx context.Context, report SettlementReport, rowErr error) {
	s.metrics.ObserveSettlement(report.Credited, report.Voided, report.Failed)
	s.metrics.AddCreditedPoints("settlement", report.CreditedAmount)

	ctx = s.logg.WithFields(ctx, map[string]any{
		"total_pending":   report.TotalPending,
		"credited":        report.Credited,
		"credited_amount": report.CreditedAmount,
		"voided":          report.Voided,
		"skipped":         report.Skipped,
		"failed":          report.Failed,
	})
	if rowErr != nil {
		s.logg.Error(ctx, "referral settlement finished with failures", rowErr)
		return
	}
	s.logg.Info(ctx, "referral settlement finished")
}

func (s *service) settleOne(ctx context.Context, row models.ReferralEvent, now time.Time) (settleResult, error) {
	if row.RefereeID == nil {
		return settleSkipped, nil
	}
	if deadline, ok := row.Metadata.Deadline(); ok && deadline.After(now) {
		return settleSkipped, nil
	}
	refereeID := *row.RefereeID

	result := settleSkipped
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		snap, err := s.users.ActivitySnapshot(ctx, tx, refereeID)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				return nil
			}
			return fmt.Errorf("referee activity: %w", err)
		}

		repo := s.repo.WithTx(tx)
		recentlyActive, minimalActivity := s.rules.RefereeVerdict(*snap, now)
		if recentlyActive && minimalActivity {
			active := true
			meta, err := row.Metadata.WithValidation(dbtypes.ValidationRecord{
				ValidatedAt:      now,
				ValidationPassed: true,
				RefereeActive:    &active,
			})
			if err != nil {
				return err
			}
			if err := repo.MarkSettled(ctx, row.ID, meta, now); err != nil {
				return err
			}
			if err := s.users.CreditPoints(ctx, tx, row.ReferrerID, row.RewardAmount); err != nil {
				return fmt.Errorf("credit referrer: %w", err)
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReferralRewardSettled,
				AggregateType: enums.AggregateReferralEvent,
				AggregateID:   row.ID,
				Actor:         &outbox.ActorRef{Source: "settlement"},
				OccurredAt:    now,
				Data: payloads.ReferralRewardSettledEvent{
					ReferralEventID: row.ID,
					ReferrerID:      row.ReferrerID,
					RefereeID:       refereeID,
					RewardAmount:    row.RewardAmount,
					ValidatedAt:     now,
				},
			}); err != nil {
				return err
			}
			result = settleCredited
			return nil
		}

		meta, err := row.Metadata.WithValidation(dbtypes.ValidationRecord{
			ValidatedAt:      now,
			ValidationPassed: false,
			Reason:           ReasonRefereeInactive,
		})
		if err != nil {
			return err
		}
		if err := repo.MarkValidationFailed(ctx, row.ID, meta, now); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReferralRewardVoided,
			AggregateType: enums.AggregateReferralEvent,
			AggregateID:   row.ID,
			Actor:         &outbox.ActorRef{Source: "settlement"},
			OccurredAt:    now,
			Data: payloads.ReferralRewardVoidedEvent{
				ReferralEventID: row.ID,
				ReferrerID:      row.ReferrerID,
				RefereeID:       refereeID,
				RewardAmount:    row.RewardAmount,
				Reason:          ReasonRefereeInactive,
				ValidatedAt:     now,
			},
		}); err != nil {
			return err
		}
		result = settleVoided
		return nil
	})
	if errors.Is(err, errAlreadyTransitioned) {
		return settleSkipped, nil
	}
	if err != nil {
		return settleSkipped, err
	}
	return result, nil
}
