package referrals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/referralz-backend/pkg/db/types"
	"github.com/angelmondragon/referralz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/referralz-backend/pkg/errors"
	"github.com/angelmondragon/referralz-backend/pkg/outbox"
	"github.com/angelmondragon/referralz-backend/pkg/outbox/payloads"
)

// ClaimUnclaimedRewards credits every unclaimed positive reward of the referrer
// in one transaction. It does not consult settlement: pending and voided
// rewards are claimed alike.
func (s *service) ClaimUnclaimedRewards(ctx context.Context, referrerID uuid.UUID, now time.Time) (*ClaimResult, error) {
	if referrerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	now = normalizeNow(now)
	ctx = s.logg.WithReferrerID(ctx, referrerID.String())

	var result *ClaimResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res := &ClaimResult{EventIDs: []uuid.UUID{}}
		repo := s.repo.WithTx(tx)

		rows, err := repo.ListClaimable(ctx, referrerID)
		if err != nil {
			return fmt.Errorf("list claimable rewards: %w", err)
		}
		for _, row := range rows {
			meta, err := row.Metadata.WithClaim(dbtypes.ClaimRecord{ClaimedAt: now})
			if err != nil {
				return fmt.Errorf("referral event %s: %w", row.ID, err)
			}
			if err := repo.MarkClaimed(ctx, row.ID, meta); err != nil {
				if errors.Is(err, errAlreadyTransitioned) {
					continue
				}
				return err
			}
			res.Amount += row.RewardAmount
			res.Count++
			res.EventIDs = append(res.EventIDs, row.ID)
		}
		if res.Count == 0 {
			result = res
			return nil
		}

		if err := s.users.CreditPoints(ctx, tx, referrerID, res.Amount); err != nil {
			return fmt.Errorf("credit referrer: %w", err)
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReferralRewardsClaimed,
			AggregateType: enums.AggregateUser,
			AggregateID:   referrerID,
			Actor:         &outbox.ActorRef{UserID: referrerID, Source: "claim"},
			OccurredAt:    now,
			Data: payloads.ReferralRewardsClaimedEvent{
				ReferrerID:       referrerID,
				Amount:           res.Amount,
				Count:            res.Count,
				ReferralEventIDs: res.EventIDs,
				ClaimedAt:        now,
			},
		}); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		s.logg.Error(ctx, "referral claim failed", err)
		return nil, err
	}

	s.metrics.AddCreditedPoints("claim", result.Amount)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"amount": result.Amount, "count": result.Count}), "referral rewards claimed")
	return result, nil
}
