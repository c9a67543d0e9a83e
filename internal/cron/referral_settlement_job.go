package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/referralz-backend/internal/referrals"
	"github.com/angelmondragon/referralz-backend/pkg/logger"
)

type settlementRunner interface {
	SettlePendingRewards(ctx context.Context, now time.Time) (referrals.SettlementReport, error)
}

// ReferralSettlementJobParams wires the settlement sweep job.
type ReferralSettlementJobParams struct {
	Logger  *logger.Logger
	Service settlementRunner
}

// NewReferralSettlementJob credits or voids rewards whose validation period elapsed.
func NewReferralSettlementJob(params ReferralSettlementJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Service == nil {
		return nil, fmt.Errorf("referral service required")
	}
	return &referralSettlementJob{
		logg: params.Logger,
		svc:  params.Service,
		now:  time.Now,
	}, nil
}

type referralSettlementJob struct {
	logg *logger.Logger
	svc  settlementRunner
	now  func() time.Time
}

func (j *referralSettlementJob) Name() string { return "referral-settlement" }

func (j *referralSettlementJob) Run(ctx context.Context) error {
	report, err := j.svc.SettlePendingRewards(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("referral settlement: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"total_pending":   report.TotalPending,
		"credited":        report.Credited,
		"credited_amount": report.CreditedAmount,
		"voided":          report.Voided,
		"skipped":         report.Skipped,
		"failed":          report.Failed,
	})
	if report.Failed > 0 {
		j.logg.Warn(logCtx, "referral settlement left failed rows pending")
		return fmt.Errorf("referral settlement: %d of %d rows failed", report.Failed, report.TotalPending)
	}
	j.logg.Info(logCtx, "referral settlement job complete")
	return nil
}
