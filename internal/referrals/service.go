package referrals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/referralz-backend/internal/users"
	"github.com/angelmondragon/referralz-backend/pkg/db/models"
	"github.com/angelmondragon/referralz-backend/pkg/logger"
	"github.com/angelmondragon/referralz-backend/pkg/metrics"
	"github.com/angelmondragon/referralz-backend/pkg/outbox"
	"github.com/angelmondragon/referralz-backend/pkg/pagination"
)

const defaultSettlementBatchSize = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// UserStore is the trust and points collaborator.
type UserStore interface {
	TrustScore(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, error)
	ActivitySnapshot(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*users.ActivitySnapshot, error)
	CreditPoints(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int64) error
}

// Service is the referral reward engine.
type Service interface {
	ProcessSignup(ctx context.Context, input SignupInput) (*SignupOutcome, error)
	DecideSignupReward(ctx context.Context, input DecisionInput) (*models.ReferralEvent, error)
	RecordClick(ctx context.Context, code string, now time.Time) (*models.ReferralEvent, error)
	SettlePendingRewards(ctx context.Context, now time.Time) (SettlementReport, error)
	ClaimUnclaimedRewards(ctx context.Context, referrerID uuid.UUID, now time.Time) (*ClaimResult, error)
	ListEvents(ctx context.Context, referrerID uuid.UUID, params pagination.Params) (*EventList, error)
	Summary(ctx context.Context, referrerID uuid.UUID) (*Summary, error)
}

// ServiceParams wires the referral service. Lock and Metrics are optional.
type ServiceParams struct {
	Repository          Repository
	Users               UserStore
	TxRunner            txRunner
	Outbox              outboxPublisher
	Lock                DecisionLock
	Logger              *logger.Logger
	Metrics             *metrics.ReferralMetrics
	Rules               Rules
	SettlementBatchSize int
}

type service struct {
	repo      Repository
	users     UserStore
	tx        txRunner
	outbox    outboxPublisher
	lock      DecisionLock
	logg      *logger.Logger
	metrics   *metrics.ReferralMetrics
	rules     Rules
	batchSize int
}

// NewService builds the referral service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("referral repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user store required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := params.Rules.validate(); err != nil {
		return nil, fmt.Errorf("referral rules: %w", err)
	}
	lock := params.Lock
	if lock == nil {
		lock = noopDecisionLock{}
	}
	batch := params.SettlementBatchSize
	if batch <= 0 {
		batch = defaultSettlementBatchSize
	}
	return &service{
		repo:      params.Repository,
		users:     params.Users,
		tx:        params.TxRunner,
		outbox:    params.Outbox,
		lock:      lock,
		logg:      params.Logger,
		metrics:   params.Metrics,
		rules:     params.Rules,
		batchSize: batch,
	}, nil
}

func normalizeNow(now time.Time) time.Time {
	if now.IsZero() {
		return time.Now().UTC()
	}
	return now.UTC()
}
