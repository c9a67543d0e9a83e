package referrals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/referralz-backend/pkg/db/models"
)

// DecisionInput triggers a reward decision for one referred signup.
type DecisionInput struct {
	ReferrerID uuid.UUID
	RefereeID  uuid.UUID
	LinkID     uuid.UUID
	Now        time.Time
}

// Decision is the computed outcome before the event is written.
type Decision struct {
	ReferralCount      int
	RequiredTrustScore int
	TrustScore         float64
	Multiplier         decimal.Decimal
	Reward             int64
	ValidationDeadline time.Time
}

// SignupInput is a referee completing signup through a referral code.
type SignupInput struct {
	LinkCode  string
	RefereeID uuid.UUID
	Now       time.Time
}

// SignupStatus is the reward outcome of a signup. The signup itself always stands.
type SignupStatus string

const (
	SignupStatusPending  SignupStatus = "pending"
	SignupStatusRejected SignupStatus = "rejected"
	SignupStatusSkipped  SignupStatus = "skipped"
)

// SignupOutcome reports what happened to the referrer's reward.
type SignupOutcome struct {
	Status    SignupStatus
	Event     *models.ReferralEvent
	Rejection error
	Reason    string
}

// SettlementReport aggregates one settlement sweep.
type SettlementReport struct {
	TotalPending   int   `json:"total_pending"`
	Credited       int   `json:"credited"`
	CreditedAmount int64 `json:"credited_amount"`
	Voided         int   `json:"voided"`
	Skipped        int   `json:"skipped"`
	Failed         int   `json:"failed"`
}

// ClaimResult is returned by the bulk claim path.
type ClaimResult struct {
	Amount   int64       `json:"amount"`
	Count    int         `json:"count"`
	EventIDs []uuid.UUID `json:"event_ids"`
}

// EventList is one page of a referrer's history.
type EventList struct {
	Items  []models.ReferralEvent
	Cursor string
}

// Summary aggregates a referrer's events.
type Summary struct {
	ReferrerID    uuid.UUID `json:"referrer_id"`
	Clicks        int64     `json:"clicks"`
	Signups       int64     `json:"signups"`
	PendingAmount int64     `json:"pending_amount"`
	ClaimedAmount int64     `json:"claimed_amount"`
	Voided        int64     `json:"voided"`
}
