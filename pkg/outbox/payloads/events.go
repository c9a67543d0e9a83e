package payloads

import (
	"time"

	"github.com/google/uuid"
)

// ReferralRewardPendingEvent is emitted when a signup reward is decided and parked
// until its validation deadline.
type ReferralRewardPendingEvent struct {
	ReferralEventID    uuid.UUID `json:"referralEventId"`
	ReferralLinkID     uuid.UUID `json:"referralLinkId"`
	ReferrerID         uuid.UUID `json:"referrerId"`
	RefereeID          uuid.UUID `json:"refereeId"`
	RewardAmount       int64     `json:"rewardAmount"`
	RewardCurrency     string    `json:"rewardCurrency"`
	ReferralCount      int       `json:"referralCount"`
	ValidationDeadline time.Time `json:"validationDeadline"`
}

// ReferralRewardSettledEvent is emitted when settlement credits a pending reward.
type ReferralRewardSettledEvent struct {
	ReferralEventID uuid.UUID `json:"referralEventId"`
	ReferrerID      uuid.UUID `json:"referrerId"`
	RefereeID       uuid.UUID `json:"refereeId"`
	RewardAmount    int64     `json:"rewardAmount"`
	ValidatedAt     time.Time `json:"validatedAt"`
}

// ReferralRewardVoidedEvent is emitted when the referee failed the activity check.
type ReferralRewardVoidedEvent struct {
	ReferralEventID uuid.UUID `json:"referralEventId"`
	ReferrerID      uuid.UUID `json:"referrerId"`
	RefereeID       uuid.UUID `json:"refereeId"`
	RewardAmount    int64     `json:"rewardAmount"`
	Reason          string    `json:"reason"`
	ValidatedAt     time.Time `json:"validatedAt"`
}

// ReferralRewardsClaimedEvent is emitted once per successful claim call.
type ReferralRewardsClaimedEvent struct {
	ReferrerID       uuid.UUID   `json:"referrerId"`
	Amount           int64       `json:"amount"`
	Count            int         `json:"count"`
	ReferralEventIDs []uuid.UUID `json:"referralEventIds"`
	ClaimedAt        time.Time   `json:"claimedAt"`
}
