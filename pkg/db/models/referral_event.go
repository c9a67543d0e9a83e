package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/referralz-backend/pkg/db/types"
	"github.com/angelmondragon/referralz-backend/pkg/enums"
)

// ReferralEvent is one click or signup attributed to a referral link. Rows are
// append-only apart from the claim flag, validated_at and metadata merges.
type ReferralEvent struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferralLinkID  uuid.UUID                `gorm:"column:referral_link_id;type:uuid;not null"`
	ReferrerID      uuid.UUID                `gorm:"column:referrer_id;type:uuid;not null"`
	RefereeID       *uuid.UUID               `gorm:"column:referee_id;type:uuid"`
	EventType       enums.ReferralEventType  `gorm:"column:event_type;type:referral_event_type_enum;not null"`
	RewardAmount    int64                    `gorm:"column:reward_amount;not null;default:0"`
	RewardCurrency  enums.RewardCurrency     `gorm:"column:reward_currency;type:text;not null;default:'points'"`
	IsRewardClaimed bool                     `gorm:"column:is_reward_claimed;not null;default:false"`
	Metadata        dbtypes.ReferralMetadata `gorm:"column:metadata;type:jsonb;not null"`
	ValidatedAt     *time.Time               `gorm:"column:validated_at"`
	CreatedAt       time.Time                `gorm:"column:created_at;not null"`
}
