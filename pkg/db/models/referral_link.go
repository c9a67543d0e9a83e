package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralLink is a shareable code owned by a referrer.
type ReferralLink struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	Code      string     `gorm:"column:code;type:text;not null;uniqueIndex"`
	IsActive  bool       `gorm:"column:is_active;not null;default:true"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	MaxUses   *int       `gorm:"column:max_uses"`
	UsesCount int        `gorm:"column:uses_count;not null;default:0"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// Usable reports whether the link can still attribute a signup at now.
func (l ReferralLink) Usable(now time.Time) bool {
	if !l.IsActive {
		return false
	}
	if l.ExpiresAt != nil && !now.Before(*l.ExpiresAt) {
		return false
	}
	if l.MaxUses != nil && l.UsesCount >= *l.MaxUses {
		return false
	}
	return true
}
