package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the slice of the account row the referral engine reads and credits.
// TrustScore is maintained elsewhere; Points only ever grows from here.
type User struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email       string     `gorm:"type:text;not null;uniqueIndex"`
	DisplayName string     `gorm:"column:display_name;not null"`
	TrustScore  float64    `gorm:"column:trust_score;type:numeric(10,2);not null;default:0"`
	Points      int64      `gorm:"column:points;not null;default:0"`
	LastLoginAt *time.Time `gorm:"column:last_login_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
