package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/referralz-backend/pkg/db/models"
)

// ErrUserNotFound is returned when no user row matches the id.
var ErrUserNotFound = errors.New("user not found")

// ActivitySnapshot is what settlement needs to judge a referred user.
type ActivitySnapshot struct {
	UserID      uuid.UUID
	LastLoginAt *time.Time
	Points      int64
	PostCount   int64
}

// Repository exposes the trust and points reads/writes used by referrals.
// Every method takes an optional tx; nil runs on the root connection.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.conn(ctx, tx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// TrustScore reads the reputation score maintained outside this service.
func (r *Repository) TrustScore(ctx context.Context, tx *gorm.DB, id uuid.UUID) (float64, error) {
	var rows []struct {
		TrustScore float64
	}
	err := r.conn(ctx, tx).
		Model(&models.User{}).
		Select("trust_score").
		Where("id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, ErrUserNotFound
	}
	return rows[0].TrustScore, nil
}

// ActivitySnapshot returns last login, points and post count for a user.
func (r *Repository) ActivitySnapshot(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*ActivitySnapshot, error) {
	user, err := r.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	var posts int64
	if err := r.conn(ctx, tx).Model(&models.Post{}).Where("user_id = ?", id).Count(&posts).Error; err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	return &ActivitySnapshot{
		UserID:      user.ID,
		LastLoginAt: user.LastLoginAt,
		Points:      user.Points,
		PostCount:   posts,
	}, nil
}

// CreditPoints adds amount to the user's balance. Only increments are allowed.
func (r *Repository) CreditPoints(ctx context.Context, tx *gorm.DB, id uuid.UUID, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit amount must not be negative: %d", amount)
	}
	if amount == 0 {
		return nil
	}
	res := r.conn(ctx, tx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("points", gorm.Expr("points + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
