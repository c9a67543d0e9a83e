package referrals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/referralz-backend/pkg/db"
	"github.com/angelmondragon/referralz-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/referralz-backend/pkg/db/types"
	"github.com/angelmondragon/referralz-backend/pkg/enums"
	"github.com/angelmondragon/referralz-backend/pkg/pagination"
)

const signupUniqueIndex = "ux_referral_events_link_referee_signup"

// Repository is the referral event store.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindLinkByCode(ctx context.Context, code string) (*models.ReferralLink, error)
	IncrementLinkUses(ctx context.Context, linkID uuid.UUID) error
	SignupExists(ctx context.Context, linkID, refereeID uuid.UUID) (bool, error)
	ListSignupsInWindow(ctx context.Context, referrerID uuid.UUID, from, to time.Time) ([]models.ReferralEvent, error)
	CreateEvent(ctx context.Context, event *models.ReferralEvent) error
	ListPendingSettlement(ctx context.Context, createdBefore time.Time, after *pagination.Cursor, limit int) ([]models.ReferralEvent, error)
	MarkSettled(ctx context.Context, id uuid.UUID, meta dbtypes.ReferralMetadata, validatedAt time.Time) error
	MarkValidationFailed(ctx context.Context, id uuid.UUID, meta dbtypes.ReferralMetadata, validatedAt time.Time) error
	ListClaimable(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralEvent, error)
	MarkClaimed(ctx context.Context, id uuid.UUID, meta dbtypes.ReferralMetadata) error
	ListByReferrer(ctx context.Context, referrerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ReferralEvent, error)
	Summarize(ctx context.Context, referrerID uuid.UUID) (*Summary, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a referral repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindLinkByCode(ctx context.Context, code string) (*models.ReferralLink, error) {
	var link models.ReferralLink
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

// IncrementLinkUses bumps uses_count unless max_uses is already reached.
func (r *repository) IncrementLinkUses(ctx context.Context, linkID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.ReferralLink{}).
		Where("id = ? AND (max_uses IS NULL OR uses_count < max_uses)", linkID).
		UpdateColumn("uses_count", gorm.Expr("uses_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrLinkInactive
	}
	return nil
}

func (r *repository) SignupExists(ctx context.Context, linkID, refereeID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReferralEvent{}).
		Where("referral_link_id = ? AND referee_id = ? AND event_type = ?", linkID, refereeID, enums.ReferralEventSignup).
		Count(&count).Error
	return count > 0, err
}

// ListSignupsInWindow returns the referrer's signups with created_at in [from, to], newest first.
func (r *repository) ListSignupsInWindow(ctx context.Context, referrerID uuid.UUID, from, to time.Time) ([]models.ReferralEvent, error) {
	var rows []models.ReferralEvent
	err := r.db.WithContext(ctx).
		Where("referrer_id = ? AND event_type = ?", referrerID, enums.ReferralEventSignup).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) CreateEvent(ctx context.Context, event *models.ReferralEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, signupUniqueIndex) {
			return ErrDuplicateReferral
		}
		return err
	}
	return nil
}

// ListPendingSettlement pages through unsettled signups created at or before
// createdBefore, oldest first, resuming after the given cursor.
func (r *repository) ListPendingSettlement(ctx context.Context, createdBefore time.Time, after *pagination.Cursor, limit int) ([]models.ReferralEvent, error) {
	q := r.db.WithContext(ctx).
		Where("event_type = ? AND is_reward_claimed = ? AND validated_at IS NULL", enums.ReferralEventSignup, false).
		Where("created_at <= ?", createdBefore)
	if after != nil {
		q = q.Where("(created_at > ?) OR (created_at = ? AND id > ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var rows []models.ReferralEvent
	err := q.Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) MarkSettled(ctx context.Context, id uuid.UUID, meta dbtypes.ReferralMetadata, validatedAt time.Time) error {
	return r.transition(ctx, id, true, map[string]any{
		"is_reward_claimed": true,
		"validated_at":      validatedAt,
		"metadata":          meta,
	})
}

func (r *repository) MarkValidationFailed(ctx context.Context, id uuid.UUID, meta dbtypes.ReferralMetadata, validatedAt time.Time) error {
	return r.transition(ctx, id, true, map[string]any{
		"validated_at": validatedAt,
		"metadata":     meta,
	})
}

func (r *repository) MarkClaimed(ctx context.Context, id uuid.UUID, meta dbtypes.ReferralMetadata) error {
	return r.transition(ctx, id, false, map[string]any{
		"is_reward_claimed": true,
		"metadata":          meta,
	})
}

// transition applies updates only while the row is still unclaimed (and, for
// settlement, not yet validated). Losing the race yields errAlreadyTransitioned.
func (r *repository) transition(ctx context.Context, id uuid.UUID, requireUnvalidated bool, updates map[string]any) error {
	q := r.db.WithContext(ctx).
		Model(&models.ReferralEvent{}).
		Where("id = ? AND is_reward_claimed = ?", id, false)
	if requireUnvalidated {
		q = q.Where("validated_at IS NULL")
	}
	res := q.UpdateColumns(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errAlreadyTransitioned
	}
	return nil
}

// ListClaimable locks every unclaimed positive reward of the referrer.
func (r *repository) ListClaimable(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralEvent, error) {
	q := r.db.WithContext(ctx).
		Where("referrer_id = ? AND reward_amount > 0 AND is_reward_claimed = ?", referrerID, false)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []models.ReferralEvent
	err := q.Order("created_at ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListByReferrer(ctx context.Context, referrerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ReferralEvent, error) {
	q := r.db.WithContext(ctx).Where("referrer_id = ?", referrerID)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.ReferralEvent
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) Summarize(ctx context.Context, referrerID uuid.UUID) (*Summary, error) {
	var out Summary
	err := r.db.WithContext(ctx).
		Model(&models.ReferralEvent{}).
		Select(`
COALESCE(SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END), 0) AS clicks,
COALESCE(SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END), 0) AS signups,
COALESCE(SUM(CASE WHEN event_type = ? AND is_reward_claimed = ? AND validated_at IS NULL THEN reward_amount ELSE 0 END), 0) AS pending_amount,
COALESCE(SUM(CASE WHEN is_reward_claimed = ? THEN reward_amount ELSE 0 END), 0) AS claimed_amount,
COALESCE(SUM(CASE WHEN event_type = ? AND is_reward_claimed = ? AND validated_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS voided`,
			enums.ReferralEventClick,
			enums.ReferralEventSignup,
			enums.ReferralEventSignup, false,
			true,
			enums.ReferralEventSignup, false,
		).
		Where("referrer_id = ?", referrerID).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	out.ReferrerID = referrerID
	return &out, nil
}
