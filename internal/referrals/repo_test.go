package referrals

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/referralz-backend/internal/users"
	dbpkg "github.com/angelmondragon/referralz-backend/pkg/db"
	"github.com/angelmondragon/referralz-backend/pkg/db/dbtest"
	"github.com/angelmondragon/referralz-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/referralz-backend/pkg/db/types"
	"github.com/angelmondragon/referralz-backend/pkg/enums"
	"github.com/angelmondragon/referralz-backend/pkg/logger"
	"github.com/angelmondragon/referralz-backend/pkg/outbox"
	"github.com/angelmondragon/referralz-backend/pkg/pagination"
)

func seedSignup(t *testing.T, conn *gorm.DB, link models.ReferralLink, createdAt time.Time, reward int64) models.ReferralEvent {
	t.Helper()
	referee := uuid.New()
	ev := models.ReferralEvent{
		ID:             uuid.New(),
		ReferralLinkID: link.ID,
		ReferrerID:     link.UserID,
		RefereeID:      &referee,
		EventType:      enums.ReferralEventSignup,
		RewardAmount:   reward,
		RewardCurrency: enums.RewardCurrencyPoints,
		Metadata: dbtypes.NewDecisionMetadata(dbtypes.DecisionRecord{
			BaseReward:         20,
			FinalReward:        reward,
			ValidationDeadline: createdAt.Add(7 * 24 * time.Hour),
		}),
		CreatedAt: createdAt,
	}
	require.NoError(t, conn.Create(&ev).Error)
	return ev
}

func TestRepositoryCreateEventMapsUniqueViolation(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	owner := dbtest.SeedUser(t, conn, 20, 0, nil)
	link := dbtest.SeedLink(t, conn, owner.ID, "dup-code")
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := seedSignup(t, conn, link, now, 20)
	exists, err := repo.SignupExists(ctx, link.ID, *first.RefereeID)
	require.NoError(t, err)
	assert.True(t, exists)

	dup := first
	dup.ID = uuid.Nil
	err = repo.CreateEvent(ctx, &dup)
	assert.ErrorIs(t, err, ErrDuplicateReferral)

	click := models.ReferralEvent{
		ReferralLinkID: link.ID,
		ReferrerID:     owner.ID,
		EventType:      enums.ReferralEventClick,
		RewardCurrency: enums.RewardCurrencyPoints,
		Metadata:       dbtypes.ReferralMetadata{Version: dbtypes.ReferralMetadataVersion},
		CreatedAt:      now,
	}
	require.NoError(t, repo.CreateEvent(ctx, &click))
	assert.NotEqual(t, uuid.Nil, click.ID)
}

func TestRepositoryIncrementLinkUsesRespectsMaxUses(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	owner := dbtest.SeedUser(t, conn, 20, 0, nil)
	link := dbtest.SeedLink(t, conn, owner.ID, "limited")
	require.NoError(t, conn.Model(&models.ReferralLink{}).Where("id = ?", link.ID).Update("max_uses", 1).Error)

	require.NoError(t, repo.IncrementLinkUses(ctx, link.ID))
	assert.ErrorIs(t, repo.IncrementLinkUses(ctx, link.ID), ErrLinkInactive)

	got, err := repo.FindLinkByCode(ctx, "limited")
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsesCount)
	assert.False(t, got.Usable(time.Now()))

	_, err = repo.FindLinkByCode(ctx, "unknown")
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestRepositoryWindowAndPendingQueries(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	owner := dbtest.SeedUser(t, conn, 20, 0, nil)
	link := dbtest.SeedLink(t, conn, owner.ID, "window")
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	old := seedSignup(t, conn, link, now.Add(-9*24*time.Hour), 20)
	older := seedSignup(t, conn, link, now.Add(-10*24*time.Hour), 20)
	recent := seedSignup(t, conn, link, now.Add(-3*time.Hour), 15)
	edge := seedSignup(t, conn, link, now.Add(-24*time.Hour), 10)

	window, err := repo.ListSignupsInWindow(ctx, owner.ID, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, recent.ID, window[0].ID)
	assert.Equal(t, edge.ID, window[1].ID)

	firstPage, err := repo.ListPendingSettlement(ctx, now.Add(-7*24*time.Hour), nil, 1)
	require.NoError(t, err)
	require.Len(t, firstPage, 1)
	assert.Equal(t, older.ID, firstPage[0].ID)

	cursor := &pagination.Cursor{CreatedAt: firstPage[0].CreatedAt, ID: firstPage[0].ID}
	secondPage, err := repo.ListPendingSettlement(ctx, now.Add(-7*24*time.Hour), cursor, 10)
	require.NoError(t, err)
	require.Len(t, secondPage, 1)
	assert.Equal(t, old.ID, secondPage[0].ID)

	meta, err := secondPage[0].Metadata.WithValidation(dbtypes.ValidationRecord{ValidatedAt: now, Reason: ReasonRefereeInactive})
	require.NoError(t, err)
	require.NoError(t, repo.MarkValidationFailed(ctx, old.ID, meta, now))
	assert.ErrorIs(t, repo.MarkSettled(ctx, old.ID, meta, now), errAlreadyTransitioned)

	remaining, err := repo.ListPendingSettlement(ctx, now.Add(-7*24*time.Hour), nil, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, older.ID, remaining[0].ID)
}

func TestRepositoryListByReferrerPages(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	owner := dbtest.SeedUser(t, conn, 20, 0, nil)
	link := dbtest.SeedLink(t, conn, owner.ID, "history")
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ev := seedSignup(t, conn, link, base.Add(time.Duration(i)*time.Hour), 20)
		ids = append(ids, ev.ID)
	}

	page, err := repo.ListByReferrer(ctx, owner.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	next, err := repo.ListByReferrer(ctx, owner.ID, &pagination.Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID}, 10)
	require.NoError(t, err)
	require.Len(t, next, 3)
	assert.Equal(t, ids[2], next[0].ID)
}

func newSQLiteService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(conn),
		Users:      users.NewRepository(conn),
		TxRunner:   dbpkg.NewFromConn(conn),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:     logg,
		Rules:      DefaultRules(),
	})
	require.NoError(t, err)
	return svc
}

func TestServiceSignupSettleAndClaimOnSQLite(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newSQLiteService(t, conn)
	ctx := context.Background()
	signupAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	referrer := dbtest.SeedUser(t, conn, 15, 0, nil)
	dbtest.SeedLink(t, conn, referrer.ID, "sqlite-code")
	activeLogin := signupAt.Add(7 * 24 * time.Hour)
	active := dbtest.SeedUser(t, conn, 0, 0, &activeLogin)
	dbtest.SeedPosts(t, conn, active.ID, 2)
	idle := dbtest.SeedUser(t, conn, 0, 10, nil)

	out, err := svc.ProcessSignup(ctx, SignupInput{LinkCode: "sqlite-code", RefereeID: active.ID, Now: signupAt})
	require.NoError(t, err)
	require.Equal(t, SignupStatusPending, out.Status)
	assert.EqualValues(t, 20, out.Event.RewardAmount)

	out, err = svc.ProcessSignup(ctx, SignupInput{LinkCode: "sqlite-code", RefereeID: active.ID, Now: signupAt.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, SignupStatusRejected, out.Status)
	assert.Equal(t, ReasonDuplicate, out.Reason)

	out, err = svc.ProcessSignup(ctx, SignupInput{LinkCode: "sqlite-code", RefereeID: idle.ID, Now: signupAt.Add(3 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, SignupStatusPending, out.Status)

	var outboxCount int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&outboxCount).Error)
	assert.EqualValues(t, 2, outboxCount)

	settleAt := signupAt.Add(8 * 24 * time.Hour)
	report, err := svc.SettlePendingRewards(ctx, settleAt)
	require.NoError(t, err)
	assert.Equal(t, SettlementReport{TotalPending: 2, Credited: 1, CreditedAmount: 20, Voided: 1}, report)

	var stored models.User
	require.NoError(t, conn.First(&stored, "id = ?", referrer.ID).Error)
	assert.EqualValues(t, 20, stored.Points)

	again, err := svc.SettlePendingRewards(ctx, settleAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, again.TotalPending)

	// the voided reward is still claimable through the direct claim path
	claim, err := svc.ClaimUnclaimedRewards(ctx, referrer.ID, settleAt.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, claim.Count)
	assert.EqualValues(t, 20, claim.Amount)

	require.NoError(t, conn.First(&stored, "id = ?", referrer.ID).Error)
	assert.EqualValues(t, 40, stored.Points)

	summary, err := svc.Summary(ctx, referrer.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Signups)
	assert.EqualValues(t, 0, summary.PendingAmount)
	assert.EqualValues(t, 40, summary.ClaimedAmount)

	list, err := svc.ListEvents(ctx, referrer.ID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.NotEmpty(t, list.Cursor)
	rest, err := svc.ListEvents(ctx, referrer.ID, pagination.Params{Limit: 1, Cursor: list.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.Cursor)
	assert.NotEqual(t, list.Items[0].ID, rest.Items[0].ID)
}
