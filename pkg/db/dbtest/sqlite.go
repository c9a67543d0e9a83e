// Package dbtest opens throwaway sqlite databases shaped like the Postgres schema.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/referralz-backend/pkg/db/models"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  trust_score REAL NOT NULL DEFAULT 0,
  points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS posts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  body TEXT NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS referral_links (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  code TEXT NOT NULL UNIQUE,
  is_active INTEGER NOT NULL DEFAULT 1,
  expires_at DATETIME,
  max_uses INTEGER,
  uses_count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS referral_events (
  id TEXT PRIMARY KEY,
  referral_link_id TEXT NOT NULL,
  referrer_id TEXT NOT NULL,
  referee_id TEXT,
  event_type TEXT NOT NULL,
  reward_amount INTEGER NOT NULL DEFAULT 0 CHECK (reward_amount >= 0),
  reward_currency TEXT NOT NULL DEFAULT 'points',
  is_reward_claimed INTEGER NOT NULL DEFAULT 0,
  metadata TEXT NOT NULL DEFAULT '{}',
  validated_at DATETIME,
  created_at DATETIME NOT NULL
);`, `
CREATE UNIQUE INDEX IF NOT EXISTS ux_referral_events_link_referee_signup
  ON referral_events (referral_link_id, referee_id, event_type)
  WHERE event_type = 'signup';`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`, `
CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`}

// Open returns an isolated in-memory database with every table created.
// The pool is pinned to one connection, so callers must not touch the
// root handle while a transaction is open.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

// SeedUser inserts a user with the supplied trust score and points.
func SeedUser(t testing.TB, conn *gorm.DB, trust float64, points int64, lastLogin *time.Time) models.User {
	t.Helper()
	id := uuid.New()
	user := models.User{
		ID:          id,
		Email:       id.String() + "@example.test",
		DisplayName: "user-" + id.String()[:8],
		TrustScore:  trust,
		Points:      points,
		LastLoginAt: lastLogin,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedLink inserts an active referral link owned by userID.
func SeedLink(t testing.TB, conn *gorm.DB, userID uuid.UUID, code string) models.ReferralLink {
	t.Helper()
	link := models.ReferralLink{
		ID:       uuid.New(),
		UserID:   userID,
		Code:     code,
		IsActive: true,
	}
	if err := conn.Create(&link).Error; err != nil {
		t.Fatalf("seed link: %v", err)
	}
	return link
}

// SeedPosts inserts n posts for userID.
func SeedPosts(t testing.TB, conn *gorm.DB, userID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		post := models.Post{ID: uuid.New(), UserID: userID, Body: fmt.Sprintf("post %d", i)}
		if err := conn.Create(&post).Error; err != nil {
			t.Fatalf("seed post: %v", err)
		}
	}
}
