package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/referralz-backend/pkg/logger"
)

type ledgerRow struct {
	ID     int
	Amount int64
}

func openSQLite(t *testing.T) *Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(&ledgerRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewFromConn(conn)
}

func countRows(t *testing.T, c *Client) int64 {
	t.Helper()
	var n int64
	if err := c.DB().Model(&ledgerRow{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	client := openSQLite(t)
	ctx := context.Background()

	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Amount: 20}).Error
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&ledgerRow{Amount: 5}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if got := countRows(t, client); got != 1 {
		t.Fatalf("expected 1 row after rollback, got %d", got)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	client := openSQLite(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&ledgerRow{Amount: 1})
			panic("mid-transaction")
		})
	}()

	if got := countRows(t, client); got != 0 {
		t.Fatalf("expected panic rollback, got %d rows", got)
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestGormLoggerForwardsSlowQueries(t *testing.T) {
	if newGormLogger(nil, time.Second) != gormlogger.Discard {
		t.Fatal("nil logger should discard")
	}

	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	gormWriter{logg: logg}.Printf("slow sql %dms", 250)
	if !strings.Contains(buf.String(), "slow sql 250ms") {
		t.Fatalf("expected forwarded line, got %q", buf.String())
	}
}
