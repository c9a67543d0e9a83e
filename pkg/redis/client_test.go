package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/referralz-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	client := &Client{store: mock, now: func() time.Time { return now }}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "referrals:user:u1", 2, time.Minute)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if allowed != want || count != int64(i+1) {
			t.Fatalf("call %d: allowed=%v count=%d", i, allowed, count)
		}
	}
	if len(mock.expireCalls) != 1 || mock.expireCalls[0].ttl != time.Minute {
		t.Fatalf("expected one expire with the window ttl, got %+v", mock.expireCalls)
	}
	wantKey := fmt.Sprintf("rf:rate_limit:referrals:user:u1:%d", now.Truncate(time.Minute).Unix())
	if mock.expireCalls[0].key != wantKey {
		t.Fatalf("unexpected window key %s", mock.expireCalls[0].key)
	}

	now = now.Add(time.Minute)
	allowed, count, err := client.FixedWindowAllow(ctx, "referrals:user:u1", 2, time.Minute)
	if err != nil || !allowed || count != 1 {
		t.Fatalf("next window should reset: allowed=%v count=%d err=%v", allowed, count, err)
	}
}

func TestFixedWindowAllowErrors(t *testing.T) {
	mock := newMockCmdable()
	mock.incrErr = errors.New("READONLY")
	client := &Client{store: mock}
	if _, _, err := client.FixedWindowAllow(context.Background(), "s", 1, time.Second); err == nil {
		t.Fatal("expected incr error")
	}
	if _, _, err := client.FixedWindowAllow(context.Background(), "s", 1, 0); err == nil {
		t.Fatal("expected window validation error")
	}
}

func TestReleaseIfOwner(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	key := client.LockKey("referral_decision", "referrer-1")
	if ok, err := client.SetNX(ctx, key, "owner-a", 10*time.Second); err != nil || !ok {
		t.Fatalf("first setnx: ok=%v err=%v", ok, err)
	}
	if ok, _ := client.SetNX(ctx, key, "owner-b", 10*time.Second); ok {
		t.Fatal("second setnx should lose")
	}

	released, err := client.ReleaseIfOwner(ctx, key, "owner-b")
	if err != nil || released {
		t.Fatalf("foreign release: released=%v err=%v", released, err)
	}
	released, err = client.ReleaseIfOwner(ctx, key, "owner-a")
	if err != nil || !released {
		t.Fatalf("owner release: released=%v err=%v", released, err)
	}
	if _, held := mock.data[key]; held {
		t.Fatal("key survived owner release")
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("ping: %v", err)
	}
	if _, err := client.ReleaseIfOwner(context.Background(), "k", "o"); !errors.Is(err, errNotInitialized) {
		t.Fatalf("release: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on empty client should be a no-op: %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.LockKey("referral_decision", "abc"); got != "rf:lock:referral_decision:abc" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.LockKey("cron", " "); got != "rf:lock:cron" {
		t.Fatalf("lock key should skip blank parts, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected missing address error")
	}
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:secret@cache:6380/2",
		DB:          5,
		PoolSize:    12,
		DialTimeout: 3 * time.Second,
	})
	if err != nil {
		t.Fatalf("optionsFromConfig: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Fatalf("url values not kept: %+v", opts)
	}
	if opts.PoolSize != 12 || opts.DialTimeout != 3*time.Second {
		t.Fatalf("config defaults not applied: pool=%d dial=%s", opts.PoolSize, opts.DialTimeout)
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	incrErr     error
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	if m.incrErr != nil {
		return redis.NewIntResult(0, m.incrErr)
	}
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: ttl})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if script != releaseScript || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script call"))
	}
	if m.data[keys[0]] != fmt.Sprint(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(m.data, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}
