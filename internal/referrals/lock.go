package referrals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/referralz-backend/pkg/redis"
)

const (
	decisionLockScope      = "referral_decision"
	defaultDecisionLockTTL = 10 * time.Second
)

// DecisionLock serializes reward decisions per referrer. Acquire returns
// acquired=false when another decision holds the lock, and an error when the
// lock backend itself is unreachable.
type DecisionLock interface {
	Acquire(ctx context.Context, referrerID uuid.UUID) (release func(), acquired bool, err error)
}

// RedisDecisionLock implements DecisionLock with SETNX + TTL and an owner token.
type RedisDecisionLock struct {
	store redis.LockStore
	ttl   time.Duration
}

// NewRedisDecisionLock constructs the Redis-backed decision lock.
func NewRedisDecisionLock(store redis.LockStore, ttl time.Duration) (*RedisDecisionLock, error) {
	if store == nil {
		return nil, errors.New("redis store required for decision lock")
	}
	if ttl <= 0 {
		ttl = defaultDecisionLockTTL
	}
	return &RedisDecisionLock{store: store, ttl: ttl}, nil
}

func (l *RedisDecisionLock) Acquire(ctx context.Context, referrerID uuid.UUID) (func(), bool, error) {
	key := l.store.LockKey(decisionLockScope, referrerID.String())
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return func() {}, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return func() {}, false, nil
	}
	release := func() {
		// detached from the request so a canceled caller still frees the key
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_, _ = l.store.ReleaseIfOwner(relCtx, key, owner)
	}
	return release, true, nil
}

type noopDecisionLock struct{}

func (noopDecisionLock) Acquire(context.Context, uuid.UUID) (func(), bool, error) {
	return func() {}, true, nil
}
