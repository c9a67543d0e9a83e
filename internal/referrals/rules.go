package referrals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/referralz-backend/internal/users"
	"github.com/angelmondragon/referralz-backend/pkg/config"
)

// Rules holds every tunable constant of the decision and settlement engines.
type Rules struct {
	BaseReward        int64
	Cooldown          time.Duration
	DecayWindow       time.Duration
	DecayStartCount   int
	DecayStep         decimal.Decimal
	DecayFloor        decimal.Decimal
	ValidationPeriod  time.Duration
	BaseTrustScore    int
	TrustStep         int
	TrustBucketSize   int
	ActivityWindow    time.Duration
	MinActivityPoints int64
}

// DefaultRules mirrors the defaults of config.ReferralConfig.
func DefaultRules() Rules {
	return Rules{
		BaseReward:        20,
		Cooldown:          2 * time.Hour,
		DecayWindow:       24 * time.Hour,
		DecayStartCount:   3,
		DecayStep:         decimal.RequireFromString("0.25"),
		DecayFloor:        decimal.RequireFromString("0.1"),
		ValidationPeriod:  7 * 24 * time.Hour,
		BaseTrustScore:    15,
		TrustStep:         5,
		TrustBucketSize:   5,
		ActivityWindow:    3 * 24 * time.Hour,
		MinActivityPoints: 35,
	}
}

// RulesFromConfig copies the referral section of the service config.
func RulesFromConfig(cfg config.ReferralConfig) Rules {
	return Rules{
		BaseReward:        cfg.BaseReward,
		Cooldown:          cfg.Cooldown,
		DecayWindow:       cfg.DecayWindow,
		DecayStartCount:   cfg.DecayStartCount,
		DecayStep:         cfg.DecayStep,
		DecayFloor:        cfg.DecayFloor,
		ValidationPeriod:  cfg.ValidationPeriod,
		BaseTrustScore:    cfg.BaseTrustScore,
		TrustStep:         cfg.TrustStep,
		TrustBucketSize:   cfg.TrustBucketSize,
		ActivityWindow:    cfg.ActivityWindow,
		MinActivityPoints: cfg.MinActivityPoints,
	}
}

func (r Rules) validate() error {
	switch {
	case r.BaseReward < 0:
		return fmt.Errorf("base reward must not be negative")
	case r.TrustBucketSize <= 0:
		return fmt.Errorf("trust bucket size must be positive")
	case r.DecayStep.IsNegative() || r.DecayFloor.IsNegative():
		return fmt.Errorf("decay step and floor must not be negative")
	case r.DecayWindow <= 0 || r.ValidationPeriod <= 0:
		return fmt.Errorf("decay window and validation period must be positive")
	}
	return nil
}

// RequiredTrustScore is the trust bar for a referrer with count signups in the window.
func (r Rules) RequiredTrustScore(count int) int {
	if count < 0 {
		count = 0
	}
	return r.BaseTrustScore + (count/r.TrustBucketSize)*r.TrustStep
}

// DecayMultiplier is 1 below the decay start and drops by DecayStep for every
// signup from the start onwards, never below DecayFloor.
func (r Rules) DecayMultiplier(count int) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if count < r.DecayStartCount {
		return one
	}
	excess := decimal.NewFromInt(int64(count - r.DecayStartCount + 1))
	m := one.Sub(excess.Mul(r.DecayStep))
	if m.LessThan(r.DecayFloor) {
		return r.DecayFloor
	}
	return m
}

// Reward returns floor(BaseReward * multiplier) for count signups in the window.
func (r Rules) Reward(count int) (int64, decimal.Decimal) {
	m := r.DecayMultiplier(count)
	amount := decimal.NewFromInt(r.BaseReward).Mul(m).Floor().IntPart()
	if amount < 0 {
		amount = 0
	}
	return amount, m
}

// CooldownWait reports whether newest still blocks a decision at now and, if so,
// the remaining wait rounded up to whole minutes.
func (r Rules) CooldownWait(newest, now time.Time) (int, bool) {
	cooldownMs := r.Cooldown.Milliseconds()
	elapsedMs := now.Sub(newest).Milliseconds()
	if elapsedMs >= cooldownMs {
		return 0, false
	}
	remaining := cooldownMs - elapsedMs
	return int((remaining + 59999) / 60000), true
}

// ValidationDeadline is when a signup decided at now becomes eligible for settlement.
func (r Rules) ValidationDeadline(now time.Time) time.Time {
	return now.Add(r.ValidationPeriod)
}

// RefereeVerdict applies the settlement activity check.
func (r Rules) RefereeVerdict(snap users.ActivitySnapshot, now time.Time) (recentlyActive, minimalActivity bool) {
	recentlyActive = snap.LastLoginAt != nil && now.Sub(*snap.LastLoginAt) < r.ActivityWindow
	minimalActivity = snap.PostCount > 0 || snap.Points > r.MinActivityPoints
	return recentlyActive, minimalActivity
}
