package referrals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/referralz-backend/internal/users"
	"github.com/angelmondragon/referralz-backend/pkg/config"
)

func TestRulesRewardTable(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		count      int
		multiplier string
		reward     int64
	}{
		{0, "1", 20},
		{2, "1", 20},
		{3, "0.75", 15},
		{4, "0.5", 10},
		{5, "0.25", 5},
		{6, "0.1", 2},
		{40, "0.1", 2},
	}
	for _, tc := range tests {
		reward, m := rules.Reward(tc.count)
		if !m.Equal(decimal.RequireFromString(tc.multiplier)) {
			t.Fatalf("count %d: multiplier %s, want %s", tc.count, m, tc.multiplier)
		}
		if reward != tc.reward {
			t.Fatalf("count %d: reward %d, want %d", tc.count, reward, tc.reward)
		}
	}
}

func TestRulesRewardIsMonotonicAndFloored(t *testing.T) {
	rules := DefaultRules()
	floor := decimal.NewFromInt(rules.BaseReward).Mul(rules.DecayFloor).Floor().IntPart()
	prev, _ := rules.Reward(rules.DecayStartCount)
	for count := rules.DecayStartCount + 1; count < 200; count++ {
		reward, _ := rules.Reward(count)
		if reward > prev {
			t.Fatalf("reward grew at count %d: %d > %d", count, reward, prev)
		}
		if reward < floor {
			t.Fatalf("reward %d below floor %d at count %d", reward, floor, count)
		}
		if reward < 0 {
			t.Fatalf("negative reward at count %d", count)
		}
		prev = reward
	}
}

func TestRulesRequiredTrustScore(t *testing.T) {
	rules := DefaultRules()
	for count, want := range map[int]int{0: 15, 4: 15, 5: 20, 6: 20, 9: 20, 10: 25, 23: 35} {
		if got := rules.RequiredTrustScore(count); got != want {
			t.Fatalf("RequiredTrustScore(%d) = %d, want %d", count, got, want)
		}
	}
}

func TestRulesCooldownWait(t *testing.T) {
	rules := DefaultRules()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		elapsed time.Duration
		wait    int
		active  bool
	}{
		{"forty minutes ago", 40 * time.Minute, 80, true},
		{"rounds up partial minute", 40*time.Minute + 30*time.Second, 80, true},
		{"one millisecond left", 2*time.Hour - time.Millisecond, 1, true},
		{"just now", 0, 120, true},
		{"exactly at cooldown", 2 * time.Hour, 0, false},
		{"long ago", 5 * time.Hour, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wait, active := rules.CooldownWait(now.Add(-tc.elapsed), now)
			if active != tc.active || wait != tc.wait {
				t.Fatalf("CooldownWait = (%d, %v), want (%d, %v)", wait, active, tc.wait, tc.active)
			}
			if tc.active {
				elapsedMs := tc.elapsed.Milliseconds()
				want := int((7200000 - elapsedMs + 59999) / 60000)
				if wait != want {
					t.Fatalf("wait %d does not match ceil formula %d", wait, want)
				}
			}
		})
	}
}

func TestRulesRefereeVerdict(t *testing.T) {
	rules := DefaultRules()
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-24 * time.Hour)
	stale := now.Add(-10 * 24 * time.Hour)
	edge := now.Add(-72 * time.Hour)

	cases := []struct {
		name            string
		snap            users.ActivitySnapshot
		active, minimal bool
	}{
		{"active poster", users.ActivitySnapshot{LastLoginAt: &recent, PostCount: 2}, true, true},
		{"active with points", users.ActivitySnapshot{LastLoginAt: &recent, Points: 36}, true, true},
		{"points at threshold", users.ActivitySnapshot{LastLoginAt: &recent, Points: 35}, true, false},
		{"stale login", users.ActivitySnapshot{LastLoginAt: &stale, Points: 10}, false, false},
		{"login exactly three days ago", users.ActivitySnapshot{LastLoginAt: &edge, PostCount: 1}, false, true},
		{"never logged in", users.ActivitySnapshot{PostCount: 3}, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			active, minimal := rules.RefereeVerdict(tc.snap, now)
			if active != tc.active || minimal != tc.minimal {
				t.Fatalf("verdict = (%v, %v), want (%v, %v)", active, minimal, tc.active, tc.minimal)
			}
		})
	}
}

func TestRulesFromConfigMatchesDefaults(t *testing.T) {
	cfg := config.ReferralConfig{
		BaseReward:        20,
		Cooldown:          2 * time.Hour,
		DecayWindow:       24 * time.Hour,
		DecayStartCount:   3,
		DecayStep:         decimal.RequireFromString("0.25"),
		DecayFloor:        decimal.RequireFromString("0.1"),
		ValidationPeriod:  168 * time.Hour,
		BaseTrustScore:    15,
		TrustStep:         5,
		TrustBucketSize:   5,
		ActivityWindow:    72 * time.Hour,
		MinActivityPoints: 35,
	}
	got := RulesFromConfig(cfg)
	want := DefaultRules()
	if got.BaseReward != want.BaseReward || got.Cooldown != want.Cooldown || got.ValidationPeriod != want.ValidationPeriod ||
		got.TrustBucketSize != want.TrustBucketSize || !got.DecayStep.Equal(want.DecayStep) || !got.DecayFloor.Equal(want.DecayFloor) {
		t.Fatalf("rules from config %+v differ from defaults %+v", got, want)
	}
	if err := got.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	got.TrustBucketSize = 0
	if err := got.validate(); err == nil {
		t.Fatal("expected validation error for zero bucket size")
	}
}
