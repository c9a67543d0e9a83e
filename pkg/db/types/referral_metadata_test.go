package dbtypes

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestReferralMetadataRoundTripKeepsSections(t *testing.T) {
	deadline := time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC)
	meta := NewDecisionMetadata(DecisionRecord{
		BaseReward:         20,
		DecayMultiplier:    decimal.RequireFromString("0.75"),
		FinalReward:        15,
		ReferralCount:      3,
		RequiredTrustScore: 15,
		ValidationDeadline: deadline,
	})

	val, err := meta.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(val.(string)), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"version", "baseReward", "decayMultiplier", "finalReward", "referralCount", "requiredTrustScore", "validationDeadline"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("expected key %q in %v", key, decoded)
		}
	}
	if _, ok := decoded["validatedAt"]; ok {
		t.Fatalf("validation section should be absent")
	}

	var scanned ReferralMetadata
	if err := scanned.Scan([]byte(val.(string))); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if scanned.DecisionRecord == nil || scanned.FinalReward != 15 {
		t.Fatalf("unexpected decision %+v", scanned.DecisionRecord)
	}
	if !scanned.DecayMultiplier.Equal(decimal.RequireFromString("0.75")) {
		t.Fatalf("unexpected multiplier %s", scanned.DecayMultiplier)
	}
	if scanned.ValidationRecord != nil || scanned.ClaimRecord != nil {
		t.Fatalf("expected later sections to stay nil")
	}
	got, ok := scanned.Deadline()
	if !ok || !got.Equal(deadline) {
		t.Fatalf("deadline = %v, %v", got, ok)
	}
}

func TestReferralMetadataSectionsAreWriteOnce(t *testing.T) {
	meta := NewDecisionMetadata(DecisionRecord{BaseReward: 20})
	if _, err := meta.WithDecision(DecisionRecord{}); !errors.Is(err, ErrDecisionAlreadyRecorded) {
		t.Fatalf("expected decision error, got %v", err)
	}

	validated, err := meta.WithValidation(ValidationRecord{ValidatedAt: time.Now().UTC(), Reason: "referee_inactive"})
	if err != nil {
		t.Fatalf("with validation: %v", err)
	}
	if meta.ValidationRecord != nil {
		t.Fatalf("original document must not change")
	}
	if _, err := validated.WithValidation(ValidationRecord{}); !errors.Is(err, ErrValidationAlreadyRecorded) {
		t.Fatalf("expected validation error, got %v", err)
	}

	claimed, err := validated.WithClaim(ClaimRecord{ClaimedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("with claim: %v", err)
	}
	if _, err := claimed.WithClaim(ClaimRecord{}); !errors.Is(err, ErrClaimAlreadyRecorded) {
		t.Fatalf("expected claim error, got %v", err)
	}
	if claimed.DecisionRecord == nil || claimed.ValidationRecord == nil {
		t.Fatalf("earlier sections lost on merge")
	}
}

func TestReferralMetadataScanLegacyDocument(t *testing.T) {
	var meta ReferralMetadata
	if err := meta.Scan(`{"source":"import"}`); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if meta.DecisionRecord != nil {
		t.Fatalf("expected no decision section")
	}
	if _, ok := meta.Deadline(); ok {
		t.Fatalf("expected no deadline")
	}

	if err := meta.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if err := meta.Scan(42); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}
