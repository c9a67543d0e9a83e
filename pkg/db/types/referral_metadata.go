package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReferralMetadataVersion is written on every new metadata document.
const ReferralMetadataVersion = 1

var (
	ErrDecisionAlreadyRecorded   = errors.New("referral metadata: decision already recorded")
	ErrValidationAlreadyRecorded = errors.New("referral metadata: validation already recorded")
	ErrClaimAlreadyRecorded      = errors.New("referral metadata: claim already recorded")
)

// DecisionRecord is written once, when the reward is decided.
type DecisionRecord struct {
	BaseReward         int64           `json:"baseReward"`
	DecayMultiplier    decimal.Decimal `json:"decayMultiplier"`
	FinalReward        int64           `json:"finalReward"`
	ReferralCount      int             `json:"referralCount"`
	RequiredTrustScore int             `json:"requiredTrustScore"`
	ValidationDeadline time.Time       `json:"validationDeadline"`
}

// ValidationRecord is written once, when settlement evaluates the referee.
type ValidationRecord struct {
	ValidatedAt      time.Time `json:"validatedAt"`
	ValidationPassed bool      `json:"validationPassed"`
	RefereeActive    *bool     `json:"refereeActive,omitempty"`
	Reason           string    `json:"reason,omitempty"`
}

// ClaimRecord is written once, when the referrer claims the reward directly.
type ClaimRecord struct {
	ClaimedAt time.Time `json:"claimedAt"`
}

// ReferralMetadata is the jsonb document on referral_events. Each lifecycle section
// is set at most once; the sections flatten into a single JSON object.
type ReferralMetadata struct {
	Version int `json:"version"`
	*DecisionRecord
	*ValidationRecord
	*ClaimRecord
}

// NewDecisionMetadata starts a document with the decision section.
func NewDecisionMetadata(rec DecisionRecord) ReferralMetadata {
	return ReferralMetadata{Version: ReferralMetadataVersion, DecisionRecord: &rec}
}

// WithDecision returns a copy with the decision section set.
func (m ReferralMetadata) WithDecision(rec DecisionRecord) (ReferralMetadata, error) {
	if m.DecisionRecord != nil {
		return m, ErrDecisionAlreadyRecorded
	}
	m.ensureVersion()
	m.DecisionRecord = &rec
	return m, nil
}

// WithValidation returns a copy with the validation section set.
func (m ReferralMetadata) WithValidation(rec ValidationRecord) (ReferralMetadata, error) {
	if m.ValidationRecord != nil {
		return m, ErrValidationAlreadyRecorded
	}
	m.ensureVersion()
	m.ValidationRecord = &rec
	return m, nil
}

// WithClaim returns a copy with the claim section set.
func (m ReferralMetadata) WithClaim(rec ClaimRecord) (ReferralMetadata, error) {
	if m.ClaimRecord != nil {
		return m, ErrClaimAlreadyRecorded
	}
	m.ensureVersion()
	m.ClaimRecord = &rec
	return m, nil
}

// Deadline returns the validation deadline recorded at decision time, if any.
func (m ReferralMetadata) Deadline() (time.Time, bool) {
	if m.DecisionRecord == nil || m.ValidationDeadline.IsZero() {
		return time.Time{}, false
	}
	return m.ValidationDeadline, true
}

func (m *ReferralMetadata) ensureVersion() {
	if m.Version == 0 {
		m.Version = ReferralMetadataVersion
	}
}

func (m ReferralMetadata) Value() (driver.Value, error) {
	m.ensureVersion()
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("ReferralMetadata: marshal: %w", err)
	}
	return string(b), nil
}

func (m *ReferralMetadata) Scan(src any) error {
	*m = ReferralMetadata{}
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("ReferralMetadata: unsupported Scan type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	// legacy rows carry no lifecycle keys at all; decode leaves the sections nil
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("ReferralMetadata: unmarshal: %w", err)
	}
	if v, ok := probe["version"]; ok {
		if err := json.Unmarshal(v, &m.Version); err != nil {
			return fmt.Errorf("ReferralMetadata: version: %w", err)
		}
	}
	if hasAny(probe, "baseReward", "finalReward", "validationDeadline", "decayMultiplier") {
		var rec DecisionRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("ReferralMetadata: decision: %w", err)
		}
		m.DecisionRecord = &rec
	}
	if hasAny(probe, "validatedAt", "validationPassed") {
		var rec ValidationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("ReferralMetadata: validation: %w", err)
		}
		m.ValidationRecord = &rec
	}
	if hasAny(probe, "claimedAt") {
		var rec ClaimRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("ReferralMetadata: claim: %w", err)
		}
		m.ClaimRecord = &rec
	}
	return nil
}

func hasAny(m map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
