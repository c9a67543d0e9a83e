package enums

import "fmt"

// ReferralEventType maps to the referral_event_type_enum enum in Postgres.
type ReferralEventType string

const (
	ReferralEventClick  ReferralEventType = "click"
	ReferralEventSignup ReferralEventType = "signup"
)

var validReferralEventTypes = []ReferralEventType{
	ReferralEventClick,
	ReferralEventSignup,
}

// IsValid reports whether the value matches the canonical referral event enum.
func (t ReferralEventType) IsValid() bool {
	for _, candidate := range validReferralEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseReferralEventType converts raw input into ReferralEventType.
func ParseReferralEventType(value string) (ReferralEventType, error) {
	for _, candidate := range validReferralEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid referral event type %q", value)
}
