package enums

import "fmt"

// RewardCurrency represents the unit referral rewards are denominated in.
type RewardCurrency string

const (
	RewardCurrencyPoints RewardCurrency = "points"
)

var validRewardCurrencies = []RewardCurrency{
	RewardCurrencyPoints,
}

// String implements fmt.Stringer.
func (c RewardCurrency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c RewardCurrency) IsValid() bool {
	for _, candidate := range validRewardCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseRewardCurrency converts a raw string into a RewardCurrency.
func ParseRewardCurrency(value string) (RewardCurrency, error) {
	for _, candidate := range validRewardCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reward currency %q", value)
}
