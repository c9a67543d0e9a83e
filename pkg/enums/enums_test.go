package enums

import "testing"

func TestParseReferralEventType(t *testing.T) {
	got, err := ParseReferralEventType("signup")
	if err != nil || got != ReferralEventSignup {
		t.Fatalf("expected signup, got %q err=%v", got, err)
	}
	if _, err := ParseReferralEventType("reward"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
	if ReferralEventType("bogus").IsValid() {
		t.Fatal("bogus type should be invalid")
	}
}

func TestOutboxEnums(t *testing.T) {
	for _, e := range []OutboxEventType{
		EventReferralRewardPending,
		EventReferralRewardSettled,
		EventReferralRewardVoided,
		EventReferralRewardsClaimed,
	} {
		if !e.IsValid() {
			t.Fatalf("expected %s to be valid", e)
		}
	}
	if _, err := ParseOutboxAggregateType("vendor_order"); err == nil {
		t.Fatal("expected unknown aggregate to fail")
	}
	if c, err := ParseRewardCurrency("points"); err != nil || c != RewardCurrencyPoints {
		t.Fatalf("expected points currency, got %q err=%v", c, err)
	}
}
