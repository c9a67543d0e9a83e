package enums

// ValidationFailureReason explains why a pending reward failed settlement.
type ValidationFailureReason string

const (
	ValidationReasonRefereeInactive ValidationFailureReason = "referee_inactive"
)
