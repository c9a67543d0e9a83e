package referrals

import (
	"errors"
	"fmt"

	pkgerrors "github.com/angelmondragon/referralz-backend/pkg/errors"
)

var (
	// ErrDuplicateReferral means the (link, referee) pair already produced a signup event.
	ErrDuplicateReferral = errors.New("referral already recorded for this link and referee")
	ErrLinkNotFound      = errors.New("referral link not found")
	ErrLinkInactive      = errors.New("referral link is not usable")
	ErrSelfReferral      = errors.New("referrer cannot refer themselves")

	errAlreadyTransitioned = errors.New("referral event already transitioned")
)

// CooldownActiveError rejects a decision made too soon after the referrer's last signup.
type CooldownActiveError struct {
	WaitMinutes int
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("referral cooldown active: wait %d minutes", e.WaitMinutes)
}

// InsufficientTrustError rejects a referrer below the trust bar for their recent volume.
type InsufficientTrustError struct {
	Required int
	Current  float64
}

func (e *InsufficientTrustError) Error() string {
	return fmt.Sprintf("insufficient trust score: required %d, current %g", e.Required, e.Current)
}

// RepositoryUnavailableError marks an infrastructure read failure during a decision.
// Signup handling treats it as "no reward" rather than a failed signup.
type RepositoryUnavailableError struct {
	Op  string
	Err error
}

func (e *RepositoryUnavailableError) Error() string {
	return fmt.Sprintf("referral repository unavailable (%s): %v", e.Op, e.Err)
}

func (e *RepositoryUnavailableError) Unwrap() error {
	return e.Err
}

// IsRejection reports whether err is one of the terminal decision rejections.
func IsRejection(err error) bool {
	var cooldown *CooldownActiveError
	var trust *InsufficientTrustError
	return errors.Is(err, ErrDuplicateReferral) || errors.As(err, &cooldown) || errors.As(err, &trust)
}

// ToAPIError maps referral errors onto the shared error codes with
// structured details the client can render.
func ToAPIError(err error) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}

	var cooldown *CooldownActiveError
	var trust *InsufficientTrustError
	var unavailable *RepositoryUnavailableError
	switch {
	case errors.Is(err, ErrDuplicateReferral):
		return pkgerrors.Wrap(pkgerrors.CodeDuplicateReferral, err, "referral already processed")
	case errors.As(err, &cooldown):
		return pkgerrors.Wrap(pkgerrors.CodeCooldownActive, err, "referral cooldown active").
			WithDetails(map[string]any{"wait_minutes": cooldown.WaitMinutes})
	case errors.As(err, &trust):
		return pkgerrors.Wrap(pkgerrors.CodeInsufficientTrust, err, "insufficient trust score").
			WithDetails(map[string]any{"required": trust.Required, "current": trust.Current})
	case errors.As(err, &unavailable):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "referral storage unavailable").
			WithDetails(map[string]any{"op": unavailable.Op})
	case errors.Is(err, ErrLinkNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "referral link not found")
	case errors.Is(err, ErrLinkInactive):
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "referral link is not usable")
	case errors.Is(err, ErrSelfReferral):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "self referral is not allowed")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "referral operation failed")
	}
}
