package kindauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/kindauth/model"
)

// Sentinel errors returned by Engine methods. Detail errors such as
// *LockedError and *AttemptsError unwrap to one of these.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountInactive    = errors.New("account inactive")
	ErrAccountExists      = errors.New("account already exists")
	ErrOTPInvalid         = errors.New("invalid otp code")
	ErrOTPExpired         = errors.New("otp code expired")
	ErrOTPExhausted       = errors.New("otp attempts exhausted")
	ErrOTPNotFound        = errors.New("otp challenge not found")
	ErrOTPLocked          = errors.New("otp verification locked")
	ErrResendLocked       = errors.New("otp resend locked")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	// ErrStoreUnavailable is the value the store packages wrap, so errors.Is
	// matches backend failures directly.
	ErrStoreUnavailable = model.ErrStoreUnavailable
	// ErrEngineNotReady is returned by methods on a nil or half-built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockedError reports a lockout together with the time left on it. It unwraps
// to ErrAccountLocked, ErrOTPLocked or ErrResendLocked.
type LockedError struct {
	Cause     error
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%v: retry in %s", e.Cause, e.Remaining.Round(time.Second))
}

func (e *LockedError) Unwrap() error { return e.Cause }

// AttemptsError reports a rejected credential together with the attempts left
// before the next lock. It unwraps to ErrInvalidCredentials or ErrOTPInvalid.
type AttemptsError struct {
	Cause     error
	Remaining int
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("%v: %d attempts remaining", e.Cause, e.Remaining)
}

func (e *AttemptsError) Unwrap() error { return e.Cause }

// InactiveError is returned by Login when the password is correct but the
// account has not finished activation. Deliveries lists the activation codes
// just sent.
type InactiveError struct {
	Deliveries []Delivery
}

func (e *InactiveError) Error() string {
	return fmt.Sprintf("%v: %d activation codes sent", ErrAccountInactive, len(e.Deliveries))
}

func (e *InactiveError) Unwrap() error { return ErrAccountInactive }

func newLockedError(cause error, remaining time.Duration) error {
	return &LockedError{Cause: cause, Remaining: remaining}
}

func newAttemptsError(cause error, remaining int) error {
	return &AttemptsError{Cause: cause, Remaining: remaining}
}

func newInactiveError(deliveries []Delivery) error {
	return &InactiveError{Deliveries: deliveries}
}

// LockRemaining returns the lock duration carried by err, if any.
func LockRemaining(err error) (time.Duration, bool) {
	var le *LockedError
	if errors.As(err, &le) {
		return le.Remaining, true
	}
	return 0, false
}

// AttemptsRemaining returns the attempt budget carried by err, if any.
func AttemptsRemaining(err error) (int, bool) {
	var ae *AttemptsError
	if errors.As(err, &ae) {
		return ae.Remaining, true
	}
	return 0, false
}
