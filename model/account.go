package model

import (
	"strings"
	"time"
)

// Kind partitions accounts. Email and phone are unique within a kind, not
// across kinds.
type Kind string

const (
	KindLearner    Kind = "learner"
	KindStaff      Kind = "staff"
	KindInstructor Kind = "instructor"
	KindOrg        Kind = "org"
)

// Kinds lists every supported account kind.
var Kinds = []Kind{KindLearner, KindStaff, KindInstructor, KindOrg}

// ParseKind accepts a kind name in any case.
func ParseKind(raw string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	return k, k.Valid()
}

func (k Kind) Valid() bool {
	switch k {
	case KindLearner, KindStaff, KindInstructor, KindOrg:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// LockState is one counter/lock pair on an account. A zero LockUntil means no
// lock has been set.
type LockState struct {
	Count     int
	LockUntil time.Time
}

// LockCounter names one of the counter/lock pairs on an account.
type LockCounter string

const (
	CounterLogin  LockCounter = "login"
	CounterVerify LockCounter = "verify"
	CounterResend LockCounter = "resend"
)

func (c LockCounter) Valid() bool {
	switch c {
	case CounterLogin, CounterVerify, CounterResend:
		return true
	}
	return false
}

// LockStep is one outcome applied to a counter. Threshold and Window come from
// the caller's policy; a zero value for either disables tripping.
type LockStep struct {
	Counter   LockCounter
	Failure   bool
	Threshold int
	Window    time.Duration
	Now       time.Time
}

// LockTransition is the state a LockStep left behind. Locked means an
// unexpired lock was already in place and the step was refused. Tripped means
// this failure reached the threshold and set the lock.
type LockTransition struct {
	State   LockState
	Locked  bool
	Tripped bool
}

// Account is a single login-capable identity of one kind.
type Account struct {
	ID           string
	Kind         Kind
	Email        string
	Phone        string
	PasswordHash string
	IsActive     bool

	EmailVerified bool
	PhoneVerified bool

	Login     LockState
	OTPVerify LockState
	Resend    LockState

	CreatedAt time.Time
}

// Lock returns the counter named by c, or nil for an unknown counter.
func (a *Account) Lock(c LockCounter) *LockState {
	switch c {
	case CounterLogin:
		return &a.Login
	case CounterVerify:
		return &a.OTPVerify
	case CounterResend:
		return &a.Resend
	}
	return nil
}

// HasChannel reports whether the account has a destination for ch.
func (a Account) HasChannel(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return a.Email != ""
	case ChannelPhone:
		return a.Phone != ""
	}
	return false
}

// Destination returns the address used to reach the account on ch.
func (a Account) Destination(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return a.Email
	case ChannelPhone:
		return a.Phone
	}
	return ""
}

// ChannelVerified reports whether ch has produced a verified activation code.
func (a Account) ChannelVerified(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return a.EmailVerified
	case ChannelPhone:
		return a.PhoneVerified
	}
	return false
}

// MarkVerified records a verified code on ch.
func (a *Account) MarkVerified(ch Channel) {
	switch ch {
	case ChannelEmail:
		a.EmailVerified = true
	case ChannelPhone:
		a.PhoneVerified = true
	}
}

// FullyVerified reports whether every registered channel has been verified.
func (a Account) FullyVerified() bool {
	if a.Email == "" && a.Phone == "" {
		return false
	}
	if a.Email != "" && !a.EmailVerified {
		return false
	}
	if a.Phone != "" && !a.PhoneVerified {
		return false
	}
	return true
}

// UnverifiedChannels returns the registered channels still awaiting
// activation, email first.
func (a Account) UnverifiedChannels() []Channel {
	out := make([]Channel, 0, 2)
	if a.Email != "" && !a.EmailVerified {
		out = append(out, ChannelEmail)
	}
	if a.Phone != "" && !a.PhoneVerified {
		out = append(out, ChannelPhone)
	}
	return out
}
