package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Channel is the delivery path of a one-time passcode.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelPhone
}

func (c Channel) String() string { return string(c) }

// Purpose scopes a challenge. Codes issued for one purpose never verify
// another.
type Purpose string

const (
	PurposeActivation    Purpose = "activation"
	PurposePasswordReset Purpose = "password_reset"
	PurposeContactChange Purpose = "contact_change"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeActivation, PurposePasswordReset, PurposeContactChange:
		return true
	}
	return false
}

func (p Purpose) String() string { return string(p) }

// ChallengeKey identifies the single live challenge slot.
type ChallengeKey struct {
	AccountID string
	Channel   Channel
	Purpose   Purpose
}

func (k ChallengeKey) Valid() bool {
	return k.AccountID != "" && k.Channel.Valid() && k.Purpose.Valid()
}

// Challenge is one issued passcode. Only the hash of the code is persisted.
type Challenge struct {
	ID        string
	AccountID string
	Channel   Channel
	Purpose   Purpose
	CodeHash  string
	CreatedAt time.Time
	ExpiresAt time.Time
	Attempts  int
	Verified  bool
}

func (c Challenge) Key() ChallengeKey {
	return ChallengeKey{AccountID: c.AccountID, Channel: c.Channel, Purpose: c.Purpose}
}

// NewChallengeID returns a time-ordered identifier so that the newest
// challenge for a key sorts last.
func NewChallengeID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

// VerifyOutcome is the ledger's verdict on a submitted code.
type VerifyOutcome int

const (
	OutcomeNotFound VerifyOutcome = iota
	OutcomeVerified
	OutcomeInvalid
	OutcomeExpired
	OutcomeExhausted
	// OutcomeUsed is returned for a challenge that already verified once.
	OutcomeUsed
)

func (o VerifyOutcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeExpired:
		return "expired"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeUsed:
		return "used"
	default:
		return "not_found"
	}
}

// VerifyResult carries the outcome and, for OutcomeInvalid, the attempts left.
type VerifyResult struct {
	Outcome   VerifyOutcome
	Remaining int
}

// BlacklistedToken records a revoked token id. Whole sessions are revoked
// under [SessionRevocationKey] in the same table.
type BlacklistedToken struct {
	JTI           string
	Kind          Kind
	BlacklistedAt time.Time
}

// SessionRevocationKey is the blacklist key that revokes every token
// carrying session id sid.
func SessionRevocationKey(sid string) string {
	return "sid:" + sid
}
