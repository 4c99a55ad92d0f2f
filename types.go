package kindauth

import (
	"context"
	"time"

	"github.com/MrEthical07/kindauth/internal/flows"
	"github.com/MrEthical07/kindauth/messaging"
	"github.com/MrEthical07/kindauth/model"
)

// CredentialStore persists accounts partitioned by kind. Lockout counters
// change through StepLock; Update applies fn atomically per account for
// everything else.
//
//	Implementations: store/redis.AccountStore, store/postgres.AccountStore
type CredentialStore interface {
	Create(ctx context.Context, acct *model.Account) error
	Get(ctx context.Context, id string) (model.Account, error)
	FindByEmail(ctx context.Context, kind model.Kind, email string) (model.Account, error)
	FindByPhone(ctx context.Context, kind model.Kind, phone string) (model.Account, error)
	Update(ctx context.Context, id string, fn func(*model.Account) error) (model.Account, error)
	// StepLock applies one lockout outcome to a counter atomically. A
	// missing account reports model.ErrNotFound.
	StepLock(ctx context.Context, id string, step model.LockStep) (model.LockTransition, error)
}

// OTPLedger stores hashed challenges, one live challenge per
// (account, channel, purpose) slot. Verify must compare and count atomically.
type OTPLedger interface {
	Issue(ctx context.Context, c model.Challenge) error
	Verify(ctx context.Context, key model.ChallengeKey, codeHash string, now time.Time, maxAttempts int) (model.VerifyResult, error)
	Latest(ctx context.Context, key model.ChallengeKey) (model.Challenge, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Blacklist records revoked token ids until they can no longer verify.
// Revoke reports whether this call inserted the id.
type Blacklist interface {
	Revoke(ctx context.Context, tok model.BlacklistedToken) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Sweep(ctx context.Context, cutoff time.Time) (int64, error)
}

// Hasher hashes and checks passwords. password.Argon2, password.Bcrypt and
// password.Auto satisfy it.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) (bool, error)
}

// UpgradableHasher is implemented by hashers that can tell when a stored
// digest should be replaced on the next successful login.
type UpgradableHasher interface {
	Hasher
	NeedsUpgrade(digest string) (bool, error)
}

// Gateway delivers composed messages. messaging.Router, messaging.SMTPMailer,
// messaging.SMSClient and messaging.LogSender satisfy it.
type Gateway interface {
	Send(ctx context.Context, msg messaging.Message) error
}

// Delivery reports one issued challenge; a failed send is carried in Warning.
type Delivery = flows.Delivery

// Tokens is a freshly issued access/refresh pair.
type Tokens struct {
	AccountID        string
	Kind             model.Kind
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Principal is the authenticated bearer of an access token. The full account
// is loaded lazily with [Engine.LoadAccount].
type Principal struct {
	AccountID string
	Kind      model.Kind
	TokenID   string
	SessionID string
	ExpiresAt time.Time
}

// VerifyResult is returned by [Engine.VerifyOTP]. Activated is true only on
// the verification that completed activation.
type VerifyResult struct {
	AccountID string
	Kind      model.Kind
	Purpose   model.Purpose
	Activated bool
}

// IssueResult is returned by operations that send a code. Warning is set when
// the challenge was stored but the gateway rejected the message.
type IssueResult struct {
	Delivery
}

// NewAccount is the input to [Engine.Register]. Email and Phone are raw
// identifiers; at least one is required.
type NewAccount struct {
	Kind     model.Kind
	Email    string
	Phone    string
	Password string
}

func tokensFrom(acct model.Account, t flows.Tokens) *Tokens {
	return &Tokens{
		AccountID:        acct.ID,
		Kind:             acct.Kind,
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
}
