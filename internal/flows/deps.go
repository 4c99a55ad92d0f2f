package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/kindauth/model"
)

// AccountStore is the flow-local view of the credential store.
type AccountStore interface {
	Create(ctx context.Context, acct *model.Account) error
	Get(ctx context.Context, id string) (model.Account, error)
	Update(ctx context.Context, id string, fn func(*model.Account) error) (model.Account, error)
	StepLock(ctx context.Context, id string, step model.LockStep) (model.LockTransition, error)
}

// Ledger is the flow-local view of the OTP ledger.
type Ledger interface {
	Issue(ctx context.Context, c model.Challenge) error
	Verify(ctx context.Context, key model.ChallengeKey, codeHash string, now time.Time, maxAttempts int) (model.VerifyResult, error)
}

// Revoker is the flow-local view of the token blacklist.
type Revoker interface {
	Revoke(ctx context.Context, tok model.BlacklistedToken) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Tokens is the flow-local access/refresh pair.
type Tokens struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Delivery reports one issued challenge. A failed delivery is carried in
// Warning; the challenge itself is committed either way.
type Delivery struct {
	Channel     model.Channel
	Purpose     model.Purpose
	Destination string
	ExpiresAt   time.Time
	Warning     error
}

// Delivered reports whether the gateway accepted the message.
func (d Delivery) Delivered() bool {
	return d.Warning == nil
}

// DetailErrors builds the host-level detail errors that carry lockout state.
type DetailErrors struct {
	Locked   func(cause error, remaining time.Duration) error
	Attempts func(cause error, remaining int) error
}

func noAudit(context.Context, string, bool, model.Account, error, func() map[string]string) {}

func noMetric(int) {}

func noWarn(string, ...any) {}

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Login    LoginDeps
	Verify   VerifyDeps
	Resend   ResendDeps
	Reset    PasswordResetDeps
	Register RegisterDeps
	Validate ValidateDeps
	Logout   LogoutDeps
	Refresh  RefreshDeps
}
