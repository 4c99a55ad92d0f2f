package flows

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/kindauth/internal/lockout"
	"github.com/MrEthical07/kindauth/model"
)

// LoginRequest is the flow-local login input.
type LoginRequest struct {
	Kind       model.Kind
	Identifier string
	Password   string
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Account model.Account
	Tokens  Tokens
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess   int
	LoginFailure   int
	LoginLocked    int
	LoginInactive  int
	PasswordRehash int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess  string
	LoginFailure  string
	LoginLocked   string
	LoginInactive string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	DetailErrors

	EngineNotReady     error
	InvalidInput       error
	InvalidCredentials error
	AccountLocked      error
	Inactive           func([]Delivery) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Policy lockout.Policy
	// Resend gates the activation codes sent to inactive accounts.
	Resend ResendDeps

	Accounts       AccountStore
	Resolve        func(context.Context, model.Kind, string) (model.Account, error)
	VerifyPassword func(plain, digest string) (bool, error)
	DummyVerify    func(plain string)
	NeedsUpgrade   func(digest string) (bool, error)
	HashPassword   func(string) (string, error)
	IssueTokens    func(ctx context.Context, acct model.Account, sid string) (Tokens, error)

	Now       func() time.Time
	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, model.Account, error, func() map[string]string)
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin authenticates one identifier/password pair against the login
// lockout, and either issues tokens or starts activation for inactive accounts.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) (*LoginResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.DummyVerify == nil {
		deps.DummyVerify = func(string) {}
	}
	if deps.Accounts == nil ||
		deps.Resolve == nil ||
		deps.VerifyPassword == nil ||
		deps.IssueTokens == nil ||
		deps.Errors.Locked == nil ||
		deps.Errors.Attempts == nil ||
		deps.Errors.Inactive == nil ||
		!deps.Resend.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	if req.Password == "" {
		return nil, deps.Errors.InvalidInput
	}

	acct, err := deps.Resolve(ctx, req.Kind, req.Identifier)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		// Unknown identities pay the same hashing cost and report the
		// same shape as a first wrong password.
		deps.DummyVerify(req.Password)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, model.Account{Kind: req.Kind}, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "unknown_identity"}
		})
		return nil, deps.Errors.Attempts(deps.Errors.InvalidCredentials, deps.Policy.Remaining(model.LockState{Count: 1}))
	}

	now := deps.Now()
	if st := deps.Policy.Check(acct.Login, now); st.Locked {
		return nil, lockedLogin(ctx, acct, st.Remaining, deps)
	}

	ok, err := deps.VerifyPassword(req.Password, acct.PasswordHash)
	if err != nil {
		deps.Warn("kindauth: stored password hash unreadable", "account_id", acct.ID, "error", err)
		ok = false
	}
	if !ok {
		return nil, failedLogin(ctx, acct, now, deps)
	}

	if !acct.IsActive {
		return nil, inactiveLogin(ctx, acct, now, deps)
	}

	tr, err := deps.Accounts.StepLock(ctx, acct.ID, deps.Policy.StepFor(model.CounterLogin, now, false))
	if err != nil {
		return nil, err
	}
	acct.Login = tr.State
	if tr.Locked {
		return nil, lockedLogin(ctx, acct, deps.Policy.Check(tr.State, now).Remaining, deps)
	}

	updated := rehashLogin(ctx, acct, req.Password, deps)

	tokens, err := deps.IssueTokens(ctx, updated, "")
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, updated, nil, nil)

	return &LoginResult{Account: updated, Tokens: tokens}, nil
}

func lockedLogin(ctx context.Context, acct model.Account, remaining time.Duration, deps LoginDeps) error {
	err := deps.Errors.Locked(deps.Errors.AccountLocked, remaining)
	deps.MetricInc(deps.Metrics.LoginLocked)
	deps.EmitAudit(ctx, deps.Events.LoginLocked, false, acct, err, nil)
	return err
}

// rehashLogin upgrades a stale password digest after a successful login. A
// failed upgrade is logged and the login proceeds with the old digest.
func rehashLogin(ctx context.Context, acct model.Account, plain string, deps LoginDeps) model.Account {
	if deps.NeedsUpgrade == nil || deps.HashPassword == nil {
		return acct
	}
	upgrade, err := deps.NeedsUpgrade(acct.PasswordHash)
	if err != nil || !upgrade {
		return acct
	}
	digest, err := deps.HashPassword(plain)
	if err != nil {
		deps.Warn("kindauth: password rehash failed", "account_id", acct.ID, "error", err)
		return acct
	}
	updated, err := deps.Accounts.Update(ctx, acct.ID, func(a *model.Account) error {
		a.PasswordHash = digest
		return nil
	})
	if err != nil {
		deps.Warn("kindauth: password rehash not stored", "account_id", acct.ID, "error", err)
		return acct
	}
	deps.MetricInc(deps.Metrics.PasswordRehash)
	return updated
}

// failedLogin records a wrong password in one atomic store step, so
// concurrent failures are each counted exactly once.
func failedLogin(ctx context.Context, acct model.Account, now time.Time, deps LoginDeps) error {
	tr, err := deps.Accounts.StepLock(ctx, acct.ID, deps.Policy.StepFor(model.CounterLogin, now, true))
	if err != nil {
		return err
	}
	acct.Login = tr.State

	switch {
	case tr.Locked:
		return lockedLogin(ctx, acct, deps.Policy.Check(tr.State, now).Remaining, deps)
	case tr.Tripped:
		deps.MetricInc(deps.Metrics.LoginFailure)
		return lockedLogin(ctx, acct, deps.Policy.Window, deps)
	}

	err = deps.Errors.Attempts(deps.Errors.InvalidCredentials, deps.Policy.Remaining(tr.State))
	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.EmitAudit(ctx, deps.Events.LoginFailure, false, acct, err, nil)
	return err
}

// inactiveLogin handles a correct password on an account that has not
// finished activation: the login counter is cleared and activation codes go
// out on every unverified channel. Each code counts against the resend
// lockout; a channel the lockout refuses is left out of the deliveries.
func inactiveLogin(ctx context.Context, acct model.Account, now time.Time, deps LoginDeps) error {
	tr, err := deps.Accounts.StepLock(ctx, acct.ID, deps.Policy.StepFor(model.CounterLogin, now, false))
	if err != nil {
		return err
	}
	if !tr.Locked {
		acct.Login = tr.State
	}

	channels := acct.UnverifiedChannels()
	deliveries := make([]Delivery, 0, len(channels))
	throttled := 0
	for _, ch := range channels {
		d, err := resendFor(ctx, acct, ch, model.PurposeActivation, deps.Resend)
		if err != nil && errors.Is(err, deps.Resend.Errors.ResendLocked) {
			throttled++
			continue
		}
		if err != nil {
			return err
		}
		deliveries = append(deliveries, *d)
	}

	err = deps.Errors.Inactive(deliveries)
	deps.MetricInc(deps.Metrics.LoginInactive)
	deps.EmitAudit(ctx, deps.Events.LoginInactive, false, acct, err, func() map[string]string {
		return map[string]string{
			"challenges": strconv.Itoa(len(deliveries)),
			"throttled":  strconv.Itoa(throttled),
		}
	})
	return err
}
