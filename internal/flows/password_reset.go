package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/kindauth/model"
)

// PasswordResetMetrics carries metric IDs needed by password reset flows.
type PasswordResetMetrics struct {
	ResetRequested int
	ResetCompleted int
}

// PasswordResetEvents carries audit event names used by password reset flows.
type PasswordResetEvents struct {
	ResetRequested string
	ResetCompleted string
}

// PasswordResetErrors carries host-level sentinel errors used by password reset flows.
type PasswordResetErrors struct {
	EngineNotReady error
	InvalidInput   error
	OTPNotFound    error
	ResendLocked   error
}

// PasswordResetDeps captures request and confirm dependencies. Resend and
// Verify supply the lockout-guarded issue and verify paths.
type PasswordResetDeps struct {
	Resend ResendDeps
	Verify VerifyDeps

	Classify          func(string) (model.Channel, string, error)
	Resolve           func(context.Context, model.Kind, string) (model.Account, error)
	CheckPassword     func(string) error
	HashPassword      func(string) (string, error)
	ClearLoginLockout bool

	Now       func() time.Time
	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, model.Account, error, func() map[string]string)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// RunRequestPasswordReset issues a PASSWORD_RESET code on the channel the
// identifier names. Unknown identities and throttled accounts return a nil
// delivery without error so the response does not reveal either.
func RunRequestPasswordReset(ctx context.Context, kind model.Kind, identifier string, deps PasswordResetDeps) (*Delivery, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Classify == nil || deps.Resolve == nil || !deps.Resend.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	ch, _, err := deps.Classify(identifier)
	if err != nil {
		return nil, deps.Errors.InvalidInput
	}
	acct, err := deps.Resolve(ctx, kind, identifier)
	if errors.Is(err, model.ErrNotFound) {
		deps.EmitAudit(ctx, deps.Events.ResetRequested, false, model.Account{Kind: kind}, nil, func() map[string]string {
			return map[string]string{"reason": "unknown_identity"}
		})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	d, err := resendFor(ctx, acct, ch, model.PurposePasswordReset, deps.Resend)
	if errors.Is(err, deps.Errors.ResendLocked) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.ResetRequested)
	deps.EmitAudit(ctx, deps.Events.ResetRequested, true, acct, nil, func() map[string]string {
		return map[string]string{"channel": string(ch)}
	})
	return d, nil
}

// RunResetPassword consumes a PASSWORD_RESET code through the verify path,
// stores the new hash and clears the login lockout.
func RunResetPassword(ctx context.Context, kind model.Kind, identifier, code, newPassword string, deps PasswordResetDeps) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Classify == nil || deps.Resolve == nil || deps.HashPassword == nil || deps.Resend.Accounts == nil {
		return deps.Errors.EngineNotReady
	}

	ch, _, err := deps.Classify(identifier)
	if err != nil {
		return deps.Errors.InvalidInput
	}
	if deps.CheckPassword != nil {
		if err := deps.CheckPassword(newPassword); err != nil {
			return err
		}
	}

	acct, err := deps.Resolve(ctx, kind, identifier)
	if errors.Is(err, model.ErrNotFound) {
		return deps.Errors.OTPNotFound
	}
	if err != nil {
		return err
	}

	if _, err := RunVerifyOTP(ctx, VerifyRequest{
		AccountID: acct.ID,
		Channel:   ch,
		Purpose:   model.PurposePasswordReset,
		Code:      code,
	}, deps.Verify); err != nil {
		return err
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return err
	}

	updated, err := deps.Resend.Accounts.Update(ctx, acct.ID, func(a *model.Account) error {
		a.PasswordHash = hash
		if deps.ClearLoginLockout {
			a.Login = model.LockState{}
		}
		return nil
	})
	if err != nil {
		return err
	}

	deps.MetricInc(deps.Metrics.ResetCompleted)
	deps.EmitAudit(ctx, deps.Events.ResetCompleted, true, updated, nil, nil)
	return nil
}
