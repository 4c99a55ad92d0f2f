package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/kindauth/internal/lockout"
	"github.com/MrEthical07/kindauth/model"
)

// VerifyRequest identifies one challenge slot and the submitted code.
type VerifyRequest struct {
	AccountID string
	Channel   model.Channel
	Purpose   model.Purpose
	Code      string
}

// VerifyResult is the flow-local verification response shape.
type VerifyResult struct {
	Account   model.Account
	Activated bool
}

// VerifyMetrics carries metric IDs needed by the verification flow.
type VerifyMetrics struct {
	OTPVerified      int
	OTPInvalid       int
	OTPExpired       int
	OTPExhausted     int
	OTPLocked        int
	AccountActivated int
}

// VerifyEvents carries audit event names used by the verification flow.
type VerifyEvents struct {
	OTPVerified      string
	OTPFailure       string
	OTPLocked        string
	AccountActivated string
}

// VerifyErrors carries host-level sentinel errors used by the verification flow.
type VerifyErrors struct {
	DetailErrors

	EngineNotReady error
	InvalidInput   error
	OTPInvalid     error
	OTPExpired     error
	OTPExhausted   error
	OTPNotFound    error
	OTPLocked      error
}

// VerifyDeps captures OTP verification dependencies.
type VerifyDeps struct {
	Policy      lockout.Policy
	MaxAttempts int

	Accounts     AccountStore
	Ledger       Ledger
	ValidateCode func(string) error
	HashCode     func(model.ChallengeKey, string) string

	Now       func() time.Time
	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, model.Account, error, func() map[string]string)

	Metrics VerifyMetrics
	Events  VerifyEvents
	Errors  VerifyErrors
}

// RunVerifyOTP checks a submitted code against the newest challenge for the
// request's slot and applies the verify lockout on exhaustion.
func RunVerifyOTP(ctx context.Context, req VerifyRequest, deps VerifyDeps) (*VerifyResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Accounts == nil ||
		deps.Ledger == nil ||
		deps.ValidateCode == nil ||
		deps.HashCode == nil ||
		deps.Errors.Locked == nil ||
		deps.Errors.Attempts == nil {
		return nil, deps.Errors.EngineNotReady
	}

	key := model.ChallengeKey{AccountID: req.AccountID, Channel: req.Channel, Purpose: req.Purpose}
	if !key.Valid() {
		return nil, deps.Errors.InvalidInput
	}
	if err := deps.ValidateCode(req.Code); err != nil {
		return nil, deps.Errors.InvalidInput
	}

	acct, err := deps.Accounts.Get(ctx, req.AccountID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, deps.Errors.OTPNotFound
	}
	if err != nil {
		return nil, err
	}
	if !acct.HasChannel(req.Channel) {
		return nil, deps.Errors.OTPNotFound
	}

	now := deps.Now()
	if st := deps.Policy.Check(acct.OTPVerify, now); st.Locked {
		return nil, lockedVerify(ctx, acct, req, st.Remaining, deps)
	}

	res, err := deps.Ledger.Verify(ctx, key, deps.HashCode(key, req.Code), now, deps.MaxAttempts)
	if err != nil {
		return nil, err
	}

	switch res.Outcome {
	case model.OutcomeVerified:
		return verified(ctx, acct, req, now, deps)
	case model.OutcomeInvalid:
		err = deps.Errors.Attempts(deps.Errors.OTPInvalid, res.Remaining)
		deps.MetricInc(deps.Metrics.OTPInvalid)
	case model.OutcomeExpired:
		err = deps.Errors.OTPExpired
		deps.MetricInc(deps.Metrics.OTPExpired)
	case model.OutcomeExhausted:
		return nil, exhausted(ctx, acct, req, now, deps)
	default:
		err = deps.Errors.OTPNotFound
	}

	deps.EmitAudit(ctx, deps.Events.OTPFailure, false, acct, err, verifyMeta(req, res.Outcome))
	return nil, err
}

func verified(ctx context.Context, acct model.Account, req VerifyRequest, now time.Time, deps VerifyDeps) (*VerifyResult, error) {
	var activated bool
	updated, err := deps.Accounts.Update(ctx, acct.ID, func(a *model.Account) error {
		activated = false
		switch req.Purpose {
		case model.PurposeActivation, model.PurposeContactChange:
			a.MarkVerified(req.Channel)
		}
		if req.Purpose == model.PurposeActivation && !a.IsActive && a.FullyVerified() {
			a.IsActive = true
			activated = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	tr, err := deps.Accounts.StepLock(ctx, acct.ID, deps.Policy.StepFor(model.CounterVerify, now, false))
	if err != nil {
		return nil, err
	}
	updated.OTPVerify = tr.State

	deps.MetricInc(deps.Metrics.OTPVerified)
	deps.EmitAudit(ctx, deps.Events.OTPVerified, true, updated, nil, verifyMeta(req, model.OutcomeVerified))
	if activated {
		deps.MetricInc(deps.Metrics.AccountActivated)
		deps.EmitAudit(ctx, deps.Events.AccountActivated, true, updated, nil, nil)
	}
	return &VerifyResult{Account: updated, Activated: activated}, nil
}

// exhausted feeds one failure into the verify lockout for every request that
// lands on a spent challenge.
func exhausted(ctx context.Context, acct model.Account, req VerifyRequest, now time.Time, deps VerifyDeps) error {
	tr, err := deps.Accounts.StepLock(ctx, acct.ID, deps.Policy.StepFor(model.CounterVerify, now, true))
	if err != nil {
		return err
	}
	acct.OTPVerify = tr.State

	deps.MetricInc(deps.Metrics.OTPExhausted)
	switch {
	case tr.Locked:
		return lockedVerify(ctx, acct, req, deps.Policy.Check(tr.State, now).Remaining, deps)
	case tr.Tripped:
		return lockedVerify(ctx, acct, req, deps.Policy.Window, deps)
	}
	deps.EmitAudit(ctx, deps.Events.OTPFailure, false, acct, deps.Errors.OTPExhausted, verifyMeta(req, model.OutcomeExhausted))
	return deps.Errors.OTPExhausted
}

func lockedVerify(ctx context.Context, acct model.Account, req VerifyRequest, remaining time.Duration, deps VerifyDeps) error {
	err := deps.Errors.Locked(deps.Errors.OTPLocked, remaining)
	deps.MetricInc(deps.Metrics.OTPLocked)
	deps.EmitAudit(ctx, deps.Events.OTPLocked, false, acct, err, verifyMeta(req, model.OutcomeExhausted))
	return err
}

func verifyMeta(req VerifyRequest, outcome model.VerifyOutcome) func() map[string]string {
	return func() map[string]string {
		return map[string]string{
			"channel": string(req.Channel),
			"purpose": string(req.Purpose),
			"outcome": outcome.String(),
		}
	}
}
