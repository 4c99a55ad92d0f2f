package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/kindauth/internal/lockout"
	"github.com/MrEthical07/kindauth/model"
)

// ResendRequest identifies the challenge slot to reissue.
type ResendRequest struct {
	AccountID string
	Channel   model.Channel
	Purpose   model.Purpose
}

// ResendMetrics carries metric IDs needed by the resend flow.
type ResendMetrics struct {
	ResendLocked int
}

// ResendEvents carries audit event names used by the resend flow.
type ResendEvents struct {
	ResendLocked string
}

// ResendErrors carries host-level sentinel errors used by the resend flow.
type ResendErrors struct {
	DetailErrors

	EngineNotReady error
	InvalidInput   error
	OTPNotFound    error
	ResendLocked   error
}

// ResendDeps captures OTP resend dependencies.
type ResendDeps struct {
	Policy lockout.Policy
	Issue  IssueDeps

	Accounts AccountStore

	Now       func() time.Time
	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, model.Account, error, func() map[string]string)

	Metrics ResendMetrics
	Events  ResendEvents
	Errors  ResendErrors
}

func (d *ResendDeps) ready() bool {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = noMetric
	}
	if d.EmitAudit == nil {
		d.EmitAudit = noAudit
	}
	return d.Accounts != nil && d.Errors.Locked != nil && d.Issue.ready()
}

// RunResendOTP counts the request against the resend lockout and, if allowed,
// supersedes the slot's challenge with a freshly delivered one.
func RunResendOTP(ctx context.Context, req ResendRequest, deps ResendDeps) (*Delivery, error) {
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	key := model.ChallengeKey{AccountID: req.AccountID, Channel: req.Channel, Purpose: req.Purpose}
	if !key.Valid() {
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
		return nil, deps.Errors.InvalidInput
	}
	if req.Purpose == model.PurposeActivation && acct.ChannelVerified(req.Channel) {
		return nil, deps.Errors.InvalidInput
	}

	return resendFor(ctx, acct, req.Channel, req.Purpose, deps)
}

// resendFor counts one send against the resend lockout and issues the code
// when the lockout allows it.
func resendFor(ctx context.Context, acct model.Account, ch model.Channel, purpose model.Purpose, deps ResendDeps) (*Delivery, error) {
	now := deps.Now()
	tr, err := deps.Accounts.StepLock(ctx, acct.ID, deps.Policy.StepFor(model.CounterResend, now, true))
	if err != nil {
		return nil, err
	}
	acct.Resend = tr.State
	if tr.Locked {
		err := deps.Errors.Locked(deps.Errors.ResendLocked, deps.Policy.Check(tr.State, now).Remaining)
		deps.MetricInc(deps.Metrics.ResendLocked)
		deps.EmitAudit(ctx, deps.Events.ResendLocked, false, acct, err, func() map[string]string {
			return map[string]string{
				"channel": string(ch),
				"purpose": string(purpose),
			}
		})
		return nil, err
	}

	d, err := IssueChallenge(ctx, acct, ch, purpose, deps.Issue)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
