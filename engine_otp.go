package kindauth

import (
	"context"

	"github.com/MrEthical07/kindauth/internal/flows"
	"github.com/MrEthical07/kindauth/model"
)

// VerifyOTP checks code against the newest challenge for (accountID,
// channel, purpose). A malformed code returns ErrInvalidInput without consuming an
// attempt. A wrong code returns *AttemptsError wrapping ErrOTPInvalid; the
// attempt that exhausts the challenge also counts against the verify lockout,
// and once that trips every call returns *LockedError wrapping ErrOTPLocked.
func (e *Engine) VerifyOTP(ctx context.Context, accountID string, channel model.Channel, purpose model.Purpose, code string) (*VerifyResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunVerifyOTP(ctx, flows.VerifyRequest{
		AccountID: accountID,
		Channel:   channel,
		Purpose:   purpose,
		Code:      code,
	}, e.flows.Verify)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		AccountID: res.Account.ID,
		Kind:      res.Account.Kind,
		Purpose:   purpose,
		Activated: res.Activated,
	}, nil
}

// ResendOTP issues a fresh code for one slot. Each call counts against the
// resend lockout, which is independent of the login and verify counters. The new challenge supersedes the previous one
// for the same slot. A gateway failure is reported in IssueResult.Warning.
func (e *Engine) ResendOTP(ctx context.Context, accountID string, channel model.Channel, purpose model.Purpose) (*IssueResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	d, err := flows.RunResendOTP(ctx, flows.ResendRequest{
		AccountID: accountID,
		Channel:   channel,
		Purpose:   purpose,
	}, e.flows.Resend)
	if err != nil {
		return nil, err
	}
	return &IssueResult{Delivery: *d}, nil
}
