package kindauth

import (
	"context"

	internalflows "github.com/MrEthical07/kindauth/internal/flows"
	"github.com/MrEthical07/kindauth/model"
)

// RequestPasswordReset sends a PASSWORD_RESET code on the channel identifier
// names. The request counts against the resend lockout. An unknown identifier
// or a throttled account yields an empty IssueResult and no error, so the
// response does not reveal whether the account exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, kind model.Kind, identifier string) (*IssueResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	d, err := internalflows.RunRequestPasswordReset(ctx, kind, identifier, e.flows.Reset)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return &IssueResult{}, nil
	}
	return &IssueResult{Delivery: *d}, nil
}

// ResetPassword sets a new password once a reset code checks out. The code
// goes through the same checks and verify lockout as VerifyOTP. On success the
// new password is stored and the login lockout is cleared. Outstanding tokens
// are not revoked.
func (e *Engine) ResetPassword(ctx context.Context, kind model.Kind, identifier, code, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunResetPassword(ctx, kind, identifier, code, newPassword, e.flows.Reset)
}
