package kindauth

import (
	"context"

	"github.com/MrEthical07/kindauth/internal/flows"
	"github.com/MrEthical07/kindauth/model"
)

// Login authenticates a password and returns a new token pair.
//
// identifier is an email address or phone number; it is looked up only among
// accounts of kind. A wrong password returns *AttemptsError wrapping
// ErrInvalidCredentials, a locked account *LockedError wrapping
// ErrAccountLocked, and a correct password on an account that has not
// finished activation *InactiveError carrying the activation deliveries.
// Login can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, kind model.Kind, identifier, password string) (*Tokens, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunLogin(ctx, flows.LoginRequest{
		Kind:       kind,
		Identifier: identifier,
		Password:   password,
	}, e.flows.Login)
	if err != nil {
		return nil, err
	}
	return tokensFrom(res.Account, res.Tokens), nil
}
