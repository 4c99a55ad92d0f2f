package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/kindauth/jwt"
	"github.com/MrEthical07/kindauth/model"
)

// TokenErrors carries host-level sentinel errors used by token flows.
type TokenErrors struct {
	DetailErrors

	EngineNotReady  error
	TokenInvalid    error
	TokenExpired    error
	TokenRevoked    error
	AccountInactive error
	AccountLocked   error
}

// Principal is the flow-local view of an authenticated bearer.
type Principal struct {
	AccountID string
	Kind      model.Kind
	TokenID   string
	SessionID string
	ExpiresAt time.Time
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	Parse     func(string, jwt.TokenType) (*jwt.Claims, error)
	Blacklist Revoker
	Errors    TokenErrors
}

// RunValidate checks signature, expiry and type before consulting the
// blacklist, so forged or stale tokens never reach the store.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) (*Principal, error) {
	if deps.Parse == nil || deps.Blacklist == nil {
		return nil, deps.Errors.EngineNotReady
	}

	claims, err := deps.Parse(token, jwt.TypeAccess)
	if err != nil {
		return nil, mapTokenErr(err, deps.Errors)
	}

	revoked, err := isRevoked(ctx, deps.Blacklist, claims)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, deps.Errors.TokenRevoked
	}

	return principalFrom(claims), nil
}

// isRevoked reports whether the token itself or its whole session has been
// blacklisted.
func isRevoked(ctx context.Context, bl Revoker, c *jwt.Claims) (bool, error) {
	revoked, err := bl.IsRevoked(ctx, c.ID)
	if err != nil || revoked {
		return revoked, err
	}
	return bl.IsRevoked(ctx, model.SessionRevocationKey(c.SessionID))
}

func principalFrom(c *jwt.Claims) *Principal {
	p := &Principal{
		AccountID: c.Subject,
		Kind:      model.Kind(c.Kind),
		TokenID:   c.ID,
		SessionID: c.SessionID,
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}

func mapTokenErr(err error, errs TokenErrors) error {
	if jwt.IsExpired(err) {
		return errs.TokenExpired
	}
	return errs.TokenInvalid
}
