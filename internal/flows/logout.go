package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/kindauth/jwt"
	"github.com/MrEthical07/kindauth/model"
)

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	ParseIgnoringExpiry func(string) (*jwt.Claims, error)
	Blacklist           Revoker
	Now                 func() time.Time
	Errors              TokenErrors
}

// LogoutResult reports what a logout did. Inserted is false when the session
// was already revoked or the token had already expired.
type LogoutResult struct {
	Principal Principal
	Inserted  bool
}

// RunLogout revokes the token's jti and its session id, which takes the
// paired refresh token down with it. The signature is verified but expiry is
// tolerated, and repeating a logout is not an error.
func RunLogout(ctx context.Context, token string, deps LogoutDeps) (*LogoutResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ParseIgnoringExpiry == nil || deps.Blacklist == nil {
		return nil, deps.Errors.EngineNotReady
	}

	claims, err := deps.ParseIgnoringExpiry(token)
	if err != nil {
		return nil, deps.Errors.TokenInvalid
	}
	res := &LogoutResult{Principal: *principalFrom(claims)}

	now := deps.Now()
	if !res.Principal.ExpiresAt.IsZero() && !now.Before(res.Principal.ExpiresAt) {
		return res, nil
	}

	if _, err := deps.Blacklist.Revoke(ctx, model.BlacklistedToken{
		JTI:           claims.ID,
		Kind:          model.Kind(claims.Kind),
		BlacklistedAt: now,
	}); err != nil {
		return nil, err
	}
	inserted, err := deps.Blacklist.Revoke(ctx, model.BlacklistedToken{
		JTI:           model.SessionRevocationKey(claims.SessionID),
		Kind:          model.Kind(claims.Kind),
		BlacklistedAt: now,
	})
	if err != nil {
		return nil, err
	}
	res.Inserted = inserted
	return res, nil
}
