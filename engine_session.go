package kindauth

import (
	"context"
	"time"

	"github.com/MrEthical07/kindauth/internal/flows"
)

// Authenticate validates an access token and returns its bearer. Signature,
// expiry and token type are checked before the blacklist is consulted.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	p, err := flows.RunValidate(ctx, token, e.flows.Validate)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, err
	}
	return principalFrom(p), nil
}

// Logout ends the session the token belongs to, taking its paired refresh
// token with it. The token's signature is verified but its expiry is not, so a
// session can be ended with a stale token. Logging out twice succeeds both
// times.
func (e *Engine) Logout(ctx context.Context, token string) error {
	_, err := e.LogoutSession(ctx, token)
	return err
}

// LogoutSession is Logout returning the principal that was logged out.
func (e *Engine) LogoutSession(ctx context.Context, token string) (*Principal, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunLogout(ctx, token, e.flows.Logout)
	if err != nil {
		return nil, err
	}
	p := principalFrom(&res.Principal)
	if res.Inserted {
		e.metricInc(MetricLogout)
		e.emitAuditToken(ctx, auditEventLogout, true, p.AccountID, p.Kind, p.TokenID, nil, nil)
	}
	return p, nil
}

// Refresh trades a refresh token for a new pair in the same session. The
// presented refresh token is revoked before a new pair is minted. Of
// several concurrent calls with one token exactly one succeeds; the others,
// and any later replay, return ErrTokenRevoked.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	if err != nil {
		return nil, err
	}
	return tokensFrom(res.Account, res.Tokens), nil
}

func principalFrom(p *flows.Principal) *Principal {
	return &Principal{
		AccountID: p.AccountID,
		Kind:      p.Kind,
		TokenID:   p.TokenID,
		SessionID: p.SessionID,
		ExpiresAt: p.ExpiresAt,
	}
}
