package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/kindauth/internal/lockout"
	"github.com/MrEthical07/kindauth/jwt"
	"github.com/MrEthical07/kindauth/model"
)

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	RefreshSuccess int
	RefreshFailure int
	RefreshReuse   int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	RefreshSuccess string
	RefreshFailure string
	RefreshReuse   string
}

// RefreshDeps captures refresh-rotation dependencies.
type RefreshDeps struct {
	LoginPolicy lockout.Policy

	Parse       func(string, jwt.TokenType) (*jwt.Claims, error)
	Blacklist   Revoker
	Accounts    AccountStore
	IssueTokens func(ctx context.Context, acct model.Account, sid string) (Tokens, error)

	Now       func() time.Time
	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, model.Account, error, func() map[string]string)

	Metrics RefreshMetrics
	Events  RefreshEvents
	Errors  TokenErrors
}

// RunRefresh rotates a refresh token inside its session. A revoked session is
// rejected before anything is written. The presented jti is then blacklisted;
// only the caller whose insert wins may mint the next pair.
func RunRefresh(ctx context.Context, token string, deps RefreshDeps) (*LoginResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Parse == nil ||
		deps.Blacklist == nil ||
		deps.Accounts == nil ||
		deps.IssueTokens == nil ||
		deps.Errors.Locked == nil {
		return nil, deps.Errors.EngineNotReady
	}

	claims, err := deps.Parse(token, jwt.TypeRefresh)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return nil, mapTokenErr(err, deps.Errors)
	}
	subject := model.Account{ID: claims.Subject, Kind: model.Kind(claims.Kind)}

	sessionRevoked, err := deps.Blacklist.IsRevoked(ctx, model.SessionRevocationKey(claims.SessionID))
	if err != nil {
		return nil, err
	}
	if sessionRevoked {
		return nil, refreshFailed(ctx, subject, deps.Errors.TokenRevoked, deps)
	}

	now := deps.Now()
	inserted, err := deps.Blacklist.Revoke(ctx, model.BlacklistedToken{
		JTI:           claims.ID,
		Kind:          model.Kind(claims.Kind),
		BlacklistedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		deps.MetricInc(deps.Metrics.RefreshReuse)
		deps.EmitAudit(ctx, deps.Events.RefreshReuse, false, subject, deps.Errors.TokenRevoked, func() map[string]string {
			return map[string]string{"jti": claims.ID}
		})
		return nil, deps.Errors.TokenRevoked
	}

	acct, err := deps.Accounts.Get(ctx, claims.Subject)
	if errors.Is(err, model.ErrNotFound) {
		return nil, refreshFailed(ctx, subject, deps.Errors.TokenInvalid, deps)
	}
	if err != nil {
		return nil, err
	}
	if acct.Kind != model.Kind(claims.Kind) {
		return nil, refreshFailed(ctx, subject, deps.Errors.TokenInvalid, deps)
	}
	if !acct.IsActive {
		return nil, refreshFailed(ctx, acct, deps.Errors.AccountInactive, deps)
	}
	if st := deps.LoginPolicy.Check(acct.Login, now); st.Locked {
		return nil, refreshFailed(ctx, acct, deps.Errors.Locked(deps.Errors.AccountLocked, st.Remaining), deps)
	}

	tokens, err := deps.IssueTokens(ctx, acct, claims.SessionID)
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, acct, nil, nil)
	return &LoginResult{Account: acct, Tokens: tokens}, nil
}

func refreshFailed(ctx context.Context, acct model.Account, err error, deps RefreshDeps) error {
	deps.MetricInc(deps.Metrics.RefreshFailure)
	deps.EmitAudit(ctx, deps.Events.RefreshFailure, false, acct, err, nil)
	return err
}
