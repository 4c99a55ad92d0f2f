package kindauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/kindauth/model"
)

func loginActive(t *testing.T, h *harness) (model.Account, *Tokens) {
	t.Helper()
	acct := h.activeAccount(t, "ada@example.com", "")
	tokens, err := h.engine.Login(context.Background(), model.KindLearner, "ada@example.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return acct, tokens
}

func TestBlacklistRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct, tokens := loginActive(t, h)

	p, err := h.engine.Authenticate(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if p.AccountID != acct.ID || p.Kind != model.KindLearner || p.TokenID == "" {
		t.Fatalf("unexpected principal %+v", p)
	}

	if err := h.engine.Logout(ctx, tokens.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := h.engine.Authenticate(ctx, tokens.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	// Logout is idempotent.
	if err := h.engine.Logout(ctx, tokens.AccessToken); err != nil {
		t.Fatalf("second logout failed: %v", err)
	}
}

func TestLogoutRevokesPairedRefreshToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, tokens := loginActive(t, h)

	if err := h.engine.Logout(ctx, tokens.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := h.engine.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked for refresh after logout, got %v", err)
	}
}

func TestLogoutEndsRotatedSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, first := loginActive(t, h)

	rotated, err := h.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	before, err := h.engine.Authenticate(ctx, first.AccessToken)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	after, err := h.engine.Authenticate(ctx, rotated.AccessToken)
	if err != nil {
		t.Fatalf("authenticate rotated failed: %v", err)
	}
	if before.SessionID == "" || before.SessionID != after.SessionID {
		t.Fatalf("rotation must keep the session id: %q vs %q", before.SessionID, after.SessionID)
	}

	// A second login is a separate session and survives the logout.
	other, err := h.engine.Login(ctx, model.KindLearner, "ada@example.com", testPassword)
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}

	if err := h.engine.Logout(ctx, rotated.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := h.engine.Authenticate(ctx, first.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected earlier access token revoked with its session, got %v", err)
	}
	if _, err := h.engine.Refresh(ctx, rotated.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected rotated refresh token revoked, got %v", err)
	}
	if _, err := h.engine.Authenticate(ctx, other.AccessToken); err != nil {
		t.Fatalf("unrelated session rejected: %v", err)
	}
	if _, err := h.engine.Refresh(ctx, other.RefreshToken); err != nil {
		t.Fatalf("unrelated session refresh rejected: %v", err)
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, tokens := loginActive(t, h)

	if _, err := h.engine.Authenticate(ctx, tokens.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh token used as access: expected ErrTokenInvalid, got %v", err)
	}
	if _, err := h.engine.Authenticate(ctx, tokens.AccessToken+"x"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("tampered token: expected ErrTokenInvalid, got %v", err)
	}
	if _, err := h.engine.Authenticate(ctx, ""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("empty token: expected ErrTokenInvalid, got %v", err)
	}

	h.clock.Advance(16 * time.Minute)
	if _, err := h.engine.Authenticate(ctx, tokens.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestLogoutExpiredTokenIsNoOp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, tokens := loginActive(t, h)

	h.clock.Advance(time.Hour)
	p, err := h.engine.LogoutSession(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("logout with expired token failed: %v", err)
	}
	revoked, err := h.engine.blacklist.IsRevoked(ctx, p.TokenID)
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("expired token should not be inserted into the blacklist")
	}

	if err := h.engine.Logout(ctx, "not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	h := newHarness(t, func(b *Builder) { b.WithMetricsEnabled(true) })
	ctx := context.Background()
	acct, tokens := loginActive(t, h)

	next, err := h.engine.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next.AccountID != acct.ID || next.RefreshToken == tokens.RefreshToken {
		t.Fatalf("unexpected rotated tokens %+v", next)
	}
	if _, err := h.engine.Authenticate(ctx, next.AccessToken); err != nil {
		t.Fatalf("rotated access token rejected: %v", err)
	}

	if _, err := h.engine.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked on reuse, got %v", err)
	}
	if _, err := h.engine.Refresh(ctx, tokens.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token used as refresh: expected ErrTokenInvalid, got %v", err)
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshSuccess] != 1 || snap.Counters[MetricRefreshReuse] != 1 {
		t.Fatalf("unexpected refresh counters success=%d reuse=%d", snap.Counters[MetricRefreshSuccess], snap.Counters[MetricRefreshReuse])
	}
}

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	h := newHarness(t)
	_, tokens := loginActive(t, h)

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := h.engine.Refresh(context.Background(), tokens.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrTokenRevoked) {
			fail++
			continue
		}
		t.Fatalf("unexpected refresh error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d refresh failures, got %d", n-1, fail)
	}
}

func TestRefreshRespectsAccountState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct, tokens := loginActive(t, h)

	for i := 0; i < 5; i++ {
		if _, err := h.engine.Login(ctx, model.KindLearner, "ada@example.com", "wrong-password-1"); err == nil {
			t.Fatal("expected failure")
		}
	}
	_, err := h.engine.Refresh(ctx, tokens.RefreshToken)
	requireLocked(t, err, ErrAccountLocked, 24*time.Hour)

	h.clock.Advance(24 * time.Hour)
	relogin, err := h.engine.Login(ctx, model.KindLearner, "ada@example.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := h.engine.accounts.Update(ctx, acct.ID, func(a *model.Account) error {
		a.IsActive = false
		return nil
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := h.engine.Refresh(ctx, relogin.RefreshToken); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestLoadAccountChecksKind(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct, tokens := loginActive(t, h)

	p, err := h.engine.Authenticate(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	loaded, err := h.engine.LoadAccount(ctx, p)
	if err != nil || loaded.ID != acct.ID {
		t.Fatalf("LoadAccount: %+v, %v", loaded, err)
	}

	p.Kind = model.KindStaff
	if _, err := h.engine.LoadAccount(ctx, p); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found for kind mismatch, got %v", err)
	}
}

func TestIssueSessionRequiresActiveAccount(t *testing.T) {
	h := newHarness(t)
	inactive := h.storeAccount(t, model.KindStaff, "staff@example.com", "", false)

	if _, err := h.engine.IssueSession(context.Background(), inactive); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}

	inactive.IsActive = true
	tokens, err := h.engine.IssueSession(context.Background(), inactive)
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}
	if tokens.Kind != model.KindStaff {
		t.Fatalf("expected staff token, got %s", tokens.Kind)
	}
}
