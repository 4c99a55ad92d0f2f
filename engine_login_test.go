package kindauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/kindauth/model"
	"github.com/MrEthical07/kindauth/password"
)

func TestLoginLockoutSequence(t *testing.T) {
	h := newHarness(t)
	acct := h.activeAccount(t, "ada@example.com", "")
	ctx := context.Background()

	for _, want := range []int{4, 3, 2, 1} {
		_, err := h.engine.Login(ctx, model.KindLearner, "ada@example.com", "wrong-password-1")
		requireAttempts(t, err, ErrInvalidCredentials, want)
	}

	_, err := h.engine.Login(ctx, model.KindLearner, "ada@example.com", "wrong-password-1")
	requireLocked(t, err, ErrAccountLocked, 24*time.Hour)

	// The correct password does not bypass an active lock.
	_, err = h.engine.Login(ctx, model.KindLearner, "ada@example.com", testPassword)
	requireLocked(t, err, ErrAccountLocked, 24*time.Hour)

	h.clock.Advance(time.Hour)
	_, err = h.engine.Login(ctx, model.KindLearner, "ada@example.com", testPassword)
	requireLocked(t, err, ErrAccountLocked, 23*time.Hour)

	h.clock.Advance(23 * time.Hour)
	tokens, err := h.engine.Login(ctx, model.KindLearner, "ADA@example.com ", testPassword)
	if err != nil {
		t.Fatalf("login after lock expiry failed: %v", err)
	}
	if tokens.AccountID != acct.ID || tokens.Kind != model.KindLearner {
		t.Fatalf("unexpected token owner %s/%s", tokens.AccountID, tokens.Kind)
	}

	stored := h.account(t, acct.ID)
	if stored.Login.Count != 0 || !stored.Login.LockUntil.IsZero() {
		t.Fatalf("expected cleared login lockout, got %+v", stored.Login)
	}
}

func TestLoginSuccessResetsCounter(t *testing.T) {
	h := newHarness(t)
	acct := h.activeAccount(t, "", "+15550001111")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.engine.Login(ctx, model.KindLearner, "+1 555-000-1111", "wrong-password-1"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if _, err := h.engine.Login(ctx, model.KindLearner, "+15550001111", testPassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	_, err := h.engine.Login(ctx, model.KindLearner, "+15550001111", "wrong-password-1")
	requireAttempts(t, err, ErrInvalidCredentials, 4)
	if got := h.account(t, acct.ID).Login.Count; got != 1 {
		t.Fatalf("expected count 1, got %d", got)
	}
}

func TestLoginUnknownIdentityLooksLikeFirstFailure(t *testing.T) {
	h := newHarness(t)
	h.activeAccount(t, "ada@example.com", "")

	_, err := h.engine.Login(context.Background(), model.KindLearner, "nobody@example.com", testPassword)
	requireAttempts(t, err, ErrInvalidCredentials, 4)
}

func TestLoginScopedToKind(t *testing.T) {
	h := newHarness(t)
	h.activeAccount(t, "ada@example.com", "")
	staff := h.storeAccount(t, model.KindStaff, "ada@example.com", "", true)

	tokens, err := h.engine.Login(context.Background(), model.KindStaff, "ada@example.com", testPassword)
	if err != nil {
		t.Fatalf("staff login failed: %v", err)
	}
	if tokens.AccountID != staff.ID {
		t.Fatalf("expected staff account %s, got %s", staff.ID, tokens.AccountID)
	}

	_, err = h.engine.Login(context.Background(), model.KindOrg, "ada@example.com", testPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for other kind, got %v", err)
	}
}

func TestLoginRejectsMalformedInput(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name       string
		kind       model.Kind
		identifier string
		password   string
	}{
		{"unknown kind", model.Kind("admin"), "ada@example.com", testPassword},
		{"empty identifier", model.KindLearner, "", testPassword},
		{"bad phone", model.KindLearner, "12ab", testPassword},
		{"empty password", model.KindLearner, "ada@example.com", ""},
	}
	for _, tc := range cases {
		_, err := h.engine.Login(context.Background(), tc.kind, tc.identifier, tc.password)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestLoginInactiveSendsActivationCodes(t *testing.T) {
	h := newHarness(t)
	acct := h.storeAccount(t, model.KindInstructor, "grace@example.com", "+15550002222", false)
	ctx := context.Background()

	// Two failures first; the inactive path must clear them.
	for i := 0; i < 2; i++ {
		if _, err := h.engine.Login(ctx, model.KindInstructor, "grace@example.com", "wrong-password-1"); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := h.engine.Login(ctx, model.KindInstructor, "grace@example.com", testPassword)
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
	var inactive *InactiveError
	if !errors.As(err, &inactive) {
		t.Fatalf("expected *InactiveError, got %T", err)
	}
	if len(inactive.Deliveries) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(inactive.Deliveries))
	}
	for _, d := range inactive.Deliveries {
		if d.Purpose != model.PurposeActivation || !d.Delivered() {
			t.Fatalf("unexpected delivery %+v", d)
		}
		if !strings.Contains(d.Destination, "***") {
			t.Fatalf("expected masked destination, got %q", d.Destination)
		}
	}
	if h.gateway.count() != 2 {
		t.Fatalf("expected 2 messages, got %d", h.gateway.count())
	}
	if got := h.account(t, acct.ID).Login.Count; got != 0 {
		t.Fatalf("expected login counter reset, got %d", got)
	}
}

func TestLoginUpgradesLegacyBcryptHash(t *testing.T) {
	h := newHarness(t, func(b *Builder) { b.WithMetricsEnabled(true) })
	acct := h.activeAccount(t, "ada@example.com", "")

	legacy, err := password.NewBcrypt(4, password.Policy{})
	if err != nil {
		t.Fatalf("NewBcrypt failed: %v", err)
	}
	digest, err := legacy.Hash(testPassword)
	if err != nil {
		t.Fatalf("bcrypt hash failed: %v", err)
	}
	if _, err := h.engine.accounts.Update(context.Background(), acct.ID, func(a *model.Account) error {
		a.PasswordHash = digest
		return nil
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if _, err := h.engine.Login(context.Background(), model.KindLearner, "ada@example.com", testPassword); err != nil {
		t.Fatalf("login with bcrypt digest failed: %v", err)
	}
	upgraded := h.account(t, acct.ID).PasswordHash
	if !strings.HasPrefix(upgraded, "$argon2id$") {
		t.Fatalf("expected argon2id digest after login, got %q", upgraded)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricPasswordRehash]; got != 1 {
		t.Fatalf("expected 1 rehash, got %d", got)
	}

	if _, err := h.engine.Login(context.Background(), model.KindLearner, "ada@example.com", testPassword); err != nil {
		t.Fatalf("login with upgraded digest failed: %v", err)
	}
}

func TestLoginCorruptHashCountsAsFailure(t *testing.T) {
	h := newHarness(t)
	acct := h.activeAccount(t, "ada@example.com", "")
	if _, err := h.engine.accounts.Update(context.Background(), acct.ID, func(a *model.Account) error {
		a.PasswordHash = "not-a-digest"
		return nil
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	_, err := h.engine.Login(context.Background(), model.KindLearner, "ada@example.com", testPassword)
	requireAttempts(t, err, ErrInvalidCredentials, 4)
}
