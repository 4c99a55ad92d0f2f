package kindauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/kindauth/model"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

func withAudit(sink AuditSink) func(*Builder) {
	return func(b *Builder) {
		cfg := testConfig()
		cfg.Audit.Enabled = true
		cfg.Audit.BufferSize = 64
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(sink)
	}
}

func nextEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event received", eventType)
		}
	}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	h := newHarness(t, func(b *Builder) { b.WithAuditSink(sink) })
	h.activeAccount(t, "ada@example.com", "")

	_, _ = h.engine.Login(WithClientIP(context.Background(), "203.0.113.1"), model.KindLearner, "ada@example.com", "wrong-password-1")
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditLoginFailureFields(t *testing.T) {
	sink := NewChannelSink(64)
	h := newHarness(t, withAudit(sink))
	acct := h.activeAccount(t, "ada@example.com", "")

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	_, _ = h.engine.Login(ctx, model.KindLearner, "ada@example.com", "super-secret-password")

	ev := nextEvent(t, sink, auditEventLoginFailure)
	if ev.IP != "198.51.100.33" {
		t.Fatalf("expected IP 198.51.100.33, got %q", ev.IP)
	}
	if ev.AccountID != acct.ID || ev.Kind != string(model.KindLearner) {
		t.Fatalf("unexpected subject %s/%s", ev.AccountID, ev.Kind)
	}
	if ev.Success || ev.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("unexpected outcome success=%v error=%q", ev.Success, ev.Error)
	}
	if !ev.Timestamp.Equal(h.clock.Now()) {
		t.Fatalf("expected engine clock timestamp, got %v", ev.Timestamp)
	}
	for _, v := range ev.Metadata {
		if strings.Contains(v, "super-secret-password") {
			t.Fatal("sensitive password leaked in metadata")
		}
	}
}

func TestAuditLockoutAndActivationEvents(t *testing.T) {
	sink := NewChannelSink(64)
	h := newHarness(t, withAudit(sink))
	ctx := context.Background()
	acct := h.storeAccount(t, model.KindLearner, "ada@example.com", "", false)

	for i := 0; i < 5; i++ {
		_, _ = h.engine.Login(ctx, model.KindLearner, "ada@example.com", "wrong-password-1")
	}
	locked := nextEvent(t, sink, auditEventLoginLocked)
	if locked.Error != string(auditErrAccountLocked) {
		t.Fatalf("expected account_locked code, got %q", locked.Error)
	}

	if _, err := h.engine.ResendOTP(ctx, acct.ID, model.ChannelEmail, model.PurposeActivation); err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	issued := nextEvent(t, sink, auditEventOTPIssued)
	if issued.Metadata["purpose"] != string(model.PurposeActivation) || issued.Metadata["channel"] != string(model.ChannelEmail) {
		t.Fatalf("unexpected issue metadata %v", issued.Metadata)
	}
	for _, v := range issued.Metadata {
		if len(v) == 6 && strings.Trim(v, "0123456789") == "" {
			t.Fatal("otp code leaked in audit metadata")
		}
	}

	code := h.gateway.lastCode(t, acct.Email)
	if _, err := h.engine.VerifyOTP(ctx, acct.ID, model.ChannelEmail, model.PurposeActivation, code); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	activated := nextEvent(t, sink, auditEventAccountActivated)
	if !activated.Success || activated.AccountID != acct.ID {
		t.Fatalf("unexpected activation event %+v", activated)
	}
}

func TestAuditLogoutCarriesTokenID(t *testing.T) {
	sink := NewChannelSink(64)
	h := newHarness(t, withAudit(sink))
	_, tokens := loginActive(t, h)

	p, err := h.engine.LogoutSession(context.Background(), tokens.AccessToken)
	if err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	ev := nextEvent(t, sink, auditEventLogout)
	if ev.TokenID != p.TokenID || ev.AccountID != p.AccountID {
		t.Fatalf("unexpected logout event %+v", ev)
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{newAttemptsError(ErrInvalidCredentials, 2), auditErrInvalidCredentials},
		{newLockedError(ErrOTPLocked, time.Minute), auditErrOTPLocked},
		{newLockedError(ErrResendLocked, time.Minute), auditErrResendLocked},
		{newInactiveError(nil), auditErrAccountInactive},
		{fmt.Errorf("%w: dial tcp", model.ErrStoreUnavailable), auditErrUnavailable},
		{model.ErrConflict, auditErrUnavailable},
		{ErrTokenRevoked, auditErrTokenRevoked},
		{errors.New("boom"), auditErrInternal},
	}
	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
