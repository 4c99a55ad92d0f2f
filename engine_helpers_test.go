package kindauth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/kindauth/messaging"
	"github.com/MrEthical07/kindauth/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-password-123"

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureGateway struct {
	mu   sync.Mutex
	sent []messaging.Message
	fail map[model.Channel]error
}

func (g *captureGateway) Send(_ context.Context, msg messaging.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail[msg.Channel]; err != nil {
		return err
	}
	g.sent = append(g.sent, msg)
	return nil
}

func (g *captureGateway) failChannel(ch model.Channel, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail == nil {
		g.fail = map[model.Channel]error{}
	}
	g.fail[ch] = err
}

func (g *captureGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

// lastCode returns the code in the newest message sent to dest.
func (g *captureGateway) lastCode(t *testing.T, dest string) string {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.sent) - 1; i >= 0; i-- {
		if g.sent[i].Destination != dest {
			continue
		}
		m := codePattern.FindStringSubmatch(g.sent[i].Body)
		if m == nil {
			t.Fatalf("no code in message body %q", g.sent[i].Body)
		}
		return m[1]
	}
	t.Fatalf("no message sent to %s", dest)
	return ""
}

type harness struct {
	engine  *Engine
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	gateway *captureGateway
	clock   *testClock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AppName = "Campus"
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Token.Issuer = "kindauth-test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newHarness(t *testing.T, opts ...func(*Builder)) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	h := &harness{
		mr:      mr,
		rdb:     rdb,
		gateway: &captureGateway{},
		clock:   newTestClock(),
	}

	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithGateway(h.gateway).
		WithClock(h.clock.Now).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, opt := range opts {
		opt(b)
	}
	h.engine, err = b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		h.engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return h
}

// activeAccount stores a fully verified learner account with testPassword.
func (h *harness) activeAccount(t *testing.T, email, phone string) model.Account {
	t.Helper()
	return h.storeAccount(t, model.KindLearner, email, phone, true)
}

func (h *harness) storeAccount(t *testing.T, kind model.Kind, email, phone string, active bool) model.Account {
	t.Helper()
	digest, err := h.engine.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	acct := model.Account{
		Kind:          kind,
		Email:         email,
		Phone:         phone,
		PasswordHash:  digest,
		IsActive:      active,
		EmailVerified: active && email != "",
		PhoneVerified: active && phone != "",
	}
	if err := h.engine.accounts.Create(context.Background(), &acct); err != nil {
		t.Fatalf("create account failed: %v", err)
	}
	return acct
}

func (h *harness) account(t *testing.T, id string) model.Account {
	t.Helper()
	acct, err := h.engine.accounts.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	return acct
}

func requireLocked(t *testing.T, err error, sentinel error, want time.Duration) {
	t.Helper()
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected %v, got %v", sentinel, err)
	}
	got, ok := LockRemaining(err)
	if !ok {
		t.Fatalf("expected *LockedError, got %T", err)
	}
	if got != want {
		t.Fatalf("expected remaining %v, got %v", want, got)
	}
}

func requireAttempts(t *testing.T, err error, sentinel error, want int) {
	t.Helper()
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected %v, got %v", sentinel, err)
	}
	got, ok := AttemptsRemaining(err)
	if !ok {
		t.Fatalf("expected *AttemptsError, got %T", err)
	}
	if got != want {
		t.Fatalf("expected %d attempts remaining, got %d", want, got)
	}
}
