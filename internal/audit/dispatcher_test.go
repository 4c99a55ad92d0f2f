package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	if d := NewDispatcher(Config{Enabled: false}, NoOpSink{}); d != nil {
		t.Fatalf("expected nil dispatcher when disabled")
	}
	var d *Dispatcher
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatalf("nil dispatcher should report zero drops")
	}
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 delivered events, got %d", got)
	}

	d.Emit(context.Background(), Event{EventType: "after_close"})
	if got := sink.count.Load(); got != 50 {
		t.Fatalf("emit after close must be ignored, got %d", got)
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// The worker blocks on the first event; the second fills the buffer.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "otp_issued"})
	}

	deadline := time.Now().Add(time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if d.Dropped() == 0 {
		t.Fatalf("expected dropped events with a full buffer")
	}
	if got := d.DroppedByType()["otp_issued"]; got != d.Dropped() {
		t.Fatalf("expected all %d drops under otp_issued, got %d", d.Dropped(), got)
	}

	close(sink.gate)
	d.Close()
}

func TestDispatcherCountsDropsPerEventType(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	// Park the worker on one event and fill the single buffer slot.
	d.Emit(context.Background(), Event{EventType: "login_success"})
	deadline := time.Now().Add(time.Second)
	for len(d.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{EventType: "login_success"})

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}
	d.Emit(context.Background(), Event{EventType: "otp_locked"})

	got := d.DroppedByType()
	if got["login_failure"] != 3 || got["otp_locked"] != 1 {
		t.Fatalf("unexpected per-type drops %v", got)
	}
	if _, ok := got["login_success"]; ok {
		t.Fatalf("delivered type must not appear in drops: %v", got)
	}
	if d.Dropped() != 4 {
		t.Fatalf("expected 4 drops in total, got %d", d.Dropped())
	}
}

func TestDispatcherStampsMissingTimestamp(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, Now: func() time.Time { return fixed }}, sink)
	d.Emit(context.Background(), Event{EventType: "logout"})
	stamped := fixed.Add(time.Minute)
	d.Emit(context.Background(), Event{EventType: "logout", Timestamp: stamped})
	d.Close()

	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].Timestamp.Equal(fixed) || !events[1].Timestamp.Equal(stamped) {
		t.Fatalf("unexpected timestamps %v, %v", events[0].Timestamp, events[1].Timestamp)
	}
}

func TestDispatcherBlockingRespectsContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Emit(ctx, Event{EventType: "a"})
		d.Emit(ctx, Event{EventType: "b"})
		d.Emit(ctx, Event{EventType: "c"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("blocking emit did not honor context cancellation")
	}

	close(sink.gate)
	d.Close()

	if got := d.DroppedByType(); got["a"]+got["b"]+got["c"] == 0 {
		t.Fatalf("events abandoned on a cancelled context should count as dropped, got %v", got)
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{EventType: "logout", AccountID: "a1", Kind: "staff", Success: true})
	s.Emit(context.Background(), Event{EventType: "login_failure", Error: "invalid_credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.AccountID != "a1" || ev.Kind != "staff" || !ev.Success {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := SlogSink{Logger: logger}

	s.Emit(context.Background(), Event{EventType: "otp_locked", AccountID: "a2", Metadata: map[string]string{"channel": "email"}})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["level"] != "WARN" {
		t.Fatalf("failed event should log at WARN, got %v", rec["level"])
	}
	if rec["meta.channel"] != "email" || rec["account_id"] != "a2" {
		t.Fatalf("missing attrs: %v", rec)
	}
}
