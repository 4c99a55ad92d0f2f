package otel

import (
	"context"
	"sync"
	"testing"

	kindauth "github.com/MrEthical07/kindauth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[kindauth.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() kindauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := kindauth.MetricsSnapshot{
		Counters:   make(map[kindauth.MetricID]uint64, len(f.counters)),
		Histograms: map[kindauth.MetricID][]uint64{},
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	if f.latency != nil {
		out.Histograms[kindauth.MetricAuthenticateLatency] = append([]uint64(nil), f.latency...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				return sum.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterObservesCounters(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		counters: map[kindauth.MetricID]uint64{
			kindauth.MetricLoginLocked: 4,
		},
		latency: []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		dropped: 2,
	}

	exp, err := New(provider.Meter("kindauth-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if v, ok := findSum(rm, "kindauth_login_locked_total"); !ok || v != 4 {
		t.Fatalf("login_locked = %d (found %v), want 4", v, ok)
	}
	if v, ok := findSum(rm, "kindauth_audit_dropped_total"); !ok || v != 2 {
		t.Fatalf("audit_dropped = %d (found %v), want 2", v, ok)
	}
}

func TestExporterRejectsNilArgs(t *testing.T) {
	_, provider := newMeter()
	if _, err := New(provider.Meter("kindauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := New(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{counters: map[kindauth.MetricID]uint64{kindauth.MetricLoginSuccess: 1}}

	exp, err := New(provider.Meter("kindauth-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[kindauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
