// Package otel publishes kindauth engine counters as OpenTelemetry observable
// instruments.
//
// [New] registers one Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per latency bucket, all fed from a single callback that
// reads the engine snapshot on each collection. The caller owns the
// MeterProvider.
package otel
