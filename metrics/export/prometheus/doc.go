// Package prometheus exposes kindauth engine counters through a
// client_golang [prom.Collector].
//
// [NewCollector] reads the engine's lock-free snapshot on every scrape; it
// never registers itself globally. Callers register it on their own registry
// or use [Handler] for a self-contained /metrics endpoint. Counter names are
// prefixed kindauth_*_total; the single histogram is
// kindauth_authenticate_latency_seconds.
package prometheus
