package prometheus

import (
	"net/http"

	kindauth "github.com/MrEthical07/kindauth"
	"github.com/MrEthical07/kindauth/metrics/export/internaldefs"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSource is satisfied by *kindauth.Engine.
type MetricsSource interface {
	MetricsSnapshot() kindauth.MetricsSnapshot
	AuditDropped() uint64
	AuditDroppedByEvent() map[string]uint64
}

type counterDesc struct {
	id   kindauth.MetricID
	desc *prom.Desc
}

type histogramDesc struct {
	id   kindauth.MetricID
	desc *prom.Desc
}

// Collector converts engine snapshots into Prometheus const metrics.
type Collector struct {
	source     MetricsSource
	counters   []counterDesc
	histograms []histogramDesc
	dropped    *prom.Desc
	droppedBy  *prom.Desc
}

var _ prom.Collector = (*Collector)(nil)

// NewCollector builds a collector over source.
func NewCollector(source MetricsSource) *Collector {
	c := &Collector{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		dropped: prom.NewDesc(
			"kindauth_audit_dropped_total",
			"Dropped audit events due to dispatcher backpressure.",
			nil, nil,
		),
		droppedBy: prom.NewDesc(
			"kindauth_audit_dropped_by_event_total",
			"Dropped audit events by event type.",
			[]string{"event"}, nil,
		),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.histograms {
		ch <- d.desc
	}
	ch <- c.dropped
	ch <- c.droppedBy
}

func (c *Collector) Collect(ch chan<- prom.Metric) {
	if c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()

	for _, d := range c.counters {
		ch <- prom.MustNewConstMetric(d.desc, prom.CounterValue, float64(snapshot.Counters[d.id]))
	}
	for _, d := range c.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[d.id]))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[i]
		}
		// The engine keeps bucket counts only, so the sum is reported as zero.
		ch <- prom.MustNewConstHistogram(d.desc, cumulative[len(cumulative)-1], 0, buckets)
	}
	ch <- prom.MustNewConstMetric(c.dropped, prom.CounterValue, float64(c.source.AuditDropped()))
	for event, n := range c.source.AuditDroppedByEvent() {
		ch <- prom.MustNewConstMetric(c.droppedBy, prom.CounterValue, float64(n), event)
	}
}

// NewRegistry returns a private registry holding the collector plus the
// standard Go and process collectors.
func NewRegistry(source MetricsSource) *prom.Registry {
	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(NewCollector(source))
	return reg
}

// Handler serves source's metrics in the Prometheus exposition format.
func Handler(source MetricsSource) http.Handler {
	return promhttp.HandlerFor(NewRegistry(source), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
