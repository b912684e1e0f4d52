// Package prometheus exposes the security core's counters as a
// prometheus.Collector so they can join an application's existing
// registry alongside its own metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/campuskit/authcore/internal/metrics"
)

// Source supplies counter snapshots, typically an *authcore.Guard.
type Source interface {
	MetricsSnapshot() metrics.Snapshot
	AuditDropped() uint64
}

// Collector implements prometheus.Collector over a Source. Collect reads
// a fresh snapshot on every scrape; nothing is cached between scrapes.
type Collector struct {
	source    Source
	namespace string

	descs   map[metrics.ID]*prometheus.Desc
	dropped *prometheus.Desc
}

// NewCollector builds a collector. namespace defaults to "authcore" when
// empty.
func NewCollector(source Source, namespace string) *Collector {
	if namespace == "" {
		namespace = "authcore"
	}

	descs := make(map[metrics.ID]*prometheus.Desc, metrics.Count)
	for i := 0; i < metrics.Count; i++ {
		id := metrics.ID(i)
		descs[id] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", id.Name()),
			"Security core counter "+id.Name()+".",
			nil, nil,
		)
	}

	return &Collector{
		source:    source,
		namespace: namespace,
		descs:     descs,
		dropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "audit_dropped_total"),
			"Audit events discarded because the dispatcher buffer was full.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range c.descs {
		ch <- desc
	}
	ch <- c.dropped
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.source.MetricsSnapshot()
	for id, desc := range c.descs {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(snapshot[id]))
	}
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}
