package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes gateway-level Prometheus metrics. All methods are nil-safe
// so call sites in tests can run without a registry.
type Recorder struct {
	upstreamRequests  *prometheus.CounterVec
	upstreamLatency   *prometheus.HistogramVec
	staleLoads        prometheus.Counter
	consoleEvents     *prometheus.CounterVec
	magicLinkRequests *prometheus.CounterVec
}

var (
	instance *Recorder
	once     sync.Once
)

// New creates (once) the Prometheus metrics recorder. Registration with the
// default registry happens on first call only.
func New() *Recorder {
	once.Do(func() {
		instance = &Recorder{
			upstreamRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "flowgate_upstream_requests_total",
					Help: "Total number of requests sent to the flow backend",
				},
				[]string{"operation", "outcome"},
			),
			upstreamLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "flowgate_upstream_request_duration_seconds",
					Help:    "Duration of backend requests in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"operation"},
			),
			staleLoads: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "flowgate_console_stale_loads_discarded_total",
					Help: "Tab loads that resolved after their generation was superseded",
				},
			),
			consoleEvents: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "flowgate_console_events_total",
					Help: "Console state machine events by kind",
				},
				[]string{"event"},
			),
			magicLinkRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "flowgate_magic_link_requests_total",
					Help: "Magic link request submissions by outcome",
				},
				[]string{"outcome"},
			),
		}
	})
	return instance
}

// RecordUpstreamRequest records one backend call with its outcome and latency.
func (r *Recorder) RecordUpstreamRequest(operation, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.upstreamRequests.WithLabelValues(operation, outcome).Inc()
	r.upstreamLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordStaleLoad records a discarded late tab-load completion.
func (r *Recorder) RecordStaleLoad() {
	if r == nil {
		return
	}
	r.staleLoads.Inc()
}

// RecordConsoleEvent records a console state machine event.
func (r *Recorder) RecordConsoleEvent(event string) {
	if r == nil {
		return
	}
	r.consoleEvents.WithLabelValues(event).Inc()
}

// RecordMagicLinkRequest records a magic link submission outcome.
func (r *Recorder) RecordMagicLinkRequest(outcome string) {
	if r == nil {
		return
	}
	r.magicLinkRequests.WithLabelValues(outcome).Inc()
}
