// Package metrics is the Prometheus-backed instrumentation for the
// dispatcher and pipe pool, grounded on the teacher's
// pkg/metrics/prometheus constructors (promauto.With(reg) building a
// struct of vectors), collapsed into one package since this module has
// a single instrumented subsystem rather than the teacher's per-adapter
// split (badger/cache/nfs/s3).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector this module exposes. A nil *Metrics is
// valid everywhere it's accepted: every Record/Set method is a no-op on
// a nil receiver, so callers don't have to branch on whether metrics
// are enabled.
type Metrics struct {
	reg *prometheus.Registry

	dispatchLatency *prometheus.HistogramVec
	dispatchErrors  *prometheus.CounterVec
	handleCount     *prometheus.GaugeVec
	poolOccupancy   prometheus.Gauge
	pipesAcquired   prometheus.Counter
	pipesRecycled   prometheus.Counter
	pipesClosed     prometheus.Counter
}

// New creates a Metrics bound to a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		reg: reg,
		dispatchLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tuplremote_dispatch_duration_seconds",
			Help:    "Handler dispatch latency by selector.",
			Buckets: prometheus.DefBuckets,
		}, []string{"selector"}),
		dispatchErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tuplremote_dispatch_errors_total",
			Help: "Handler dispatch failures by selector and error kind.",
		}, []string{"selector", "kind"}),
		handleCount: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "tuplremote_handles",
			Help: "Live registry handles by kind, for one session.",
		}, []string{"kind"}),
		poolOccupancy: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "tuplremote_worker_pool_occupancy",
			Help: "In-flight handler calls on the bounded worker pool.",
		}),
		pipesAcquired: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "tuplremote_pipes_acquired_total",
			Help: "Pipes acquired from a PipePool.",
		}),
		pipesRecycled: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "tuplremote_pipes_recycled_total",
			Help: "Pipes released back to a PipePool and reused.",
		}),
		pipesClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "tuplremote_pipes_closed_total",
			Help: "Pipes torn down rather than recycled.",
		}),
	}
}

// Handler returns the Prometheus exposition HTTP handler for this
// registry, suitable for mounting at GET /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics disabled", http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// RecordDispatch records one handler invocation's latency and, if err is
// non-nil, its error kind.
func (m *Metrics) RecordDispatch(selector string, start time.Time, errKind string) {
	if m == nil {
		return
	}
	m.dispatchLatency.WithLabelValues(selector).Observe(time.Since(start).Seconds())
	if errKind != "" {
		m.dispatchErrors.WithLabelValues(selector, errKind).Inc()
	}
}

// SetPoolOccupancy records the worker pool's current in-flight count.
func (m *Metrics) SetPoolOccupancy(n int) {
	if m == nil {
		return
	}
	m.poolOccupancy.Set(float64(n))
}

// SetHandleCounts replaces the handle-count gauge vector with counts,
// keyed by HandleKind.String().
func (m *Metrics) SetHandleCounts(counts map[string]int) {
	if m == nil {
		return
	}
	m.handleCount.Reset()
	for kind, n := range counts {
		m.handleCount.WithLabelValues(kind).Set(float64(n))
	}
}

// PipeAcquired records a pipe being handed out by a PipePool.
func (m *Metrics) PipeAcquired() {
	if m == nil {
		return
	}
	m.pipesAcquired.Inc()
}

// PipeRecycled records a pipe being returned to a PipePool for reuse.
func (m *Metrics) PipeRecycled() {
	if m == nil {
		return
	}
	m.pipesRecycled.Inc()
}

// PipeClosed records a pipe being torn down instead of recycled.
func (m *Metrics) PipeClosed() {
	if m == nil {
		return
	}
	m.pipesClosed.Inc()
}
