// Package metrics holds the Prometheus collectors for sync runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jobsync"

// Metrics is nil-safe: every recording method is a no-op on a nil receiver,
// so components can be built without a registry in tests.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDurationSeconds *prometheus.HistogramVec
	RunsInFlight       prometheus.Gauge

	SourceDurationSeconds *prometheus.HistogramVec
	SourceJobsTotal       *prometheus.CounterVec
	SourceFailuresTotal   *prometheus.CounterVec

	UpsertBatchesTotal *prometheus.CounterVec
	LifecycleJobsTotal *prometheus.CounterVec
	DedupJobsTotal     *prometheus.CounterVec

	HTTPRequestsTotal *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{}
	m.initRunMetrics(factory)
	m.initSourceMetrics(factory)
	m.initStoreMetrics(factory)

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status class",
		},
		[]string{"method", "route", "status"},
	)
	return m
}

func (m *Metrics) initRunMetrics(factory promauto.Factory) {
	m.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Finalized sync runs by type and terminal status",
		},
		[]string{"sync_type", "status"},
	)
	m.RunDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of sync runs",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"sync_type"},
	)
	m.RunsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_in_flight",
			Help:      "Sync runs currently executing in this process",
		},
	)
}

func (m *Metrics) initSourceMetrics(factory promauto.Factory) {
	m.SourceDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "duration_seconds",
			Help:      "Time spent syncing one source",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"source", "success"},
	)
	m.SourceJobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "jobs_total",
			Help:      "Jobs seen per source by outcome",
		},
		[]string{"source", "outcome"},
	)
	m.SourceFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "failures_total",
			Help:      "Source syncs that ended unsuccessfully",
		},
		[]string{"source"},
	)
}

func (m *Metrics) initStoreMetrics(factory promauto.Factory) {
	m.UpsertBatchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "upsert_batches_total",
			Help:      "Upsert sub-batches by result",
		},
		[]string{"result"},
	)
	m.LifecycleJobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "lifecycle_jobs_total",
			Help:      "Jobs moved by lifecycle maintenance",
		},
		[]string{"action"},
	)
	m.DedupJobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "dedup_jobs_total",
			Help:      "Duplicate jobs handled by pass and action",
		},
		[]string{"pass", "action"},
	)
}

func (m *Metrics) ObserveRun(syncType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(syncType, status).Inc()
	m.RunDurationSeconds.WithLabelValues(syncType).Observe(d.Seconds())
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsInFlight.Inc()
}

func (m *Metrics) RunFinished() {
	if m == nil {
		return
	}
	m.RunsInFlight.Dec()
}

// ObserveSource records one source outcome. Zero counts are skipped.
func (m *Metrics) ObserveSource(source string, success bool, d time.Duration, counts map[string]int) {
	if m == nil {
		return
	}
	ok := "false"
	if success {
		ok = "true"
	}
	m.SourceDurationSeconds.WithLabelValues(source, ok).Observe(d.Seconds())
	if !success {
		m.SourceFailuresTotal.WithLabelValues(source).Inc()
	}
	for outcome, n := range counts {
		if n > 0 {
			m.SourceJobsTotal.WithLabelValues(source, outcome).Add(float64(n))
		}
	}
}

func (m *Metrics) UpsertBatch(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.UpsertBatchesTotal.WithLabelValues("committed").Inc()
		return
	}
	m.UpsertBatchesTotal.WithLabelValues("rolled_back").Inc()
}

func (m *Metrics) Lifecycle(action string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.LifecycleJobsTotal.WithLabelValues(action).Add(float64(n))
}

func (m *Metrics) Dedup(pass, action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DedupJobsTotal.WithLabelValues(pass, action).Add(float64(n))
}

func (m *Metrics) HTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
