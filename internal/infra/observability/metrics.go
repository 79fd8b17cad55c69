package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFF.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	cacheLoads        *prometheus.CounterVec
	cacheLoadDuration *prometheus.HistogramVec
	mutations         *prometheus.CounterVec
	wizardSteps       *prometheus.CounterVec
	activeSessions    prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "globalsend_ledger_call_duration_seconds",
				Help:    "Duration of ledger calls by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "globalsend_ledger_errors_total",
				Help: "Total errors returned by the ledger.",
			},
			[]string{"operation"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "globalsend_cache_hits_total",
				Help: "Reads served from a fresh cache entry.",
			},
			[]string{"key"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "globalsend_cache_misses_total",
				Help: "Reads that started or joined a load.",
			},
			[]string{"key"},
		),
		cacheLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "globalsend_cache_loads_total",
				Help: "Remote loads issued by the cache, by outcome.",
			},
			[]string{"key", "outcome"},
		),
		cacheLoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "globalsend_cache_load_duration_seconds",
				Help:    "Duration of cache loads.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"key"},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "globalsend_mutations_total",
				Help: "Ledger mutations by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		wizardSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "globalsend_wizard_transitions_total",
				Help: "Send-money wizard transitions by action and result.",
			},
			[]string{"action", "result"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "globalsend_active_sessions",
				Help: "Sessions currently holding a cache.",
			},
		),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordRequestDuration records the duration of a ledger call.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the ledger error counter.
func (m *Metrics) IncrExternalError(operation string) {
	m.externalErrors.WithLabelValues(operation).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(key string) {
	m.cacheHits.WithLabelValues(key).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(key string) {
	m.cacheMisses.WithLabelValues(key).Inc()
}

// RecordCacheLoad records one remote load made by the cache.
func (m *Metrics) RecordCacheLoad(key string, d time.Duration, err error) {
	m.cacheLoads.WithLabelValues(key, outcome(err)).Inc()
	m.cacheLoadDuration.WithLabelValues(key).Observe(d.Seconds())
}

// RecordMutation counts a ledger mutation.
func (m *Metrics) RecordMutation(operation string, err error) {
	m.mutations.WithLabelValues(operation, outcome(err)).Inc()
}

// RecordWizardTransition counts a wizard action; result is "ok" or a rejection reason.
func (m *Metrics) RecordWizardTransition(action, result string) {
	m.wizardSteps.WithLabelValues(action, result).Inc()
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() { m.activeSessions.Inc() }

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() { m.activeSessions.Dec() }

// CacheStats summarizes cache effectiveness for one key.
type CacheStats struct {
	Key        string  `json:"key"`
	Hits       float64 `json:"hits"`
	Misses     float64 `json:"misses"`
	Loads      float64 `json:"loads"`
	LoadErrors float64 `json:"load_errors"`
	HitRate    float64 `json:"hit_rate"`
}

// CacheSnapshot returns the current counters for each key, suitable for the
// GET /v1/metrics/cache endpoint.
func (m *Metrics) CacheSnapshot(keys ...string) []CacheStats {
	out := make([]CacheStats, 0, len(keys))
	for _, k := range keys {
		hits := getCounterValue(m.cacheHits.WithLabelValues(k))
		misses := getCounterValue(m.cacheMisses.WithLabelValues(k))
		ok := getCounterValue(m.cacheLoads.WithLabelValues(k, "success"))
		failed := getCounterValue(m.cacheLoads.WithLabelValues(k, "error"))

		rate := float64(0)
		if hits+misses > 0 {
			rate = hits / (hits + misses)
		}
		out = append(out, CacheStats{
			Key:        k,
			Hits:       hits,
			Misses:     misses,
			Loads:      ok + failed,
			LoadErrors: failed,
			HitRate:    rate,
		})
	}
	return out
}

// getCounterValue extracts the current float64 value from a counter.
func getCounterValue(counter prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
