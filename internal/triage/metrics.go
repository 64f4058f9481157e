package triage

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/sentinel/internal/classify"
)

// Metrics holds Prometheus metrics for the signal pipeline.
type Metrics struct {
	TriagesTotal     *prometheus.CounterVec
	BatchDuration    prometheus.Histogram
	BatchSelected    prometheus.Histogram
	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	RateLimitSkips   prometheus.Counter
	ArchiveSynced    prometheus.Counter
	ArchiveDeleted   prometheus.Counter
	ArchiveErrors    prometheus.Counter
	RetentionDeleted prometheus.Counter
	RetentionRuns    prometheus.Counter
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_triages_total",
			Help: "Total triaged signals by outcome.",
		}, []string{"outcome"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_triage_batch_duration_seconds",
			Help:    "Duration of triage batch runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}),
		BatchSelected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_triage_batch_selected",
			Help:    "Signals selected per triage batch.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 .. 100
		}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_provider_calls_total",
			Help: "Total classification provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentinel_provider_call_duration_seconds",
			Help:    "Duration of individual provider calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s .. ~64s
		}, []string{"provider"}),
		RateLimitSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_rate_limit_skips_total",
			Help: "Primary-provider calls skipped because the instance budget was exhausted.",
		}),
		ArchiveSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_archive_synced_total",
			Help: "Signals upserted into the cold store.",
		}),
		ArchiveDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_archive_deleted_total",
			Help: "Signals deleted from the primary store after a successful sync.",
		}),
		ArchiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_archive_errors_total",
			Help: "Per-row archive sync failures.",
		}),
		RetentionDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_retention_deleted_total",
			Help: "Stale signals deleted by the retention janitor.",
		}),
		RetentionRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_retention_runs_total",
			Help: "Retention janitor invocations.",
		}),
	}

	reg.MustRegister(
		m.TriagesTotal,
		m.BatchDuration,
		m.BatchSelected,
		m.ProviderCalls,
		m.ProviderDuration,
		m.RateLimitSkips,
		m.ArchiveSynced,
		m.ArchiveDeleted,
		m.ArchiveErrors,
		m.RetentionDeleted,
		m.RetentionRuns,
	)

	return m
}

// ObserveBatch records the aggregate outcome of one triage batch.
func (m *Metrics) ObserveBatch(res *BatchResult, duration float64) {
	m.TriagesTotal.WithLabelValues("validated").Add(float64(res.Validated))
	m.TriagesTotal.WithLabelValues("dismissed").Add(float64(res.Dismissed))
	m.TriagesTotal.WithLabelValues("escalated").Add(float64(res.Escalated))
	m.TriagesTotal.WithLabelValues("error").Add(float64(res.Errors))
	m.BatchDuration.Observe(duration)
	m.BatchSelected.Observe(float64(len(res.Outcomes)))
}

// GatewayHooks returns classify.Hooks that increment the corresponding metrics.
func (m *Metrics) GatewayHooks() classify.Hooks {
	return classify.Hooks{
		OnProviderCall: func(provider, outcome string, duration float64) {
			m.ProviderCalls.WithLabelValues(provider, outcome).Inc()
			m.ProviderDuration.WithLabelValues(provider).Observe(duration)
		},
		OnRateLimited: func() {
			m.RateLimitSkips.Inc()
		},
	}
}
