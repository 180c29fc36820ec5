package metrics

import "github.com/prometheus/client_golang/prometheus"

// Self-monitoring metrics for the exporter itself. These use the
// "lnd_exporter_" prefix to distinguish them from the lnd_* business
// metrics.
//
// All metrics are pre-registered via RegisterSelfMetrics and updated
// imperatively by the collector.
var (
	// CollectDuration tracks the duration of each collection cycle.
	CollectDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lnd_exporter_collect_duration_seconds",
		Help:    "Duration of a complete collection cycle in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// ScrapeErrors counts failed scrapes per RPC.
	ScrapeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lnd_exporter_scrape_errors_total",
		Help: "Total number of failed scrapes, partitioned by RPC.",
	}, []string{"scrape"})

	// CursorIndexOffset reports the current payment pagination offset.
	CursorIndexOffset = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lnd_exporter_payment_index_offset",
		Help: "Current index offset of the payment pagination cursor.",
	})

	// PersistDuration tracks the duration of cursor snapshot persist operations.
	PersistDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lnd_exporter_cursor_persist_duration_seconds",
		Help:    "Duration of cursor snapshot persist operations in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)

// RegisterSelfMetrics registers all self-monitoring metrics with the given
// Prometheus registry.
func RegisterSelfMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		CollectDuration,
		ScrapeErrors,
		CursorIndexOffset,
		PersistDuration,
	)
}
