// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	// Producer metrics
	CurveEventsSeen    prometheus.Counter
	CandidatesRejected *prometheus.CounterVec
	CandidatesApproved prometheus.Counter
	WhitelistSize      prometheus.Gauge

	// Listener metrics
	MigrationEventsSeen prometheus.Counter
	MigrationsDropped   *prometheus.CounterVec
	LastEventTimestamp  prometheus.Gauge

	// Execution metrics
	BuysSubmitted    prometheus.Counter
	SellsSubmitted   prometheus.Counter
	BundlesConfirmed prometheus.Counter
	BundlesTimedOut  prometheus.Counter
	DetectToSubmit   prometheus.Histogram

	// Position metrics
	PositionsOpen   prometheus.Gauge
	PositionsClosed *prometheus.CounterVec

	// Infra metrics
	BlockhashAge prometheus.Gauge
}

// NewMetrics registers all metrics against reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "migration_sniper"
	}
	factory := promauto.With(reg)

	return &Metrics{
		CurveEventsSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precog",
			Name:      "curve_events_seen_total",
			Help:      "Total pump.fun trade events observed",
		}),
		CandidatesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precog",
			Name:      "candidates_rejected_total",
			Help:      "Total candidates rejected by reason",
		}, []string{"reason"}),
		CandidatesApproved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precog",
			Name:      "candidates_approved_total",
			Help:      "Total candidates added to the whitelist",
		}),
		WhitelistSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "precog",
			Name:      "whitelist_size",
			Help:      "Current number of whitelisted mints",
		}),

		MigrationEventsSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "migration_events_seen_total",
			Help:      "Total initialize2 events observed",
		}),
		MigrationsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "migrations_dropped_total",
			Help:      "Total migration events dropped by reason",
		}, []string{"reason"}),
		LastEventTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "last_event_timestamp",
			Help:      "Unix timestamp of the last stream event",
		}),

		BuysSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "buys_submitted_total",
			Help:      "Total buy transactions submitted",
		}),
		SellsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "sells_submitted_total",
			Help:      "Total sell transactions submitted",
		}),
		BundlesConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "bundles_confirmed_total",
			Help:      "Total submissions confirmed on chain",
		}),
		BundlesTimedOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "bundles_timed_out_total",
			Help:      "Total submissions that never confirmed",
		}),
		DetectToSubmit: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "detect_to_submit_seconds",
			Help:      "Latency from migration detection to transaction submission",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		PositionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "open",
			Help:      "Current number of open positions",
		}),
		PositionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "closed_total",
			Help:      "Total positions closed by exit reason",
		}, []string{"reason"}),

		BlockhashAge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "blockhash_age_seconds",
			Help:      "Age of the cached blockhash",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics and /health on addr. Blocks until the server
// fails; run it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(addr, mux)
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer, "")
