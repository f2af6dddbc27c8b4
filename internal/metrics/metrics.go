// Package metrics provides Prometheus instrumentation for the ledger
// write path and the bot scheduler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FillsTotal counts fills committed to the ledger, partitioned by side.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botfolio_fills_total",
		Help: "Total number of fills committed to the ledger",
	}, []string{"side"})

	// FillRejections counts rejected mutations by reason
	// (invalid_input, insufficient_position, store_error).
	FillRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botfolio_fill_rejections_total",
		Help: "Ledger mutations rejected before or during commit",
	}, []string{"reason"})

	// MutationDuration tracks the ledger transaction latency.
	MutationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "botfolio_ledger_mutation_seconds",
		Help:    "Duration of atomic ledger mutations in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// BotDecisions counts strategy decisions, partitioned by bot and action.
	BotDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botfolio_bot_decisions_total",
		Help: "Strategy decisions taken by the bot scheduler",
	}, []string{"bot", "action"})

	// PortfolioCacheHits counts portfolio snapshots served from cache.
	PortfolioCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botfolio_portfolio_cache_hits_total",
		Help: "Portfolio requests served from the snapshot cache",
	})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
