// Package metrics holds the Prometheus counters of the extraction pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess     = "success"
	OutcomeMalformed   = "malformed"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

var (
	ExtractionCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bunseki_extraction_calls_total",
			Help: "Extraction client calls by record kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	RateLimitRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bunseki_rate_limit_retries_total",
			Help: "Chunk calls retried after a rate-limit cooldown.",
		},
	)

	NarrowingAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bunseki_narrowing_attempts_total",
			Help: "Sub-chunk calls made after a malformed response.",
		},
	)

	SkippedUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bunseki_skipped_units_total",
			Help: "Units of work that contributed no records, by record kind.",
		},
		[]string{"kind"},
	)

	Fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bunseki_fetches_total",
			Help: "Source text fetches by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(ExtractionCalls, RateLimitRetries, NarrowingAttempts, SkippedUnits, Fetches)
}
