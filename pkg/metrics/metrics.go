// Package metrics holds the prometheus collectors shared by stream
// processors. All collectors are registered with the default registry,
// so Handler exposes them alongside the Go runtime metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "streamscan"

var (
	BytesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_bytes_total",
			Help:      "Bytes submitted to stream buffers",
		},
		[]string{"mode"},
	)

	BytesEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evicted_bytes_total",
			Help:      "Bytes dropped from capped cumulative buffers",
		},
		[]string{"mode"},
	)

	WindowsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scanned_windows_total",
			Help:      "Windows handed to the matcher",
		},
		[]string{"mode", "partial"},
	)

	MatchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_errors_total",
			Help:      "Windows whose match attempt failed",
		},
		[]string{"mode"},
	)

	Matches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Matches reported after deduplication",
		},
		[]string{"mode"},
	)

	// RuleOutcomes counts rule runs per window by status: completed, timeout,
	// error or skipped (ruled out by the keyword prefilter).
	RuleOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_outcomes_total",
			Help:      "Rule runs over a window by outcome",
		},
		[]string{"mode", "status"},
	)

	MatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Time spent matching a single window",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"mode"},
	)

	OpenStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_streams",
			Help:      "Streams currently registered with the scanner core",
		},
	)

	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
