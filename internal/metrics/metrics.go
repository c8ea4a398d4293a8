// Package metrics exposes the engine's Prometheus collectors. Counters are
// registered once at init and shared process-wide.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "match_engine",
		Name:      "actions_recorded_total",
		Help:      "Directional actions recorded, by action type.",
	}, []string{"action"})

	MatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "match_engine",
		Name:      "matches_created_total",
		Help:      "New mutual matches detected.",
	})

	QuotaRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "match_engine",
		Name:      "quota_rejections_total",
		Help:      "Actions rejected because the daily budget was exhausted.",
	}, []string{"action"})

	BatchesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "match_engine",
		Name:      "daily_batches_generated_total",
		Help:      "Daily batches computed and persisted (idempotent hits excluded).",
	})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "match_engine",
		Name:      "daily_batch_duration_seconds",
		Help:      "Wall time to generate one user's daily batch.",
		Buckets:   prometheus.DefBuckets,
	})

	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "match_engine",
		Name:      "events_emitted_total",
		Help:      "Integration events handed to the sink, by type.",
	}, []string{"type"})
)
