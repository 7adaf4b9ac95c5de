package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// propagationTotal counts hierarchy roll-ups by trigger and result
	propagationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goal_propagation_total",
		Help: "Total hierarchy propagations by trigger and result",
	}, []string{"trigger", "result"})

	// propagationDuration tracks how long a roll-up plus persistence takes
	propagationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "goal_propagation_duration_seconds",
		Help:    "Hierarchy propagation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"trigger"})

	// progressEntriesTotal counts appended progress history entries
	progressEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goal_progress_entries_total",
		Help: "Total progress entries appended",
	})

	// statusTransitionsTotal counts risk-driven status changes
	statusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goal_status_transitions_total",
		Help: "Total goal status transitions by target status",
	}, []string{"to"})

	// summaryCacheTotal counts summary cache lookups by outcome
	summaryCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goal_summary_cache_total",
		Help: "Summary cache lookups by outcome",
	}, []string{"outcome"})
)
