// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors of statustrack.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statustrack_transitions_total",
		Help: "Status transitions by previous status, requested status and outcome",
	}, []string{"from", "to", "outcome"}) // outcome=opened|unchanged|closed

	transitionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statustrack_transition_errors_total",
		Help: "Rejected or failed transitions by reason",
	}, []string{"reason"}) // reason=invalid_status|no_active|storage

	sessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "statustrack_session_duration_seconds",
		Help: "Length of closed status sessions",
		// 1m .. ~8.5h
		Buckets: prometheus.ExponentialBuckets(60, 2, 10),
	}, []string{"status"})

	eventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statustrack_event_publish_failures_total",
		Help: "Transition events that could not be published after commit",
	})

	csvRowsExported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statustrack_csv_rows_exported_total",
		Help: "Session rows written by CSV exports",
	})

	openSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "statustrack_open_sessions",
		Help: "Users currently in each status, sampled from the team board",
	}, []string{"status"})
)

// NoStatus labels the "from" side of a transition when nothing was open.
const NoStatus = "none"

// RecordTransition counts one committed transition.
func RecordTransition(from, to, outcome string) {
	if from == "" {
		from = NoStatus
	}
	transitionsTotal.WithLabelValues(from, to, outcome).Inc()
}

// RecordTransitionError counts a transition that did not commit.
func RecordTransitionError(reason string) {
	transitionErrors.WithLabelValues(reason).Inc()
}

// ObserveSessionDuration records the length of a session that was just closed.
func ObserveSessionDuration(status string, durationMs int64) {
	sessionDuration.WithLabelValues(status).Observe(float64(durationMs) / 1000)
}

// RecordPublishFailure counts an event lost after commit.
func RecordPublishFailure() {
	eventPublishFailures.Inc()
}

// AddExportedRows counts rows written by an export.
func AddExportedRows(n int) {
	csvRowsExported.Add(float64(n))
}

// SetOpenSessions replaces the open session gauge. Statuses missing from
// counts are reset to zero so a drained status does not keep its last value.
func SetOpenSessions(statuses []string, counts map[string]int) {
	for _, st := range statuses {
		openSessions.WithLabelValues(st).Set(float64(counts[st]))
	}
}
