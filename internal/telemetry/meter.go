// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "statustrack.engine"

// OTel instrument names. They mirror the Prometheus collectors so either
// pipeline can carry transition data.
const (
	TransitionCounterName = "statustrack.transitions"
	SessionDurationName   = "statustrack.session.duration"
)

// RecordTransition adds one committed transition. The meter provider is
// looked up per call so a provider installed after startup is honoured.
func RecordTransition(ctx context.Context, from, to, outcome string) {
	meter := otel.GetMeterProvider().Meter(meterName)
	counter, err := meter.Int64Counter(TransitionCounterName,
		metric.WithDescription("Committed status transitions"))
	if err != nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(StatusPreviousKey, from),
		attribute.String(StatusRequestedKey, to),
		attribute.String(StatusOutcomeKey, outcome),
	))
}

// RecordSessionClosed records the length of a session that was just closed.
func RecordSessionClosed(ctx context.Context, status string, durationMs int64) {
	meter := otel.GetMeterProvider().Meter(meterName)
	hist, err := meter.Float64Histogram(SessionDurationName,
		metric.WithDescription("Length of closed status sessions"),
		metric.WithUnit("s"))
	if err != nil {
		return
	}
	hist.Record(ctx, float64(durationMs)/1000, metric.WithAttributes(
		attribute.String(StatusRequestedKey, status),
	))
}
