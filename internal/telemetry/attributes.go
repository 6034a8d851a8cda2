// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by status spans.
const (
	StatusUserKey      = "status.user_id"
	StatusRequestedKey = "status.requested"
	StatusPreviousKey  = "status.previous"
	StatusOutcomeKey   = "status.outcome"
	StatusBackendKey   = "status.store_backend"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// TransitionAttributes describes a requested transition.
func TransitionAttributes(userID, requested, backend string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(StatusUserKey, userID),
		attribute.String(StatusRequestedKey, requested),
	}
	if backend != "" {
		attrs = append(attrs, attribute.String(StatusBackendKey, backend))
	}
	return attrs
}

// OutcomeAttributes describes what a transition did.
func OutcomeAttributes(previous, outcome string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if previous != "" {
		attrs = append(attrs, attribute.String(StatusPreviousKey, previous))
	}
	return append(attrs, attribute.String(StatusOutcomeKey, outcome))
}

// ErrorAttributes marks a span as failed with a coarse error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
