// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldUserID        = "user_id"
	FieldRole          = "role"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Status fields
	FieldStatus     = "status"
	FieldOldStatus  = "old_status"
	FieldNewStatus  = "new_status"
	FieldOutcome    = "outcome"
	FieldDurationMs = "duration_ms"

	// Storage fields
	FieldBackend = "backend"
	FieldPath    = "path"
)
