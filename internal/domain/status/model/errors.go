// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "errors"

var (
	// ErrInvalidStatus is returned before any store access when the requested
	// status is not part of the enumeration.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrNotFound signals that the agent has no open session. It is a normal
	// outcome, not a fault.
	ErrNotFound = errors.New("no active status")

	// ErrNoActiveSession is returned by an explicit stop when nothing is open.
	ErrNoActiveSession = errors.New("no active status to stop")

	// ErrStorage wraps every failure of the underlying store. The operation
	// that returned it was rolled back as a whole.
	ErrStorage = errors.New("storage failure")

	// ErrMissingUser is returned when an operation names no agent.
	ErrMissingUser = errors.New("missing user id")

	// ErrInvalidRange is returned when a from/to pair is inverted.
	ErrInvalidRange = errors.New("invalid time range")
)
