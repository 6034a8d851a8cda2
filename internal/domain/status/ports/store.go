// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ports declares the persistence contract the status engine and the
// report service depend on. Backends live in the sibling store package.
package ports

import (
	"context"
	"errors"

	"github.com/ManuGH/statustrack/internal/domain/status/model"
)

var (
	// ErrSessionNotOpen is returned by CloseSession when the target session
	// does not exist or already has an end time.
	ErrSessionNotOpen = errors.New("session is not open")

	// ErrOpenSessionExists is returned by InsertSession when the agent already
	// has an open session.
	ErrOpenSessionExists = errors.New("agent already has an open session")

	// ErrReadOnly is returned when a write is attempted inside Store.View.
	ErrReadOnly = errors.New("write attempted in read-only view")
)

// Order selects the sort direction of QuerySessions on start time.
type Order int

const (
	OrderStartDesc Order = iota
	OrderStartAsc
)

// Filter narrows session queries. The zero value matches everything.
type Filter struct {
	Range model.Range
}

// Tx is the set of operations available inside one unit of work.
// All calls made on a Tx passed to Store.WithTx commit or roll back together.
type Tx interface {
	// FindOpenSession returns the agent's open session, or (nil, nil).
	FindOpenSession(ctx context.Context, userID string) (*model.Session, error)
	// CloseSession sets the end time and duration of an open session.
	CloseSession(ctx context.Context, id string, endTime, durationMs int64) error
	// InsertSession opens a new session with a store-assigned ID.
	InsertSession(ctx context.Context, userID string, status model.Status, startTime int64) (*model.Session, error)
	// CountSessions counts the agent's sessions matching f.
	CountSessions(ctx context.Context, userID string, f Filter) (int64, error)
	// QuerySessions lists the agent's sessions matching f. limit <= 0 means no limit.
	QuerySessions(ctx context.Context, userID string, f Filter, order Order, limit, offset int) ([]model.Session, error)
	// SumDurationByStatus sums closed durations of sessions starting in [from, to].
	// Open sessions contribute nothing.
	SumDurationByStatus(ctx context.Context, userID string, from, to int64) ([]model.StatusTotal, error)
	// ListOpenSessions returns every open session across all agents, ordered by user ID.
	ListOpenSessions(ctx context.Context) ([]model.Session, error)
}

// Store owns the durable session table.
type Store interface {
	// WithTx runs fn atomically. A non-nil error from fn or from commit
	// leaves no trace of fn's writes.
	WithTx(ctx context.Context, fn func(Tx) error) error
	// View runs fn with read access. Writes through the Tx are rejected.
	View(ctx context.Context, fn func(Tx) error) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Backend names the implementation ("memory", "sqlite", "badger").
	Backend() string
	Close() error
}
