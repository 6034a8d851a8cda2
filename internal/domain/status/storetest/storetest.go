// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package storetest runs tests against every store backend and provides
// store doubles for failure injection.
package storetest

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/ports"
	"github.com/ManuGH/statustrack/internal/domain/status/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Open creates a fresh store of the named backend, closed on cleanup.
func Open(t *testing.T, backend string) ports.Store {
	t.Helper()

	var (
		s   ports.Store
		err error
	)
	switch backend {
	case store.BackendSqlite:
		s, err = store.Open(backend, filepath.Join(t.TempDir(), "status.db"))
	case store.BackendBadger:
		s, err = store.Open(backend, t.TempDir())
	default:
		s, err = store.Open(backend, "")
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Backends lists every backend name.
func Backends() []string {
	return []string{store.BackendMemory, store.BackendSqlite, store.BackendBadger}
}

// Each runs fn once per backend as a subtest.
func Each(t *testing.T, fn func(t *testing.T, s ports.Store)) {
	for _, b := range Backends() {
		t.Run(b, func(t *testing.T) {
			fn(t, Open(t, b))
		})
	}
}

// ErrInjected is the failure produced by Faulty.
var ErrInjected = errors.New("injected store failure")

// Faulty wraps a Store, counts calls, and fails selected Tx operations.
type Faulty struct {
	ports.Store

	FailFind   bool
	FailClose  bool
	FailInsert bool

	calls atomic.Int64
}

// Calls is the number of store calls observed (transactions and Tx methods).
func (f *Faulty) Calls() int64 { return f.calls.Load() }

func (f *Faulty) WithTx(ctx context.Context, fn func(ports.Tx) error) error {
	f.calls.Add(1)
	return f.Store.WithTx(ctx, func(tx ports.Tx) error {
		return fn(&faultyTx{Tx: tx, f: f})
	})
}

func (f *Faulty) View(ctx context.Context, fn func(ports.Tx) error) error {
	f.calls.Add(1)
	return f.Store.View(ctx, func(tx ports.Tx) error {
		return fn(&faultyTx{Tx: tx, f: f})
	})
}

type faultyTx struct {
	ports.Tx
	f *Faulty
}

func (t *faultyTx) FindOpenSession(ctx context.Context, userID string) (*model.Session, error) {
	t.f.calls.Add(1)
	if t.f.FailFind {
		return nil, ErrInjected
	}
	return t.Tx.FindOpenSession(ctx, userID)
}

func (t *faultyTx) CloseSession(ctx context.Context, id string, endTime, durationMs int64) error {
	t.f.calls.Add(1)
	if t.f.FailClose {
		return ErrInjected
	}
	return t.Tx.CloseSession(ctx, id, endTime, durationMs)
}

func (t *faultyTx) InsertSession(ctx context.Context, userID string, status model.Status, startTime int64) (*model.Session, error) {
	t.f.calls.Add(1)
	if t.f.FailInsert {
		return nil, ErrInjected
	}
	return t.Tx.InsertSession(ctx, userID, status, startTime)
}

// AssertTimeline checks the agent's sessions pairwise: no two non-empty
// [StartTime, EndTime) intervals overlap (an open end counts as +inf) and
// every closed duration matches its bounds.
func AssertTimeline(t *testing.T, s ports.Store, userID string) {
	t.Helper()

	ctx := context.Background()
	var rows []model.Session
	require.NoError(t, s.View(ctx, func(tx ports.Tx) error {
		var err error
		rows, err = tx.QuerySessions(ctx, userID, ports.Filter{}, ports.OrderStartAsc, 0, 0)
		return err
	}))

	for i := range rows {
		if !rows[i].IsOpen() {
			require.NotNil(t, rows[i].DurationMs, "session %s", rows[i].ID)
			assert.GreaterOrEqual(t, *rows[i].EndTime, rows[i].StartTime, "session %s", rows[i].ID)
			assert.Equal(t, *rows[i].EndTime-rows[i].StartTime, *rows[i].DurationMs, "session %s", rows[i].ID)
		}
		for j := i + 1; j < len(rows); j++ {
			a, b := rows[i], rows[j]
			if a.StartTime == end(a) || b.StartTime == end(b) {
				continue
			}
			if a.StartTime < end(b) && b.StartTime < end(a) {
				t.Errorf("%s [%d,%s) overlaps %s [%d,%s)",
					a.Status, a.StartTime, fmtEnd(a), b.Status, b.StartTime, fmtEnd(b))
			}
		}
	}
}

func end(s model.Session) int64 {
	if s.EndTime == nil {
		return math.MaxInt64
	}
	return *s.EndTime
}

func fmtEnd(s model.Session) string {
	if s.EndTime == nil {
		return "open"
	}
	return strconv.FormatInt(*s.EndTime, 10)
}
