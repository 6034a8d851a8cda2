// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/ports"
)

// MemoryStore is a process-local Store. Each WithTx works on a private copy
// of the table that replaces the shared one only when fn succeeds.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions []model.Session // insertion order
	closed   bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var errStoreClosed = errors.New("store is closed")

func (s *MemoryStore) Backend() string { return "memory" }

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ports.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{sessions: cloneAll(s.sessions)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.sessions = tx.sessions
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(ports.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&memTx{sessions: s.sessions, readOnly: true})
}

func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errStoreClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneAll(in []model.Session) []model.Session {
	out := make([]model.Session, len(in))
	for i := range in {
		out[i] = *in[i].Clone()
	}
	return out
}

type memTx struct {
	sessions []model.Session
	readOnly bool
}

func (t *memTx) FindOpenSession(_ context.Context, userID string) (*model.Session, error) {
	for i := range t.sessions {
		if t.sessions[i].UserID == userID && t.sessions[i].IsOpen() {
			return t.sessions[i].Clone(), nil
		}
	}
	return nil, nil
}

func (t *memTx) CloseSession(_ context.Context, id string, endTime, durationMs int64) error {
	if t.readOnly {
		return ports.ErrReadOnly
	}
	for i := range t.sessions {
		s := &t.sessions[i]
		if s.ID != id {
			continue
		}
		if !s.IsOpen() {
			return ports.ErrSessionNotOpen
		}
		s.EndTime = &endTime
		s.DurationMs = &durationMs
		return nil
	}
	return ports.ErrSessionNotOpen
}

func (t *memTx) InsertSession(ctx context.Context, userID string, status model.Status, startTime int64) (*model.Session, error) {
	if t.readOnly {
		return nil, ports.ErrReadOnly
	}
	if open, _ := t.FindOpenSession(ctx, userID); open != nil {
		return nil, ports.ErrOpenSessionExists
	}
	s := model.Session{
		ID:        newSessionID(),
		UserID:    userID,
		Status:    status,
		StartTime: startTime,
	}
	t.sessions = append(t.sessions, s)
	return s.Clone(), nil
}

func (t *memTx) CountSessions(_ context.Context, userID string, f ports.Filter) (int64, error) {
	return countSessions(t.sessions, userID, f), nil
}

func (t *memTx) QuerySessions(_ context.Context, userID string, f ports.Filter, order ports.Order, limit, offset int) ([]model.Session, error) {
	return selectSessions(t.sessions, userID, f, order, limit, offset), nil
}

func (t *memTx) SumDurationByStatus(_ context.Context, userID string, from, to int64) ([]model.StatusTotal, error) {
	return sumClosed(t.sessions, userID, from, to), nil
}

func (t *memTx) ListOpenSessions(context.Context) ([]model.Session, error) {
	open := make([]model.Session, 0)
	for i := range t.sessions {
		if t.sessions[i].IsOpen() {
			open = append(open, *t.sessions[i].Clone())
		}
	}
	sortByUser(open)
	return open, nil
}
