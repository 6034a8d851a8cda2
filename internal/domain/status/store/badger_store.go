// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/ports"
	xglog "github.com/ManuGH/statustrack/internal/log"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Key layout:
//
//	s/<user>\x00<start:8><seq:8> -> JSON session   (per-user, time ordered)
//	o/<user>                     -> session key    (open pointer, at most one)
//	i/<id>                       -> session key    (lookup by session id)
var (
	prefixSession = []byte("s/")
	prefixOpen    = []byte("o/")
	prefixID      = []byte("i/")
	seqKey        = []byte("meta/seq")
)

// BadgerStore implements ports.Store on an embedded Badger database.
// Transactions are optimistic: when two writers touch the same agent
// concurrently, the later commit fails with badger.ErrConflict and nothing
// of it is applied.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// OpenBadgerStore opens a store rooted at dir. An empty dir runs in memory.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{l: xglog.WithComponent("badger")}).
		WithMemTableSize(16 << 20)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open failed: %w", err)
	}
	seq, err := db.GetSequence(seqKey, 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("badger: sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func (s *BadgerStore) Backend() string { return "badger" }

func (s *BadgerStore) Close() error {
	return errors.Join(s.seq.Release(), s.db.Close())
}

func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errStoreClosed
	}
	return nil
}

func (s *BadgerStore) WithTx(ctx context.Context, fn func(ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := fn(&badgerTx{txn: txn, seq: s.seq}); err != nil {
			return err
		}
		return ctx.Err()
	})
}

func (s *BadgerStore) View(ctx context.Context, fn func(ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn, readOnly: true})
	})
}

type badgerRecord struct {
	Seq     uint64        `json:"seq"`
	Session model.Session `json:"session"`
}

type badgerTx struct {
	txn      *badger.Txn
	seq      *badger.Sequence
	readOnly bool
}

func userPrefix(userID string) []byte {
	k := make([]byte, 0, len(prefixSession)+len(userID)+1)
	k = append(k, prefixSession...)
	k = append(k, userID...)
	return append(k, 0)
}

func sessionKey(userID string, start int64, seq uint64) []byte {
	k := userPrefix(userID)
	k = binary.BigEndian.AppendUint64(k, uint64(start)^(1<<63))
	return binary.BigEndian.AppendUint64(k, seq)
}

func concat(prefix []byte, s string) []byte {
	return append(append([]byte{}, prefix...), s...)
}

func (t *badgerTx) get(key []byte) (*badgerRecord, error) {
	item, err := t.txn.Get(key)
	if err != nil {
		return nil, err
	}
	var rec badgerRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	return &rec, err
}

func (t *badgerTx) put(key []byte, rec *badgerRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return t.txn.Set(key, val)
}

func (t *badgerTx) pointer(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *badgerTx) FindOpenSession(_ context.Context, userID string) (*model.Session, error) {
	key, err := t.pointer(concat(prefixOpen, userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec, err := t.get(key)
	if err != nil {
		return nil, err
	}
	return rec.Session.Clone(), nil
}

func (t *badgerTx) CloseSession(_ context.Context, id string, endTime, durationMs int64) error {
	if t.readOnly {
		return ports.ErrReadOnly
	}
	key, err := t.pointer(concat(prefixID, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ports.ErrSessionNotOpen
	}
	if err != nil {
		return err
	}
	rec, err := t.get(key)
	if err != nil {
		return err
	}
	if !rec.Session.IsOpen() {
		return ports.ErrSessionNotOpen
	}
	rec.Session.EndTime = &endTime
	rec.Session.DurationMs = &durationMs
	if err := t.put(key, rec); err != nil {
		return err
	}
	return t.txn.Delete(concat(prefixOpen, rec.Session.UserID))
}

func (t *badgerTx) InsertSession(ctx context.Context, userID string, status model.Status, startTime int64) (*model.Session, error) {
	if t.readOnly {
		return nil, ports.ErrReadOnly
	}
	open, err := t.FindOpenSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ports.ErrOpenSessionExists
	}

	n, err := t.seq.Next()
	if err != nil {
		return nil, err
	}
	rec := &badgerRecord{
		Seq: n,
		Session: model.Session{
			ID:        newSessionID(),
			UserID:    userID,
			Status:    status,
			StartTime: startTime,
		},
	}
	key := sessionKey(userID, startTime, n)
	if err := t.put(key, rec); err != nil {
		return nil, err
	}
	if err := t.txn.Set(concat(prefixOpen, userID), key); err != nil {
		return nil, err
	}
	if err := t.txn.Set(concat(prefixID, rec.Session.ID), key); err != nil {
		return nil, err
	}
	return rec.Session.Clone(), nil
}

// userSessions loads the agent's sessions in (start, seq) order.
func (t *badgerTx) userSessions(userID string) ([]model.Session, error) {
	prefix := userPrefix(userID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	out := make([]model.Session, 0)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var rec badgerRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return nil, err
		}
		out = append(out, rec.Session)
	}
	return out, nil
}

func (t *badgerTx) CountSessions(_ context.Context, userID string, f ports.Filter) (int64, error) {
	all, err := t.userSessions(userID)
	if err != nil {
		return 0, err
	}
	return countSessions(all, userID, f), nil
}

func (t *badgerTx) QuerySessions(_ context.Context, userID string, f ports.Filter, order ports.Order, limit, offset int) ([]model.Session, error) {
	all, err := t.userSessions(userID)
	if err != nil {
		return nil, err
	}
	return selectSessions(all, userID, f, order, limit, offset), nil
}

func (t *badgerTx) SumDurationByStatus(_ context.Context, userID string, from, to int64) ([]model.StatusTotal, error) {
	all, err := t.userSessions(userID)
	if err != nil {
		return nil, err
	}
	return sumClosed(all, userID, from, to), nil
}

func (t *badgerTx) ListOpenSessions(context.Context) ([]model.Session, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefixOpen
	it := t.txn.NewIterator(opts)
	defer it.Close()

	keys := make([][]byte, 0)
	for it.Seek(prefixOpen); it.ValidForPrefix(prefixOpen); it.Next() {
		k, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}

	open := make([]model.Session, 0, len(keys))
	for _, k := range keys {
		rec, err := t.get(k)
		if err != nil {
			return nil, err
		}
		open = append(open, rec.Session)
	}
	sortByUser(open)
	return open, nil
}

// badgerLogger routes badger's internal logging into zerolog.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{})   { b.l.Error().Msgf(f, v...) }
func (b badgerLogger) Warningf(f string, v ...interface{}) { b.l.Warn().Msgf(f, v...) }
func (b badgerLogger) Infof(f string, v ...interface{})    { b.l.Debug().Msgf(f, v...) }
func (b badgerLogger) Debugf(f string, v ...interface{})   { b.l.Trace().Msgf(f, v...) }
