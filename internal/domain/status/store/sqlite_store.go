// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/ports"
	"github.com/ManuGH/statustrack/internal/persistence/sqlite"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	schemaVersion = 1
)

// SqliteStore implements ports.Store on a SQLite database.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore opens (and migrates) the session database at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	return NewSqliteStoreWithConfig(dbPath, sqlite.DefaultConfig())
}

// NewSqliteStoreWithConfig is NewSqliteStore with explicit pool settings.
func NewSqliteStoreWithConfig(dbPath string, cfg sqlite.Config) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, cfg)
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{DB: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("status store: migration failed: %w", err)
	}

	return s, nil
}

func (s *SqliteStore) Backend() string { return "sqlite" }

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

func (s *SqliteStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SqliteStore) migrate() error {
	var currentVersion int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}

	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS status_sessions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		status_name TEXT NOT NULL CHECK (status_name IN (` + statusCheckList() + `)),
		start_time INTEGER NOT NULL,
		end_time INTEGER,
		duration_ms INTEGER,
		CHECK (end_time IS NULL OR end_time >= start_time),
		CHECK ((end_time IS NULL) = (duration_ms IS NULL))
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_status_sessions_open
		ON status_sessions(user_id) WHERE end_time IS NULL;
	CREATE INDEX IF NOT EXISTS idx_status_sessions_user_start
		ON status_sessions(user_id, start_time);
	`

	if _, err := tx.Exec(schema); err != nil {
		return err
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

func statusCheckList() string {
	quoted := make([]string, 0, len(model.AllStatuses))
	for _, st := range model.AllStatuses {
		quoted = append(quoted, "'"+string(st)+"'")
	}
	return strings.Join(quoted, ",")
}

// WithTx runs fn inside BEGIN IMMEDIATE (see sqlite.Config.TxLock) so the
// open-session read and the following writes cannot interleave with another
// writer.
func (s *SqliteStore) WithTx(ctx context.Context, fn func(ports.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqliteTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// View runs fn inside a deferred read transaction on one connection, so
// every statement in fn reads the same WAL snapshot. Read-only transactions
// skip the immediate lock and never block writers.
func (s *SqliteStore) View(ctx context.Context, fn func(ports.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqliteTx{q: tx, readOnly: true}); err != nil {
		return err
	}
	return tx.Commit()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteTx struct {
	q        querier
	readOnly bool
}

const sessionColumns = "id, user_id, status_name, start_time, end_time, duration_ms"

func (t *sqliteTx) FindOpenSession(ctx context.Context, userID string) (*model.Session, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM status_sessions WHERE user_id = ? AND end_time IS NULL", userID)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (t *sqliteTx) CloseSession(ctx context.Context, id string, endTime, durationMs int64) error {
	if t.readOnly {
		return ports.ErrReadOnly
	}
	res, err := t.q.ExecContext(ctx,
		"UPDATE status_sessions SET end_time = ?, duration_ms = ? WHERE id = ? AND end_time IS NULL",
		endTime, durationMs, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrSessionNotOpen
	}
	return nil
}

func (t *sqliteTx) InsertSession(ctx context.Context, userID string, status model.Status, startTime int64) (*model.Session, error) {
	if t.readOnly {
		return nil, ports.ErrReadOnly
	}
	rec := &model.Session{
		ID:        newSessionID(),
		UserID:    userID,
		Status:    status,
		StartTime: startTime,
	}
	_, err := t.q.ExecContext(ctx,
		"INSERT INTO status_sessions (id, user_id, status_name, start_time) VALUES (?, ?, ?, ?)",
		rec.ID, rec.UserID, string(rec.Status), rec.StartTime)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ports.ErrOpenSessionExists
		}
		return nil, err
	}
	return rec, nil
}

func (t *sqliteTx) CountSessions(ctx context.Context, userID string, f ports.Filter) (int64, error) {
	where, args := whereClause(userID, f)
	var n int64
	err := t.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM status_sessions"+where, args...).Scan(&n)
	return n, err
}

func (t *sqliteTx) QuerySessions(ctx context.Context, userID string, f ports.Filter, order ports.Order, limit, offset int) ([]model.Session, error) {
	where, args := whereClause(userID, f)
	query := "SELECT " + sessionColumns + " FROM status_sessions" + where
	if order == ports.OrderStartAsc {
		query += " ORDER BY start_time ASC, seq ASC"
	} else {
		query += " ORDER BY start_time DESC, seq DESC"
	}
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	return t.querySessions(ctx, query, args...)
}

func (t *sqliteTx) SumDurationByStatus(ctx context.Context, userID string, from, to int64) ([]model.StatusTotal, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT status_name, COALESCE(SUM(duration_ms), 0)
		FROM status_sessions
		WHERE user_id = ? AND start_time >= ? AND start_time <= ? AND end_time IS NOT NULL
		GROUP BY status_name`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	totals := map[model.Status]int64{}
	for rows.Next() {
		var name string
		var total int64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, err
		}
		totals[model.Status(name)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sortTotals(totals), nil
}

func (t *sqliteTx) ListOpenSessions(ctx context.Context) ([]model.Session, error) {
	return t.querySessions(ctx,
		"SELECT "+sessionColumns+" FROM status_sessions WHERE end_time IS NULL ORDER BY user_id ASC")
}

func (t *sqliteTx) querySessions(ctx context.Context, query string, args ...any) ([]model.Session, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := make([]model.Session, 0)
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

func whereClause(userID string, f ports.Filter) (string, []any) {
	where := " WHERE user_id = ?"
	args := []any{userID}
	if f.Range.From != nil {
		where += " AND start_time >= ?"
		args = append(args, *f.Range.From)
	}
	if f.Range.To != nil {
		where += " AND start_time <= ?"
		args = append(args, *f.Range.To)
	}
	return where, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*model.Session, error) {
	var (
		rec      model.Session
		status   string
		end, dur sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &status, &rec.StartTime, &end, &dur); err != nil {
		return nil, err
	}
	rec.Status = model.Status(status)
	if end.Valid {
		v := end.Int64
		rec.EndTime = &v
	}
	if dur.Valid {
		v := dur.Int64
		rec.DurationMs = &v
	}
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"))
	}
	return false
}
