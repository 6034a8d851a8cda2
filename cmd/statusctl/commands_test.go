// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/statustrack/internal/domain/status/engine"
	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/store"
	"github.com/ManuGH/statustrack/internal/persistence/sqlite"
)

// 2024-03-01T09:00:00.000Z
const t0 = int64(1709283600000)

// seed writes available -> lunch_break -> off_duty for u1 and leaves u2 in
// a meeting.
func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "status.db")
	st, err := store.NewSqliteStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()

	eng := engine.New(st)
	ctx := context.Background()
	steps := []struct {
		user   string
		status string
		at     int64
	}{
		{"u1", "available", t0},
		{"u1", "lunch_break", t0 + 1000},
		{"u1", "off_duty", t0 + 4000},
		{"u2", "meeting", t0 + 500},
	}
	for _, s := range steps {
		_, err := eng.Transition(ctx, engine.Request{UserID: s.user, Status: s.status}, s.at)
		require.NoError(t, err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func ms(v int64) string { return strconv.FormatInt(v, 10) }

func TestSummaryCmd(t *testing.T) {
	path := seed(t)

	out, err := run(t, "summary", "--path", path, "--user", "u1", "--from", ms(t0), "--to", ms(t0+10_000))
	require.NoError(t, err)

	var sum model.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, map[model.Status]int64{
		model.StatusAvailable:  1000,
		model.StatusLunchBreak: 3000,
	}, sum.AsMap())
}

func TestHistoryCmd_Paging(t *testing.T) {
	path := seed(t)

	out, err := run(t, "history", "--path", path, "--user", "u1", "--page-size", "1")
	require.NoError(t, err)

	var page model.Page
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, model.StatusLunchBreak, page.Items[0].Status)
	assert.True(t, page.Pagination.HasNextPage)
	assert.Equal(t, int64(2), page.Pagination.TotalItems)

	out, err = run(t, "history", "--path", path, "--user", "u1", "--page", "2", "--page-size", "1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, model.StatusAvailable, page.Items[0].Status)
	assert.False(t, page.Pagination.HasNextPage)
}

func TestExportCmd_WritesFileAtomically(t *testing.T) {
	path := seed(t)
	dest := filepath.Join(t.TempDir(), "u1.csv")

	_, err := run(t, "export", "--path", path, "--user", "u1", "--out", dest)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	want := "Status,Start Time,End Time,Duration (ms)\n" +
		"lunch_break,2024-03-01T09:00:01.000Z,2024-03-01T09:00:04.000Z,3000\n" +
		"available,2024-03-01T09:00:00.000Z,2024-03-01T09:00:01.000Z,1000"
	assert.Equal(t, want, string(got))
}

func TestExportCmd_Stdout(t *testing.T) {
	path := seed(t)

	out, err := run(t, "export", "--path", path, "--user", "u2")
	require.NoError(t, err)
	assert.Equal(t, "Status,Start Time,End Time,Duration (ms)\nmeeting,2024-03-01T09:00:00.500Z,Active,0", out)
}

func TestTeamCmd(t *testing.T) {
	path := seed(t)

	out, err := run(t, "team", "--path", path)
	require.NoError(t, err)

	var board []model.Session
	require.NoError(t, json.Unmarshal([]byte(out), &board))
	require.Len(t, board, 1)
	assert.Equal(t, "u2", board[0].UserID)
	assert.Equal(t, model.StatusMeeting, board[0].Status)
}

func TestVerifyCmd(t *testing.T) {
	path := seed(t)

	out, err := run(t, "verify", "--path", path, "--mode", "full")
	require.NoError(t, err)
	assert.Contains(t, out, ": ok")

	_, err = run(t, "verify", "--path", path, "--mode", "deep")
	require.Error(t, err)
}

// breakTimeline writes rows the engine never produces: a second open
// session for u2, a session ending before it starts and a wrong duration.
func breakTimeline(t *testing.T, path string) {
	t.Helper()
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	stmts := []string{
		"PRAGMA ignore_check_constraints = ON",
		"DROP INDEX idx_status_sessions_open",
		"INSERT INTO status_sessions (id, user_id, status_name, start_time) VALUES ('dup-open', 'u2', 'away', " + ms(t0+600) + ")",
		"UPDATE status_sessions SET end_time = start_time - 10, duration_ms = -10 WHERE user_id = 'u1' AND status_name = 'lunch_break'",
		"UPDATE status_sessions SET duration_ms = 1 WHERE user_id = 'u1' AND status_name = 'available'",
	}
	for _, stmt := range stmts {
		_, err := conn.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
}

func TestVerifyCmd_ReportsBrokenTimeline(t *testing.T) {
	path := seed(t)
	breakTimeline(t, path)

	out, err := run(t, "verify", "--path", path, "--mode", "quick")
	require.Error(t, err)
	assert.Contains(t, out, "user u2 has 2 open sessions")
	assert.Contains(t, out, "ends before it starts")
	assert.Contains(t, out, "duration 1 does not match its bounds")
	assert.NotContains(t, out, "overlap")

	out, err = run(t, "verify", "--path", path, "--mode", "full")
	require.Error(t, err)
	assert.Contains(t, out, "of user u2 overlap")
}

func TestVerifyCmd_QuickOnCleanStore(t *testing.T) {
	path := seed(t)

	out, err := run(t, "verify", "--path", path)
	require.NoError(t, err)
	assert.Equal(t, path+": ok\n", out)
}

func TestCommands_InputErrors(t *testing.T) {
	path := seed(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing user", args: []string{"summary", "--path", path}},
		{name: "bad from", args: []string{"history", "--path", path, "--user", "u1", "--from", "yesterday"}},
		{name: "inverted range", args: []string{"summary", "--path", path, "--user", "u1", "--from", ms(t0 + 1), "--to", ms(t0)}},
		{name: "memory backend", args: []string{"team", "--backend", "memory"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
		})
	}
}

func TestCommands_MissingStoreIsNotCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.db")

	for _, args := range [][]string{
		{"summary", "--path", path, "--user", "u1"},
		{"team", "--path", path},
		{"verify", "--path", path},
		{"team", "--backend", "badger", "--path", path},
	} {
		_, err := run(t, args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "no store at")
	}

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseBound(t *testing.T) {
	got, err := parseBound("2024-03-01T09:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, t0, *got)

	got, err = parseBound(ms(t0))
	require.NoError(t, err)
	assert.Equal(t, t0, *got)

	got, err = parseBound("  ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "commit:")
}
