// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const verifyBusyTimeout = 2 * time.Second

// sessionCheck is one timeline rule; query returns one message per violation.
type sessionCheck struct {
	name     string
	fullOnly bool
	query    string
}

var sessionChecks = []sessionCheck{
	{
		name: "open_sessions",
		query: `SELECT 'user ' || user_id || ' has ' || COUNT(*) || ' open sessions'
			FROM status_sessions WHERE end_time IS NULL
			GROUP BY user_id HAVING COUNT(*) > 1 ORDER BY user_id`,
	},
	{
		name: "end_before_start",
		query: `SELECT 'session ' || id || ' ends before it starts (' || start_time || ' > ' || end_time || ')'
			FROM status_sessions WHERE end_time IS NOT NULL AND end_time < start_time ORDER BY seq`,
	},
	{
		name: "duration",
		query: `SELECT 'session ' || id || ' duration ' || IFNULL(duration_ms, 'NULL') || ' does not match its bounds'
			FROM status_sessions
			WHERE end_time IS NOT NULL AND (duration_ms IS NULL OR duration_ms != end_time - start_time)
			ORDER BY seq`,
	},
	{
		name:     "overlap",
		fullOnly: true,
		query: `SELECT 'sessions ' || a.id || ' and ' || b.id || ' of user ' || a.user_id || ' overlap'
			FROM status_sessions a
			JOIN status_sessions b ON a.user_id = b.user_id AND a.seq < b.seq
			WHERE a.start_time < IFNULL(a.end_time, 9223372036854775807)
			  AND b.start_time < IFNULL(b.end_time, 9223372036854775807)
			  AND a.start_time < IFNULL(b.end_time, 9223372036854775807)
			  AND b.start_time < IFNULL(a.end_time, 9223372036854775807)
			ORDER BY a.seq, b.seq`,
	},
}

// VerifyIntegrity checks the status database read-only.
// Mode "quick" runs PRAGMA quick_check, "full" runs PRAGMA integrity_check
// plus the pairwise overlap scan. When the pages are sound the session
// timeline rules are checked as well. It returns one message per problem,
// or nil if the database is healthy.
func VerifyIntegrity(path string, mode string) ([]string, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)", path, verifyBusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database for verification: %w", err)
	}
	defer db.Close()

	full := mode == "full"
	issues, err := pageCheck(db, full)
	if err != nil || len(issues) > 0 {
		return issues, err
	}
	return timelineCheck(db, full)
}

func pageCheck(db *sql.DB, full bool) ([]string, error) {
	pragma := "PRAGMA quick_check;"
	if full {
		pragma = "PRAGMA integrity_check;"
	}
	results, err := queryStrings(db, pragma)
	if err != nil {
		return nil, fmt.Errorf("integrity pragma failed: %w", err)
	}

	// Success is exactly a single "ok" row.
	if len(results) == 1 && strings.ToLower(results[0]) == "ok" {
		return nil, nil
	}
	if len(results) == 0 {
		return []string{"no results returned from integrity check"}, nil
	}
	return results, nil
}

func timelineCheck(db *sql.DB, full bool) ([]string, error) {
	var tables int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'status_sessions'",
	).Scan(&tables); err != nil {
		return nil, fmt.Errorf("schema lookup failed: %w", err)
	}
	if tables == 0 {
		return []string{"status_sessions: table missing"}, nil
	}

	var issues []string
	for _, c := range sessionChecks {
		if c.fullOnly && !full {
			continue
		}
		found, err := queryStrings(db, c.query)
		if err != nil {
			return nil, fmt.Errorf("check %s failed: %w", c.name, err)
		}
		for _, msg := range found {
			issues = append(issues, "status_sessions: "+msg)
		}
	}
	return issues, nil
}

func queryStrings(db *sql.DB, query string) ([]string, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
