// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"sort"

	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/ports"
	"github.com/google/uuid"
)

// newSessionID assigns session identifiers for every backend.
var newSessionID = uuid.NewString

// selectSessions applies the QuerySessions contract to an in-memory slice
// held in insertion order. Ties on start time keep insertion order
// (ascending) or its reverse (descending).
func selectSessions(all []model.Session, userID string, f ports.Filter, order ports.Order, limit, offset int) []model.Session {
	matched := make([]model.Session, 0)
	for i := range all {
		s := all[i]
		if s.UserID != userID || !f.Range.Contains(s.StartTime) {
			continue
		}
		matched = append(matched, *s.Clone())
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].StartTime < matched[j].StartTime
	})
	if order == ports.OrderStartDesc {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []model.Session{}
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched
}

func countSessions(all []model.Session, userID string, f ports.Filter) int64 {
	var n int64
	for i := range all {
		if all[i].UserID == userID && f.Range.Contains(all[i].StartTime) {
			n++
		}
	}
	return n
}

// sumClosed totals DurationMs of closed sessions starting in [from, to].
func sumClosed(all []model.Session, userID string, from, to int64) []model.StatusTotal {
	totals := map[model.Status]int64{}
	for i := range all {
		s := &all[i]
		if s.UserID != userID || s.StartTime < from || s.StartTime > to || s.DurationMs == nil {
			continue
		}
		totals[s.Status] += *s.DurationMs
	}
	return sortTotals(totals)
}

// sortTotals orders totals by the enumeration order of their status.
func sortTotals(totals map[model.Status]int64) []model.StatusTotal {
	out := make([]model.StatusTotal, 0, len(totals))
	for st, ms := range totals {
		out = append(out, model.StatusTotal{Status: st, TotalMs: ms})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Status.Rank() < out[j].Status.Rank()
	})
	return out
}

func sortByUser(open []model.Session) {
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].UserID < open[j].UserID
	})
}
