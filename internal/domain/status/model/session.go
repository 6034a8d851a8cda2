// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// Session is one continuous period during which an agent held one status.
// Timestamps are unix milliseconds.
type Session struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Status     Status `json:"status_name"`
	StartTime  int64  `json:"start_time"`
	EndTime    *int64 `json:"end_time"`
	DurationMs *int64 `json:"duration_ms"`
}

// IsOpen reports whether the session is the agent's current status.
func (s *Session) IsOpen() bool {
	return s.EndTime == nil
}

// Close sets the end of the session and its derived duration. An end before
// the start is clamped to the start so the interval is never negative.
func (s *Session) Close(end int64) {
	if end < s.StartTime {
		end = s.StartTime
	}
	d := end - s.StartTime
	s.EndTime = &end
	s.DurationMs = &d
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndTime != nil {
		v := *s.EndTime
		c.EndTime = &v
	}
	if s.DurationMs != nil {
		v := *s.DurationMs
		c.DurationMs = &v
	}
	return &c
}

// Outcome classifies what a transition did.
type Outcome string

const (
	// OutcomeOpened: a new session was opened (a prior one may have been closed).
	OutcomeOpened Outcome = "opened"
	// OutcomeUnchanged: the requested status was already open; nothing was written.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeClosed: the terminal status was requested; no session is open afterwards.
	OutcomeClosed Outcome = "closed"
)

// TransitionResult is what the engine returns for a transition.
// Session is the agent's open session after the call (nil for OutcomeClosed).
// Closed is the session that this call closed, if any.
type TransitionResult struct {
	Outcome Outcome  `json:"outcome"`
	Session *Session `json:"session,omitempty"`
	Closed  *Session `json:"closed,omitempty"`
}
