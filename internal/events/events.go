// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package events announces committed status transitions to other services.
package events

import (
	"context"
)

// TransitionEvent describes one committed transition. From is empty when the
// agent had no open session; To is the requested status ("off_duty" for a
// stop). SessionID is the session opened by the transition, or the one it
// closed when nothing new was opened.
type TransitionEvent struct {
	UserID    string `json:"user_id"`
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	Outcome   string `json:"outcome"`
	At        int64  `json:"at"`
	SessionID string `json:"session_id,omitempty"`
}

// Publisher delivers transition events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev TransitionEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TransitionEvent) error { return nil }
func (NopPublisher) Close() error                                   { return nil }
