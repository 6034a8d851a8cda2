// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "fmt"

// Status is the activity state an agent holds during a session.
// The string values are a wire contract and must not change.
type Status string

const (
	StatusAvailable    Status = "available"
	StatusLunchBreak   Status = "lunch_break"
	StatusOnProduction Status = "on_production"
	StatusAway         Status = "away"
	StatusMeeting      Status = "meeting"
	StatusShortBreak   Status = "short_break"
	StatusTraining     Status = "training"
	StatusOffDuty      Status = "off_duty"
)

// AllStatuses lists the enumeration in its canonical order.
var AllStatuses = []Status{
	StatusAvailable,
	StatusLunchBreak,
	StatusOnProduction,
	StatusAway,
	StatusMeeting,
	StatusShortBreak,
	StatusTraining,
	StatusOffDuty,
}

// ParseStatus validates raw against the enumeration. Matching is exact:
// no trimming, no case folding.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if s.Valid() {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Valid reports whether s is a member of the enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusLunchBreak, StatusOnProduction, StatusAway,
		StatusMeeting, StatusShortBreak, StatusTraining, StatusOffDuty:
		return true
	}
	return false
}

// IsTerminal returns true for the status that ends the timeline without
// opening a new session.
func (s Status) IsTerminal() bool {
	return s == StatusOffDuty
}

func (s Status) String() string { return string(s) }

// Rank is the position of s in AllStatuses, or -1.
func (s Status) Rank() int {
	for i, st := range AllStatuses {
		if st == s {
			return i
		}
	}
	return -1
}
