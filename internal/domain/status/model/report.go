// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// Range bounds session start times, both ends inclusive. A nil end is open.
type Range struct {
	From *int64
	To   *int64
}

// Contains reports whether ms falls inside the range.
func (r Range) Contains(ms int64) bool {
	if r.From != nil && ms < *r.From {
		return false
	}
	if r.To != nil && ms > *r.To {
		return false
	}
	return true
}

// Validate rejects inverted ranges.
func (r Range) Validate() error {
	if r.From != nil && r.To != nil && *r.From > *r.To {
		return ErrInvalidRange
	}
	return nil
}

// Pagination describes one page of a history listing.
type Pagination struct {
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

// Page is a history result.
type Page struct {
	Items      []Session  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// StatusTotal is the summed closed time for one status.
type StatusTotal struct {
	Status  Status `json:"status_name"`
	TotalMs int64  `json:"total_duration"`
}

// Period is the effective [From, To] window of a summary.
type Period struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Summary aggregates closed session time by status.
type Summary struct {
	Period Period        `json:"period"`
	Totals []StatusTotal `json:"summary"`
}

// TotalFor returns the total for status, or 0.
func (s Summary) TotalFor(status Status) int64 {
	for _, t := range s.Totals {
		if t.Status == status {
			return t.TotalMs
		}
	}
	return 0
}

// AsMap returns the totals keyed by status.
func (s Summary) AsMap() map[Status]int64 {
	out := make(map[Status]int64, len(s.Totals))
	for _, t := range s.Totals {
		out[t.Status] = t.TotalMs
	}
	return out
}
