// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package report answers read-only questions about an agent's timeline:
// the current session, paginated history, per-status totals, CSV export and
// the team board of everyone's open session.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/ports"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// DefaultSummaryWindow is used when a summary names no lower bound.
	DefaultSummaryWindow = 7 * 24 * time.Hour
)

// Service is safe for concurrent use; it holds no state besides the store.
type Service struct {
	store ports.Store
}

// New returns a Service reading from store.
func New(store ports.Store) *Service {
	return &Service{store: store}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrStorage, op, err)
}

// Current returns the agent's open session, or model.ErrNotFound.
func (s *Service) Current(ctx context.Context, userID string) (*model.Session, error) {
	if userID == "" {
		return nil, model.ErrMissingUser
	}

	var open *model.Session
	err := s.store.View(ctx, func(tx ports.Tx) error {
		var err error
		open, err = tx.FindOpenSession(ctx, userID)
		return err
	})
	if err != nil {
		return nil, storageErr("current", err)
	}
	if open == nil {
		return nil, model.ErrNotFound
	}
	return open, nil
}

// ClampPage normalizes page and pageSize the way History applies them.
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize == 0:
		pageSize = DefaultPageSize
	case pageSize < 1:
		pageSize = 1
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// History lists the agent's sessions newest first, one page at a time.
func (s *Service) History(ctx context.Context, userID string, page, pageSize int, rng model.Range) (model.Page, error) {
	if userID == "" {
		return model.Page{}, model.ErrMissingUser
	}
	if err := rng.Validate(); err != nil {
		return model.Page{}, err
	}
	page, pageSize = ClampPage(page, pageSize)
	f := ports.Filter{Range: rng}

	var (
		total int64
		items []model.Session
	)
	err := s.store.View(ctx, func(tx ports.Tx) error {
		var err error
		if total, err = tx.CountSessions(ctx, userID, f); err != nil {
			return err
		}
		items, err = tx.QuerySessions(ctx, userID, f, ports.OrderStartDesc, pageSize, (page-1)*pageSize)
		return err
	})
	if err != nil {
		return model.Page{}, storageErr("history", err)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return model.Page{
		Items: items,
		Pagination: model.Pagination{
			Page:        page,
			PageSize:    pageSize,
			TotalItems:  total,
			TotalPages:  totalPages,
			HasNextPage: page < totalPages,
			HasPrevPage: page > 1,
		},
	}, nil
}

// Summary totals closed session time per status for sessions starting in
// [from, to]. from defaults to now minus seven days and to defaults to now.
// Open sessions contribute nothing.
func (s *Service) Summary(ctx context.Context, userID string, from, to *int64, now int64) (model.Summary, error) {
	if userID == "" {
		return model.Summary{}, model.ErrMissingUser
	}

	period := model.Period{From: now - DefaultSummaryWindow.Milliseconds(), To: now}
	if from != nil {
		period.From = *from
	}
	if to != nil {
		period.To = *to
	}
	if period.From > period.To {
		return model.Summary{}, model.ErrInvalidRange
	}

	var totals []model.StatusTotal
	err := s.store.View(ctx, func(tx ports.Tx) error {
		var err error
		totals, err = tx.SumDurationByStatus(ctx, userID, period.From, period.To)
		return err
	})
	if err != nil {
		return model.Summary{}, storageErr("summary", err)
	}
	return model.Summary{Period: period, Totals: totals}, nil
}

// TeamBoard returns every open session across all agents, ordered by user.
func (s *Service) TeamBoard(ctx context.Context) ([]model.Session, error) {
	var open []model.Session
	err := s.store.View(ctx, func(tx ports.Tx) error {
		var err error
		open, err = tx.ListOpenSessions(ctx)
		return err
	})
	if err != nil {
		return nil, storageErr("team board", err)
	}
	return open, nil
}
