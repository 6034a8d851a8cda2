// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultSampleInterval is how often the open session gauge is refreshed.
const DefaultSampleInterval = 30 * time.Second

// BoardSource lists every user's open session.
type BoardSource interface {
	TeamBoard(ctx context.Context) ([]model.Session, error)
}

// App owns the long-lived runtime: the server manager and the open
// session sampler.
type App struct {
	logger   zerolog.Logger
	manager  Manager
	board    BoardSource
	interval time.Duration
}

// NewApp creates a new App orchestrator. A nil board disables sampling.
func NewApp(logger zerolog.Logger, manager Manager, board BoardSource, interval time.Duration) *App {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &App{
		logger:   logger,
		manager:  manager,
		board:    board,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.board != nil {
		g.Go(func() error {
			ticker := time.NewTicker(a.interval)
			defer ticker.Stop()

			a.sample(ctx)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					a.sample(ctx)
				}
			}
		})
	}

	g.Go(func() error {
		return a.manager.Start(ctx)
	})

	return g.Wait()
}

// sample is best-effort; a failed read keeps the previous gauge values.
func (a *App) sample(ctx context.Context) {
	board, err := a.board.TeamBoard(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn().
				Err(err).
				Str("event", "sampler.failed").
				Msg("failed to sample open sessions")
		}
		return
	}

	counts := make(map[string]int, len(model.AllStatuses))
	for _, s := range board {
		counts[s.Status.String()]++
	}
	names := make([]string, len(model.AllStatuses))
	for i, st := range model.AllStatuses {
		names[i] = st.String()
	}
	metrics.SetOpenSessions(names, counts)
}
