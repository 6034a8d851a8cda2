// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package engine applies status transitions. Each call runs as a single
// store transaction that reads the agent's open session, closes it and
// opens the requested one, so an agent never holds two open sessions.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/ports"
	"github.com/ManuGH/statustrack/internal/events"
	xglog "github.com/ManuGH/statustrack/internal/log"
	"github.com/ManuGH/statustrack/internal/metrics"
	"github.com/ManuGH/statustrack/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "statustrack/engine"

// Request is a validated-at-entry transition request. Status is the raw wire
// value and is parsed before the store is touched.
type Request struct {
	UserID string
	Status string
}

// Engine owns no state besides its collaborators.
type Engine struct {
	store     ports.Store
	clock     model.Clock
	publisher events.Publisher
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the system clock.
func WithClock(c model.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithPublisher sets the sink for committed transitions.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New returns an Engine writing to store.
func New(store ports.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		clock:     model.SystemClock{},
		publisher: events.NopPublisher{},
		tracer:    telemetry.Tracer(tracerName),
		logger:    xglog.WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now reads the engine clock in unix milliseconds.
func (e *Engine) Now() int64 {
	return e.clock.NowMs()
}

// Transition moves the agent to req.Status at now.
//
// Requesting the status that is already open returns it untouched. Requesting
// the terminal status closes whatever is open and opens nothing. Store
// failures are wrapped in model.ErrStorage and leave no partial write.
func (e *Engine) Transition(ctx context.Context, req Request, now int64) (model.TransitionResult, error) {
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		metrics.RecordTransitionError("invalid_status")
		return model.TransitionResult{}, err
	}
	if req.UserID == "" {
		return model.TransitionResult{}, model.ErrMissingUser
	}

	ctx, span := e.tracer.Start(ctx, "status.transition",
		trace.WithAttributes(telemetry.TransitionAttributes(req.UserID, status.String(), e.store.Backend())...))
	defer span.End()

	var res model.TransitionResult
	err = e.store.WithTx(ctx, func(tx ports.Tx) error {
		res = model.TransitionResult{}

		open, err := tx.FindOpenSession(ctx, req.UserID)
		if err != nil {
			return err
		}
		if open != nil && open.Status == status {
			res.Outcome = model.OutcomeUnchanged
			res.Session = open
			return nil
		}
		if open != nil {
			if err := closeSession(ctx, tx, open, now); err != nil {
				return err
			}
			res.Closed = open
		}

		if status.IsTerminal() {
			res.Outcome = model.OutcomeClosed
			return nil
		}

		start, err := nextStart(ctx, tx, req.UserID, open, now)
		if err != nil {
			return err
		}
		opened, err := tx.InsertSession(ctx, req.UserID, status, start)
		if err != nil {
			return err
		}
		res.Outcome = model.OutcomeOpened
		res.Session = opened
		return nil
	})
	if err != nil {
		return model.TransitionResult{}, e.storageFailure(ctx, span, "transition", req.UserID, err)
	}

	span.SetAttributes(telemetry.OutcomeAttributes(previousStatus(res), string(res.Outcome))...)
	e.committed(ctx, req.UserID, status, now, res)
	return res, nil
}

// Stop closes the agent's open session without opening another. It returns
// model.ErrNoActiveSession when nothing is open.
func (e *Engine) Stop(ctx context.Context, userID string, now int64) (*model.Session, error) {
	if userID == "" {
		return nil, model.ErrMissingUser
	}

	ctx, span := e.tracer.Start(ctx, "status.stop",
		trace.WithAttributes(telemetry.TransitionAttributes(userID, model.StatusOffDuty.String(), e.store.Backend())...))
	defer span.End()

	var closed *model.Session
	err := e.store.WithTx(ctx, func(tx ports.Tx) error {
		open, err := tx.FindOpenSession(ctx, userID)
		if err != nil {
			return err
		}
		if open == nil {
			return model.ErrNoActiveSession
		}
		if err := closeSession(ctx, tx, open, now); err != nil {
			return err
		}
		closed = open
		return nil
	})
	if errors.Is(err, model.ErrNoActiveSession) {
		metrics.RecordTransitionError("no_active")
		span.SetAttributes(telemetry.OutcomeAttributes("", "no_active")...)
		return nil, err
	}
	if err != nil {
		return nil, e.storageFailure(ctx, span, "stop", userID, err)
	}

	res := model.TransitionResult{Outcome: model.OutcomeClosed, Closed: closed}
	span.SetAttributes(telemetry.OutcomeAttributes(closed.Status.String(), string(res.Outcome))...)
	e.committed(ctx, userID, model.StatusOffDuty, now, res)
	return closed, nil
}

// closeSession ends open at now, clamped to its start.
func closeSession(ctx context.Context, tx ports.Tx, open *model.Session, now int64) error {
	open.Close(now)
	return tx.CloseSession(ctx, open.ID, *open.EndTime, *open.DurationMs)
}

// nextStart is the start time for a session opened at now. It never falls
// before the end of the agent's latest session, so intervals stay ordered
// when requests commit in a different order than they read the clock.
func nextStart(ctx context.Context, tx ports.Tx, userID string, closed *model.Session, now int64) (int64, error) {
	last := closed
	if last == nil {
		latest, err := tx.QuerySessions(ctx, userID, ports.Filter{}, ports.OrderStartDesc, 1, 0)
		if err != nil {
			return 0, err
		}
		if len(latest) == 0 {
			return now, nil
		}
		last = &latest[0]
	}
	if last.EndTime != nil && *last.EndTime > now {
		return *last.EndTime, nil
	}
	if last.StartTime > now {
		return last.StartTime, nil
	}
	return now, nil
}

func previousStatus(res model.TransitionResult) string {
	switch {
	case res.Closed != nil:
		return res.Closed.Status.String()
	case res.Outcome == model.OutcomeUnchanged && res.Session != nil:
		return res.Session.Status.String()
	default:
		return ""
	}
}

func (e *Engine) storageFailure(ctx context.Context, span trace.Span, op, userID string, err error) error {
	metrics.RecordTransitionError("storage")
	span.RecordError(err)
	span.SetStatus(codes.Error, "store failure")
	span.SetAttributes(telemetry.ErrorAttributes("storage")...)

	logger := xglog.WithTrace(ctx, e.logger)
	logger.Error().Err(err).
		Str(xglog.FieldEvent, "status."+op+".failed").
		Str(xglog.FieldUserID, userID).
		Str(xglog.FieldBackend, e.store.Backend()).
		Msg("status store transaction failed")
	return fmt.Errorf("%w: %s: %w", model.ErrStorage, op, err)
}

// committed runs the side effects of a committed transition. Nothing here can
// fail the call.
func (e *Engine) committed(ctx context.Context, userID string, requested model.Status, now int64, res model.TransitionResult) {
	from := previousStatus(res)
	metrics.RecordTransition(from, requested.String(), string(res.Outcome))
	telemetry.RecordTransition(ctx, from, requested.String(), string(res.Outcome))
	if res.Closed != nil {
		metrics.ObserveSessionDuration(res.Closed.Status.String(), *res.Closed.DurationMs)
		telemetry.RecordSessionClosed(ctx, res.Closed.Status.String(), *res.Closed.DurationMs)
	}

	logger := xglog.WithTrace(ctx, e.logger)
	evt := logger.Info()
	if res.Outcome == model.OutcomeUnchanged {
		evt = logger.Debug()
	}
	evt.Str(xglog.FieldEvent, "status.transition").
		Str(xglog.FieldUserID, userID).
		Str(xglog.FieldOldStatus, from).
		Str(xglog.FieldNewStatus, requested.String()).
		Str(xglog.FieldOutcome, string(res.Outcome)).
		Msg("status transition committed")

	if res.Outcome == model.OutcomeUnchanged {
		return
	}

	ev := events.TransitionEvent{
		UserID:  userID,
		From:    from,
		To:      requested.String(),
		Outcome: string(res.Outcome),
		At:      now,
	}
	switch {
	case res.Session != nil:
		ev.SessionID = res.Session.ID
		ev.At = res.Session.StartTime
	case res.Closed != nil:
		ev.SessionID = res.Closed.ID
		ev.At = *res.Closed.EndTime
	}

	// The transaction has committed; a caller that goes away must not drop the event.
	if err := e.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		metrics.RecordPublishFailure()
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "status.event.publish_failed").
			Str(xglog.FieldUserID, userID).
			Msg("transition committed but event was not published")
	}
}
