// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/ports"
	"github.com/ManuGH/statustrack/internal/domain/status/store"
	"github.com/ManuGH/statustrack/internal/domain/status/storetest"
	"github.com/ManuGH/statustrack/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TransitionEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.TransitionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) all() []events.TransitionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.TransitionEvent(nil), p.events...)
}

func openSessions(t *testing.T, s ports.Store) []model.Session {
	t.Helper()
	var open []model.Session
	require.NoError(t, s.View(context.Background(), func(tx ports.Tx) error {
		var err error
		open, err = tx.ListOpenSessions(context.Background())
		return err
	}))
	return open
}

func allSessions(t *testing.T, s ports.Store, userID string) []model.Session {
	t.Helper()
	var rows []model.Session
	require.NoError(t, s.View(context.Background(), func(tx ports.Tx) error {
		var err error
		rows, err = tx.QuerySessions(context.Background(), userID, ports.Filter{}, ports.OrderStartAsc, 0, 0)
		return err
	}))
	return rows
}

func TestTransition_OpensFirstSession(t *testing.T) {
	storetest.Each(t, func(t *testing.T, s ports.Store) {
		e := New(s)
		res, err := e.Transition(context.Background(), Request{UserID: "u1", Status: "available"}, 1000)
		require.NoError(t, err)

		assert.Equal(t, model.OutcomeOpened, res.Outcome)
		require.NotNil(t, res.Session)
		assert.Nil(t, res.Closed)
		assert.Equal(t, model.StatusAvailable, res.Session.Status)
		assert.Equal(t, int64(1000), res.Session.StartTime)
		assert.True(t, res.Session.IsOpen())
	})
}

func TestTransition_ClosesPreviousWithDuration(t *testing.T) {
	storetest.Each(t, func(t *testing.T, s ports.Store) {
		ctx := context.Background()
		e := New(s)
		first, err := e.Transition(ctx, Request{UserID: "u1", Status: "available"}, 1000)
		require.NoError(t, err)

		res, err := e.Transition(ctx, Request{UserID: "u1", Status: "meeting"}, 61_000)
		require.NoError(t, err)
		require.NotNil(t, res.Closed)
		assert.Equal(t, first.Session.ID, res.Closed.ID)
		assert.Equal(t, int64(61_000), *res.Closed.EndTime)
		assert.Equal(t, int64(60_000), *res.Closed.DurationMs)
		assert.Equal(t, model.StatusMeeting, res.Session.Status)

		rows := allSessions(t, s, "u1")
		require.Len(t, rows, 2)
		// No overlap: the closed session ends where the next begins.
		assert.Equal(t, rows[1].StartTime, *rows[0].EndTime)
		assert.Len(t, openSessions(t, s), 1)
	})
}

func TestTransition_SameStatusIsNoop(t *testing.T) {
	storetest.Each(t, func(t *testing.T, s ports.Store) {
		ctx := context.Background()
		e := New(s)
		first, err := e.Transition(ctx, Request{UserID: "u1", Status: "training"}, 1000)
		require.NoError(t, err)

		again, err := e.Transition(ctx, Request{UserID: "u1", Status: "training"}, 9000)
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeUnchanged, again.Outcome)
		assert.Equal(t, first.Session.ID, again.Session.ID)
		assert.Equal(t, int64(1000), again.Session.StartTime)
		assert.Nil(t, again.Closed)
		assert.Len(t, allSessions(t, s, "u1"), 1)
	})
}

func TestTransition_OffDutyIsTerminal(t *testing.T) {
	storetest.Each(t, func(t *testing.T, s ports.Store) {
		ctx := context.Background()
		e := New(s)
		_, err := e.Transition(ctx, Request{UserID: "u1", Status: "available"}, 1000)
		require.NoError(t, err)

		res, err := e.Transition(ctx, Request{UserID: "u1", Status: "off_duty"}, 5000)
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeClosed, res.Outcome)
		assert.Nil(t, res.Session)
		require.NotNil(t, res.Closed)
		assert.Equal(t, int64(4000), *res.Closed.DurationMs)
		assert.Empty(t, openSessions(t, s))

		// Nothing open: off_duty still succeeds and writes nothing.
		res, err = e.Transition(ctx, Request{UserID: "u1", Status: "off_duty"}, 6000)
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeClosed, res.Outcome)
		assert.Nil(t, res.Closed)
		assert.Len(t, allSessions(t, s, "u1"), 1)
	})
}

func TestTransition_ClampsClockSkew(t *testing.T) {
	storetest.Each(t, func(t *testing.T, s ports.Store) {
		ctx := context.Background()
		e := New(s)
		_, err := e.Transition(ctx, Request{UserID: "u1", Status: "away"}, 10_000)
		require.NoError(t, err)

		res, err := e.Transition(ctx, Request{UserID: "u1", Status: "meeting"}, 9_000)
		require.NoError(t, err)
		require.NotNil(t, res.Closed)
		assert.Equal(t, int64(10_000), *res.Closed.EndTime)
		assert.Zero(t, *res.Closed.DurationMs)
		assert.Equal(t, int64(10_000), res.Session.StartTime)
	})
}

func TestTransition_InvalidStatusTouchesNothing(t *testing.T) {
	for _, raw := range []string{"", "Available", " available", "lunch-break", "offline"} {
		t.Run(raw, func(t *testing.T) {
			f := &storetest.Faulty{Store: store.NewMemoryStore()}
			e := New(f)

			_, err := e.Transition(context.Background(), Request{UserID: "u1", Status: raw}, 1000)
			require.ErrorIs(t, err, model.ErrInvalidStatus)
			assert.Zero(t, f.Calls())
		})
	}
}

func TestTransition_MissingUser(t *testing.T) {
	f := &storetest.Faulty{Store: store.NewMemoryStore()}
	_, err := New(f).Transition(context.Background(), Request{Status: "available"}, 1)
	require.ErrorIs(t, err, model.ErrMissingUser)
	assert.Zero(t, f.Calls())
}

func TestTransition_StoreFailureRollsBack(t *testing.T) {
	storetest.Each(t, func(t *testing.T, s ports.Store) {
		ctx := context.Background()
		f := &storetest.Faulty{Store: s}
		e := New(f)
		before, err := e.Transition(ctx, Request{UserID: "u1", Status: "available"}, 1000)
		require.NoError(t, err)

		f.FailInsert = true
		_, err = e.Transition(ctx, Request{UserID: "u1", Status: "meeting"}, 2000)
		require.ErrorIs(t, err, model.ErrStorage)
		require.ErrorIs(t, err, storetest.ErrInjected)

		// The close that preceded the failed insert must not be visible.
		open := openSessions(t, s)
		require.Len(t, open, 1)
		assert.Equal(t, before.Session.ID, open[0].ID)
		assert.True(t, open[0].IsOpen())
	})
}

func TestTransition_PublishesCommittedEvents(t *testing.T) {
	pub := &recordingPublisher{}
	e := New(store.NewMemoryStore(), WithPublisher(pub))
	ctx := context.Background()

	opened, err := e.Transition(ctx, Request{UserID: "u1", Status: "available"}, 1000)
	require.NoError(t, err)
	_, err = e.Transition(ctx, Request{UserID: "u1", Status: "available"}, 1500)
	require.NoError(t, err)
	_, err = e.Transition(ctx, Request{UserID: "u1", Status: "off_duty"}, 2000)
	require.NoError(t, err)

	got := pub.all()
	require.Len(t, got, 2, "unchanged transitions publish nothing")
	assert.Equal(t, events.TransitionEvent{
		UserID: "u1", To: "available", Outcome: "opened", At: 1000, SessionID: opened.Session.ID,
	}, got[0])
	assert.Equal(t, events.TransitionEvent{
		UserID: "u1", From: "available", To: "off_duty", Outcome: "closed", At: 2000, SessionID: opened.Session.ID,
	}, got[1])
}

func TestTransition_PublishFailureDoesNotFail(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	e := New(store.NewMemoryStore(), WithPublisher(pub))

	res, err := e.Transition(context.Background(), Request{UserID: "u1", Status: "meeting"}, 1000)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeOpened, res.Outcome)
	assert.Len(t, pub.all(), 1)
}

func TestStop(t *testing.T) {
	storetest.Each(t, func(t *testing.T, s ports.Store) {
		ctx := context.Background()
		e := New(s)

		_, err := e.Stop(ctx, "u1", 1000)
		require.ErrorIs(t, err, model.ErrNoActiveSession)

		_, err = e.Transition(ctx, Request{UserID: "u1", Status: "on_production"}, 1000)
		require.NoError(t, err)

		closed, err := e.Stop(ctx, "u1", 4500)
		require.NoError(t, err)
		assert.Equal(t, model.StatusOnProduction, closed.Status)
		assert.Equal(t, int64(3500), *closed.DurationMs)
		assert.Empty(t, openSessions(t, s))

		_, err = e.Stop(ctx, "u1", 5000)
		require.ErrorIs(t, err, model.ErrNoActiveSession)
	})
}

func TestStop_StoreFailure(t *testing.T) {
	f := &storetest.Faulty{Store: store.NewMemoryStore(), FailFind: true}
	_, err := New(f).Stop(context.Background(), "u1", 1)
	require.ErrorIs(t, err, model.ErrStorage)
	assert.False(t, errors.Is(err, model.ErrNoActiveSession))
}

func TestEngine_UsesInjectedClock(t *testing.T) {
	clock := model.NewManualClock(42_000)
	e := New(store.NewMemoryStore(), WithClock(clock))
	assert.Equal(t, int64(42_000), e.Now())
}

func TestTransition_ConcurrentSameUser(t *testing.T) {
	for _, backend := range []string{store.BackendMemory, store.BackendSqlite} {
		t.Run(backend, func(t *testing.T) {
			s := storetest.Open(t, backend)
			e := New(s)
			statuses := []string{"available", "meeting", "away", "short_break", "training", "lunch_break"}

			var wg sync.WaitGroup
			errs := make(chan error, 24)
			for i := 0; i < 24; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := e.Transition(context.Background(),
						Request{UserID: "u1", Status: statuses[i%len(statuses)]}, int64(1000+i))
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			open := openSessions(t, s)
			require.Len(t, open, 1)

			storetest.AssertTimeline(t, s, "u1")
		})
	}
}

func TestTransition_LateClockReadStartsAfterPreviousSession(t *testing.T) {
	storetest.Each(t, func(t *testing.T, s ports.Store) {
		e := New(s)
		ctx := context.Background()

		_, err := e.Transition(ctx, Request{UserID: "u1", Status: "available"}, 2000)
		require.NoError(t, err)
		_, err = e.Transition(ctx, Request{UserID: "u1", Status: "meeting"}, 3000)
		require.NoError(t, err)

		// Committed after the meeting although its clock was read before.
		res, err := e.Transition(ctx, Request{UserID: "u1", Status: "away"}, 2500)
		require.NoError(t, err)
		require.NotNil(t, res.Closed)
		assert.Equal(t, int64(3000), *res.Closed.EndTime)
		assert.Equal(t, int64(0), *res.Closed.DurationMs)
		assert.Equal(t, int64(3000), res.Session.StartTime)

		storetest.AssertTimeline(t, s, "u1")
		rows := allSessions(t, s, "u1")
		require.Len(t, rows, 3)
		assert.Equal(t, model.StatusAway, rows[2].Status)
	})
}

func TestTransition_LateClockReadAfterOffDuty(t *testing.T) {
	storetest.Each(t, func(t *testing.T, s ports.Store) {
		e := New(s)
		ctx := context.Background()

		_, err := e.Transition(ctx, Request{UserID: "u1", Status: "available"}, 1000)
		require.NoError(t, err)
		_, err = e.Transition(ctx, Request{UserID: "u1", Status: "off_duty"}, 5000)
		require.NoError(t, err)

		res, err := e.Transition(ctx, Request{UserID: "u1", Status: "training"}, 4000)
		require.NoError(t, err)
		assert.Nil(t, res.Closed)
		assert.Equal(t, int64(5000), res.Session.StartTime)

		storetest.AssertTimeline(t, s, "u1")
	})
}

func TestTransition_ShuffledClockReadsKeepTimeline(t *testing.T) {
	storetest.Each(t, func(t *testing.T, s ports.Store) {
		e := New(s)
		ctx := context.Background()
		steps := []struct {
			status string
			at     int64
		}{
			{"available", 5000}, {"meeting", 3000}, {"away", 7000}, {"off_duty", 6000},
			{"training", 2000}, {"short_break", 9000}, {"lunch_break", 8000},
		}
		for _, st := range steps {
			_, err := e.Transition(ctx, Request{UserID: "u1", Status: st.status}, st.at)
			require.NoError(t, err)
		}

		storetest.AssertTimeline(t, s, "u1")
		rows := allSessions(t, s, "u1")
		require.NotEmpty(t, rows)
		assert.Equal(t, model.StatusLunchBreak, rows[len(rows)-1].Status)
	})
}
