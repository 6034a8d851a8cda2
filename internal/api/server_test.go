// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/statustrack/internal/api/middleware"
	"github.com/ManuGH/statustrack/internal/auth"
	"github.com/ManuGH/statustrack/internal/domain/status/engine"
	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/ports"
	"github.com/ManuGH/statustrack/internal/domain/status/report"
	"github.com/ManuGH/statustrack/internal/domain/status/store"
	"github.com/ManuGH/statustrack/internal/health"
)

// 2024-03-01T09:00:00.000Z
const t0 = int64(1709283600000)

type fixture struct {
	srv   *Server
	clock *model.ManualClock
	store ports.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, Config{})
}

func newFixtureWithConfig(t *testing.T, cfg Config) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	clock := model.NewManualClock(t0)
	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewStoreChecker(st.Backend(), st))

	srv, err := NewServer(cfg, Deps{
		Engine:  engine.New(st, engine.WithClock(clock)),
		Reports: report.New(st),
		Health:  hm,
	})
	require.NoError(t, err)
	return &fixture{srv: srv, clock: clock, store: st}
}

func (f *fixture) do(t *testing.T, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != "" {
		req.Header.Set(auth.HeaderUserID, user)
		req.Header.Set(auth.HeaderRole, auth.RoleAgent)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestChange_OpensAndCloses(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/status/change", "u1", `{"status":"available"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[model.TransitionResult](t, rec)
	assert.Equal(t, model.OutcomeOpened, first.Outcome)
	assert.Equal(t, t0, first.Session.StartTime)

	f.clock.Advance(90 * time.Second)
	rec = f.do(t, http.MethodPost, "/api/status/change", "u1", `{"status":"meeting"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[model.TransitionResult](t, rec)
	require.NotNil(t, second.Closed)
	assert.Equal(t, int64(90_000), *second.Closed.DurationMs)
	assert.Equal(t, "meeting", string(second.Session.Status))
}

func TestChange_WireNames(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/status/change", "u1", `{"status":"lunch_break"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	sess := raw["session"]
	assert.Equal(t, "lunch_break", sess["status_name"])
	assert.Equal(t, "u1", sess["user_id"])
	assert.Nil(t, sess["end_time"])
}

func TestChange_InvalidStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/status/change", "u1", `{"status":"sleeping"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	prob := decode[map[string]any](t, rec)
	assert.Equal(t, "INVALID_STATUS", prob["code"])
	assert.Contains(t, prob["detail"], "off_duty")
	assert.NotEmpty(t, prob[middleware.JSONKeyRequestID])

	rec = f.do(t, http.MethodGet, "/api/status/history", "u1", "")
	page := decode[model.Page](t, rec)
	assert.Zero(t, page.Pagination.TotalItems)
}

func TestChange_MalformedBody(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{`{"status":`, `{"status":"away","extra":1}`, `[]`} {
		rec := f.do(t, http.MethodPost, "/api/status/change", "u1", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "INVALID_INPUT", decode[map[string]any](t, rec)["code"])
	}
}

func TestMissingPrincipal(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/status/current", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decode[map[string]any](t, rec)["code"])
}

func TestCurrentAndStop(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/status/current", "u1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[map[string]any](t, rec)["code"])

	rec = f.do(t, http.MethodPost, "/api/status/stop", "u1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	prob := decode[map[string]any](t, rec)
	assert.Equal(t, "NO_ACTIVE_STATUS", prob["code"])
	assert.Equal(t, "No active status to stop", prob["detail"])

	f.do(t, http.MethodPost, "/api/status/change", "u1", `{"status":"training"}`)
	rec = f.do(t, http.MethodGet, "/api/status/current", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusTraining, decode[model.Session](t, rec).Status)

	f.clock.Advance(time.Second)
	rec = f.do(t, http.MethodPost, "/api/status/stop", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stopped := decode[model.Session](t, rec)
	assert.Equal(t, int64(1000), *stopped.DurationMs)

	rec = f.do(t, http.MethodGet, "/api/status/current", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryPaging(t *testing.T) {
	f := newFixture(t)
	for _, st := range []string{"available", "meeting", "away"} {
		f.do(t, http.MethodPost, "/api/status/change", "u1", `{"status":"`+st+`"}`)
		f.clock.Advance(time.Second)
	}

	rec := f.do(t, http.MethodGet, "/api/status/history?page=1&pageSize=2", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	p1 := decode[model.Page](t, rec)
	assert.Len(t, p1.Items, 2)
	assert.True(t, p1.Pagination.HasNextPage)

	rec = f.do(t, http.MethodGet, "/api/status/history?page=2&pageSize=2", "u1", "")
	p2 := decode[model.Page](t, rec)
	assert.Len(t, p2.Items, 1)
	assert.False(t, p2.Pagination.HasNextPage)

	rec = f.do(t, http.MethodGet, "/api/status/history?page=abc", "u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/status/history?from=2024-03-01T09:00:01Z", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[model.Page](t, rec).Pagination.TotalItems)
}

func TestSummaryEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/status/change", "u1", `{"status":"available"}`)
	f.clock.Advance(time.Second)
	f.do(t, http.MethodPost, "/api/status/change", "u1", `{"status":"lunch_break"}`)
	f.clock.Advance(3 * time.Second)
	f.do(t, http.MethodPost, "/api/status/change", "u1", `{"status":"off_duty"}`)

	rec := f.do(t, http.MethodGet, "/api/status/summary", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[model.Summary](t, rec)
	assert.Equal(t, map[model.Status]int64{
		model.StatusAvailable:  1000,
		model.StatusLunchBreak: 3000,
	}, sum.AsMap())
	assert.Equal(t, t0+4000, sum.Period.To)

	rec = f.do(t, http.MethodGet, "/api/status/summary?from=10&to=5", "u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/status/change", "u1", `{"status":"away"}`)
	f.clock.Advance(1500 * time.Millisecond)
	f.do(t, http.MethodPost, "/api/status/change", "u1", `{"status":"meeting"}`)

	rec := f.do(t, http.MethodGet, "/api/status/export", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="status_logs.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Status,Start Time,End Time,Duration (ms)\n"+
		"meeting,2024-03-01T09:00:01.500Z,Active,0\n"+
		"away,2024-03-01T09:00:00.000Z,2024-03-01T09:00:01.500Z,1500", rec.Body.String())
}

func TestExportEndpoint_Throttled(t *testing.T) {
	f := newFixtureWithConfig(t, Config{ExportRate: 0.01, ExportBurst: 1})

	rec := f.do(t, http.MethodGet, "/api/status/export", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/status/export", "u2", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other routes do not share the export bucket.
	rec = f.do(t, http.MethodGet, "/api/status/team", "u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTeamEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/status/change", "bob", `{"status":"away"}`)
	f.do(t, http.MethodPost, "/api/status/change", "alice", `{"status":"meeting"}`)

	rec := f.do(t, http.MethodGet, "/api/status/team", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	team := decode[teamResponse](t, rec)
	require.Equal(t, 2, team.Count)
	assert.Equal(t, "alice", team.Items[0].UserID)
	assert.Equal(t, "bob", team.Items[1].UserID)
}

func TestStorageFailureHidesDetails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Close())

	rec := f.do(t, http.MethodPost, "/api/status/change", "u1", `{"status":"available"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	prob := decode[map[string]any](t, rec)
	assert.Equal(t, "STORAGE_FAILURE", prob["code"])
	assert.NotContains(t, prob["detail"], "closed")

	rec = f.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProbesAndUnknownRoutes(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/readyz", "", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/nope", "", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodGet, "/api/status/change", "u1", "").Code)
}

func TestNewServer_ValidatesDeps(t *testing.T) {
	_, err := NewServer(Config{}, Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine is required")
}

func TestTimeParam(t *testing.T) {
	ms, err := timeParam("from", "1709283600000")
	require.NoError(t, err)
	assert.Equal(t, t0, *ms)

	ms, err = timeParam("from", "2024-03-01T09:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, t0, *ms)

	ms, err = timeParam("from", "")
	require.NoError(t, err)
	assert.Nil(t, ms)

	_, err = timeParam("from", "yesterday")
	require.Error(t, err)
}
