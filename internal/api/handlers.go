// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/statustrack/internal/domain/status/engine"
	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/report"
	"github.com/ManuGH/statustrack/internal/log"
)

const maxBodyBytes = 4 << 10

type changeRequest struct {
	Status string `json:"status"`
}

type teamResponse struct {
	Items []model.Session `json:"items"`
	Count int             `json:"count"`
}

func (s *Server) handleChange(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, ErrInvalidInput, "malformed request body")
		return
	}

	p := principal(r)
	res, err := s.engine.Transition(r.Context(), engine.Request{UserID: p.UserID, Status: req.Status}, s.engine.Now())
	if err != nil {
		detail := ""
		if errors.Is(err, model.ErrInvalidStatus) {
			detail = fmt.Sprintf("status must be one of: %s", statusList())
		}
		respondError(w, r, err, detail)
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Debug().
		Str(log.FieldEvent, "status.changed").
		Str(log.FieldRole, p.Role).
		Str(log.FieldOutcome, string(res.Outcome)).
		Msg("status change handled")

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	closed, err := s.engine.Stop(r.Context(), principal(r).UserID, s.engine.Now())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, closed)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	cur, err := s.reports.Current(r.Context(), principal(r).UserID)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"))
	if err != nil {
		respondError(w, r, ErrInvalidInput, "page must be an integer")
		return
	}
	pageSize, err := intParam(firstNonEmpty(q.Get("pageSize"), q.Get("limit")))
	if err != nil {
		respondError(w, r, ErrInvalidInput, "pageSize must be an integer")
		return
	}
	rng, err := rangeParams(q.Get("from"), q.Get("to"))
	if err != nil {
		respondError(w, r, ErrInvalidInput, err.Error())
		return
	}

	res, err := s.reports.History(r.Context(), principal(r).UserID, page, pageSize, rng)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rng, err := rangeParams(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, r, ErrInvalidInput, err.Error())
		return
	}

	res, err := s.reports.Summary(r.Context(), principal(r).UserID, rng.From, rng.To, s.engine.Now())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rng, err := rangeParams(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, r, ErrInvalidInput, err.Error())
		return
	}

	// Buffered so a store failure can still become a problem response.
	var buf bytes.Buffer
	if err := s.reports.ExportCSV(r.Context(), &buf, principal(r).UserID, rng.From, rng.To); err != nil {
		respondError(w, r, err, "")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.ExportFilename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, &buf); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).Str(log.FieldEvent, "export.write_failed").Msg("client went away during export")
	}
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	board, err := s.reports.TeamBoard(r.Context())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, teamResponse{Items: board, Count: len(board)})
}

func statusList() string {
	names := make([]string, 0, len(model.AllStatuses))
	for _, st := range model.AllStatuses {
		names = append(names, string(st))
	}
	return strings.Join(names, ", ")
}

// intParam parses an optional integer query value; empty means 0.
func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// timeParam accepts unix milliseconds or an RFC 3339 timestamp.
func timeParam(name, raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &ms, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be unix milliseconds or RFC 3339", name)
	}
	ms := t.UnixMilli()
	return &ms, nil
}

func rangeParams(from, to string) (model.Range, error) {
	var (
		rng model.Range
		err error
	)
	if rng.From, err = timeParam("from", from); err != nil {
		return model.Range{}, err
	}
	if rng.To, err = timeParam("to", to); err != nil {
		return model.Range{}, err
	}
	if err := rng.Validate(); err != nil {
		return model.Range{}, errors.New("from must not be after to")
	}
	return rng, nil
}
