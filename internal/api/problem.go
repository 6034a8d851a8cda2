// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/statustrack/internal/api/middleware"
	"github.com/ManuGH/statustrack/internal/log"
)

// writeProblem writes an RFC 7807 problem document.
//
//   - type: canonical machine identifier ("status/not_found")
//   - title: short human label ("Not Found")
//   - code: stable machine code ("NOT_FOUND")
//   - detail: explanation of this occurrence, optional
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string) {
	reqID := log.RequestIDFromContext(r.Context())
	if reqID == "" {
		reqID = w.Header().Get(middleware.HeaderRequestID)
	}

	res := map[string]any{
		"type":                      problemType,
		"title":                     title,
		"status":                    status,
		"code":                      code,
		"instance":                  r.URL.EscapedPath(),
		middleware.JSONKeyRequestID: reqID,
	}
	if detail != "" {
		res["detail"] = detail
	}

	if reqID != "" {
		w.Header().Set(middleware.HeaderRequestID, reqID)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.L().Error().
			Err(err).
			Str("type", problemType).
			Int("status", status).
			Msg("failed to encode problem response")
	}
}

// writeJSON writes v with the given status. Encoding failures after the
// header is sent can only be logged.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.L().Error().
			Err(err).
			Int("status", code).
			Msg("failed to encode JSON response")
	}
}
