// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/ManuGH/statustrack/internal/log"
	"github.com/ManuGH/statustrack/internal/metrics"
)

// Throttle shares one token bucket between every caller of the wrapped
// routes. It protects expensive endpoints regardless of client IP.
func Throttle(scope string, perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Reserve()
			if !res.OK() {
				writeThrottled(w, r, scope, 1)
				return
			}
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				writeThrottled(w, r, scope, int(math.Ceil(delay.Seconds())))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeThrottled(w http.ResponseWriter, r *http.Request, scope string, retryAfter int) {
	metrics.RecordThrottled(scope)

	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":           "status/throttled",
		"title":          "Too Many Requests",
		"status":         http.StatusTooManyRequests,
		"code":           "THROTTLED",
		"detail":         scope + " is busy, try again later",
		JSONKeyRequestID: log.RequestIDFromContext(r.Context()),
	})
}
