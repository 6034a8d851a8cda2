// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package auth carries the caller identity handed over by the authenticating
// proxy in front of statustrack. Credentials are never seen here.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"

	RoleAgent = "agent"
	RoleAdmin = "admin"
)

// ErrUnauthenticated is returned when the request names no user.
var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is the authenticated identity of a caller.
type Principal struct {
	UserID string
	// Role is informational; no policy is enforced on it.
	Role string
}

// FromHeaders reads the principal from the trusted proxy headers.
// A missing role defaults to RoleAgent.
func FromHeaders(r *http.Request) (Principal, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return Principal{}, ErrUnauthenticated
	}
	role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole)))
	if role == "" {
		role = RoleAgent
	}
	return Principal{UserID: id, Role: role}, nil
}

type ctxKey struct{}

// NewContext returns ctx carrying p.
func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by NewContext.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok && p.UserID != ""
}
