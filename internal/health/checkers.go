// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"time"
)

const defaultPingTimeout = 2 * time.Second

// PingChecker reports a dependency reachable through a ping func.
// A failing critical dependency is unhealthy; an optional one only degrades.
type PingChecker struct {
	name     string
	ping     func(ctx context.Context) error
	critical bool
	timeout  time.Duration
}

// NewPingChecker creates a checker around ping.
func NewPingChecker(name string, critical bool, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, critical: critical, timeout: defaultPingTimeout}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		status := StatusDegraded
		if c.critical {
			status = StatusUnhealthy
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}

// Pinger is anything with a context-aware Ping, such as a session store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewStoreChecker checks the session store; the API cannot serve without it.
func NewStoreChecker(backend string, store Pinger) *PingChecker {
	return NewPingChecker("store_"+backend, true, store.Ping)
}
