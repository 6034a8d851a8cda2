// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"sync/atomic"
	"time"
)

// Clock supplies wall-clock timestamps in unix milliseconds.
type Clock interface {
	NowMs() int64
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) NowMs() int64 { return time.Now().UnixMilli() }

// ManualClock is a settable clock for tests and replay tooling.
type ManualClock struct {
	ms atomic.Int64
}

// NewManualClock returns a clock frozen at ms.
func NewManualClock(ms int64) *ManualClock {
	c := &ManualClock{}
	c.ms.Store(ms)
	return c
}

func (c *ManualClock) NowMs() int64 { return c.ms.Load() }

// Set moves the clock to ms.
func (c *ManualClock) Set(ms int64) { c.ms.Store(ms) }

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) { c.ms.Add(d.Milliseconds()) }
