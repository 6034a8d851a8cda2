// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command statusctl reads a statustrack store offline: reports, CSV
// exports and integrity checks.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	xglog "github.com/ManuGH/statustrack/internal/log"
	"github.com/ManuGH/statustrack/internal/version"
)

func main() {
	xglog.Configure(xglog.Config{
		Level:   "warn",
		Output:  os.Stderr,
		Service: "statusctl",
		Version: version.Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
