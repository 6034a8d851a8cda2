// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate reports every problem in cfg at once.
func Validate(cfg AppConfig) error {
	var errs []error

	if cfg.API.ListenAddr == "" {
		errs = append(errs, invalid("api.listenAddr", "must not be empty"))
	}
	if cfg.API.RateLimitRPM < 0 {
		errs = append(errs, invalid("api.rateLimitRPM", "must be >= 0, got %d", cfg.API.RateLimitRPM))
	}
	if cfg.API.ExportRate < 0 {
		errs = append(errs, invalid("api.exportRate", "must be >= 0, got %g", cfg.API.ExportRate))
	}
	if cfg.API.ExportRate > 0 && cfg.API.ExportBurst < 1 {
		errs = append(errs, invalid("api.exportBurst", "must be >= 1 when exportRate is set, got %d", cfg.API.ExportBurst))
	}

	switch cfg.Store.Backend {
	case "memory":
	case "sqlite", "badger":
		if cfg.Store.Path == "" {
			errs = append(errs, invalid("store.path", "required for backend %q", cfg.Store.Backend))
		}
	default:
		errs = append(errs, invalid("store.backend", "unknown backend %q (memory, sqlite, badger)", cfg.Store.Backend))
	}
	if cfg.Store.MaxOpenConns < 0 {
		errs = append(errs, invalid("store.maxOpenConns", "must be >= 0"))
	}

	if cfg.Events.Enabled && cfg.Events.RedisAddr == "" {
		errs = append(errs, invalid("events.redisAddr", "required when events are enabled"))
	}

	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr == "" {
		errs = append(errs, invalid("metrics.listenAddr", "required when metrics are enabled"))
	}
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr == cfg.API.ListenAddr {
		errs = append(errs, invalid("metrics.listenAddr", "must differ from api.listenAddr"))
	}

	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		errs = append(errs, invalid("telemetry.samplingRate", "must be within [0, 1], got %g", cfg.Telemetry.SamplingRate))
	}
	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			errs = append(errs, invalid("telemetry.exporter", "unsupported exporter %q (grpc, http)", cfg.Telemetry.Exporter))
		}
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil || cfg.Log.Level == "" {
		errs = append(errs, invalid("log.level", "unknown level %q", cfg.Log.Level))
	}

	return errors.Join(errs...)
}
