// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ManuGH/statustrack/internal/api"
	"github.com/ManuGH/statustrack/internal/config"
	"github.com/ManuGH/statustrack/internal/daemon"
	"github.com/ManuGH/statustrack/internal/domain/status/engine"
	"github.com/ManuGH/statustrack/internal/domain/status/ports"
	"github.com/ManuGH/statustrack/internal/domain/status/report"
	"github.com/ManuGH/statustrack/internal/domain/status/store"
	"github.com/ManuGH/statustrack/internal/events"
	"github.com/ManuGH/statustrack/internal/health"
	xglog "github.com/ManuGH/statustrack/internal/log"
	"github.com/ManuGH/statustrack/internal/persistence/sqlite"
	"github.com/ManuGH/statustrack/internal/telemetry"
)

const serviceName = "statustrack"

// runtime is every long-lived collaborator of the daemon.
type runtime struct {
	store     ports.Store
	publisher events.Publisher
	tracing   *telemetry.Provider
	health    *health.Manager
	engine    *engine.Engine
	reports   *report.Service
	server    *api.Server
}

// buildRuntime opens the store, the event channel and the tracer, and wires
// the API on top. Anything opened before a failure is closed again.
func buildRuntime(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (rt *runtime, err error) {
	rt = &runtime{publisher: events.NopPublisher{}}
	defer func() {
		if err != nil {
			_ = rt.close(context.WithoutCancel(ctx))
			rt = nil
		}
	}()

	rt.tracing, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return rt, fmt.Errorf("telemetry: %w", err)
	}

	sqliteCfg := sqlite.DefaultConfig()
	if cfg.Store.BusyTimeout > 0 {
		sqliteCfg.BusyTimeout = cfg.Store.BusyTimeout
	}
	if cfg.Store.MaxOpenConns > 0 {
		sqliteCfg.MaxOpenConns = cfg.Store.MaxOpenConns
	}
	rt.store, err = store.OpenConfig(store.Config{
		Backend: cfg.Store.Backend,
		Path:    cfg.Store.Path,
		Sqlite:  sqliteCfg,
	})
	if err != nil {
		return rt, fmt.Errorf("open store: %w", err)
	}

	rt.health = health.NewManager(cfg.Version)
	rt.health.RegisterChecker(health.NewStoreChecker(rt.store.Backend(), rt.store))

	if cfg.Events.Enabled {
		pub, perr := events.NewRedisPublisher(events.RedisConfig{
			Addr:     cfg.Events.RedisAddr,
			Password: cfg.Events.RedisPassword,
			DB:       cfg.Events.RedisDB,
			Channel:  cfg.Events.Channel,
		}, xglog.WithComponent("events"))
		if perr != nil {
			return rt, fmt.Errorf("events: %w", perr)
		}
		rt.publisher = pub
		// Event delivery is best-effort, so a Redis outage only degrades.
		rt.health.RegisterChecker(health.NewPingChecker("events_redis", false, pub.Ping))
	}

	rt.engine = engine.New(rt.store,
		engine.WithPublisher(rt.publisher),
		engine.WithLogger(xglog.WithComponent("engine")),
	)
	rt.reports = report.New(rt.store)

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = serviceName
	}
	rt.server, err = api.NewServer(api.Config{
		RateLimitRPM:   cfg.API.RateLimitRPM,
		ExportRate:     cfg.API.ExportRate,
		ExportBurst:    cfg.API.ExportBurst,
		TracingService: tracingService,
		EnableMetrics:  cfg.Metrics.Enabled,
	}, api.Deps{
		Engine:  rt.engine,
		Reports: rt.reports,
		Health:  rt.health,
	})
	if err != nil {
		return rt, fmt.Errorf("api: %w", err)
	}

	logger.Info().
		Str("event", "runtime.ready").
		Str("store_backend", rt.store.Backend()).
		Bool("events", cfg.Events.Enabled).
		Bool("tracing", cfg.Telemetry.Enabled).
		Msg("runtime assembled")
	return rt, nil
}

// registerHooks installs the cleanup in the order the manager runs it
// backwards: publisher, then store, then tracer.
func (rt *runtime) registerHooks(mgr daemon.Manager) {
	mgr.RegisterShutdownHook("telemetry", func(ctx context.Context) error {
		if rt.tracing == nil {
			return nil
		}
		return rt.tracing.Shutdown(ctx)
	})
	mgr.RegisterShutdownHook("store", func(context.Context) error {
		return rt.store.Close()
	})
	mgr.RegisterShutdownHook("events", func(context.Context) error {
		return rt.publisher.Close()
	})
}

// close releases whatever was opened; used when startup fails midway.
func (rt *runtime) close(ctx context.Context) error {
	var errs []error
	if rt.publisher != nil {
		errs = append(errs, rt.publisher.Close())
	}
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	if rt.tracing != nil {
		errs = append(errs, rt.tracing.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
