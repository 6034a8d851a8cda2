// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every environment key the loader read.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader for an optional YAML file.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) key(suffix string) string {
	k := EnvPrefix + suffix
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

// Load applies defaults, then the file, then the environment, and validates
// the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes the YAML file over cfg. Keys absent from the file keep
// their current values.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- the operator chooses the config path
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.API.ListenAddr = ParseString(l.key("API_LISTEN"), cfg.API.ListenAddr)
	cfg.API.ReadTimeout = ParseDuration(l.key("API_READ_TIMEOUT"), cfg.API.ReadTimeout)
	cfg.API.WriteTimeout = ParseDuration(l.key("API_WRITE_TIMEOUT"), cfg.API.WriteTimeout)
	cfg.API.ShutdownTimeout = ParseDuration(l.key("API_SHUTDOWN_TIMEOUT"), cfg.API.ShutdownTimeout)
	cfg.API.RateLimitRPM = ParseInt(l.key("API_RATE_LIMIT_RPM"), cfg.API.RateLimitRPM)
	cfg.API.ExportRate = ParseFloat(l.key("API_EXPORT_RATE"), cfg.API.ExportRate)
	cfg.API.ExportBurst = ParseInt(l.key("API_EXPORT_BURST"), cfg.API.ExportBurst)

	cfg.Store.Backend = strings.ToLower(ParseString(l.key("STORE_BACKEND"), cfg.Store.Backend))
	cfg.Store.Path = ParseString(l.key("STORE_PATH"), cfg.Store.Path)
	cfg.Store.BusyTimeout = ParseDuration(l.key("STORE_BUSY_TIMEOUT"), cfg.Store.BusyTimeout)
	cfg.Store.MaxOpenConns = ParseInt(l.key("STORE_MAX_OPEN_CONNS"), cfg.Store.MaxOpenConns)

	cfg.Events.Enabled = ParseBool(l.key("EVENTS_ENABLED"), cfg.Events.Enabled)
	cfg.Events.RedisAddr = ParseString(l.key("EVENTS_REDIS_ADDR"), cfg.Events.RedisAddr)
	cfg.Events.RedisPassword = ParseString(l.key("EVENTS_REDIS_PASSWORD"), cfg.Events.RedisPassword)
	cfg.Events.RedisDB = ParseInt(l.key("EVENTS_REDIS_DB"), cfg.Events.RedisDB)
	cfg.Events.Channel = ParseString(l.key("EVENTS_CHANNEL"), cfg.Events.Channel)

	cfg.Metrics.Enabled = ParseBool(l.key("METRICS_ENABLED"), cfg.Metrics.Enabled)
	cfg.Metrics.ListenAddr = ParseString(l.key("METRICS_LISTEN"), cfg.Metrics.ListenAddr)

	cfg.Telemetry.Enabled = ParseBool(l.key("TELEMETRY_ENABLED"), cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(l.key("TELEMETRY_EXPORTER"), cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(l.key("TELEMETRY_ENDPOINT"), cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = ParseString(l.key("TELEMETRY_ENVIRONMENT"), cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = ParseFloat(l.key("TELEMETRY_SAMPLING_RATE"), cfg.Telemetry.SamplingRate)

	cfg.Log.Level = strings.ToLower(ParseString(l.key("LOG_LEVEL"), cfg.Log.Level))
}

// ShutdownTimeoutOrDefault guards against a zero timeout from a sparse file.
func (c AppConfig) ShutdownTimeoutOrDefault() time.Duration {
	if c.API.ShutdownTimeout <= 0 {
		return Defaults().API.ShutdownTimeout
	}
	return c.API.ShutdownTimeout
}
