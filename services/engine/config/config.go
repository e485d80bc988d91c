// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates engine configuration from YAML
// with environment overrides.
//
// Durations are expressed in the file as integer seconds so the YAML
// stays unambiguous; accessors convert to time.Duration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Health   HealthConfig   `yaml:"health"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Contexts ContextsConfig `yaml:"contexts"`
	History  HistoryConfig  `yaml:"history"`
	Storage  StorageConfig  `yaml:"storage"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Port the gin server listens on.
	Port int `yaml:"port"`

	// RateLimitRPS is the sustained request rate allowed on the task
	// endpoint. Zero disables rate limiting.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`

	// RateLimitBurst is the burst allowance for the task endpoint.
	RateLimitBurst int `yaml:"rate_limit_burst"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// Dir enables file logging when set.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

// HealthConfig configures the health monitor.
type HealthConfig struct {
	IntervalSeconds     int `yaml:"interval_seconds"`
	ProbeTimeoutSeconds int `yaml:"probe_timeout_seconds"`
}

// Interval returns the probe cycle interval.
func (h HealthConfig) Interval() time.Duration {
	return time.Duration(h.IntervalSeconds) * time.Second
}

// ProbeTimeout returns the per-probe timeout.
func (h HealthConfig) ProbeTimeout() time.Duration {
	return time.Duration(h.ProbeTimeoutSeconds) * time.Second
}

// PipelineConfig configures the validation pipeline.
type PipelineConfig struct {
	ValidatorTimeoutSeconds int   `yaml:"validator_timeout_seconds"`
	CPUWorkers              int64 `yaml:"cpu_workers"`
}

// ValidatorTimeout returns the per-validator timeout.
func (p PipelineConfig) ValidatorTimeout() time.Duration {
	return time.Duration(p.ValidatorTimeoutSeconds) * time.Second
}

// ContextsConfig configures the context store and sweeper.
type ContextsConfig struct {
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	DefaultTTLSeconds    int `yaml:"default_ttl_seconds"`
}

// SweepInterval returns the background sweep interval.
func (c ContextsConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// DefaultTTL returns the TTL applied when a caller omits one.
func (c ContextsConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// HistoryConfig configures the bounded result history.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// StorageConfig configures the optional persistence collaborator.
type StorageConfig struct {
	// Enabled turns on BadgerDB-backed persistence.
	Enabled bool `yaml:"enabled"`

	// Path is the BadgerDB directory. Required when Enabled.
	Path string `yaml:"path"`
}

// Default returns production defaults matching the engine's documented
// behavior: 30s health cycles, 5s probes, 10s validators, 5m sweeps,
// 1000-entry history.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           12300,
			RateLimitRPS:   50,
			RateLimitBurst: 100,
		},
		Log: LogConfig{Level: "info"},
		Health: HealthConfig{
			IntervalSeconds:     30,
			ProbeTimeoutSeconds: 5,
		},
		Pipeline: PipelineConfig{
			ValidatorTimeoutSeconds: 10,
			CPUWorkers:              4,
		},
		Contexts: ContextsConfig{
			SweepIntervalSeconds: 300,
			DefaultTTLSeconds:    1800,
		},
		History: HistoryConfig{Capacity: 1000},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides and validates.
//
// # Inputs
//
//   - path: Config file path. Empty or missing file means defaults +
//     environment only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv applies KODIAK_* environment overrides. Malformed values are
// ignored in favor of the file/default value.
func (c *Config) applyEnv() {
	if v := os.Getenv("KODIAK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("KODIAK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("KODIAK_LOG_DIR"); v != "" {
		c.Log.Dir = v
	}
	if v := os.Getenv("KODIAK_STORAGE_PATH"); v != "" {
		c.Storage.Enabled = true
		c.Storage.Path = v
	}
}

// Validate checks ranges. Returns the first violation found.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Health.IntervalSeconds <= 0 {
		return fmt.Errorf("config: health.interval_seconds must be positive")
	}
	if c.Health.ProbeTimeoutSeconds <= 0 {
		return fmt.Errorf("config: health.probe_timeout_seconds must be positive")
	}
	if c.Pipeline.ValidatorTimeoutSeconds <= 0 {
		return fmt.Errorf("config: pipeline.validator_timeout_seconds must be positive")
	}
	if c.Pipeline.CPUWorkers <= 0 {
		return fmt.Errorf("config: pipeline.cpu_workers must be positive")
	}
	if c.Contexts.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("config: contexts.sweep_interval_seconds must be positive")
	}
	if c.Contexts.DefaultTTLSeconds <= 0 {
		return fmt.Errorf("config: contexts.default_ttl_seconds must be positive")
	}
	if c.History.Capacity <= 0 {
		return fmt.Errorf("config: history.capacity must be positive")
	}
	if c.Storage.Enabled && c.Storage.Path == "" {
		return fmt.Errorf("config: storage.path required when storage is enabled")
	}
	return nil
}
