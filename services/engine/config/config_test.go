// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Health.Interval() != 30*time.Second {
		t.Errorf("health interval = %v, want 30s", cfg.Health.Interval())
	}
	if cfg.Health.ProbeTimeout() != 5*time.Second {
		t.Errorf("probe timeout = %v, want 5s", cfg.Health.ProbeTimeout())
	}
	if cfg.Pipeline.ValidatorTimeout() != 10*time.Second {
		t.Errorf("validator timeout = %v, want 10s", cfg.Pipeline.ValidatorTimeout())
	}
	if cfg.Contexts.SweepInterval() != 5*time.Minute {
		t.Errorf("sweep interval = %v, want 5m", cfg.Contexts.SweepInterval())
	}
	if cfg.History.Capacity != 1000 {
		t.Errorf("history capacity = %d, want 1000", cfg.History.Capacity)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
health:
  interval_seconds: 10
  probe_timeout_seconds: 2
history:
  capacity: 50
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Health.Interval() != 10*time.Second {
		t.Errorf("health interval = %v, want 10s", cfg.Health.Interval())
	}
	if cfg.History.Capacity != 50 {
		t.Errorf("history capacity = %d, want 50", cfg.History.Capacity)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Pipeline.ValidatorTimeout() != 10*time.Second {
		t.Errorf("validator timeout = %v, want the 10s default", cfg.Pipeline.ValidatorTimeout())
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load of a missing file must fall back to defaults: %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("port = %d, want the default", cfg.Server.Port)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KODIAK_PORT", "7777")
	t.Setenv("KODIAK_LOG_LEVEL", "warn")
	t.Setenv("KODIAK_STORAGE_PATH", "/var/lib/kodiak")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("port = %d, want 7777", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Log.Level)
	}
	if !cfg.Storage.Enabled || cfg.Storage.Path != "/var/lib/kodiak" {
		t.Errorf("storage = %+v, want enabled at /var/lib/kodiak", cfg.Storage)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero health interval", func(c *Config) { c.Health.IntervalSeconds = 0 }},
		{"negative probe timeout", func(c *Config) { c.Health.ProbeTimeoutSeconds = -1 }},
		{"zero validator timeout", func(c *Config) { c.Pipeline.ValidatorTimeoutSeconds = 0 }},
		{"zero cpu workers", func(c *Config) { c.Pipeline.CPUWorkers = 0 }},
		{"zero sweep interval", func(c *Config) { c.Contexts.SweepIntervalSeconds = 0 }},
		{"zero history capacity", func(c *Config) { c.History.Capacity = 0 }},
		{"storage enabled without path", func(c *Config) { c.Storage.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
