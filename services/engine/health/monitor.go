// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package health runs the background health monitor for registered
// components.
//
// # Description
//
// Each cycle fans out one goroutine per probed component. Every probe is
// bounded by its own timeout; a hung probe never delays assessment of the
// others, because the monitor goroutine for that component abandons the
// probe at its deadline while the rest of the cycle proceeds
// independently. Results are applied to the registry only after a probe
// resolves (or its timeout fires), never mid-probe.
//
// # Thread Safety
//
// Start and Stop are safe for concurrent use. Only one loop runs at a
// time per monitor.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/kodiak/services/engine/observability"
	"github.com/AleutianAI/kodiak/services/engine/registry"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds monitor settings. Zero values fall back to defaults.
type Config struct {
	// Interval is how often a probe cycle runs. Default: 30s.
	Interval time.Duration

	// ProbeTimeout bounds each individual probe. Default: 5s.
	ProbeTimeout time.Duration
}

// DefaultConfig returns the production defaults: 30-second cycles with
// 5-second per-probe timeouts.
func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	return c
}

// =============================================================================
// Monitor
// =============================================================================

// Monitor probes registry members on a fixed interval.
type Monitor struct {
	reg    *registry.Registry
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewMonitor creates a monitor over the given registry.
//
// logger may be nil; slog.Default() is used then.
func NewMonitor(reg *registry.Registry, config Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		reg:    reg,
		config: config.withDefaults(),
		logger: logger,
	}
}

// Start launches the background probe loop.
//
// # Description
//
// The loop runs a cycle every Interval until Stop is called or ctx is
// cancelled. Errors inside a cycle are logged and never kill the loop.
//
// # Outputs
//
//   - error: Non-nil if the monitor is already running.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("health monitor is already running")
	}
	m.running = true
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.logger.Info("health monitor starting",
		"interval", m.config.Interval.String(),
		"probe_timeout", m.config.ProbeTimeout.String(),
	)

	m.wg.Add(1)
	go m.runLoop(ctx)
	return nil
}

// Stop signals the loop to exit and waits for the in-flight cycle's
// bookkeeping to finish. Abandoned (hung) probes are not waited on.
// Safe to call multiple times.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("health monitor stopped")
}

// RunNow executes a single probe cycle synchronously. Useful for tests
// and manual invocation; does not affect the scheduled cycle timing.
func (m *Monitor) RunNow(ctx context.Context) {
	m.runCycle(ctx)
}

// runLoop is the monitor goroutine.
func (m *Monitor) runLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	// First cycle immediately on start.
	m.runCycle(ctx)

	for {
		select {
		case <-ticker.C:
			m.runCycle(ctx)
		case <-m.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runCycle probes every target in parallel and applies the results.
//
// The cycle's WaitGroup is released by the per-component goroutines, each
// of which resolves at its own probe completion or timeout, whichever
// comes first. A probe goroutine left running past its deadline keeps no
// references other than its result channel.
func (m *Monitor) runCycle(ctx context.Context) {
	targets := m.reg.ProbeTargets()
	if len(targets) == 0 {
		return
	}

	start := time.Now()
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(t registry.ProbeTarget) {
			defer wg.Done()
			m.probeOne(ctx, t)
		}(target)
	}
	wg.Wait()

	m.logger.Debug("health cycle complete",
		"components", len(targets),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// probeOne runs a single probe under its own timeout and records the
// outcome. Panics inside a probe are treated as explicit failures.
func (m *Monitor) probeOne(ctx context.Context, target registry.ProbeTarget) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- fmt.Errorf("probe panic: %v", r)
			}
		}()
		resultCh <- target.Probe(probeCtx)
	}()

	var outcome registry.ProbeOutcome
	select {
	case err := <-resultCh:
		if err != nil {
			outcome = registry.ProbeFailure
			m.logger.Warn("probe failed", "component_id", target.ID, "error", err)
		} else {
			outcome = registry.ProbeSuccess
		}
	case <-probeCtx.Done():
		if context.Cause(probeCtx) == context.Canceled {
			// Shutdown, not a slow probe. Discard without recording.
			return
		}
		// Timeout: the probe goroutine is abandoned. It will eventually
		// send on the buffered channel and be collected.
		outcome = registry.ProbeTimeout
		m.logger.Warn("probe timed out",
			"component_id", target.ID,
			"timeout", m.config.ProbeTimeout.String(),
		)
	}

	duration := time.Since(start)
	m.reg.RecordProbe(target.ID, outcome, duration)
	observability.RecordProbe(outcome.String(), duration.Seconds())
}
