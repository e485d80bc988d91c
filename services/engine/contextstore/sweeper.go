// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contextstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/kodiak/services/engine/observability"
)

// Sweeper periodically purges expired contexts.
//
// # Description
//
// Runs on its own goroutine, independent of the health monitor's loop
// and of any foreground store access: it never blocks them and is never
// blocked by them (the store's per-entry locking keeps sweep passes
// short). Correctness does not depend on the sweeper; the store's lazy
// checks already make expired contexts unreadable.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSweeper creates a sweeper over the store. interval <= 0 defaults to
// 5 minutes. logger may be nil.
func NewSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the background sweep loop.
//
// Returns an error if the sweeper is already running. Errors inside a
// sweep iteration are logged and never kill the loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("context sweeper is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("context sweeper starting", "interval", s.interval.String())

	s.wg.Add(1)
	go s.runLoop(ctx)
	return nil
}

// Stop signals the loop to exit and waits for the in-flight sweep to
// finish. Safe to call multiple times.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("context sweeper stopped")
}

// RunNow performs one sweep synchronously and returns how many contexts
// were evicted. Does not affect the scheduled cycle timing.
func (s *Sweeper) RunNow() int {
	return s.sweep()
}

func (s *Sweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep() int {
	start := time.Now()
	evicted := s.store.PurgeExpired()
	observability.RecordSweep(evicted)

	if evicted > 0 {
		s.logger.Info("context sweep complete",
			"evicted", evicted,
			"remaining", s.store.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return evicted
}
