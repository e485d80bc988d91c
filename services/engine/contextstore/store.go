// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package contextstore manages short-lived, TTL-keyed shared context for
// cross-component data passing.
//
// # Description
//
// Every read and write performs the lazy expiry check: a context is
// unreadable the instant now passes expires_at, independent of whether
// the background sweep has executed. The sweep (see Sweeper) only
// reclaims memory; it carries no correctness burden.
//
// # Thread Safety
//
// The store map is guarded by an RWMutex held only for membership
// operations; each context entry has its own mutex, so concurrent
// payload writes to different contexts never contend.
package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/kodiak/services/engine/datatypes"
	"github.com/AleutianAI/kodiak/services/engine/observability"
	"github.com/AleutianAI/kodiak/services/engine/storage"
)

const persistPrefix = "context/"

// persistTimeout bounds each write-through to the storage collaborator.
const persistTimeout = 2 * time.Second

type entry struct {
	mu  sync.Mutex
	ctx datatypes.SharedContext
}

// Store is the concurrent TTL context store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	clock   Clock
	persist storage.Store // optional write-through backend
	logger  *slog.Logger
}

// NewStore creates a context store.
//
// # Inputs
//
//   - clock: Time source for TTL decisions. Nil defaults to SystemClock.
//   - persist: Optional storage collaborator. When non-nil, contexts are
//     written through on every mutation and unexpired contexts are
//     reloaded on construction. Persistence failures are logged, never
//     surfaced: the in-memory store is authoritative.
//   - logger: May be nil; slog.Default() is used then.
func NewStore(clock Clock, persist storage.Store, logger *slog.Logger) *Store {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		entries: make(map[string]*entry),
		clock:   clock,
		persist: persist,
		logger:  logger,
	}
	if persist != nil {
		s.reload()
	}
	return s
}

// Create creates a context and returns its ID.
//
// # Inputs
//
//   - sessionID, userID: Ownership metadata.
//   - ttl: Time until the context becomes unreadable. Must be positive.
func (s *Store) Create(sessionID, userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("create context: ttl must be positive, got %s", ttl)
	}

	now := s.clock.Now()
	sc := datatypes.SharedContext{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Payloads:  make(map[string]any),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	s.entries[sc.ID] = &entry{ctx: sc}
	size := len(s.entries)
	s.mu.Unlock()

	observability.SetActiveContexts(size)
	s.persistContext(&sc)
	return sc.ID, nil
}

// Put stores a component's payload into the context.
//
// Returns datatypes.ErrContextNotFound for unknown IDs and
// datatypes.ErrContextExpired once now > expires_at (the expired entry
// is evicted on detection).
func (s *Store) Put(id, componentID string, payload any) error {
	e, err := s.live(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	// Re-check under the entry lock; the sweep may have won the race.
	if e.ctx.Expired(s.clock.Now()) {
		e.mu.Unlock()
		s.evict(id)
		return fmt.Errorf("put into %q: %w", id, datatypes.ErrContextExpired)
	}
	e.ctx.Payloads[componentID] = payload
	snapshot := e.ctx.Clone()
	e.mu.Unlock()

	s.persistContext(snapshot)
	return nil
}

// Get returns a snapshot of the context.
//
// # Inputs
//
//   - id: Context ID.
//   - componentFilter: When non-empty, the snapshot's payload map is
//     reduced to the listed component IDs.
//
// # Outputs
//
//   - *datatypes.SharedContext: Deep-copied snapshot.
//   - error: datatypes.ErrContextNotFound or datatypes.ErrContextExpired.
func (s *Store) Get(id string, componentFilter ...string) (*datatypes.SharedContext, error) {
	e, err := s.live(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.ctx.Expired(s.clock.Now()) {
		e.mu.Unlock()
		s.evict(id)
		return nil, fmt.Errorf("get %q: %w", id, datatypes.ErrContextExpired)
	}
	snapshot := e.ctx.Clone()
	e.mu.Unlock()

	if len(componentFilter) > 0 {
		filtered := make(map[string]any, len(componentFilter))
		for _, cid := range componentFilter {
			if v, ok := snapshot.Payloads[cid]; ok {
				filtered[cid] = v
			}
		}
		snapshot.Payloads = filtered
	}
	return snapshot, nil
}

// Delete removes the context explicitly. Terminal: the ID is gone even
// if the context had time left.
//
// Returns datatypes.ErrContextNotFound for unknown IDs.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	_, exists := s.entries[id]
	if exists {
		delete(s.entries, id)
	}
	size := len(s.entries)
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("delete %q: %w", id, datatypes.ErrContextNotFound)
	}

	observability.SetActiveContexts(size)
	s.unpersistContext(id)
	return nil
}

// Len returns the number of stored (possibly-expired-but-unswept)
// contexts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// PurgeExpired removes every expired context and returns how many were
// evicted. Called by the background sweeper and usable directly.
func (s *Store) PurgeExpired() int {
	now := s.clock.Now()

	s.mu.RLock()
	var expired []string
	for id, e := range s.entries {
		e.mu.Lock()
		if e.ctx.Expired(now) {
			expired = append(expired, id)
		}
		e.mu.Unlock()
	}
	s.mu.RUnlock()

	for _, id := range expired {
		s.evict(id)
	}
	return len(expired)
}

// live fetches the entry and performs the first lazy expiry check.
func (s *Store) live(id string) (*entry, error) {
	s.mu.RLock()
	e, exists := s.entries[id]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("context %q: %w", id, datatypes.ErrContextNotFound)
	}

	e.mu.Lock()
	expired := e.ctx.Expired(s.clock.Now())
	e.mu.Unlock()
	if expired {
		s.evict(id)
		return nil, fmt.Errorf("context %q: %w", id, datatypes.ErrContextExpired)
	}
	return e, nil
}

// evict removes an expired entry from memory and the backend.
func (s *Store) evict(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	size := len(s.entries)
	s.mu.Unlock()

	observability.SetActiveContexts(size)
	s.unpersistContext(id)
}

// =============================================================================
// Persistence (optional collaborator)
// =============================================================================

func (s *Store) persistContext(sc *datatypes.SharedContext) {
	if s.persist == nil {
		return
	}
	data, err := json.Marshal(sc)
	if err != nil {
		s.logger.Error("context marshal failed", "context_id", sc.ID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persist.Put(ctx, persistPrefix+sc.ID, data); err != nil {
		s.logger.Error("context persist failed", "context_id", sc.ID, "error", err)
	}
}

func (s *Store) unpersistContext(id string) {
	if s.persist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persist.Delete(ctx, persistPrefix+id); err != nil {
		s.logger.Error("context unpersist failed", "context_id", id, "error", err)
	}
}

// reload restores unexpired contexts from the backend on construction.
func (s *Store) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pairs, err := s.persist.List(ctx, persistPrefix)
	if err != nil {
		s.logger.Error("context reload failed", "error", err)
		return
	}

	now := s.clock.Now()
	restored := 0
	for key, data := range pairs {
		var sc datatypes.SharedContext
		if err := json.Unmarshal(data, &sc); err != nil {
			s.logger.Warn("skipping corrupt persisted context", "key", key, "error", err)
			continue
		}
		if sc.Expired(now) {
			s.unpersistContext(sc.ID)
			continue
		}
		if sc.Payloads == nil {
			sc.Payloads = make(map[string]any)
		}
		s.entries[sc.ID] = &entry{ctx: sc}
		restored++
	}

	observability.SetActiveContexts(len(s.entries))
	if restored > 0 {
		s.logger.Info("contexts restored from storage", "count", restored)
	}
}
