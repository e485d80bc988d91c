// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/kodiak/services/engine/datatypes"
	"github.com/AleutianAI/kodiak/services/engine/storage"
)

const historyPrefix = "history/"

const historyPersistTimeout = 2 * time.Second

// =============================================================================
// Ring Buffer
// =============================================================================

// ringBuffer is a fixed-size circular buffer. O(1) push; when full, the
// oldest item is overwritten. Not safe for concurrent use; History
// synchronizes.
type ringBuffer[T any] struct {
	data  []T
	head  int // next write position
	tail  int // oldest element position
	count int
	full  bool
}

func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	return &ringBuffer[T]{data: make([]T, capacity)}
}

func (r *ringBuffer[T]) push(item T) {
	r.data[r.head] = item
	r.head = (r.head + 1) % len(r.data)

	if r.full {
		r.tail = (r.tail + 1) % len(r.data)
	} else {
		r.count++
		if r.count == len(r.data) {
			r.full = true
		}
	}
}

// slice returns all items, oldest to newest, as a copy.
func (r *ringBuffer[T]) slice() []T {
	if r.count == 0 {
		return nil
	}
	out := make([]T, r.count)
	if r.full {
		n := copy(out, r.data[r.tail:])
		copy(out[n:], r.data[:r.head])
	} else {
		copy(out, r.data[r.tail:r.tail+r.count])
	}
	return out
}

func (r *ringBuffer[T]) len() int { return r.count }

// =============================================================================
// History
// =============================================================================

// History is the bounded, append-only task result history.
//
// # Description
//
// Holds the `capacity` most recent OrchestrationResults, oldest evicted
// first on overflow. Appends are safe under concurrent writers. Results
// are immutable once appended; readers receive the stored pointers and
// must not mutate them.
//
// With a storage collaborator attached, each result is also written
// through under a monotonic sequence key and the key that falls off the
// window is deleted, so the persisted view mirrors the in-memory cap.
type History struct {
	mu      sync.Mutex
	buf     *ringBuffer[*datatypes.OrchestrationResult]
	seq     uint64
	cap     int
	persist storage.Store // optional
	logger  *slog.Logger
}

// NewHistory creates a history with the given capacity (minimum 1).
// persist and logger may be nil.
func NewHistory(capacity int, persist storage.Store, logger *slog.Logger) *History {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &History{
		buf:     newRingBuffer[*datatypes.OrchestrationResult](capacity),
		cap:     capacity,
		persist: persist,
		logger:  logger,
	}
}

// Append records a result, evicting the oldest if at capacity.
func (h *History) Append(result *datatypes.OrchestrationResult) {
	h.mu.Lock()
	h.buf.push(result)
	seq := h.seq
	h.seq++
	h.mu.Unlock()

	h.persistResult(seq, result)
}

// Recent returns up to n results, newest first.
func (h *History) Recent(n int) []*datatypes.OrchestrationResult {
	all := h.All()
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	out := make([]*datatypes.OrchestrationResult, n)
	for i := 0; i < n; i++ {
		out[i] = all[len(all)-1-i]
	}
	return out
}

// All returns every retained result, oldest first.
func (h *History) All() []*datatypes.OrchestrationResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.slice()
}

// Len returns the number of retained results.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.len()
}

// Cap returns the configured capacity.
func (h *History) Cap() int { return h.cap }

// persistResult mirrors the append into the storage collaborator,
// trimming the key that fell out of the window. Best effort: failures
// are logged, the in-memory history is authoritative.
func (h *History) persistResult(seq uint64, result *datatypes.OrchestrationResult) {
	if h.persist == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		h.logger.Error("history marshal failed", "result_id", result.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyPersistTimeout)
	defer cancel()

	key := fmt.Sprintf("%s%020d", historyPrefix, seq)
	if err := h.persist.Put(ctx, key, data); err != nil {
		h.logger.Error("history persist failed", "result_id", result.ID, "error", err)
		return
	}

	if seq >= uint64(h.cap) {
		old := fmt.Sprintf("%s%020d", historyPrefix, seq-uint64(h.cap))
		if err := h.persist.Delete(ctx, old); err != nil {
			h.logger.Warn("history trim failed", "key", old, "error", err)
		}
	}
}
