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
	"fmt"
	"sync"
	"testing"

	"github.com/AleutianAI/kodiak/services/engine/datatypes"
	"github.com/AleutianAI/kodiak/services/engine/storage/badgerstore"
)

func resultWithTask(taskID string) *datatypes.OrchestrationResult {
	return &datatypes.OrchestrationResult{ID: "r-" + taskID, TaskID: taskID, Success: true}
}

func TestHistory_AppendAndAll(t *testing.T) {
	h := NewHistory(10, nil, nil)
	for i := 0; i < 3; i++ {
		h.Append(resultWithTask(fmt.Sprintf("t%d", i)))
	}

	all := h.All()
	if len(all) != 3 {
		t.Fatalf("All returned %d, want 3", len(all))
	}
	// Oldest first.
	for i, r := range all {
		if want := fmt.Sprintf("t%d", i); r.TaskID != want {
			t.Errorf("All[%d].TaskID = %q, want %q", i, r.TaskID, want)
		}
	}
}

func TestHistory_EvictsOldestAtCapacity(t *testing.T) {
	const capacity = 100
	h := NewHistory(capacity, nil, nil)

	// Overfill by half the capacity again.
	total := capacity + 50
	for i := 0; i < total; i++ {
		h.Append(resultWithTask(fmt.Sprintf("t%d", i)))
	}

	if h.Len() != capacity {
		t.Fatalf("Len = %d, want %d", h.Len(), capacity)
	}

	all := h.All()
	if all[0].TaskID != "t50" {
		t.Errorf("oldest retained = %q, want t50 (first 50 evicted)", all[0].TaskID)
	}
	if all[len(all)-1].TaskID != fmt.Sprintf("t%d", total-1) {
		t.Errorf("newest retained = %q, want t%d", all[len(all)-1].TaskID, total-1)
	}
}

func TestHistory_RecentNewestFirst(t *testing.T) {
	h := NewHistory(10, nil, nil)
	for i := 0; i < 5; i++ {
		h.Append(resultWithTask(fmt.Sprintf("t%d", i)))
	}

	recent := h.Recent(3)
	want := []string{"t4", "t3", "t2"}
	for i, r := range recent {
		if r.TaskID != want[i] {
			t.Errorf("Recent[%d].TaskID = %q, want %q", i, r.TaskID, want[i])
		}
	}

	// Asking beyond the retained count returns everything.
	if got := len(h.Recent(100)); got != 5 {
		t.Errorf("Recent(100) returned %d, want 5", got)
	}
}

func TestHistory_CapacityMinimumOne(t *testing.T) {
	h := NewHistory(0, nil, nil)
	h.Append(resultWithTask("a"))
	h.Append(resultWithTask("b"))
	if h.Len() != 1 {
		t.Errorf("Len = %d, want 1", h.Len())
	}
	if h.All()[0].TaskID != "b" {
		t.Errorf("retained = %q, want the newest", h.All()[0].TaskID)
	}
}

func TestHistory_ConcurrentAppends(t *testing.T) {
	h := NewHistory(1000, nil, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h.Append(resultWithTask(fmt.Sprintf("w%d-t%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	if h.Len() != 800 {
		t.Errorf("Len = %d, want 800", h.Len())
	}
}

func TestHistory_PersistedWindowMirrorsCap(t *testing.T) {
	backend, err := badgerstore.Open(badgerstore.InMemoryConfig())
	if err != nil {
		t.Fatalf("open backend failed: %v", err)
	}
	defer backend.Close()

	h := NewHistory(3, backend, nil)
	for i := 0; i < 5; i++ {
		h.Append(resultWithTask(fmt.Sprintf("t%d", i)))
	}

	pairs, err := backend.List(context.Background(), "history/")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(pairs) != 3 {
		t.Errorf("persisted window has %d entries, want 3: %v", len(pairs), pairs)
	}
}
