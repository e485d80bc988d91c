// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/kodiak/services/engine/datatypes"
)

func noopProbe(_ context.Context) error { return nil }

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New()

	if err := r.Register("comp-a", "Component A", []string{"code"}, noopProbe); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	c, err := r.Get("comp-a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if c.Status != datatypes.StatusUnknown {
		t.Errorf("new component status = %q, want %q", c.Status, datatypes.StatusUnknown)
	}
	if c.SuccessCount != 0 || c.ErrorCount != 0 {
		t.Errorf("new component counters = %d/%d, want 0/0", c.SuccessCount, c.ErrorCount)
	}
	if _, ok := c.Metadata["registered_at"]; !ok {
		t.Error("expected registered_at metadata to be stamped")
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := New()

	if err := r.Register("comp-a", "A", []string{"code"}, nil); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	err := r.Register("comp-a", "A again", []string{"docs"}, nil)
	if !errors.Is(err, datatypes.ErrDuplicateComponent) {
		t.Errorf("duplicate register error = %v, want ErrDuplicateComponent", err)
	}

	// Original must be untouched.
	c, _ := r.Get("comp-a")
	if c.Name != "A" || !c.HasCapability("code") {
		t.Errorf("duplicate register mutated the original: %+v", c)
	}
}

func TestRegistry_RegisterEmptyID(t *testing.T) {
	r := New()
	if err := r.Register("", "nameless", nil, nil); err == nil {
		t.Error("expected an error for empty component id")
	}
}

func TestRegistry_UnregisterMissing(t *testing.T) {
	r := New()
	err := r.Unregister("ghost")
	if !errors.Is(err, datatypes.ErrComponentNotFound) {
		t.Errorf("unregister error = %v, want ErrComponentNotFound", err)
	}
}

func TestRegistry_GetReturnsSnapshot(t *testing.T) {
	r := New()
	r.Register("comp-a", "A", []string{"code"}, nil)

	c1, _ := r.Get("comp-a")
	c1.Capabilities[0] = "mutated"
	c1.Metadata["injected"] = "true"

	c2, _ := r.Get("comp-a")
	if c2.Capabilities[0] != "code" {
		t.Error("mutating a snapshot leaked into the registry")
	}
	if _, ok := c2.Metadata["injected"]; ok {
		t.Error("mutating snapshot metadata leaked into the registry")
	}
}

func TestRegistry_ListFilters(t *testing.T) {
	r := New()
	r.Register("comp-a", "A", []string{"code", "docs"}, nil)
	r.Register("comp-b", "B", []string{"code"}, nil)
	r.Register("comp-c", "C", []string{"docs"}, nil)
	r.RecordProbe("comp-a", ProbeSuccess, 10*time.Millisecond)
	r.RecordProbe("comp-b", ProbeSuccess, 10*time.Millisecond)
	r.SetStatus("comp-c", datatypes.StatusError)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"comp-a", "comp-b", "comp-c"}},
		{"by capability", Filter{Capability: "docs"}, []string{"comp-a", "comp-c"}},
		{"by status", Filter{Status: datatypes.StatusActive}, []string{"comp-a", "comp-b"}},
		{"capability and status", Filter{Capability: "docs", Status: datatypes.StatusActive}, []string{"comp-a"}},
		{"no match", Filter{Capability: "audio"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.List(tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("List(%+v) returned %d components, want %d", tt.filter, len(got), len(tt.want))
			}
			for i, c := range got {
				if c.ID != tt.want[i] {
					t.Errorf("List[%d].ID = %q, want %q", i, c.ID, tt.want[i])
				}
			}
		})
	}
}

func TestRegistry_ProbeTargetsSkipsProbelessAndInactive(t *testing.T) {
	r := New()
	r.Register("with-probe", "A", nil, noopProbe)
	r.Register("no-probe", "B", nil, nil)
	r.Register("inactive", "C", nil, noopProbe)
	r.SetStatus("inactive", datatypes.StatusInactive)

	targets := r.ProbeTargets()
	if len(targets) != 1 || targets[0].ID != "with-probe" {
		t.Errorf("ProbeTargets = %+v, want only with-probe", targets)
	}
}

func TestRegistry_RecordProbeTransitions(t *testing.T) {
	tests := []struct {
		name    string
		outcome ProbeOutcome
		want    datatypes.ComponentStatus
	}{
		{"success activates", ProbeSuccess, datatypes.StatusActive},
		{"failure errors", ProbeFailure, datatypes.StatusError},
		{"timeout degrades", ProbeTimeout, datatypes.StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			r.Register("comp-a", "A", nil, noopProbe)

			r.RecordProbe("comp-a", tt.outcome, 10*time.Millisecond)

			c, _ := r.Get("comp-a")
			if c.Status != tt.want {
				t.Errorf("status after %s = %q, want %q", tt.outcome, c.Status, tt.want)
			}
			if c.LastHealthCheck.IsZero() {
				t.Error("LastHealthCheck not stamped")
			}
		})
	}
}

func TestRegistry_RecordProbeTimeoutExcludedFromMean(t *testing.T) {
	r := New()
	r.Register("comp-a", "A", nil, noopProbe)

	r.RecordProbe("comp-a", ProbeSuccess, 100*time.Millisecond)
	r.RecordProbe("comp-a", ProbeTimeout, 5*time.Second)
	r.RecordProbe("comp-a", ProbeSuccess, 300*time.Millisecond)

	c, _ := r.Get("comp-a")
	if c.AvgResponseTime != 200*time.Millisecond {
		t.Errorf("AvgResponseTime = %v, want 200ms (timeout excluded)", c.AvgResponseTime)
	}
}

func TestRegistry_RecordProbeUnregisteredDropped(t *testing.T) {
	r := New()
	// Must not panic: the component vanished mid-probe.
	r.RecordProbe("gone", ProbeSuccess, time.Millisecond)
}

func TestRegistry_RecordTaskIncrementalMean(t *testing.T) {
	r := New()
	r.Register("comp-a", "A", nil, nil)

	durations := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		600 * time.Millisecond,
	}
	for _, d := range durations {
		if err := r.RecordTask("comp-a", true, d); err != nil {
			t.Fatalf("record task failed: %v", err)
		}
	}

	c, _ := r.Get("comp-a")
	if c.SuccessCount != 3 {
		t.Errorf("SuccessCount = %d, want 3", c.SuccessCount)
	}
	if c.AvgResponseTime != 300*time.Millisecond {
		t.Errorf("AvgResponseTime = %v, want 300ms", c.AvgResponseTime)
	}
}

func TestRegistry_RecordTaskMissing(t *testing.T) {
	r := New()
	err := r.RecordTask("ghost", true, time.Millisecond)
	if !errors.Is(err, datatypes.ErrComponentNotFound) {
		t.Errorf("record task error = %v, want ErrComponentNotFound", err)
	}
}

func TestRegistry_SetStatusRejectsInvalid(t *testing.T) {
	r := New()
	r.Register("comp-a", "A", nil, nil)

	if err := r.SetStatus("comp-a", "halted"); err == nil {
		t.Error("expected an error for an invalid status")
	}
	if err := r.SetStatus("comp-a", datatypes.StatusActive); err == nil {
		t.Error("expected an error: active must come from a successful probe")
	}
	if err := r.SetStatus("comp-a", datatypes.StatusInactive); err != nil {
		t.Errorf("valid SetStatus failed: %v", err)
	}

	c, _ := r.Get("comp-a")
	if c.Status == datatypes.StatusActive {
		t.Error("component became active without a successful probe")
	}
}

func TestRegistry_ConcurrentUpdatesIndependent(t *testing.T) {
	r := New()
	const n = 8
	ids := make([]string, n)
	for i := range ids {
		ids[i] = string(rune('a' + i))
		r.Register(ids[i], ids[i], nil, noopProbe)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.RecordProbe(id, ProbeSuccess, time.Duration(i)*time.Millisecond)
				r.RecordTask(id, i%2 == 0, time.Millisecond)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		c, err := r.Get(id)
		if err != nil {
			t.Fatalf("get %q failed: %v", id, err)
		}
		// 100 probe successes + 50 task successes.
		if c.SuccessCount != 150 {
			t.Errorf("%q SuccessCount = %d, want 150", id, c.SuccessCount)
		}
		if c.ErrorCount != 50 {
			t.Errorf("%q ErrorCount = %d, want 50", id, c.ErrorCount)
		}
	}
}
