// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry owns the set of registered components and their health
// and execution counters.
//
// # Description
//
// The registry is the single writer for component state. It holds one
// entry per component, each protected by its own mutex, so concurrent
// health updates to different components never contend with each other.
// The outer map is guarded by an RWMutex that is only held for lookups
// and membership changes, never across an entry mutation.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Reads return snapshots
// (deep copies); callers never observe a partially mutated component.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/kodiak/services/engine/datatypes"
)

// =============================================================================
// Probe Outcomes
// =============================================================================

// ProbeOutcome classifies how a health probe resolved.
type ProbeOutcome int

const (
	// ProbeSuccess means the probe returned nil within its timeout.
	ProbeSuccess ProbeOutcome = iota

	// ProbeFailure means the probe returned an explicit error.
	ProbeFailure

	// ProbeTimeout means the probe did not return within its timeout.
	// Maps to Degraded, distinct from Error.
	ProbeTimeout
)

// String returns "success", "failure", or "timeout".
func (o ProbeOutcome) String() string {
	switch o {
	case ProbeSuccess:
		return "success"
	case ProbeFailure:
		return "failure"
	case ProbeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// =============================================================================
// Registry
// =============================================================================

// entry pairs the authoritative component record with its probe and a
// per-entry mutex. responseSamples counts the durations folded into
// AvgResponseTime (timeouts are excluded: the elapsed time there is the
// bound, not a response).
type entry struct {
	mu              sync.Mutex
	component       datatypes.Component
	probe           datatypes.Probe
	responseSamples int64
}

// ProbeTarget is a component eligible for health probing.
type ProbeTarget struct {
	ID    string
	Probe datatypes.Probe
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	// Capability, when non-empty, keeps only components advertising it.
	Capability string

	// Status, when non-empty, keeps only components in that state.
	Status datatypes.ComponentStatus
}

// Registry is the concurrent component registry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a component.
//
// # Description
//
// Creates the component in Unknown status with zeroed counters and stamps
// "registered_at" into its metadata. The probe may be nil; such components
// are skipped by the health monitor and can only become Active through a
// later re-registration with a probe.
//
// # Inputs
//
//   - id: Unique component ID. Must be non-empty.
//   - name: Display name.
//   - capabilities: Capability tags used for routing.
//   - probe: Optional health check. May be nil.
//
// # Outputs
//
//   - error: datatypes.ErrDuplicateComponent if the ID is taken, or a
//     validation error for a malformed call.
func (r *Registry) Register(id, name string, capabilities []string, probe datatypes.Probe) error {
	if id == "" {
		return fmt.Errorf("register: component id must not be empty")
	}
	if name == "" {
		name = id
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("register %q: %w", id, datatypes.ErrDuplicateComponent)
	}

	now := time.Now()
	r.entries[id] = &entry{
		component: datatypes.Component{
			ID:           id,
			Name:         name,
			Capabilities: append([]string(nil), capabilities...),
			Status:       datatypes.StatusUnknown,
			Metadata: map[string]string{
				"registered_at": now.Format(time.RFC3339),
			},
		},
		probe: probe,
	}
	return nil
}

// Unregister removes a component permanently.
//
// Returns datatypes.ErrComponentNotFound if the ID is unknown.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; !exists {
		return fmt.Errorf("unregister %q: %w", id, datatypes.ErrComponentNotFound)
	}
	delete(r.entries, id)
	return nil
}

// Get returns a snapshot of the component.
//
// Returns datatypes.ErrComponentNotFound if the ID is unknown.
func (r *Registry) Get(id string) (*datatypes.Component, error) {
	r.mu.RLock()
	e, exists := r.entries[id]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("get %q: %w", id, datatypes.ErrComponentNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.component.Clone(), nil
}

// List returns snapshots of all components matching the filter, sorted by
// ID for deterministic output.
func (r *Registry) List(filter Filter) []*datatypes.Component {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var out []*datatypes.Component
	for _, e := range entries {
		e.mu.Lock()
		c := e.component.Clone()
		e.mu.Unlock()

		if filter.Capability != "" && !c.HasCapability(filter.Capability) {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ProbeTargets returns the components the health monitor should probe
// this cycle: every registered, non-Inactive component with a probe.
func (r *Registry) ProbeTargets() []ProbeTarget {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]ProbeTarget, 0, len(r.entries))
	for id, e := range r.entries {
		e.mu.Lock()
		skip := e.probe == nil || e.component.Status == datatypes.StatusInactive
		probe := e.probe
		e.mu.Unlock()
		if skip {
			continue
		}
		targets = append(targets, ProbeTarget{ID: id, Probe: probe})
	}
	return targets
}

// RecordProbe applies one probe result to a component.
//
// # Description
//
// Status transitions: success → Active, failure → Error, timeout →
// Degraded. Success and failure update the counters; success and failure
// durations fold into the running response-time mean. The entire update
// happens under the entry mutex after the probe has resolved, never
// mid-probe.
//
// A component that was unregistered while its probe was in flight is
// dropped silently: the result has nowhere to go.
func (r *Registry) RecordProbe(id string, outcome ProbeOutcome, duration time.Duration) {
	r.mu.RLock()
	e, exists := r.entries[id]
	r.mu.RUnlock()
	if !exists {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c := &e.component
	c.LastHealthCheck = time.Now()

	switch outcome {
	case ProbeSuccess:
		c.Status = datatypes.StatusActive
		c.SuccessCount++
		e.addResponseSample(duration)
	case ProbeFailure:
		c.Status = datatypes.StatusError
		c.ErrorCount++
		e.addResponseSample(duration)
	case ProbeTimeout:
		c.Status = datatypes.StatusDegraded
	}
}

// RecordTask applies one post-execution update to a component's counters
// and response-time mean.
//
// Returns datatypes.ErrComponentNotFound if the component was
// unregistered between selection and completion.
func (r *Registry) RecordTask(id string, success bool, duration time.Duration) error {
	r.mu.RLock()
	e, exists := r.entries[id]
	r.mu.RUnlock()
	if !exists {
		return fmt.Errorf("record task for %q: %w", id, datatypes.ErrComponentNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if success {
		e.component.SuccessCount++
	} else {
		e.component.ErrorCount++
	}
	e.addResponseSample(duration)
	return nil
}

// SetStatus administratively overrides a component's status, e.g. to mark
// it Inactive without unregistering. Active cannot be set this way: a
// component reaches Active only through a successful probe.
func (r *Registry) SetStatus(id string, status datatypes.ComponentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("set status %q: invalid status %q", id, status)
	}
	if status == datatypes.StatusActive {
		return fmt.Errorf("set status %q: active requires a successful probe", id)
	}

	r.mu.RLock()
	e, exists := r.entries[id]
	r.mu.RUnlock()
	if !exists {
		return fmt.Errorf("set status %q: %w", id, datatypes.ErrComponentNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.component.Status = status
	return nil
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// addResponseSample folds a duration into the count-weighted incremental
// mean. Caller holds e.mu.
func (e *entry) addResponseSample(d time.Duration) {
	e.responseSamples++
	delta := d - e.component.AvgResponseTime
	e.component.AvgResponseTime += delta / time.Duration(e.responseSamples)
}
