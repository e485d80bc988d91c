// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the shared data model for the Kodiak engine:
// components, validation results, orchestration results, shared contexts,
// and the error taxonomy used across the engine packages.
package datatypes

import (
	"context"
	"time"
)

// =============================================================================
// Component Status
// =============================================================================

// ComponentStatus is the health state of a registered component.
//
// # State Machine
//
// Five states, no terminal state. A component starts Unknown and moves to
// Active, Degraded, or Error based on probe outcomes. Probing continues
// until the component is unregistered or explicitly marked Inactive.
//
//	Unknown ──success──▶ Active
//	Unknown ──failure──▶ Error
//	Unknown ──timeout──▶ Degraded
//
// Transitions between Active, Degraded, and Error follow the same rules on
// every subsequent probe. A component can only reach Active after at least
// one successful probe since registration.
type ComponentStatus string

const (
	// StatusUnknown is the initial state before any probe has resolved.
	StatusUnknown ComponentStatus = "unknown"

	// StatusActive means the most recent probe succeeded. Only Active
	// components are eligible for task routing.
	StatusActive ComponentStatus = "active"

	// StatusDegraded means the most recent probe timed out. Distinct from
	// Error: the component may still be working, just slow.
	StatusDegraded ComponentStatus = "degraded"

	// StatusError means the most recent probe returned an explicit failure.
	StatusError ComponentStatus = "error"

	// StatusInactive means the component was administratively disabled.
	// It stays registered but is never routed to or probed.
	StatusInactive ComponentStatus = "inactive"
)

// Valid reports whether s is one of the defined status values.
func (s ComponentStatus) Valid() bool {
	switch s {
	case StatusUnknown, StatusActive, StatusDegraded, StatusError, StatusInactive:
		return true
	}
	return false
}

// =============================================================================
// Probe
// =============================================================================

// Probe is the health check contract a component may provide at
// registration. It returns nil on success and an error on failure.
// A probe that does not return within its timeout is treated as a
// timeout (Degraded), not an error.
type Probe func(ctx context.Context) error

// =============================================================================
// Component
// =============================================================================

// Component is a registered provider of one or more capabilities.
//
// # Thread Safety
//
// Component values returned by the registry are snapshots. The registry
// owns the authoritative entry and serializes mutations per component;
// callers must never mutate a snapshot expecting it to take effect.
type Component struct {
	// ID uniquely identifies the component within the registry.
	ID string `json:"id"`

	// Name is a human-readable display name.
	Name string `json:"name"`

	// Capabilities is the set of named functions this component performs,
	// used for task routing (e.g. "code_generation").
	Capabilities []string `json:"capabilities"`

	// Status is the current health state.
	Status ComponentStatus `json:"status"`

	// SuccessCount is the number of successful probes and task executions.
	SuccessCount int64 `json:"success_count"`

	// ErrorCount is the number of failed probes and task executions.
	ErrorCount int64 `json:"error_count"`

	// AvgResponseTime is a count-weighted incremental mean over probe and
	// task durations.
	AvgResponseTime time.Duration `json:"avg_response_time"`

	// LastHealthCheck is when the last probe resolved (success, failure,
	// or timeout). Zero if never probed.
	LastHealthCheck time.Time `json:"last_health_check"`

	// Metadata holds auxiliary key-value data. Registration stamps
	// "registered_at" (RFC 3339).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HasCapability reports whether the component advertises the capability.
func (c *Component) HasCapability(capability string) bool {
	for _, cap := range c.Capabilities {
		if cap == capability {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the component.
func (c *Component) Clone() *Component {
	out := *c
	out.Capabilities = append([]string(nil), c.Capabilities...)
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
