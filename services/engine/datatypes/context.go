// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// SharedContext is short-lived, session-scoped shared state used to pass
// data between components during task execution.
//
// # Lifecycle
//
//	Created ──▶ Active ──▶ Expired | Deleted   (both terminal)
//
// A context is unreadable once now > ExpiresAt regardless of whether the
// background sweep has run; every read and write performs the lazy check.
type SharedContext struct {
	// ID uniquely identifies the context (uuid).
	ID string `json:"id"`

	// SessionID groups contexts belonging to one caller session.
	SessionID string `json:"session_id"`

	// UserID identifies the owning user.
	UserID string `json:"user_id"`

	// Payloads maps component ID to the data that component stored.
	Payloads map[string]any `json:"payloads,omitempty"`

	// CreatedAt is when the context was created.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the context becomes unreadable.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the context is past its TTL at the given time.
func (c *SharedContext) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Clone returns a deep copy (payload values are shared; the map is not).
func (c *SharedContext) Clone() *SharedContext {
	out := *c
	if c.Payloads != nil {
		out.Payloads = make(map[string]any, len(c.Payloads))
		for k, v := range c.Payloads {
			out.Payloads[k] = v
		}
	}
	return &out
}

// Artifact is the unit of work submitted for validation. Kind routes the
// task to a capability; Content carries the candidate output being gated.
type Artifact struct {
	// Kind is the required capability, e.g. "code_generation".
	Kind string `json:"kind"`

	// Content is the candidate artifact body.
	Content string `json:"content"`

	// Language optionally names the content language, e.g. "go".
	Language string `json:"language,omitempty"`

	// Metadata holds caller-supplied auxiliary data.
	Metadata map[string]any `json:"metadata,omitempty"`
}
