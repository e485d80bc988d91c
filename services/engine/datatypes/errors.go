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

import "errors"

// =============================================================================
// Error Taxonomy
// =============================================================================
//
// Typed failures that surface directly to callers. Timeouts are never
// represented here: a probe or validator timeout is absorbed into the
// relevant component status or validation result. Any unclassified error
// during task execution is caught at the orchestrator boundary and
// converted into a failed OrchestrationResult.

// ErrDuplicateComponent is returned by Register when the component ID is
// already taken (configuration error).
var ErrDuplicateComponent = errors.New("component already registered")

// ErrComponentNotFound is returned by lookups for unknown component IDs.
var ErrComponentNotFound = errors.New("component not found")

// ErrContextNotFound is returned by context access for unknown context IDs.
var ErrContextNotFound = errors.New("context not found")

// ErrContextExpired is returned by context access once now > expires_at,
// independent of whether the background sweep has executed.
var ErrContextExpired = errors.New("context expired")

// ErrNoCapableComponent is returned by task execution when no Active
// component advertises the required capability. Nothing is recorded in
// history or statistics for this failure.
var ErrNoCapableComponent = errors.New("no active component with required capability")
