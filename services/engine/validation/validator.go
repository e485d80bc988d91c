// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation runs artifacts through the multi-validator quality
// gate and aggregates the results.
package validation

import (
	"context"

	"github.com/AleutianAI/kodiak/services/engine/datatypes"
)

// Validator is a stateless, independent scorer of one artifact.
//
// # Contract
//
// Validate must be read-only with respect to shared state: validators in
// one pipeline run execute concurrently with no ordering guarantees.
// Implementations should honor ctx cancellation; a validator that does
// not return within its per-validator timeout is abandoned and its
// contribution synthesized as an explicit failure with score 0.0.
//
// Returned scores outside [0.0, 1.0] are clamped by the pipeline.
type Validator interface {
	// Name returns the validator's unique registered name.
	Name() string

	// Validate scores the artifact, optionally consulting the shared
	// context (may be nil). A non-nil error marks the run as an
	// execution error, distinct from a completed run with a low score.
	Validate(ctx context.Context, artifact *datatypes.Artifact, shared *datatypes.SharedContext) (*datatypes.ValidationResult, error)
}

// CPUBound is an optional marker for validators whose work is compute
// heavy rather than I/O bound. The pipeline admits such validators
// through a bounded worker pool so they cannot stall the scheduler.
type CPUBound interface {
	CPUBound() bool
}

func isCPUBound(v Validator) bool {
	if cb, ok := v.(CPUBound); ok {
		return cb.CPUBound()
	}
	return false
}
