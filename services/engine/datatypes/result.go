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

// =============================================================================
// Validation Result
// =============================================================================

// ValidationResult is the outcome of a single validator run over one
// artifact. Immutable once produced.
type ValidationResult struct {
	// Valid reports whether the artifact passed this validator.
	Valid bool `json:"valid"`

	// Score is the validator's quality score in [0.0, 1.0].
	Score float64 `json:"score"`

	// Errors are blocking findings, in the order discovered.
	Errors []string `json:"errors,omitempty"`

	// Warnings are non-blocking findings.
	Warnings []string `json:"warnings,omitempty"`

	// Suggestions are optional improvement hints.
	Suggestions []string `json:"suggestions,omitempty"`

	// Details holds validator-specific structured output.
	Details map[string]any `json:"details,omitempty"`
}

// =============================================================================
// Failure Cause
// =============================================================================

// FailureCause distinguishes why a breakdown entry scored zero. A genuine
// low score from a validator that ran to completion is CauseNone; a
// validator that exceeded its timeout is CauseTimeout; a validator that
// returned an error or panicked is CauseExecutionError. All three fold
// into the aggregate score identically, but reporting keeps them apart.
type FailureCause string

const (
	// CauseNone means the validator ran to completion; Valid and Score
	// reflect its genuine judgment.
	CauseNone FailureCause = ""

	// CauseTimeout means the validator exceeded its per-validator timeout
	// and contributed an explicit failure with score 0.0.
	CauseTimeout FailureCause = "timeout"

	// CauseExecutionError means the validator returned an error or
	// panicked; it contributed an explicit failure with score 0.0.
	CauseExecutionError FailureCause = "execution_error"
)

// ValidatorBreakdown is one validator's contribution to an orchestration
// result, reported even on partial failure.
type ValidatorBreakdown struct {
	// Validator is the validator's registered name.
	Validator string `json:"validator"`

	// Result is the validator's (possibly synthesized) result.
	Result ValidationResult `json:"result"`

	// Cause is the failure cause, empty for a completed run.
	Cause FailureCause `json:"cause,omitempty"`

	// Duration is how long the validator ran before resolving or being
	// abandoned at its timeout.
	Duration time.Duration `json:"duration"`
}

// =============================================================================
// Orchestration Result
// =============================================================================

// OrchestrationResult is the immutable aggregate outcome of one task.
//
// Success is exactly the logical AND of all breakdown Valid flags (true
// for zero validators). Score is the arithmetic mean of all breakdown
// scores and is computed even when Success is false. Results are created
// once, appended to a bounded history, and never mutated afterwards.
type OrchestrationResult struct {
	// ID uniquely identifies this result (uuid).
	ID string `json:"id"`

	// TaskID is the caller-supplied task identifier.
	TaskID string `json:"task_id"`

	// ComponentID is the component the task was routed to. Empty when
	// the failure happened before selection completed.
	ComponentID string `json:"component_id,omitempty"`

	// Success is the AND of all validator Valid flags and false for any
	// task that failed outside validation.
	Success bool `json:"success"`

	// Score is the mean validator score in [0.0, 1.0].
	Score float64 `json:"score"`

	// Breakdown lists every validator's contribution in pipeline order.
	Breakdown []ValidatorBreakdown `json:"breakdown,omitempty"`

	// Duration is the end-to-end task execution time.
	Duration time.Duration `json:"duration"`

	// CreatedAt is when the result was produced.
	CreatedAt time.Time `json:"created_at"`

	// Error carries the failure message for tasks that failed outside
	// normal validation (orchestrator boundary conversions).
	Error string `json:"error,omitempty"`
}
