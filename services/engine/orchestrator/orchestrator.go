// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator composes the registry, validation pipeline, and
// context store to drive one task end-to-end.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/kodiak/services/engine/contextstore"
	"github.com/AleutianAI/kodiak/services/engine/datatypes"
	"github.com/AleutianAI/kodiak/services/engine/observability"
	"github.com/AleutianAI/kodiak/services/engine/registry"
	"github.com/AleutianAI/kodiak/services/engine/validation"
)

// Orchestrator drives task execution: route, validate, record.
//
// # Failure Semantics
//
// Typed pre-execution failures (unknown/expired context, no capable
// component) surface directly to the caller and leave history and
// statistics untouched. Everything after selection is caught at this
// boundary: an unexpected error or panic is converted into a failed
// OrchestrationResult that is still recorded. The orchestrator never
// propagates an unhandled fault to its caller.
type Orchestrator struct {
	reg      *registry.Registry
	pipeline *validation.Pipeline
	contexts *contextstore.Store
	history  *History
	stats    *statistics
	logger   *slog.Logger
}

// New creates an orchestrator.
//
// # Inputs
//
//   - reg: Component registry. Required.
//   - pipeline: Validation pipeline. Required.
//   - contexts: Shared context store. Required.
//   - history: Bounded result history. Required.
//   - logger: May be nil; slog.Default() is used then.
func New(reg *registry.Registry, pipeline *validation.Pipeline, contexts *contextstore.Store, history *History, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		reg:      reg,
		pipeline: pipeline,
		contexts: contexts,
		history:  history,
		stats:    &statistics{},
		logger:   logger,
	}
}

// Execute runs one task end-to-end.
//
// # Description
//
//  1. Resolve the shared context if contextID is non-empty (typed
//     failures surface directly; nothing recorded).
//  2. Select the target component: Active components advertising
//     artifact.Kind, lowest average response time first, ties broken by
//     ID. No match → datatypes.ErrNoCapableComponent, nothing recorded.
//  3. Run the validation pipeline.
//  4. Append the immutable result to history, update statistics and the
//     selected component's counters, and share a result summary into
//     the context under the component's ID.
//
// # Outputs
//
//   - *datatypes.OrchestrationResult: Always non-nil when err is nil,
//     including for failed validations and converted internal faults.
//   - error: Only the typed pre-execution failures.
func (o *Orchestrator) Execute(ctx context.Context, taskID string, artifact *datatypes.Artifact, contextID string) (*datatypes.OrchestrationResult, error) {
	if artifact == nil {
		return nil, fmt.Errorf("execute %q: artifact must not be nil", taskID)
	}

	var shared *datatypes.SharedContext
	if contextID != "" {
		var err error
		shared, err = o.contexts.Get(contextID)
		if err != nil {
			return nil, err
		}
	}

	component, err := o.selectComponent(artifact.Kind)
	if err != nil {
		observability.RecordTaskRejected()
		return nil, err
	}

	start := time.Now()
	result := o.runGuarded(ctx, taskID, component.ID, artifact, shared, start)

	o.history.Append(result)
	o.stats.record(result.Success, result.Duration)
	if err := o.reg.RecordTask(component.ID, result.Success, result.Duration); err != nil {
		// Component unregistered mid-task; the result still stands.
		o.logger.Warn("component counter update skipped", "component_id", component.ID, "error", err)
	}
	o.shareResult(contextID, component.ID, result)

	status := "failure"
	if result.Success {
		status = "success"
	}
	observability.RecordTask(status, result.Duration.Seconds())

	o.logger.Info("task complete",
		"task_id", taskID,
		"component_id", component.ID,
		"success", result.Success,
		"score", result.Score,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// Statistics returns a snapshot of the task counters.
func (o *Orchestrator) Statistics() datatypes.Statistics {
	return o.stats.snapshot()
}

// History returns the bounded result history.
func (o *Orchestrator) History() *History {
	return o.history
}

// selectComponent picks the Active component with the lowest average
// response time among those advertising the capability. The registry's
// ID-sorted listing makes tie-breaking deterministic.
func (o *Orchestrator) selectComponent(capability string) (*datatypes.Component, error) {
	candidates := o.reg.List(registry.Filter{
		Capability: capability,
		Status:     datatypes.StatusActive,
	})
	if len(candidates) == 0 {
		return nil, fmt.Errorf("capability %q: %w", capability, datatypes.ErrNoCapableComponent)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.AvgResponseTime < best.AvgResponseTime {
			best = c
		}
	}
	return best, nil
}

// runGuarded executes the validation stage under the boundary guard:
// panics and unclassified errors become a failed, recordable result.
func (o *Orchestrator) runGuarded(ctx context.Context, taskID, componentID string, artifact *datatypes.Artifact, shared *datatypes.SharedContext, start time.Time) (result *datatypes.OrchestrationResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("task execution panicked", "task_id", taskID, "panic", fmt.Sprint(r))
			result = &datatypes.OrchestrationResult{
				ID:          uuid.NewString(),
				TaskID:      taskID,
				ComponentID: componentID,
				Success:     false,
				Score:       0.0,
				Duration:    time.Since(start),
				CreatedAt:   time.Now(),
				Error:       fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	outcome := o.pipeline.Validate(ctx, artifact, shared)

	return &datatypes.OrchestrationResult{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		ComponentID: componentID,
		Success:     outcome.Success,
		Score:       outcome.Score,
		Breakdown:   outcome.Breakdown,
		Duration:    time.Since(start),
		CreatedAt:   time.Now(),
	}
}

// shareResult publishes a compact result summary into the shared
// context so downstream components can see what was decided. Best
// effort: a context that expired mid-task is not a task failure.
func (o *Orchestrator) shareResult(contextID, componentID string, result *datatypes.OrchestrationResult) {
	if contextID == "" {
		return
	}
	summary := map[string]any{
		"result_id": result.ID,
		"task_id":   result.TaskID,
		"success":   result.Success,
		"score":     result.Score,
	}
	if err := o.contexts.Put(contextID, componentID, summary); err != nil {
		o.logger.Warn("result share skipped", "context_id", contextID, "error", err)
	}
}
