// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/kodiak/services/engine/datatypes"
	"github.com/AleutianAI/kodiak/services/engine/observability"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds pipeline settings. Zero values fall back to defaults.
type Config struct {
	// ValidatorTimeout bounds each individual validator run. Default: 10s.
	ValidatorTimeout time.Duration

	// CPUWorkers caps how many CPU-bound validators run at once across
	// all concurrent pipeline invocations. Default: 4.
	CPUWorkers int64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ValidatorTimeout: 10 * time.Second,
		CPUWorkers:       4,
	}
}

func (c Config) withDefaults() Config {
	if c.ValidatorTimeout <= 0 {
		c.ValidatorTimeout = 10 * time.Second
	}
	if c.CPUWorkers <= 0 {
		c.CPUWorkers = 4
	}
	return c
}

// =============================================================================
// Outcome
// =============================================================================

// Outcome is the aggregate of one pipeline run.
//
// Success is exactly the logical AND of all per-validator Valid flags
// (vacuously true for an empty validator list). Score is the arithmetic
// mean of all per-validator scores and is computed even when Success is
// false. Breakdown always covers every validator, including timed-out
// and errored ones.
type Outcome struct {
	Success   bool
	Score     float64
	Breakdown []datatypes.ValidatorBreakdown
}

// =============================================================================
// Pipeline
// =============================================================================

// Pipeline runs a fixed ordered list of validators concurrently.
//
// # Thread Safety
//
// The validator list is fixed at construction; Validate is safe for
// concurrent use. The CPU worker pool is shared across invocations.
type Pipeline struct {
	validators []Validator
	config     Config
	cpuPool    *semaphore.Weighted
	logger     *slog.Logger
}

// NewPipeline creates a pipeline over the given validators. The slice
// order is the reporting order; execution is unordered.
//
// logger may be nil; slog.Default() is used then.
func NewPipeline(validators []Validator, config Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	config = config.withDefaults()
	return &Pipeline{
		validators: append([]Validator(nil), validators...),
		config:     config,
		cpuPool:    semaphore.NewWeighted(config.CPUWorkers),
		logger:     logger,
	}
}

// Validators returns the registered validator names in reporting order.
func (p *Pipeline) Validators() []string {
	names := make([]string, len(p.validators))
	for i, v := range p.validators {
		names[i] = v.Name()
	}
	return names
}

// Validate runs every validator against the artifact and aggregates.
//
// # Description
//
// Each validator runs in its own goroutine under its own timeout; a
// timed-out validator contributes an explicit failure with score 0.0 and
// cause "timeout" rather than being dropped. Aggregation is gated by a
// barrier over all validators: the method returns only after every
// validator has resolved or timed out. Scores are clamped to [0.0, 1.0]
// before averaging.
//
// # Inputs
//
//   - ctx: Parent context. Per-validator timeouts derive from it.
//   - artifact: The artifact under validation. Must be non-nil.
//   - shared: Optional shared context. May be nil.
//
// # Outputs
//
//   - Outcome: Aggregate success, mean score, full breakdown.
func (p *Pipeline) Validate(ctx context.Context, artifact *datatypes.Artifact, shared *datatypes.SharedContext) Outcome {
	breakdown := make([]datatypes.ValidatorBreakdown, len(p.validators))

	var wg sync.WaitGroup
	for i, v := range p.validators {
		wg.Add(1)
		go func(slot int, v Validator) {
			defer wg.Done()
			breakdown[slot] = p.runOne(ctx, v, artifact, shared)
		}(i, v)
	}
	wg.Wait()

	return aggregate(breakdown)
}

// runOne executes a single validator bounded by the per-validator
// timeout. The breakdown entry is synthesized for timeouts, execution
// errors, and panics; all three contribute score 0.0 with a distinct
// cause so reporting can tell them from a genuine low score.
func (p *Pipeline) runOne(ctx context.Context, v Validator, artifact *datatypes.Artifact, shared *datatypes.SharedContext) datatypes.ValidatorBreakdown {
	name := v.Name()
	start := time.Now()

	if isCPUBound(v) {
		if err := p.cpuPool.Acquire(ctx, 1); err != nil {
			return failedEntry(name, datatypes.CauseExecutionError,
				fmt.Sprintf("validator %q: worker pool unavailable: %v", name, err),
				time.Since(start))
		}
		defer p.cpuPool.Release(1)
	}

	runCtx, cancel := context.WithTimeout(ctx, p.config.ValidatorTimeout)
	defer cancel()

	type outcome struct {
		result *datatypes.ValidationResult
		err    error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- outcome{err: fmt.Errorf("validator panic: %v", r)}
			}
		}()
		res, err := v.Validate(runCtx, artifact, shared)
		resultCh <- outcome{result: res, err: err}
	}()

	var entry datatypes.ValidatorBreakdown
	select {
	case out := <-resultCh:
		switch {
		case out.err != nil:
			p.logger.Warn("validator failed", "validator", name, "error", out.err)
			entry = failedEntry(name, datatypes.CauseExecutionError,
				fmt.Sprintf("validator %q: %v", name, out.err), time.Since(start))
		case out.result == nil:
			entry = failedEntry(name, datatypes.CauseExecutionError,
				fmt.Sprintf("validator %q returned no result", name), time.Since(start))
		default:
			res := *out.result
			res.Score = clampScore(res.Score)
			entry = datatypes.ValidatorBreakdown{
				Validator: name,
				Result:    res,
				Cause:     datatypes.CauseNone,
				Duration:  time.Since(start),
			}
		}
	case <-runCtx.Done():
		// The validator goroutine is abandoned; only this unit of work
		// is lost, the rest of the pipeline proceeds.
		p.logger.Warn("validator timed out",
			"validator", name,
			"timeout", p.config.ValidatorTimeout.String(),
		)
		entry = failedEntry(name, datatypes.CauseTimeout,
			fmt.Sprintf("validator %q exceeded %s timeout", name, p.config.ValidatorTimeout),
			time.Since(start))
	}

	observability.RecordValidator(name, causeLabel(entry.Cause), entry.Result.Score)
	return entry
}

// aggregate computes the AND/mean over a complete breakdown. Zero
// validators aggregate to a vacuous success with score 1.0.
func aggregate(breakdown []datatypes.ValidatorBreakdown) Outcome {
	if len(breakdown) == 0 {
		return Outcome{Success: true, Score: 1.0}
	}

	success := true
	sum := 0.0
	for _, b := range breakdown {
		success = success && b.Result.Valid
		sum += b.Result.Score
	}
	return Outcome{
		Success:   success,
		Score:     sum / float64(len(breakdown)),
		Breakdown: breakdown,
	}
}

func failedEntry(name string, cause datatypes.FailureCause, msg string, d time.Duration) datatypes.ValidatorBreakdown {
	return datatypes.ValidatorBreakdown{
		Validator: name,
		Result: datatypes.ValidationResult{
			Valid:  false,
			Score:  0.0,
			Errors: []string{msg},
		},
		Cause:    cause,
		Duration: d,
	}
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func causeLabel(c datatypes.FailureCause) string {
	if c == datatypes.CauseNone {
		return "completed"
	}
	return string(c)
}
