// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the engine.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all engine metrics.
const metricsNamespace = "kodiak"

var (
	// taskTotal counts task executions by final status.
	// Labels: status (success, failure, rejected)
	taskTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "engine",
		Name:      "tasks_total",
		Help:      "Total task executions by status",
	}, []string{"status"})

	// taskDuration measures end-to-end task execution time.
	// Labels: status (success, failure)
	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "engine",
		Name:      "task_duration_seconds",
		Help:      "End-to-end task execution duration in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"status"})

	// probeTotal counts health probes by outcome.
	// Labels: outcome (success, failure, timeout)
	probeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "health",
		Name:      "probes_total",
		Help:      "Total health probes by outcome",
	}, []string{"outcome"})

	// probeDuration measures probe resolution time, including timeouts
	// (which resolve at the probe bound).
	probeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "health",
		Name:      "probe_duration_seconds",
		Help:      "Health probe resolution time in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// validatorRuns counts individual validator resolutions.
	// Labels: validator, cause (completed, timeout, execution_error)
	validatorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "pipeline",
		Name:      "validator_runs_total",
		Help:      "Validator resolutions by cause",
	}, []string{"validator", "cause"})

	// validatorScore tracks the distribution of validator scores.
	// Labels: validator
	validatorScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "pipeline",
		Name:      "validator_score",
		Help:      "Distribution of validator scores",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	}, []string{"validator"})

	// contextsActive tracks the number of live (unexpired) contexts.
	contextsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "contexts",
		Name:      "active",
		Help:      "Number of live shared contexts",
	})

	// contextSweeps counts background sweep cycles and evictions.
	contextSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "contexts",
		Name:      "sweeps_total",
		Help:      "Total background sweep cycles",
	})

	contextEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "contexts",
		Name:      "evictions_total",
		Help:      "Total contexts evicted by the background sweep",
	})
)

// RecordTask records one completed task execution.
//
// Inputs:
//
//	status - "success" or "failure".
//	durationSec - Duration in seconds.
func RecordTask(status string, durationSec float64) {
	taskTotal.WithLabelValues(status).Inc()
	taskDuration.WithLabelValues(status).Observe(durationSec)
}

// RecordTaskRejected records a task that was rejected before execution
// (no capable component). Rejections carry no duration.
func RecordTaskRejected() {
	taskTotal.WithLabelValues("rejected").Inc()
}

// RecordProbe records one resolved health probe.
//
// Inputs:
//
//	outcome - "success", "failure", or "timeout".
//	durationSec - Resolution time in seconds.
func RecordProbe(outcome string, durationSec float64) {
	probeTotal.WithLabelValues(outcome).Inc()
	probeDuration.Observe(durationSec)
}

// RecordValidator records one validator resolution.
//
// Inputs:
//
//	validator - The validator's registered name.
//	cause - "completed", "timeout", or "execution_error".
//	score - The contributed score (0.0 for timeouts and errors).
func RecordValidator(validator, cause string, score float64) {
	validatorRuns.WithLabelValues(validator, cause).Inc()
	validatorScore.WithLabelValues(validator).Observe(score)
}

// SetActiveContexts updates the live context gauge.
func SetActiveContexts(n int) {
	contextsActive.Set(float64(n))
}

// RecordSweep records one background sweep cycle and how many contexts
// it evicted.
func RecordSweep(evicted int) {
	contextSweeps.Inc()
	contextEvictions.Add(float64(evicted))
}
