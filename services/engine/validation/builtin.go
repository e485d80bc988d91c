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
	"regexp"
	"strings"

	"github.com/AleutianAI/kodiak/services/engine/datatypes"
)

// Built-in validators. These cover the structural checks every artifact
// gets regardless of which component produced it; domain validators are
// registered alongside them at the composition root.

// =============================================================================
// Size Validator
// =============================================================================

// SizeValidator rejects empty artifacts and penalizes oversized ones.
type SizeValidator struct {
	// MaxBytes is the hard upper bound. Content above it fails outright.
	// Default: 1 MiB.
	MaxBytes int
}

// NewSizeValidator creates a size validator with the default 1 MiB bound.
func NewSizeValidator() *SizeValidator {
	return &SizeValidator{MaxBytes: 1 << 20}
}

// Name returns "size".
func (v *SizeValidator) Name() string { return "size" }

// Validate scores 1.0 for content within bounds, fails empty or
// oversized content, and warns above half the bound.
func (v *SizeValidator) Validate(_ context.Context, artifact *datatypes.Artifact, _ *datatypes.SharedContext) (*datatypes.ValidationResult, error) {
	maxBytes := v.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}

	n := len(artifact.Content)
	switch {
	case n == 0:
		return &datatypes.ValidationResult{
			Valid:  false,
			Score:  0.0,
			Errors: []string{"artifact content is empty"},
		}, nil
	case n > maxBytes:
		return &datatypes.ValidationResult{
			Valid:  false,
			Score:  0.0,
			Errors: []string{fmt.Sprintf("artifact content is %d bytes, limit is %d", n, maxBytes)},
		}, nil
	case n > maxBytes/2:
		return &datatypes.ValidationResult{
			Valid:    true,
			Score:    0.8,
			Warnings: []string{fmt.Sprintf("artifact content is %d bytes, above half the %d byte limit", n, maxBytes)},
		}, nil
	}

	return &datatypes.ValidationResult{Valid: true, Score: 1.0}, nil
}

// =============================================================================
// Pattern Validator
// =============================================================================

// PatternValidator scans content for forbidden patterns (leaked secrets,
// dangerous calls). Each hit is a blocking error. CPU-bound: regex scans
// over large artifacts go through the pipeline's bounded worker pool.
type PatternValidator struct {
	patterns map[string]*regexp.Regexp
}

// NewPatternValidator creates a pattern validator with the default
// forbidden set.
func NewPatternValidator() *PatternValidator {
	return &PatternValidator{
		patterns: map[string]*regexp.Regexp{
			"hardcoded_secret": regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*"[^"]{8,}"`),
			"os_command":       regexp.MustCompile(`(?i)\b(os\.system|subprocess\.call|exec\.Command)\s*\(`),
			"private_key":      regexp.MustCompile(`-----BEGIN (RSA |EC )?PRIVATE KEY-----`),
		},
	}
}

// Name returns "pattern_scan".
func (v *PatternValidator) Name() string { return "pattern_scan" }

// CPUBound returns true.
func (v *PatternValidator) CPUBound() bool { return true }

// Validate fails on any forbidden pattern hit; the score drops by the
// fraction of patterns that matched.
func (v *PatternValidator) Validate(_ context.Context, artifact *datatypes.Artifact, _ *datatypes.SharedContext) (*datatypes.ValidationResult, error) {
	var errs []string
	for name, re := range v.patterns {
		if re.MatchString(artifact.Content) {
			errs = append(errs, fmt.Sprintf("forbidden pattern %q matched", name))
		}
	}

	if len(errs) == 0 {
		return &datatypes.ValidationResult{Valid: true, Score: 1.0}, nil
	}

	score := 1.0 - float64(len(errs))/float64(len(v.patterns))
	return &datatypes.ValidationResult{
		Valid:  false,
		Score:  score,
		Errors: errs,
		Details: map[string]any{
			"patterns_checked": len(v.patterns),
			"patterns_matched": len(errs),
		},
	}, nil
}

// =============================================================================
// Completeness Validator
// =============================================================================

// CompletenessValidator checks for unfinished-work markers left in the
// artifact (placeholder stubs, truncation).
type CompletenessValidator struct{}

// Name returns "completeness".
func (v *CompletenessValidator) Name() string { return "completeness" }

var incompleteMarkers = []string{
	"TODO", "FIXME", "XXX", "<placeholder>", "...", "unimplemented",
}

// Validate warns per marker found and fails when markers dominate.
func (v *CompletenessValidator) Validate(_ context.Context, artifact *datatypes.Artifact, _ *datatypes.SharedContext) (*datatypes.ValidationResult, error) {
	var warnings []string
	hits := 0
	for _, marker := range incompleteMarkers {
		if strings.Contains(artifact.Content, marker) {
			hits++
			warnings = append(warnings, fmt.Sprintf("unfinished-work marker %q present", marker))
		}
	}

	score := 1.0 - 0.2*float64(hits)
	if score < 0 {
		score = 0
	}
	return &datatypes.ValidationResult{
		Valid:       hits < 3,
		Score:       score,
		Warnings:    warnings,
		Suggestions: suggestionsFor(hits),
	}, nil
}

func suggestionsFor(hits int) []string {
	if hits == 0 {
		return nil
	}
	return []string{"resolve unfinished-work markers before promoting the artifact"}
}
