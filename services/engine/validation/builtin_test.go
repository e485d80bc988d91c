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
	"strings"
	"testing"

	"github.com/AleutianAI/kodiak/services/engine/datatypes"
)

func TestSizeValidator(t *testing.T) {
	v := NewSizeValidator()

	tests := []struct {
		name      string
		content   string
		wantValid bool
		wantScore float64
	}{
		{"empty content fails", "", false, 0.0},
		{"normal content passes", "package main", true, 1.0},
		{"above half the bound warns", strings.Repeat("x", (1<<20)/2+1), true, 0.8},
		{"oversized fails", strings.Repeat("x", 1<<20+1), false, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Validate(context.Background(), &datatypes.Artifact{Content: tt.content}, nil)
			if err != nil {
				t.Fatalf("validate failed: %v", err)
			}
			if res.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", res.Valid, tt.wantValid)
			}
			if res.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", res.Score, tt.wantScore)
			}
		})
	}
}

func TestPatternValidator(t *testing.T) {
	v := NewPatternValidator()

	t.Run("clean content passes", func(t *testing.T) {
		res, err := v.Validate(context.Background(),
			&datatypes.Artifact{Content: "func add(a, b int) int { return a + b }"}, nil)
		if err != nil {
			t.Fatalf("validate failed: %v", err)
		}
		if !res.Valid || res.Score != 1.0 {
			t.Errorf("result = %+v, want valid with score 1.0", res)
		}
	})

	t.Run("hardcoded secret fails", func(t *testing.T) {
		res, _ := v.Validate(context.Background(),
			&datatypes.Artifact{Content: `api_key = "sk-abcdef1234567890"`}, nil)
		if res.Valid {
			t.Error("expected a hardcoded secret to fail validation")
		}
		if len(res.Errors) != 1 {
			t.Errorf("Errors = %v, want one hit", res.Errors)
		}
	})

	t.Run("score drops per matched pattern", func(t *testing.T) {
		content := `password = "hunter2hunter2"` + "\n" +
			`os.system("rm -rf /tmp/x")`
		res, _ := v.Validate(context.Background(), &datatypes.Artifact{Content: content}, nil)
		if res.Valid {
			t.Error("expected two pattern hits to fail validation")
		}
		// 2 of 3 patterns matched.
		want := 1.0 - 2.0/3.0
		if diff := res.Score - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Score = %v, want %v", res.Score, want)
		}
	})
}

func TestCompletenessValidator(t *testing.T) {
	v := &CompletenessValidator{}

	tests := []struct {
		name      string
		content   string
		wantValid bool
		wantScore float64
	}{
		{"finished content", "func done() {}", true, 1.0},
		{"one marker warns", "// TODO finish this", true, 0.8},
		{"two markers warn", "// TODO and FIXME later", true, 0.6},
		{"three markers fail", "TODO FIXME XXX", false, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Validate(context.Background(), &datatypes.Artifact{Content: tt.content}, nil)
			if err != nil {
				t.Fatalf("validate failed: %v", err)
			}
			if res.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", res.Valid, tt.wantValid)
			}
			if diff := res.Score - tt.wantScore; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Score = %v, want %v", res.Score, tt.wantScore)
			}
			if len(res.Warnings) > 0 && len(res.Suggestions) == 0 {
				t.Error("markers present but no suggestion emitted")
			}
		})
	}
}
