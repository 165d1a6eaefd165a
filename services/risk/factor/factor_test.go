// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package factor

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestCategoryWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, c := range AllCategories() {
		sum += c.DefaultWeight()
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("category weights sum to %v, want 1.0", sum)
	}
}

func TestCategoryRoundTrip(t *testing.T) {
	for _, c := range AllCategories() {
		parsed, err := ParseCategory(c.String())
		if err != nil {
			t.Fatalf("ParseCategory(%q): %v", c.String(), err)
		}
		if parsed != c {
			t.Errorf("round trip %q: got %v, want %v", c.String(), parsed, c)
		}
	}
}

func TestParseCategoryUnknown(t *testing.T) {
	_, err := ParseCategory("astrology")
	if !errors.Is(err, ErrInvalidFactor) {
		t.Errorf("expected ErrInvalidFactor, got %v", err)
	}
}

func TestConfidenceMultipliers(t *testing.T) {
	tests := []struct {
		level Confidence
		want  float64
	}{
		{VeryLow, 0.40},
		{Low, 0.60},
		{Moderate, 0.775},
		{High, 0.90},
		{VeryHigh, 0.975},
	}
	for _, tt := range tests {
		if got := tt.level.Multiplier(); got != tt.want {
			t.Errorf("%v.Multiplier() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestConfidenceMultipliersOrdered(t *testing.T) {
	levels := []Confidence{VeryLow, Low, Moderate, High, VeryHigh}
	for i := 1; i < len(levels); i++ {
		if levels[i].Multiplier() <= levels[i-1].Multiplier() {
			t.Errorf("multiplier for %v not greater than %v", levels[i], levels[i-1])
		}
	}
}

func TestConfidenceFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Confidence
	}{
		{0.0, VeryLow},
		{0.29, VeryLow},
		{0.3, Low},
		{0.5, Moderate},
		{0.7, High},
		{0.95, VeryHigh},
	}
	for _, tt := range tests {
		if got := ConfidenceFromScore(tt.score); got != tt.want {
			t.Errorf("ConfidenceFromScore(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"negative", -0.1},
		{"above one", 1.1},
		{"way out", 42.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(RegionalConflicts, "test", tt.value, High)
			if err := f.Validate(); !errors.Is(err, ErrInvalidFactor) {
				t.Errorf("expected ErrInvalidFactor for value %v, got %v", tt.value, err)
			}
		})
	}
}

func TestValidateRejectsUnknownCategory(t *testing.T) {
	f := New(Category(99), "test", 0.5, High)
	if err := f.Validate(); !errors.Is(err, ErrInvalidFactor) {
		t.Errorf("expected ErrInvalidFactor for unknown category, got %v", err)
	}
}

func TestValidateAcceptsBoundaries(t *testing.T) {
	for _, v := range []float64{0.0, 0.5, 1.0} {
		f := New(TechnicalIncidents, "boundary", v, Moderate)
		if err := f.Validate(); err != nil {
			t.Errorf("value %v should be valid: %v", v, err)
		}
	}
}

func TestValidateAllReportsIndex(t *testing.T) {
	factors := []RiskFactor{
		New(RegionalConflicts, "ok", 0.5, High),
		New(RegionalConflicts, "bad", 1.5, High),
	}
	err := ValidateAll(factors)
	if !errors.Is(err, ErrInvalidFactor) {
		t.Fatalf("expected ErrInvalidFactor, got %v", err)
	}
}

func TestRiskFactorYAMLRoundTrip(t *testing.T) {
	f := New(CommunicationBreakdown, "hotline_status", 0.85, High)
	data, err := yaml.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back RiskFactor
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Category != f.Category || back.Confidence != f.Confidence || back.Value != f.Value {
		t.Errorf("round trip mismatch: got %+v, want %+v", back, f)
	}
}

func TestRiskFactorJSONCategoryName(t *testing.T) {
	f := New(EmergingTechnology, "ai_c2", 0.4, Low)
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if want := `"category":"emerging_technology"`; !strings.Contains(string(data), want) {
		t.Errorf("JSON %s missing %s", data, want)
	}
}

func TestRiskLevelBands(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "Critical"},
		{89, "Critical"},
		{100, "Critical"},
		{150, "Severe"},
		{300, "High"},
		{500, "Moderate"},
		{900, "Low"},
		{1440, "Low"},
	}
	for _, tt := range tests {
		if got := RiskLevel(tt.seconds); got != tt.want {
			t.Errorf("RiskLevel(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestWeightedValue(t *testing.T) {
	f := New(RegionalConflicts, "x", 0.5, High)
	if got := f.WeightedValue(); math.Abs(got-0.10) > 1e-12 {
		t.Errorf("WeightedValue = %v, want 0.10", got)
	}
}
