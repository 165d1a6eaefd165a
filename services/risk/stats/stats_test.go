// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestMean(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{"empty", nil, 0},
		{"single", []float64{3}, 3},
		{"several", []float64{1, 2, 3, 4}, 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.samples); !almostEqual(got, tt.want, 1e-12) {
				t.Errorf("Mean = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVarianceAndStdDev(t *testing.T) {
	samples := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	// Sample variance with n-1 denominator: 32/7.
	if got := Variance(samples); !almostEqual(got, 32.0/7.0, 1e-12) {
		t.Errorf("Variance = %v, want %v", got, 32.0/7.0)
	}
	if got := StdDev(samples); !almostEqual(got, math.Sqrt(32.0/7.0), 1e-12) {
		t.Errorf("StdDev = %v", got)
	}
}

func TestMedian(t *testing.T) {
	if got := Median([]float64{3, 1, 2}); got != 2 {
		t.Errorf("odd median = %v, want 2", got)
	}
	if got := Median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Errorf("even median = %v, want 2.5", got)
	}
	if got := Median(nil); got != 0 {
		t.Errorf("empty median = %v, want 0", got)
	}
}

func TestPercentile(t *testing.T) {
	samples := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 3},
		{100, 5},
		{25, 2},
		{97.5, 4.9},
	}
	for _, tt := range tests {
		if got := Percentile(samples, tt.p); !almostEqual(got, tt.want, 1e-9) {
			t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestRMSE(t *testing.T) {
	got, err := RMSE([]float64{1, 2, 3}, []float64{1, 2, 3})
	if err != nil || got != 0 {
		t.Errorf("identical series RMSE = %v, %v", got, err)
	}
	got, err = RMSE([]float64{0, 0}, []float64{3, 4})
	if err != nil || !almostEqual(got, math.Sqrt(12.5), 1e-12) {
		t.Errorf("RMSE = %v, want %v", got, math.Sqrt(12.5))
	}
	if _, err := RMSE([]float64{1}, []float64{1, 2}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestPearson(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	yPos := []float64{2, 4, 6, 8, 10}
	yNeg := []float64{10, 8, 6, 4, 2}

	r, err := Pearson(x, yPos)
	if err != nil || !almostEqual(r, 1.0, 1e-9) {
		t.Errorf("perfect positive correlation = %v, %v", r, err)
	}
	r, err = Pearson(x, yNeg)
	if err != nil || !almostEqual(r, -1.0, 1e-9) {
		t.Errorf("perfect negative correlation = %v, %v", r, err)
	}
	if _, err := Pearson(x, []float64{1, 1, 1, 1, 1}); !errors.Is(err, ErrZeroVariance) {
		t.Errorf("expected ErrZeroVariance, got %v", err)
	}
	if _, err := Pearson([]float64{1, 2}, []float64{1, 2}); !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("expected ErrInsufficientSamples, got %v", err)
	}
}

func TestNormalCDF(t *testing.T) {
	tests := []struct {
		x, want float64
	}{
		{0, 0.5},
		{1.96, 0.975},
		{-1.96, 0.025},
	}
	for _, tt := range tests {
		if got := NormalCDF(tt.x); !almostEqual(got, tt.want, 1e-3) {
			t.Errorf("NormalCDF(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestZScoreInvertsCDF(t *testing.T) {
	for _, p := range []float64{0.025, 0.5, 0.8, 0.975} {
		z := ZScore(p)
		if got := NormalCDF(z); !almostEqual(got, p, 1e-9) {
			t.Errorf("NormalCDF(ZScore(%v)) = %v", p, got)
		}
	}
}

func TestWilsonIntervalContainsProportion(t *testing.T) {
	tests := []struct {
		successes, trials int
	}{
		{0, 100},
		{1, 100},
		{50, 100},
		{99, 100},
		{100, 100},
		{3, 10000},
	}
	for _, tt := range tests {
		ci, err := WilsonInterval(tt.successes, tt.trials, 0.95)
		if err != nil {
			t.Fatalf("WilsonInterval(%d,%d): %v", tt.successes, tt.trials, err)
		}
		p := float64(tt.successes) / float64(tt.trials)
		if !ci.Contains(p) {
			t.Errorf("interval [%v,%v] does not contain %v", ci.Lower, ci.Upper, p)
		}
		if ci.Lower < 0 || ci.Upper > 1 {
			t.Errorf("interval [%v,%v] escapes [0,1]", ci.Lower, ci.Upper)
		}
	}
}

func TestWilsonIntervalNarrowsWithTrials(t *testing.T) {
	prev := math.Inf(1)
	for _, n := range []int{100, 1000, 10000, 100000} {
		ci, err := WilsonInterval(n/10, n, 0.95)
		if err != nil {
			t.Fatal(err)
		}
		if ci.Width() >= prev {
			t.Errorf("width %v at n=%d did not narrow from %v", ci.Width(), n, prev)
		}
		prev = ci.Width()
	}
}

func TestWilsonIntervalZeroTrials(t *testing.T) {
	if _, err := WilsonInterval(0, 0, 0.95); !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("expected ErrInsufficientSamples, got %v", err)
	}
}
