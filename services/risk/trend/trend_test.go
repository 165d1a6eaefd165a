// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trend

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestMannKendallInsufficientHistory(t *testing.T) {
	for _, series := range [][]float64{nil, {1}, {1, 2}} {
		if _, err := MannKendall(series, 0.05); !errors.Is(err, ErrInsufficientHistory) {
			t.Errorf("series len %d: expected ErrInsufficientHistory, got %v", len(series), err)
		}
	}
}

func TestMannKendallStrictlyIncreasing(t *testing.T) {
	series := make([]float64, 20)
	for i := range series {
		series[i] = float64(i) * 0.05
	}
	result, err := MannKendall(series, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Significant {
		t.Error("strictly increasing 20-point series should be significant")
	}
	if result.Direction != Increasing {
		t.Errorf("direction = %v, want Increasing", result.Direction)
	}
	// S for a strictly increasing series is the number of pairs.
	if want := 20 * 19 / 2; result.S != want {
		t.Errorf("S = %d, want %d", result.S, want)
	}
	if math.Abs(result.Slope-0.05) > 1e-9 {
		t.Errorf("Sen's slope = %v, want 0.05", result.Slope)
	}
}

func TestMannKendallStrictlyDecreasing(t *testing.T) {
	series := make([]float64, 15)
	for i := range series {
		series[i] = 1.0 - float64(i)*0.05
	}
	result, err := MannKendall(series, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if result.Direction != Decreasing {
		t.Errorf("direction = %v, want Decreasing", result.Direction)
	}
	if result.Slope >= 0 {
		t.Errorf("slope = %v, want negative", result.Slope)
	}
}

func TestMannKendallConstantSeries(t *testing.T) {
	result, err := MannKendall([]float64{0.5, 0.5, 0.5, 0.5, 0.5}, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if result.Direction != NoTrend {
		t.Errorf("constant series direction = %v, want NoTrend", result.Direction)
	}
}

func TestMannKendallPermutedNoise(t *testing.T) {
	// On randomly permuted noise, false positives should stay close to
	// the significance level. Allow generous headroom for the small
	// trial count.
	rng := rand.New(rand.NewSource(42))
	trials := 200
	falsePositives := 0
	for trial := 0; trial < trials; trial++ {
		series := make([]float64, 20)
		for i := range series {
			series[i] = rng.Float64()
		}
		result, err := MannKendall(series, 0.05)
		if err != nil {
			t.Fatal(err)
		}
		if result.Significant {
			falsePositives++
		}
	}
	if rate := float64(falsePositives) / float64(trials); rate > 0.15 {
		t.Errorf("false positive rate %v too high for alpha=0.05", rate)
	}
}

func TestSenSlopeRobustToOutlier(t *testing.T) {
	// One wild point hardly moves the median of pairwise slopes.
	series := []float64{0, 1, 2, 3, 40, 5, 6, 7, 8, 9}
	slope, err := SenSlope(series)
	if err != nil {
		t.Fatal(err)
	}
	if slope < 0.8 || slope > 1.6 {
		t.Errorf("Sen's slope = %v, expected near 1", slope)
	}
}

func TestDetectChangePointsStep(t *testing.T) {
	// Constant at 0 for 50 points, then constant at a high level for
	// 50 points: exactly one change point within +-2 of the step.
	series := make([]float64, 100)
	for i := 50; i < 100; i++ {
		series[i] = 5.0
	}
	points, err := DetectChangePoints(series, DefaultCUSUMConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d change points, want 1: %+v", len(points), points)
	}
	cp := points[0]
	if cp.Index < 48 || cp.Index > 52 {
		t.Errorf("change point at index %d, want within [48,52]", cp.Index)
	}
	if cp.Direction != ShiftUp {
		t.Errorf("direction = %v, want ShiftUp", cp.Direction)
	}
	if cp.Confidence <= 0 || cp.Confidence > 1 {
		t.Errorf("confidence = %v, want in (0,1]", cp.Confidence)
	}
}

func TestDetectChangePointsNoisyStep(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sigma := 0.1
	series := make([]float64, 100)
	for i := range series {
		series[i] = rng.NormFloat64() * sigma
		if i >= 50 {
			series[i] += 10 * sigma
		}
	}
	points, err := DetectChangePoints(series, DefaultCUSUMConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(points) == 0 || len(points) > 2 {
		t.Fatalf("got %d change points, want 1: %+v", len(points), points)
	}
	found := false
	for _, cp := range points {
		if cp.Index >= 48 && cp.Index <= 52 {
			found = true
		}
	}
	if !found {
		t.Errorf("no change point within [48,52]: %+v", points)
	}
}

func TestDetectChangePointsStableSeries(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	series := make([]float64, 100)
	for i := range series {
		series[i] = 0.5 + rng.NormFloat64()*0.05
	}
	points, err := DetectChangePoints(series, DefaultCUSUMConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(points) > 1 {
		t.Errorf("stable series produced %d change points: %+v", len(points), points)
	}
}

func TestDetectChangePointsInsufficientHistory(t *testing.T) {
	if _, err := DetectChangePoints([]float64{1, 2, 3}, DefaultCUSUMConfig()); !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestDecomposeInsufficientHistory(t *testing.T) {
	series := make([]float64, 10)
	if _, err := Decompose(series, 7); !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("expected ErrInsufficientHistory for <2 periods, got %v", err)
	}
}

func TestDecomposeComponentsSumToSeries(t *testing.T) {
	series := make([]float64, 48)
	for i := range series {
		series[i] = 0.3 + 0.01*float64(i) + 0.1*math.Sin(2*math.Pi*float64(i)/12)
	}
	d, err := Decompose(series, 12)
	if err != nil {
		t.Fatal(err)
	}
	for i := range series {
		sum := d.Trend[i] + d.Seasonal[i] + d.Residual[i]
		if math.Abs(sum-series[i]) > 1e-9 {
			t.Fatalf("components at %d sum to %v, want %v", i, sum, series[i])
		}
	}
}

func TestDecomposeRecoversSeason(t *testing.T) {
	series := make([]float64, 60)
	for i := range series {
		series[i] = 0.5 + 0.2*math.Sin(2*math.Pi*float64(i)/12)
	}
	d, err := Decompose(series, 12)
	if err != nil {
		t.Fatal(err)
	}
	// Seasonal component should swing with amplitude near 0.2.
	maxSeasonal := 0.0
	for _, v := range d.Seasonal {
		if math.Abs(v) > maxSeasonal {
			maxSeasonal = math.Abs(v)
		}
	}
	if maxSeasonal < 0.1 {
		t.Errorf("seasonal amplitude %v too small, expected near 0.2", maxSeasonal)
	}
	// Seasonal means sum to zero by construction.
	var sum float64
	for p := 0; p < 12; p++ {
		sum += d.Seasonal[p]
	}
	if math.Abs(sum) > 1e-9 {
		t.Errorf("one period of seasonal sums to %v, want 0", sum)
	}
}
