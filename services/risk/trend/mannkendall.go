// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trend detects significant monotonic trends, abrupt shifts,
// and seasonal structure in historical risk-score series.
package trend

import (
	"errors"
	"math"
	"sort"

	"github.com/AleutianAI/joshua/services/risk/stats"
)

// ErrInsufficientHistory indicates a series too short for the requested
// analysis. Callers receive this explicit condition, never a guessed
// trend.
var ErrInsufficientHistory = errors.New("insufficient history for trend analysis")

// DefaultAlpha is the default two-tailed significance level.
const DefaultAlpha = 0.05

// -----------------------------------------------------------------------------
// Mann-Kendall Test
// -----------------------------------------------------------------------------

// Direction classifies a detected monotonic trend.
type Direction int

const (
	// NoTrend means no statistically significant monotonic trend.
	NoTrend Direction = iota

	// Increasing means a significant upward trend.
	Increasing

	// Decreasing means a significant downward trend.
	Decreasing
)

// String returns the wire name of the direction.
func (d Direction) String() string {
	switch d {
	case Increasing:
		return "increasing"
	case Decreasing:
		return "decreasing"
	default:
		return "no_trend"
	}
}

// Result holds the outcome of a Mann-Kendall test with Sen's slope.
type Result struct {
	// Direction is the trend classification at the given alpha.
	Direction Direction `json:"direction" yaml:"direction"`

	// S is the signed-rank statistic over all pairs.
	S int `json:"s" yaml:"s"`

	// Z is the normal-approximated test statistic.
	Z float64 `json:"z" yaml:"z"`

	// PValue is the two-tailed p-value.
	PValue float64 `json:"p_value" yaml:"p_value"`

	// Slope is Sen's slope, the median of all pairwise slopes. It is
	// reported regardless of significance as a robust magnitude
	// estimate.
	Slope float64 `json:"slope" yaml:"slope"`

	// Alpha is the significance level the classification used.
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// Significant is true when the null hypothesis of no trend was
	// rejected.
	Significant bool `json:"significant" yaml:"significant"`
}

// MannKendall runs the Mann-Kendall trend test on a series.
//
// Description:
//
//	Computes the signed-rank statistic S over all ordered pairs,
//	normal-approximates its variance with tie correction, derives a
//	Z-score, and classifies the series against the two-tailed critical
//	value. Sen's slope is attached as the magnitude estimate.
//
// Inputs:
//   - series: Observations in time order. Must have at least 3 points.
//   - alpha: Two-tailed significance level; 0 uses DefaultAlpha.
//
// Outputs:
//   - *Result: Test outcome.
//   - error: ErrInsufficientHistory when len(series) < 3.
//
// Thread Safety: Stateless, safe for concurrent use.
func MannKendall(series []float64, alpha float64) (*Result, error) {
	n := len(series)
	if n < 3 {
		return nil, ErrInsufficientHistory
	}
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}

	s := 0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case series[j] > series[i]:
				s++
			case series[j] < series[i]:
				s--
			}
		}
	}

	variance := mkVariance(series)
	if variance == 0 {
		// Constant series: no trend by definition.
		return &Result{Direction: NoTrend, S: s, Alpha: alpha, PValue: 1}, nil
	}

	var z float64
	switch {
	case s > 0:
		z = (float64(s) - 1) / math.Sqrt(variance)
	case s < 0:
		z = (float64(s) + 1) / math.Sqrt(variance)
	}

	pValue := 2 * (1 - stats.NormalCDF(math.Abs(z)))
	zCrit := stats.ZScore(1 - alpha/2)

	direction := NoTrend
	significant := math.Abs(z) > zCrit
	if significant {
		if s > 0 {
			direction = Increasing
		} else {
			direction = Decreasing
		}
	}

	return &Result{
		Direction:   direction,
		S:           s,
		Z:           z,
		PValue:      pValue,
		Slope:       senSlope(series),
		Alpha:       alpha,
		Significant: significant,
	}, nil
}

// mkVariance computes the tie-corrected Mann-Kendall variance:
// [n(n-1)(2n+5) - sum over tie groups t(t-1)(2t+5)] / 18.
func mkVariance(series []float64) float64 {
	n := float64(len(series))

	ties := make(map[float64]int)
	for _, v := range series {
		ties[v]++
	}
	tieSum := 0.0
	for _, t := range ties {
		if t > 1 {
			tf := float64(t)
			tieSum += tf * (tf - 1) * (2*tf + 5)
		}
	}
	return (n*(n-1)*(2*n+5) - tieSum) / 18
}

// SenSlope returns the median of all pairwise slopes (y_j-y_i)/(j-i).
//
// Outputs:
//   - float64: The robust trend magnitude per step.
//   - error: ErrInsufficientHistory when len(series) < 2.
func SenSlope(series []float64) (float64, error) {
	if len(series) < 2 {
		return 0, ErrInsufficientHistory
	}
	return senSlope(series), nil
}

func senSlope(series []float64) float64 {
	n := len(series)
	slopes := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			slopes = append(slopes, (series[j]-series[i])/float64(j-i))
		}
	}
	sort.Float64s(slopes)
	m := len(slopes)
	if m%2 == 1 {
		return slopes[m/2]
	}
	return (slopes[m/2-1] + slopes[m/2]) / 2
}
