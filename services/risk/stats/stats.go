// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stats provides the shared statistical primitives used across
// the risk engine: summary statistics, correlation, normal-distribution
// helpers, and binomial confidence intervals.
//
// All functions are stateless and safe for concurrent use.
package stats

import (
	"errors"
	"math"
	"sort"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInsufficientSamples indicates not enough samples for analysis.
	ErrInsufficientSamples = errors.New("insufficient samples for statistical analysis")

	// ErrZeroVariance indicates a sample set has zero variance.
	ErrZeroVariance = errors.New("sample set has zero variance")

	// ErrLengthMismatch indicates paired sample sets of unequal length.
	ErrLengthMismatch = errors.New("paired sample sets have unequal length")
)

// -----------------------------------------------------------------------------
// Summary Statistics
// -----------------------------------------------------------------------------

// Mean calculates the arithmetic mean. Empty input returns 0.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// Variance calculates the sample variance (n-1 denominator).
func Variance(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	m := Mean(samples)
	var sumSq float64
	for _, s := range samples {
		diff := s - m
		sumSq += diff * diff
	}
	return sumSq / float64(len(samples)-1)
}

// StdDev calculates the sample standard deviation.
func StdDev(samples []float64) float64 {
	return math.Sqrt(Variance(samples))
}

// Median returns the middle value of the samples. Empty input returns 0.
func Median(samples []float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Percentile returns the p-th percentile (p in [0,100]) using linear
// interpolation between closest ranks.
func Percentile(samples []float64, p float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// RMSE calculates the root mean squared error between predictions and
// observations.
//
// Outputs:
//   - float64: The RMSE.
//   - error: ErrLengthMismatch or ErrInsufficientSamples.
func RMSE(predicted, observed []float64) (float64, error) {
	if len(predicted) != len(observed) {
		return 0, ErrLengthMismatch
	}
	if len(predicted) == 0 {
		return 0, ErrInsufficientSamples
	}
	var sumSq float64
	for i := range predicted {
		diff := predicted[i] - observed[i]
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(predicted))), nil
}

// -----------------------------------------------------------------------------
// Correlation
// -----------------------------------------------------------------------------

// Pearson calculates the Pearson correlation coefficient of two paired
// sample sets.
//
// Inputs:
//   - x, y: Paired samples. Must be equal length with at least 3 pairs.
//
// Outputs:
//   - float64: Correlation in [-1,1].
//   - error: ErrLengthMismatch, ErrInsufficientSamples, or
//     ErrZeroVariance if either set is constant.
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, ErrLengthMismatch
	}
	if len(x) < 3 {
		return 0, ErrInsufficientSamples
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, ErrZeroVariance
	}
	return cov / math.Sqrt(varX*varY), nil
}

// -----------------------------------------------------------------------------
// Normal Distribution
// -----------------------------------------------------------------------------

// NormalCDF approximates the standard normal CDF.
func NormalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// ZScore returns the z-score for a given cumulative probability.
func ZScore(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	if p >= 1 {
		return math.Inf(1)
	}
	// For p in (0,1): z = sqrt(2) * erfinv(2p - 1)
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

// -----------------------------------------------------------------------------
// Confidence Intervals
// -----------------------------------------------------------------------------

// ConfidenceInterval represents a statistical confidence interval.
type ConfidenceInterval struct {
	// Lower is the lower bound.
	Lower float64 `json:"lower" yaml:"lower"`

	// Upper is the upper bound.
	Upper float64 `json:"upper" yaml:"upper"`

	// Level is the confidence level (e.g., 0.95).
	Level float64 `json:"level" yaml:"level"`

	// Center is the point estimate.
	Center float64 `json:"center" yaml:"center"`
}

// Contains returns true if the interval contains the value.
func (ci ConfidenceInterval) Contains(v float64) bool {
	return v >= ci.Lower && v <= ci.Upper
}

// Width returns the interval width.
func (ci ConfidenceInterval) Width() float64 {
	return ci.Upper - ci.Lower
}

// WilsonInterval calculates the Wilson score interval for a binomial
// proportion.
//
// Description:
//
//	The Wilson interval remains well-behaved when the observed
//	proportion is near 0 or 1, where the naive normal approximation
//	collapses or escapes [0,1].
//
// Inputs:
//   - successes: Number of successes observed.
//   - trials: Total number of trials. Must be positive.
//   - level: Confidence level (e.g., 0.95).
//
// Outputs:
//   - ConfidenceInterval: Interval with Center set to the sample
//     proportion.
//   - error: ErrInsufficientSamples if trials is zero.
func WilsonInterval(successes, trials int, level float64) (ConfidenceInterval, error) {
	if trials <= 0 {
		return ConfidenceInterval{}, ErrInsufficientSamples
	}

	n := float64(trials)
	p := float64(successes) / n
	z := ZScore(1 - (1-level)/2)
	z2 := z * z

	denom := 1 + z2/n
	center := (p + z2/(2*n)) / denom
	margin := z / denom * math.Sqrt(p*(1-p)/n+z2/(4*n*n))

	return ConfidenceInterval{
		Lower:  math.Max(0, center-margin),
		Upper:  math.Min(1, center+margin),
		Level:  level,
		Center: p,
	}, nil
}
