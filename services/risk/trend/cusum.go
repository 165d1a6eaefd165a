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
	"math"
)

// -----------------------------------------------------------------------------
// CUSUM Change-Point Detection
// -----------------------------------------------------------------------------

// ShiftDirection indicates which way a change point moved the series.
type ShiftDirection int

const (
	// ShiftUp is an upward mean shift.
	ShiftUp ShiftDirection = iota

	// ShiftDown is a downward mean shift.
	ShiftDown
)

// String returns the wire name of the shift direction.
func (d ShiftDirection) String() string {
	if d == ShiftDown {
		return "down"
	}
	return "up"
}

// ChangePoint is one abrupt mean shift detected in a series.
type ChangePoint struct {
	// Index is the observation index at which the shift was detected.
	Index int `json:"index" yaml:"index"`

	// Direction is the direction of the shift.
	Direction ShiftDirection `json:"direction" yaml:"direction"`

	// Magnitude is the cumulative deviation at detection, in the
	// series' units.
	Magnitude float64 `json:"magnitude" yaml:"magnitude"`

	// Confidence grows with how far the cumulative sum overshot the
	// decision threshold, capped at 1.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// CUSUMConfig tunes change-point detection.
type CUSUMConfig struct {
	// AllowanceSigma is the slack k in the deviation update, in units
	// of the estimated process sigma. Default: 0.5.
	AllowanceSigma float64 `json:"allowance_sigma" yaml:"allowance_sigma"`

	// ThresholdSigma is the decision threshold h, in units of the
	// estimated process sigma. Default: 4.
	ThresholdSigma float64 `json:"threshold_sigma" yaml:"threshold_sigma"`

	// MinBaseline is the number of observations used to establish the
	// in-control baseline before monitoring starts (and again after
	// each detected change point). Default: 5.
	MinBaseline int `json:"min_baseline" yaml:"min_baseline"`
}

// DefaultCUSUMConfig returns the standard k=0.5 sigma, h=4 sigma setup.
func DefaultCUSUMConfig() CUSUMConfig {
	return CUSUMConfig{
		AllowanceSigma: 0.5,
		ThresholdSigma: 4.0,
		MinBaseline:    5,
	}
}

// DetectChangePoints scans a series for abrupt mean shifts using a
// self-starting CUSUM.
//
// Description:
//
//	The detector maintains positive and negative cumulative deviations
//	from the running in-control mean, with allowance k = 0.5 sigma and
//	decision threshold h = 4 sigma. The process sigma is estimated
//	from successive differences (sd/sqrt(2)) of the current in-control
//	segment, which keeps it robust against the level shift itself.
//	Crossing h emits a change point and resets the accumulators and
//	baseline, so monitoring restarts in the post-change regime.
//
// Inputs:
//   - series: Observations in time order. Must have at least
//     MinBaseline+1 points.
//   - config: Detector tuning; zero values take defaults.
//
// Outputs:
//   - []ChangePoint: Detected shifts in index order. Empty when the
//     series is stable.
//   - error: ErrInsufficientHistory when the series is too short.
//
// Thread Safety: Stateless, safe for concurrent use.
func DetectChangePoints(series []float64, config CUSUMConfig) ([]ChangePoint, error) {
	if config.AllowanceSigma <= 0 {
		config.AllowanceSigma = 0.5
	}
	if config.ThresholdSigma <= 0 {
		config.ThresholdSigma = 4.0
	}
	if config.MinBaseline < 2 {
		config.MinBaseline = 5
	}
	if len(series) <= config.MinBaseline {
		return nil, ErrInsufficientHistory
	}

	var points []ChangePoint

	segStart := 0
	var cusumPos, cusumNeg float64

	for i := config.MinBaseline; i < len(series); i++ {
		baseline := series[segStart:i]
		if len(baseline) < config.MinBaseline {
			// Rebuilding the baseline after a detected shift.
			continue
		}

		mean := meanOf(baseline)
		sigma := successiveDiffSigma(baseline)
		if sigma < 1e-12 {
			// Perfectly flat baseline: any deviation is a shift.
			// Use the deviation itself to scale confidence.
			sigma = 1e-12
		}

		k := config.AllowanceSigma * sigma
		h := config.ThresholdSigma * sigma

		dev := series[i] - mean
		cusumPos = math.Max(0, cusumPos+dev-k)
		cusumNeg = math.Max(0, cusumNeg-dev-k)

		switch {
		case cusumPos > h:
			points = append(points, ChangePoint{
				Index:      i,
				Direction:  ShiftUp,
				Magnitude:  cusumPos,
				Confidence: overshootConfidence(cusumPos, h),
			})
			cusumPos, cusumNeg = 0, 0
			segStart = i
		case cusumNeg > h:
			points = append(points, ChangePoint{
				Index:      i,
				Direction:  ShiftDown,
				Magnitude:  cusumNeg,
				Confidence: overshootConfidence(cusumNeg, h),
			})
			cusumPos, cusumNeg = 0, 0
			segStart = i
		}
	}
	return points, nil
}

// overshootConfidence maps a threshold crossing to (0.5, 1]: just past
// h reads 0.5, twice h or more reads 1.
func overshootConfidence(cusum, h float64) float64 {
	if h <= 0 {
		return 1
	}
	return math.Min(1, 0.5*cusum/h)
}

// successiveDiffSigma estimates process sigma from successive
// differences: sd(diff)/sqrt(2). Unlike the segment's own standard
// deviation, this stays small across a level shift.
func successiveDiffSigma(segment []float64) float64 {
	if len(segment) < 3 {
		return 0
	}
	diffs := make([]float64, len(segment)-1)
	for i := 1; i < len(segment); i++ {
		diffs[i-1] = segment[i] - segment[i-1]
	}
	m := meanOf(diffs)
	var sumSq float64
	for _, d := range diffs {
		sumSq += (d - m) * (d - m)
	}
	sd := math.Sqrt(sumSq / float64(len(diffs)-1))
	return sd / math.Sqrt2
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
