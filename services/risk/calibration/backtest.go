// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package calibration

import (
	"fmt"
	"math"

	"github.com/AleutianAI/joshua/services/risk/stats"
	"github.com/AleutianAI/joshua/services/risk/trend"
)

// DefaultMinTrain is the shortest training prefix for walk-forward
// evaluation.
const DefaultMinTrain = 5

// BacktestStep records one walk-forward prediction.
type BacktestStep struct {
	Index     int     `json:"index"`
	Predicted float64 `json:"predicted"`
	Actual    float64 `json:"actual"`
	Error     float64 `json:"error"`
	// CorrectDirection is whether the prediction moved the same way
	// the series actually did. Flat moves count as correct only when
	// predicted flat.
	CorrectDirection bool `json:"correct_direction"`
}

// BacktestReport summarizes walk-forward performance.
type BacktestReport struct {
	Steps               []BacktestStep `json:"steps"`
	MeanAbsoluteError   float64        `json:"mean_absolute_error"`
	RMSE                float64        `json:"rmse"`
	DirectionalAccuracy float64        `json:"directional_accuracy"`
}

// WalkForward evaluates one-step-ahead predictions over a score
// series. For each index past the training prefix it fits a Sen slope
// on the prefix, extrapolates one step, and compares against the
// actual value. Needs at least DefaultMinTrain+1 points.
func WalkForward(series []float64) (*BacktestReport, error) {
	if len(series) < DefaultMinTrain+1 {
		return nil, fmt.Errorf("%w: need at least %d points, have %d",
			stats.ErrInsufficientSamples, DefaultMinTrain+1, len(series))
	}

	var steps []BacktestStep
	correct := 0
	for t := DefaultMinTrain; t < len(series); t++ {
		slope, err := trend.SenSlope(series[:t])
		if err != nil {
			return nil, fmt.Errorf("fit slope at index %d: %w", t, err)
		}
		last := series[t-1]
		predicted := clamp01(last + slope)
		actual := series[t]

		step := BacktestStep{
			Index:            t,
			Predicted:        predicted,
			Actual:           actual,
			Error:            predicted - actual,
			CorrectDirection: sign(predicted-last) == sign(actual-last),
		}
		if step.CorrectDirection {
			correct++
		}
		steps = append(steps, step)
	}

	predicted := make([]float64, len(steps))
	actual := make([]float64, len(steps))
	absErrSum := 0.0
	for i, step := range steps {
		predicted[i] = step.Predicted
		actual[i] = step.Actual
		absErrSum += math.Abs(step.Error)
	}
	rmse, err := stats.RMSE(predicted, actual)
	if err != nil {
		return nil, err
	}

	return &BacktestReport{
		Steps:               steps,
		MeanAbsoluteError:   absErrSum / float64(len(steps)),
		RMSE:                rmse,
		DirectionalAccuracy: float64(correct) / float64(len(steps)),
	}, nil
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
