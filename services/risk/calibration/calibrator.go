// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package calibration validates the scoring engine against labeled
// historical events and backtests its trend predictions. The engine is
// consumed through the Assessor interface so the package stays
// independent of the pipeline wiring.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/joshua/services/risk/factor"
	"github.com/AleutianAI/joshua/services/risk/stats"
)

// ErrCalibrationFailed indicates the engine's scores do not track the
// expert labels closely enough to trust.
var ErrCalibrationFailed = errors.New("calibration failed")

const (
	// MinCorrelation is the weakest acceptable Pearson correlation
	// between engine scores and expert labels.
	MinCorrelation = 0.7
	// MaxRMSE is the largest acceptable root-mean-square error.
	MaxRMSE = 0.15
	// curveBins is the bucket count for the calibration curve.
	curveBins = 5
)

// Assessor produces a risk score in [0,1] for a factor set. The
// pipeline engine satisfies this.
type Assessor interface {
	Score(ctx context.Context, factors []factor.RiskFactor) (float64, error)
}

// AssessorFunc adapts a plain function to Assessor.
type AssessorFunc func(ctx context.Context, factors []factor.RiskFactor) (float64, error)

func (f AssessorFunc) Score(ctx context.Context, factors []factor.RiskFactor) (float64, error) {
	return f(ctx, factors)
}

// HistoricalEvent is one labeled crisis or baseline period.
type HistoricalEvent struct {
	Name        string              `json:"name" yaml:"name"`
	Date        time.Time           `json:"date" yaml:"date"`
	Factors     []factor.RiskFactor `json:"factors" yaml:"factors"`
	ExpertScore float64             `json:"expert_score" yaml:"expert_score" validate:"gte=0,lte=1"`
}

// LoadEvents reads a yaml fixture of historical events.
func LoadEvents(path string) ([]HistoricalEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events %s: %w", path, err)
	}
	var events []HistoricalEvent
	if err := yaml.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse events %s: %w", path, err)
	}
	return events, nil
}

// EventResult pairs one event's engine score with its label.
type EventResult struct {
	Name      string  `json:"name"`
	Predicted float64 `json:"predicted"`
	Expected  float64 `json:"expected"`
	Error     float64 `json:"error"`
}

// CurveBin is one bucket of the calibration curve: events whose
// predicted score fell in the bucket, with the label mean they carry.
type CurveBin struct {
	Lower         float64 `json:"lower"`
	Upper         float64 `json:"upper"`
	PredictedMean float64 `json:"predicted_mean"`
	ObservedMean  float64 `json:"observed_mean"`
	Count         int     `json:"count"`
}

// Report carries the full calibration outcome.
type Report struct {
	Correlation float64       `json:"correlation"`
	RMSE        float64       `json:"rmse"`
	Curve       []CurveBin    `json:"curve"`
	Results     []EventResult `json:"results"`
	Passed      bool          `json:"passed"`
}

// Calibrator scores labeled events through an Assessor.
type Calibrator struct {
	assessor Assessor
	logger   *slog.Logger
}

// NewCalibrator wraps the given assessor.
func NewCalibrator(assessor Assessor) *Calibrator {
	return &Calibrator{assessor: assessor, logger: slog.Default()}
}

// WithLogger sets the diagnostics logger.
func (c *Calibrator) WithLogger(logger *slog.Logger) *Calibrator {
	c.logger = logger
	return c
}

// Calibrate scores every event and compares against expert labels.
//
// Description: runs the assessor on each event's factors, then
// computes Pearson correlation, RMSE, and a binned calibration curve
// over (predicted, expected) pairs. Acceptance requires correlation
// above MinCorrelation AND RMSE below MaxRMSE; failing either returns
// the report together with ErrCalibrationFailed wrapping both numbers,
// so callers can still inspect the curve.
//
// Inputs:
//   - ctx: passed through to the assessor.
//   - events: at least 3 labeled events.
//
// Outputs:
//   - *Report: always populated when scoring succeeded, even on
//     calibration failure.
//   - error: a scoring error, stats.ErrInsufficientSamples, or
//     ErrCalibrationFailed.
func (c *Calibrator) Calibrate(ctx context.Context, events []HistoricalEvent) (*Report, error) {
	if len(events) < 3 {
		return nil, fmt.Errorf("%w: need at least 3 events, have %d",
			stats.ErrInsufficientSamples, len(events))
	}

	predicted := make([]float64, len(events))
	expected := make([]float64, len(events))
	results := make([]EventResult, len(events))
	for i, event := range events {
		score, err := c.assessor.Score(ctx, event.Factors)
		if err != nil {
			return nil, fmt.Errorf("score event %q: %w", event.Name, err)
		}
		predicted[i] = score
		expected[i] = event.ExpertScore
		results[i] = EventResult{
			Name:      event.Name,
			Predicted: score,
			Expected:  event.ExpertScore,
			Error:     score - event.ExpertScore,
		}
	}

	correlation, err := stats.Pearson(predicted, expected)
	if err != nil {
		return nil, fmt.Errorf("correlate predictions: %w", err)
	}
	rmse, err := stats.RMSE(predicted, expected)
	if err != nil {
		return nil, fmt.Errorf("compute rmse: %w", err)
	}

	report := &Report{
		Correlation: correlation,
		RMSE:        rmse,
		Curve:       buildCurve(predicted, expected),
		Results:     results,
		Passed:      correlation > MinCorrelation && rmse < MaxRMSE,
	}
	c.logger.Info("calibration complete",
		"events", len(events), "correlation", correlation, "rmse", rmse, "passed", report.Passed)
	if !report.Passed {
		return report, fmt.Errorf("%w: correlation %.3f (need >%.2f), rmse %.3f (need <%.2f)",
			ErrCalibrationFailed, correlation, MinCorrelation, rmse, MaxRMSE)
	}
	return report, nil
}

// buildCurve buckets events by predicted score.
func buildCurve(predicted, expected []float64) []CurveBin {
	bins := make([]CurveBin, curveBins)
	width := 1.0 / float64(curveBins)
	for i := range bins {
		bins[i].Lower = float64(i) * width
		bins[i].Upper = float64(i+1) * width
	}
	for i, p := range predicted {
		bucket := int(p / width)
		if bucket >= curveBins {
			bucket = curveBins - 1
		}
		bins[bucket].PredictedMean += p
		bins[bucket].ObservedMean += expected[i]
		bins[bucket].Count++
	}
	for i := range bins {
		if bins[i].Count > 0 {
			bins[i].PredictedMean /= float64(bins[i].Count)
			bins[i].ObservedMean /= float64(bins[i].Count)
		}
	}
	return bins
}
