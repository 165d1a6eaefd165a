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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/joshua/services/risk/factor"
	"github.com/AleutianAI/joshua/services/risk/stats"
)

// firstValueAssessor scores an event as its first factor's raw value.
var firstValueAssessor = AssessorFunc(func(_ context.Context, factors []factor.RiskFactor) (float64, error) {
	return factors[0].Value, nil
})

// labeledEvents builds one event per (value, label) pair.
func labeledEvents(values, labels []float64) []HistoricalEvent {
	events := make([]HistoricalEvent, len(values))
	for i := range values {
		events[i] = HistoricalEvent{
			Name: "event",
			Factors: []factor.RiskFactor{{
				Category:   factor.RegionalConflicts,
				Name:       "tension",
				Value:      values[i],
				Confidence: factor.High,
			}},
			ExpertScore: labels[i],
		}
	}
	return events
}

func TestCalibratePerfectAssessor(t *testing.T) {
	values := []float64{0.1, 0.3, 0.5, 0.7, 0.9}
	events := labeledEvents(values, values)

	report, err := NewCalibrator(firstValueAssessor).Calibrate(context.Background(), events)
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.InDelta(t, 1.0, report.Correlation, 1e-9)
	assert.InDelta(t, 0.0, report.RMSE, 1e-9)
	require.Len(t, report.Results, 5)
	for _, result := range report.Results {
		assert.InDelta(t, 0.0, result.Error, 1e-9)
	}
}

func TestCalibrateSmallBiasStillPasses(t *testing.T) {
	// Constant +0.1 bias keeps correlation at 1 and RMSE at 0.1.
	values := []float64{0.2, 0.4, 0.6, 0.8}
	labels := []float64{0.1, 0.3, 0.5, 0.7}
	report, err := NewCalibrator(firstValueAssessor).Calibrate(context.Background(), labeledEvents(values, labels))
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.InDelta(t, 0.1, report.RMSE, 1e-9)
}

func TestCalibrateLargeBiasFails(t *testing.T) {
	values := []float64{0.3, 0.5, 0.7, 0.9}
	labels := []float64{0.1, 0.3, 0.5, 0.7}
	report, err := NewCalibrator(firstValueAssessor).Calibrate(context.Background(), labeledEvents(values, labels))
	require.ErrorIs(t, err, ErrCalibrationFailed)
	// The report is still returned for inspection.
	require.NotNil(t, report)
	assert.False(t, report.Passed)
	assert.InDelta(t, 0.2, report.RMSE, 1e-9)
}

func TestCalibrateAnticorrelatedFails(t *testing.T) {
	values := []float64{0.9, 0.7, 0.5, 0.3, 0.1}
	labels := []float64{0.1, 0.3, 0.5, 0.7, 0.9}
	_, err := NewCalibrator(firstValueAssessor).Calibrate(context.Background(), labeledEvents(values, labels))
	assert.ErrorIs(t, err, ErrCalibrationFailed)
}

func TestCalibrateTooFewEvents(t *testing.T) {
	_, err := NewCalibrator(firstValueAssessor).Calibrate(context.Background(),
		labeledEvents([]float64{0.1, 0.2}, []float64{0.1, 0.2}))
	assert.ErrorIs(t, err, stats.ErrInsufficientSamples)
}

func TestCalibrationCurveBuckets(t *testing.T) {
	// Predictions 0.1, 0.1, 0.5, 0.9 land in buckets 0, 0, 2, 4.
	values := []float64{0.1, 0.1, 0.5, 0.9}
	labels := []float64{0.2, 0.0, 0.5, 0.8}
	report, err := NewCalibrator(firstValueAssessor).Calibrate(context.Background(), labeledEvents(values, labels))
	require.NoError(t, err)

	require.Len(t, report.Curve, 5)
	assert.Equal(t, 2, report.Curve[0].Count)
	assert.InDelta(t, 0.1, report.Curve[0].PredictedMean, 1e-9)
	assert.InDelta(t, 0.1, report.Curve[0].ObservedMean, 1e-9)
	assert.Equal(t, 1, report.Curve[2].Count)
	assert.Equal(t, 1, report.Curve[4].Count)
	assert.Equal(t, 0, report.Curve[1].Count)
}

func TestWalkForwardLinearSeries(t *testing.T) {
	// A perfectly linear series extrapolates exactly.
	series := make([]float64, 10)
	for i := range series {
		series[i] = 0.1 + 0.05*float64(i)
	}
	report, err := WalkForward(series)
	require.NoError(t, err)
	require.Len(t, report.Steps, 10-DefaultMinTrain)
	assert.InDelta(t, 0.0, report.MeanAbsoluteError, 1e-9)
	assert.InDelta(t, 0.0, report.RMSE, 1e-9)
	assert.InDelta(t, 1.0, report.DirectionalAccuracy, 1e-9)
}

func TestWalkForwardReversalHurtsDirection(t *testing.T) {
	// Rises for the training window, then falls: every extrapolation
	// keeps predicting up while the series moves down.
	series := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.45, 0.4, 0.35}
	report, err := WalkForward(series)
	require.NoError(t, err)
	assert.Less(t, report.DirectionalAccuracy, 0.5)
	assert.Greater(t, report.MeanAbsoluteError, 0.0)
}

func TestWalkForwardTooShort(t *testing.T) {
	_, err := WalkForward([]float64{0.1, 0.2, 0.3})
	assert.ErrorIs(t, err, stats.ErrInsufficientSamples)
}

func TestCalibrateHistoricalFixture(t *testing.T) {
	events, err := LoadEvents("testdata/historical_events.yaml")
	require.NoError(t, err)
	require.Len(t, events, 6)

	for _, event := range events {
		assert.False(t, event.Date.IsZero(), event.Name)
		require.NoError(t, factor.ValidateAll(event.Factors), event.Name)
	}

	// A mean-of-values assessor tracks the expert labels closely on
	// this fixture; the full pipeline is exercised in its own package.
	meanValue := AssessorFunc(func(_ context.Context, factors []factor.RiskFactor) (float64, error) {
		var sum float64
		for _, f := range factors {
			sum += f.Value
		}
		return sum / float64(len(factors)), nil
	})

	report, err := NewCalibrator(meanValue).Calibrate(context.Background(), events)
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Greater(t, report.Correlation, MinCorrelation)
	assert.Less(t, report.RMSE, MaxRMSE)
	assert.Len(t, report.Results, 6)
}
