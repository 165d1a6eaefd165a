// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/joshua/services/risk/factor"
)

// testConfig trims iteration counts for fast, deterministic tests.
func testConfig() EngineConfig {
	config := DefaultEngineConfig()
	config.MonteCarlo.Iterations = 2000
	config.MonteCarlo.Seed = 7
	config.Uncertainty.Samples = 1000
	config.Uncertainty.Seed = 7
	return config
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)
	return engine
}

// cubanMissileCrisis is the October 1962 benchmark factor set.
func cubanMissileCrisis() []factor.RiskFactor {
	return []factor.RiskFactor{
		factor.New(factor.RegionalConflicts, "soviet missiles in cuba", 0.95, factor.VeryHigh),
		factor.New(factor.LeadershipAndRhetoric, "ultimatum exchange", 0.90, factor.VeryHigh),
		factor.New(factor.CommunicationBreakdown, "no direct channel", 0.85, factor.High),
		factor.New(factor.DoctrineAndPosture, "defcon 2", 0.80, factor.VeryHigh),
	}
}

func TestAssessCubanMissileCrisis(t *testing.T) {
	engine := newTestEngine(t)
	score, err := engine.Assess(context.Background(), cubanMissileCrisis(), nil)
	require.NoError(t, err)

	assert.Less(t, score.SecondsToMidnight, 120)
	assert.Equal(t, "Critical", score.RiskLevel)

	// Weighted base score of the fixture, computed by hand.
	assert.InDelta(t, 0.8823, score.BaseScore, 1e-3)
	// All four categories run hot, so compounding adds three steps.
	assert.InDelta(t, score.BaseScore+3*0.03, score.FinalScore, 1e-9)

	require.NotNil(t, score.Simulation)
	assert.Greater(t, score.Simulation.WarProbability, 0.0)
	require.NotNil(t, score.Uncertainty)
	assert.NotEmpty(t, score.Warnings)
	assert.NotEmpty(t, score.PrimaryDrivers)
	assert.Len(t, score.CategoryScores, 4)
	require.NotNil(t, score.Trend)
	assert.True(t, score.Trend.Insufficient)
}

func TestAssessCalmBaseline(t *testing.T) {
	factors := []factor.RiskFactor{
		factor.New(factor.RegionalConflicts, "minor border friction", 0.15, factor.High),
		factor.New(factor.EconomicFactors, "stable trade", 0.10, factor.Moderate),
	}
	engine := newTestEngine(t)
	score, err := engine.Assess(context.Background(), factors, nil)
	require.NoError(t, err)

	assert.Greater(t, score.SecondsToMidnight, 600)
	assert.Equal(t, "Low", score.RiskLevel)
	// No hot categories, so nothing compounds.
	assert.Equal(t, score.BaseScore, score.FinalScore)
}

func TestAssessRejectsInvalidFactor(t *testing.T) {
	bad := []factor.RiskFactor{
		factor.New(factor.RegionalConflicts, "impossible", 1.5, factor.High),
	}
	engine := newTestEngine(t)
	_, err := engine.Assess(context.Background(), bad, nil)
	assert.ErrorIs(t, err, factor.ErrInvalidFactor)
}

func TestCompoundingNeedsTwoHotCategories(t *testing.T) {
	engine := newTestEngine(t)
	oneHot := []factor.RiskFactor{
		factor.New(factor.RegionalConflicts, "crisis", 0.90, factor.VeryHigh),
	}
	score, err := engine.Score(context.Background(), oneHot)
	require.NoError(t, err)
	assert.InDelta(t, 0.90, score, 1e-9, "single hot category must not compound")

	twoHot := append(oneHot,
		factor.New(factor.DoctrineAndPosture, "alert posture", 0.90, factor.VeryHigh))
	boosted, err := engine.Score(context.Background(), twoHot)
	require.NoError(t, err)
	base, err := engine.scorer.CalculateBaseScore(twoHot)
	require.NoError(t, err)
	assert.InDelta(t, base+0.03, boosted, 1e-9)
}

func TestScoreMatchesAssessWithoutHistory(t *testing.T) {
	engine := newTestEngine(t)
	factors := cubanMissileCrisis()

	deterministic, err := engine.Score(context.Background(), factors)
	require.NoError(t, err)
	full, err := engine.Assess(context.Background(), factors, nil)
	require.NoError(t, err)
	assert.InDelta(t, deterministic, full.FinalScore, 1e-12)
}

func TestAssessDeltaAgainstPrevious(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.Assess(ctx, cubanMissileCrisis(), nil)
	require.NoError(t, err)
	assert.Nil(t, first.Delta)

	calm := []factor.RiskFactor{
		factor.New(factor.RegionalConflicts, "standdown", 0.2, factor.High),
	}
	second, err := engine.Assess(ctx, calm, nil)
	require.NoError(t, err)
	require.NotNil(t, second.Delta)
	assert.Equal(t, first.ID, second.Delta.PreviousID)
	assert.Negative(t, second.Delta.ScoreChange)
	assert.Positive(t, second.Delta.SecondsChange)
	assert.Same(t, second, engine.Previous())
}

func TestAssessHistoricalPriorBlend(t *testing.T) {
	engine := newTestEngine(t)
	// A long calm history pulls a sudden spike back toward it.
	history := []float64{0.30, 0.32, 0.28, 0.31, 0.29, 0.30, 0.33, 0.29}
	spike := []factor.RiskFactor{
		factor.New(factor.RegionalConflicts, "flashpoint", 0.9, factor.VeryHigh),
	}
	score, err := engine.Assess(context.Background(), spike, history)
	require.NoError(t, err)
	assert.Less(t, score.FinalScore, score.AdjustedScore)
	assert.Greater(t, score.FinalScore, 0.30)
}

func TestAssessTrendOverHistory(t *testing.T) {
	engine := newTestEngine(t)
	history := []float64{0.10, 0.14, 0.19, 0.22, 0.27, 0.30, 0.36, 0.39, 0.44, 0.48,
		0.51, 0.56, 0.60, 0.63, 0.69, 0.71, 0.77, 0.80, 0.85, 0.89}
	factors := []factor.RiskFactor{
		factor.New(factor.RegionalConflicts, "escalating", 0.9, factor.High),
	}
	score, err := engine.Assess(context.Background(), factors, history)
	require.NoError(t, err)
	require.NotNil(t, score.Trend)
	assert.False(t, score.Trend.Insufficient)
	assert.Equal(t, "increasing", score.Trend.Direction)
	assert.Greater(t, score.Trend.Slope, 0.0)
}

func TestRelearnedNetworkAdjustsScore(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	factors := []factor.RiskFactor{
		factor.New(factor.RegionalConflicts, "escalation", 0.9, factor.High),
	}
	before, err := engine.Score(ctx, factors)
	require.NoError(t, err)

	// "shadowing" tracks "escalation"; observing escalation high must
	// pull shadowing's belief up and with it the score.
	escalation := []float64{0.10, 0.90, 0.20, 0.80, 0.15, 0.85, 0.25, 0.75}
	shadowing := make([]float64, len(escalation))
	for i, v := range escalation {
		shadowing[i] = 0.5*v + 0.2
	}
	require.NoError(t, engine.Relearn(map[string][]float64{
		"escalation": escalation,
		"shadowing":  shadowing,
	}))
	require.NotNil(t, engine.Network())

	after, err := engine.Score(ctx, factors)
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestBayesAdjustsWithAllIndicatorsObserved(t *testing.T) {
	// Steady state: every tracked indicator has a current observation.
	// Surprising evidence relative to the learned priors must still
	// shift the score.
	engine := newTestEngine(t)
	ctx := context.Background()

	factors := []factor.RiskFactor{
		factor.New(factor.RegionalConflicts, "escalation", 0.9, factor.High),
		factor.New(factor.LeadershipAndRhetoric, "shadowing", 0.9, factor.High),
	}
	before, err := engine.Score(ctx, factors)
	require.NoError(t, err)

	escalation := []float64{0.10, 0.90, 0.20, 0.80, 0.15, 0.85, 0.25, 0.75}
	shadowing := make([]float64, len(escalation))
	for i, v := range escalation {
		shadowing[i] = 0.5*v + 0.2
	}
	require.NoError(t, engine.Relearn(map[string][]float64{
		"escalation": escalation,
		"shadowing":  shadowing,
	}))

	// Both observations land well above their historical levels.
	after, err := engine.Score(ctx, factors)
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestLoadEngineConfigDefaultsAndValidation(t *testing.T) {
	config := DefaultEngineConfig()
	require.NoError(t, config.Validate())

	config.CompoundingStep = 0.5
	assert.Error(t, config.Validate())

	_, err := NewEngine(config)
	assert.Error(t, err)
}
