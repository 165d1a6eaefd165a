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
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/joshua/services/risk/bayes"
	"github.com/AleutianAI/joshua/services/risk/factor"
	"github.com/AleutianAI/joshua/services/risk/montecarlo"
	"github.com/AleutianAI/joshua/services/risk/scoring"
	"github.com/AleutianAI/joshua/services/risk/stats"
	"github.com/AleutianAI/joshua/services/risk/trend"
	"github.com/AleutianAI/joshua/services/risk/uncertainty"
)

// maxPrimaryDrivers caps the driver list on the final record.
const maxPrimaryDrivers = 5

// Engine runs the assessment pipeline.
//
// Thread Safety: Safe for concurrent Assess calls. The dependency
// network and the previous-assessment reference are swapped
// atomically; Relearn may run concurrently with Assess.
type Engine struct {
	config   EngineConfig
	scorer   *scoring.Scorer
	network  atomic.Pointer[bayes.Network]
	previous atomic.Pointer[ComprehensiveRiskScore]
	tracer   *PipelineTracer
	logger   *slog.Logger
}

// NewEngine builds an engine from a validated config.
func NewEngine(config EngineConfig) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := slog.Default()
	return &Engine{
		config: config,
		scorer: scoring.NewScorer(),
		tracer: NewPipelineTracer(logger, config.Observability),
		logger: logger,
	}, nil
}

// WithLogger sets the logger for the engine and its tracer.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	e.tracer = NewPipelineTracer(logger, e.config.Observability)
	return e
}

// WithScorer replaces the default scorer, e.g. for custom weights.
func (e *Engine) WithScorer(scorer *scoring.Scorer) *Engine {
	e.scorer = scorer
	return e
}

// Relearn rebuilds the dependency network from aligned per-factor
// history series and swaps it in atomically. Assessments running
// concurrently keep using the old snapshot.
func (e *Engine) Relearn(history map[string][]float64) error {
	network, err := bayes.LearnStructure(history, e.logger)
	if err != nil {
		return fmt.Errorf("relearn dependency network: %w", err)
	}
	e.network.Store(network)
	return nil
}

// Network returns the current dependency network snapshot, nil before
// the first Relearn.
func (e *Engine) Network() *bayes.Network {
	return e.network.Load()
}

// Previous returns the engine's last completed assessment, nil before
// the first.
func (e *Engine) Previous() *ComprehensiveRiskScore {
	return e.previous.Load()
}

// Score computes the deterministic part of the pipeline: base score,
// compounding adjustment, and Bayesian evidence adjustment. No
// simulation, no history blend. This is the calibration entry point.
func (e *Engine) Score(ctx context.Context, factors []factor.RiskFactor) (float64, error) {
	base, err := e.scorer.CalculateBaseScore(factors)
	if err != nil {
		return 0, err
	}
	compounded := e.applyCompounding(base, factors)
	adjusted, _, err := e.applyBayes(ctx, compounded, factors)
	if err != nil {
		return 0, err
	}
	return adjusted, nil
}

// Assess runs the full pipeline.
//
// Description: validates and scores the factors, applies the
// compounding and Bayesian adjustments, blends the historical prior,
// analyzes the score history for trend and change points, simulates
// forward trajectories from a world state derived from the factors,
// propagates factor uncertainty through the deterministic score, and
// assembles the immutable result with warnings and the delta against
// the previous assessment.
//
// Inputs:
//   - ctx: cancellation; also carries the wall-clock budget when the
//     config sets one.
//   - factors: current factor set; any invalid factor aborts.
//   - history: past final scores in chronological order, may be nil.
//
// Outputs:
//   - *ComprehensiveRiskScore: the completed assessment.
//   - error: factor validation or a stage failure. Degraded stages
//     (unconverged inference, insufficient trend history) do not
//     error.
func (e *Engine) Assess(ctx context.Context, factors []factor.RiskFactor, history []float64) (*ComprehensiveRiskScore, error) {
	start := time.Now()
	ctx, span := e.tracer.StartAssess(ctx, len(factors), len(history))
	if e.config.WallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.WallClockBudget)
		defer cancel()
	}

	score, err := e.assess(ctx, factors, history)
	e.tracer.EndAssess(ctx, span, score, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	e.previous.Store(score)
	return score, nil
}

func (e *Engine) assess(ctx context.Context, factors []factor.RiskFactor, history []float64) (*ComprehensiveRiskScore, error) {
	base, err := e.scorer.CalculateBaseScore(factors)
	if err != nil {
		return nil, err
	}
	categoryScores := e.scorer.CategoryScores(factors)

	compounded := e.applyCompounding(base, factors)
	adjusted, inference, err := e.applyBayes(ctx, compounded, factors)
	if err != nil {
		return nil, err
	}
	converged := inference == nil || inference.Converged
	if !converged {
		e.tracer.TraceDegradation(ctx, "bayes", "belief propagation hit iteration cap")
	}

	final := adjusted
	if len(history) >= 2 {
		final = bayes.BlendHistoricalPrior(adjusted, e.scoreVariance(factors), history)
	}

	trendSummary := e.analyzeTrend(ctx, history)

	simulation, err := e.simulate(ctx, final, factors, categoryScores)
	if err != nil {
		return nil, err
	}

	analysis, err := e.propagateUncertainty(ctx, factors)
	if err != nil {
		return nil, err
	}

	seconds := scoring.ScoreToSeconds(final)
	drivers := e.scorer.PrimaryDrivers(factors, maxPrimaryDrivers)

	result := &ComprehensiveRiskScore{
		ID:                uuid.New(),
		GeneratedAt:       time.Now().UTC(),
		BaseScore:         base,
		AdjustedScore:     adjusted,
		FinalScore:        final,
		SecondsToMidnight: seconds,
		RiskLevel:         factor.RiskLevel(seconds),
		CategoryScores:    categoryNames(categoryScores),
		PrimaryDrivers:    drivers,
		Confidence:        confidenceInterval(final, analysis),
		BayesConverged:    converged,
		Trend:             trendSummary,
		Simulation:        simulation,
		Uncertainty:       analysis,
	}
	result.Warnings = e.collectWarnings(result)
	if previous := e.previous.Load(); previous != nil {
		result.Delta = &Delta{
			PreviousID:    previous.ID,
			ScoreChange:   result.FinalScore - previous.FinalScore,
			SecondsChange: result.SecondsToMidnight - previous.SecondsToMidnight,
		}
	}

	e.logger.InfoContext(ctx, "assessment complete",
		slog.String("id", result.ID.String()),
		slog.Float64("final_score", result.FinalScore),
		slog.Int("seconds_to_midnight", result.SecondsToMidnight),
		slog.String("risk_level", result.RiskLevel),
		slog.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// applyCompounding boosts the score when several categories run hot at
// once.
func (e *Engine) applyCompounding(base float64, factors []factor.RiskFactor) float64 {
	hot := 0
	for _, cs := range e.scorer.CategoryScores(factors) {
		if cs.Score >= e.config.CompoundingThreshold {
			hot++
		}
	}
	if hot < 2 {
		return base
	}
	boosted := base + e.config.CompoundingStep*float64(hot-1)
	if boosted > 1 {
		return 1
	}
	return boosted
}

// applyBayes adjusts the score against the learned network, if one
// exists. Factor values become evidence for their matching nodes.
func (e *Engine) applyBayes(ctx context.Context, score float64, factors []factor.RiskFactor) (float64, *bayes.InferenceResult, error) {
	network := e.network.Load()
	if network == nil {
		return score, nil, nil
	}
	_, span := e.tracer.TraceStage(ctx, "bayes")
	defer span.End()

	evidence := make(map[string]int)
	for _, f := range factors {
		if _, ok := network.Node(f.Name); ok {
			evidence[f.Name] = bayes.Discretize(f.Value)
		}
	}
	adjusted, inference, err := network.AdjustScore(score, evidence)
	if err != nil {
		return 0, nil, fmt.Errorf("bayesian adjustment: %w", err)
	}
	return adjusted, inference, nil
}

// scoreVariance estimates the variance of the current score from the
// factors' confidence. Low confidence widens it, letting the
// historical prior pull harder.
func (e *Engine) scoreVariance(factors []factor.RiskFactor) float64 {
	if len(factors) == 0 {
		return 0.05
	}
	total := 0.0
	for _, f := range factors {
		total += f.Confidence.Multiplier()
	}
	meanConfidence := total / float64(len(factors))
	return 0.005 + 0.05*(1.0-meanConfidence)
}

// analyzeTrend classifies the score history. Too little history is an
// explicit Insufficient summary, never an error.
func (e *Engine) analyzeTrend(ctx context.Context, history []float64) *TrendSummary {
	_, span := e.tracer.TraceStage(ctx, "trend")
	defer span.End()

	result, err := trend.MannKendall(history, e.config.TrendAlpha)
	if err != nil {
		if !errors.Is(err, trend.ErrInsufficientHistory) {
			e.logger.Warn("trend analysis failed", slog.String("error", err.Error()))
		}
		return &TrendSummary{Insufficient: true}
	}
	slope, err := trend.SenSlope(history)
	if err != nil {
		return &TrendSummary{Insufficient: true}
	}
	summary := &TrendSummary{
		Direction: result.Direction.String(),
		Slope:     slope,
		PValue:    result.PValue,
	}
	if points, err := trend.DetectChangePoints(history, trend.DefaultCUSUMConfig()); err == nil {
		summary.ChangePoints = points
	}
	return summary
}

// simulate runs the forward Monte Carlo from a world state derived
// from the current factors and score.
func (e *Engine) simulate(ctx context.Context, score float64, factors []factor.RiskFactor, categoryScores map[factor.Category]scoring.CategoryScore) (*montecarlo.Results, error) {
	ctx, span := e.tracer.TraceStage(ctx, "montecarlo")
	defer span.End()

	config := e.config.MonteCarlo
	if e.config.WallClockBudget > 0 && config.WallClockBudget == 0 {
		config.WallClockBudget = e.config.WallClockBudget / 2
	}
	simulator, err := montecarlo.NewSimulator(config)
	if err != nil {
		return nil, err
	}
	results, err := simulator.WithLogger(e.logger).Simulate(ctx, e.initialWorldState(score, factors, categoryScores))
	if err != nil {
		return nil, fmt.Errorf("forward simulation: %w", err)
	}
	return results, nil
}

// initialWorldState seeds the simulation: tension mirrors the adjusted
// score, hot regional-conflict factors become named active conflicts,
// and a hot communication-breakdown category degrades comms.
func (e *Engine) initialWorldState(score float64, factors []factor.RiskFactor, categoryScores map[factor.Category]scoring.CategoryScore) montecarlo.WorldState {
	state := montecarlo.WorldState{TensionLevel: score}
	for _, f := range factors {
		if f.Category == factor.RegionalConflicts && f.Value >= e.config.ConflictFactorValue {
			state.ActiveConflicts = append(state.ActiveConflicts, f.Name)
		}
	}
	if cs, ok := categoryScores[factor.CommunicationBreakdown]; ok && cs.Score >= e.config.CommsDegradedScore {
		state.CommsDegraded = true
	}
	return state
}

// propagateUncertainty perturbs each factor's value within its
// confidence-implied spread and reruns the deterministic score.
func (e *Engine) propagateUncertainty(ctx context.Context, factors []factor.RiskFactor) (*uncertainty.Analysis, error) {
	if len(factors) == 0 {
		return nil, nil
	}
	_, span := e.tracer.TraceStage(ctx, "uncertainty")
	defer span.End()

	inputs := make([]uncertainty.UncertainInput, len(factors))
	for i, f := range factors {
		inputs[i] = uncertainty.UncertainInput{
			Name:         f.Name,
			Distribution: uncertainty.Normal,
			Mean:         f.Value,
			StdDev:       valueSpread(f.Confidence),
		}
	}

	perturbed := make([]factor.RiskFactor, len(factors))
	copy(perturbed, factors)
	propagator := uncertainty.NewPropagator(e.config.Uncertainty).WithLogger(e.logger)
	analysis, err := propagator.Propagate(inputs, func(values []float64) float64 {
		for i := range perturbed {
			perturbed[i].Value = clamp01(values[i])
		}
		score, scoreErr := e.scorer.CalculateBaseScore(perturbed)
		if scoreErr != nil {
			return math.NaN()
		}
		return e.applyCompounding(score, perturbed)
	})
	if err != nil {
		return nil, fmt.Errorf("uncertainty propagation: %w", err)
	}
	return analysis, nil
}

// valueSpread maps reported confidence to a perturbation scale.
func valueSpread(c factor.Confidence) float64 {
	return 0.02 + 0.10*(1.0-c.Multiplier())
}

// collectWarnings derives critical warnings from the assembled score.
func (e *Engine) collectWarnings(score *ComprehensiveRiskScore) []string {
	var warnings []string
	if score.FinalScore >= e.config.WarningScore {
		warnings = append(warnings, fmt.Sprintf(
			"overall risk %.2f at or above warning threshold %.2f (%s, %d seconds to midnight)",
			score.FinalScore, e.config.WarningScore, score.RiskLevel, score.SecondsToMidnight))
	}
	if score.Simulation != nil && score.Simulation.WarProbability >= e.config.WarningWarProbability {
		warnings = append(warnings, fmt.Sprintf(
			"simulated nuclear war probability %.3f exceeds %.3f",
			score.Simulation.WarProbability, e.config.WarningWarProbability))
	}
	for _, driver := range score.PrimaryDrivers {
		if driver.Contribution >= e.config.WarningDriverContribution {
			warnings = append(warnings, fmt.Sprintf(
				"factor %q dominates the score (contribution %.3f)",
				driver.Name, driver.Contribution))
		}
	}
	if !score.BayesConverged {
		warnings = append(warnings, "dependency inference did not converge; adjustment confidence reduced")
	}
	return warnings
}

// confidenceInterval prefers the propagated empirical interval and
// falls back to a degenerate interval at the score.
func confidenceInterval(final float64, analysis *uncertainty.Analysis) stats.ConfidenceInterval {
	if analysis != nil {
		return analysis.CI
	}
	return stats.ConfidenceInterval{Lower: final, Upper: final, Level: 0.95, Center: final}
}

func categoryNames(scores map[factor.Category]scoring.CategoryScore) map[string]scoring.CategoryScore {
	out := make(map[string]scoring.CategoryScore, len(scores))
	for category, cs := range scores {
		out[category.String()] = cs
	}
	return out
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
