// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline orchestrates the full risk assessment: weighted
// scoring, Bayesian adjustment, trend analysis, forward simulation,
// and uncertainty propagation, assembled into one immutable record.
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/joshua/services/risk/montecarlo"
	"github.com/AleutianAI/joshua/services/risk/scoring"
	"github.com/AleutianAI/joshua/services/risk/stats"
	"github.com/AleutianAI/joshua/services/risk/trend"
	"github.com/AleutianAI/joshua/services/risk/uncertainty"
)

// TrendSummary condenses the trend analysis over the score history.
// Insufficient is set when the history is too short to classify, which
// is an explicit outcome rather than an error.
type TrendSummary struct {
	Insufficient bool                `json:"insufficient"`
	Direction    string              `json:"direction,omitempty"`
	Slope        float64             `json:"slope,omitempty"`
	PValue       float64             `json:"p_value,omitempty"`
	ChangePoints []trend.ChangePoint `json:"change_points,omitempty"`
}

// Delta compares this assessment to the engine's previous one.
type Delta struct {
	PreviousID    uuid.UUID `json:"previous_id"`
	ScoreChange   float64   `json:"score_change"`
	SecondsChange int       `json:"seconds_change"`
}

// ComprehensiveRiskScore is the pipeline's final product. It is
// assembled once and never mutated; consumers treat it as a value.
type ComprehensiveRiskScore struct {
	ID          uuid.UUID `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`

	// BaseScore is the weighted aggregate before any adjustment.
	BaseScore float64 `json:"base_score"`
	// AdjustedScore folds in compounding and Bayesian evidence.
	AdjustedScore float64 `json:"adjusted_score"`
	// FinalScore additionally blends the historical prior.
	FinalScore float64 `json:"final_score"`

	SecondsToMidnight int    `json:"seconds_to_midnight"`
	RiskLevel         string `json:"risk_level"`

	CategoryScores map[string]scoring.CategoryScore `json:"category_scores"`
	PrimaryDrivers []scoring.Driver                 `json:"primary_drivers"`

	Confidence stats.ConfidenceInterval `json:"confidence"`
	// BayesConverged is false when belief propagation hit its
	// iteration cap; the adjustment was still applied.
	BayesConverged bool `json:"bayes_converged"`

	Trend       *TrendSummary         `json:"trend,omitempty"`
	Simulation  *montecarlo.Results   `json:"simulation,omitempty"`
	Uncertainty *uncertainty.Analysis `json:"uncertainty,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
	Delta    *Delta   `json:"delta,omitempty"`
}
