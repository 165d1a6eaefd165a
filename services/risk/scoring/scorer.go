// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scoring aggregates validated risk factors into a base risk
// score using category weights and confidence weighting.
package scoring

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/AleutianAI/joshua/services/risk/factor"
)

// -----------------------------------------------------------------------------
// Scorer
// -----------------------------------------------------------------------------

// Scorer combines factors into a base score in [0,1].
//
// Within a category the scorer computes a confidence-weighted mean of
// factor values; category scores are then combined using category
// weights scaled by the average confidence of each category's factors.
//
// Thread Safety: Safe for concurrent use after construction.
type Scorer struct {
	weights map[factor.Category]float64
	logger  *slog.Logger
}

// NewScorer creates a scorer with the default category weights.
func NewScorer() *Scorer {
	weights := make(map[factor.Category]float64, 8)
	for _, c := range factor.AllCategories() {
		weights[c] = c.DefaultWeight()
	}
	return &Scorer{
		weights: weights,
		logger:  slog.Default(),
	}
}

// WithWeights overrides the category weights. Weights must cover every
// category and sum to 1.0 within tolerance.
//
// Outputs:
//   - *Scorer: The scorer, for chaining.
//   - error: Non-nil if the weight set is incomplete or unnormalized.
func (s *Scorer) WithWeights(weights map[factor.Category]float64) (*Scorer, error) {
	sum := 0.0
	for _, c := range factor.AllCategories() {
		w, ok := weights[c]
		if !ok {
			return nil, fmt.Errorf("missing weight for category %s", c)
		}
		if w < 0 {
			return nil, fmt.Errorf("negative weight %v for category %s", w, c)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return nil, fmt.Errorf("category weights sum to %v, want 1.0", sum)
	}
	s.weights = weights
	return s, nil
}

// WithLogger sets the logger.
func (s *Scorer) WithLogger(logger *slog.Logger) *Scorer {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// CalculateBaseScore aggregates factors into a base score.
//
// Inputs:
//   - factors: The factor set for one assessment cycle. Every factor
//     is validated before any aggregation happens; the first violation
//     aborts the calculation.
//
// Outputs:
//   - float64: Base score in [0,1]. Empty input returns 0.0 (baseline).
//   - error: Non-nil (wrapping factor.ErrInvalidFactor) on invalid
//     input.
func (s *Scorer) CalculateBaseScore(factors []factor.RiskFactor) (float64, error) {
	if err := factor.ValidateAll(factors); err != nil {
		return 0, err
	}
	if len(factors) == 0 {
		return 0.0, nil
	}

	scores := s.CategoryScores(factors)

	var weightedSum, totalWeight float64
	for category, cs := range scores {
		applied := s.weights[category] * cs.AvgConfidence
		weightedSum += cs.Score * applied
		totalWeight += applied
	}
	if totalWeight == 0 {
		// All factors carried zero weight; treat as baseline.
		s.logger.Warn("all category weights zero, returning baseline score")
		return 0.0, nil
	}
	return clamp01(weightedSum / totalWeight), nil
}

// CategoryScore holds the per-category aggregation of a factor set.
type CategoryScore struct {
	// Score is the confidence-weighted mean of factor values.
	Score float64

	// AvgConfidence is the mean confidence multiplier across the
	// category's factors.
	AvgConfidence float64

	// Count is the number of factors in the category.
	Count int
}

// CategoryScores groups factors by category and aggregates each group.
// Factors are assumed validated.
func (s *Scorer) CategoryScores(factors []factor.RiskFactor) map[factor.Category]CategoryScore {
	grouped := make(map[factor.Category][]factor.RiskFactor)
	for _, f := range factors {
		grouped[f.Category] = append(grouped[f.Category], f)
	}

	scores := make(map[factor.Category]CategoryScore, len(grouped))
	for category, group := range grouped {
		equalShare := 1.0 / float64(len(group))

		var valueSum, weightSum, confSum float64
		for _, f := range group {
			w := f.Weight
			if w == 0 {
				w = equalShare
			}
			conf := f.Confidence.Multiplier()
			valueSum += f.Value * conf * w
			weightSum += conf * w
			confSum += conf
		}

		score := 0.0
		if weightSum > 0 {
			score = valueSum / weightSum
		}
		scores[category] = CategoryScore{
			Score:         score,
			AvgConfidence: confSum / float64(len(group)),
			Count:         len(group),
		}
	}
	return scores
}

// -----------------------------------------------------------------------------
// Clock Conversion
// -----------------------------------------------------------------------------

// ScoreToSeconds converts a risk score to seconds to midnight,
// inverse-linear on the clock scale: 1.0 maps to 0, 0.0 maps to 1440.
func ScoreToSeconds(score float64) int {
	return int(math.Round((1.0 - clamp01(score)) * factor.MaxSecondsToMidnight))
}

// SecondsToScore converts seconds to midnight back to a risk score.
func SecondsToScore(seconds int) float64 {
	if seconds < factor.MinSecondsToMidnight {
		seconds = factor.MinSecondsToMidnight
	}
	if seconds > factor.MaxSecondsToMidnight {
		seconds = factor.MaxSecondsToMidnight
	}
	return 1.0 - float64(seconds)/float64(factor.MaxSecondsToMidnight)
}

// -----------------------------------------------------------------------------
// Primary Drivers
// -----------------------------------------------------------------------------

// Driver is one factor's contribution to the aggregate score, used for
// reporting the main forces behind an assessment.
type Driver struct {
	// Name is the factor name.
	Name string `json:"name" yaml:"name"`

	// Category is the factor's risk dimension.
	Category factor.Category `json:"category" yaml:"category"`

	// Contribution is the confidence- and weight-scaled value.
	Contribution float64 `json:"contribution" yaml:"contribution"`
}

// PrimaryDrivers ranks factors by weighted contribution and returns the
// top n. Factors are assumed validated.
func (s *Scorer) PrimaryDrivers(factors []factor.RiskFactor, n int) []Driver {
	drivers := make([]Driver, 0, len(factors))
	for _, f := range factors {
		drivers = append(drivers, Driver{
			Name:         f.Name,
			Category:     f.Category,
			Contribution: f.Value * f.Confidence.Multiplier() * s.weights[f.Category],
		})
	}
	sort.Slice(drivers, func(i, j int) bool {
		if drivers[i].Contribution != drivers[j].Contribution {
			return drivers[i].Contribution > drivers[j].Contribution
		}
		return drivers[i].Name < drivers[j].Name
	})
	if n > 0 && len(drivers) > n {
		drivers = drivers[:n]
	}
	return drivers
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
