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
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/joshua/services/risk/montecarlo"
	"github.com/AleutianAI/joshua/services/risk/trend"
	"github.com/AleutianAI/joshua/services/risk/uncertainty"
)

// ObservabilityConfig controls tracing and metrics emission.
type ObservabilityConfig struct {
	TracingEnabled bool   `json:"tracing_enabled" yaml:"tracing_enabled"`
	MetricsEnabled bool   `json:"metrics_enabled" yaml:"metrics_enabled"`
	ServiceName    string `json:"service_name" yaml:"service_name"`
}

// EngineConfig configures the assessment pipeline.
//
// Thread Safety: Immutable after construction.
type EngineConfig struct {
	// CompoundingThreshold is the category score above which a
	// category counts toward the compounding adjustment.
	CompoundingThreshold float64 `json:"compounding_threshold" yaml:"compounding_threshold" validate:"gte=0,lte=1"`
	// CompoundingStep is added to the score once per compounding
	// category beyond the first. Multiple simultaneously hot
	// categories are worse than their weighted sum suggests.
	CompoundingStep float64 `json:"compounding_step" yaml:"compounding_step" validate:"gte=0,lte=0.2"`

	// TrendAlpha is the significance level for trend classification.
	TrendAlpha float64 `json:"trend_alpha" yaml:"trend_alpha" validate:"gt=0,lt=1"`

	// WarningScore flags the overall assessment when the final score
	// reaches it.
	WarningScore float64 `json:"warning_score" yaml:"warning_score" validate:"gte=0,lte=1"`
	// WarningWarProbability flags the simulation outcome.
	WarningWarProbability float64 `json:"warning_war_probability" yaml:"warning_war_probability" validate:"gte=0,lte=1"`
	// WarningDriverContribution flags individual dominant factors.
	WarningDriverContribution float64 `json:"warning_driver_contribution" yaml:"warning_driver_contribution" validate:"gte=0,lte=1"`

	// ConflictFactorValue is the regional-conflict factor value at
	// which the factor seeds an active conflict in the simulation's
	// initial world state.
	ConflictFactorValue float64 `json:"conflict_factor_value" yaml:"conflict_factor_value" validate:"gte=0,lte=1"`
	// CommsDegradedScore is the communication-breakdown category
	// score that marks communications degraded.
	CommsDegradedScore float64 `json:"comms_degraded_score" yaml:"comms_degraded_score" validate:"gte=0,lte=1"`

	// WallClockBudget bounds one Assess call. Zero means unbounded.
	// The budget is split between the context deadline and the
	// simulation stage; inference keeps its fixed iteration cap,
	// which small networks never approach.
	WallClockBudget time.Duration `json:"wall_clock_budget" yaml:"wall_clock_budget"`

	MonteCarlo    montecarlo.Config   `json:"monte_carlo" yaml:"monte_carlo"`
	Uncertainty   uncertainty.Config  `json:"uncertainty" yaml:"uncertainty"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// DefaultEngineConfig returns production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CompoundingThreshold:      0.75,
		CompoundingStep:           0.03,
		TrendAlpha:                trend.DefaultAlpha,
		WarningScore:              0.75,
		WarningWarProbability:     0.10,
		WarningDriverContribution: 0.15,
		ConflictFactorValue:       0.70,
		CommsDegradedScore:        0.60,
		MonteCarlo:                montecarlo.DefaultConfig(),
		Uncertainty:               uncertainty.Config{Samples: uncertainty.DefaultSamples},
		Observability: ObservabilityConfig{
			ServiceName: "joshua.pipeline",
		},
	}
}

// LoadEngineConfig reads and validates a yaml config file. Fields the
// file omits keep their defaults.
func LoadEngineConfig(path string) (EngineConfig, error) {
	config := DefaultEngineConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

var configValidate = validator.New()

// Validate checks field ranges and the embedded event table.
func (c EngineConfig) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	if c.MonteCarlo.Events != nil {
		if err := c.MonteCarlo.Events.Validate(); err != nil {
			return err
		}
	}
	return nil
}
