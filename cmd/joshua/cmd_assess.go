// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/joshua/services/risk/factor"
	"github.com/AleutianAI/joshua/services/risk/pipeline"
)

var (
	assessFactorsPath string
	assessHistoryPath string
	assessJSONOutput  bool
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Run a full risk assessment over a factor fixture",
	Long: `Scores the given factors, applies compounding and Bayesian
adjustments, analyzes the score history, simulates forward
trajectories, and prints the resulting assessment.`,
	RunE: runAssessCommand,
}

func init() {
	assessCmd.Flags().StringVar(&assessFactorsPath, "factors", "", "yaml file with risk factors (required)")
	assessCmd.Flags().StringVar(&assessHistoryPath, "history", "", "yaml file with past scores")
	assessCmd.Flags().BoolVar(&assessJSONOutput, "json", false, "emit the full assessment as JSON")
	assessCmd.MarkFlagRequired("factors")
}

func runAssessCommand(cmd *cobra.Command, args []string) error {
	var factors []factor.RiskFactor
	if err := loadYAML(assessFactorsPath, &factors); err != nil {
		return err
	}
	var history []float64
	if assessHistoryPath != "" {
		if err := loadYAML(assessHistoryPath, &history); err != nil {
			return err
		}
	}

	config, err := engineConfig()
	if err != nil {
		return err
	}
	engine, err := pipeline.NewEngine(config)
	if err != nil {
		return err
	}
	score, err := engine.WithLogger(logger.Logger).Assess(cmd.Context(), factors, history)
	if err != nil {
		return err
	}

	if assessJSONOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(score)
	}
	printAssessment(score)
	return nil
}

func printAssessment(score *pipeline.ComprehensiveRiskScore) {
	fmt.Printf("Seconds to midnight: %d (%s)\n", score.SecondsToMidnight, score.RiskLevel)
	fmt.Printf("Score: base %.3f, adjusted %.3f, final %.3f\n",
		score.BaseScore, score.AdjustedScore, score.FinalScore)
	fmt.Printf("Confidence: [%.3f, %.3f] at %.0f%%\n",
		score.Confidence.Lower, score.Confidence.Upper, score.Confidence.Level*100)

	if score.Trend != nil && !score.Trend.Insufficient {
		fmt.Printf("Trend: %s (slope %+.4f per step, p=%.3f)\n",
			score.Trend.Direction, score.Trend.Slope, score.Trend.PValue)
	}
	if score.Simulation != nil {
		fmt.Printf("Simulated war probability: %.4f [%.4f, %.4f] over %d trajectories\n",
			score.Simulation.WarProbability,
			score.Simulation.WarProbabilityCI.Lower,
			score.Simulation.WarProbabilityCI.Upper,
			score.Simulation.Iterations)
	}
	if len(score.PrimaryDrivers) > 0 {
		fmt.Println("Primary drivers:")
		for _, driver := range score.PrimaryDrivers {
			fmt.Printf("  %-40s %s  %+.3f\n", driver.Name, driver.Category, driver.Contribution)
		}
	}
	if score.Delta != nil {
		fmt.Printf("Change since previous: %+.3f score, %+d seconds\n",
			score.Delta.ScoreChange, score.Delta.SecondsChange)
	}
	for _, warning := range score.Warnings {
		fmt.Printf("WARNING: %s\n", warning)
	}
}
