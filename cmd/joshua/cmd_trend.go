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
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/joshua/services/risk/trend"
)

var (
	trendHistoryPath string
	trendAlpha       float64
	trendPeriod      int
	trendJSONOutput  bool
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Analyze a score history for trend and change points",
	RunE:  runTrendCommand,
}

func init() {
	trendCmd.Flags().StringVar(&trendHistoryPath, "history", "", "yaml file with past scores (required)")
	trendCmd.Flags().Float64Var(&trendAlpha, "alpha", trend.DefaultAlpha, "significance level")
	trendCmd.Flags().IntVar(&trendPeriod, "period", 0, "season length for decomposition (0 skips it)")
	trendCmd.Flags().BoolVar(&trendJSONOutput, "json", false, "emit the analysis as JSON")
	trendCmd.MarkFlagRequired("history")
}

type trendReport struct {
	Result        *trend.Result        `json:"result"`
	Slope         float64              `json:"slope"`
	ChangePoints  []trend.ChangePoint  `json:"change_points,omitempty"`
	Decomposition *trend.Decomposition `json:"decomposition,omitempty"`
}

func runTrendCommand(cmd *cobra.Command, args []string) error {
	var history []float64
	if err := loadYAML(trendHistoryPath, &history); err != nil {
		return err
	}

	result, err := trend.MannKendall(history, trendAlpha)
	if errors.Is(err, trend.ErrInsufficientHistory) {
		fmt.Printf("Insufficient history: %d points\n", len(history))
		return nil
	}
	if err != nil {
		return err
	}
	slope, err := trend.SenSlope(history)
	if err != nil {
		return err
	}
	points, err := trend.DetectChangePoints(history, trend.DefaultCUSUMConfig())
	if err != nil {
		return err
	}
	var decomposition *trend.Decomposition
	if trendPeriod > 0 {
		decomposition, err = trend.Decompose(history, trendPeriod)
		if errors.Is(err, trend.ErrInsufficientHistory) {
			return fmt.Errorf("decomposition needs at least %d points for period %d, have %d",
				2*trendPeriod, trendPeriod, len(history))
		}
		if err != nil {
			return err
		}
	}

	if trendJSONOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(trendReport{Result: result, Slope: slope, ChangePoints: points, Decomposition: decomposition})
	}

	fmt.Printf("Trend: %s (S=%d, Z=%.3f, p=%.4f at alpha=%.2f)\n",
		result.Direction, result.S, result.Z, result.PValue, trendAlpha)
	fmt.Printf("Sen slope: %+.5f per step\n", slope)
	if len(points) == 0 {
		fmt.Println("No change points detected.")
	}
	for _, point := range points {
		fmt.Printf("Change point at index %d: shift %s, magnitude %+.4f (confidence %.2f)\n",
			point.Index, point.Direction, point.Magnitude, point.Confidence)
	}
	if decomposition != nil {
		n := len(decomposition.Trend)
		fmt.Printf("Decomposition (period %d): trend %.4f -> %.4f, seasonal amplitude %.4f\n",
			decomposition.Period, decomposition.Trend[0], decomposition.Trend[n-1],
			seasonalAmplitude(decomposition.Seasonal))
	}
	return nil
}

// seasonalAmplitude is the peak-to-trough range of the seasonal
// component.
func seasonalAmplitude(seasonal []float64) float64 {
	low, high := seasonal[0], seasonal[0]
	for _, v := range seasonal[1:] {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	return high - low
}
