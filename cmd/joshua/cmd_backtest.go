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

	"github.com/AleutianAI/joshua/services/risk/calibration"
	"github.com/AleutianAI/joshua/services/risk/pipeline"
)

var (
	backtestEventsPath  string
	backtestHistoryPath string
	backtestJSONOutput  bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Calibrate the engine against labeled historical events",
	Long: `Scores each labeled historical event and checks correlation and
RMSE against the expert labels. Exits non-zero when calibration
fails. With --history, additionally walk-forward backtests one-step
predictions over the score series.`,
	RunE: runBacktestCommand,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestEventsPath, "events", "", "yaml file with labeled events (required)")
	backtestCmd.Flags().StringVar(&backtestHistoryPath, "history", "", "yaml file with past scores for walk-forward")
	backtestCmd.Flags().BoolVar(&backtestJSONOutput, "json", false, "emit reports as JSON")
	backtestCmd.MarkFlagRequired("events")
}

type backtestOutput struct {
	Calibration *calibration.Report         `json:"calibration"`
	WalkForward *calibration.BacktestReport `json:"walk_forward,omitempty"`
}

func runBacktestCommand(cmd *cobra.Command, args []string) error {
	events, err := calibration.LoadEvents(backtestEventsPath)
	if err != nil {
		return err
	}

	config, err := engineConfig()
	if err != nil {
		return err
	}
	engine, err := pipeline.NewEngine(config)
	if err != nil {
		return err
	}
	engine = engine.WithLogger(logger.Logger)

	report, calErr := calibration.NewCalibrator(engine).
		WithLogger(logger.Logger).
		Calibrate(cmd.Context(), events)
	if calErr != nil && !errors.Is(calErr, calibration.ErrCalibrationFailed) {
		return calErr
	}

	output := backtestOutput{Calibration: report}
	if backtestHistoryPath != "" {
		var history []float64
		if err := loadYAML(backtestHistoryPath, &history); err != nil {
			return err
		}
		walkForward, err := calibration.WalkForward(history)
		if err != nil {
			return err
		}
		output.WalkForward = walkForward
	}

	if backtestJSONOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(output); err != nil {
			return err
		}
		return calErr
	}

	fmt.Printf("Calibration over %d events: correlation %.3f, RMSE %.3f\n",
		len(report.Results), report.Correlation, report.RMSE)
	for _, result := range report.Results {
		fmt.Printf("  %-30s predicted %.3f, expected %.3f (error %+.3f)\n",
			result.Name, result.Predicted, result.Expected, result.Error)
	}
	if output.WalkForward != nil {
		fmt.Printf("Walk-forward over %d steps: MAE %.4f, RMSE %.4f, directional accuracy %.0f%%\n",
			len(output.WalkForward.Steps),
			output.WalkForward.MeanAbsoluteError,
			output.WalkForward.RMSE,
			output.WalkForward.DirectionalAccuracy*100)
	}
	if calErr != nil {
		fmt.Printf("FAILED: %v\n", calErr)
		return calErr
	}
	fmt.Println("PASSED")
	return nil
}
