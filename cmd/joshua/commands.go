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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/joshua/pkg/logging"
	"github.com/AleutianAI/joshua/services/risk/pipeline"
)

var (
	logLevel   string
	configPath string

	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "joshua",
		Short: "Nuclear risk assessment in seconds to midnight",
		Long: `joshua scores a set of normalized risk factors, adjusts the score
with a learned dependency network, simulates forward trajectories,
and reports the result as seconds to midnight on a 0-1440 scale.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New(logging.Config{Level: logging.ParseLevel(logLevel)})
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "engine config yaml")
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(backtestCmd)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if logger != nil {
		logger.Close()
	}
	return err
}

// engineConfig loads the config file when set, defaults otherwise.
func engineConfig() (pipeline.EngineConfig, error) {
	if configPath == "" {
		return pipeline.DefaultEngineConfig(), nil
	}
	return pipeline.LoadEngineConfig(configPath)
}

// loadYAML reads a yaml fixture into out.
func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
