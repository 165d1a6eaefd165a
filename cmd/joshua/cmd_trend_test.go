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
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/joshua/services/risk/trend"
)

func TestRunTrendCommandWithDecomposition(t *testing.T) {
	// Rising series with a 6-step seasonal wobble.
	series := make([]float64, 24)
	for i := range series {
		series[i] = 0.3 + 0.01*float64(i) + 0.05*float64(i%6)
	}
	data, err := yaml.Marshal(series)
	if err != nil {
		t.Fatalf("marshal history: %v", err)
	}
	path := filepath.Join(t.TempDir(), "history.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write history: %v", err)
	}

	trendHistoryPath = path
	trendAlpha = trend.DefaultAlpha
	trendPeriod = 6
	trendJSONOutput = false
	t.Cleanup(func() {
		trendHistoryPath = ""
		trendPeriod = 0
	})

	if err := runTrendCommand(trendCmd, nil); err != nil {
		t.Fatalf("runTrendCommand: %v", err)
	}

	// 24 points cannot cover a 13-step season twice.
	trendPeriod = 13
	if err := runTrendCommand(trendCmd, nil); err == nil {
		t.Fatal("expected an error for a period the history cannot cover")
	}
}
