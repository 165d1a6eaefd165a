// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bayes

import (
	"github.com/AleutianAI/joshua/services/risk/stats"
)

// minPriorVariance keeps precisions finite when either distribution is
// nearly degenerate.
const minPriorVariance = 1e-4

// BlendHistoricalPrior combines the current score with the historical
// score distribution by precision weighting, a conjugate Normal-Normal
// update. The current score acts as an observation with the given
// variance; the history supplies the prior mean and variance. Fewer
// than two history points leave the current score untouched.
func BlendHistoricalPrior(current, currentVariance float64, history []float64) float64 {
	if len(history) < 2 {
		return current
	}
	historyMean := stats.Mean(history)
	historyVariance := stats.Variance(history)
	if historyVariance < minPriorVariance {
		historyVariance = minPriorVariance
	}
	if currentVariance < minPriorVariance {
		currentVariance = minPriorVariance
	}

	currentPrecision := 1.0 / currentVariance
	historyPrecision := 1.0 / historyVariance
	blended := (currentPrecision*current + historyPrecision*historyMean) /
		(currentPrecision + historyPrecision)
	if blended < 0 {
		return 0
	}
	if blended > 1 {
		return 1
	}
	return blended
}
