// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trend

import (
	"math"
)

// -----------------------------------------------------------------------------
// Seasonal Decomposition
// -----------------------------------------------------------------------------

// Decomposition splits a series into trend, seasonal, and residual
// components. All three slices have the length of the input and sum
// back to it element-wise.
type Decomposition struct {
	// Trend is the local-regression smoothed long-run component.
	Trend []float64 `json:"trend" yaml:"trend"`

	// Seasonal is the periodic component, centered so its per-period
	// means sum to zero.
	Seasonal []float64 `json:"seasonal" yaml:"seasonal"`

	// Residual is what remains after removing trend and seasonal.
	Residual []float64 `json:"residual" yaml:"residual"`

	// Period is the season length used.
	Period int `json:"period" yaml:"period"`
}

// Decompose extracts trend, seasonal, and residual components.
//
// Description:
//
//	A loess-style local linear regression with tricube weights smooths
//	the series into a trend component. Subtracting it leaves a
//	detrended series from which the seasonal component is taken by
//	period-wise averaging; the remainder is residual.
//
// Inputs:
//   - series: Observations in time order.
//   - period: Season length in observations. Must be at least 2.
//
// Outputs:
//   - *Decomposition: The three components.
//   - error: ErrInsufficientHistory unless the series covers at least
//     two full periods.
//
// Thread Safety: Stateless, safe for concurrent use.
func Decompose(series []float64, period int) (*Decomposition, error) {
	n := len(series)
	if period < 2 || n < 2*period {
		return nil, ErrInsufficientHistory
	}

	// Smoothing window spans one full period on each side where
	// possible, so seasonal swings average out of the trend.
	window := 2*period + 1
	if window > n {
		window = n
	}
	trendComp := loessSmooth(series, window)

	detrended := make([]float64, n)
	for i := range series {
		detrended[i] = series[i] - trendComp[i]
	}

	// Period-wise means, centered to sum to zero so the seasonal
	// component carries no level.
	phaseMeans := make([]float64, period)
	phaseCounts := make([]int, period)
	for i, v := range detrended {
		phase := i % period
		phaseMeans[phase] += v
		phaseCounts[phase]++
	}
	var grand float64
	for p := range phaseMeans {
		phaseMeans[p] /= float64(phaseCounts[p])
		grand += phaseMeans[p]
	}
	grand /= float64(period)
	for p := range phaseMeans {
		phaseMeans[p] -= grand
	}

	seasonal := make([]float64, n)
	residual := make([]float64, n)
	for i := range series {
		seasonal[i] = phaseMeans[i%period]
		residual[i] = series[i] - trendComp[i] - seasonal[i]
	}

	return &Decomposition{
		Trend:    trendComp,
		Seasonal: seasonal,
		Residual: residual,
		Period:   period,
	}, nil
}

// loessSmooth applies local linear regression with tricube weights over
// a sliding window of the given width.
func loessSmooth(series []float64, window int) []float64 {
	n := len(series)
	smoothed := make([]float64, n)
	half := window / 2

	for i := 0; i < n; i++ {
		lo := i - half
		hi := i + half
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}

		// Tricube-weighted linear fit over [lo,hi], evaluated at i.
		maxDist := math.Max(float64(i-lo), float64(hi-i))
		if maxDist == 0 {
			smoothed[i] = series[i]
			continue
		}

		var sw, swx, swy, swxx, swxy float64
		for j := lo; j <= hi; j++ {
			d := math.Abs(float64(j-i)) / (maxDist + 1)
			w := math.Pow(1-d*d*d, 3)
			x := float64(j)
			sw += w
			swx += w * x
			swy += w * series[j]
			swxx += w * x * x
			swxy += w * x * series[j]
		}

		denom := sw*swxx - swx*swx
		if math.Abs(denom) < 1e-12 {
			smoothed[i] = swy / sw
			continue
		}
		slope := (sw*swxy - swx*swy) / denom
		intercept := (swy - slope*swx) / sw
		smoothed[i] = intercept + slope*float64(i)
	}
	return smoothed
}
