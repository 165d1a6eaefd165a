// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package uncertainty propagates input uncertainty through an arbitrary
// scalar function by joint Monte Carlo sampling. Each uncertain input
// carries its own distribution; the propagator draws all inputs
// together, evaluates the function, and summarizes the resulting
// output distribution empirically.
package uncertainty

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/AleutianAI/joshua/services/risk/stats"
)

// ErrInvalidInput indicates a malformed uncertain input description.
var ErrInvalidInput = errors.New("invalid uncertain input")

// DefaultSamples is the number of joint draws used when the caller
// does not override it.
const DefaultSamples = 5000

// ----------------------------------------------------------------------------
// Distributions
// ----------------------------------------------------------------------------

// Distribution identifies the sampling distribution of one input.
type Distribution int

const (
	Normal Distribution = iota
	Uniform
	Triangular
)

func (d Distribution) String() string {
	switch d {
	case Normal:
		return "normal"
	case Uniform:
		return "uniform"
	case Triangular:
		return "triangular"
	default:
		return fmt.Sprintf("distribution(%d)", int(d))
	}
}

// UncertainInput describes one input dimension. The fields consulted
// depend on Distribution: Normal uses Mean/StdDev, Uniform uses
// Min/Max, Triangular uses Min/Mode/Max.
type UncertainInput struct {
	Name         string       `json:"name" yaml:"name"`
	Distribution Distribution `json:"distribution" yaml:"distribution"`

	Mean   float64 `json:"mean,omitempty" yaml:"mean,omitempty"`
	StdDev float64 `json:"std_dev,omitempty" yaml:"std_dev,omitempty"`
	Min    float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Mode   float64 `json:"mode,omitempty" yaml:"mode,omitempty"`
	Max    float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Validate checks the parameters required by the input's distribution.
func (u UncertainInput) Validate() error {
	switch u.Distribution {
	case Normal:
		if u.StdDev < 0 {
			return fmt.Errorf("%w: %s: negative std dev %v", ErrInvalidInput, u.Name, u.StdDev)
		}
	case Uniform:
		if u.Max < u.Min {
			return fmt.Errorf("%w: %s: max %v below min %v", ErrInvalidInput, u.Name, u.Max, u.Min)
		}
	case Triangular:
		if u.Mode < u.Min || u.Mode > u.Max {
			return fmt.Errorf("%w: %s: mode %v outside [%v, %v]", ErrInvalidInput, u.Name, u.Mode, u.Min, u.Max)
		}
	default:
		return fmt.Errorf("%w: %s: unknown distribution %d", ErrInvalidInput, u.Name, int(u.Distribution))
	}
	return nil
}

// Sample draws one value from the input's distribution.
func (u UncertainInput) Sample(rng *rand.Rand) float64 {
	switch u.Distribution {
	case Uniform:
		return u.Min + rng.Float64()*(u.Max-u.Min)
	case Triangular:
		return sampleTriangular(rng, u.Min, u.Mode, u.Max)
	default:
		return u.Mean + u.StdDev*rng.NormFloat64()
	}
}

// sampleTriangular uses the inverse CDF of the triangular distribution.
func sampleTriangular(rng *rand.Rand, min, mode, max float64) float64 {
	if max == min {
		return min
	}
	p := rng.Float64()
	cut := (mode - min) / (max - min)
	if p < cut {
		return min + math.Sqrt(p*(max-min)*(mode-min))
	}
	return max - math.Sqrt((1-p)*(max-min)*(max-mode))
}

// ----------------------------------------------------------------------------
// Propagator
// ----------------------------------------------------------------------------

// Config controls a propagation run.
type Config struct {
	// Samples is the number of joint draws. Zero uses DefaultSamples.
	Samples int `json:"samples" yaml:"samples"`
	// Seed makes runs reproducible.
	Seed int64 `json:"seed" yaml:"seed"`
}

// Analysis summarizes the empirical output distribution.
type Analysis struct {
	Mean    float64                  `json:"mean"`
	Median  float64                  `json:"median"`
	StdDev  float64                  `json:"std_dev"`
	CI      stats.ConfidenceInterval `json:"confidence_interval"`
	Samples int                      `json:"samples"`
}

// Propagator performs joint Monte Carlo error propagation.
type Propagator struct {
	config Config
	logger *slog.Logger
}

// NewPropagator returns a propagator with defaults applied.
func NewPropagator(config Config) *Propagator {
	if config.Samples <= 0 {
		config.Samples = DefaultSamples
	}
	return &Propagator{config: config, logger: slog.Default()}
}

// WithLogger sets the logger used for diagnostics.
func (p *Propagator) WithLogger(logger *slog.Logger) *Propagator {
	p.logger = logger
	return p
}

// Propagate draws joint samples from the inputs, evaluates fn on each
// draw, and returns the empirical summary of fn's output. Non-finite
// fn outputs are dropped; if every draw is non-finite an error is
// returned.
//
// Inputs:
//   - inputs: the uncertain dimensions; each is validated first.
//   - fn: the deterministic function under study. It receives one
//     value per input, in input order.
//
// Outputs:
//   - *Analysis: mean, median, standard deviation, and the empirical
//     2.5/97.5 percentile interval at level 0.95.
//   - error: ErrInvalidInput on a bad input, or when fn never
//     produced a finite value.
func (p *Propagator) Propagate(inputs []UncertainInput, fn func([]float64) float64) (*Analysis, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no inputs", ErrInvalidInput)
	}
	for _, input := range inputs {
		if err := input.Validate(); err != nil {
			return nil, err
		}
	}

	rng := rand.New(rand.NewSource(p.config.Seed))
	draw := make([]float64, len(inputs))
	outputs := make([]float64, 0, p.config.Samples)
	dropped := 0
	for i := 0; i < p.config.Samples; i++ {
		for j, input := range inputs {
			draw[j] = input.Sample(rng)
		}
		out := fn(draw)
		if math.IsNaN(out) || math.IsInf(out, 0) {
			dropped++
			continue
		}
		outputs = append(outputs, out)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: function produced no finite outputs over %d samples",
			ErrInvalidInput, p.config.Samples)
	}
	if dropped > 0 {
		p.logger.Warn("dropped non-finite outputs during propagation",
			"dropped", dropped, "samples", p.config.Samples)
	}

	sort.Float64s(outputs)
	mean := stats.Mean(outputs)
	median := stats.Median(outputs)
	stdDev := 0.0
	if len(outputs) > 1 {
		stdDev = stats.StdDev(outputs)
	}
	lower := stats.Percentile(outputs, 2.5)
	upper := stats.Percentile(outputs, 97.5)

	return &Analysis{
		Mean:    mean,
		Median:  median,
		StdDev:  stdDev,
		CI: stats.ConfidenceInterval{
			Lower:  lower,
			Upper:  upper,
			Level:  0.95,
			Center: median,
		},
		Samples: len(outputs),
	}, nil
}
