// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package montecarlo

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/joshua/services/risk/stats"
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config tunes a simulation run.
type Config struct {
	// Iterations is the number of independent trajectories.
	// Default: 10000.
	Iterations int `json:"iterations" yaml:"iterations"`

	// Workers is the worker-pool size. Default: runtime.NumCPU().
	Workers int `json:"workers" yaml:"workers"`

	// Seed makes runs reproducible. Each trajectory derives its own
	// RNG from Seed plus its index, so results do not depend on
	// worker scheduling.
	Seed int64 `json:"seed" yaml:"seed"`

	// HorizonDays is the simulated time horizon. Default: 365.
	HorizonDays float64 `json:"horizon_days" yaml:"horizon_days"`

	// MaxEventsPerTrajectory bounds a single trajectory's event log.
	// Default: 5000.
	MaxEventsPerTrajectory int `json:"max_events_per_trajectory" yaml:"max_events_per_trajectory"`

	// WallClockBudget, when positive, stops launching new trajectories
	// once exceeded. In-flight trajectories finish; there is no
	// mid-trajectory cancellation.
	WallClockBudget time.Duration `json:"wall_clock_budget" yaml:"wall_clock_budget"`

	// Events is the base-rate table; nil uses DefaultEventTable.
	Events EventTable `json:"events" yaml:"events"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Iterations:             10000,
		Workers:                runtime.NumCPU(),
		Seed:                   1,
		HorizonDays:            365,
		MaxEventsPerTrajectory: 5000,
	}
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// Results aggregates all trajectories of one run.
type Results struct {
	// Iterations is the number of trajectories actually completed
	// (may be below the configured count under a wall-clock budget).
	Iterations int `json:"iterations" yaml:"iterations"`

	// WarCount is the number of trajectories reaching nuclear war.
	WarCount int `json:"war_count" yaml:"war_count"`

	// WarProbability is WarCount/Iterations.
	WarProbability float64 `json:"war_probability" yaml:"war_probability"`

	// WarProbabilityCI is the Wilson 95% interval for WarProbability.
	WarProbabilityCI stats.ConfidenceInterval `json:"war_probability_ci" yaml:"war_probability_ci"`

	// MeanTimeToWarDays averages time-to-war over war trajectories
	// only; zero if no trajectory reached war.
	MeanTimeToWarDays float64 `json:"mean_time_to_war_days" yaml:"mean_time_to_war_days"`

	// MedianTimeToWarDays is the median over war trajectories only.
	MedianTimeToWarDays float64 `json:"median_time_to_war_days" yaml:"median_time_to_war_days"`

	// EscalationDistribution is the fraction of trajectories ending at
	// each escalation level.
	EscalationDistribution map[string]float64 `json:"escalation_distribution" yaml:"escalation_distribution"`

	// MeanEventsPerTrajectory is the average event-log length.
	MeanEventsPerTrajectory float64 `json:"mean_events_per_trajectory" yaml:"mean_events_per_trajectory"`
}

// -----------------------------------------------------------------------------
// Simulator
// -----------------------------------------------------------------------------

// Simulator runs many independent world-state trajectories.
//
// Thread Safety: Safe for concurrent use; each Simulate call is
// self-contained.
type Simulator struct {
	config Config
	events EventTable
	order  []EventType
	logger *slog.Logger
}

// NewSimulator creates a simulator.
//
// Inputs:
//   - config: Run configuration; zero fields take defaults.
//
// Outputs:
//   - *Simulator: Ready to use simulator.
//   - error: Non-nil if the event table fails validation.
func NewSimulator(config Config) (*Simulator, error) {
	defaults := DefaultConfig()
	if config.Iterations <= 0 {
		config.Iterations = defaults.Iterations
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.HorizonDays <= 0 {
		config.HorizonDays = defaults.HorizonDays
	}
	if config.MaxEventsPerTrajectory <= 0 {
		config.MaxEventsPerTrajectory = defaults.MaxEventsPerTrajectory
	}

	events := config.Events
	if events == nil {
		events = DefaultEventTable()
	}
	if err := events.Validate(); err != nil {
		return nil, err
	}

	order := make([]EventType, 0, len(events))
	for eventType := range events {
		order = append(order, eventType)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	return &Simulator{
		config: config,
		events: events,
		order:  order,
		logger: slog.Default(),
	}, nil
}

// WithLogger sets the logger.
func (s *Simulator) WithLogger(logger *slog.Logger) *Simulator {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// accumulator holds one worker's partial reduction. The merge is a
// commutative, associative combination of counts and sums, so the
// aggregate does not depend on worker scheduling.
type accumulator struct {
	completed int
	wars      int
	warTimes  []float64
	escCounts [NumEscalationLevels]int
	events    int64
}

func (a *accumulator) merge(b *accumulator) {
	a.completed += b.completed
	a.wars += b.wars
	a.warTimes = append(a.warTimes, b.warTimes...)
	for i := range a.escCounts {
		a.escCounts[i] += b.escCounts[i]
	}
	a.events += b.events
}

// Simulate runs the configured number of independent trajectories from
// the initial state and reduces them into aggregate results.
//
// Inputs:
//   - ctx: Cancellation is honored between trajectories, never
//     mid-trajectory.
//   - initial: State cloned at the start of every trajectory.
//
// Outputs:
//   - *Results: Aggregated run results.
//   - error: Context error if the run was cancelled before any
//     trajectory completed.
func (s *Simulator) Simulate(ctx context.Context, initial WorldState) (*Results, error) {
	start := time.Now()
	workers := s.config.Workers
	iterations := s.config.Iterations

	accs := make([]*accumulator, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		accs[w] = &accumulator{}
		acc := accs[w]
		workerID := w
		g.Go(func() error {
			for idx := workerID; idx < iterations; idx += workers {
				if gctx.Err() != nil {
					return nil
				}
				if s.config.WallClockBudget > 0 && time.Since(start) > s.config.WallClockBudget {
					return nil
				}
				outcome := s.runTrajectory(initial, idx)
				acc.record(outcome)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &accumulator{}
	for _, acc := range accs {
		total.merge(acc)
	}
	if total.completed == 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation cancelled before any trajectory completed: %w", err)
		}
		return nil, fmt.Errorf("no trajectories completed")
	}

	results, err := s.reduce(total)
	if err != nil {
		return nil, err
	}

	s.logger.Info("simulation complete",
		slog.Int("iterations", results.Iterations),
		slog.Int("wars", results.WarCount),
		slog.Float64("war_probability", results.WarProbability),
		slog.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

func (a *accumulator) record(outcome Outcome) {
	a.completed++
	a.events += int64(len(outcome.Events))
	a.escCounts[outcome.Final.Escalation]++
	if outcome.WarOccurred {
		a.wars++
		a.warTimes = append(a.warTimes, outcome.TimeToWarDays)
	}
}

// runTrajectory simulates one trajectory with its own RNG, derived
// from the seed and trajectory index for scheduling-independent
// reproducibility.
func (s *Simulator) runTrajectory(initial WorldState, index int) Outcome {
	rng := rand.New(rand.NewSource(s.config.Seed + int64(index)*2654435761))
	state := initial.Clone()

	var log []Event
	elapsed := 0.0

	for elapsed < s.config.HorizonDays && !state.NuclearWarOccurred && len(log) < s.config.MaxEventsPerTrajectory {
		rates := s.events.ScaledRates(state)
		totalRate := 0.0
		for _, r := range rates {
			totalRate += r
		}
		if totalRate <= 0 {
			break
		}

		// Exponential inter-arrival time for the merged process.
		dt := rng.ExpFloat64() / totalRate
		elapsed += dt
		if elapsed > s.config.HorizonDays {
			break
		}

		eventType := sampleEvent(rng, s.order, rates, totalRate)
		state = Apply(eventType, state)
		log = append(log, Event{Type: eventType, TimeDeltaDays: dt})
	}

	return Outcome{
		Final:         state,
		Events:        log,
		WarOccurred:   state.NuclearWarOccurred,
		TimeToWarDays: elapsed,
	}
}

// sampleEvent picks an event type with probability proportional to its
// scaled rate. Iterating a fixed sorted order keeps the draw
// deterministic for a given RNG state; map iteration order would break
// seed reproducibility.
func sampleEvent(rng *rand.Rand, order []EventType, rates map[EventType]float64, totalRate float64) EventType {
	target := rng.Float64() * totalRate
	cumulative := 0.0
	for _, eventType := range order {
		cumulative += rates[eventType]
		if target < cumulative {
			return eventType
		}
	}
	// Rounding slack: fall through to the last listed type.
	return order[len(order)-1]
}

// reduce folds the merged accumulator into Results.
func (s *Simulator) reduce(total *accumulator) (*Results, error) {
	ci, err := stats.WilsonInterval(total.wars, total.completed, 0.95)
	if err != nil {
		return nil, err
	}

	results := &Results{
		Iterations:              total.completed,
		WarCount:                total.wars,
		WarProbability:          float64(total.wars) / float64(total.completed),
		WarProbabilityCI:        ci,
		MeanEventsPerTrajectory: float64(total.events) / float64(total.completed),
		EscalationDistribution:  make(map[string]float64, NumEscalationLevels),
	}

	for level, count := range total.escCounts {
		if count > 0 {
			results.EscalationDistribution[EscalationLevel(level).String()] =
				float64(count) / float64(total.completed)
		}
	}

	if len(total.warTimes) > 0 {
		sort.Float64s(total.warTimes)
		results.MeanTimeToWarDays = stats.Mean(total.warTimes)
		results.MedianTimeToWarDays = stats.Median(total.warTimes)
	}
	return results, nil
}
