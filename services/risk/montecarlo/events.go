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
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidEventTable indicates a malformed base-rate table.
var ErrInvalidEventTable = errors.New("invalid event table")

// EventType identifies one kind of simulated occurrence.
type EventType string

const (
	EventDiplomaticIncident   EventType = "diplomatic_incident"
	EventMilitaryIncident     EventType = "military_incident"
	EventTechnicalFailure     EventType = "technical_failure"
	EventCommunicationFailure EventType = "communication_failure"
	EventDeEscalation         EventType = "de_escalation"
	EventNuclearThreat        EventType = "nuclear_threat"
	EventNuclearStrike        EventType = "nuclear_strike"
)

// EventTable maps event types to base rates in events per day. The
// table is configuration data: new event types can be added without
// touching the simulator's control flow, as long as Apply knows the
// type's effect.
type EventTable map[EventType]float64

// DefaultEventTable returns the baseline daily rates.
func DefaultEventTable() EventTable {
	return EventTable{
		EventDiplomaticIncident:   0.020,
		EventMilitaryIncident:     0.010,
		EventTechnicalFailure:     0.006,
		EventCommunicationFailure: 0.005,
		EventDeEscalation:         0.018,
		EventNuclearThreat:        0.002,
		EventNuclearStrike:        0.0004,
	}
}

// LoadEventTable reads a base-rate table from a YAML file.
//
// Outputs:
//   - EventTable: The parsed table.
//   - error: Non-nil on read, parse, or validation failure.
func LoadEventTable(path string) (EventTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event table: %w", err)
	}
	var table EventTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse event table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks that the table is non-empty with non-negative rates.
func (t EventTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty table", ErrInvalidEventTable)
	}
	for eventType, rate := range t {
		if rate < 0 {
			return fmt.Errorf("%w: negative rate %v for %s", ErrInvalidEventTable, rate, eventType)
		}
	}
	return nil
}

// ScaledRates returns the table's rates adjusted for the current world
// state:
//
//   - every escalatory event scales by 1 + tension*5
//   - military incidents scale by a further 3x under active conflict
//   - technical failures scale by a further 2x under degraded comms
//
// De-escalation keeps its base rate; calm is not contagious the way
// crisis is.
func (t EventTable) ScaledRates(state WorldState) map[EventType]float64 {
	escalationMult := 1 + state.TensionLevel*5

	scaled := make(map[EventType]float64, len(t))
	for eventType, rate := range t {
		switch eventType {
		case EventDeEscalation:
			scaled[eventType] = rate
		case EventMilitaryIncident:
			r := rate * escalationMult
			if state.HasConflict() {
				r *= 3
			}
			scaled[eventType] = r
		case EventTechnicalFailure:
			r := rate * escalationMult
			if state.CommsDegraded {
				r *= 2
			}
			scaled[eventType] = r
		default:
			scaled[eventType] = rate * escalationMult
		}
	}
	return scaled
}

// Apply produces the state resulting from an event. The input state is
// never mutated; the returned state is a fresh copy.
func Apply(event EventType, state WorldState) WorldState {
	switch event {
	case EventDiplomaticIncident:
		return state.withTension(state.TensionLevel + 0.05)

	case EventMilitaryIncident:
		next := state.withTension(state.TensionLevel + 0.10)
		if next.TensionLevel >= 0.5 && !next.HasConflict() {
			next.ActiveConflicts = append(next.ActiveConflicts, "flashpoint")
			next.Escalation = escalationFor(next.TensionLevel, true)
		}
		return next

	case EventTechnicalFailure:
		return state.withTension(state.TensionLevel + 0.08)

	case EventCommunicationFailure:
		next := state.withTension(state.TensionLevel + 0.05)
		next.CommsDegraded = true
		return next

	case EventDeEscalation:
		next := state.withTension(state.TensionLevel - 0.12)
		if next.TensionLevel < 0.4 {
			next.CommsDegraded = false
		}
		if next.TensionLevel < 0.3 {
			next.ActiveConflicts = nil
			next.Escalation = escalationFor(next.TensionLevel, false)
		}
		return next

	case EventNuclearThreat:
		return state.withTension(state.TensionLevel + 0.15)

	case EventNuclearStrike:
		next := state.withTension(1.0)
		next.Escalation = EscalationNuclearWar
		next.NuclearWarOccurred = true
		return next

	default:
		// Unknown event types configured in the table but without a
		// modeled effect leave the state unchanged.
		return state.Clone()
	}
}
