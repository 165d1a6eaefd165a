// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package montecarlo runs independent stochastic forward simulations of
// world-state evolution to estimate escalation probabilities and
// time-to-critical-event distributions.
//
// Each trajectory owns a private clone of the initial world state;
// trajectories never share mutable state, so the run is an
// embarrassingly parallel map-reduce with a commutative merge.
package montecarlo

// EscalationLevel is the ordinal severity ladder a simulated world
// climbs toward nuclear war.
type EscalationLevel int

const (
	EscalationStable EscalationLevel = iota
	EscalationElevated
	EscalationCrisis
	EscalationConventionalWar
	EscalationNuclearThreat
	EscalationNuclearWar
)

// NumEscalationLevels is the size of the escalation ladder.
const NumEscalationLevels = 6

// String returns the wire name of the escalation level.
func (e EscalationLevel) String() string {
	switch e {
	case EscalationStable:
		return "stable"
	case EscalationElevated:
		return "elevated"
	case EscalationCrisis:
		return "crisis"
	case EscalationConventionalWar:
		return "conventional_war"
	case EscalationNuclearThreat:
		return "nuclear_threat"
	case EscalationNuclearWar:
		return "nuclear_war"
	default:
		return "unknown"
	}
}

// WorldState is the simulated geopolitical state of one trajectory.
//
// Ownership: a WorldState belongs to exactly one trajectory. Clone it
// before handing it to a simulation; Apply never mutates its input.
type WorldState struct {
	// TensionLevel is the aggregate geopolitical tension in [0,1].
	TensionLevel float64 `json:"tension_level" yaml:"tension_level"`

	// ActiveConflicts names the conflicts currently running.
	ActiveConflicts []string `json:"active_conflicts" yaml:"active_conflicts"`

	// CommsDegraded is true when crisis-communication channels are
	// impaired.
	CommsDegraded bool `json:"comms_degraded" yaml:"comms_degraded"`

	// Escalation is the current rung on the escalation ladder.
	Escalation EscalationLevel `json:"escalation" yaml:"escalation"`

	// NuclearWarOccurred terminates the trajectory when true.
	NuclearWarOccurred bool `json:"nuclear_war_occurred" yaml:"nuclear_war_occurred"`
}

// Clone returns a deep copy of the state.
func (w WorldState) Clone() WorldState {
	clone := w
	if len(w.ActiveConflicts) > 0 {
		clone.ActiveConflicts = make([]string, len(w.ActiveConflicts))
		copy(clone.ActiveConflicts, w.ActiveConflicts)
	}
	return clone
}

// HasConflict reports whether any conflict is active.
func (w WorldState) HasConflict() bool {
	return len(w.ActiveConflicts) > 0
}

// withTension returns a copy with tension clamped to [0,1] and the
// escalation rung rederived from it.
func (w WorldState) withTension(tension float64) WorldState {
	next := w.Clone()
	if tension < 0 {
		tension = 0
	}
	if tension > 1 {
		tension = 1
	}
	next.TensionLevel = tension
	next.Escalation = escalationFor(tension, next.HasConflict())
	return next
}

// escalationFor maps tension (and conflict presence) to the ladder.
// Nuclear war is never entered here; only a strike event sets it.
func escalationFor(tension float64, hasConflict bool) EscalationLevel {
	switch {
	case tension < 0.25:
		return EscalationStable
	case tension < 0.45:
		return EscalationElevated
	case tension < 0.65:
		return EscalationCrisis
	case tension < 0.85:
		if hasConflict {
			return EscalationConventionalWar
		}
		return EscalationCrisis
	default:
		return EscalationNuclearThreat
	}
}

// Event is one stochastic occurrence applied to a world state.
type Event struct {
	// Type identifies the event kind.
	Type EventType `json:"type" yaml:"type"`

	// TimeDeltaDays is the sampled gap since the previous event.
	TimeDeltaDays float64 `json:"time_delta_days" yaml:"time_delta_days"`
}

// Outcome is the result of one completed trajectory.
type Outcome struct {
	// Final is the state at trajectory end.
	Final WorldState `json:"final" yaml:"final"`

	// Events is the ordered event log.
	Events []Event `json:"events" yaml:"events"`

	// WarOccurred is true if the trajectory reached nuclear war.
	WarOccurred bool `json:"war_occurred" yaml:"war_occurred"`

	// TimeToWarDays is the elapsed time at which war occurred;
	// meaningful only when WarOccurred is true.
	TimeToWarDays float64 `json:"time_to_war_days" yaml:"time_to_war_days"`
}
