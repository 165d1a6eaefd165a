// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package factor defines the canonical representation of a normalized
// nuclear-risk indicator and its supporting enumerations.
//
// A RiskFactor is one confidence-tagged observation contributing to the
// aggregate risk score. Factors are produced upstream per assessment
// cycle, validated at the engine boundary, and never mutated by the
// engine itself.
package factor

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// ErrInvalidFactor indicates a factor violating the data contract
// (value outside [0,1] or an unknown category). Invalid factors are
// rejected outright, never clamped.
var ErrInvalidFactor = errors.New("invalid risk factor")

// -----------------------------------------------------------------------------
// Doomsday Clock Scale
// -----------------------------------------------------------------------------

// The risk scale runs from 0 seconds (midnight, maximal risk) to 1440
// seconds (noon, minimal risk), inverse-linear in the underlying [0,1]
// risk score.
const (
	// MaxSecondsToMidnight is the top of the clock scale (minimal risk).
	MaxSecondsToMidnight = 1440

	// MinSecondsToMidnight is the bottom of the clock scale (nuclear war).
	MinSecondsToMidnight = 0

	// CurrentClockSeconds is the published Doomsday Clock setting used
	// as a reference point (January 2025).
	CurrentClockSeconds = 89
)

// Risk-level thresholds in seconds to midnight, ordered strictly.
const (
	CriticalThreshold = 100
	SevereThreshold   = 200
	HighThreshold     = 400
	ModerateThreshold = 600
)

// RiskLevel names the band a seconds-to-midnight reading falls into.
//
// Inputs:
//   - seconds: Seconds to midnight, 0 to 1440.
//
// Outputs:
//   - string: "Critical", "Severe", "High", "Moderate", or "Low".
func RiskLevel(seconds int) string {
	switch {
	case seconds <= CriticalThreshold:
		return "Critical"
	case seconds <= SevereThreshold:
		return "Severe"
	case seconds <= HighThreshold:
		return "High"
	case seconds <= ModerateThreshold:
		return "Moderate"
	default:
		return "Low"
	}
}

// -----------------------------------------------------------------------------
// Risk Categories
// -----------------------------------------------------------------------------

// Category is one of the eight fixed risk dimensions tracked by the
// engine. The set is closed; dispatch on it is always exhaustive.
type Category int

const (
	// NuclearArsenalChanges covers warhead counts, deployment shifts,
	// and modernization programs.
	NuclearArsenalChanges Category = iota

	// DoctrineAndPosture covers declared first-use policy, alert
	// levels, and strategic-force posture.
	DoctrineAndPosture

	// RegionalConflicts covers active conflicts involving or adjacent
	// to nuclear-armed states.
	RegionalConflicts

	// LeadershipAndRhetoric covers leadership instability and explicit
	// nuclear rhetoric.
	LeadershipAndRhetoric

	// TechnicalIncidents covers early-warning malfunctions, accidents,
	// and near-miss events.
	TechnicalIncidents

	// CommunicationBreakdown covers degradation of crisis-communication
	// channels between nuclear powers.
	CommunicationBreakdown

	// EmergingTechnology covers destabilizing technology such as
	// hypersonics, cyber threats to C2, and autonomous systems.
	EmergingTechnology

	// EconomicFactors covers economic pressure that raises escalation
	// incentives.
	EconomicFactors
)

// categoryNames maps categories to their wire names.
var categoryNames = map[Category]string{
	NuclearArsenalChanges:  "nuclear_arsenal_changes",
	DoctrineAndPosture:     "doctrine_and_posture",
	RegionalConflicts:      "regional_conflicts",
	LeadershipAndRhetoric:  "leadership_and_rhetoric",
	TechnicalIncidents:     "technical_incidents",
	CommunicationBreakdown: "communication_breakdown",
	EmergingTechnology:     "emerging_technology",
	EconomicFactors:        "economic_factors",
}

// AllCategories returns the fixed category set in declaration order.
func AllCategories() []Category {
	return []Category{
		NuclearArsenalChanges,
		DoctrineAndPosture,
		RegionalConflicts,
		LeadershipAndRhetoric,
		TechnicalIncidents,
		CommunicationBreakdown,
		EmergingTechnology,
		EconomicFactors,
	}
}

// String returns the wire name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the category is one of the eight known variants.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// DefaultWeight returns the category's contribution weight. Weights
// across all eight categories sum to 1.0.
func (c Category) DefaultWeight() float64 {
	switch c {
	case RegionalConflicts:
		return 0.20
	case NuclearArsenalChanges, DoctrineAndPosture, TechnicalIncidents:
		return 0.15
	case LeadershipAndRhetoric, CommunicationBreakdown, EmergingTechnology:
		return 0.10
	case EconomicFactors:
		return 0.05
	default:
		return 0.0
	}
}

// ParseCategory resolves a wire name to a Category.
//
// Outputs:
//   - Category: The matching category.
//   - error: ErrInvalidFactor-wrapped if the name is unknown.
func ParseCategory(name string) (Category, error) {
	for c, n := range categoryNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown category %q", ErrInvalidFactor, name)
}

// MarshalJSON encodes the category as its wire name.
func (c Category) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON decodes the category from its wire name.
func (c *Category) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%w: category must be a JSON string", ErrInvalidFactor)
	}
	parsed, err := ParseCategory(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML encodes the category as its wire name.
func (c Category) MarshalYAML() (any, error) {
	return c.String(), nil
}

// UnmarshalYAML decodes the category from its wire name.
func (c *Category) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseCategory(value.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// -----------------------------------------------------------------------------
// Confidence Levels
// -----------------------------------------------------------------------------

// Confidence is the ordinal confidence attached to an observation.
type Confidence int

const (
	VeryLow Confidence = iota
	Low
	Moderate
	High
	VeryHigh
)

// confidenceNames maps confidence levels to their wire names.
var confidenceNames = map[Confidence]string{
	VeryLow:  "very_low",
	Low:      "low",
	Moderate: "moderate",
	High:     "high",
	VeryHigh: "very_high",
}

// Multiplier returns the fixed numeric weight for the confidence level.
// The mapping is global and immutable; it is not configurable per
// instance.
func (c Confidence) Multiplier() float64 {
	switch c {
	case VeryLow:
		return 0.40
	case Low:
		return 0.60
	case Moderate:
		return 0.775
	case High:
		return 0.90
	case VeryHigh:
		return 0.975
	default:
		return 0.0
	}
}

// String returns the wire name of the confidence level.
func (c Confidence) String() string {
	if name, ok := confidenceNames[c]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the confidence level is a known variant.
func (c Confidence) Valid() bool {
	_, ok := confidenceNames[c]
	return ok
}

// ConfidenceFromScore buckets a numeric score into an ordinal level.
func ConfidenceFromScore(score float64) Confidence {
	switch {
	case score < 0.3:
		return VeryLow
	case score < 0.5:
		return Low
	case score < 0.7:
		return Moderate
	case score < 0.9:
		return High
	default:
		return VeryHigh
	}
}

// ParseConfidence resolves a wire name to a Confidence.
func ParseConfidence(name string) (Confidence, error) {
	for c, n := range confidenceNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown confidence %q", ErrInvalidFactor, name)
}

// MarshalJSON encodes the confidence as its wire name.
func (c Confidence) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON decodes the confidence from its wire name.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%w: confidence must be a JSON string", ErrInvalidFactor)
	}
	parsed, err := ParseConfidence(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML encodes the confidence as its wire name.
func (c Confidence) MarshalYAML() (any, error) {
	return c.String(), nil
}

// UnmarshalYAML decodes the confidence from its wire name.
func (c *Confidence) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseConfidence(value.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// -----------------------------------------------------------------------------
// Trend Direction
// -----------------------------------------------------------------------------

// TrendDirection records how a factor compares to its historical
// baseline.
type TrendDirection int

const (
	Stable TrendDirection = iota
	Improving
	Deteriorating
	Uncertain
)

// String returns the wire name of the trend direction.
func (t TrendDirection) String() string {
	switch t {
	case Stable:
		return "stable"
	case Improving:
		return "improving"
	case Deteriorating:
		return "deteriorating"
	case Uncertain:
		return "uncertain"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Risk Factor
// -----------------------------------------------------------------------------

// validate is the package-level validator instance. Struct validation
// is stateless; a single shared instance is safe for concurrent use.
var validate = validator.New()

// RiskFactor is one normalized risk observation.
//
// The engine treats factors as immutable inputs: they are passed by
// value into the pipeline and never written back.
type RiskFactor struct {
	// Category is the risk dimension this factor contributes to.
	Category Category `json:"category" yaml:"category"`

	// Name identifies the tracked indicator (e.g. "ukraine_conflict").
	Name string `json:"name" yaml:"name" validate:"required"`

	// Value is the normalized severity in [0,1]. Out-of-range values
	// are a hard validation error, not clamped.
	Value float64 `json:"value" yaml:"value" validate:"gte=0,lte=1"`

	// Confidence is the ordinal confidence in the observation.
	Confidence Confidence `json:"confidence" yaml:"confidence"`

	// Weight optionally overrides the factor's share within its
	// category. Zero means "unspecified": the scorer assigns equal
	// shares.
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty" validate:"gte=0,lte=1"`

	// Sources lists the data sources supporting the observation.
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`

	// Timestamp is when the observation was made.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Trend compares the factor to its historical baseline.
	Trend TrendDirection `json:"trend,omitempty" yaml:"trend,omitempty"`
}

// New creates a factor with the current timestamp.
func New(category Category, name string, value float64, confidence Confidence) RiskFactor {
	return RiskFactor{
		Category:   category,
		Name:       name,
		Value:      value,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	}
}

// Validate checks the factor against the data contract.
//
// Outputs:
//   - error: Non-nil (wrapping ErrInvalidFactor) if the value is out of
//     range, the category or confidence is unknown, or the name is
//     empty.
func (f RiskFactor) Validate() error {
	if !f.Category.Valid() {
		return fmt.Errorf("%w: unknown category %d for %q", ErrInvalidFactor, int(f.Category), f.Name)
	}
	if !f.Confidence.Valid() {
		return fmt.Errorf("%w: unknown confidence %d for %q", ErrInvalidFactor, int(f.Confidence), f.Name)
	}
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidFactor, f.Name, err)
	}
	return nil
}

// WeightedValue returns the factor's value scaled by its category's
// default weight.
func (f RiskFactor) WeightedValue() float64 {
	return f.Value * f.Category.DefaultWeight()
}

// ValidateAll validates a factor slice, failing on the first violation.
func ValidateAll(factors []RiskFactor) error {
	for i := range factors {
		if err := factors[i].Validate(); err != nil {
			return fmt.Errorf("factor %d: %w", i, err)
		}
	}
	return nil
}
