// Package score rates every subject by business impact and metadata quality
// and places it in one of six quadrants.
package score

import (
	"errors"
	"fmt"
)

// Quadrant classifies a subject by impact (first letter) and quality
// (second letter). U means quality could not be determined.
type Quadrant string

const (
	QuadrantHH Quadrant = "HH"
	QuadrantHL Quadrant = "HL"
	QuadrantLH Quadrant = "LH"
	QuadrantLL Quadrant = "LL"
	QuadrantHU Quadrant = "HU"
	QuadrantLU Quadrant = "LU"
)

// Quadrants returns all six quadrants in display order.
func Quadrants() []Quadrant {
	return []Quadrant{QuadrantHH, QuadrantHL, QuadrantLH, QuadrantLL, QuadrantHU, QuadrantLU}
}

// HighImpact reports whether q is one of the high-impact quadrants.
func (q Quadrant) HighImpact() bool {
	return q == QuadrantHH || q == QuadrantHL || q == QuadrantHU
}

// Label returns a short human description.
func (q Quadrant) Label() string {
	switch q {
	case QuadrantHH:
		return "high impact, high quality"
	case QuadrantHL:
		return "high impact, low quality"
	case QuadrantLH:
		return "low impact, high quality"
	case QuadrantLL:
		return "low impact, low quality"
	case QuadrantHU:
		return "high impact, quality unknown"
	case QuadrantLU:
		return "low impact, quality unknown"
	}
	return string(q)
}

// Default policy values.
const (
	DefaultImpactThreshold  = 0.5
	DefaultQualityThreshold = 0.7
	DefaultUnknownThreshold = 0.35
	DefaultImpactScore      = 0.25
)

// ErrInvalidOptions is returned by Options.Validate.
var ErrInvalidOptions = errors.New("invalid score options")

// Options holds the scoring policy parameters.
type Options struct {
	// ImpactThreshold is the impact at or above which a subject is high impact.
	ImpactThreshold float64 `json:"impact_threshold" yaml:"impact_threshold"`

	// QualityThreshold is the quality at or above which a subject is high quality.
	QualityThreshold float64 `json:"quality_threshold" yaml:"quality_threshold"`

	// UnknownThreshold is the share of UNKNOWN required signals above which
	// quality is not scored.
	UnknownThreshold float64 `json:"unknown_threshold" yaml:"unknown_threshold"`

	// DefaultImpact is used for subjects with no usage evidence.
	DefaultImpact float64 `json:"default_impact" yaml:"default_impact"`
}

// DefaultOptions returns the standard thresholds 0.5 / 0.7 / 0.35 / 0.25.
func DefaultOptions() Options {
	return Options{
		ImpactThreshold:  DefaultImpactThreshold,
		QualityThreshold: DefaultQualityThreshold,
		UnknownThreshold: DefaultUnknownThreshold,
		DefaultImpact:    DefaultImpactScore,
	}
}

// Validate checks every parameter lies in [0,1].
func (o Options) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"impact_threshold", o.ImpactThreshold},
		{"quality_threshold", o.QualityThreshold},
		{"unknown_threshold", o.UnknownThreshold},
		{"default_impact", o.DefaultImpact},
	}
	for _, f := range fields {
		if f.value < 0 || f.value > 1 {
			return fmt.Errorf("%w: %s must be between 0 and 1, got %v", ErrInvalidOptions, f.name, f.value)
		}
	}
	return nil
}

// ComputeQuadrant maps (impact, quality) to a quadrant. A nil quality always
// yields HU or LU. The function is total: every input maps to exactly one
// quadrant.
func ComputeQuadrant(impact float64, quality *float64, impactThreshold, qualityThreshold float64) Quadrant {
	highImpact := impact >= impactThreshold
	if quality == nil {
		if highImpact {
			return QuadrantHU
		}
		return QuadrantLU
	}

	highQuality := *quality >= qualityThreshold
	switch {
	case highImpact && highQuality:
		return QuadrantHH
	case highImpact:
		return QuadrantHL
	case highQuality:
		return QuadrantLH
	default:
		return QuadrantLL
	}
}
