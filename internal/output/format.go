package output

import (
	"fmt"
	"strings"
)

// Format represents the output format type.
type Format string

const (
	// FormatYAML is the default self-documenting YAML output
	FormatYAML Format = "yaml"

	// FormatJSON is the JSON output format
	FormatJSON Format = "json"

	// FormatTable renders terminal tables
	FormatTable Format = "table"
)

// ParseFormat parses a format string into a Format value.
// Accepts: "yaml", "json", "table" (case-insensitive)
// Returns an error for invalid format values.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("invalid format: %q (expected yaml, json, or table)", s)
	}
}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// Density represents the level of detail in output.
type Density string

const (
	// DensitySparse shows the run summary only
	DensitySparse Density = "sparse"

	// DensityMedium adds gaps, scores and the plan (default)
	DensityMedium Density = "medium"

	// DensityDense adds signal profiles and the raw assessment
	DensityDense Density = "dense"
)

// ParseDensity parses a density string into a Density value.
// Accepts: "sparse", "medium", "dense" (case-insensitive)
// Returns an error for invalid density values.
func ParseDensity(s string) (Density, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sparse":
		return DensitySparse, nil
	case "medium":
		return DensityMedium, nil
	case "dense":
		return DensityDense, nil
	default:
		return "", fmt.Errorf("invalid density: %q (expected sparse, medium, or dense)", s)
	}
}

// String returns the string representation of the density.
func (d Density) String() string {
	return string(d)
}

// IncludesDetail returns true if this density level includes gaps, scores
// and the plan.
func (d Density) IncludesDetail() bool {
	return d == DensityMedium || d == DensityDense
}

// IncludesSignals returns true if this density level includes per-asset
// signal profiles.
func (d Density) IncludesSignals() bool {
	return d == DensityDense
}

// IncludesAssessment returns true if this density level includes the raw
// readiness assessment.
func (d Density) IncludesAssessment() bool {
	return d == DensityDense
}
