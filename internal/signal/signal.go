// Package signal defines the seven canonical governance signals, their fixed
// severity and workstream classes, and the tri-state values an asset can
// carry for each of them.
package signal

import (
	"fmt"
	"strings"

	"github.com/mdlh/mdq/internal/evidence"
)

// Signal is one of the seven canonical governance signals.
type Signal uint8

const (
	Ownership Signal = iota
	Lineage
	Semantics
	Sensitivity
	Access
	Usage
	Freshness

	numSignals = 7
)

var signalNames = [numSignals]string{
	Ownership:   "OWNERSHIP",
	Lineage:     "LINEAGE",
	Semantics:   "SEMANTICS",
	Sensitivity: "SENSITIVITY",
	Access:      "ACCESS",
	Usage:       "USAGE",
	Freshness:   "FRESHNESS",
}

// All returns every signal in canonical order.
func All() []Signal {
	return []Signal{Ownership, Lineage, Semantics, Sensitivity, Access, Usage, Freshness}
}

// String returns the canonical upper-case name.
func (s Signal) String() string {
	if s.Valid() {
		return signalNames[s]
	}
	return fmt.Sprintf("Signal(%d)", uint8(s))
}

// Valid reports whether s is one of the seven canonical signals.
func (s Signal) Valid() bool {
	return s < numSignals
}

// Parse converts a name such as "ownership" or "OWNERSHIP" to a Signal.
func Parse(name string) (Signal, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for i, candidate := range signalNames {
		if candidate == n {
			return Signal(i), nil
		}
	}
	return 0, fmt.Errorf("unknown signal %q (expected one of %s)", name, strings.Join(signalNames[:], ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (s Signal) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid signal %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signal) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Severity is the fixed importance class of a signal.
type Severity string

const (
	SeverityHigh Severity = "HIGH"
	SeverityMed  Severity = "MED"
	SeverityLow  Severity = "LOW"
)

// Severities returns the severities from most to least severe.
func Severities() []Severity {
	return []Severity{SeverityHigh, SeverityMed, SeverityLow}
}

// ParseSeverity converts "high", "MED" or "medium" to a Severity.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "HIGH":
		return SeverityHigh, nil
	case "MED", "MEDIUM":
		return SeverityMed, nil
	case "LOW":
		return SeverityLow, nil
	}
	return "", fmt.Errorf("unknown severity %q", name)
}

// Rank orders severities: HIGH is 0, LOW is 2.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMed:
		return 1
	case SeverityLow:
		return 2
	}
	return 3
}

// Workstream groups related signals into one line of remediation work.
type Workstream string

const (
	WorkstreamOwnership         Workstream = "OWNERSHIP"
	WorkstreamSemantics         Workstream = "SEMANTICS"
	WorkstreamLineage           Workstream = "LINEAGE"
	WorkstreamSensitivityAccess Workstream = "SENSITIVITY_ACCESS"
	WorkstreamQualityFreshness  Workstream = "QUALITY_FRESHNESS"
)

// Workstreams returns the five workstreams in their fixed order.
func Workstreams() []Workstream {
	return []Workstream{
		WorkstreamOwnership,
		WorkstreamSemantics,
		WorkstreamLineage,
		WorkstreamSensitivityAccess,
		WorkstreamQualityFreshness,
	}
}

// ParseWorkstream converts a case-insensitive workstream name.
func ParseWorkstream(name string) (Workstream, error) {
	n := Workstream(strings.ToUpper(strings.TrimSpace(name)))
	for _, ws := range Workstreams() {
		if ws == n {
			return ws, nil
		}
	}
	return "", fmt.Errorf("unknown workstream %q", name)
}

// Definition is the static catalog entry for a signal.
type Definition struct {
	Signal      Signal               `json:"signal" yaml:"signal"`
	DisplayName string               `json:"display_name" yaml:"display_name"`
	Description string               `json:"description" yaml:"description"`
	Severity    Severity             `json:"severity" yaml:"severity"`
	Workstream  Workstream           `json:"workstream" yaml:"workstream"`
	Attributes  []evidence.Attribute `json:"attributes" yaml:"attributes"`
}

// definitions is built once and only read through the accessors below.
var definitions = [numSignals]Definition{
	Ownership: {
		Signal:      Ownership,
		DisplayName: "Ownership",
		Description: "Accountable owner users or groups are assigned",
		Severity:    SeverityHigh,
		Workstream:  WorkstreamOwnership,
		Attributes:  []evidence.Attribute{evidence.AttrOwnerUsers, evidence.AttrOwnerGroups},
	},
	Lineage: {
		Signal:      Lineage,
		DisplayName: "Lineage",
		Description: "Upstream or downstream lineage is captured",
		Severity:    SeverityMed,
		Workstream:  WorkstreamLineage,
		Attributes:  []evidence.Attribute{evidence.AttrHasLineage, evidence.AttrUpstreamCount, evidence.AttrDownstreamCount},
	},
	Semantics: {
		Signal:      Semantics,
		DisplayName: "Semantics",
		Description: "Business description or glossary terms explain the asset",
		Severity:    SeverityHigh,
		Workstream:  WorkstreamSemantics,
		Attributes:  []evidence.Attribute{evidence.AttrDescription, evidence.AttrUserDescription, evidence.AttrTermGUIDs},
	},
	Sensitivity: {
		Signal:      Sensitivity,
		DisplayName: "Sensitivity",
		Description: "Classifications or tags mark the sensitivity of the data",
		Severity:    SeverityMed,
		Workstream:  WorkstreamSensitivityAccess,
		Attributes:  []evidence.Attribute{evidence.AttrClassifications, evidence.AttrTags},
	},
	Access: {
		Signal:      Access,
		DisplayName: "Access",
		Description: "Access policies govern who can read the asset",
		Severity:    SeverityMed,
		Workstream:  WorkstreamSensitivityAccess,
		Attributes:  []evidence.Attribute{evidence.AttrPolicyCount},
	},
	Usage: {
		Signal:      Usage,
		DisplayName: "Usage",
		Description: "Query or popularity statistics show the asset is used",
		Severity:    SeverityLow,
		Workstream:  WorkstreamQualityFreshness,
		Attributes:  []evidence.Attribute{evidence.AttrPopularity, evidence.AttrQueryCount, evidence.AttrQueryUserCount},
	},
	Freshness: {
		Signal:      Freshness,
		DisplayName: "Freshness",
		Description: "Source update timestamps or data quality monitors track freshness",
		Severity:    SeverityLow,
		Workstream:  WorkstreamQualityFreshness,
		Attributes:  []evidence.Attribute{evidence.AttrSourceUpdatedAt, evidence.AttrMCMonitored, evidence.AttrDQSodaStatus},
	},
}

// Describe returns the catalog definition for s. The attribute slice is a copy.
func Describe(s Signal) Definition {
	d := definitions[s]
	d.Attributes = append([]evidence.Attribute(nil), d.Attributes...)
	return d
}

// Catalog returns every definition in canonical order.
func Catalog() []Definition {
	out := make([]Definition, 0, numSignals)
	for _, s := range All() {
		out = append(out, Describe(s))
	}
	return out
}

// SeverityOf returns the fixed severity class of s.
func SeverityOf(s Signal) Severity {
	return definitions[s].Severity
}

// WorkstreamOf returns the fixed workstream of s.
func WorkstreamOf(s Signal) Workstream {
	return definitions[s].Workstream
}

// EvidenceAttributes returns the raw attributes consulted for s.
func EvidenceAttributes(s Signal) []evidence.Attribute {
	return append([]evidence.Attribute(nil), definitions[s].Attributes...)
}
