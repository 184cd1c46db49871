// Package capability declares which governance signals each target use case
// requires, treats as critical, or merely benefits from.
package capability

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mdlh/mdq/internal/signal"
)

// CatalogVersion identifies the built-in requirement set.
const CatalogVersion = "2025.1"

// ErrInvalidRequirements marks a malformed requirements object. It is a
// programming-contract violation, not a data problem.
var ErrInvalidRequirements = errors.New("invalid capability requirements")

// Requirements is the signal profile a capability needs.
type Requirements struct {
	CapabilityID    string          `json:"capability_id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	Description     string          `json:"description,omitempty" yaml:"description,omitempty"`
	RequiredSignals []signal.Signal `json:"required_signals" yaml:"required"`
	CriticalSignals []signal.Signal `json:"critical_signals" yaml:"critical"`
	OptionalSignals []signal.Signal `json:"optional_signals" yaml:"optional"`
}

// Validate checks the structural invariants: a non-empty id, at least one
// required signal, no duplicates, critical ⊆ required and
// required ∩ optional = ∅.
func (r Requirements) Validate() error {
	if strings.TrimSpace(r.CapabilityID) == "" {
		return fmt.Errorf("%w: capability id is empty", ErrInvalidRequirements)
	}
	if len(r.RequiredSignals) == 0 {
		return fmt.Errorf("%w: %s declares no required signals", ErrInvalidRequirements, r.CapabilityID)
	}

	required := make(map[signal.Signal]bool, len(r.RequiredSignals))
	for _, s := range r.RequiredSignals {
		if !s.Valid() {
			return fmt.Errorf("%w: %s has invalid required signal %d", ErrInvalidRequirements, r.CapabilityID, s)
		}
		if required[s] {
			return fmt.Errorf("%w: %s lists %s as required twice", ErrInvalidRequirements, r.CapabilityID, s)
		}
		required[s] = true
	}

	seen := make(map[signal.Signal]bool, len(r.CriticalSignals))
	for _, s := range r.CriticalSignals {
		if !required[s] {
			return fmt.Errorf("%w: %s marks %s critical but not required", ErrInvalidRequirements, r.CapabilityID, s)
		}
		if seen[s] {
			return fmt.Errorf("%w: %s lists %s as critical twice", ErrInvalidRequirements, r.CapabilityID, s)
		}
		seen[s] = true
	}

	seen = make(map[signal.Signal]bool, len(r.OptionalSignals))
	for _, s := range r.OptionalSignals {
		if !s.Valid() {
			return fmt.Errorf("%w: %s has invalid optional signal %d", ErrInvalidRequirements, r.CapabilityID, s)
		}
		if required[s] {
			return fmt.Errorf("%w: %s lists %s as both required and optional", ErrInvalidRequirements, r.CapabilityID, s)
		}
		if seen[s] {
			return fmt.Errorf("%w: %s lists %s as optional twice", ErrInvalidRequirements, r.CapabilityID, s)
		}
		seen[s] = true
	}

	return nil
}

// IsRequired reports whether s is required.
func (r Requirements) IsRequired(s signal.Signal) bool {
	return contains(r.RequiredSignals, s)
}

// IsCritical reports whether s is critical.
func (r Requirements) IsCritical(s signal.Signal) bool {
	return contains(r.CriticalSignals, s)
}

func contains(list []signal.Signal, s signal.Signal) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

func (r Requirements) clone() Requirements {
	r.RequiredSignals = append([]signal.Signal(nil), r.RequiredSignals...)
	r.CriticalSignals = append([]signal.Signal(nil), r.CriticalSignals...)
	r.OptionalSignals = append([]signal.Signal(nil), r.OptionalSignals...)
	return r
}

// Catalog resolves capability ids to requirements.
type Catalog interface {
	Get(id string) (Requirements, bool)
	List() []Requirements
	Version() string
}

type staticCatalog struct {
	version string
	order   []string
	byID    map[string]Requirements
}

// NewCatalog returns the built-in catalog with extra capabilities layered on
// top. An extra entry with a built-in id replaces it. Every entry is validated.
func NewCatalog(extra ...Requirements) (Catalog, error) {
	c := &staticCatalog{
		version: CatalogVersion,
		byID:    make(map[string]Requirements),
	}
	for _, r := range builtinRequirements() {
		c.add(r)
	}
	for _, r := range extra {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		c.add(r.clone())
	}
	if len(extra) > 0 {
		c.version = CatalogVersion + "+custom"
	}
	return c, nil
}

func (c *staticCatalog) add(r Requirements) {
	if _, exists := c.byID[r.CapabilityID]; !exists {
		c.order = append(c.order, r.CapabilityID)
	}
	c.byID[r.CapabilityID] = r
}

// Get returns a copy of the requirements for id.
func (c *staticCatalog) Get(id string) (Requirements, bool) {
	r, ok := c.byID[id]
	if !ok {
		return Requirements{}, false
	}
	return r.clone(), true
}

// List returns copies of every entry in declaration order.
func (c *staticCatalog) List() []Requirements {
	out := make([]Requirements, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].clone())
	}
	return out
}

// Version returns the catalog version string.
func (c *staticCatalog) Version() string {
	return c.version
}

var builtin = mustBuiltin()

func mustBuiltin() Catalog {
	c, err := NewCatalog()
	if err != nil {
		panic(fmt.Sprintf("built-in capability catalog is invalid: %v", err))
	}
	return c
}

// Builtin returns the process-wide built-in catalog.
func Builtin() Catalog {
	return builtin
}

// Lookup resolves id against the built-in catalog.
func Lookup(id string) (Requirements, bool) {
	return builtin.Get(id)
}

// IDs returns the built-in capability ids, sorted.
func IDs() []string {
	list := builtin.List()
	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.CapabilityID)
	}
	sort.Strings(ids)
	return ids
}

func builtinRequirements() []Requirements {
	return []Requirements{
		{
			CapabilityID:    "governance_fundamentals",
			Name:            "Governance Fundamentals",
			Description:     "Every asset has an accountable owner and a business meaning",
			RequiredSignals: []signal.Signal{signal.Ownership, signal.Semantics},
			CriticalSignals: []signal.Signal{signal.Ownership, signal.Semantics},
		},
		{
			CapabilityID:    "rag",
			Name:            "RAG",
			Description:     "Retrieval-augmented generation over documented, traceable, current data",
			RequiredSignals: []signal.Signal{signal.Semantics, signal.Ownership, signal.Lineage, signal.Freshness},
			CriticalSignals: []signal.Signal{signal.Semantics},
			OptionalSignals: []signal.Signal{signal.Usage, signal.Sensitivity},
		},
		{
			CapabilityID:    "ai_agents",
			Name:            "AI Agents",
			Description:     "Autonomous agents acting on data need classification and access control",
			RequiredSignals: []signal.Signal{signal.Ownership, signal.Semantics, signal.Lineage, signal.Sensitivity, signal.Access},
			CriticalSignals: []signal.Signal{signal.Sensitivity, signal.Access},
			OptionalSignals: []signal.Signal{signal.Usage, signal.Freshness},
		},
		{
			CapabilityID:    "text_to_sql",
			Name:            "Text to SQL",
			Description:     "Natural-language querying needs meaning, joins and popularity hints",
			RequiredSignals: []signal.Signal{signal.Semantics, signal.Lineage, signal.Usage},
			CriticalSignals: []signal.Signal{signal.Semantics},
			OptionalSignals: []signal.Signal{signal.Ownership, signal.Freshness},
		},
		{
			CapabilityID:    "data_products",
			Name:            "Data Products",
			Description:     "Publishable data products with owners, contracts and observed usage",
			RequiredSignals: []signal.Signal{signal.Ownership, signal.Semantics, signal.Lineage, signal.Usage, signal.Freshness},
			CriticalSignals: []signal.Signal{signal.Ownership},
			OptionalSignals: []signal.Signal{signal.Sensitivity, signal.Access},
		},
		{
			CapabilityID:    "compliance",
			Name:            "Compliance",
			Description:     "Regulatory reporting needs classified, access-controlled, traceable data",
			RequiredSignals: []signal.Signal{signal.Sensitivity, signal.Access, signal.Ownership, signal.Lineage},
			CriticalSignals: []signal.Signal{signal.Sensitivity, signal.Access},
			OptionalSignals: []signal.Signal{signal.Semantics},
		},
	}
}
