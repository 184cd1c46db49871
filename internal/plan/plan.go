// Package plan turns a gap list into a phased remediation plan.
//
// Gaps are partitioned by workstream, grouped by severity and then by
// (signal, gap type) cluster. Each cluster becomes one Action whose scope is
// the set of affected subjects. Severity decides the phase: HIGH work lands
// in MVP, MED in Expanded and LOW in Hardening.
package plan

import (
	"fmt"
	"strings"

	"github.com/mdlh/mdq/internal/gap"
	"github.com/mdlh/mdq/internal/signal"
)

// PhaseName is one of the three fixed phases.
type PhaseName string

const (
	PhaseMVP       PhaseName = "MVP"
	PhaseExpanded  PhaseName = "Expanded"
	PhaseHardening PhaseName = "Hardening"
)

// Phases returns the phase names in execution order.
func Phases() []PhaseName {
	return []PhaseName{PhaseMVP, PhaseExpanded, PhaseHardening}
}

// PhaseFor maps a gap severity to the phase its remediation belongs in.
func PhaseFor(sev signal.Severity) PhaseName {
	switch sev {
	case signal.SeverityHigh:
		return PhaseMVP
	case signal.SeverityMed:
		return PhaseExpanded
	default:
		return PhaseHardening
	}
}

// EffortBucket is a coarse size estimate.
type EffortBucket string

const (
	EffortS EffortBucket = "S"
	EffortM EffortBucket = "M"
	EffortL EffortBucket = "L"
)

// EffortBucketFor sizes an action by the number of subjects it touches:
// fewer than 5 is S, 5 through 20 is M, more than 20 is L.
func EffortBucketFor(scopeSize int) EffortBucket {
	switch {
	case scopeSize < 5:
		return EffortS
	case scopeSize <= 20:
		return EffortM
	default:
		return EffortL
	}
}

// Action is one unit of remediation work.
type Action struct {
	ID          string            `json:"id" yaml:"id"`
	Title       string            `json:"title" yaml:"title"`
	Description string            `json:"description" yaml:"description"`
	Workstream  signal.Workstream `json:"workstream" yaml:"workstream"`
	Severity    signal.Severity   `json:"severity" yaml:"severity"`
	Signal      signal.Signal     `json:"signal" yaml:"signal"`
	GapType     gap.Type          `json:"gap_type" yaml:"gap_type"`

	// Scope lists affected subject ids, deduplicated, in first-seen order.
	Scope      []string `json:"scope" yaml:"scope"`
	AssetCount int      `json:"asset_count" yaml:"asset_count"`

	// ExpectedEffect lists the gap ids this action closes.
	ExpectedEffect []string     `json:"expected_effect" yaml:"expected_effect"`
	EffortBucket   EffortBucket `json:"effort_bucket" yaml:"effort_bucket"`
}

// WorkstreamActions groups a phase's actions for one workstream.
type WorkstreamActions struct {
	Workstream   signal.Workstream `json:"workstream" yaml:"workstream"`
	Actions      []Action          `json:"actions" yaml:"actions"`
	TotalActions int               `json:"total_actions" yaml:"total_actions"`
	TotalAssets  int               `json:"total_assets" yaml:"total_assets"`
}

// PhasePlan is one of the three phases.
type PhasePlan struct {
	Name         PhaseName           `json:"name" yaml:"name"`
	Order        int                 `json:"order" yaml:"order"`
	Workstreams  []WorkstreamActions `json:"workstreams" yaml:"workstreams"`
	TotalActions int                 `json:"total_actions" yaml:"total_actions"`
	TotalAssets  int                 `json:"total_assets" yaml:"total_assets"`
}

// RemediationPlan is the full phased plan.
type RemediationPlan struct {
	ID           string      `json:"id" yaml:"id"`
	CapabilityID string      `json:"capability_id" yaml:"capability_id"`
	ScopeID      string      `json:"scope_id" yaml:"scope_id"`
	Phases       []PhasePlan `json:"phases" yaml:"phases"`
	TotalActions int         `json:"total_actions" yaml:"total_actions"`
	TotalGaps    int         `json:"total_gaps" yaml:"total_gaps"`

	// TotalAssets sums AssetCount over every action, so a subject with gaps
	// in two workstreams is counted twice.
	TotalAssets int `json:"total_assets" yaml:"total_assets"`

	// DistinctSubjects counts each affected subject once.
	DistinctSubjects int `json:"distinct_subjects" yaml:"distinct_subjects"`

	// EffortSummary counts actions per effort bucket. All buckets are present.
	EffortSummary map[EffortBucket]int `json:"effort_summary" yaml:"effort_summary"`
}

// Actions returns every action in phase, then workstream order.
func (p *RemediationPlan) Actions() []Action {
	var out []Action
	for _, ph := range p.Phases {
		for _, ws := range ph.Workstreams {
			out = append(out, ws.Actions...)
		}
	}
	return out
}

// Phase returns the phase with the given name.
func (p *RemediationPlan) Phase(name PhaseName) (PhasePlan, bool) {
	for _, ph := range p.Phases {
		if ph.Name == name {
			return ph, true
		}
	}
	return PhasePlan{}, false
}

type clusterKey struct {
	severity signal.Severity
	signal   signal.Signal
	gapType  gap.Type
}

// Generate builds the plan. It never drops a gap: every gap id appears in
// exactly one action's ExpectedEffect.
func Generate(capabilityID, scopeID string, gaps []gap.Gap) *RemediationPlan {
	plan := &RemediationPlan{
		ID:            fmt.Sprintf("plan-%s-%s", capabilityID, scopeID),
		CapabilityID:  capabilityID,
		ScopeID:       scopeID,
		TotalGaps:     len(gaps),
		EffortSummary: map[EffortBucket]int{EffortS: 0, EffortM: 0, EffortL: 0},
	}

	// Partition by workstream, then by cluster, preserving first-seen order.
	byWorkstream := make(map[signal.Workstream][]*Action)
	clusters := make(map[signal.Workstream]map[clusterKey]*Action)
	seen := make(map[*Action]map[string]bool)

	for _, g := range gaps {
		ws := g.Workstream
		if clusters[ws] == nil {
			clusters[ws] = make(map[clusterKey]*Action)
		}
		key := clusterKey{severity: g.Severity, signal: g.SignalType, gapType: g.GapType}
		action, ok := clusters[ws][key]
		if !ok {
			action = newAction(ws, key)
			clusters[ws][key] = action
			byWorkstream[ws] = append(byWorkstream[ws], action)
			seen[action] = make(map[string]bool)
		}
		if !seen[action][g.SubjectID] {
			seen[action][g.SubjectID] = true
			action.Scope = append(action.Scope, g.SubjectID)
		}
		action.ExpectedEffect = append(action.ExpectedEffect, g.ID)
	}

	subjects := make(map[string]bool)
	for _, g := range gaps {
		subjects[g.SubjectID] = true
	}
	plan.DistinctSubjects = len(subjects)

	for order, name := range Phases() {
		phase := PhasePlan{
			Name:        name,
			Order:       order + 1,
			Workstreams: make([]WorkstreamActions, 0),
		}
		for _, ws := range signal.Workstreams() {
			var actions []Action
			for _, a := range byWorkstream[ws] {
				if PhaseFor(a.Severity) != name {
					continue
				}
				a.AssetCount = len(a.Scope)
				a.EffortBucket = EffortBucketFor(len(a.Scope))
				a.Description = describe(a)
				actions = append(actions, *a)
			}
			if len(actions) == 0 {
				continue
			}

			group := WorkstreamActions{
				Workstream:   ws,
				Actions:      actions,
				TotalActions: len(actions),
			}
			for _, a := range actions {
				group.TotalAssets += a.AssetCount
				plan.EffortSummary[a.EffortBucket]++
			}
			phase.Workstreams = append(phase.Workstreams, group)
			phase.TotalActions += group.TotalActions
			phase.TotalAssets += group.TotalAssets
		}
		plan.Phases = append(plan.Phases, phase)
		plan.TotalActions += phase.TotalActions
		plan.TotalAssets += phase.TotalAssets
	}

	return plan
}

func newAction(ws signal.Workstream, key clusterKey) *Action {
	id := strings.ToLower(fmt.Sprintf("act-%s-%s-%s-%s", ws, key.severity, key.signal, key.gapType))
	return &Action{
		ID:         id,
		Title:      title(key.signal, key.gapType),
		Workstream: ws,
		Severity:   key.severity,
		Signal:     key.signal,
		GapType:    key.gapType,
	}
}

var missingTitles = map[signal.Signal]string{
	signal.Ownership:   "Assign owners",
	signal.Lineage:     "Capture lineage",
	signal.Semantics:   "Write descriptions and link glossary terms",
	signal.Sensitivity: "Classify sensitive data",
	signal.Access:      "Attach access policies",
	signal.Usage:       "Enable usage tracking",
	signal.Freshness:   "Monitor freshness",
}

func title(s signal.Signal, gapType gap.Type) string {
	if gapType == gap.TypeMissing {
		if t, ok := missingTitles[s]; ok {
			return t
		}
	}
	return "Collect " + strings.ToLower(signal.Describe(s).DisplayName) + " evidence"
}

func describe(a *Action) string {
	noun := "asset"
	if len(a.Scope) != 1 {
		noun = "assets"
	}
	switch a.GapType {
	case gap.TypeMissing:
		return fmt.Sprintf("%s is missing on %d %s; closes %d gap(s)",
			signal.Describe(a.Signal).DisplayName, len(a.Scope), noun, len(a.ExpectedEffect))
	default:
		return fmt.Sprintf("%s cannot be determined on %d %s; fetch the evidence attributes to resolve %d gap(s)",
			signal.Describe(a.Signal).DisplayName, len(a.Scope), noun, len(a.ExpectedEffect))
	}
}
