// Package gap compares asset signal profiles against a capability's
// requirements and reports every required signal that is missing or cannot
// be determined.
package gap

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mdlh/mdq/internal/capability"
	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/signal"
)

// Type classifies a gap.
type Type string

const (
	// TypeMissing is a required signal the evidence shows is absent.
	TypeMissing Type = "MISSING"
	// TypeUnknown is a required signal the evidence cannot decide.
	TypeUnknown Type = "UNKNOWN"
	// TypeConflict is reserved for contradicting evidence sources.
	TypeConflict Type = "CONFLICT"
)

// SubjectType is the kind of thing a gap or score is about.
type SubjectType string

const (
	SubjectDomain       SubjectType = "DOMAIN"
	SubjectAsset        SubjectType = "ASSET"
	SubjectModelElement SubjectType = "MODEL_ELEMENT"
)

// Gap is one required signal that is not satisfied on one subject.
type Gap struct {
	// ID is derived from (GapType, SignalType, SubjectID) so repeated runs
	// over unchanged input produce identical identifiers.
	ID string `json:"id" yaml:"id"`

	GapType     Type          `json:"gap_type" yaml:"gap_type"`
	SignalType  signal.Signal `json:"signal_type" yaml:"signal_type"`
	SubjectType SubjectType   `json:"subject_type" yaml:"subject_type"`
	SubjectID   string        `json:"subject_id" yaml:"subject_id"`
	SubjectName string        `json:"subject_name,omitempty" yaml:"subject_name,omitempty"`

	// Severity is the signal's fixed class, forced to HIGH when the signal
	// is critical for the capability.
	Severity   signal.Severity   `json:"severity" yaml:"severity"`
	Workstream signal.Workstream `json:"workstream" yaml:"workstream"`

	Explanation  string   `json:"explanation" yaml:"explanation"`
	EvidenceRefs []string `json:"evidence_refs" yaml:"evidence_refs"`
}

// idNamespace scopes gap UUIDs so they never collide with other v5 ids.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:mdq:gap"))

// ID returns the deterministic identifier for a gap.
func ID(gapType Type, s signal.Signal, subjectID string) string {
	name := fmt.Sprintf("%s|%s|%s", gapType, s, subjectID)
	return "gap-" + uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// Result is the output of Compute.
type Result struct {
	Gaps    []Gap   `json:"gaps" yaml:"gaps"`
	Summary Summary `json:"summary" yaml:"summary"`
}

// Compute emits gaps for every required signal that is Absent (MISSING) or
// Unknown (UNKNOWN) on every asset. Present signals and signals that are not
// required never produce gaps. An asset with no entry in signals is treated
// as entirely Unknown.
//
// The only error is a malformed requirements object.
func Compute(assets []evidence.AssetRecord, signals map[string]signal.Profile, req capability.Requirements) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	gaps := make([]Gap, 0)
	for i := range assets {
		asset := &assets[i]
		profile, ok := signals[asset.ID()]
		if !ok {
			profile = signal.UnknownProfile()
		}

		for _, s := range req.RequiredSignals {
			var gapType Type
			switch profile.Get(s) {
			case signal.Present:
				continue
			case signal.Absent:
				gapType = TypeMissing
			default:
				gapType = TypeUnknown
			}
			gaps = append(gaps, newAssetGap(asset, s, gapType, req))
		}
	}

	return &Result{
		Gaps:    gaps,
		Summary: Summarize(gaps),
	}, nil
}

func newAssetGap(asset *evidence.AssetRecord, s signal.Signal, gapType Type, req capability.Requirements) Gap {
	severity := signal.SeverityOf(s)
	critical := req.IsCritical(s)
	if critical {
		severity = signal.SeverityHigh
	}

	return Gap{
		ID:           ID(gapType, s, asset.ID()),
		GapType:      gapType,
		SignalType:   s,
		SubjectType:  SubjectAsset,
		SubjectID:    asset.ID(),
		SubjectName:  asset.DisplayName(),
		Severity:     severity,
		Workstream:   signal.WorkstreamOf(s),
		Explanation:  explain(asset, s, gapType, req, critical),
		EvidenceRefs: evidenceRefs(asset, s, gapType),
	}
}

func explain(asset *evidence.AssetRecord, s signal.Signal, gapType Type, req capability.Requirements, critical bool) string {
	def := signal.Describe(s)
	attrs := make([]string, 0, len(def.Attributes))
	for _, a := range def.Attributes {
		attrs = append(attrs, string(a))
	}

	var b strings.Builder
	switch gapType {
	case TypeMissing:
		fmt.Fprintf(&b, "%s is required by %s but %s has none (checked %s)",
			def.DisplayName, req.Name, asset.DisplayName(), strings.Join(attrs, ", "))
	default:
		fmt.Fprintf(&b, "%s is required by %s but cannot be determined for %s: none of %s was available",
			def.DisplayName, req.Name, asset.DisplayName(), strings.Join(attrs, ", "))
	}
	if critical {
		b.WriteString("; critical for this capability")
	}
	return b.String()
}

// evidenceRefs points at the attributes that decided the gap: the fetched
// ones for MISSING, the unavailable ones for UNKNOWN.
func evidenceRefs(asset *evidence.AssetRecord, s signal.Signal, gapType Type) []string {
	refs := make([]string, 0, 3)
	for _, attr := range signal.EvidenceAttributes(s) {
		fetched := asset.Fetched(attr)
		if (gapType == TypeMissing) == fetched {
			refs = append(refs, fmt.Sprintf("asset:%s#%s", asset.ID(), attr))
		}
	}
	return refs
}
