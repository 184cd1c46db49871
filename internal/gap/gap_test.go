package gap

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mdlh/mdq/internal/capability"
	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/signal"
)

func governance(t *testing.T) capability.Requirements {
	t.Helper()
	req, ok := capability.Lookup("governance_fundamentals")
	if !ok {
		t.Fatal("governance_fundamentals not in catalog")
	}
	return req
}

func TestComputeGovernanceFundamentals(t *testing.T) {
	assets := []evidence.AssetRecord{{
		GUID: "asset-1",
		Name: "orders",
		Attributes: map[evidence.Attribute]interface{}{
			evidence.AttrOwnerUsers:  []string{},
			evidence.AttrOwnerGroups: []string{},
			evidence.AttrDescription: "Customer orders",
		},
	}}
	signals := signal.MapAll(assets)

	result, err := Compute(assets, signals, governance(t))
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	if len(result.Gaps) != 1 {
		t.Fatalf("len(Gaps) = %d, want 1", len(result.Gaps))
	}
	g := result.Gaps[0]
	if g.GapType != TypeMissing {
		t.Errorf("GapType = %v, want %v", g.GapType, TypeMissing)
	}
	if g.SignalType != signal.Ownership {
		t.Errorf("SignalType = %v, want %v", g.SignalType, signal.Ownership)
	}
	if g.Severity != signal.SeverityHigh {
		t.Errorf("Severity = %v, want %v", g.Severity, signal.SeverityHigh)
	}
	if g.Workstream != signal.WorkstreamOwnership {
		t.Errorf("Workstream = %v, want %v", g.Workstream, signal.WorkstreamOwnership)
	}
	if g.SubjectType != SubjectAsset || g.SubjectID != "asset-1" {
		t.Errorf("subject = %v/%v, want ASSET/asset-1", g.SubjectType, g.SubjectID)
	}
	if g.SubjectName != "orders" {
		t.Errorf("SubjectName = %q, want %q", g.SubjectName, "orders")
	}
	if !strings.Contains(g.Explanation, "critical") {
		t.Errorf("Explanation = %q, want critical mention", g.Explanation)
	}
	wantRefs := []string{"asset:asset-1#owner_users", "asset:asset-1#owner_groups"}
	if diff := cmp.Diff(wantRefs, g.EvidenceRefs); diff != "" {
		t.Errorf("EvidenceRefs mismatch (-want +got):\n%s", diff)
	}
	if !result.HasCritical() {
		t.Error("HasCritical() = false, want true")
	}
}

func TestComputeCriticalEscalation(t *testing.T) {
	req, ok := capability.Lookup("ai_agents")
	if !ok {
		t.Fatal("ai_agents not in catalog")
	}
	// SENSITIVITY and ACCESS default to MED but are critical for ai_agents.
	for _, s := range []signal.Signal{signal.Sensitivity, signal.Access} {
		if signal.SeverityOf(s) != signal.SeverityMed {
			t.Fatalf("SeverityOf(%v) = %v, want MED", s, signal.SeverityOf(s))
		}
		if !req.IsCritical(s) {
			t.Fatalf("%v should be critical for ai_agents", s)
		}
	}

	assets := []evidence.AssetRecord{{
		GUID: "asset-1",
		Attributes: map[evidence.Attribute]interface{}{
			evidence.AttrOwnerUsers:      []string{"alice"},
			evidence.AttrDescription:     "Orders fact table",
			evidence.AttrHasLineage:      true,
			evidence.AttrClassifications: []string{},
			evidence.AttrTags:            []string{},
			// policy_count not fetched: ACCESS is UNKNOWN
		},
	}}
	result, err := Compute(assets, signal.MapAll(assets), req)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	type got struct {
		Signal   signal.Signal
		Type     Type
		Severity signal.Severity
	}
	var gaps []got
	for _, g := range result.Gaps {
		gaps = append(gaps, got{g.SignalType, g.GapType, g.Severity})
		if g.Workstream != signal.WorkstreamSensitivityAccess {
			t.Errorf("%v: Workstream = %v", g.SignalType, g.Workstream)
		}
	}
	want := []got{
		{signal.Sensitivity, TypeMissing, signal.SeverityHigh},
		{signal.Access, TypeUnknown, signal.SeverityHigh},
	}
	if diff := cmp.Diff(want, gaps); diff != "" {
		t.Errorf("gaps mismatch (-want +got):\n%s", diff)
	}
	if !result.HasCritical() {
		t.Error("HasCritical() = false, want true")
	}
}

func TestComputeTriState(t *testing.T) {
	req := capability.Requirements{
		CapabilityID:    "custom",
		Name:            "Custom",
		RequiredSignals: []signal.Signal{signal.Ownership, signal.Lineage, signal.Usage},
		OptionalSignals: []signal.Signal{signal.Freshness},
	}
	profile := signal.UnknownProfile().
		With(signal.Ownership, signal.Present).
		With(signal.Lineage, signal.Absent).
		With(signal.Freshness, signal.Absent)

	assets := []evidence.AssetRecord{{GUID: "a"}}
	result, err := Compute(assets, map[string]signal.Profile{"a": profile}, req)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	got := make(map[signal.Signal]Type)
	for _, g := range result.Gaps {
		got[g.SignalType] = g.GapType
	}
	want := map[signal.Signal]Type{
		signal.Lineage: TypeMissing,
		signal.Usage:   TypeUnknown,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("gaps mismatch (-want +got):\n%s", diff)
	}

	// non-critical signals keep their catalog severity
	for _, g := range result.Gaps {
		if g.Severity != signal.SeverityOf(g.SignalType) {
			t.Errorf("%v severity = %v, want %v", g.SignalType, g.Severity, signal.SeverityOf(g.SignalType))
		}
	}
}

func TestComputeMissingProfileIsUnknown(t *testing.T) {
	assets := []evidence.AssetRecord{{GUID: "orphan"}}

	result, err := Compute(assets, nil, governance(t))
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(result.Gaps) != 2 {
		t.Fatalf("len(Gaps) = %d, want 2", len(result.Gaps))
	}
	for _, g := range result.Gaps {
		if g.GapType != TypeUnknown {
			t.Errorf("%v GapType = %v, want UNKNOWN", g.SignalType, g.GapType)
		}
	}
	if result.Summary.UnknownRatio != 1 {
		t.Errorf("UnknownRatio = %v, want 1", result.Summary.UnknownRatio)
	}
	if !result.Summary.UnknownHeavy() {
		t.Error("UnknownHeavy() = false, want true")
	}
}

func TestComputeClosesWhenAllPresent(t *testing.T) {
	req := governance(t)
	assets := []evidence.AssetRecord{{GUID: "a"}, {GUID: "b"}}
	full := signal.UnknownProfile()
	for _, s := range signal.All() {
		full = full.With(s, signal.Present)
	}
	signals := map[string]signal.Profile{"a": full, "b": full}

	result, err := Compute(assets, signals, req)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(result.Gaps) != 0 {
		t.Errorf("len(Gaps) = %d, want 0", len(result.Gaps))
	}
	if result.Gaps == nil {
		t.Error("Gaps = nil, want empty slice")
	}
	if result.Summary.Recommendation == "" {
		t.Error("Recommendation is empty")
	}
}

func TestComputeOrdering(t *testing.T) {
	assets := []evidence.AssetRecord{{GUID: "z"}, {GUID: "a"}}

	result, err := Compute(assets, nil, governance(t))
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	var got []string
	for _, g := range result.Gaps {
		got = append(got, g.SubjectID+"/"+g.SignalType.String())
	}
	want := []string{"z/OWNERSHIP", "z/SEMANTICS", "a/OWNERSHIP", "a/SEMANTICS"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeRejectsInvalidRequirements(t *testing.T) {
	_, err := Compute(nil, nil, capability.Requirements{CapabilityID: "x"})
	if !errors.Is(err, capability.ErrInvalidRequirements) {
		t.Errorf("Compute() error = %v, want ErrInvalidRequirements", err)
	}
}

func TestIDDeterministic(t *testing.T) {
	a := ID(TypeMissing, signal.Ownership, "asset-1")
	b := ID(TypeMissing, signal.Ownership, "asset-1")
	if a != b {
		t.Errorf("ID not stable: %s != %s", a, b)
	}
	if !strings.HasPrefix(a, "gap-") {
		t.Errorf("ID = %s, want gap- prefix", a)
	}

	others := []string{
		ID(TypeUnknown, signal.Ownership, "asset-1"),
		ID(TypeMissing, signal.Semantics, "asset-1"),
		ID(TypeMissing, signal.Ownership, "asset-2"),
	}
	for _, o := range others {
		if o == a {
			t.Errorf("ID collision: %s", o)
		}
	}
}

func TestComputeDeterministicAcrossRuns(t *testing.T) {
	assets := []evidence.AssetRecord{
		{GUID: "a", Attributes: map[evidence.Attribute]interface{}{evidence.AttrOwnerUsers: nil}},
		{GUID: "b"},
	}
	req, _ := capability.Lookup("rag")

	first, err := Compute(assets, signal.MapAll(assets), req)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	second, err := Compute(assets, signal.MapAll(assets), req)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	gaps := []Gap{
		{GapType: TypeMissing, SignalType: signal.Ownership, SubjectType: SubjectAsset, SubjectID: "a", Severity: signal.SeverityHigh, Workstream: signal.WorkstreamOwnership},
		{GapType: TypeUnknown, SignalType: signal.Lineage, SubjectType: SubjectAsset, SubjectID: "a", Severity: signal.SeverityMed, Workstream: signal.WorkstreamLineage},
		{GapType: TypeMissing, SignalType: signal.Usage, SubjectType: SubjectAsset, SubjectID: "b", Severity: signal.SeverityLow, Workstream: signal.WorkstreamQualityFreshness},
		{GapType: TypeMissing, SignalType: signal.Freshness, SubjectType: SubjectAsset, SubjectID: "b", Severity: signal.SeverityLow, Workstream: signal.WorkstreamQualityFreshness},
	}

	s := Summarize(gaps)
	if s.TotalGaps != 4 {
		t.Errorf("TotalGaps = %d, want 4", s.TotalGaps)
	}
	if s.ByType[TypeMissing] != 3 || s.ByType[TypeUnknown] != 1 {
		t.Errorf("ByType = %v, want 3 MISSING 1 UNKNOWN", s.ByType)
	}
	if s.BySeverity[signal.SeverityLow] != 2 {
		t.Errorf("BySeverity[LOW] = %d, want 2", s.BySeverity[signal.SeverityLow])
	}
	if s.ByWorkstream[signal.WorkstreamQualityFreshness] != 2 {
		t.Errorf("ByWorkstream[QUALITY_FRESHNESS] = %d, want 2", s.ByWorkstream[signal.WorkstreamQualityFreshness])
	}
	if s.AffectedSubjects != 2 {
		t.Errorf("AffectedSubjects = %d, want 2", s.AffectedSubjects)
	}
	if s.UnknownRatio != 0.25 {
		t.Errorf("UnknownRatio = %v, want 0.25", s.UnknownRatio)
	}
	if s.UnknownHeavy() {
		t.Error("UnknownHeavy() = true, want false")
	}

	if got := len(FilterBySeverity(gaps, signal.SeverityLow)); got != 2 {
		t.Errorf("FilterBySeverity(LOW) = %d gaps, want 2", got)
	}
	if got := len(FilterByWorkstream(gaps, signal.WorkstreamOwnership)); got != 1 {
		t.Errorf("FilterByWorkstream(OWNERSHIP) = %d gaps, want 1", got)
	}
	if got := len(FilterBySubject(gaps, "b")); got != 2 {
		t.Errorf("FilterBySubject(b) = %d gaps, want 2", got)
	}
}
