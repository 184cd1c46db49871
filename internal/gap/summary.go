package gap

import (
	"github.com/mdlh/mdq/internal/signal"
)

// UnknownHeavyRatio is the share of UNKNOWN gaps above which a run is
// reported as evidence-starved rather than ready or not ready.
const UnknownHeavyRatio = 0.35

// Summary provides aggregate statistics about a gap list.
type Summary struct {
	// TotalGaps is the number of gaps
	TotalGaps int `json:"total_gaps" yaml:"total_gaps"`

	// ByType counts gaps per gap type
	ByType map[Type]int `json:"by_type" yaml:"by_type"`

	// BySeverity counts gaps per severity, critical signals counted as HIGH
	BySeverity map[signal.Severity]int `json:"by_severity" yaml:"by_severity"`

	// AffectedSubjects is the number of distinct subjects with a gap
	AffectedSubjects int `json:"affected_subjects" yaml:"affected_subjects"`

	// BySignal counts gaps per signal name
	BySignal map[string]int `json:"by_signal" yaml:"by_signal"`

	// ByWorkstream counts gaps per remediation workstream
	ByWorkstream map[signal.Workstream]int `json:"by_workstream" yaml:"by_workstream"`

	// UnknownRatio is the UNKNOWN share of TotalGaps, zero when there are no gaps
	UnknownRatio float64 `json:"unknown_ratio" yaml:"unknown_ratio"`

	// Recommendation is an actionable suggestion based on the gaps
	Recommendation string `json:"recommendation" yaml:"recommendation"`
}

// UnknownHeavy reports whether more than UnknownHeavyRatio of the gaps are
// UNKNOWN.
func (s Summary) UnknownHeavy() bool {
	return s.TotalGaps > 0 && s.UnknownRatio > UnknownHeavyRatio
}

// Summarize reduces a gap list to counts and a recommendation.
func Summarize(gaps []Gap) Summary {
	s := Summary{
		TotalGaps:    len(gaps),
		ByType:       make(map[Type]int),
		BySeverity:   make(map[signal.Severity]int),
		BySignal:     make(map[string]int),
		ByWorkstream: make(map[signal.Workstream]int),
	}

	subjects := make(map[string]struct{})
	for _, g := range gaps {
		s.ByType[g.GapType]++
		s.BySeverity[g.Severity]++
		s.BySignal[g.SignalType.String()]++
		s.ByWorkstream[g.Workstream]++
		subjects[string(g.SubjectType)+":"+g.SubjectID] = struct{}{}
	}
	s.AffectedSubjects = len(subjects)

	if s.TotalGaps > 0 {
		s.UnknownRatio = float64(s.ByType[TypeUnknown]) / float64(s.TotalGaps)
	}
	s.Recommendation = recommend(s)
	return s
}

func recommend(s Summary) string {
	switch {
	case s.TotalGaps == 0:
		return "No gaps found - required metadata is in place"
	case s.UnknownHeavy():
		return "Evidence is incomplete - widen attribute collection before acting on scores"
	case s.BySeverity[signal.SeverityHigh] > 0:
		return "Address HIGH severity gaps first; they block readiness"
	case s.BySeverity[signal.SeverityMed] > 0:
		return "Plan MED severity remediation in the expanded phase"
	default:
		return "Only LOW severity gaps remain - schedule as hardening work"
	}
}

// FilterBySeverity returns the gaps of one severity, in input order.
func FilterBySeverity(gaps []Gap, sev signal.Severity) []Gap {
	var out []Gap
	for _, g := range gaps {
		if g.Severity == sev {
			out = append(out, g)
		}
	}
	return out
}

// FilterByWorkstream returns the gaps routed to one workstream, in input order.
func FilterByWorkstream(gaps []Gap, ws signal.Workstream) []Gap {
	var out []Gap
	for _, g := range gaps {
		if g.Workstream == ws {
			out = append(out, g)
		}
	}
	return out
}

// FilterBySubject returns the gaps for one subject, in input order.
func FilterBySubject(gaps []Gap, subjectID string) []Gap {
	var out []Gap
	for _, g := range gaps {
		if g.SubjectID == subjectID {
			out = append(out, g)
		}
	}
	return out
}

// HasCritical reports whether any gap is HIGH severity.
func (r *Result) HasCritical() bool {
	return r.Summary.BySeverity[signal.SeverityHigh] > 0
}
