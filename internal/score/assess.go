package score

import (
	"github.com/mdlh/mdq/internal/capability"
	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/signal"
)

// SignalCoverage counts the tri-state outcomes of one required signal over
// every asset in scope.
type SignalCoverage struct {
	Present int `json:"present" yaml:"present"`
	Absent  int `json:"absent" yaml:"absent"`
	Unknown int `json:"unknown" yaml:"unknown"`
}

// UsageMaxima are the largest usage figures seen in scope. Impact is
// normalised against them.
type UsageMaxima struct {
	Popularity     float64 `json:"popularity" yaml:"popularity"`
	QueryCount     float64 `json:"query_count" yaml:"query_count"`
	QueryUserCount float64 `json:"query_user_count" yaml:"query_user_count"`
}

func (m UsageMaxima) of(attr evidence.Attribute) float64 {
	switch attr {
	case evidence.AttrPopularity:
		return m.Popularity
	case evidence.AttrQueryCount:
		return m.QueryCount
	case evidence.AttrQueryUserCount:
		return m.QueryUserCount
	}
	return 0
}

// AssessmentResult is the scope-wide readiness check for one capability.
type AssessmentResult struct {
	CapabilityID string `json:"capability_id" yaml:"capability_id"`
	AssetCount   int    `json:"asset_count" yaml:"asset_count"`

	// RequiredChecks is assets × required signals.
	RequiredChecks int `json:"required_checks" yaml:"required_checks"`
	PresentChecks  int `json:"present_checks" yaml:"present_checks"`
	AbsentChecks   int `json:"absent_checks" yaml:"absent_checks"`
	UnknownChecks  int `json:"unknown_checks" yaml:"unknown_checks"`

	// ReadinessScore is PresentChecks / RequiredChecks, zero for an empty scope.
	ReadinessScore float64 `json:"readiness_score" yaml:"readiness_score"`

	// GatePass is true when every critical signal is Present on every asset
	// and the scope is not empty. Unknown does not pass the gate.
	GatePass bool `json:"gate_pass" yaml:"gate_pass"`

	// CriticalFailures counts, per critical signal, the assets that failed it.
	CriticalFailures map[signal.Signal]int `json:"critical_failures" yaml:"critical_failures"`

	SignalCoverage map[signal.Signal]SignalCoverage `json:"signal_coverage" yaml:"signal_coverage"`
	Usage          UsageMaxima                      `json:"usage" yaml:"usage"`
}

// Assess computes the scope-wide readiness figures. Assets with no profile
// in signals are treated as entirely Unknown.
func Assess(assets []evidence.AssetRecord, signals map[string]signal.Profile, req capability.Requirements) AssessmentResult {
	res := AssessmentResult{
		CapabilityID:     req.CapabilityID,
		AssetCount:       len(assets),
		CriticalFailures: make(map[signal.Signal]int),
		SignalCoverage:   make(map[signal.Signal]SignalCoverage, len(req.RequiredSignals)),
	}
	for _, s := range req.RequiredSignals {
		res.SignalCoverage[s] = SignalCoverage{}
	}

	gate := len(assets) > 0
	for i := range assets {
		asset := &assets[i]
		profile := profileFor(signals, asset)

		for _, s := range req.RequiredSignals {
			cov := res.SignalCoverage[s]
			res.RequiredChecks++
			switch profile.Get(s) {
			case signal.Present:
				res.PresentChecks++
				cov.Present++
			case signal.Absent:
				res.AbsentChecks++
				cov.Absent++
			default:
				res.UnknownChecks++
				cov.Unknown++
			}
			res.SignalCoverage[s] = cov
		}

		for _, s := range req.CriticalSignals {
			if profile.Get(s) != signal.Present {
				res.CriticalFailures[s]++
				gate = false
			}
		}

		res.Usage.observe(asset)
	}

	if res.RequiredChecks > 0 {
		res.ReadinessScore = float64(res.PresentChecks) / float64(res.RequiredChecks)
	}
	res.GatePass = gate
	return res
}

func (m *UsageMaxima) observe(asset *evidence.AssetRecord) {
	for _, attr := range usageAttributes {
		if !asset.HasNumber(attr) {
			continue
		}
		n, _ := asset.Number(attr)
		switch attr {
		case evidence.AttrPopularity:
			m.Popularity = max(m.Popularity, n)
		case evidence.AttrQueryCount:
			m.QueryCount = max(m.QueryCount, n)
		case evidence.AttrQueryUserCount:
			m.QueryUserCount = max(m.QueryUserCount, n)
		}
	}
}

var usageAttributes = []evidence.Attribute{
	evidence.AttrPopularity,
	evidence.AttrQueryCount,
	evidence.AttrQueryUserCount,
}

func profileFor(signals map[string]signal.Profile, asset *evidence.AssetRecord) signal.Profile {
	if p, ok := signals[asset.ID()]; ok {
		return p
	}
	return signal.UnknownProfile()
}
