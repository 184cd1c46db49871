package score

import (
	"fmt"

	"github.com/mdlh/mdq/internal/capability"
	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/gap"
	"github.com/mdlh/mdq/internal/signal"
)

// SubjectScore is the impact/quality rating of one subject.
type SubjectScore struct {
	SubjectType gap.SubjectType `json:"subject_type" yaml:"subject_type"`
	SubjectID   string          `json:"subject_id" yaml:"subject_id"`
	SubjectName string          `json:"subject_name,omitempty" yaml:"subject_name,omitempty"`

	// ImpactScore is always a number in [0,1].
	ImpactScore float64 `json:"impact_score" yaml:"impact_score"`

	// QualityScore is nil exactly when QualityUnknown is true.
	QualityScore   *float64 `json:"quality_score" yaml:"quality_score"`
	QualityUnknown bool     `json:"quality_unknown" yaml:"quality_unknown"`

	Quadrant     Quadrant `json:"quadrant" yaml:"quadrant"`
	Explanations []string `json:"explanations" yaml:"explanations"`
}

// Compute scores every asset, then every domain the assets belong to.
//
// Quality is the share of required signals that are Present, unless the
// share that is Unknown exceeds opts.UnknownThreshold, in which case quality
// is nil. Impact is the strongest normalised usage figure, or
// opts.DefaultImpact when the asset carries no usage evidence. A domain's
// quality is computed over all of its members' checks and its impact is the
// mean of its members' impacts.
func Compute(assets []evidence.AssetRecord, signals map[string]signal.Profile, req capability.Requirements, assessment AssessmentResult, opts Options) []SubjectScore {
	scores := make([]SubjectScore, 0, len(assets))

	type domainAcc struct {
		name    string
		checks  tally
		impacts float64
		members int
	}
	var domainOrder []string
	domains := make(map[string]*domainAcc)

	for i := range assets {
		asset := &assets[i]
		t := countChecks(profileFor(signals, asset), req)

		impact, impactWhy := assetImpact(asset, assessment.Usage, opts)
		quality, qualityWhy := t.quality(opts)

		scores = append(scores, SubjectScore{
			SubjectType:    gap.SubjectAsset,
			SubjectID:      asset.ID(),
			SubjectName:    asset.DisplayName(),
			ImpactScore:    impact,
			QualityScore:   quality,
			QualityUnknown: quality == nil,
			Quadrant:       ComputeQuadrant(impact, quality, opts.ImpactThreshold, opts.QualityThreshold),
			Explanations:   []string{impactWhy, qualityWhy},
		})

		for _, d := range asset.DomainGUIDs {
			acc, ok := domains[d]
			if !ok {
				acc = &domainAcc{name: d}
				domains[d] = acc
				domainOrder = append(domainOrder, d)
			}
			acc.checks.add(t)
			acc.impacts += impact
			acc.members++
		}
	}

	for _, d := range domainOrder {
		acc := domains[d]
		impact := acc.impacts / float64(acc.members)
		quality, qualityWhy := acc.checks.quality(opts)

		scores = append(scores, SubjectScore{
			SubjectType:    gap.SubjectDomain,
			SubjectID:      d,
			SubjectName:    acc.name,
			ImpactScore:    impact,
			QualityScore:   quality,
			QualityUnknown: quality == nil,
			Quadrant:       ComputeQuadrant(impact, quality, opts.ImpactThreshold, opts.QualityThreshold),
			Explanations: []string{
				fmt.Sprintf("impact %.2f: mean of %d member assets", impact, acc.members),
				qualityWhy,
			},
		})
	}

	return scores
}

// tally counts required-signal outcomes for one subject.
type tally struct {
	required int
	present  int
	unknown  int
}

func (t *tally) add(o tally) {
	t.required += o.required
	t.present += o.present
	t.unknown += o.unknown
}

func countChecks(p signal.Profile, req capability.Requirements) tally {
	t := tally{required: len(req.RequiredSignals)}
	for _, s := range req.RequiredSignals {
		switch p.Get(s) {
		case signal.Present:
			t.present++
		case signal.Unknown:
			t.unknown++
		}
	}
	return t
}

func (t tally) quality(opts Options) (*float64, string) {
	if t.required == 0 {
		return nil, "quality unknown: no required signals to check"
	}
	unknownShare := float64(t.unknown) / float64(t.required)
	if unknownShare > opts.UnknownThreshold {
		return nil, fmt.Sprintf("quality unknown: %d of %d required signals undeterminable (%.0f%% > %.0f%%)",
			t.unknown, t.required, unknownShare*100, opts.UnknownThreshold*100)
	}
	q := float64(t.present) / float64(t.required)
	return &q, fmt.Sprintf("quality %.2f: %d of %d required signals present", q, t.present, t.required)
}

// assetImpact normalises each usage figure against the scope maximum and
// keeps the strongest. Usage fetched as zero is real evidence of low impact.
func assetImpact(asset *evidence.AssetRecord, maxima UsageMaxima, opts Options) (float64, string) {
	best := -1.0
	var bestAttr evidence.Attribute
	for _, attr := range usageAttributes {
		if !asset.HasNumber(attr) {
			continue
		}
		n, _ := asset.Number(attr)
		v := 0.0
		if m := maxima.of(attr); m > 0 {
			v = clamp(n / m)
		}
		if v > best {
			best = v
			bestAttr = attr
		}
	}

	if best < 0 {
		return opts.DefaultImpact, fmt.Sprintf("impact %.2f: default, no usage evidence", opts.DefaultImpact)
	}
	return best, fmt.Sprintf("impact %.2f: %s relative to scope maximum", best, bestAttr)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// QuadrantDistribution counts subjects per quadrant. Every quadrant has a key.
func QuadrantDistribution(scores []SubjectScore) map[Quadrant]int {
	dist := make(map[Quadrant]int, 6)
	for _, q := range Quadrants() {
		dist[q] = 0
	}
	for _, s := range scores {
		dist[s.Quadrant]++
	}
	return dist
}

// HighPriority returns the subjects in HL or HU: high impact with poor or
// undeterminable quality.
func HighPriority(scores []SubjectScore) []SubjectScore {
	out := make([]SubjectScore, 0)
	for _, s := range scores {
		if s.Quadrant == QuadrantHL || s.Quadrant == QuadrantHU {
			out = append(out, s)
		}
	}
	return out
}
