// Package completeness computes the single-asset metadata health score and
// the adoption phase it implies.
package completeness

import (
	"strings"
	"unicode/utf8"

	"github.com/mdlh/mdq/internal/evidence"
)

// Weights of each criterion. A criterion earns its full weight or nothing.
const (
	WeightCertified     = 25
	WeightOwner         = 20
	WeightDescription   = 15
	WeightReadme        = 10
	WeightGlossaryLinks = 10
	WeightTags          = 5
	WeightDQConfig      = 5

	// MinDescriptionLength is the length a description must exceed to count.
	MinDescriptionLength = 100

	// DefaultThreshold is the score at which an asset counts as complete.
	DefaultThreshold = 50
)

// Input is the per-asset evidence the score is computed from.
type Input struct {
	CertVerified      bool `json:"cert_verified" yaml:"cert_verified"`
	HasOwner          bool `json:"has_owner" yaml:"has_owner"`
	DescriptionLength int  `json:"description_length" yaml:"description_length"`
	HasReadme         bool `json:"has_readme" yaml:"has_readme"`
	HasGlossaryLinks  bool `json:"has_glossary_links" yaml:"has_glossary_links"`
	HasTags           bool `json:"has_tags" yaml:"has_tags"`
	HasDQConfig       bool `json:"has_dq_config" yaml:"has_dq_config"`
}

// FromAsset derives the input from an asset's raw attributes. Attributes
// that were never fetched count as not satisfied.
func FromAsset(a evidence.AssetRecord) Input {
	var in Input

	if cert, _ := a.Text(evidence.AttrCertificate); strings.EqualFold(cert, "VERIFIED") {
		in.CertVerified = true
	}

	owners, _ := a.List(evidence.AttrOwnerUsers)
	groups, _ := a.List(evidence.AttrOwnerGroups)
	in.HasOwner = len(owners) > 0 || len(groups) > 0

	desc, _ := a.Text(evidence.AttrDescription)
	userDesc, _ := a.Text(evidence.AttrUserDescription)
	in.DescriptionLength = max(utf8.RuneCountInString(desc), utf8.RuneCountInString(userDesc))

	readme, _ := a.Text(evidence.AttrReadmeGUID)
	in.HasReadme = readme != ""

	terms, _ := a.List(evidence.AttrTermGUIDs)
	in.HasGlossaryLinks = len(terms) > 0

	tags, _ := a.List(evidence.AttrTags)
	classes, _ := a.List(evidence.AttrClassifications)
	in.HasTags = len(tags) > 0 || len(classes) > 0

	monitored, _ := a.Flag(evidence.AttrMCMonitored)
	soda, _ := a.Text(evidence.AttrDQSodaStatus)
	in.HasDQConfig = monitored || soda != ""

	return in
}

// Criterion is one line of the score breakdown.
type Criterion struct {
	Name   string `json:"name" yaml:"name"`
	Weight int    `json:"weight" yaml:"weight"`
	Earned int    `json:"earned" yaml:"earned"`
	Met    bool   `json:"met" yaml:"met"`
}

// Result is the completeness score of one asset.
type Result struct {
	AssetID    string      `json:"asset_id,omitempty" yaml:"asset_id,omitempty"`
	AssetName  string      `json:"asset_name,omitempty" yaml:"asset_name,omitempty"`
	Score      int         `json:"score" yaml:"score"`
	Threshold  int         `json:"threshold" yaml:"threshold"`
	IsComplete bool        `json:"is_complete" yaml:"is_complete"`
	Breakdown  []Criterion `json:"breakdown" yaml:"breakdown"`
	Phase      Phase       `json:"phase" yaml:"phase"`
	Tactics    []string    `json:"tactics" yaml:"tactics"`
}

// Score computes the weighted sum and classifies it. A non-positive
// threshold means DefaultThreshold.
func Score(in Input, threshold int) Result {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	breakdown := []Criterion{
		criterion("certificate_verified", WeightCertified, in.CertVerified),
		criterion("has_owner", WeightOwner, in.HasOwner),
		criterion("description", WeightDescription, in.DescriptionLength > MinDescriptionLength),
		criterion("readme", WeightReadme, in.HasReadme),
		criterion("glossary_links", WeightGlossaryLinks, in.HasGlossaryLinks),
		criterion("tags", WeightTags, in.HasTags),
		criterion("dq_config", WeightDQConfig, in.HasDQConfig),
	}

	total := 0
	for _, c := range breakdown {
		total += c.Earned
	}

	phase := PhaseFor(total)
	return Result{
		Score:      total,
		Threshold:  threshold,
		IsComplete: total >= threshold,
		Breakdown:  breakdown,
		Phase:      phase,
		Tactics:    phase.Tactics(),
	}
}

// ScoreAsset scores one asset and labels the result with its identity.
func ScoreAsset(a evidence.AssetRecord, threshold int) Result {
	r := Score(FromAsset(a), threshold)
	r.AssetID = a.ID()
	r.AssetName = a.DisplayName()
	return r
}

// ScoreAll scores every asset in input order.
func ScoreAll(assets []evidence.AssetRecord, threshold int) []Result {
	out := make([]Result, 0, len(assets))
	for _, a := range assets {
		out = append(out, ScoreAsset(a, threshold))
	}
	return out
}

func criterion(name string, weight int, met bool) Criterion {
	c := Criterion{Name: name, Weight: weight, Met: met}
	if met {
		c.Earned = weight
	}
	return c
}
