package output

import (
	"sort"
	"time"

	"github.com/mdlh/mdq/internal/capability"
	"github.com/mdlh/mdq/internal/completeness"
	"github.com/mdlh/mdq/internal/evaluate"
	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/gap"
	"github.com/mdlh/mdq/internal/plan"
	"github.com/mdlh/mdq/internal/score"
	"github.com/mdlh/mdq/internal/signal"
)

// RunSummary is the part of a run shown at every density.
type RunSummary struct {
	Assets               int                    `yaml:"assets" json:"assets"`
	Gaps                 int                    `yaml:"gaps" json:"gaps"`
	Missing              int                    `yaml:"missing" json:"missing"`
	Unknown              int                    `yaml:"unknown" json:"unknown"`
	HighSeverity         int                    `yaml:"high_severity" json:"high_severity"`
	Actions              int                    `yaml:"actions" json:"actions"`
	HighPriority         int                    `yaml:"high_priority" json:"high_priority"`
	QuadrantDistribution map[score.Quadrant]int `yaml:"quadrant_distribution" json:"quadrant_distribution"`
	Recommendation       string                 `yaml:"recommendation,omitempty" json:"recommendation,omitempty"`
}

// RunView is an evaluation run projected onto a density.
type RunView struct {
	ID             string             `yaml:"id" json:"id"`
	CapabilityID   string             `yaml:"capability_id" json:"capability_id"`
	CapabilityName string             `yaml:"capability_name" json:"capability_name"`
	ScopeID        string             `yaml:"scope_id" json:"scope_id"`
	CreatedAt      string             `yaml:"created_at" json:"created_at"`
	Status         evaluate.Status    `yaml:"status" json:"status"`
	Readiness      evaluate.Readiness `yaml:"readiness" json:"readiness"`
	Summary        RunSummary         `yaml:"summary" json:"summary"`
	Warnings       []string           `yaml:"warnings,omitempty" json:"warnings,omitempty"`

	// Medium and dense
	Gaps         []gap.Gap             `yaml:"gaps,omitempty" json:"gaps,omitempty"`
	Scores       []score.SubjectScore  `yaml:"scores,omitempty" json:"scores,omitempty"`
	HighPriority []score.SubjectScore  `yaml:"high_priority,omitempty" json:"high_priority,omitempty"`
	Plan         *plan.RemediationPlan `yaml:"plan,omitempty" json:"plan,omitempty"`

	// Dense only
	CatalogVersion string                    `yaml:"catalog_version,omitempty" json:"catalog_version,omitempty"`
	DurationMS     int64                     `yaml:"duration_ms,omitempty" json:"duration_ms,omitempty"`
	Assessment     *score.AssessmentResult   `yaml:"assessment,omitempty" json:"assessment,omitempty"`
	Signals        map[string]signal.Profile `yaml:"signals,omitempty" json:"signals,omitempty"`
}

// NewRunView projects run onto density d.
func NewRunView(run *evaluate.Run, d Density) *RunView {
	v := &RunView{
		ID:             run.ID,
		CapabilityID:   run.CapabilityID,
		CapabilityName: run.CapabilityName,
		ScopeID:        run.ScopeID,
		CreatedAt:      run.CreatedAt.UTC().Format(time.RFC3339),
		Status:         run.Status(),
		Readiness:      run.Readiness,
		Summary: RunSummary{
			Assets:               run.Metadata.AssetCount,
			Gaps:                 run.GapSummary.TotalGaps,
			Missing:              run.GapSummary.ByType[gap.TypeMissing],
			Unknown:              run.GapSummary.ByType[gap.TypeUnknown],
			HighSeverity:         run.GapSummary.BySeverity[signal.SeverityHigh],
			HighPriority:         len(run.HighPriority),
			QuadrantDistribution: run.QuadrantDistribution,
			Recommendation:       run.GapSummary.Recommendation,
		},
		Warnings: run.Metadata.Warnings,
	}
	if run.Plan != nil {
		v.Summary.Actions = run.Plan.TotalActions
	}

	if d.IncludesDetail() {
		v.Gaps = run.Gaps
		v.Scores = run.Scores
		v.HighPriority = run.HighPriority
		v.Plan = run.Plan
	}
	if d.IncludesAssessment() {
		assessment := run.Assessment
		v.Assessment = &assessment
		v.CatalogVersion = run.CatalogVersion
		v.DurationMS = run.Metadata.DurationMS
	}
	if d.IncludesSignals() {
		v.Signals = run.Signals
	}
	return v
}

// MatrixRow is one capability in a readiness matrix.
type MatrixRow struct {
	CapabilityID   string          `yaml:"capability_id" json:"capability_id"`
	CapabilityName string          `yaml:"capability_name" json:"capability_name"`
	Status         evaluate.Status `yaml:"status" json:"status"`
	Ready          bool            `yaml:"ready" json:"ready"`
	ReadinessScore float64         `yaml:"readiness_score" json:"readiness_score"`
	GapCount       int             `yaml:"gap_count" json:"gap_count"`
	Error          string          `yaml:"error,omitempty" json:"error,omitempty"`
	Run            *RunView        `yaml:"run,omitempty" json:"run,omitempty"`
}

// MatrixView is the readiness of every capability for one scope.
type MatrixView struct {
	ScopeID      string      `yaml:"scope_id" json:"scope_id"`
	Ready        int         `yaml:"ready" json:"ready"`
	Total        int         `yaml:"total" json:"total"`
	Capabilities []MatrixRow `yaml:"capabilities" json:"capabilities"`
}

// NewMatrixView projects a matrix onto density d. Dense output nests each
// capability's run at medium density.
func NewMatrixView(scopeID string, entries []evaluate.MatrixEntry, d Density) *MatrixView {
	v := &MatrixView{
		ScopeID:      scopeID,
		Total:        len(entries),
		Capabilities: make([]MatrixRow, 0, len(entries)),
	}
	for _, e := range entries {
		row := MatrixRow{
			CapabilityID:   e.CapabilityID,
			CapabilityName: e.CapabilityName,
			Status:         e.Status,
			Ready:          e.Ready,
			ReadinessScore: e.ReadinessScore,
			GapCount:       e.GapCount,
			Error:          e.Error,
		}
		if e.Ready {
			v.Ready++
		}
		if d == DensityDense && e.Run != nil {
			row.Run = NewRunView(e.Run, DensityMedium)
		}
		v.Capabilities = append(v.Capabilities, row)
	}
	return v
}

// GapsView lists the gaps of a run, possibly filtered.
type GapsView struct {
	RunID        string      `yaml:"run_id" json:"run_id"`
	CapabilityID string      `yaml:"capability_id" json:"capability_id"`
	ScopeID      string      `yaml:"scope_id" json:"scope_id"`
	Summary      gap.Summary `yaml:"summary" json:"summary"`
	Gaps         []gap.Gap   `yaml:"gaps,omitempty" json:"gaps,omitempty"`
}

// NewGapsView builds a gap listing. The summary is recomputed over gaps so
// that it matches any filtering already applied. Sparse output omits the
// individual gaps.
func NewGapsView(run *evaluate.Run, gaps []gap.Gap, d Density) *GapsView {
	v := &GapsView{
		RunID:        run.ID,
		CapabilityID: run.CapabilityID,
		ScopeID:      run.ScopeID,
		Summary:      gap.Summarize(gaps),
	}
	if d.IncludesDetail() {
		v.Gaps = gaps
	}
	return v
}

// CompletenessView summarises completeness scores over a scope.
type CompletenessView struct {
	ScopeID      string                     `yaml:"scope_id" json:"scope_id"`
	Threshold    int                        `yaml:"threshold" json:"threshold"`
	Assets       int                        `yaml:"assets" json:"assets"`
	Complete     int                        `yaml:"complete" json:"complete"`
	AverageScore float64                    `yaml:"average_score" json:"average_score"`
	ByPhase      map[completeness.Phase]int `yaml:"by_phase" json:"by_phase"`
	Results      []completeness.Result      `yaml:"results,omitempty" json:"results,omitempty"`
}

// NewCompletenessView aggregates results. Medium output lists results
// without their per-criterion breakdown; dense keeps it.
func NewCompletenessView(scopeID string, threshold int, results []completeness.Result, d Density) *CompletenessView {
	v := &CompletenessView{
		ScopeID:   scopeID,
		Threshold: threshold,
		Assets:    len(results),
		ByPhase: map[completeness.Phase]int{
			completeness.PhaseSeeding:            0,
			completeness.PhaseGamification:       0,
			completeness.PhaseOperationalization: 0,
		},
	}
	total := 0
	for _, r := range results {
		total += r.Score
		if r.IsComplete {
			v.Complete++
		}
		v.ByPhase[r.Phase]++
		if r.Threshold > 0 {
			v.Threshold = r.Threshold
		}
	}
	if len(results) > 0 {
		v.AverageScore = float64(total) / float64(len(results))
	}

	switch {
	case d == DensityDense:
		v.Results = results
	case d.IncludesDetail():
		v.Results = make([]completeness.Result, len(results))
		for i, r := range results {
			r.Breakdown = nil
			v.Results[i] = r
		}
	}
	return v
}

// CatalogView lists the capability catalog.
type CatalogView struct {
	Version      string                    `yaml:"version" json:"version"`
	Capabilities []capability.Requirements `yaml:"capabilities" json:"capabilities"`
}

// NewCatalogView lists a catalog.
func NewCatalogView(c capability.Catalog) *CatalogView {
	return &CatalogView{Version: c.Version(), Capabilities: c.List()}
}

// SignalsView is the signal catalog, or the signal profiles of assets when
// Assets is set.
type SignalsView struct {
	Signals []signal.Definition `yaml:"signals,omitempty" json:"signals,omitempty"`
	Assets  []AssetSignals      `yaml:"assets,omitempty" json:"assets,omitempty"`
}

// AssetSignals is the mapped profile of one asset.
type AssetSignals struct {
	AssetID   string         `yaml:"asset_id" json:"asset_id"`
	AssetName string         `yaml:"asset_name,omitempty" json:"asset_name,omitempty"`
	Profile   signal.Profile `yaml:"signals" json:"signals"`
	Present   int            `yaml:"present" json:"present"`
	Absent    int            `yaml:"absent" json:"absent"`
	Unknown   int            `yaml:"unknown" json:"unknown"`
}

// NewSignalCatalogView lists every signal definition.
func NewSignalCatalogView() *SignalsView {
	return &SignalsView{Signals: signal.Catalog()}
}

// NewAssetSignalsView maps each asset to its profile, sorted by asset id.
func NewAssetSignalsView(assets []evidence.AssetRecord) *SignalsView {
	out := make([]AssetSignals, 0, len(assets))
	for i := range assets {
		p := signal.Map(assets[i])
		out = append(out, AssetSignals{
			AssetID:   assets[i].ID(),
			AssetName: assets[i].DisplayName(),
			Profile:   p,
			Present:   p.Count(signal.Present),
			Absent:    p.Count(signal.Absent),
			Unknown:   p.Count(signal.Unknown),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return &SignalsView{Assets: out}
}
