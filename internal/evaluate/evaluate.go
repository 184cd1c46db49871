// Package evaluate runs the full capability evaluation pipeline: fetch
// evidence, map signals, compute gaps, assess and score subjects, generate a
// remediation plan and decide readiness.
//
// The engines it sequences are pure. This package is the single place where
// collaborator and contract failures are turned into one wrapped error; a
// failed evaluation never returns a partial Run.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mdlh/mdq/internal/capability"
	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/gap"
	"github.com/mdlh/mdq/internal/plan"
	"github.com/mdlh/mdq/internal/score"
	"github.com/mdlh/mdq/internal/signal"
)

var (
	// ErrEvaluationFailed wraps every failure returned by Evaluate. Messages
	// follow Go casing, so clients see "evaluation failed: <cause>" rather
	// than "Evaluation failed: <cause>". Match with errors.Is, not on text.
	ErrEvaluationFailed = errors.New("evaluation failed")

	// ErrUnknownCapability is returned when the catalog has no entry for the
	// requested capability id. The full message reads
	// "evaluation failed: unknown capability: <id>".
	ErrUnknownCapability = errors.New("unknown capability")
)

// DefaultReadinessThreshold is the readiness score a scope must reach.
const DefaultReadinessThreshold = 0.75

// Request names what to evaluate.
type Request struct {
	CapabilityID string `json:"capability_id" yaml:"capability_id"`
	ScopeID      string `json:"scope_id" yaml:"scope_id"`
}

// Options tunes an evaluation.
type Options struct {
	Score              score.Options
	ReadinessThreshold float64

	// Now stamps the run. Nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns the standard policy.
func DefaultOptions() Options {
	return Options{
		Score:              score.DefaultOptions(),
		ReadinessThreshold: DefaultReadinessThreshold,
		Now:                time.Now,
	}
}

// Readiness is the verdict: Ready = GatePass && Score >= Threshold.
type Readiness struct {
	Ready     bool    `json:"ready" yaml:"ready"`
	GatePass  bool    `json:"gate_pass" yaml:"gate_pass"`
	Score     float64 `json:"score" yaml:"score"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// Metadata records how the run went.
type Metadata struct {
	AssetCount int      `json:"asset_count" yaml:"asset_count"`
	DurationMS int64    `json:"duration_ms" yaml:"duration_ms"`
	Errors     []string `json:"errors" yaml:"errors"`
	Warnings   []string `json:"warnings" yaml:"warnings"`
}

// Run is the result of one evaluation. It is built once and never modified.
type Run struct {
	ID             string    `json:"id" yaml:"id"`
	CapabilityID   string    `json:"capability_id" yaml:"capability_id"`
	CapabilityName string    `json:"capability_name" yaml:"capability_name"`
	CatalogVersion string    `json:"catalog_version" yaml:"catalog_version"`
	ScopeID        string    `json:"scope_id" yaml:"scope_id"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`

	Signals    map[string]signal.Profile `json:"signals" yaml:"signals"`
	Assessment score.AssessmentResult    `json:"assessment" yaml:"assessment"`

	Scores               []score.SubjectScore   `json:"scores" yaml:"scores"`
	QuadrantDistribution map[score.Quadrant]int `json:"quadrant_distribution" yaml:"quadrant_distribution"`
	HighPriority         []score.SubjectScore   `json:"high_priority" yaml:"high_priority"`

	Gaps       []gap.Gap             `json:"gaps" yaml:"gaps"`
	GapSummary gap.Summary           `json:"gap_summary" yaml:"gap_summary"`
	Plan       *plan.RemediationPlan `json:"plan" yaml:"plan"`

	Readiness Readiness `json:"readiness" yaml:"readiness"`
	Metadata  Metadata  `json:"metadata" yaml:"metadata"`
}

// RunID formats the identifier of a run started at t.
func RunID(capabilityID string, t time.Time) string {
	return fmt.Sprintf("eval-%s-%s", capabilityID, t.UTC().Format(time.RFC3339))
}

// Evaluate runs the pipeline for one capability over one scope.
//
// A nil catalog means the built-in catalog. Cancellation is checked before
// and after the evidence fetch; once the engines start they run to
// completion. Zero assets in scope is a warning, not an error.
func Evaluate(ctx context.Context, req Request, source evidence.Source, catalog capability.Catalog, opts Options) (*Run, error) {
	run, err := evaluate(ctx, req, source, catalog, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvaluationFailed, err)
	}
	return run, nil
}

func evaluate(ctx context.Context, req Request, source evidence.Source, catalog capability.Catalog, opts Options) (*Run, error) {
	started := time.Now()
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if catalog == nil {
		catalog = capability.Builtin()
	}
	if source == nil {
		return nil, errors.New("no evidence source configured")
	}

	requirements, ok := catalog.Get(req.CapabilityID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, req.CapabilityID)
	}
	if err := opts.Score.Validate(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bundle, err := source.GetEvidence(ctx, req.ScopeID)
	if err != nil {
		return nil, fmt.Errorf("fetch evidence for scope %q: %w", req.ScopeID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var assets []evidence.AssetRecord
	if bundle != nil {
		assets = bundle.Assets
	}

	signals := signal.MapAll(assets)

	gaps, err := gap.Compute(assets, signals, requirements)
	if err != nil {
		return nil, err
	}

	assessment := score.Assess(assets, signals, requirements)
	scores := score.Compute(assets, signals, requirements, assessment, opts.Score)
	remediation := plan.Generate(requirements.CapabilityID, req.ScopeID, gaps.Gaps)

	warnings := make([]string, 0)
	if len(assets) == 0 {
		warnings = append(warnings, fmt.Sprintf("no assets found in scope %q", req.ScopeID))
	}
	if gaps.Summary.UnknownHeavy() {
		warnings = append(warnings, fmt.Sprintf("%.0f%% of gaps are UNKNOWN; evidence coverage is too thin to trust the verdict",
			gaps.Summary.UnknownRatio*100))
	}

	created := now().UTC()
	return &Run{
		ID:                   RunID(requirements.CapabilityID, created),
		CapabilityID:         requirements.CapabilityID,
		CapabilityName:       requirements.Name,
		CatalogVersion:       catalog.Version(),
		ScopeID:              req.ScopeID,
		CreatedAt:            created,
		Signals:              signals,
		Assessment:           assessment,
		Scores:               scores,
		QuadrantDistribution: score.QuadrantDistribution(scores),
		HighPriority:         score.HighPriority(scores),
		Gaps:                 gaps.Gaps,
		GapSummary:           gaps.Summary,
		Plan:                 remediation,
		Readiness: Readiness{
			Ready:     assessment.GatePass && assessment.ReadinessScore >= opts.ReadinessThreshold,
			GatePass:  assessment.GatePass,
			Score:     assessment.ReadinessScore,
			Threshold: opts.ReadinessThreshold,
		},
		Metadata: Metadata{
			AssetCount: len(assets),
			DurationMS: time.Since(started).Milliseconds(),
			Errors:     make([]string, 0),
			Warnings:   warnings,
		},
	}, nil
}
