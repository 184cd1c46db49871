package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mdlh/mdq/internal/capability"
	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/logging"
)

// Observer is notified after every evaluation the Service performs.
type Observer interface {
	ObserveEvaluation(req Request, run *Run, err error, elapsed time.Duration)
}

// Service evaluates capabilities against one evidence source and catalog.
// Concurrent requests for the same (capability, scope) share one
// evaluation. It is safe for concurrent use.
type Service struct {
	source   evidence.Source
	catalog  capability.Catalog
	opts     Options
	logger   *slog.Logger
	observer Observer
	parallel int

	group singleflight.Group
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithOptions sets the evaluation policy.
func WithOptions(opts Options) ServiceOption {
	return func(s *Service) { s.opts = opts }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers an observer, typically a metrics collector.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// WithParallelism bounds how many capabilities EvaluateAll runs at once.
func WithParallelism(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.parallel = n
		}
	}
}

// NewService creates a Service. A nil catalog means the built-in catalog.
func NewService(source evidence.Source, catalog capability.Catalog, opts ...ServiceOption) *Service {
	if catalog == nil {
		catalog = capability.Builtin()
	}
	s := &Service{
		source:   source,
		catalog:  catalog,
		opts:     DefaultOptions(),
		logger:   logging.Discard(),
		parallel: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the service's capability catalog.
func (s *Service) Catalog() capability.Catalog {
	return s.catalog
}

// Evidence fetches the raw evidence for a scope from the service's source.
func (s *Service) Evidence(ctx context.Context, scopeID string) (*evidence.Bundle, error) {
	if s.source == nil {
		return nil, errors.New("no evidence source configured")
	}
	return s.source.GetEvidence(ctx, scopeID)
}

// Evaluate runs one evaluation. Identical concurrent requests are collapsed
// into a single pipeline run and share its result. The shared run is
// detached from any one caller's cancellation; each caller stops waiting
// when its own ctx is done.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvaluationFailed, err)
	}

	key := req.CapabilityID + "\x00" + req.ScopeID
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.evaluate(shared, req)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrEvaluationFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("shared in-flight evaluation",
				"capability", req.CapabilityID, "scope", req.ScopeID)
		}
		return res.Val.(*Run), nil
	}
}

func (s *Service) evaluate(ctx context.Context, req Request) (*Run, error) {
	start := time.Now()
	run, err := Evaluate(ctx, req, s.source, s.catalog, s.opts)
	elapsed := time.Since(start)

	if err != nil {
		s.logger.Error("evaluation failed",
			"capability", req.CapabilityID, "scope", req.ScopeID, "error", err)
	} else {
		s.logger.Info("evaluation complete",
			"run", run.ID,
			"status", run.Status(),
			"assets", run.Metadata.AssetCount,
			"gaps", run.GapSummary.TotalGaps,
			"duration", elapsed)
		for _, w := range run.Metadata.Warnings {
			s.logger.Warn(w, "run", run.ID)
		}
	}

	if s.observer != nil {
		s.observer.ObserveEvaluation(req, run, err, elapsed)
	}
	return run, err
}

// MatrixEntry is one capability's outcome in EvaluateAll.
type MatrixEntry struct {
	CapabilityID   string  `json:"capability_id" yaml:"capability_id"`
	CapabilityName string  `json:"capability_name" yaml:"capability_name"`
	Status         Status  `json:"status" yaml:"status"`
	Ready          bool    `json:"ready" yaml:"ready"`
	ReadinessScore float64 `json:"readiness_score" yaml:"readiness_score"`
	GapCount       int     `json:"gap_count" yaml:"gap_count"`
	Error          string  `json:"error,omitempty" yaml:"error,omitempty"`
	Run            *Run    `json:"run,omitempty" yaml:"run,omitempty"`
}

// EvaluateAll evaluates every catalog capability for one scope
// concurrently. Entries come back in catalog order. A failed capability is
// reported in its entry; only cancellation aborts the whole matrix.
func (s *Service) EvaluateAll(ctx context.Context, scopeID string) ([]MatrixEntry, error) {
	list := s.catalog.List()
	entries := make([]MatrixEntry, len(list))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i, r := range list {
		g.Go(func() error {
			run, err := s.Evaluate(gctx, Request{CapabilityID: r.CapabilityID, ScopeID: scopeID})
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}

			entry := MatrixEntry{
				CapabilityID:   r.CapabilityID,
				CapabilityName: r.Name,
				Status:         StatusOf(run, err),
			}
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Ready = run.Readiness.Ready
				entry.ReadinessScore = run.Readiness.Score
				entry.GapCount = run.GapSummary.TotalGaps
				entry.Run = run
			}
			entries[i] = entry
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
