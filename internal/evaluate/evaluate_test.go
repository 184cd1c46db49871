package evaluate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdlh/mdq/internal/capability"
	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/gap"
	"github.com/mdlh/mdq/internal/score"
	"github.com/mdlh/mdq/internal/signal"
)

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func staticSource(assets ...evidence.AssetRecord) evidence.Source {
	return evidence.SourceFunc(func(ctx context.Context, scopeID string) (*evidence.Bundle, error) {
		return &evidence.Bundle{ScopeID: scopeID, Assets: assets}, nil
	})
}

func ownerlessAsset() evidence.AssetRecord {
	return evidence.AssetRecord{
		GUID: "asset-1",
		Name: "orders",
		Attributes: map[evidence.Attribute]interface{}{
			evidence.AttrOwnerUsers:  []string{},
			evidence.AttrOwnerGroups: []string{},
			evidence.AttrDescription: "Customer orders",
		},
	}
}

func governedAsset(guid string) evidence.AssetRecord {
	return evidence.AssetRecord{
		GUID: guid,
		Attributes: map[evidence.Attribute]interface{}{
			evidence.AttrOwnerUsers:  []string{"alice"},
			evidence.AttrDescription: "Well documented",
		},
	}
}

func TestEvaluateGovernanceFundamentals(t *testing.T) {
	run, err := Evaluate(context.Background(),
		Request{CapabilityID: "governance_fundamentals", ScopeID: "sales"},
		staticSource(ownerlessAsset()), nil, testOptions())
	require.NoError(t, err)

	assert.Equal(t, "eval-governance_fundamentals-2025-03-04T05:06:07Z", run.ID)
	assert.Equal(t, capability.CatalogVersion, run.CatalogVersion)
	assert.Equal(t, "sales", run.ScopeID)

	require.Len(t, run.Gaps, 1)
	g := run.Gaps[0]
	assert.Equal(t, gap.TypeMissing, g.GapType)
	assert.Equal(t, signal.Ownership, g.SignalType)
	assert.Equal(t, signal.SeverityHigh, g.Severity)
	assert.Equal(t, signal.WorkstreamOwnership, g.Workstream)

	require.Len(t, run.Scores, 1)
	require.NotNil(t, run.Scores[0].QualityScore)
	assert.InDelta(t, 0.5, *run.Scores[0].QualityScore, 1e-9)
	assert.Equal(t, 0.25, run.Scores[0].ImpactScore)
	assert.Equal(t, score.QuadrantLL, run.Scores[0].Quadrant)
	assert.Equal(t, 1, run.QuadrantDistribution[score.QuadrantLL])

	assert.False(t, run.Readiness.Ready)
	assert.False(t, run.Readiness.GatePass)
	assert.Equal(t, DefaultReadinessThreshold, run.Readiness.Threshold)
	assert.Equal(t, StatusNotReady, run.Status())

	assert.Equal(t, 1, run.Plan.TotalActions)
	assert.Equal(t, 1, run.Metadata.AssetCount)
	assert.Empty(t, run.Metadata.Warnings)
	assert.NotNil(t, run.Metadata.Errors)
}

func TestEvaluateReady(t *testing.T) {
	run, err := Evaluate(context.Background(),
		Request{CapabilityID: "governance_fundamentals", ScopeID: "all"},
		staticSource(governedAsset("a"), governedAsset("b")), nil, testOptions())
	require.NoError(t, err)

	assert.Empty(t, run.Gaps)
	assert.True(t, run.Readiness.Ready)
	assert.Equal(t, 1.0, run.Readiness.Score)
	assert.Equal(t, StatusReady, run.Status())
}

func TestEvaluateUnknownCapability(t *testing.T) {
	var called bool
	source := evidence.SourceFunc(func(ctx context.Context, scopeID string) (*evidence.Bundle, error) {
		called = true
		return &evidence.Bundle{}, nil
	})

	run, err := Evaluate(context.Background(), Request{CapabilityID: "nope"}, source, nil, testOptions())
	assert.Nil(t, run)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEvaluationFailed)
	assert.ErrorIs(t, err, ErrUnknownCapability)
	assert.Equal(t, "evaluation failed: unknown capability: nope", err.Error())
	assert.False(t, called)
	assert.Equal(t, StatusError, StatusOf(run, err))
}

func TestEvaluateSourceFailure(t *testing.T) {
	boom := errors.New("warehouse unreachable")
	source := evidence.SourceFunc(func(ctx context.Context, scopeID string) (*evidence.Bundle, error) {
		return nil, boom
	})

	run, err := Evaluate(context.Background(), Request{CapabilityID: "rag", ScopeID: "x"}, source, nil, testOptions())
	assert.Nil(t, run)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "evaluation failed: ")
	assert.Contains(t, err.Error(), "warehouse unreachable")
}

func TestEvaluateZeroAssetsWarns(t *testing.T) {
	run, err := Evaluate(context.Background(),
		Request{CapabilityID: "rag", ScopeID: "empty"}, staticSource(), nil, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, run.Metadata.AssetCount)
	require.Len(t, run.Metadata.Warnings, 1)
	assert.Contains(t, run.Metadata.Warnings[0], "no assets")
	assert.False(t, run.Readiness.Ready)
	assert.Equal(t, StatusNotReady, run.Status())
}

func TestEvaluateUnknownHeavy(t *testing.T) {
	run, err := Evaluate(context.Background(),
		Request{CapabilityID: "rag", ScopeID: "dark"},
		staticSource(evidence.AssetRecord{GUID: "bare"}), nil, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 4, run.GapSummary.ByType[gap.TypeUnknown])
	assert.Equal(t, StatusUnknownHeavy, run.Status())
	assert.Len(t, run.Metadata.Warnings, 1)
	require.Len(t, run.Scores, 1)
	assert.True(t, run.Scores[0].QualityUnknown)
}

func TestEvaluateCancelledBeforeFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called bool
	source := evidence.SourceFunc(func(ctx context.Context, scopeID string) (*evidence.Bundle, error) {
		called = true
		return &evidence.Bundle{}, nil
	})

	_, err := Evaluate(ctx, Request{CapabilityID: "rag"}, source, nil, testOptions())
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrEvaluationFailed)
	assert.False(t, called)
}

func TestEvaluateCustomCatalog(t *testing.T) {
	catalog, err := capability.NewCatalog(capability.Requirements{
		CapabilityID:    "usage_only",
		Name:            "Usage Only",
		RequiredSignals: []signal.Signal{signal.Usage},
	})
	require.NoError(t, err)

	run, err := Evaluate(context.Background(),
		Request{CapabilityID: "usage_only", ScopeID: "all"},
		staticSource(governedAsset("a")), catalog, testOptions())
	require.NoError(t, err)
	assert.Equal(t, capability.CatalogVersion+"+custom", run.CatalogVersion)
	require.Len(t, run.Gaps, 1)
	assert.Equal(t, gap.TypeUnknown, run.Gaps[0].GapType)
}

func TestEvaluateDeterministic(t *testing.T) {
	source := staticSource(ownerlessAsset(), governedAsset("b"), evidence.AssetRecord{GUID: "c"})
	req := Request{CapabilityID: "data_products", ScopeID: "all"}

	first, err := Evaluate(context.Background(), req, source, nil, testOptions())
	require.NoError(t, err)
	second, err := Evaluate(context.Background(), req, source, nil, testOptions())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Gaps, second.Gaps)
	assert.Equal(t, first.Scores, second.Scores)
	assert.Equal(t, first.Plan, second.Plan)
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []Status
}

func (o *recordingObserver) ObserveEvaluation(req Request, run *Run, err error, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, StatusOf(run, err))
}

func TestServiceCollapsesConcurrentRequests(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})
	source := evidence.SourceFunc(func(ctx context.Context, scopeID string) (*evidence.Bundle, error) {
		fetches.Add(1)
		<-release
		return &evidence.Bundle{Assets: []evidence.AssetRecord{ownerlessAsset()}}, nil
	})

	obs := &recordingObserver{}
	svc := NewService(source, nil, WithOptions(testOptions()), WithObserver(obs))
	req := Request{CapabilityID: "governance_fundamentals", ScopeID: "sales"}

	const callers = 5
	var wg sync.WaitGroup
	runs := make([]*Run, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run, err := svc.Evaluate(context.Background(), req)
			assert.NoError(t, err)
			runs[i] = run
		}(i)
	}

	// let the callers pile up behind the first fetch
	require.Eventually(t, func() bool { return fetches.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
	for _, r := range runs {
		assert.Same(t, runs[0], r)
	}
	assert.Equal(t, []Status{StatusNotReady}, obs.calls)
}

func TestServiceSharedRunSurvivesCancelledCaller(t *testing.T) {
	var fetches atomic.Int32
	var fetchCancelled atomic.Bool
	release := make(chan struct{})
	source := evidence.SourceFunc(func(ctx context.Context, scopeID string) (*evidence.Bundle, error) {
		fetches.Add(1)
		<-release
		fetchCancelled.Store(ctx.Err() != nil)
		return &evidence.Bundle{Assets: []evidence.AssetRecord{ownerlessAsset()}}, nil
	})

	svc := NewService(source, nil, WithOptions(testOptions()))
	req := Request{CapabilityID: "governance_fundamentals", ScopeID: "sales"}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.Evaluate(ctxA, req)
		errA <- err
	}()
	require.Eventually(t, func() bool { return fetches.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		run *Run
		err error
	}
	resB := make(chan result, 1)
	go func() {
		run, err := svc.Evaluate(context.Background(), req)
		resB <- result{run, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, ErrEvaluationFailed)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	require.NotNil(t, b.run)
	assert.Equal(t, StatusNotReady, b.run.Status())
	assert.False(t, fetchCancelled.Load(), "shared fetch saw the first caller's cancellation")
}

func TestServiceRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Bool
	source := evidence.SourceFunc(func(ctx context.Context, scopeID string) (*evidence.Bundle, error) {
		called.Store(true)
		return &evidence.Bundle{}, nil
	})
	_, err := NewService(source, nil).Evaluate(ctx, Request{CapabilityID: "rag"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called.Load())
}

func TestServiceObservesFailures(t *testing.T) {
	obs := &recordingObserver{}
	svc := NewService(staticSource(), nil, WithObserver(obs))

	_, err := svc.Evaluate(context.Background(), Request{CapabilityID: "missing"})
	assert.ErrorIs(t, err, ErrUnknownCapability)
	assert.Equal(t, []Status{StatusError}, obs.calls)
}

func TestEvaluateAll(t *testing.T) {
	svc := NewService(staticSource(governedAsset("a")), nil, WithOptions(testOptions()), WithParallelism(2))

	entries, err := svc.EvaluateAll(context.Background(), "all")
	require.NoError(t, err)

	list := svc.Catalog().List()
	require.Len(t, entries, len(list))
	for i, e := range entries {
		assert.Equal(t, list[i].CapabilityID, e.CapabilityID)
		assert.NotNil(t, e.Run)
		assert.Empty(t, e.Error)
	}
	assert.Equal(t, StatusReady, entries[0].Status, "governance_fundamentals")
}

func TestEvaluateAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(staticSource(), nil)
	_, err := svc.EvaluateAll(ctx, "all")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServiceEvidence(t *testing.T) {
	svc := NewService(staticSource(governedAsset("a")), nil)
	bundle, err := svc.Evidence(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, bundle.Assets, 1)

	_, err = NewService(nil, nil).Evidence(context.Background(), "s")
	assert.Error(t, err)
}
