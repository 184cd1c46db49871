package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdlh/mdq/internal/evaluate"
	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/logging"
)

func testAssets() []evidence.AssetRecord {
	return []evidence.AssetRecord{
		{
			GUID:          "asset-1",
			Name:          "orders",
			QualifiedName: "default/snowflake/sales/orders",
			Attributes: map[evidence.Attribute]interface{}{
				evidence.AttrOwnerUsers:  []string{},
				evidence.AttrOwnerGroups: []string{},
				evidence.AttrDescription: "Customer orders",
			},
		},
		{
			GUID:          "asset-2",
			Name:          "invoices",
			QualifiedName: "default/snowflake/finance/invoices",
			Attributes: map[evidence.Attribute]interface{}{
				evidence.AttrOwnerUsers:  []string{"alice"},
				evidence.AttrDescription: "Issued invoices with a long enough description to count",
			},
		},
	}
}

func newTestServer(t *testing.T, source evidence.Source) (*httptest.Server, *Metrics) {
	t.Helper()
	if source == nil {
		source = evidence.SourceFunc(func(ctx context.Context, scopeID string) (*evidence.Bundle, error) {
			if err := evidence.ValidateScope(scopeID); err != nil {
				return nil, err
			}
			return &evidence.Bundle{ScopeID: scopeID, Assets: evidence.FilterScope(scopeID, testAssets())}, nil
		})
	}
	metrics := NewMetrics()
	svc := evaluate.NewService(source, nil, evaluate.WithObserver(metrics))
	srv := New(svc, Config{Metrics: metrics, Logger: logging.Discard()})

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, metrics
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	return decodeBody(t, resp, wantStatus)
}

func postJSON(t *testing.T, url, body string, wantStatus int) map[string]interface{} {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return decodeBody(t, resp, wantStatus)
}

func decodeBody(t *testing.T, resp *http.Response, wantStatus int) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "body: %s", data)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	m := getJSON(t, ts.URL+"/healthz", http.StatusOK)
	assert.Equal(t, "ok", m["status"])
}

func TestCapabilities(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	m := getJSON(t, ts.URL+"/api/capabilities", http.StatusOK)
	assert.Len(t, m["capabilities"], 6)

	rag := getJSON(t, ts.URL+"/api/capabilities/rag", http.StatusOK)
	assert.Equal(t, "rag", rag["capability_id"])

	missing := getJSON(t, ts.URL+"/api/capabilities/nope", http.StatusNotFound)
	assert.Contains(t, missing["error"], "unknown capability")
}

func TestSignals(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	m := getJSON(t, ts.URL+"/api/signals", http.StatusOK)
	assert.Len(t, m["signals"], 7)

	scoped := getJSON(t, ts.URL+"/api/signals?scope=default/snowflake/sales", http.StatusOK)
	assets := scoped["assets"].([]interface{})
	require.Len(t, assets, 1)
	assert.Equal(t, "asset-1", assets[0].(map[string]interface{})["asset_id"])
}

func TestEvaluate(t *testing.T) {
	ts, metrics := newTestServer(t, nil)

	m := postJSON(t, ts.URL+"/api/evaluations",
		`{"capability_id": "governance_fundamentals", "scope_id": "default/snowflake/sales"}`, http.StatusOK)
	assert.Equal(t, "NOT_READY", m["status"])
	assert.Len(t, m["gaps"], 1)

	sparse := postJSON(t, ts.URL+"/api/evaluations?density=sparse",
		`{"capability_id": "governance_fundamentals"}`, http.StatusOK)
	assert.NotContains(t, sparse, "gaps")

	assert.Equal(t, 2.0, testutil.ToFloat64(
		metrics.evaluations.WithLabelValues("governance_fundamentals", "NOT_READY")))
	// asset-1 lacks owners in both runs
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.gaps.WithLabelValues("MISSING")))
}

func TestEvaluateNonFiniteUsage(t *testing.T) {
	source := evidence.SourceFunc(func(ctx context.Context, scopeID string) (*evidence.Bundle, error) {
		return &evidence.Bundle{ScopeID: scopeID, Assets: []evidence.AssetRecord{{
			GUID: "asset-1",
			Attributes: map[evidence.Attribute]interface{}{
				evidence.AttrOwnerUsers: []string{"alice"},
				evidence.AttrPopularity: "inf",
				evidence.AttrQueryCount: math.NaN(),
			},
		}}}, nil
	})
	ts, _ := newTestServer(t, source)

	m := postJSON(t, ts.URL+"/api/evaluations?density=dense",
		`{"capability_id": "rag"}`, http.StatusOK)
	assert.Contains(t, m, "scores")
}

func TestWriteJSONEncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"impact": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "encoding response")

	rec = httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]int{"n": 1})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"n": 1}`, rec.Body.String())
}

func TestEvaluateErrors(t *testing.T) {
	ts, metrics := newTestServer(t, nil)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"malformed body", "/api/evaluations", `{`, http.StatusBadRequest},
		{"missing capability", "/api/evaluations", `{"scope_id": "x"}`, http.StatusBadRequest},
		{"unknown capability", "/api/evaluations", `{"capability_id": "nope"}`, http.StatusBadRequest},
		{"invalid scope", "/api/evaluations", `{"capability_id": "rag", "scope_id": "default/[bad"}`, http.StatusBadRequest},
		{"invalid density", "/api/evaluations?density=smart", `{"capability_id": "rag"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := postJSON(t, ts.URL+tt.path, tt.body, tt.status)
			assert.NotEmpty(t, m["error"])
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.evaluations.WithLabelValues("unknown", "ERROR")))
}

func TestEvaluateSourceFailure(t *testing.T) {
	ts, _ := newTestServer(t, evidence.SourceFunc(func(ctx context.Context, scopeID string) (*evidence.Bundle, error) {
		return nil, errors.New("warehouse unreachable")
	}))

	m := postJSON(t, ts.URL+"/api/evaluations", `{"capability_id": "rag"}`, http.StatusBadGateway)
	assert.Contains(t, m["error"], "evaluation failed")
	assert.Contains(t, m["error"], "warehouse unreachable")
}

func TestMatrix(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	m := getJSON(t, ts.URL+"/api/evaluations/matrix?scope=default&density=sparse", http.StatusOK)
	assert.Equal(t, "default", m["scope_id"])
	assert.Equal(t, 6.0, m["total"])
}

func TestCompleteness(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	m := getJSON(t, ts.URL+"/api/completeness?scope=default", http.StatusOK)
	assert.Equal(t, 2.0, m["assets"])
	assert.Equal(t, 50.0, m["threshold"])

	custom := getJSON(t, ts.URL+"/api/completeness?threshold=10", http.StatusOK)
	assert.Equal(t, 10.0, custom["threshold"])

	getJSON(t, ts.URL+"/api/completeness?threshold=abc", http.StatusBadRequest)
	getJSON(t, ts.URL+"/api/completeness?threshold=101", http.StatusBadRequest)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	getJSON(t, ts.URL+"/healthz", http.StatusOK)
	postJSON(t, ts.URL+"/api/evaluations", `{"capability_id": "rag"}`, http.StatusOK)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := string(data)
	for _, want := range []string{
		"mdq_evaluations_total",
		"mdq_evaluation_duration_seconds",
		`mdq_http_requests_total{code="200",route="/healthz"} 1`,
	} {
		assert.Contains(t, body, want)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(evaluate.ErrUnknownCapability))
	assert.Equal(t, http.StatusBadRequest, statusFor(evidence.ErrInvalidScope))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.Canceled))
	assert.Equal(t, http.StatusBadGateway, statusFor(errors.New("boom")))
}
