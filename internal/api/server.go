// Package api exposes the evaluation service over HTTP as a JSON API.
//
// Routes:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /api/signals[?scope=]
//	GET  /api/capabilities
//	GET  /api/capabilities/{id}
//	POST /api/evaluations              {"capability_id", "scope_id"}
//	GET  /api/evaluations/matrix?scope=
//	GET  /api/completeness?scope=&threshold=
//
// Responses use the same views as the CLI's json output. The density query
// parameter (sparse, medium, dense) applies wherever a view supports it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mdlh/mdq/internal/completeness"
	"github.com/mdlh/mdq/internal/evaluate"
	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/logging"
	"github.com/mdlh/mdq/internal/output"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Config holds server settings.
type Config struct {
	// CompletenessThreshold is the default for /api/completeness
	CompletenessThreshold int

	// Metrics receives request metrics and backs /metrics. It should be the
	// same collector registered as the service's observer. Nil disables
	// /metrics.
	Metrics *Metrics

	Logger *slog.Logger
}

// Server routes HTTP requests to an evaluation service.
type Server struct {
	service   *evaluate.Service
	metrics   *Metrics
	threshold int
	logger    *slog.Logger
	router    chi.Router
}

// New builds the router.
func New(svc *evaluate.Service, cfg Config) *Server {
	s := &Server{
		service:   svc,
		metrics:   cfg.Metrics,
		threshold: cfg.CompletenessThreshold,
		logger:    cfg.Logger,
	}
	if s.threshold <= 0 {
		s.threshold = completeness.DefaultThreshold
	}
	if s.logger == nil {
		s.logger = logging.New("api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(limitBody)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/signals", s.handleSignals)
		api.Get("/capabilities", s.handleCapabilities)
		api.Get("/capabilities/{id}", s.handleCapability)
		api.Post("/evaluations", s.handleEvaluate)
		api.Get("/evaluations/matrix", s.handleMatrix)
		api.Get("/completeness", s.handleCompleteness)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, waiting at most shutdownTimeout for in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// evaluationRequest is the body of POST /api/evaluations.
type evaluationRequest struct {
	CapabilityID string `json:"capability_id"`
	ScopeID      string `json:"scope_id"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.CapabilityID == "" {
		writeError(w, http.StatusBadRequest, errors.New("capability_id is required"))
		return
	}
	density, ok := densityParam(w, r)
	if !ok {
		return
	}

	run, err := s.service.Evaluate(r.Context(), evaluate.Request{
		CapabilityID: req.CapabilityID,
		ScopeID:      req.ScopeID,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, output.NewRunView(run, density))
}

func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	density, ok := densityParam(w, r)
	if !ok {
		return
	}
	scope := r.URL.Query().Get("scope")

	entries, err := s.service.EvaluateAll(r.Context(), scope)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, output.NewMatrixView(scope, entries, density))
}

func (s *Server) handleCompleteness(w http.ResponseWriter, r *http.Request) {
	density, ok := densityParam(w, r)
	if !ok {
		return
	}
	scope := r.URL.Query().Get("scope")

	threshold := s.threshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("threshold must be an integer in 1..100, got %q", raw))
			return
		}
		threshold = n
	}

	bundle, err := s.service.Evidence(r.Context(), scope)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	results := completeness.ScoreAll(bundle.Assets, threshold)
	writeJSON(w, http.StatusOK, output.NewCompletenessView(scope, threshold, results, density))
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		writeJSON(w, http.StatusOK, output.NewSignalCatalogView())
		return
	}

	bundle, err := s.service.Evidence(r.Context(), scope)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, output.NewAssetSignalsView(bundle.Assets))
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, output.NewCatalogView(s.service.Catalog()))
}

func (s *Server) handleCapability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := s.service.Catalog().Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", evaluate.ErrUnknownCapability, id))
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// statusFor maps service errors to HTTP status codes: caller mistakes are
// 400, everything else is a failure of the evidence backend.
func statusFor(err error) int {
	switch {
	case errors.Is(err, evaluate.ErrUnknownCapability), errors.Is(err, evidence.ErrInvalidScope):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func densityParam(w http.ResponseWriter, r *http.Request) (output.Density, bool) {
	raw := r.URL.Query().Get("density")
	if raw == "" {
		return output.DensityMedium, true
	}
	d, err := output.ParseDensity(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return "", false
	}
	return d, true
}

// observe logs each request and counts it by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.observeRequest(route, status)
		}
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start))
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v before sending any header, so an unencodable value
// becomes a 500 rather than a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logging.New("api").Error("encoding response", "status", status, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		b, _ := json.Marshal(map[string]string{"error": "encoding response: " + err.Error()})
		_, _ = w.Write(b)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
