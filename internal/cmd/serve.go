package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mdlh/mdq/internal/api"
	"github.com/mdlh/mdq/internal/evaluate"
	"github.com/mdlh/mdq/internal/logging"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the evaluation API over HTTP",
	Long: `Start an HTTP server exposing evaluations as a JSON API.

Routes:
  GET  /healthz
  GET  /metrics                           Prometheus metrics
  GET  /api/signals[?scope=]              Signal catalog or asset profiles
  GET  /api/capabilities                  Capability catalog
  GET  /api/capabilities/{id}             One capability
  POST /api/evaluations                   {"capability_id": "...", "scope_id": "..."}
  GET  /api/evaluations/matrix?scope=     Every capability for a scope
  GET  /api/completeness?scope=&threshold=

Responses accept ?density=sparse|medium|dense. Unknown capabilities and
malformed scopes are 400; evidence backend failures are 502.

The server shuts down gracefully on SIGINT/SIGTERM.`,
	Example: `  mdq serve
  mdq serve --addr 127.0.0.1:9090`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	metrics := api.NewMetrics()
	e, err := newEnv(evaluate.WithObserver(metrics))
	if err != nil {
		return err
	}
	defer e.Close()

	addr := serveAddr
	if addr == "" {
		addr = e.cfg.Server.Addr
	}

	srv := api.New(e.service, api.Config{
		CompletenessThreshold: e.cfg.Completeness.Threshold,
		Metrics:               metrics,
		Logger:                logging.New("api"),
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, addr, e.cfg.Server.ShutdownTimeout)
}
