package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mdlh/mdq/internal/evaluate"
	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/logging"
	"github.com/mdlh/mdq/internal/output"
)

var evaluateCmd = &cobra.Command{
	Use:     "evaluate",
	Aliases: []string{"eval"},
	Short:   "Evaluate one capability's readiness for a scope",
	Long: `Run the full evaluation pipeline for one capability over one scope.

Evidence is fetched for every asset in scope and mapped onto the seven
governance signals. Gaps are computed against the capability's required
signals, every asset is scored and placed in an impact/quality quadrant, a
phased remediation plan is generated, and the scope gets a readiness verdict.

Status values:
  READY           Critical signals pass and the readiness score meets the threshold
  NOT_READY       Gaps block the capability
  UNKNOWN_HEAVY   More than 35% of the gaps are UNKNOWN: fetch more metadata first
  ERROR           The evaluation could not run

A scope is a qualified-name prefix (default/snowflake/GOLD) or a glob
(default/snowflake/*/PUBLIC/**). An empty scope means every asset.

With --watch (file backend only) the evaluation re-runs whenever the
evidence file changes.`,
	Example: `  mdq evaluate -c rag -s default/snowflake/GOLD
  mdq evaluate -c governance_fundamentals --density dense --format json
  mdq evaluate -c ai_agents --watch --format table`,
	RunE: runEvaluate,
}

var (
	evalCapability string
	evalScope      string
	evalWatch      bool
)

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVarP(&evalCapability, "capability", "c", "", "Capability id (see 'mdq capabilities')")
	evaluateCmd.Flags().StringVarP(&evalScope, "scope", "s", "", "Qualified-name prefix or glob (default: all assets)")
	evaluateCmd.Flags().BoolVar(&evalWatch, "watch", false, "Re-evaluate when the evidence file changes")
	evaluateCmd.MarkFlagRequired("capability")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	format, density, err := outputSettings(e.cfg)
	if err != nil {
		return err
	}

	req := evaluate.Request{CapabilityID: evalCapability, ScopeID: evalScope}
	once := func(ctx context.Context) error {
		run, err := e.service.Evaluate(ctx, req)
		if err != nil {
			return err
		}
		return writeOutput(cmd, format, output.NewRunView(run, density))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := once(ctx); err != nil {
		return err
	}
	if !evalWatch {
		return nil
	}

	if e.cfg.Evidence.Backend != "file" {
		return fmt.Errorf("--watch needs the file evidence backend, not %q", e.cfg.Evidence.Backend)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.New("watch")
	path := e.cfg.EvidencePath()
	logger.Info("watching evidence file", "path", path)

	return evidence.Watch(ctx, path, evidence.DefaultDebounce, func() {
		e.cache.Invalidate("")
		fmt.Fprintln(cmd.OutOrStdout(), "---")
		if err := once(ctx); err != nil {
			logger.Error("re-evaluation failed", "error", err)
		}
	})
}
