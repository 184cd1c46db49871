package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mdlh/mdq/internal/evaluate"
	"github.com/mdlh/mdq/internal/gap"
	"github.com/mdlh/mdq/internal/output"
	"github.com/mdlh/mdq/internal/signal"
)

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "List the gaps blocking a capability",
	Long: `Evaluate a capability and list its gaps.

Gap types:
  MISSING    The evidence was fetched and the signal is absent
  UNKNOWN    The evidence was never fetched; the signal cannot be judged

Severity is the signal's own severity, raised to HIGH when the capability
treats the signal as critical. Filters combine: --severity HIGH
--workstream OWNERSHIP lists only high-severity ownership gaps. The summary
is computed over the filtered list.`,
	Example: `  mdq gaps -c rag
  mdq gaps -c ai_agents --severity HIGH --format table
  mdq gaps -c governance_fundamentals --workstream OWNERSHIP
  mdq gaps -c rag --subject sample-orders`,
	RunE: runGaps,
}

var (
	gapsCapability string
	gapsScope      string
	gapsSeverity   string
	gapsWorkstream string
	gapsSubject    string
)

func init() {
	rootCmd.AddCommand(gapsCmd)
	gapsCmd.Flags().StringVarP(&gapsCapability, "capability", "c", "", "Capability id")
	gapsCmd.Flags().StringVarP(&gapsScope, "scope", "s", "", "Qualified-name prefix or glob (default: all assets)")
	gapsCmd.Flags().StringVar(&gapsSeverity, "severity", "", "Only gaps of this severity (HIGH|MED|LOW)")
	gapsCmd.Flags().StringVar(&gapsWorkstream, "workstream", "", "Only gaps in this workstream (e.g. OWNERSHIP)")
	gapsCmd.Flags().StringVar(&gapsSubject, "subject", "", "Only gaps for this asset id")
	gapsCmd.MarkFlagRequired("capability")
}

func runGaps(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	format, density, err := outputSettings(e.cfg)
	if err != nil {
		return err
	}

	// Validate filters before doing any work
	var (
		sev signal.Severity
		ws  signal.Workstream
	)
	if gapsSeverity != "" {
		if sev, err = signal.ParseSeverity(gapsSeverity); err != nil {
			return err
		}
	}
	if gapsWorkstream != "" {
		if ws, err = signal.ParseWorkstream(gapsWorkstream); err != nil {
			return err
		}
	}

	run, err := e.service.Evaluate(cmd.Context(), evaluate.Request{
		CapabilityID: gapsCapability,
		ScopeID:      gapsScope,
	})
	if err != nil {
		return err
	}

	gaps := run.Gaps
	if sev != "" {
		gaps = gap.FilterBySeverity(gaps, sev)
	}
	if ws != "" {
		gaps = gap.FilterByWorkstream(gaps, ws)
	}
	if gapsSubject != "" {
		gaps = gap.FilterBySubject(gaps, gapsSubject)
	}

	return writeOutput(cmd, format, output.NewGapsView(run, gaps, density))
}
