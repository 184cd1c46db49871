package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mdlh/mdq/internal/evaluate"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the remediation plan for a capability",
	Long: `Evaluate a capability and print its phased remediation plan.

Gaps are grouped into workstreams and phases:
  MVP         HIGH severity gaps
  Expanded    MED severity gaps
  Hardening   LOW severity gaps

Each action carries the affected asset count and an effort bucket
(S up to 4 assets, M up to 20, L beyond).`,
	Example: `  mdq plan -c rag --format table
  mdq plan -c data_products -s default/snowflake/GOLD`,
	RunE: runPlan,
}

var (
	planCapability string
	planScope      string
)

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVarP(&planCapability, "capability", "c", "", "Capability id")
	planCmd.Flags().StringVarP(&planScope, "scope", "s", "", "Qualified-name prefix or glob (default: all assets)")
	planCmd.MarkFlagRequired("capability")
}

func runPlan(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	format, _, err := outputSettings(e.cfg)
	if err != nil {
		return err
	}

	run, err := e.service.Evaluate(cmd.Context(), evaluate.Request{
		CapabilityID: planCapability,
		ScopeID:      planScope,
	})
	if err != nil {
		return err
	}
	return writeOutput(cmd, format, run.Plan)
}
