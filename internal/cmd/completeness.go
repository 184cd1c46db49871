package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdlh/mdq/internal/completeness"
	"github.com/mdlh/mdq/internal/output"
)

var completenessCmd = &cobra.Command{
	Use:   "completeness",
	Short: "Score metadata completeness per asset",
	Long: `Score every asset in scope from 0 to 100 on weighted metadata criteria and
classify the adoption phase it is in.

Weights:
  certificate verified      25
  owner assigned            20
  description > 100 chars   15
  readme attached           10
  glossary terms linked     10
  tags or classifications    5
  data quality configured    5

Phases:
  Seeding              below 20: bootstrap with automation and templates
  Gamification         20 to 49: drive contributions with goals and recognition
  Operationalization   50 and above: embed stewardship into workflows

An asset is complete when its score reaches the threshold (default 50).`,
	Example: `  mdq completeness --format table
  mdq completeness -s default/snowflake/GOLD --threshold 60
  mdq completeness --incomplete --density dense`,
	RunE: runCompleteness,
}

var (
	completenessScope      string
	completenessThreshold  int
	completenessIncomplete bool
)

func init() {
	rootCmd.AddCommand(completenessCmd)
	completenessCmd.Flags().StringVarP(&completenessScope, "scope", "s", "", "Qualified-name prefix or glob (default: all assets)")
	completenessCmd.Flags().IntVar(&completenessThreshold, "threshold", 0, "Completeness threshold (default from config)")
	completenessCmd.Flags().BoolVar(&completenessIncomplete, "incomplete", false, "Only list assets below the threshold")
}

func runCompleteness(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	format, density, err := outputSettings(e.cfg)
	if err != nil {
		return err
	}

	threshold := e.cfg.Completeness.Threshold
	if completenessThreshold != 0 {
		threshold = completenessThreshold
	}
	if threshold < 1 || threshold > 100 {
		return fmt.Errorf("threshold must be in 1..100, got %d", threshold)
	}

	bundle, err := e.service.Evidence(cmd.Context(), completenessScope)
	if err != nil {
		return err
	}

	results := completeness.ScoreAll(bundle.Assets, threshold)
	if completenessIncomplete {
		kept := results[:0]
		for _, r := range results {
			if !r.IsComplete {
				kept = append(kept, r)
			}
		}
		results = kept
	}
	return writeOutput(cmd, format, output.NewCompletenessView(completenessScope, threshold, results, density))
}
