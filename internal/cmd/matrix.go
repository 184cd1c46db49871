package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mdlh/mdq/internal/output"
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Evaluate every capability for a scope",
	Long: `Evaluate every capability in the catalog against one scope and show the
readiness matrix.

Capabilities are evaluated concurrently over a single evidence fetch. A
capability that fails is reported with status ERROR; the others still run.
Dense output nests each capability's full run.`,
	Example: `  mdq matrix -s default/snowflake/GOLD --format table
  mdq matrix --density dense --format json`,
	RunE: runMatrix,
}

var matrixScope string

func init() {
	rootCmd.AddCommand(matrixCmd)
	matrixCmd.Flags().StringVarP(&matrixScope, "scope", "s", "", "Qualified-name prefix or glob (default: all assets)")
}

func runMatrix(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	format, density, err := outputSettings(e.cfg)
	if err != nil {
		return err
	}

	entries, err := e.service.EvaluateAll(cmd.Context(), matrixScope)
	if err != nil {
		return err
	}
	return writeOutput(cmd, format, output.NewMatrixView(matrixScope, entries, density))
}
