package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/output"
)

var signalsCmd = &cobra.Command{
	Use:   "signals [asset]",
	Short: "Show the signal catalog or asset signal profiles",
	Long: `Without arguments or --scope, list the seven governance signals with their
severity and remediation workstream.

With --scope, map every asset in scope onto its tri-state signal profile.
With an asset argument (guid, qualified name or name, case-insensitive),
show that asset's profile only.

Values:
  true      The evidence was fetched and shows the signal
  false     The evidence was fetched and the signal is missing
  UNKNOWN   The evidence was never fetched`,
	Example: `  mdq signals
  mdq signals -s default/snowflake/GOLD --format table
  mdq signals ORDERS`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSignals,
}

var signalsScope string

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalsCmd.Flags().StringVarP(&signalsScope, "scope", "s", "", "Profile every asset in this scope")
}

func runSignals(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	format, _, err := outputSettings(e.cfg)
	if err != nil {
		return err
	}

	if len(args) == 0 && signalsScope == "" {
		return writeOutput(cmd, format, output.NewSignalCatalogView())
	}

	bundle, err := e.service.Evidence(cmd.Context(), signalsScope)
	if err != nil {
		return err
	}

	assets := bundle.Assets
	if len(args) == 1 {
		assets = findAssets(assets, args[0])
		if len(assets) == 0 {
			return fmt.Errorf("no asset matches %q", args[0])
		}
	}
	return writeOutput(cmd, format, output.NewAssetSignalsView(assets))
}

// findAssets returns the assets whose guid, qualified name or name equals
// query. Exact guid matches win over name matches.
func findAssets(assets []evidence.AssetRecord, query string) []evidence.AssetRecord {
	for _, a := range assets {
		if a.GUID == query {
			return []evidence.AssetRecord{a}
		}
	}

	var out []evidence.AssetRecord
	for _, a := range assets {
		if strings.EqualFold(a.QualifiedName, query) || strings.EqualFold(a.Name, query) {
			out = append(out, a)
		}
	}
	return out
}
