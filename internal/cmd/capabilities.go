package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdlh/mdq/internal/capability"
	"github.com/mdlh/mdq/internal/output"
)

var capabilitiesCmd = &cobra.Command{
	Use:     "capabilities [id]",
	Aliases: []string{"caps"},
	Short:   "List the capability catalog",
	Long: `List every capability with its required, critical and optional signals.

The catalog is the built-in set plus any capabilities declared under
"capabilities:" in .mdq/config.yaml. With an id, show only that capability.`,
	Example: `  mdq capabilities --format table
  mdq capabilities rag`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCapabilities,
}

func init() {
	rootCmd.AddCommand(capabilitiesCmd)
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	format, _, err := outputSettings(cfg)
	if err != nil {
		return err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}

	view := output.NewCatalogView(catalog)
	if len(args) == 1 {
		req, ok := catalog.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown capability: %s (known: %v)", args[0], ids(catalog))
		}
		view.Capabilities = []capability.Requirements{req}
	}
	return writeOutput(cmd, format, view)
}

func ids(c capability.Catalog) []string {
	list := c.List()
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.CapabilityID
	}
	return out
}
