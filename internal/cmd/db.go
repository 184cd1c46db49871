package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/output"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Evidence database commands",
	Long: `Commands for the sql evidence backends (sqlite, dolt, postgres).

The backend, dsn/path and table come from the evidence section of
.mdq/config.yaml.`,
}

var dbImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load an evidence file into the asset table",
	Long: `Read a YAML or JSON evidence file and upsert its assets into the configured
asset table, creating the table and any missing attribute columns.

Attributes an asset does not carry are stored as NULL and read back as
fetched-but-empty. On dolt the import is committed.`,
	Example: `  mdq db import assets.yaml
  mdq db import export.json --config prod/.mdq/config.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runDbImport,
}

var dbInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the asset table and its column mapping",
	Long:  `Show the backend, the asset table and which physical column each evidence attribute is read from.`,
	RunE:  runDbInfo,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbImportCmd)
	dbCmd.AddCommand(dbInfoCmd)
}

func runDbImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	assets, err := evidence.LoadFile(args[0])
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.Import(cmd.Context(), assets)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d assets into %s (%s)\n", n, st.Table(), st.Backend())
	return nil
}

// dbInfo is the output of db info.
type dbInfo struct {
	Backend  string            `yaml:"backend" json:"backend"`
	Table    string            `yaml:"table" json:"table"`
	Columns  map[string]string `yaml:"columns" json:"columns"`
	Unmapped []string          `yaml:"unmapped,omitempty" json:"unmapped,omitempty"`
}

func runDbInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	format, _, err := outputSettings(cfg)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		format = output.FormatYAML
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	cols, err := st.Columns(cmd.Context())
	if err != nil {
		return err
	}

	info := dbInfo{
		Backend: st.Backend(),
		Table:   st.Table(),
		Columns: make(map[string]string, len(cols)),
	}
	for attr, col := range cols {
		info.Columns[string(attr)] = col
	}
	for _, attr := range evidence.Attributes() {
		if _, ok := cols[attr]; !ok {
			info.Unmapped = append(info.Unmapped, string(attr))
		}
	}
	sort.Strings(info.Unmapped)

	return writeOutput(cmd, format, info)
}
