package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mdlh/mdq/internal/config"
	"github.com/mdlh/mdq/internal/evidence"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .mdq directory and config",
	Long: `Initialize the .mdq directory and config.yaml in the current directory.

The config selects the evidence backend (a YAML/JSON file by default), the
scoring thresholds and output defaults. With --sample a small evidence file
is written next to it so that every command works straight away.

Examples:
  mdq init            # Write .mdq/config.yaml
  mdq init --sample   # Also write a sample assets.yaml
  mdq init --force    # Overwrite an existing config`,
	RunE: runInit,
}

var (
	initForce  bool
	initSample bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config")
	initCmd.Flags().BoolVar(&initSample, "sample", false, "Write a sample evidence file")
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	out := cmd.OutOrStdout()

	mdqDir := filepath.Join(cwd, config.ConfigDirName)
	cfgPath := filepath.Join(mdqDir, config.ConfigFileName)

	_, err = os.Stat(cfgPath)
	switch {
	case err == nil && !initForce:
		relPath, _ := filepath.Rel(cwd, mdqDir)
		fmt.Fprintf(out, "Already initialized at %s\n", relPath)
		return nil
	case err == nil:
		if err := os.Remove(cfgPath); err != nil {
			return fmt.Errorf("removing existing config: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking config path: %w", err)
	}

	written, err := config.SaveDefault(cwd)
	if err != nil {
		return err
	}
	relPath, _ := filepath.Rel(cwd, written)
	fmt.Fprintf(out, "Initialized mdq config at %s\n", relPath)

	if !initSample {
		return nil
	}

	evidencePath := filepath.Join(cwd, config.DefaultConfig().Evidence.Path)
	if _, err := os.Stat(evidencePath); err == nil {
		fmt.Fprintf(out, "Kept existing %s\n", filepath.Base(evidencePath))
		return nil
	}
	if err := evidence.WriteFile(evidencePath, sampleAssets()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote sample evidence to %s\n", filepath.Base(evidencePath))
	return nil
}

// sampleAssets is a small estate covering present, absent and unknown
// signals.
func sampleAssets() []evidence.AssetRecord {
	return []evidence.AssetRecord{
		{
			GUID:          "sample-orders",
			Name:          "ORDERS",
			QualifiedName: "default/snowflake/GOLD/PUBLIC/ORDERS",
			TypeName:      "Table",
			ConnectorName: "snowflake",
			Attributes: map[evidence.Attribute]interface{}{
				evidence.AttrOwnerUsers:      []string{"alice"},
				evidence.AttrDescription:     "One row per customer order, refreshed hourly from the OMS.",
				evidence.AttrHasLineage:      true,
				evidence.AttrCertificate:     "VERIFIED",
				evidence.AttrPopularity:      0.82,
				evidence.AttrQueryCount:      1200,
				evidence.AttrClassifications: []string{"PII"},
				evidence.AttrPolicyCount:     2,
				evidence.AttrMCMonitored:     true,
			},
		},
		{
			GUID:          "sample-customers",
			Name:          "CUSTOMERS",
			QualifiedName: "default/snowflake/GOLD/PUBLIC/CUSTOMERS",
			TypeName:      "Table",
			ConnectorName: "snowflake",
			Attributes: map[evidence.Attribute]interface{}{
				evidence.AttrOwnerUsers:      []string{},
				evidence.AttrOwnerGroups:     []string{},
				evidence.AttrDescription:     "Customers",
				evidence.AttrClassifications: []string{},
			},
		},
		{
			GUID:          "sample-raw-events",
			Name:          "RAW_EVENTS",
			QualifiedName: "default/snowflake/RAW/PUBLIC/RAW_EVENTS",
			TypeName:      "Table",
			ConnectorName: "snowflake",
			Attributes: map[evidence.Attribute]interface{}{
				evidence.AttrTags: []string{"raw"},
			},
		},
	}
}
