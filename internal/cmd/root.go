// Package cmd contains all CLI commands for mdq.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is the current version of mdq
	Version = "0.1.0"

	// Global flags
	verbose       bool
	configPath    string
	forAgents     bool
	outputFormat  string
	outputDensity string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mdq",
	Short: "Metadata quality evaluation for AI readiness",
	Long: `mdq evaluates whether a data estate's metadata is ready for a capability
such as RAG, AI agents or text-to-SQL.

It reads asset evidence (from a YAML/JSON file or a sqlite, dolt or postgres
table), maps every asset onto seven tri-state governance signals, and reports
the gaps that block the capability, impact/quality scores per asset, a phased
remediation plan and an overall readiness verdict.

Signals are tri-state: a signal whose evidence was never fetched is UNKNOWN,
never assumed absent. UNKNOWN-heavy results mean "fetch more metadata", not
"fix the metadata".

Output Format:
  All commands output YAML by default with adjustable detail levels.
  Use --format to switch to json or table.
  Use --density to control detail level (sparse|medium|dense).

Main capabilities:
  - Evaluate one capability for a scope (evaluate, gaps, plan)
  - Evaluate every capability at once (matrix)
  - Inspect signal profiles and the capability catalog
  - Score metadata completeness and adoption phase
  - Serve results over HTTP or MCP

Global Flags:
  --config    Path to config file (default: .mdq/config.yaml, searched upward)
  --format    Output format: yaml (default) | json | table
  --density   Output detail level: sparse | medium (default) | dense

Examples:
  mdq init                                        # Create .mdq/config.yaml
  mdq evaluate -c rag -s default/snowflake/GOLD   # Is GOLD ready for RAG?
  mdq matrix -s default/snowflake/GOLD            # Every capability at once
  mdq gaps -c ai_agents --severity HIGH           # Blocking gaps only
  mdq signals ORDERS                              # One asset's signal profile
  mdq completeness --format table                 # Completeness scores

See 'mdq <command> --help' for command-specific options.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: .mdq/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "", "Output format (yaml|json|table; default from config)")
	rootCmd.PersistentFlags().StringVar(&outputDensity, "density", "", "Output density (sparse|medium|dense; default from config)")
	rootCmd.Flags().BoolVar(&forAgents, "for-agents", false, "Output machine-readable capability discovery JSON")

	// Set custom help function to intercept --for-agents flag
	originalHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if forAgents {
			outputAgentHelp(cmd)
			return
		}
		originalHelp(cmd, args)
	})
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if forAgents {
			outputAgentHelp(cmd)
			return nil
		}
		return cmd.Help()
	}
}

// CommandInfo represents a command for agent discovery
type CommandInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Usage       string        `json:"usage"`
	Flags       []FlagInfo    `json:"flags,omitempty"`
	Subcommands []CommandInfo `json:"subcommands,omitempty"`
	Examples    []string      `json:"examples,omitempty"`
}

// FlagInfo represents a command flag for agent discovery
type FlagInfo struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
}

// outputAgentHelp outputs machine-readable JSON describing all commands
func outputAgentHelp(cmd *cobra.Command) {
	root := buildCommandInfo(cmd.Root())

	output := map[string]interface{}{
		"version":      Version,
		"commands":     root.Subcommands,
		"global_flags": root.Flags,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.Encode(output)
}

// buildCommandInfo recursively builds command information for agent discovery
func buildCommandInfo(cmd *cobra.Command) CommandInfo {
	info := CommandInfo{
		Name:        cmd.Name(),
		Description: cmd.Short,
		Usage:       cmd.UseLine(),
	}

	// Collect flags
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		info.Flags = append(info.Flags, FlagInfo{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Description: f.Usage,
			Type:        f.Value.Type(),
			Default:     f.DefValue,
		})
	})

	// Collect subcommands
	for _, sub := range cmd.Commands() {
		if !sub.Hidden {
			info.Subcommands = append(info.Subcommands, buildCommandInfo(sub))
		}
	}

	// Extract examples from Example field if available
	if cmd.Example != "" {
		lines := strings.Split(cmd.Example, "\n")
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				info.Examples = append(info.Examples, trimmed)
			}
		}
	}

	return info
}
