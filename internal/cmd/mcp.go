package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mdlh/mdq/internal/logging"
	"github.com/mdlh/mdq/internal/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI agent integration",
	Long: `Start an MCP (Model Context Protocol) server over stdio.

This lets AI agents evaluate metadata readiness through MCP tools instead of
spawning CLI commands. Stdout carries the protocol; logs go to stderr.

Available Tools:
  mdq_evaluate       Readiness, gaps, scores and plan for one capability
  mdq_matrix         Readiness of every capability for a scope
  mdq_gaps           Gaps for a capability, filtered by severity/workstream
  mdq_capabilities   The capability catalog
  mdq_signals        Signal catalog or per-asset signal profiles
  mdq_completeness   Completeness scores and adoption phases

Examples:
  mdq mcp                               # Start with all tools
  mdq mcp --tools evaluate,gaps         # Start with specific tools only
  mdq mcp --timeout 30m                 # Exit after 30 minutes idle
  mdq mcp --list-tools                  # Show available tools`,
	RunE: runMCP,
}

var (
	mcpTools     string
	mcpTimeout   string
	mcpListTools bool
)

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVar(&mcpTools, "tools", "", "Comma-separated list of tools to expose (default: all)")
	mcpCmd.Flags().StringVar(&mcpTimeout, "timeout", "0", "Inactivity timeout (0 for no timeout)")
	mcpCmd.Flags().BoolVar(&mcpListTools, "list-tools", false, "List available tools")
}

func runMCP(cmd *cobra.Command, args []string) error {
	if mcpListTools {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Available MCP tools:")
		fmt.Fprintln(out)
		for _, t := range mcp.AllTools {
			fmt.Fprintf(out, "  %s\n", t)
		}
		return nil
	}

	timeout, err := parseDuration(mcpTimeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}

	var tools []string
	if mcpTools != "" {
		for _, t := range strings.Split(mcpTools, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				tools = append(tools, normalizeToolName(t))
			}
		}
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	server, err := mcp.New(e.service, mcp.Config{
		Tools:                 tools,
		Timeout:               timeout,
		CompletenessThreshold: e.cfg.Completeness.Threshold,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Log startup info to stderr (stdout is for MCP protocol)
	logger := logging.New("mcp")
	logger.Info("starting MCP server", "tools", server.ListTools(), "timeout", timeout)
	fmt.Fprintf(os.Stderr, "mdq mcp: serving %d tools on stdio\n", len(server.ListTools()))

	return server.ServeStdio()
}

func parseDuration(s string) (time.Duration, error) {
	if s == "0" || s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
