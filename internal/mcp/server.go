// Package mcp provides an MCP (Model Context Protocol) server for mdq.
// This allows AI agents to evaluate metadata readiness through MCP tools
// instead of CLI commands.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mdlh/mdq/internal/completeness"
	"github.com/mdlh/mdq/internal/evaluate"
	"github.com/mdlh/mdq/internal/gap"
	"github.com/mdlh/mdq/internal/logging"
	"github.com/mdlh/mdq/internal/output"
	"github.com/mdlh/mdq/internal/signal"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// Server wraps the MCP server with mdq-specific functionality
type Server struct {
	mcpServer    *server.MCPServer
	service      *evaluate.Service
	threshold    int
	tools        map[string]bool
	logger       *slog.Logger
	lastActivity time.Time
	timeout      time.Duration
	mu           sync.RWMutex
}

// Config holds server configuration
type Config struct {
	Tools   []string      // Which tools to expose (empty = all)
	Timeout time.Duration // Inactivity timeout (0 = no timeout)

	// CompletenessThreshold is the default for mdq_completeness
	CompletenessThreshold int
}

// AllTools lists all available tools
var AllTools = []string{
	"mdq_evaluate", "mdq_matrix", "mdq_gaps",
	"mdq_capabilities", "mdq_signals", "mdq_completeness",
}

// New creates a new MCP server over an evaluation service
func New(svc *evaluate.Service, cfg Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("mcp server needs an evaluation service")
	}

	mcpServer := server.NewMCPServer(
		"mdq",
		Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcpServer:    mcpServer,
		service:      svc,
		threshold:    cfg.CompletenessThreshold,
		tools:        make(map[string]bool),
		logger:       logging.New("mcp"),
		lastActivity: time.Now(),
		timeout:      cfg.Timeout,
	}
	if s.threshold <= 0 {
		s.threshold = completeness.DefaultThreshold
	}

	toolsToRegister := cfg.Tools
	if len(toolsToRegister) == 0 {
		toolsToRegister = AllTools
	}

	for _, name := range toolsToRegister {
		if err := s.registerTool(name); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", name, err)
		}
		s.tools[name] = true
	}

	return s, nil
}

// registerTool registers a single tool with the MCP server
func (s *Server) registerTool(name string) error {
	schema, ok := toolSchemaRegistry[name]
	if !ok {
		return fmt.Errorf("unknown tool: %s", name)
	}

	opts := []mcp.ToolOption{mcp.WithDescription(schema.Description)}
	for _, p := range schema.Parameters {
		propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		switch p.Type {
		case "number":
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		case "boolean":
			opts = append(opts, mcp.WithBoolean(p.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}

	s.mcpServer.AddTool(mcp.NewTool(name, opts...), s.handler(name))
	return nil
}

// handler adapts CallTool to an MCP tool handler. Tool failures are
// reported to the client as error results, not protocol errors.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.updateActivity()

		result, err := s.CallTool(ctx, name, req.GetArguments())
		if err != nil {
			s.logger.Warn("tool call failed", "tool", name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}

// ServeStdio starts the server using stdio transport
func (s *Server) ServeStdio() error {
	// Start timeout checker if timeout is set
	if s.timeout > 0 {
		go s.timeoutChecker()
	}

	return server.ServeStdio(s.mcpServer)
}

// timeoutChecker monitors for inactivity and exits if timeout exceeded
func (s *Server) timeoutChecker() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.RLock()
		elapsed := time.Since(s.lastActivity)
		s.mu.RUnlock()

		if elapsed > s.timeout {
			s.logger.Info("exiting after inactivity", "timeout", s.timeout)
			os.Exit(0)
		}
	}
}

// updateActivity updates the last activity timestamp
func (s *Server) updateActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// ListTools returns the registered tools in sorted order
func (s *Server) ListTools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]string, 0, len(s.tools))
	for t := range s.tools {
		tools = append(tools, t)
	}
	sort.Strings(tools)
	return tools
}

// ToolSchema describes a tool's name, description, and parameters.
type ToolSchema struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Parameters  []ParameterSchema `json:"parameters" yaml:"parameters"`
}

// ParameterSchema describes a single tool parameter.
type ParameterSchema struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
}

// toolSchemaRegistry holds the schema definitions for all tools. Tools are
// registered with the MCP server from these definitions.
var toolSchemaRegistry = map[string]ToolSchema{
	"mdq_evaluate": {
		Name:        "mdq_evaluate",
		Description: "Evaluate whether a scope's metadata is ready for a capability. Returns readiness, gaps, impact/quality scores and a phased remediation plan.",
		Parameters: []ParameterSchema{
			{Name: "capability_id", Type: "string", Description: "Capability to evaluate, e.g. rag or governance_fundamentals", Required: true},
			{Name: "scope_id", Type: "string", Description: "Qualified-name prefix or glob (default: all)"},
			{Name: "density", Type: "string", Description: "Detail level: sparse, medium, dense (default: medium)"},
		},
	},
	"mdq_matrix": {
		Name:        "mdq_matrix",
		Description: "Evaluate every capability for one scope and return the readiness matrix.",
		Parameters: []ParameterSchema{
			{Name: "scope_id", Type: "string", Description: "Qualified-name prefix or glob (default: all)"},
			{Name: "density", Type: "string", Description: "Detail level: sparse, medium, dense (default: medium)"},
		},
	},
	"mdq_gaps": {
		Name:        "mdq_gaps",
		Description: "List the metadata gaps blocking a capability, optionally filtered by severity or workstream.",
		Parameters: []ParameterSchema{
			{Name: "capability_id", Type: "string", Description: "Capability to evaluate", Required: true},
			{Name: "scope_id", Type: "string", Description: "Qualified-name prefix or glob (default: all)"},
			{Name: "severity", Type: "string", Description: "Only gaps of this severity: HIGH, MED, LOW"},
			{Name: "workstream", Type: "string", Description: "Only gaps in this workstream, e.g. OWNERSHIP"},
		},
	},
	"mdq_capabilities": {
		Name:        "mdq_capabilities",
		Description: "List the capability catalog with required and critical signals.",
	},
	"mdq_signals": {
		Name:        "mdq_signals",
		Description: "Without a scope, list the seven governance signals. With a scope, return each asset's tri-state signal profile.",
		Parameters: []ParameterSchema{
			{Name: "scope_id", Type: "string", Description: "Scope whose assets to profile"},
		},
	},
	"mdq_completeness": {
		Name:        "mdq_completeness",
		Description: "Score metadata completeness (0-100) for every asset in a scope and classify its adoption phase.",
		Parameters: []ParameterSchema{
			{Name: "scope_id", Type: "string", Description: "Qualified-name prefix or glob (default: all)"},
			{Name: "threshold", Type: "number", Description: "Completeness threshold (default: 50)"},
			{Name: "density", Type: "string", Description: "Detail level: sparse, medium, dense (default: medium)"},
		},
	},
}

// Schemas returns the schema of every available tool, sorted by name.
func Schemas() []ToolSchema {
	schemas := make([]ToolSchema, 0, len(toolSchemaRegistry))
	for _, s := range toolSchemaRegistry {
		schemas = append(schemas, s)
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// GetToolSchemas returns schemas for all registered tools, sorted by name.
func (s *Server) GetToolSchemas() []ToolSchema {
	names := s.ListTools()
	schemas := make([]ToolSchema, 0, len(names))
	for _, name := range names {
		if schema, ok := toolSchemaRegistry[name]; ok {
			schemas = append(schemas, schema)
		}
	}
	return schemas
}

// CallTool dispatches a tool call by name with the given arguments.
// Returns the JSON result string or an error.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	s.mu.RLock()
	registered := s.tools[name]
	s.mu.RUnlock()

	if !registered {
		return "", fmt.Errorf("unknown tool: %s (run 'mdq call --list' to see available tools)", name)
	}

	scope := stringArg(args, "scope_id")
	density, err := densityArg(args)
	if err != nil {
		return "", err
	}

	switch name {
	case "mdq_evaluate":
		capID := stringArg(args, "capability_id")
		if capID == "" {
			return "", fmt.Errorf("capability_id parameter is required")
		}
		return s.executeEvaluate(ctx, capID, scope, density)

	case "mdq_matrix":
		return s.executeMatrix(ctx, scope, density)

	case "mdq_gaps":
		capID := stringArg(args, "capability_id")
		if capID == "" {
			return "", fmt.Errorf("capability_id parameter is required")
		}
		return s.executeGaps(ctx, capID, scope, stringArg(args, "severity"), stringArg(args, "workstream"))

	case "mdq_capabilities":
		return toJSON(output.NewCatalogView(s.service.Catalog()))

	case "mdq_signals":
		return s.executeSignals(ctx, scope)

	case "mdq_completeness":
		threshold := s.threshold
		if t, ok := args["threshold"].(float64); ok && t > 0 {
			threshold = int(t)
		}
		return s.executeCompleteness(ctx, scope, threshold, density)

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (s *Server) executeEvaluate(ctx context.Context, capID, scope string, density output.Density) (string, error) {
	run, err := s.service.Evaluate(ctx, evaluate.Request{CapabilityID: capID, ScopeID: scope})
	if err != nil {
		return "", err
	}
	return toJSON(output.NewRunView(run, density))
}

func (s *Server) executeMatrix(ctx context.Context, scope string, density output.Density) (string, error) {
	entries, err := s.service.EvaluateAll(ctx, scope)
	if err != nil {
		return "", err
	}
	return toJSON(output.NewMatrixView(scope, entries, density))
}

func (s *Server) executeGaps(ctx context.Context, capID, scope, severity, workstream string) (string, error) {
	run, err := s.service.Evaluate(ctx, evaluate.Request{CapabilityID: capID, ScopeID: scope})
	if err != nil {
		return "", err
	}

	gaps := run.Gaps
	if severity != "" {
		sev, err := signal.ParseSeverity(severity)
		if err != nil {
			return "", err
		}
		gaps = gap.FilterBySeverity(gaps, sev)
	}
	if workstream != "" {
		ws, err := signal.ParseWorkstream(workstream)
		if err != nil {
			return "", err
		}
		gaps = gap.FilterByWorkstream(gaps, ws)
	}
	return toJSON(output.NewGapsView(run, gaps, output.DensityMedium))
}

func (s *Server) executeSignals(ctx context.Context, scope string) (string, error) {
	if scope == "" {
		return toJSON(output.NewSignalCatalogView())
	}
	bundle, err := s.service.Evidence(ctx, scope)
	if err != nil {
		return "", err
	}
	return toJSON(output.NewAssetSignalsView(bundle.Assets))
}

func (s *Server) executeCompleteness(ctx context.Context, scope string, threshold int, density output.Density) (string, error) {
	bundle, err := s.service.Evidence(ctx, scope)
	if err != nil {
		return "", err
	}
	results := completeness.ScoreAll(bundle.Assets, threshold)
	return toJSON(output.NewCompletenessView(scope, threshold, results, density))
}

// Helper functions

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func densityArg(args map[string]interface{}) (output.Density, error) {
	d := stringArg(args, "density")
	if d == "" {
		return output.DensityMedium, nil
	}
	return output.ParseDensity(d)
}

func toJSON(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
