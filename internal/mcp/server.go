// Package mcp exposes draw search, the stored years, the run history and the
// collector as MCP tools over stdio.
package mcp

import (
	"database/sql"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/p3seq/internal/config"
	"github.com/hpungsan/p3seq/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc

	// needsCollector tools are skipped when no collector is wired.
	needsCollector bool
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"draw_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"draw_years": {
		def:     yearsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleYears },
	},
	"draw_runs": {
		def:     runsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuns },
	},
	"draw_update": {
		def:            updateToolDef,
		handler:        func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdate },
		needsCollector: true,
	},
}

// AllToolNames returns a sorted list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the draw tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration, and
// draw_update is only offered when a collector is given.
func NewServer(db *sql.DB, cfg *config.Config, log *zap.Logger, collector ops.Collector, version string) *server.MCPServer {
	if log == nil {
		log = zap.NewNop()
	}

	s := server.NewMCPServer(
		"p3seq",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(db, cfg, log, collector)

	for _, name := range ValidateDisabledTools(cfg.DisabledTools) {
		log.Warn("unknown tool in disabled_tools", zap.String("tool", name))
	}
	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] || (entry.needsCollector && collector == nil) {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, log *zap.Logger, collector ops.Collector, version string) error {
	s := NewServer(db, cfg, log, collector, version)
	return server.ServeStdio(s)
}
