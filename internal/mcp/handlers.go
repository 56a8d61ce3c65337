package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/p3seq/internal/config"
	"github.com/hpungsan/p3seq/internal/errors"
	"github.com/hpungsan/p3seq/internal/ops"
	"github.com/hpungsan/p3seq/internal/present"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db        *sql.DB
	cfg       *config.Config
	log       *zap.Logger
	collector ops.Collector
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, log *zap.Logger, collector ops.Collector) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{db: db, cfg: cfg, log: log, collector: collector}
}

// Request types for each tool

// SearchRequest represents the arguments for draw_search.
type SearchRequest struct {
	Query     string `json:"query"`
	Indicator string `json:"indicator,omitempty"`
	Mode      string `json:"mode,omitempty"`
	WindowPad *int   `json:"window_pad,omitempty"`
	Format    string `json:"format,omitempty"`
}

// YearsRequest represents the arguments for draw_years.
type YearsRequest struct {
	Year int `json:"year,omitempty"`
}

// RunsRequest represents the arguments for draw_runs.
type RunsRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// UpdateRequest represents the arguments for draw_update.
type UpdateRequest struct {
	Scope string `json:"scope,omitempty"`
	Year  int    `json:"year,omitempty"`
}

// Handler implementations

// HandleSearch handles the draw_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Format != "" && input.Format != "json" && input.Format != "markdown" {
		return errorResult(errors.NewInvalidRequest(fmt.Sprintf("unknown format %q (want json or markdown)", input.Format))), nil
	}

	result, err := ops.Search(ctx, h.db, h.cfg, h.log, ops.SearchInput{
		Indicator: input.Indicator,
		Query:     input.Query,
		Mode:      input.Mode,
		WindowPad: input.WindowPad,
	})
	if err != nil {
		return errorResult(err), nil
	}

	if input.Format == "markdown" {
		var b strings.Builder
		fmt.Fprintf(&b, "# %s (%s): %d matches in %d years\n\n", result.Query, result.Mode, result.TotalHits, result.Years)
		if err := present.FormatMarkdown(&b, result.Sections); err != nil {
			return errorResult(errors.NewInternal(err)), nil
		}
		return mcp.NewToolResultText(b.String()), nil
	}

	return successResult(result)
}

// HandleYears handles the draw_years tool call.
func (h *Handlers) HandleYears(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[YearsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Years(ctx, h.db, ops.YearsInput{Year: input.Year})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRuns handles the draw_runs tool call.
func (h *Handlers) HandleRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Runs(ctx, h.db, ops.RunsInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleUpdate handles the draw_update tool call. A run where some years
// failed is still a success; the per-year errors are in the result.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.collector == nil {
		return errorResult(errors.NewInvalidRequest("draw_update is not available: no collector configured")), nil
	}

	input, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Update(ctx, h.collector, ops.UpdateInput{
		Scope: input.Scope,
		Year:  input.Year,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		message := appErr.Message
		// Keep context added by wrapping, e.g. "2019: SOURCE_UNAVAILABLE: ..."
		if prefix, ok := strings.CutSuffix(err.Error(), appErr.Error()); ok && prefix != "" {
			message = prefix + message
		}
		errorObj := map[string]any{
			"code":    appErr.Code,
			"message": message,
			"status":  appErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if appErr.Code != errors.ErrInternal && appErr.Details != nil {
			errorObj["details"] = appErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
