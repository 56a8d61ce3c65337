package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/p3seq/internal/collect"
	"github.com/hpungsan/p3seq/internal/config"
	"github.com/hpungsan/p3seq/internal/db"
	"github.com/hpungsan/p3seq/internal/draw"
	"github.com/hpungsan/p3seq/internal/errors"
)

// testSetup creates a temporary database and config for testing.
func testSetup(t *testing.T) (*sql.DB, *config.Config, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	cfg := config.DefaultConfig()

	cleanup := func() {
		database.Close()
	}

	return database, cfg, cleanup
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// seedYear stores one draw per prize for year.
func seedYear(t *testing.T, database *sql.DB, year int, prizes ...string) {
	t.Helper()
	records := make([]draw.Record, len(prizes))
	for i, p := range prizes {
		r, err := draw.ParsePrize(fmt.Sprintf("%d%03d", year, i+1), p)
		if err != nil {
			t.Fatalf("ParsePrize(%q) failed: %v", p, err)
		}
		records[i] = r
	}
	if _, err := db.AppendDraws(context.Background(), database, year, records, 1); err != nil {
		t.Fatalf("AppendDraws failed: %v", err)
	}
}

type fakeCollector struct {
	calls []string
	err   error
}

func (f *fakeCollector) result(kind string) (*collect.Result, error) {
	if f.err != nil {
		return &collect.Result{Kind: kind, Status: db.RunFailed}, f.err
	}
	return &collect.Result{RunID: "01FAKE", Kind: kind, Status: db.RunOK, Added: 2}, nil
}

func (f *fakeCollector) UpdateYear(_ context.Context, year int) (*collect.Result, error) {
	f.calls = append(f.calls, fmt.Sprintf("year:%d", year))
	return f.result(collect.KindUpdate)
}

func (f *fakeCollector) UpdateCurrent(context.Context) (*collect.Result, error) {
	f.calls = append(f.calls, "current")
	return f.result(collect.KindUpdate)
}

func (f *fakeCollector) UpdateAll(context.Context) (*collect.Result, error) {
	f.calls = append(f.calls, "all")
	return f.result(collect.KindUpdateAll)
}

func (f *fakeCollector) Sync(context.Context) (*collect.Result, error) {
	f.calls = append(f.calls, "sync")
	return f.result(collect.KindUpdate)
}

func TestHandleSearch(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedYear(t, database, 2024, "100", "400", "700", "200")

	h := NewHandlers(database, cfg, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantHits  float64
		wantError bool
		errorCode string
	}{
		{
			name:     "forward hit",
			args:     map[string]any{"query": "14", "indicator": "hundred"},
			wantHits: 1,
		},
		{
			name:     "reverse only",
			args:     map[string]any{"query": "41", "indicator": "hundred", "mode": "reverse"},
			wantHits: 1,
		},
		{
			name:     "forward misses reversed digits",
			args:     map[string]any{"query": "41", "indicator": "hundred"},
			wantHits: 0,
		},
		{
			name:      "missing query",
			args:      map[string]any{"indicator": "hundred"},
			wantError: true,
			errorCode: "INVALID_QUERY",
		},
		{
			name:      "single digit",
			args:      map[string]any{"query": "1"},
			wantError: true,
			errorCode: "INVALID_QUERY",
		},
		{
			name:      "unknown indicator",
			args:      map[string]any{"query": "14", "indicator": "thousand"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "unknown format",
			args:      map[string]any{"query": "14", "format": "xml"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "query of wrong type",
			args:      map[string]any{"query": 14},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSearch(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantError {
				assertErrorCode(t, result, tt.errorCode)
				return
			}

			output := parseOutput(t, result)
			if output["total_hits"] != tt.wantHits {
				t.Errorf("total_hits = %v, want %v", output["total_hits"], tt.wantHits)
			}
		})
	}
}

func TestHandleSearch_WindowPad(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedYear(t, database, 2024, "100", "200", "300", "400", "500", "600", "700")

	h := NewHandlers(database, cfg, nil, nil)
	result, err := h.HandleSearch(context.Background(), makeRequest(map[string]any{
		"query": "45", "indicator": "hundred", "window_pad": 1,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := parseOutput(t, result)
	sections := output["sections"].([]any)
	match := sections[0].(map[string]any)["matches"].([]any)[0].(map[string]any)
	if rows := match["rows"].([]any); len(rows) != 4 {
		t.Errorf("rows = %d, want 4", len(rows))
	}
}

func TestHandleSearch_Markdown(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedYear(t, database, 2024, "087", "551", "903")

	h := NewHandlers(database, cfg, nil, nil)
	result, err := h.HandleSearch(context.Background(), makeRequest(map[string]any{
		"query": "99", "format": "markdown",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}

	text := result.Content[0].(mcp.TextContent).Text
	if !strings.HasPrefix(text, "# 99 (forward): 0 matches in 1 years") {
		t.Errorf("unexpected heading: %q", text)
	}
	if got := strings.Count(text, "_no matches_"); got != len(draw.AllIndicators) {
		t.Errorf("no-match markers = %d, want %d", got, len(draw.AllIndicators))
	}
}

func TestHandleYears(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedYear(t, database, 2023, "111")
	seedYear(t, database, 2024, "222", "333")

	h := NewHandlers(database, cfg, nil, nil)
	ctx := context.Background()

	result, err := h.HandleYears(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)
	if output["draws"] != float64(3) {
		t.Errorf("draws = %v, want 3", output["draws"])
	}
	if years := output["years"].([]any); len(years) != 2 {
		t.Errorf("years = %d, want 2", len(years))
	}

	result, err = h.HandleYears(ctx, makeRequest(map[string]any{"year": 1999}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleRuns(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()
	for i, id := range []string{"R1", "R2", "R3"} {
		if err := db.InsertRun(ctx, database, &db.Run{ID: id, Kind: collect.KindUpdate, StartedAt: int64(i), Status: db.RunOK}); err != nil {
			t.Fatalf("InsertRun failed: %v", err)
		}
	}

	h := NewHandlers(database, cfg, nil, nil)
	result, err := h.HandleRuns(ctx, makeRequest(map[string]any{"limit": 2}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := parseOutput(t, result)
	items := output["items"].([]any)
	if len(items) != 2 || items[0].(map[string]any)["id"] != "R3" {
		t.Errorf("items = %v, want R3 first", items)
	}
	pagination := output["pagination"].(map[string]any)
	if pagination["has_more"] != true || pagination["total"] != float64(3) {
		t.Errorf("pagination = %v", pagination)
	}
}

func TestHandleUpdate(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		args map[string]any
		call string
	}{
		{map[string]any{}, "current"},
		{map[string]any{"scope": "year", "year": 2019}, "year:2019"},
		{map[string]any{"scope": "all"}, "all"},
		{map[string]any{"scope": "sync"}, "sync"},
	}
	for _, tt := range tests {
		fc := &fakeCollector{}
		h := NewHandlers(database, cfg, nil, fc)

		result, err := h.HandleUpdate(ctx, makeRequest(tt.args))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := parseOutput(t, result)
		if output["run_id"] != "01FAKE" {
			t.Errorf("run_id = %v", output["run_id"])
		}
		if len(fc.calls) != 1 || fc.calls[0] != tt.call {
			t.Errorf("args %v: calls = %v, want [%s]", tt.args, fc.calls, tt.call)
		}
	}

	t.Run("bad scope", func(t *testing.T) {
		h := NewHandlers(database, cfg, nil, &fakeCollector{})
		result, _ := h.HandleUpdate(ctx, makeRequest(map[string]any{"scope": "weekly"}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})

	t.Run("source failure", func(t *testing.T) {
		fc := &fakeCollector{err: errors.NewSourceUnavailable(2024, fmt.Errorf("timeout"))}
		h := NewHandlers(database, cfg, nil, fc)
		result, _ := h.HandleUpdate(ctx, makeRequest(map[string]any{}))
		assertErrorCode(t, result, "SOURCE_UNAVAILABLE")
	})

	t.Run("no collector", func(t *testing.T) {
		h := NewHandlers(database, cfg, nil, nil)
		result, _ := h.HandleUpdate(ctx, makeRequest(map[string]any{}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestServerRegistration(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	s := NewServer(database, cfg, nil, &fakeCollector{}, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := AllToolNames()
	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithoutCollector(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	tools := NewServer(database, cfg, nil, nil, "test").ListTools()
	if _, ok := tools["draw_update"]; ok {
		t.Error("draw_update should not be registered without a collector")
	}
	if _, ok := tools["draw_search"]; !ok {
		t.Error("draw_search should still be registered")
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTools = []string{"draw_update", "draw_runs", "draw_update", "no_such_tool"}
	tools := NewServer(database, cfg, nil, &fakeCollector{}, "test").ListTools()

	if len(tools) != 2 {
		t.Errorf("registered tool count = %d, want 2", len(tools))
	}
	for _, name := range []string{"draw_update", "draw_runs"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool registered: %s", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTools = AllToolNames()
	tools := NewServer(database, cfg, nil, &fakeCollector{}, "test").ListTools()
	if len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		unknown []string
	}{
		{"empty", nil, []string{}},
		{"all known", []string{"draw_search", "draw_update"}, []string{}},
		{"one unknown", []string{"draw_search", "capsule_store"}, []string{"capsule_store"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateDisabledTools(tt.input)
			if strings.Join(got, ",") != strings.Join(tt.unknown, ",") {
				t.Errorf("ValidateDisabledTools(%v) = %v, want %v", tt.input, got, tt.unknown)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	want := "draw_runs,draw_search,draw_update,draw_years"
	if got := strings.Join(AllToolNames(), ","); got != want {
		t.Errorf("AllToolNames() = %s, want %s", got, want)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("year 2019: %w", errors.NewSourceLayout("prize column not found"))

	r := errorResult(wrappedErr)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrSourceLayout) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrSourceLayout)
	}
	msg := errObj["message"].(string)
	if !strings.HasPrefix(msg, "year 2019: ") || !strings.HasSuffix(msg, "prize column not found") {
		t.Errorf("message should keep wrapper context, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewNotFound("year 1999"))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected error %s, got success", expectedCode)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)
	if errObj["code"] != expectedCode {
		t.Errorf("error code = %v, want %s", errObj["code"], expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if tc, ok := result.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}
