package mcp

import "github.com/mark3labs/mcp-go/mcp"

var searchToolDef = mcp.NewTool("draw_search",
	mcp.WithDescription("Find every run of consecutive draws within one year whose indicator digits spell the query, "+
		"and return each hit with a context window and a 0-9 digit strip. Matches never span two years."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Digits to look for, at least 2 (e.g. \"8057\")"),
	),
	mcp.WithString("indicator",
		mcp.Description("hundred, ten, unit, tail (digit sum mod 10), gap (max minus min), or all. Default all."),
		mcp.Enum("all", "tail", "gap", "hundred", "ten", "unit"),
	),
	mcp.WithString("mode",
		mcp.Description("forward matches the query as typed, reverse matches it backwards, both reports both. Default forward."),
		mcp.Enum("forward", "reverse", "both"),
	),
	mcp.WithNumber("window_pad",
		mcp.Description("Draws shown on each side of a hit. Default from config (3)."),
		mcp.Min(0),
	),
	mcp.WithString("format",
		mcp.Description("json (default) or markdown tables"),
		mcp.Enum("json", "markdown"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var yearsToolDef = mcp.NewTool("draw_years",
	mcp.WithDescription("List stored years with draw counts and first/last issue numbers."),
	mcp.WithNumber("year",
		mcp.Description("Only this year"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var runsToolDef = mcp.NewTool("draw_runs",
	mcp.WithDescription("List collector and import runs, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum items (default 20, max 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Items to skip"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var updateToolDef = mcp.NewTool("draw_update",
	mcp.WithDescription("Fetch draws from the chart page and append the ones not stored yet. "+
		"Existing draws are never changed."),
	mcp.WithString("scope",
		mcp.Description("current (default): this year; year: the given year; all: first_year through now; "+
			"sync: all when the store is empty, else current"),
		mcp.Enum("current", "year", "all", "sync"),
	),
	mcp.WithNumber("year",
		mcp.Description("Year to fetch when scope is year"),
	),
	mcp.WithDestructiveHintAnnotation(false),
	mcp.WithIdempotentHintAnnotation(true),
	mcp.WithOpenWorldHintAnnotation(true),
)
