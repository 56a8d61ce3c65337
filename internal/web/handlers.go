package web

import (
	"database/sql"
	_ "embed"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/p3seq/internal/config"
	"github.com/hpungsan/p3seq/internal/draw"
	"github.com/hpungsan/p3seq/internal/errors"
	"github.com/hpungsan/p3seq/internal/match"
	"github.com/hpungsan/p3seq/internal/ops"
)

//go:embed help.md
var helpText string

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	log      *zap.Logger
	renderer *Renderer
}

// HandleSearch handles GET /search: the query form plus results.
// Parameters: q, indicator (default all), mode (default forward), pad.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	indicator := q.Get("indicator")
	if indicator == "" {
		indicator = "all"
	}
	mode := q.Get("mode")
	if mode == "" {
		mode = string(match.Forward)
	}

	data := SearchPageData{
		PageData:   h.renderer.page("Search", "search"),
		Query:      query,
		Pad:        q.Get("pad"),
		Indicators: indicatorOptions(indicator),
		Modes:      modeOptions(mode),
		HasQuery:   query != "",
	}

	if query == "" {
		if wantsJSON(r) {
			h.renderer.renderError(w, r, errors.NewInvalidQuery("", "query is empty"))
			return
		}
		h.renderer.renderPage(w, r, "search", data)
		return
	}

	input := ops.SearchInput{
		Indicator: indicator,
		Query:     query,
		Mode:      mode,
		WindowPad: parsePadParam(r),
	}

	result, err := ops.Search(r.Context(), h.db, h.cfg, h.log, input)
	if err != nil {
		// A bad query is guidance, not a fault: keep the form on screen.
		var appErr *errors.Error
		if stderrors.As(err, &appErr) && appErr.Code == errors.ErrInvalidQuery && !wantsJSON(r) {
			data.Notice = appErr.Message
			h.renderer.renderPageStatus(w, r, http.StatusBadRequest, "search", data)
			return
		}
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data.Result = result
	h.renderer.renderPage(w, r, "search", data)
}

// HandleYears handles GET /years: stored years and draw counts.
func (h *Handlers) HandleYears(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Years(r.Context(), h.db, ops.YearsInput{Year: parseIntParam(r, "year", 0)})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "years", YearsPageData{
		PageData: h.renderer.page("Years", "years"),
		Years:    result.Years,
		Draws:    result.Draws,
	})
}

// HandleRuns handles GET /runs: collector and import history.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Runs(r.Context(), h.db, ops.RunsInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "runs", RunsPageData{
		PageData:   h.renderer.page("Runs", "runs"),
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleHelp handles GET /help.
func (h *Handlers) HandleHelp(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "help", HelpPageData{
		PageData: h.renderer.page("Help", "help"),
		Body:     renderMarkdown(helpText),
	})
}

// indicatorOptions lists "all" followed by every indicator, marking the selected one.
func indicatorOptions(selected string) []Option {
	opts := []Option{{Value: "all", Label: "all", Selected: selected == "all"}}
	for _, ind := range draw.AllIndicators {
		opts = append(opts, Option{
			Value:    string(ind),
			Label:    string(ind) + " " + ind.Label(),
			Selected: selected == string(ind),
		})
	}
	return opts
}

// modeOptions lists the search modes, marking the selected one.
func modeOptions(selected string) []Option {
	modes := []match.Mode{match.Forward, match.Reverse, match.Both}
	opts := make([]Option, len(modes))
	for i, m := range modes {
		opts[i] = Option{Value: string(m), Label: string(m), Selected: selected == string(m)}
	}
	return opts
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parsePadParam returns the pad parameter, or nil when absent or not a number.
func parsePadParam(r *http.Request) *int {
	s := strings.TrimSpace(r.URL.Query().Get("pad"))
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
