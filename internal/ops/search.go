package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/p3seq/internal/config"
	"github.com/hpungsan/p3seq/internal/db"
	"github.com/hpungsan/p3seq/internal/draw"
	"github.com/hpungsan/p3seq/internal/errors"
	"github.com/hpungsan/p3seq/internal/match"
	"github.com/hpungsan/p3seq/internal/present"
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Indicator string // one indicator name, or "all" (default)
	Query     string // required, digits only, at least 2
	Mode      string // forward (default), reverse, both
	WindowPad *int   // default: config window_pad
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Query     string            `json:"query"`
	Mode      match.Mode        `json:"mode"`
	WindowPad int               `json:"window_pad"`
	Years     int               `json:"years"`
	Sections  []present.Section `json:"sections"`
	TotalHits int               `json:"total_hits"`
}

// Search finds every contiguous run of draws whose indicator digits equal the
// query, for each selected indicator, and renders a context window around
// each. Draws are loaded fresh for every call.
func Search(ctx context.Context, database *sql.DB, cfg *config.Config, log *zap.Logger, input SearchInput) (*SearchOutput, error) {
	if log == nil {
		log = zap.NewNop()
	}

	raw := strings.TrimSpace(input.Query)
	if raw == "" {
		return nil, errors.NewInvalidQuery(raw, "query is empty")
	}
	q, err := match.ParseQuery(raw)
	if err != nil {
		return nil, errors.NewInvalidQuery(raw, err.Error())
	}

	indicators, err := draw.ParseSelection(input.Indicator)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	mode, err := match.ParseMode(input.Mode)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	pad := cfg.Pad()
	if input.WindowPad != nil {
		pad = *input.WindowPad
	}
	if pad < 0 {
		pad = 0
	}

	series, err := db.LoadAll(ctx, database)
	if err != nil {
		return nil, err
	}
	byYear := make(map[int]draw.YearSeries, len(series))
	for _, s := range series {
		byYear[s.Year] = s
	}

	out := &SearchOutput{
		Query:     q.String(),
		Mode:      mode,
		WindowPad: pad,
		Years:     len(series),
		Sections:  make([]present.Section, 0, len(indicators)),
	}
	for _, ind := range indicators {
		hits, err := match.FindAll(series, ind, q, mode)
		if err != nil {
			return nil, indicatorError(ind, err)
		}
		rendered, err := present.Render(hits, ind, byYear, pad)
		if err != nil {
			return nil, indicatorError(ind, err)
		}
		out.Sections = append(out.Sections, present.NewSection(ind, rendered))
		out.TotalHits += len(rendered)
	}

	log.Debug("search",
		zap.String("query", out.Query),
		zap.String("mode", string(mode)),
		zap.Int("indicators", len(indicators)),
		zap.Int("years", out.Years),
		zap.Int("hits", out.TotalHits))
	return out, nil
}

// indicatorError maps derivation failures to MissingIndicatorColumn and
// everything else to an internal error.
func indicatorError(ind draw.Indicator, err error) error {
	var digitErr *draw.DigitError
	if stderrors.As(err, &digitErr) {
		return errors.NewMissingIndicatorColumn(string(ind), err)
	}
	return errors.NewInternal(err)
}
