// Package present turns match hits into context windows with a marked digit strip.
package present

import (
	"fmt"

	"github.com/hpungsan/p3seq/internal/draw"
	"github.com/hpungsan/p3seq/internal/match"
)

// DefaultWindowPad is the number of draws shown on each side of a hit.
const DefaultWindowPad = 3

// NoMatchMessage is the marker text for an indicator that was searched
// and produced no hits.
const NoMatchMessage = "no matches"

// Slot is one cell of the ten-slot digit strip.
type Slot struct {
	Digit       int  `json:"digit"`
	Highlighted bool `json:"highlighted"`
}

// Row is one windowed draw.
type Row struct {
	Index  int    `json:"index"`
	Issue  string `json:"issue"`
	Digits string `json:"digits"` // hundred, ten, unit concatenated
	Sum    int    `json:"sum"`
	Tail   int    `json:"tail"`
	Gap    int    `json:"gap"`
	Value  int    `json:"value"` // the indicator's digit for this draw
	InHit  bool   `json:"in_hit"`
	Strip  []Slot `json:"strip"`
}

// RenderedMatch is a hit plus its context window.
type RenderedMatch struct {
	Indicator draw.Indicator  `json:"indicator"`
	Year      int             `json:"year"`
	Issues    []string        `json:"issues"`
	Direction match.Direction `json:"direction"`
	Start     int             `json:"start"`
	End       int             `json:"end"`
	Rows      []Row           `json:"rows"`
}

// Section holds the results for one searched indicator. NoMatch is set when
// the indicator was searched and nothing was found, so callers can tell that
// apart from an indicator that was not searched at all.
type Section struct {
	Indicator draw.Indicator  `json:"indicator"`
	Label     string          `json:"label"`
	NoMatch   bool            `json:"no_match"`
	Message   string          `json:"message,omitempty"`
	Matches   []RenderedMatch `json:"matches"`
}

// NewSection wraps rendered matches for one indicator, applying the no-match marker.
func NewSection(ind draw.Indicator, matches []RenderedMatch) Section {
	s := Section{
		Indicator: ind,
		Label:     ind.Label(),
		Matches:   matches,
	}
	if len(matches) == 0 {
		s.NoMatch = true
		s.Message = NoMatchMessage
		s.Matches = []RenderedMatch{}
	}
	return s
}

// Render builds a RenderedMatch for every hit. Derived fields are recomputed
// from the raw digits of the owning year; nothing stored alongside the draws
// is trusted. A negative pad is treated as zero.
func Render(hits []match.Hit, ind draw.Indicator, byYear map[int]draw.YearSeries, pad int) ([]RenderedMatch, error) {
	if pad < 0 {
		pad = 0
	}
	out := make([]RenderedMatch, 0, len(hits))
	for _, h := range hits {
		series, ok := byYear[h.Year]
		if !ok {
			return nil, fmt.Errorf("no series loaded for year %d", h.Year)
		}
		if h.Start < 0 || h.End > series.Len() || h.Start >= h.End {
			return nil, fmt.Errorf("hit [%d,%d) out of range for year %d (%d draws)", h.Start, h.End, h.Year, series.Len())
		}

		derived, err := draw.DeriveSeries(series)
		if err != nil {
			return nil, err
		}

		lo, hi := Window(h, pad, len(derived))
		rows := make([]Row, 0, hi-lo+1)
		for i := lo; i <= hi; i++ {
			d := derived[i]
			v, err := d.Value(ind)
			if err != nil {
				return nil, err
			}
			inHit := h.Contains(i)
			rows = append(rows, Row{
				Index:  i,
				Issue:  d.Issue,
				Digits: d.Prize(),
				Sum:    d.Sum,
				Tail:   d.Tail,
				Gap:    d.Gap,
				Value:  v,
				InHit:  inHit,
				Strip:  Strip(v, inHit),
			})
		}

		out = append(out, RenderedMatch{
			Indicator: ind,
			Year:      h.Year,
			Issues:    h.Issues,
			Direction: h.Direction,
			Start:     h.Start,
			End:       h.End,
			Rows:      rows,
		})
	}
	return out, nil
}

// Window returns the inclusive index bounds [lo, hi] of the context window
// around h, clamped to a series of length n. The pad is capped at n first, so
// an oversized pad cannot overflow.
func Window(h match.Hit, pad, n int) (lo, hi int) {
	pad = min(max(pad, 0), n)
	lo = max(h.Start-pad, 0)
	hi = min(h.End-1+pad, n-1)
	return lo, hi
}

// Strip returns the ten slots 0..9. The slot equal to value is highlighted
// only when the draw is inside the hit.
func Strip(value int, inHit bool) []Slot {
	slots := make([]Slot, 10)
	for d := range slots {
		slots[d] = Slot{Digit: d, Highlighted: inHit && d == value}
	}
	return slots
}
