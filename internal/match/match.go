// Package match locates contiguous digit patterns in per-year draw series.
package match

import (
	"fmt"
	"strings"

	"github.com/hpungsan/p3seq/internal/draw"
)

// MinQueryLen is the shortest pattern accepted by ParseQuery.
const MinQueryLen = 2

// Query is a validated digit pattern.
type Query []int

// String returns the digits of the query, e.g. "8057".
func (q Query) String() string {
	var b strings.Builder
	for _, d := range q {
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}

// Reversed returns a new query with the digits in reverse order.
func (q Query) Reversed() Query {
	out := make(Query, len(q))
	for i, d := range q {
		out[len(q)-1-i] = d
	}
	return out
}

// ParseQuery validates s: non-empty, ASCII digits only, at least MinQueryLen long.
func ParseQuery(s string) (Query, error) {
	s = strings.TrimSpace(s)
	if !draw.IsDigits(s) {
		return nil, fmt.Errorf("query must contain only digits, got %q", s)
	}
	if len(s) < MinQueryLen {
		return nil, fmt.Errorf("query must be at least %d digits, got %d", MinQueryLen, len(s))
	}
	q := make(Query, len(s))
	for i := 0; i < len(s); i++ {
		q[i] = int(s[i] - '0')
	}
	return q, nil
}

// Mode selects which directions a query is matched in.
type Mode string

const (
	Forward Mode = "forward"
	Reverse Mode = "reverse"
	Both    Mode = "both"
)

// ParseMode resolves a mode name. Empty means Forward.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "forward", "fwd", "正序":
		return Forward, nil
	case "reverse", "rev", "倒序":
		return Reverse, nil
	case "both", "双向":
		return Both, nil
	}
	return "", fmt.Errorf("unknown mode %q (want one of: forward, reverse, both)", s)
}

func (m Mode) forward() bool { return m == Forward || m == Both }
func (m Mode) reverse() bool { return m == Reverse || m == Both }

// Direction labels the direction a Hit matched in.
type Direction string

const (
	DirForward Direction = "forward"
	DirReverse Direction = "reverse"
)

// Hit is one contiguous match within a single year. Start and End are a
// half-open index range into that year's series.
type Hit struct {
	Year      int       `json:"year"`
	Start     int       `json:"start"`
	End       int       `json:"end"`
	Direction Direction `json:"direction"`
	Issues    []string  `json:"issues"`
}

// Len returns the number of draws covered by the hit.
func (h Hit) Len() int {
	return h.End - h.Start
}

// Contains reports whether index i lies inside the hit.
func (h Hit) Contains(i int) bool {
	return i >= h.Start && i < h.End
}

// FindMatches scans one series for every window whose indicator values equal
// the query (forward) or the reversed query (reverse). Hits are ordered by
// start index; for the same start a forward hit precedes a reverse hit.
// Overlapping windows are all reported.
func FindMatches(series draw.YearSeries, ind draw.Indicator, q Query, mode Mode) ([]Hit, error) {
	if mode != Forward && mode != Reverse && mode != Both {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	values, err := draw.Values(series, ind)
	if err != nil {
		return nil, err
	}

	n := len(q)
	if n == 0 || len(values) < n {
		return nil, nil
	}
	rev := q.Reversed()

	var hits []Hit
	for i := 0; i+n <= len(values); i++ {
		window := values[i : i+n]
		if mode.forward() && equal(window, q) {
			hits = append(hits, newHit(series, i, n, DirForward))
		}
		if mode.reverse() && equal(window, rev) {
			hits = append(hits, newHit(series, i, n, DirReverse))
		}
	}
	return hits, nil
}

// FindAll runs FindMatches over each series in the order given and
// concatenates the results. A match never spans two series.
func FindAll(series []draw.YearSeries, ind draw.Indicator, q Query, mode Mode) ([]Hit, error) {
	var all []Hit
	for _, s := range series {
		hits, err := FindMatches(s, ind, q, mode)
		if err != nil {
			return nil, fmt.Errorf("year %d: %w", s.Year, err)
		}
		all = append(all, hits...)
	}
	return all, nil
}

func newHit(s draw.YearSeries, start, n int, dir Direction) Hit {
	issues := make([]string, n)
	for j := 0; j < n; j++ {
		issues[j] = s.Records[start+j].Issue
	}
	return Hit{
		Year:      s.Year,
		Start:     start,
		End:       start + n,
		Direction: dir,
		Issues:    issues,
	}
}

func equal(window []int, q Query) bool {
	for i := range window {
		if window[i] != q[i] {
			return false
		}
	}
	return true
}
