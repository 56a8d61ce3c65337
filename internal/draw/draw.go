package draw

import (
	"fmt"
	"strings"
)

// Record is one draw as stored: the issue identifier and the three raw digits.
// Sum, tail and gap are never stored on the record; use Derive.
type Record struct {
	// Issue is the draw number, unique within a year and order-preserving
	Issue string `json:"issue"`

	// Hundred is the first digit of the winning number
	Hundred int `json:"hundred"`

	// Ten is the second digit of the winning number
	Ten int `json:"ten"`

	// Unit is the third digit of the winning number
	Unit int `json:"unit"`
}

// YearSeries is the ordered list of draws for one calendar year.
// Index order is issuance order; nothing between load and search may reorder it.
type YearSeries struct {
	Year    int
	Records []Record
}

// Len returns the number of draws in the series.
func (s YearSeries) Len() int {
	return len(s.Records)
}

// Prize returns the three digits concatenated, e.g. "087".
func (r Record) Prize() string {
	return fmt.Sprintf("%d%d%d", r.Hundred, r.Ten, r.Unit)
}

// DigitError reports a record whose raw digits are not single digits,
// which makes every indicator underivable for that record.
type DigitError struct {
	Issue string
	Field string
	Value string
}

func (e *DigitError) Error() string {
	return fmt.Sprintf("issue %s: %s %q is not a single digit", e.Issue, e.Field, e.Value)
}

// ParseRecord builds a Record from the text form used by storage and CSV.
func ParseRecord(issue, hundred, ten, unit string) (Record, error) {
	r := Record{Issue: strings.TrimSpace(issue)}
	fields := []struct {
		name string
		raw  string
		dst  *int
	}{
		{"hundred", hundred, &r.Hundred},
		{"ten", ten, &r.Ten},
		{"unit", unit, &r.Unit},
	}
	for _, f := range fields {
		d, ok := parseDigit(f.raw)
		if !ok {
			return Record{}, &DigitError{Issue: r.Issue, Field: f.name, Value: f.raw}
		}
		*f.dst = d
	}
	return r, nil
}

// ParsePrize splits a three-character prize string such as "087".
func ParsePrize(issue, prize string) (Record, error) {
	prize = strings.TrimSpace(prize)
	if len(prize) != 3 {
		return Record{}, &DigitError{Issue: issue, Field: "prize", Value: prize}
	}
	return ParseRecord(issue, prize[0:1], prize[1:2], prize[2:3])
}

// Validate checks that all three digits are in 0-9.
func (r Record) Validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{{"hundred", r.Hundred}, {"ten", r.Ten}, {"unit", r.Unit}} {
		if f.v < 0 || f.v > 9 {
			return &DigitError{Issue: r.Issue, Field: f.name, Value: fmt.Sprint(f.v)}
		}
	}
	return nil
}

// IsDigits reports whether s is non-empty and consists only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseDigit(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 1 || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	return int(s[0] - '0'), true
}
