package draw

import (
	"fmt"
	"strings"
)

// Indicator selects which per-draw digit is compared against a query.
type Indicator string

const (
	Hundred Indicator = "hundred"
	Ten     Indicator = "ten"
	Unit    Indicator = "unit"
	Tail    Indicator = "tail" // last digit of the digit sum
	Gap     Indicator = "gap"  // max digit minus min digit
)

// AllIndicators is the order used when every indicator is searched.
var AllIndicators = []Indicator{Tail, Gap, Hundred, Ten, Unit}

// aliases maps accepted spellings, including the labels of the original
// chart site, to indicators.
var aliases = map[string]Indicator{
	"hundred": Hundred, "h": Hundred, "百位": Hundred,
	"ten": Ten, "t": Ten, "十位": Ten,
	"unit": Unit, "u": Unit, "个位": Unit,
	"tail": Tail, "尾数": Tail, "和尾": Tail,
	"gap": Gap, "span": Gap, "跨度": Gap,
}

// ParseIndicator resolves an indicator name or alias.
func ParseIndicator(s string) (Indicator, error) {
	if ind, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return ind, nil
	}
	return "", fmt.Errorf("unknown indicator %q (want one of: hundred, ten, unit, tail, gap)", s)
}

// ParseSelection resolves "all" (or "全部", or empty) to AllIndicators and
// anything else to a single indicator.
func ParseSelection(s string) ([]Indicator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "全部":
		out := make([]Indicator, len(AllIndicators))
		copy(out, AllIndicators)
		return out, nil
	}
	ind, err := ParseIndicator(s)
	if err != nil {
		return nil, err
	}
	return []Indicator{ind}, nil
}

// Label returns the Chinese chart label for the indicator.
func (i Indicator) Label() string {
	switch i {
	case Hundred:
		return "百位"
	case Ten:
		return "十位"
	case Unit:
		return "个位"
	case Tail:
		return "尾数"
	case Gap:
		return "跨度"
	}
	return string(i)
}

// Valid reports whether i is one of the five known indicators.
func (i Indicator) Valid() bool {
	switch i {
	case Hundred, Ten, Unit, Tail, Gap:
		return true
	}
	return false
}
