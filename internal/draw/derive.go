package draw

import "fmt"

// Derived holds the raw digits of a draw together with the values computed
// from them.
type Derived struct {
	Record
	Sum  int `json:"sum"`
	Tail int `json:"tail"`
	Gap  int `json:"gap"`
}

// Derive computes sum, tail and gap from the raw digits.
func Derive(r Record) (Derived, error) {
	if err := r.Validate(); err != nil {
		return Derived{}, err
	}
	sum := r.Hundred + r.Ten + r.Unit
	return Derived{
		Record: r,
		Sum:    sum,
		Tail:   sum % 10,
		Gap:    max(r.Hundred, r.Ten, r.Unit) - min(r.Hundred, r.Ten, r.Unit),
	}, nil
}

// DeriveSeries recomputes every record of a series from raw digits.
func DeriveSeries(s YearSeries) ([]Derived, error) {
	out := make([]Derived, len(s.Records))
	for i, r := range s.Records {
		d, err := Derive(r)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// Value returns the indicator's digit for a derived draw.
func (d Derived) Value(ind Indicator) (int, error) {
	switch ind {
	case Hundred:
		return d.Hundred, nil
	case Ten:
		return d.Ten, nil
	case Unit:
		return d.Unit, nil
	case Tail:
		return d.Tail, nil
	case Gap:
		return d.Gap, nil
	}
	return 0, fmt.Errorf("unknown indicator %q", ind)
}

// Values derives the per-record value sequence for an indicator, index for index.
func Values(s YearSeries, ind Indicator) ([]int, error) {
	if !ind.Valid() {
		return nil, fmt.Errorf("unknown indicator %q", ind)
	}
	out := make([]int, len(s.Records))
	for i, r := range s.Records {
		d, err := Derive(r)
		if err != nil {
			return nil, err
		}
		out[i], _ = d.Value(ind)
	}
	return out, nil
}
