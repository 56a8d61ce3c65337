package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/p3seq/internal/collect"
	"github.com/hpungsan/p3seq/internal/errors"
)

type recordingCollector struct {
	calls []string
	year  int
}

func (c *recordingCollector) UpdateYear(_ context.Context, year int) (*collect.Result, error) {
	c.calls = append(c.calls, "year")
	c.year = year
	return &collect.Result{Kind: collect.KindUpdate}, nil
}

func (c *recordingCollector) UpdateCurrent(context.Context) (*collect.Result, error) {
	c.calls = append(c.calls, "current")
	return &collect.Result{Kind: collect.KindUpdate}, nil
}

func (c *recordingCollector) UpdateAll(context.Context) (*collect.Result, error) {
	c.calls = append(c.calls, "all")
	return &collect.Result{Kind: collect.KindUpdateAll}, nil
}

func (c *recordingCollector) Sync(context.Context) (*collect.Result, error) {
	c.calls = append(c.calls, "sync")
	return &collect.Result{Kind: collect.KindUpdate}, nil
}

func TestUpdate_Scopes(t *testing.T) {
	tests := []struct {
		input UpdateInput
		want  string
	}{
		{UpdateInput{}, "current"},
		{UpdateInput{Scope: ScopeCurrent}, "current"},
		{UpdateInput{Scope: ScopeYear, Year: 2019}, "year"},
		{UpdateInput{Scope: ScopeAll}, "all"},
		{UpdateInput{Scope: ScopeSync}, "sync"},
	}
	for _, tt := range tests {
		c := &recordingCollector{}
		if _, err := Update(context.Background(), c, tt.input); err != nil {
			t.Fatalf("Update(%+v) error = %v", tt.input, err)
		}
		if len(c.calls) != 1 || c.calls[0] != tt.want {
			t.Errorf("Update(%+v) calls = %v, want [%s]", tt.input, c.calls, tt.want)
		}
		if tt.want == "year" && c.year != 2019 {
			t.Errorf("year = %d, want 2019", c.year)
		}
	}
}

func TestUpdate_InvalidInput(t *testing.T) {
	for _, in := range []UpdateInput{{Scope: ScopeYear}, {Scope: "weekly"}} {
		_, err := Update(context.Background(), &recordingCollector{}, in)
		if !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("Update(%+v) error = %v, want INVALID_REQUEST", in, err)
		}
	}
}
