package ops

import (
	"context"
	"fmt"

	"github.com/hpungsan/p3seq/internal/collect"
	"github.com/hpungsan/p3seq/internal/errors"
)

// Collector is the acquisition surface used by Update.
type Collector interface {
	UpdateYear(ctx context.Context, year int) (*collect.Result, error)
	UpdateCurrent(ctx context.Context) (*collect.Result, error)
	UpdateAll(ctx context.Context) (*collect.Result, error)
	Sync(ctx context.Context) (*collect.Result, error)
}

// Update scopes
const (
	ScopeCurrent = "current"
	ScopeYear    = "year"
	ScopeAll     = "all"
	ScopeSync    = "sync"
)

// UpdateInput contains parameters for the Update operation.
type UpdateInput struct {
	Scope string // current (default), year, all, sync
	Year  int    // required when Scope is year
}

// Update refreshes stored draws from the source.
func Update(ctx context.Context, c Collector, input UpdateInput) (*collect.Result, error) {
	switch input.Scope {
	case "", ScopeCurrent:
		return c.UpdateCurrent(ctx)
	case ScopeYear:
		if input.Year < 1900 || input.Year > 9999 {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("year must be a four-digit year, got %d", input.Year))
		}
		return c.UpdateYear(ctx, input.Year)
	case ScopeAll:
		return c.UpdateAll(ctx)
	case ScopeSync:
		return c.Sync(ctx)
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown scope %q (want one of: current, year, all, sync)", input.Scope))
}
