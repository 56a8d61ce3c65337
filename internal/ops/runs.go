package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/p3seq/internal/db"
)

// RunsInput contains parameters for the Runs operation.
type RunsInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// RunsOutput contains the result of the Runs operation.
type RunsOutput struct {
	Items      []db.Run   `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Runs lists collector runs, newest first.
func Runs(ctx context.Context, database *sql.DB, input RunsInput) (*RunsOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	items, total, err := db.ListRuns(ctx, database, limit, offset)
	if err != nil {
		return nil, err
	}

	return &RunsOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}
