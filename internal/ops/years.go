package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hpungsan/p3seq/internal/db"
	"github.com/hpungsan/p3seq/internal/errors"
)

// YearsInput contains parameters for the Years operation.
type YearsInput struct {
	Year int // optional: only this year; unknown year is NOT_FOUND
}

// YearsOutput contains the result of the Years operation.
type YearsOutput struct {
	Years []db.YearInfo `json:"years"`
	Draws int           `json:"draws"`
}

// Years summarizes the stored draw history per year.
func Years(ctx context.Context, database *sql.DB, input YearsInput) (*YearsOutput, error) {
	years, err := db.ListYears(ctx, database)
	if err != nil {
		return nil, err
	}

	if input.Year != 0 {
		var picked []db.YearInfo
		for _, y := range years {
			if y.Year == input.Year {
				picked = append(picked, y)
			}
		}
		if len(picked) == 0 {
			return nil, errors.NewNotFound(fmt.Sprintf("year %d", input.Year))
		}
		years = picked
	}

	out := &YearsOutput{Years: years}
	for _, y := range years {
		out.Draws += y.Draws
	}
	return out, nil
}
