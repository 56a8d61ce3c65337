package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/hpungsan/p3seq/internal/draw"
	"github.com/hpungsan/p3seq/internal/errors"
)

// YearInfo summarizes the stored draws of one year.
type YearInfo struct {
	Year       int    `json:"year"`
	Draws      int    `json:"draws"`
	FirstIssue string `json:"first_issue"`
	LastIssue  string `json:"last_issue"`
	FetchedAt  int64  `json:"fetched_at"` // latest fetch time among the year's draws
}

// AppendDraws stores the records of one year that are not yet present,
// keeping their relative order and placing them after every stored draw of
// that year. Returns the number of draws added.
func AppendDraws(ctx context.Context, db *sql.DB, year int, records []draw.Record, now int64) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	existing := make(map[string]bool)
	rows, err := tx.QueryContext(ctx, `SELECT issue FROM draws WHERE year = ?`, year)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	for rows.Next() {
		var issue string
		if err := rows.Scan(&issue); err != nil {
			rows.Close()
			return 0, errors.NewInternal(err)
		}
		existing[issue] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, errors.NewInternal(err)
	}
	rows.Close()

	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) FROM draws WHERE year = ?`, year).Scan(&seq); err != nil {
		return 0, errors.NewInternal(err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO draws (year, seq, issue, prize, hundred, ten, unit, sum, tail, gap, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer stmt.Close()

	added := 0
	for _, r := range records {
		if existing[r.Issue] {
			continue
		}
		d, err := draw.Derive(r)
		if err != nil {
			return 0, errors.NewMissingIndicatorColumn("digits", err)
		}
		seq++
		if _, err := stmt.ExecContext(ctx,
			year, seq, r.Issue, r.Prize(), r.Hundred, r.Ten, r.Unit,
			d.Sum, d.Tail, d.Gap, now,
		); err != nil {
			return 0, errors.NewInternal(err)
		}
		existing[r.Issue] = true
		added++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return added, nil
}

// LoadYear returns the draws of one year in issuance order.
// A year without draws yields an empty series, not an error.
func LoadYear(ctx context.Context, db *sql.DB, year int) (draw.YearSeries, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT issue, hundred, ten, unit
		FROM draws
		WHERE year = ?
		ORDER BY seq ASC
	`, year)
	if err != nil {
		return draw.YearSeries{}, errors.NewInternal(err)
	}
	defer rows.Close()

	s := draw.YearSeries{Year: year}
	for rows.Next() {
		var r draw.Record
		if err := rows.Scan(&r.Issue, &r.Hundred, &r.Ten, &r.Unit); err != nil {
			return draw.YearSeries{}, errors.NewInternal(err)
		}
		s.Records = append(s.Records, r)
	}
	if err := rows.Err(); err != nil {
		return draw.YearSeries{}, errors.NewInternal(err)
	}
	return s, nil
}

// LoadAll returns every stored year, ascending, each in issuance order.
func LoadAll(ctx context.Context, db *sql.DB) ([]draw.YearSeries, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT year, issue, hundred, ten, unit
		FROM draws
		ORDER BY year ASC, seq ASC
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []draw.YearSeries
	for rows.Next() {
		var (
			year int
			r    draw.Record
		)
		if err := rows.Scan(&year, &r.Issue, &r.Hundred, &r.Ten, &r.Unit); err != nil {
			return nil, errors.NewInternal(err)
		}
		if len(out) == 0 || out[len(out)-1].Year != year {
			out = append(out, draw.YearSeries{Year: year})
		}
		last := &out[len(out)-1]
		last.Records = append(last.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// ListYears summarizes every stored year, ascending.
func ListYears(ctx context.Context, db *sql.DB) ([]YearInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT d.year, COUNT(*), MAX(d.fetched_at),
			(SELECT issue FROM draws f WHERE f.year = d.year ORDER BY seq ASC LIMIT 1),
			(SELECT issue FROM draws l WHERE l.year = d.year ORDER BY seq DESC LIMIT 1)
		FROM draws d
		GROUP BY d.year
		ORDER BY d.year ASC
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := make([]YearInfo, 0)
	for rows.Next() {
		var y YearInfo
		if err := rows.Scan(&y.Year, &y.Draws, &y.FetchedAt, &y.FirstIssue, &y.LastIssue); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, y)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// CountDraws returns the total number of stored draws.
func CountDraws(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM draws`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// Run statuses
const (
	RunRunning = "running"
	RunOK      = "ok"
	RunPartial = "partial" // some years failed
	RunFailed  = "failed"
)

// Run is one collector invocation.
type Run struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt *int64 `json:"finished_at,omitempty"`
	Years      []int  `json:"years,omitempty"`
	Added      int    `json:"added"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// InsertRun records the start of a collector run.
func InsertRun(ctx context.Context, db *sql.DB, r *Run) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO collect_runs (id, kind, started_at, status)
		VALUES (?, ?, ?, ?)
	`, r.ID, r.Kind, r.StartedAt, r.Status)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// FinishRun stores the outcome of a collector run.
func FinishRun(ctx context.Context, db *sql.DB, r *Run) error {
	var yearsJSON sql.NullString
	if len(r.Years) > 0 {
		data, err := json.Marshal(r.Years)
		if err != nil {
			return errors.NewInternal(err)
		}
		yearsJSON = sql.NullString{String: string(data), Valid: true}
	}
	var finished sql.NullInt64
	if r.FinishedAt != nil {
		finished = sql.NullInt64{Int64: *r.FinishedAt, Valid: true}
	}

	result, err := db.ExecContext(ctx, `
		UPDATE collect_runs
		SET finished_at = ?, years_json = ?, added = ?, status = ?, error = ?
		WHERE id = ?
	`, finished, yearsJSON, r.Added, r.Status, toNullString(r.Error), r.ID)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound("run " + r.ID)
	}
	return nil
}

// ListRuns returns runs newest first, with the total count.
func ListRuns(ctx context.Context, db *sql.DB, limit, offset int) ([]Run, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collect_runs`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, kind, started_at, finished_at, years_json, added, status, error
		FROM collect_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	out := make([]Run, 0)
	for rows.Next() {
		var (
			r         Run
			finished  sql.NullInt64
			yearsJSON sql.NullString
			errText   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Kind, &r.StartedAt, &finished, &yearsJSON, &r.Added, &r.Status, &errText); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		if finished.Valid {
			r.FinishedAt = &finished.Int64
		}
		if yearsJSON.Valid && yearsJSON.String != "" {
			if err := json.Unmarshal([]byte(yearsJSON.String), &r.Years); err != nil {
				return nil, 0, errors.NewInternal(err)
			}
		}
		r.Error = errText.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// toNullString maps an empty string to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
