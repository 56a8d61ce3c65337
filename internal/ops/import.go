package ops

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/p3seq/internal/collect"
	"github.com/hpungsan/p3seq/internal/db"
	"github.com/hpungsan/p3seq/internal/draw"
	"github.com/hpungsan/p3seq/internal/errors"
)

// requiredColumns must be present in every imported file. sum, tail and gap
// are recomputed and ignored when present.
var requiredColumns = []string{"issue", "hundred", "ten", "unit"}

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Dir string // required: directory holding sort3_<year>.csv files
}

// ImportFile describes the outcome for one file.
type ImportFile struct {
	Year    int    `json:"year"`
	Path    string `json:"path"`
	Read    int    `json:"read"`
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	RunID string       `json:"run_id"`
	Files []ImportFile `json:"files"`
	Added int          `json:"added"`
}

// Import appends unseen draws from every sort3_<year>.csv in a directory,
// in file order. Files are processed by ascending year; the first bad file
// stops the import, keeping the years already stored.
func Import(ctx context.Context, database *sql.DB, log *zap.Logger, input ImportInput) (*ImportOutput, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := ValidateDir(input.Dir, PathCheckRead); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(input.Dir)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import directory: %w", err))
	}
	type yearFile struct {
		year int
		path string
	}
	var files []yearFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if year, ok := yearFromFileName(e.Name()); ok {
			files = append(files, yearFile{year: year, path: filepath.Join(input.Dir, e.Name())})
		}
	}
	if len(files) == 0 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("no sort3_<year>.csv files in %s", input.Dir))
	}
	sort.Slice(files, func(i, j int) bool { return files[i].year < files[j].year })

	now := time.Now()
	run := &db.Run{
		ID:        collect.NewRunID(now),
		Kind:      collect.KindImport,
		StartedAt: now.Unix(),
		Status:    db.RunRunning,
	}
	if err := db.InsertRun(ctx, database, run); err != nil {
		return nil, err
	}

	out := &ImportOutput{RunID: run.ID, Files: make([]ImportFile, 0, len(files))}
	var importErr error
	for _, f := range files {
		records, err := readYearFile(f.path)
		if err != nil {
			importErr = err
			break
		}
		added, err := db.AppendDraws(ctx, database, f.year, records, now.Unix())
		if err != nil {
			importErr = err
			break
		}
		out.Files = append(out.Files, ImportFile{
			Year:    f.year,
			Path:    f.path,
			Read:    len(records),
			Added:   added,
			Skipped: len(records) - added,
		})
		out.Added += added
		log.Info("year imported", zap.Int("year", f.year), zap.Int("read", len(records)), zap.Int("added", added))
	}

	finished := time.Now().Unix()
	run.FinishedAt = &finished
	run.Added = out.Added
	run.Status = db.RunOK
	for _, f := range out.Files {
		run.Years = append(run.Years, f.Year)
	}
	if importErr != nil {
		run.Status = db.RunFailed
		if len(out.Files) > 0 {
			run.Status = db.RunPartial
		}
		run.Error = importErr.Error()
		log.Error("import failed", zap.Error(importErr))
	}
	if err := db.FinishRun(context.WithoutCancel(ctx), database, run); err != nil {
		return nil, err
	}
	if importErr != nil {
		return out, importErr
	}
	return out, nil
}

// readYearFile parses one year file. Rows keep file order.
func readYearFile(path string) ([]draw.Record, error) {
	file, err := openFileNoFollowRead(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseYearCSV(file, path)
}

// parseYearCSV reads CSV with an optional UTF-8 BOM and a header row.
func parseYearCSV(r io.Reader, name string) ([]draw.Record, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(3); err == nil && bytes.Equal(head, []byte(utf8BOM)) {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewMissingIndicatorColumn("issue", fmt.Errorf("%s is empty", name))
	}
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s: %v", name, err))
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, errors.NewMissingIndicatorColumn(c, fmt.Errorf("%s has no %q column", name, c))
		}
	}

	var records []draw.Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("%s line %d: %v", name, line, err))
		}
		field := func(c string) string {
			if i := cols[c]; i < len(row) {
				return row[i]
			}
			return ""
		}
		rec, err := draw.ParseRecord(field("issue"), field("hundred"), field("ten"), field("unit"))
		if err != nil {
			return nil, errors.NewMissingIndicatorColumn("digits", fmt.Errorf("%s line %d: %w", name, line, err))
		}
		if rec.Issue == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("%s line %d: empty issue", name, line))
		}
		records = append(records, rec)
	}
	return records, nil
}
