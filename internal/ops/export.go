package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/hpungsan/p3seq/internal/db"
	"github.com/hpungsan/p3seq/internal/draw"
	"github.com/hpungsan/p3seq/internal/errors"
)

// CSVHeader is the column order of exported year files.
var CSVHeader = []string{"issue", "prize", "hundred", "ten", "unit", "sum", "tail", "gap"}

// utf8BOM lets spreadsheet tools detect the encoding of exported files.
const utf8BOM = "\ufeff"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Dir  string // required: target directory (CLI defaults to <base>/exports)
	Year int    // optional: only this year
}

// ExportFile describes one written year file.
type ExportFile struct {
	Year  int    `json:"year"`
	Path  string `json:"path"`
	Draws int    `json:"draws"`
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Dir   string       `json:"dir"`
	Files []ExportFile `json:"files"`
	Draws int          `json:"draws"`
}

// Export writes one sort3_<year>.csv file per stored year. Derived columns
// are recomputed from the digits.
func Export(ctx context.Context, database *sql.DB, input ExportInput) (*ExportOutput, error) {
	if err := ValidateDir(input.Dir, PathCheckWrite); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(input.Dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	var series []draw.YearSeries
	if input.Year != 0 {
		s, err := db.LoadYear(ctx, database, input.Year)
		if err != nil {
			return nil, err
		}
		if s.Len() == 0 {
			return nil, errors.NewNotFound(fmt.Sprintf("year %d", input.Year))
		}
		series = []draw.YearSeries{s}
	} else {
		all, err := db.LoadAll(ctx, database)
		if err != nil {
			return nil, err
		}
		series = all
	}

	out := &ExportOutput{Dir: input.Dir, Files: make([]ExportFile, 0, len(series))}
	for _, s := range series {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}
		path := filepath.Join(input.Dir, YearFileName(s.Year))
		if err := writeYearFile(path, s); err != nil {
			return nil, err
		}
		out.Files = append(out.Files, ExportFile{Year: s.Year, Path: path, Draws: s.Len()})
		out.Draws += s.Len()
	}
	return out, nil
}

// writeYearFile writes s to a temp file and renames it into place so an
// existing file survives a failed export.
func writeYearFile(path string, s draw.YearSeries) error {
	derived, err := draw.DeriveSeries(s)
	if err != nil {
		return errors.NewMissingIndicatorColumn("digits", err)
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.WriteString(utf8BOM); err != nil {
		return errors.NewInternal(err)
	}
	w := csv.NewWriter(file)
	if err := w.Write(CSVHeader); err != nil {
		return errors.NewInternal(err)
	}
	for _, d := range derived {
		row := []string{
			d.Issue,
			d.Prize(),
			strconv.Itoa(d.Hundred),
			strconv.Itoa(d.Ten),
			strconv.Itoa(d.Unit),
			strconv.Itoa(d.Sum),
			strconv.Itoa(d.Tail),
			strconv.Itoa(d.Gap),
		}
		if err := w.Write(row); err != nil {
			return errors.NewInternal(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.NewInternal(err)
	}

	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows (choose an empty directory)")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}
