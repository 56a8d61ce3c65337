package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hpungsan/p3seq/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // for import (read files)
	PathCheckWrite                      // for export (write files)
)

// yearFilePattern matches the per-year CSV file name, e.g. sort3_2024.csv.
var yearFilePattern = regexp.MustCompile(`^sort3_(\d{4})\.csv$`)

// YearFileName returns the CSV file name holding one year.
func YearFileName(year int) string {
	return fmt.Sprintf("sort3_%d.csv", year)
}

// yearFromFileName extracts the year from a per-year CSV file name.
func yearFromFileName(name string) (int, bool) {
	m := yearFilePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

// ValidateDir checks an import or export directory:
// 1. No directory traversal (..)
// 2. Not a symlink
// 3. For reads, the directory must exist
//
// Export creates the directory when it is missing.
func ValidateDir(path string, mode PathCheckMode) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	info, err := os.Lstat(absPath)
	if os.IsNotExist(err) {
		if mode == PathCheckRead {
			return errors.NewNotFound(path)
		}
		return nil
	}
	if err != nil {
		return errors.NewInternal(err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	if !info.IsDir() {
		return errors.NewInvalidRequest("path must be a directory")
	}
	return nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms (e.g., user input)
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
