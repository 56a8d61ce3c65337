package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	filePrefix = "p3seq_"
	fileSuffix = ".log"
	dayLayout  = "20060102"
)

// DayFile is a zapcore.WriteSyncer that appends to dir/p3seq_YYYYMMDD.log,
// switching files when the local date changes. After each switch only the
// newest keep files are left in dir.
type DayFile struct {
	dir  string
	keep int
	now  func() time.Time

	mu  sync.Mutex
	f   *os.File
	day string
}

// NewDayFile returns a DayFile writing into dir. keep <= 0 disables pruning.
func NewDayFile(dir string, keep int) *DayFile {
	return &DayFile{dir: dir, keep: keep, now: time.Now}
}

// FileName returns the log file name for t.
func FileName(t time.Time) string {
	return filePrefix + t.Format(dayLayout) + fileSuffix
}

// Write appends p to the current day's file.
func (w *DayFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := w.now().Format(dayLayout)
	if w.f == nil || day != w.day {
		if err := w.open(day); err != nil {
			return 0, err
		}
	}
	return w.f.Write(p)
}

// Sync flushes the current file.
func (w *DayFile) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	return w.f.Sync()
}

// Close closes the current file.
func (w *DayFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *DayFile) open(day string) error {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	name := filepath.Join(w.dir, filePrefix+day+fileSuffix)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.f = f
	w.day = day
	return Prune(w.dir, w.keep)
}

// Prune removes all but the newest keep day files from dir. Files that do not
// follow the p3seq_YYYYMMDD.log pattern are left alone.
func Prune(dir string, keep int) error {
	if keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var days []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if _, err := time.Parse(dayLayout, stamp); err != nil {
			continue
		}
		days = append(days, name)
	}
	if len(days) <= keep {
		return nil
	}

	// YYYYMMDD sorts lexically
	sort.Strings(days)
	for _, name := range days[:len(days)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
