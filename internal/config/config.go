package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultSourceURL is the chart page the collector reads draw tables from.
const DefaultSourceURL = "https://www.00038.cn/zs_p3/chzs.htm"

// Config holds application configuration.
type Config struct {
	// WindowPad is the number of draws shown on each side of a match.
	// A pointer so that an explicit 0 in a config file overrides the default.
	WindowPad *int `json:"window_pad,omitempty"`

	// SourceURL is the chart page holding the per-year draw table.
	SourceURL string `json:"source_url,omitempty"`

	// FirstYear is the earliest year fetched by update-all.
	FirstYear int `json:"first_year,omitempty"`

	// ScheduleTime is the local "HH:MM" at which the daily refresh runs.
	ScheduleTime string `json:"schedule_time,omitempty"`

	// FetchTimeoutSeconds bounds a single year fetch (page load to table read).
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds,omitempty"`

	// FetchIntervalMillis is the minimum spacing between two year fetches.
	FetchIntervalMillis int `json:"fetch_interval_ms,omitempty"`

	// FetchConcurrency limits how many years update-all fetches at once.
	FetchConcurrency int `json:"fetch_concurrency,omitempty"`

	// BrowserBin is an optional path to a Chrome/Chromium binary.
	// Empty means the browser is located or downloaded automatically.
	BrowserBin string `json:"browser_bin,omitempty"`

	// ShowBrowser runs the browser with a visible window (debugging only).
	ShowBrowser bool `json:"show_browser,omitempty"`

	// LogDir is where day-stamped log files are written.
	// Relative paths are resolved against the base directory.
	LogDir string `json:"log_dir,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogRetention is the number of daily log files kept.
	LogRetention int `json:"log_retention,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	pad := 3
	return &Config{
		WindowPad:           &pad,
		SourceURL:           DefaultSourceURL,
		FirstYear:           2004,
		ScheduleTime:        "23:00",
		FetchTimeoutSeconds: 30,
		FetchIntervalMillis: 2000,
		FetchConcurrency:    1,
		LogDir:              "log",
		LogLevel:            "info",
		LogRetention:        3,
	}
}

// Pad returns the configured window pad, or 3 when unset.
func (c *Config) Pad() int {
	if c == nil || c.WindowPad == nil {
		return 3
	}
	return *c.WindowPad
}

// FetchTimeout returns FetchTimeoutSeconds as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// FetchInterval returns FetchIntervalMillis as a duration.
func (c *Config) FetchInterval() time.Duration {
	return time.Duration(c.FetchIntervalMillis) * time.Millisecond
}

// ScheduleClock parses ScheduleTime into hour and minute.
func (c *Config) ScheduleClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(c.ScheduleTime))
	if err != nil {
		return 0, 0, fmt.Errorf("schedule_time must be HH:MM, got %q", c.ScheduleTime)
	}
	return t.Hour(), t.Minute(), nil
}

// LogPath resolves LogDir against baseDir.
func (c *Config) LogPath(baseDir string) string {
	if c.LogDir == "" {
		return filepath.Join(baseDir, "log")
	}
	if filepath.IsAbs(c.LogDir) {
		return c.LogDir
	}
	return filepath.Join(baseDir, c.LogDir)
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.p3seq.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.p3seq) and repo (.p3seq) directories.
// Repo config is found by walking upward from startDir to find the nearest .p3seq/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .p3seq/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".p3seq", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		WindowPad:           base.WindowPad,
		SourceURL:           pickString(overlay.SourceURL, base.SourceURL),
		FirstYear:           pickInt(overlay.FirstYear, base.FirstYear),
		ScheduleTime:        pickString(overlay.ScheduleTime, base.ScheduleTime),
		FetchTimeoutSeconds: pickInt(overlay.FetchTimeoutSeconds, base.FetchTimeoutSeconds),
		FetchIntervalMillis: pickInt(overlay.FetchIntervalMillis, base.FetchIntervalMillis),
		FetchConcurrency:    pickInt(overlay.FetchConcurrency, base.FetchConcurrency),
		BrowserBin:          pickString(overlay.BrowserBin, base.BrowserBin),
		LogDir:              pickString(overlay.LogDir, base.LogDir),
		LogLevel:            pickString(overlay.LogLevel, base.LogLevel),
		LogRetention:        pickInt(overlay.LogRetention, base.LogRetention),
		DBMaxOpenConns:      pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:      pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}
	if overlay.WindowPad != nil {
		result.WindowPad = overlay.WindowPad
	}

	// Booleans: overlay wins if true, else base
	result.ShowBrowser = base.ShowBrowser || overlay.ShowBrowser

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
