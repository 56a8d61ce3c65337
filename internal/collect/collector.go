package collect

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hpungsan/p3seq/internal/config"
	"github.com/hpungsan/p3seq/internal/db"
	"github.com/hpungsan/p3seq/internal/errors"
)

// Run kinds recorded in collect_runs.
const (
	KindUpdate    = "update"
	KindUpdateAll = "update-all"
	KindImport    = "import"
)

// YearResult is the outcome of collecting one year.
type YearResult struct {
	Year    int    `json:"year"`
	Fetched int    `json:"fetched"`
	Added   int    `json:"added"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of one collector run.
type Result struct {
	RunID  string       `json:"run_id"`
	Kind   string       `json:"kind"`
	Status string       `json:"status"`
	Added  int          `json:"added"`
	Years  []YearResult `json:"years"`
}

// Options tunes a Collector. Zero values fall back to config defaults.
type Options struct {
	FirstYear   int
	Concurrency int
	Interval    time.Duration
	Now         func() time.Time
}

// OptionsFromConfig maps config keys to collector options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FirstYear:   cfg.FirstYear,
		Concurrency: cfg.FetchConcurrency,
		Interval:    cfg.FetchInterval(),
	}
}

// Collector fetches years through a Fetcher and appends unseen draws.
type Collector struct {
	db        *sql.DB
	fetcher   Fetcher
	log       *zap.Logger
	firstYear int
	workers   int
	limiter   *rate.Limiter
	now       func() time.Time

	// Fetches run in parallel; SQLite writes do not.
	storeMu sync.Mutex
}

// New creates a Collector.
func New(database *sql.DB, fetcher Fetcher, log *zap.Logger, opts Options) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.FirstYear == 0 {
		opts.FirstYear = config.DefaultConfig().FirstYear
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	return &Collector{
		db:        database,
		fetcher:   fetcher,
		log:       log,
		firstYear: opts.FirstYear,
		workers:   opts.Concurrency,
		limiter:   rate.NewLimiter(limit, 1),
		now:       opts.Now,
	}
}

// UpdateYear fetches one year and appends its unseen draws.
func (c *Collector) UpdateYear(ctx context.Context, year int) (*Result, error) {
	run, err := c.startRun(ctx, KindUpdate)
	if err != nil {
		return nil, err
	}

	yr, fetchErr := c.collectYear(ctx, year)
	res := &Result{RunID: run.ID, Kind: run.Kind, Added: yr.Added, Years: []YearResult{yr}}
	res.Status = db.RunOK
	if fetchErr != nil {
		res.Status = db.RunFailed
	}
	if err := c.finishRun(context.WithoutCancel(ctx), run, res, fetchErr); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return res, fetchErr
	}
	return res, nil
}

// UpdateCurrent updates the current calendar year.
func (c *Collector) UpdateCurrent(ctx context.Context) (*Result, error) {
	return c.UpdateYear(ctx, c.now().Year())
}

// UpdateAll fetches every year from the first configured year through the
// current one. A failing year is logged and recorded; the others still run.
func (c *Collector) UpdateAll(ctx context.Context) (*Result, error) {
	current := c.now().Year()
	if current < c.firstYear {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("first_year %d is after the current year %d", c.firstYear, current))
	}

	run, err := c.startRun(ctx, KindUpdateAll)
	if err != nil {
		return nil, err
	}
	c.log.Info("full history update started",
		zap.String("run_id", run.ID),
		zap.Int("from", c.firstYear),
		zap.Int("to", current))

	var (
		mu      sync.Mutex
		results []YearResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for year := c.firstYear; year <= current; year++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := c.limiter.Wait(gctx); err != nil {
				return err
			}
			yr, _ := c.collectYear(gctx, year)
			mu.Lock()
			results = append(results, yr)
			mu.Unlock()
			return nil
		})
	}
	waitErr := g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Year < results[j].Year })
	res := &Result{RunID: run.ID, Kind: run.Kind, Years: results}
	failed := 0
	for _, yr := range results {
		res.Added += yr.Added
		if yr.Error != "" {
			failed++
		}
	}
	switch {
	case waitErr != nil || ctx.Err() != nil:
		res.Status = db.RunFailed
	case failed == 0:
		res.Status = db.RunOK
	case failed == len(results):
		res.Status = db.RunFailed
	default:
		res.Status = db.RunPartial
	}

	var runErr error
	if waitErr != nil {
		runErr = waitErr
	} else if ctx.Err() != nil {
		runErr = ctx.Err()
	}
	if err := c.finishRun(context.WithoutCancel(ctx), run, res, runErr); err != nil {
		return nil, err
	}
	c.log.Info("full history update finished",
		zap.String("run_id", run.ID),
		zap.String("status", res.Status),
		zap.Int("added", res.Added),
		zap.Int("failed_years", failed))
	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

// Sync backfills the whole history when the store is empty, otherwise it
// updates the current year.
func (c *Collector) Sync(ctx context.Context) (*Result, error) {
	n, err := db.CountDraws(ctx, c.db)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		c.log.Info("store is empty, running full history update")
		return c.UpdateAll(ctx)
	}
	return c.UpdateCurrent(ctx)
}

// collectYear fetches and stores one year without recording a run.
func (c *Collector) collectYear(ctx context.Context, year int) (YearResult, error) {
	yr := YearResult{Year: year}
	c.log.Info("fetching year", zap.Int("year", year))

	records, err := c.fetcher.FetchYear(ctx, year)
	if err != nil {
		c.log.Error("fetch failed", zap.Int("year", year), zap.Error(err))
		yr.Error = err.Error()
		return yr, err
	}
	yr.Fetched = len(records)
	if len(records) == 0 {
		c.log.Warn("no draws returned", zap.Int("year", year))
		return yr, nil
	}

	c.storeMu.Lock()
	added, err := db.AppendDraws(ctx, c.db, year, records, c.now().Unix())
	c.storeMu.Unlock()
	if err != nil {
		c.log.Error("store failed", zap.Int("year", year), zap.Error(err))
		yr.Error = err.Error()
		return yr, err
	}
	yr.Added = added
	if added == 0 {
		c.log.Info("no new draws", zap.Int("year", year), zap.Int("fetched", len(records)))
	} else {
		c.log.Info("year updated", zap.Int("year", year), zap.Int("fetched", len(records)), zap.Int("added", added))
	}
	return yr, nil
}

func (c *Collector) startRun(ctx context.Context, kind string) (*db.Run, error) {
	run := &db.Run{
		ID:        NewRunID(c.now()),
		Kind:      kind,
		StartedAt: c.now().Unix(),
		Status:    db.RunRunning,
	}
	if err := db.InsertRun(ctx, c.db, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (c *Collector) finishRun(ctx context.Context, run *db.Run, res *Result, runErr error) error {
	finished := c.now().Unix()
	run.FinishedAt = &finished
	run.Added = res.Added
	run.Status = res.Status
	run.Years = run.Years[:0]
	for _, yr := range res.Years {
		run.Years = append(run.Years, yr.Year)
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	return db.FinishRun(ctx, c.db, run)
}

// NewRunID returns a ULID stamped with t.
func NewRunID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
