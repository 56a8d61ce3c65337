// Package collect fetches per-year draw tables from the chart page and
// appends unseen draws to storage.
package collect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/hpungsan/p3seq/internal/config"
	"github.com/hpungsan/p3seq/internal/draw"
	"github.com/hpungsan/p3seq/internal/errors"
)

// Fetcher returns the draws of one year in source order.
type Fetcher interface {
	FetchYear(ctx context.Context, year int) ([]draw.Record, error)
}

// DefaultSettle is how long the table is given to redraw after a year is selected.
const DefaultSettle = 2 * time.Second

// BrowserFetcher drives a headless Chrome through the chart page. The table
// is filled by script after the year selector changes, so a plain HTTP GET
// does not see it.
type BrowserFetcher struct {
	URL      string
	Bin      string
	Headless bool
	Timeout  time.Duration
	Settle   time.Duration

	log *zap.Logger

	mu       sync.Mutex
	launch   *launcher.Launcher
	browser  *rod.Browser
	launched bool
}

// NewBrowserFetcher builds a fetcher from config. The browser is launched on
// first use and shared by later fetches until Close.
func NewBrowserFetcher(cfg *config.Config, log *zap.Logger) *BrowserFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &BrowserFetcher{
		URL:      cfg.SourceURL,
		Bin:      cfg.BrowserBin,
		Headless: !cfg.ShowBrowser,
		Timeout:  cfg.FetchTimeout(),
		Settle:   DefaultSettle,
		log:      log,
	}
}

// FetchYear loads the chart page, selects year and parses the table.
func (f *BrowserFetcher) FetchYear(ctx context.Context, year int) ([]draw.Record, error) {
	browser, err := f.connect()
	if err != nil {
		return nil, errors.NewSourceUnavailable(year, err)
	}

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	f.log.Debug("opening chart page", zap.Int("year", year), zap.String("url", f.URL))
	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: f.URL})
	if err != nil {
		return nil, errors.NewSourceUnavailable(year, fmt.Errorf("open page: %w", err))
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitLoad(); err != nil {
		return nil, errors.NewSourceUnavailable(year, fmt.Errorf("wait load: %w", err))
	}

	selector, err := page.Element("#year")
	if err != nil {
		return nil, errors.NewSourceUnavailable(year, fmt.Errorf("year selector: %w", err))
	}
	option := fmt.Sprintf(`option[value="%d"]`, year)
	if err := selector.Select([]string{option}, true, rod.SelectorTypeCSSSector); err != nil {
		return nil, errors.NewSourceUnavailable(year, fmt.Errorf("select year: %w", err))
	}

	if f.Settle > 0 {
		t := time.NewTimer(f.Settle)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.NewSourceUnavailable(year, ctx.Err())
		case <-t.C:
		}
	}

	table, err := page.Element("#" + TableID)
	if err != nil {
		return nil, errors.NewSourceUnavailable(year, fmt.Errorf("chart table: %w", err))
	}
	markup, err := table.HTML()
	if err != nil {
		return nil, errors.NewSourceUnavailable(year, fmt.Errorf("read table: %w", err))
	}

	return ParseTable(markup)
}

// Close shuts the browser down if it was launched.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.launched {
		return nil
	}
	err := f.browser.Close()
	f.launch.Cleanup()
	f.browser = nil
	f.launch = nil
	f.launched = false
	return err
}

func (f *BrowserFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.launched {
		return f.browser, nil
	}

	l := launcher.New().Headless(f.Headless)
	if f.Bin != "" {
		l = l.Bin(f.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	f.log.Info("browser launched", zap.Bool("headless", f.Headless))
	f.launch = l
	f.browser = browser
	f.launched = true
	return browser, nil
}
