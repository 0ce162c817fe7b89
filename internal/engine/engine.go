// Package engine runs one daily update: it walks the source registry in
// order, discovers article stubs on each source and feeds them through the
// item pipeline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gyeonginblue/dailyfeed/internal/config"
	"github.com/gyeonginblue/dailyfeed/internal/fetcher"
	"github.com/gyeonginblue/dailyfeed/internal/observability"
	"github.com/gyeonginblue/dailyfeed/internal/parser"
	"github.com/gyeonginblue/dailyfeed/internal/pipeline"
	"github.com/gyeonginblue/dailyfeed/internal/sources"
	"github.com/gyeonginblue/dailyfeed/internal/storage"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// State represents where the run currently is.
type State int32

const (
	StateIdle      State = 0
	StatePerSource State = 1
	StatePerItem   State = 2
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePerSource:
		return "per_source"
	case StatePerItem:
		return "per_item"
	default:
		return "unknown"
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RendererFactory starts the browser used by rendering sources.
type RendererFactory func() (fetcher.Renderer, error)

// Report is the outcome of one run.
type Report struct {
	RunID   string
	Stats   observability.Stats
	Elapsed time.Duration
}

// Engine is the run orchestrator.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	sources []*sources.Source

	pages       fetcher.Fetcher
	newRenderer RendererFactory
	store       storage.RecordStore
	images      pipeline.ImageSource
	ledger      storage.Ledger
	listing     *parser.ListingExtractor
	detail      *parser.DetailExtractor
	sleep       SleepFunc
	now         func() time.Time

	state atomic.Int32
}

// New creates an Engine. Fetcher, store and images must be set before Run.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:     cfg,
		logger:  logger.With("component", "engine"),
		ledger:  storage.NopLedger{},
		listing: parser.NewListingExtractor(&cfg.Run, logger),
		detail:  parser.NewDetailExtractor(&cfg.Run, logger),
		sleep:   sleepContext,
		now:     time.Now,
	}
	e.newRenderer = func() (fetcher.Renderer, error) {
		bf, err := fetcher.NewBrowserFetcher(cfg, logger)
		if err != nil {
			return nil, err
		}
		return bf, nil
	}
	return e
}

// SetSources sets the sources to process, in order.
func (e *Engine) SetSources(srcs []*sources.Source) { e.sources = srcs }

// SetFetcher sets the plain HTTP page fetcher.
func (e *Engine) SetFetcher(f fetcher.Fetcher) { e.pages = f }

// SetRendererFactory replaces how the browser is started.
func (e *Engine) SetRendererFactory(f RendererFactory) { e.newRenderer = f }

// SetStore sets the record store articles are written to.
func (e *Engine) SetStore(s storage.RecordStore) { e.store = s }

// SetImages sets the lead image downloader.
func (e *Engine) SetImages(i pipeline.ImageSource) { e.images = i }

// SetLedger sets where item outcomes and the run summary are recorded.
func (e *Engine) SetLedger(l storage.Ledger) { e.ledger = l }

// SetSleep replaces the delay function used between items and sources.
func (e *Engine) SetSleep(fn SleepFunc) { e.sleep = fn }

// SetClock replaces the time source used for record timestamps.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// GetState returns the current run state.
func (e *Engine) GetState() State {
	return State(e.state.Load())
}

// Run performs one daily update. Per-source and per-item failures are
// logged and counted; only a failure to start the browser, a missing
// collaborator or cancellation of ctx is returned.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if e.pages == nil || e.store == nil || e.images == nil {
		return nil, errors.New("engine: fetcher, store and images must be set")
	}

	report := &Report{RunID: uuid.NewString()}
	start := time.Now()
	logger := e.logger.With("run_id", report.RunID)

	logger.Info("daily update starting",
		"sources", len(e.sources),
		"row_cap", e.cfg.Run.RowCap,
		"item_cap", e.cfg.Run.ItemCap,
	)

	renderer, err := e.startRenderer(logger)
	if err != nil {
		return nil, err
	}
	if renderer != nil {
		defer func() {
			if err := renderer.Close(); err != nil {
				logger.Error("browser close error", "error", err)
			}
		}()
	}

	p := e.buildPipeline(renderer)
	seen := NewURLSet(len(e.sources) * e.cfg.Run.ItemCap)

	defer e.state.Store(int32(StateIdle))
	for i, src := range e.sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		e.state.Store(int32(StatePerSource))

		stats, attempted := e.runSource(ctx, logger, report.RunID, src, renderer, p, seen)
		report.Stats.Merge(stats)

		if attempted && i < len(e.sources)-1 {
			if err := e.sleep(ctx, e.cfg.Run.SourceDelay); err != nil {
				return report, err
			}
		}
	}

	report.Elapsed = time.Since(start)
	report.Stats.LogSummary(logger, report.RunID, report.Elapsed)
	e.record(ctx, logger, storage.Entry{
		RunID:     report.RunID,
		Kind:      storage.EntrySummary,
		Timestamp: e.now(),
		Stats:     report.Stats.Snapshot(),
	})
	return report, nil
}

// startRenderer launches the browser when a selected source needs it.
// A disabled browser is not fatal: those sources then fail on their own.
func (e *Engine) startRenderer(logger *slog.Logger) (fetcher.Renderer, error) {
	if !sources.NeedsRenderer(e.sources) {
		return nil, nil
	}
	if !e.cfg.Browser.Enabled {
		logger.Warn("browser disabled, rendering sources will be skipped")
		return nil, nil
	}
	r, err := e.newRenderer()
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return r, nil
}

func (e *Engine) buildPipeline(renderer fetcher.Renderer) *pipeline.Pipeline {
	run := &e.cfg.Run
	store := &e.cfg.Store

	p := pipeline.New(e.logger)
	p.Use(pipeline.NewDedupStage(e.store, store.Collection, run.DedupPrefix, e.logger))
	p.Use(pipeline.NewDetailStage(e.pages, renderer, e.detail, e.logger))
	p.Use(pipeline.NewClassifyStage(e.cfg.Categories, run.MaxTags))
	p.Use(pipeline.NewPersistStage(e.store, store.Collection, run.TitleLength, run.SummaryLength, e.logger).WithClock(e.now))
	p.Use(pipeline.NewAttachStage(e.images, e.store, store.Collection, store.ImageField, e.logger))
	return p
}

// runSource processes one source and returns its counters. attempted is
// false for sources passed over without a request.
func (e *Engine) runSource(ctx context.Context, logger *slog.Logger, runID string, src *sources.Source, renderer fetcher.Renderer, p *pipeline.Pipeline, seen *URLSet) (stats observability.Stats, attempted bool) {
	log := logger.With("source", src.Name, "url", src.ListingURL)

	if src.Skip != nil {
		log.Info("source skipped", "reason", src.Skip)
		return stats, false
	}
	stats.SourcesAttempted = 1

	stubs, err := e.discover(ctx, src, renderer)
	if err != nil {
		stats.ListingFailures = 1
		log.Warn("listing unavailable", "strategy", src.Strategy(), "error", err)
		return stats, true
	}
	if len(stubs) == 0 {
		stats.EmptyListings = 1
		log.Info("listing empty", "strategy", src.Strategy(), "reason", types.ErrEmptyListing)
		return stats, true
	}
	stats.SourcesWithCandidates = 1
	log.Info("listing discovered", "stubs", len(stubs), "strategy", src.Strategy())

	if len(stubs) > e.cfg.Run.ItemCap {
		stubs = stubs[:e.cfg.Run.ItemCap]
	}

	e.state.Store(int32(StatePerItem))
	for _, stub := range stubs {
		if err := ctx.Err(); err != nil {
			return stats, true
		}
		if !seen.Add(stub.URL) {
			log.Debug("already processed this run", "title", stub.Title, "url", stub.URL)
			continue
		}

		c, err := p.Process(ctx, src.Candidate(stub))
		if err != nil {
			log.Warn("item failed", "title", stub.Title, "url", stub.URL, "error", err)
		}
		stats.Record(c)
		e.record(ctx, log, itemEntry(runID, e.now(), c, err))

		if err := e.sleep(ctx, e.cfg.Run.ItemDelay); err != nil {
			return stats, true
		}
	}
	return stats, true
}

// discover dispatches on the source's strategy and returns at most the
// row cap of stubs.
func (e *Engine) discover(ctx context.Context, src *sources.Source, renderer fetcher.Renderer) ([]types.ArticleStub, error) {
	var stubs []types.ArticleStub

	switch {
	case src.Rendering:
		if renderer == nil {
			return nil, types.ErrBrowserMissing
		}
		selectors := src.Rule.RowSelectors
		if len(selectors) == 0 {
			selectors = parser.DefaultRowSelectors
		}
		rows, err := renderer.Rows(ctx, src.ListingURL, selectors, e.cfg.Run.RowCap)
		if err != nil {
			return nil, err
		}
		stubs = e.listing.FromRows(rows, src.ListingRule(), src.ListingURL)

	default:
		page, err := e.pages.Fetch(ctx, src.ListingURL, src.Headers)
		if err != nil {
			return nil, err
		}
		if src.Custom != nil {
			stubs, err = src.Custom.Extract(page, src)
		} else {
			stubs, err = e.listing.Extract(page, src.ListingRule())
		}
		if err != nil {
			return nil, err
		}
	}

	return e.bound(stubs), nil
}

// bound drops stubs without a usable title or URL and applies the row cap.
// Row extraction already does this; custom extractors rely on it.
func (e *Engine) bound(stubs []types.ArticleStub) []types.ArticleStub {
	out := stubs[:0]
	for _, s := range stubs {
		if len(out) >= e.cfg.Run.RowCap {
			break
		}
		if s.URL == "" || parser.RuneLen(s.Title) < e.cfg.Run.MinTitleLength {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (e *Engine) record(ctx context.Context, logger *slog.Logger, entry storage.Entry) {
	if err := e.ledger.Record(ctx, entry); err != nil {
		logger.Warn("ledger write failed", "ledger", e.ledger.Name(), "error", err)
	}
}

func itemEntry(runID string, now time.Time, c *types.Candidate, err error) storage.Entry {
	entry := storage.Entry{
		RunID:         runID,
		Kind:          storage.EntryItem,
		Timestamp:     now,
		Source:        c.SourceName,
		SourceTag:     c.SourceTag,
		Title:         c.Stub.Title,
		URL:           c.Stub.URL,
		Outcome:       string(c.Outcome),
		Category:      c.Category,
		RecordID:      c.RecordID,
		ImageAttached: c.ImageAttached,
	}
	if c.Record != nil {
		entry.Extraction = string(c.Extraction())
	}
	switch {
	case err != nil:
		entry.Error = err.Error()
	case c.ImageErr != nil:
		entry.Error = c.ImageErr.Error()
	}
	return entry
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
