// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch runs the escalation ladder: source adapters are queried in
// a fixed priority order, results accumulate across tiers, and the ladder
// stops as soon as coverage reaches the threshold.
package fetch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/civictrace/internal/coverage"
	"github.com/pdiddy/civictrace/internal/ratelimit"
	"github.com/pdiddy/civictrace/internal/search"
	"github.com/pdiddy/civictrace/pkg/types"
)

// Ladder tiers, cheapest and most trusted first.
const (
	TierLocal      = 0
	TierSearch     = 1
	TierStructured = 2
	TierScrape     = 3
	TierBrowser    = 4
)

// ErrEmptyQuery is returned when the query has no searchable text.
var ErrEmptyQuery = errors.New("query is empty")

// Gate decides whether the expensive browser tier may run. Allow records
// the request when it returns true.
type Gate interface {
	Allow(source string) bool
}

// Sources are the adapters of each tier. A nil source contributes nothing.
type Sources struct {
	Local    search.Source
	Search   search.Source
	Finance  search.Source
	Spending search.Source
	Scrape   search.Source
	Browser  search.Source
}

// Fetcher runs the escalation ladder. It holds no per-call state and is safe
// for concurrent use.
type Fetcher struct {
	sources   Sources
	gate      Gate
	threshold float64
	log       *zap.Logger
	now       func() time.Time
}

// New returns a Fetcher over sources. A nil gate never limits; a threshold
// of zero or less uses types.DefaultCoverageThreshold.
func New(sources Sources, gate Gate, threshold float64, log *zap.Logger) *Fetcher {
	if threshold <= 0 {
		threshold = types.DefaultCoverageThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		sources:   sources,
		gate:      gate,
		threshold: threshold,
		log:       log,
		now:       time.Now,
	}
}

// NewFromConfig wires the production adapters described by cfg behind gate.
// A nil gate falls back to an in-process limiter over cfg.RateLimit, whose
// window lasts only as long as the Fetcher. The browser tier is omitted when
// cfg.Browser.Enabled is false.
func NewFromConfig(cfg types.FetchConfig, gate Gate, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	client := &http.Client{Timeout: cfg.Timeout}

	sources := Sources{
		Local:    search.NewLocalStore(cfg.Local, log),
		Search:   search.NewGoogle(client, cfg, log),
		Finance:  search.NewFEC(client, cfg, log),
		Spending: search.NewUSASpending(client, cfg, log),
		Scrape:   search.NewScraper(&http.Client{}, cfg, log),
	}
	if cfg.Browser.Enabled {
		sources.Browser = search.NewBrowserSource(cfg, log)
	}
	if gate == nil {
		gate = ratelimit.New(cfg.RateLimit)
	}
	return New(sources, gate, cfg.CoverageThreshold, log)
}

// FetchWithPriorityLadder walks tiers 0-4 for query, stopping at the first
// tier whose cumulative coverage of needed reaches the threshold. Tier 4
// runs only when the gate allows it; when skipped, TierHit reports 3. A
// final coverage below the threshold is not an error. The only error is
// ErrEmptyQuery. Cancelling ctx stops escalation and returns what has been
// gathered.
func (f *Fetcher) FetchWithPriorityLadder(ctx context.Context, query string, needed []types.CoverageRequirement, ann types.Annotations) (types.FetchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return types.FetchResult{}, ErrEmptyQuery
	}
	start := f.now()
	boosted := search.BoostQuery(query, ann)

	tiers := []struct {
		tier int
		name string
		run  func(context.Context) []types.SearchResult
	}{
		{TierLocal, "local", func(ctx context.Context) []types.SearchResult {
			return f.call(ctx, f.sources.Local, query)
		}},
		{TierSearch, "search", func(ctx context.Context) []types.SearchResult {
			return f.call(ctx, f.sources.Search, boosted)
		}},
		{TierStructured, "structured", func(ctx context.Context) []types.SearchResult {
			return f.structured(ctx, query)
		}},
		{TierScrape, "scrape", func(ctx context.Context) []types.SearchResult {
			return f.call(ctx, f.sources.Scrape, query)
		}},
	}

	var results []types.SearchResult
	var cov float64
	reached := TierLocal

	for _, t := range tiers {
		if t.tier > TierLocal && ctx.Err() != nil {
			f.log.Warn("fetch cancelled, stopping escalation",
				zap.Int("tier", reached), zap.Error(ctx.Err()))
			return f.finish(start, results, cov, reached), nil
		}
		found := t.run(ctx)
		results = append(results, stamp(found, t.tier)...)
		cov = coverage.Calculate(results, needed)
		reached = t.tier

		f.log.Info("tier complete",
			zap.Int("tier", t.tier),
			zap.String("name", t.name),
			zap.Int("found", len(found)),
			zap.Int("total", len(results)),
			zap.Float64("coverage", cov))
		if cov >= f.threshold {
			return f.finish(start, results, cov, reached), nil
		}
	}

	switch {
	case ctx.Err() != nil:
		f.log.Warn("fetch cancelled, skipping browser tier", zap.Error(ctx.Err()))
	case f.sources.Browser == nil:
		f.log.Info("browser tier disabled")
	case f.gate != nil && !f.gate.Allow(f.sources.Browser.Name()):
		f.log.Warn("browser tier rate limited, skipping")
	default:
		found := f.call(ctx, f.sources.Browser, query)
		results = append(results, stamp(found, TierBrowser)...)
		cov = coverage.Calculate(results, needed)
		reached = TierBrowser
		f.log.Info("tier complete",
			zap.Int("tier", TierBrowser),
			zap.String("name", "browser"),
			zap.Int("found", len(found)),
			zap.Int("total", len(results)),
			zap.Float64("coverage", cov))
	}

	return f.finish(start, results, cov, reached), nil
}

// structured queries the campaign-finance and spending adapters
// concurrently. Finance results always precede spending results.
func (f *Fetcher) structured(ctx context.Context, query string) []types.SearchResult {
	var finance, spending []types.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		finance = f.call(gctx, f.sources.Finance, query)
		return nil
	})
	g.Go(func() error {
		spending = f.call(gctx, f.sources.Spending, query)
		return nil
	})
	_ = g.Wait()

	merged := make([]types.SearchResult, 0, len(finance)+len(spending))
	merged = append(merged, finance...)
	return append(merged, spending...)
}

// call invokes src, treating a nil source as empty and recovering a panic
// from adapters that do not isolate their own failures.
func (f *Fetcher) call(ctx context.Context, src search.Source, query string) (results []types.SearchResult) {
	if src == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("source panicked", zap.String("source", src.Name()), zap.Any("panic", r))
			results = nil
		}
	}()
	return src.Fetch(ctx, query)
}

func (f *Fetcher) finish(start time.Time, results []types.SearchResult, cov float64, tier int) types.FetchResult {
	if results == nil {
		results = []types.SearchResult{}
	}
	return types.FetchResult{
		Results:  results,
		Coverage: cov,
		TierHit:  tier,
		Latency:  f.now().Sub(start).Milliseconds(),
	}
}

func stamp(found []types.SearchResult, tier int) []types.SearchResult {
	out := make([]types.SearchResult, len(found))
	for i, r := range found {
		r.TierHit = tier
		out[i] = r
	}
	return out
}
