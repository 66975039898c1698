// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/civictrace/pkg/types"
)

// browserSourceSuffix marks a domain tag as browser-sourced.
const browserSourceSuffix = "_browser"

// Launcher starts a browser context owned by one Fetch call.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser renders pages and extracts anchors. Close releases the browser
// process and must be called exactly once.
type Browser interface {
	Anchors(ctx context.Context, pageURL string) ([]Anchor, error)
	Close() error
}

// BrowserSource renders each whitelisted domain's search page in a headless
// browser and extracts its anchors (tier 4).
type BrowserSource struct {
	Launcher          Launcher
	Domains           []string
	NavigationTimeout time.Duration
	Logger            *zap.Logger
}

// NewBrowserSource returns the headless-browser adapter backed by go-rod.
func NewBrowserSource(cfg types.FetchConfig, log *zap.Logger) *BrowserSource {
	return &BrowserSource{
		Launcher: &RodLauncher{
			Headless:    cfg.Browser.Headless,
			Bin:         cfg.Browser.Bin,
			IdleTimeout: cfg.Browser.IdleTimeout,
			Logger:      orNop(log),
		},
		Domains:           cfg.Scrape.Domains,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		Logger:            orNop(log),
	}
}

// Name returns the source identifier.
func (b *BrowserSource) Name() string { return string(types.KindBrowser) }

// Fetch launches a fresh browser, visits every domain, and closes the
// browser before returning on every path, including a panic mid-navigation.
func (b *BrowserSource) Fetch(ctx context.Context, query string) []types.SearchResult {
	log := orNop(b.Logger)
	return guard(log, b.Name(), func() ([]types.SearchResult, error) {
		return b.fetch(ctx, log, query)
	})
}

func (b *BrowserSource) fetch(ctx context.Context, log *zap.Logger, query string) ([]types.SearchResult, error) {
	if b.Launcher == nil {
		return nil, errors.New("no browser launcher configured")
	}
	browser, err := b.Launcher.Launch(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "launching browser")
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			log.Warn("closing browser", zap.Error(cerr))
		}
	}()

	var results []types.SearchResult
	for _, domain := range b.Domains {
		if ctx.Err() != nil {
			break
		}
		found, err := b.visit(ctx, browser, domain, query)
		if err != nil {
			log.Warn("browser visit failed", zap.String("domain", domain), zap.Error(err))
			continue
		}
		results = append(results, found...)
	}
	return results, nil
}

func (b *BrowserSource) visit(ctx context.Context, browser Browser, domain, query string) ([]types.SearchResult, error) {
	if b.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.NavigationTimeout)
		defer cancel()
	}

	pageURL := searchPageURL(domain, query)
	anchors, err := browser.Anchors(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing page URL")
	}
	return anchorResults(types.KindBrowser, domain+browserSourceSuffix, base, anchors, now()), nil
}
