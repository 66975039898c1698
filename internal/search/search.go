// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search holds the source adapters of the escalation ladder: the
// local curated store, the search-engine API, the campaign-finance and
// spending APIs, whitelisted-site scraping, and headless browser
// automation. Every adapter translates its source's native response into
// types.SearchResult records and never fails past its own boundary.
package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/civictrace/pkg/types"
)

// Source fetches results for a query. Implementations return an empty
// slice, never an error or panic, when their source is unavailable.
type Source interface {
	Name() string
	Fetch(ctx context.Context, query string) []types.SearchResult
}

// ErrMissingCredential reports an adapter constructed without a required
// API key or engine id.
var ErrMissingCredential = errors.New("missing credential")

// pageURLFormat builds a whitelisted domain's search page URL. Declared as
// a var so tests can substitute plain http.
var pageURLFormat = "https://%s/search?q=%s"

// now is the clock used to stamp RetrievedAt.
var now = time.Now

func searchPageURL(domain, query string) string {
	return fmt.Sprintf(pageURLFormat, domain, url.QueryEscape(query))
}

// guard runs fn and converts any error or panic into an empty result with
// a logged warning.
func guard(log *zap.Logger, name string, fn func() ([]types.SearchResult, error)) (results []types.SearchResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("source panicked", zap.String("source", name), zap.Any("panic", r))
			results = []types.SearchResult{}
		}
	}()

	results, err := fn()
	if err != nil {
		if errors.Is(err, ErrMissingCredential) {
			log.Warn("source not configured, skipping", zap.String("source", name), zap.Error(err))
		} else {
			log.Warn("source failed", zap.String("source", name), zap.Error(err))
		}
		return []types.SearchResult{}
	}
	if results == nil {
		results = []types.SearchResult{}
	}
	return results
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// Anchor is one link extracted from a page.
type Anchor struct {
	Href string
	Text string
}

// anchorResults turns page anchors into results. Hrefs are resolved against
// base; anchors without text, fragment-only links, and javascript: links
// are skipped.
func anchorResults(kind types.SourceKind, source string, base *url.URL, anchors []Anchor, at time.Time) []types.SearchResult {
	var results []types.SearchResult
	for _, a := range anchors {
		text := strings.Join(strings.Fields(a.Text), " ")
		href := strings.TrimSpace(a.Href)
		if text == "" || href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(strings.ToLower(href), "javascript:") {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		link := ref
		if base != nil {
			link = base.ResolveReference(ref)
		}
		results = append(results, types.NewResult(kind, source, text, link.String(), "", at))
	}
	return results
}
