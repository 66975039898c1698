// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/civictrace/internal/httputil"
	"github.com/pdiddy/civictrace/pkg/types"
)

const defaultScrapeTimeout = 5 * time.Second

// Scraper queries each whitelisted domain's search page and extracts its
// anchors (tier 3).
type Scraper struct {
	Client    *http.Client
	Domains   []string
	Timeout   time.Duration
	UserAgent string
	Logger    *zap.Logger
}

// NewScraper returns the whitelisted-site adapter.
func NewScraper(client *http.Client, cfg types.FetchConfig, log *zap.Logger) *Scraper {
	return &Scraper{
		Client:    client,
		Domains:   cfg.Scrape.Domains,
		Timeout:   cfg.Scrape.Timeout,
		UserAgent: cfg.UserAgent,
		Logger:    orNop(log),
	}
}

// Name returns the source identifier.
func (s *Scraper) Name() string { return string(types.KindScrape) }

// Fetch visits the domains in order. A failing domain is logged and
// contributes nothing; the remaining domains are still queried.
func (s *Scraper) Fetch(ctx context.Context, query string) []types.SearchResult {
	log := orNop(s.Logger)
	return guard(log, s.Name(), func() ([]types.SearchResult, error) {
		var results []types.SearchResult
		for _, domain := range s.Domains {
			if ctx.Err() != nil {
				return results, nil
			}
			found, err := s.scrapeDomain(ctx, domain, query)
			if err != nil {
				log.Warn("scrape failed", zap.String("domain", domain), zap.Error(err))
				continue
			}
			log.Debug("scraped domain", zap.String("domain", domain), zap.Int("results", len(found)))
			results = append(results, found...)
		}
		return results, nil
	})
}

func (s *Scraper) scrapeDomain(ctx context.Context, domain, query string) ([]types.SearchResult, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultScrapeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchPageURL(domain, query), nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", domain)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httputil.StatusError{StatusCode: resp.StatusCode, URL: req.URL.Scheme + "://" + domain + req.URL.Path}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", domain)
	}

	var anchors []Anchor
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		anchors = append(anchors, Anchor{Href: href, Text: sel.Text()})
	})
	return anchorResults(types.KindScrape, domain, req.URL, anchors, now()), nil
}
