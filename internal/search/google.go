// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/civictrace/internal/httputil"
	"github.com/pdiddy/civictrace/pkg/types"
)

// googleAPIBase is the Custom Search JSON API endpoint. Declared as a var
// so tests can substitute an httptest server.
var googleAPIBase = "https://www.googleapis.com/customsearch/v1"

// googlePageSize is the provider's maximum page size.
const googlePageSize = 10

// GoogleBackend queries a Google Custom Search Engine (tier 1).
type GoogleBackend struct {
	Client    *http.Client
	APIKey    string
	EngineID  string
	UserAgent string
	Retry     httputil.Policy
	Logger    *zap.Logger
}

// NewGoogle returns the tier-1 adapter. Credentials are captured here and
// not re-read per call.
func NewGoogle(client *http.Client, cfg types.FetchConfig, log *zap.Logger) *GoogleBackend {
	return &GoogleBackend{
		Client:    client,
		APIKey:    cfg.Google.APIKey,
		EngineID:  cfg.Google.EngineID,
		UserAgent: cfg.UserAgent,
		Retry:     httputil.PolicyFrom(cfg.Google.Retry),
		Logger:    orNop(log),
	}
}

// Name returns the source identifier.
func (b *GoogleBackend) Name() string { return string(types.KindGoogleCSE) }

// Fetch runs query, which the ladder has already boosted, and maps up to one
// page of items.
func (b *GoogleBackend) Fetch(ctx context.Context, query string) []types.SearchResult {
	return guard(orNop(b.Logger), b.Name(), func() ([]types.SearchResult, error) {
		return b.search(ctx, query)
	})
}

func (b *GoogleBackend) search(ctx context.Context, query string) ([]types.SearchResult, error) {
	if b.APIKey == "" || b.EngineID == "" {
		return nil, errors.Wrap(ErrMissingCredential, "google custom search needs an API key and engine id")
	}

	params := url.Values{
		"key": {b.APIKey},
		"cx":  {b.EngineID},
		"q":   {query},
		"num": {strconv.Itoa(googlePageSize)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, b.Retry)
	if err != nil {
		return nil, errors.Wrap(err, "google custom search request")
	}
	defer resp.Body.Close()

	var gr googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, errors.Wrap(err, "parsing google custom search response")
	}

	at := now()
	var results []types.SearchResult
	for i, item := range gr.Items {
		if i >= googlePageSize {
			break
		}
		results = append(results, types.NewResult(types.KindGoogleCSE, string(types.KindGoogleCSE),
			item.Title, item.Link, item.Snippet, at))
	}
	return results, nil
}

// BoostQuery appends boost labels as a parenthesized OR group and each
// exclude label as a negated term: `acme (foster OR kinship) -adoption`.
func BoostQuery(query string, a types.Annotations) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(query))
	if len(a.Boost) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(a.Boost, " OR "))
		b.WriteString(")")
	}
	for _, label := range a.Exclude {
		b.WriteString(" -")
		b.WriteString(label)
	}
	return b.String()
}

// Custom Search JSON structures.
type googleResponse struct {
	Items []googleItem `json:"items"`
}

type googleItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}
