// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/civictrace/internal/httputil"
	"github.com/pdiddy/civictrace/pkg/types"
)

// fecAPIBase is the FEC individual contributions endpoint. Declared as a
// var so tests can substitute an httptest server.
var fecAPIBase = "https://api.open.fec.gov/v1/schedules/schedule_a/"

const (
	fecSort           = "-contribution_receipt_date"
	fecReceiptsSearch = "https://www.fec.gov/data/receipts/individual-contributions/?contributor_name="
)

// FECBackend queries campaign-finance contributions by contributor name
// (tier 2).
type FECBackend struct {
	Client    *http.Client
	APIKey    string
	PerPage   int
	UserAgent string
	Retry     httputil.Policy
	Logger    *zap.Logger
}

// NewFEC returns the campaign-finance adapter.
func NewFEC(client *http.Client, cfg types.FetchConfig, log *zap.Logger) *FECBackend {
	return &FECBackend{
		Client:    client,
		APIKey:    cfg.FEC.APIKey,
		PerPage:   cfg.FEC.PerPage,
		UserAgent: cfg.UserAgent,
		Retry:     httputil.PolicyFrom(cfg.FEC.Retry),
		Logger:    orNop(log),
	}
}

// Name returns the source identifier.
func (b *FECBackend) Name() string { return string(types.KindFEC) }

// Fetch returns the most recent contributions whose contributor matches query.
func (b *FECBackend) Fetch(ctx context.Context, query string) []types.SearchResult {
	return guard(orNop(b.Logger), b.Name(), func() ([]types.SearchResult, error) {
		return b.search(ctx, query)
	})
}

func (b *FECBackend) search(ctx context.Context, query string) ([]types.SearchResult, error) {
	if b.APIKey == "" {
		return nil, errors.Wrap(ErrMissingCredential, "FEC API needs an API key")
	}

	perPage := b.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	params := url.Values{
		"api_key":          {b.APIKey},
		"contributor_name": {query},
		"per_page":         {strconv.Itoa(perPage)},
		"sort":             {fecSort},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fecAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, b.Retry)
	if err != nil {
		return nil, errors.Wrap(err, "FEC API request")
	}
	defer resp.Body.Close()

	var fr fecResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, errors.Wrap(err, "parsing FEC response")
	}

	at := now()
	results := make([]types.SearchResult, 0, len(fr.Results))
	for _, c := range fr.Results {
		results = append(results, types.NewResult(types.KindFEC, string(types.KindFEC),
			c.title(), c.link(), c.snippet(), at))
	}
	return results, nil
}

// FEC schedule A JSON structures.
type fecResponse struct {
	Results []fecContribution `json:"results"`
}

type fecContribution struct {
	ContributorName     string       `json:"contributor_name"`
	ContributorEmployer string       `json:"contributor_employer"`
	ContributorState    string       `json:"contributor_state"`
	Amount              float64      `json:"contribution_receipt_amount"`
	Date                string       `json:"contribution_receipt_date"`
	CommitteeID         string       `json:"committee_id"`
	Committee           fecCommittee `json:"committee"`
	PDFURL              string       `json:"pdf_url"`
}

type fecCommittee struct {
	Name string `json:"name"`
}

func (c fecContribution) title() string {
	recipient := c.Committee.Name
	if recipient == "" {
		recipient = c.CommitteeID
	}
	if recipient == "" {
		return c.ContributorName
	}
	return c.ContributorName + " to " + recipient
}

func (c fecContribution) link() string {
	if c.PDFURL != "" {
		return c.PDFURL
	}
	return fecReceiptsSearch + url.QueryEscape(c.ContributorName)
}

func (c fecContribution) snippet() string {
	parts := []string{fmt.Sprintf("$%.2f", c.Amount)}
	if date, _, _ := strings.Cut(c.Date, "T"); date != "" {
		parts = append(parts, "on "+date)
	}
	if c.ContributorEmployer != "" {
		parts = append(parts, "employer "+c.ContributorEmployer)
	}
	if c.ContributorState != "" {
		parts = append(parts, "("+c.ContributorState+")")
	}
	return strings.Join(parts, " ")
}
