// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/civictrace/internal/httputil"
	"github.com/pdiddy/civictrace/pkg/types"
)

// usaSpendingAPIBase is the spending-by-award search endpoint. Declared as
// a var so tests can substitute an httptest server.
var usaSpendingAPIBase = "https://api.usaspending.gov/api/v2/search/spending_by_award/"

const usaSpendingAwardPage = "https://www.usaspending.gov/award/"

// Contract award type codes: BPA call, purchase order, delivery order,
// definitive contract.
var usaSpendingAwardTypes = []string{"A", "B", "C", "D"}

var usaSpendingFields = []string{
	"Award ID", "Recipient Name", "Award Amount", "Description",
	"Awarding Agency", "Start Date", "generated_internal_id",
}

// USASpendingBackend searches federal awards by keyword over a fixed date
// window, largest awards first (tier 2).
type USASpendingBackend struct {
	Client    *http.Client
	APIKey    string
	StartDate string
	EndDate   string
	Limit     int
	UserAgent string
	Retry     httputil.Policy
	Logger    *zap.Logger
}

// NewUSASpending returns the spending-awards adapter.
func NewUSASpending(client *http.Client, cfg types.FetchConfig, log *zap.Logger) *USASpendingBackend {
	return &USASpendingBackend{
		Client:    client,
		APIKey:    cfg.USASpending.APIKey,
		StartDate: cfg.USASpending.StartDate,
		EndDate:   cfg.USASpending.EndDate,
		Limit:     cfg.USASpending.Limit,
		UserAgent: cfg.UserAgent,
		Retry:     httputil.PolicyFrom(cfg.USASpending.Retry),
		Logger:    orNop(log),
	}
}

// Name returns the source identifier.
func (b *USASpendingBackend) Name() string { return string(types.KindUSASpending) }

// Fetch returns contract awards matching query.
func (b *USASpendingBackend) Fetch(ctx context.Context, query string) []types.SearchResult {
	return guard(orNop(b.Logger), b.Name(), func() ([]types.SearchResult, error) {
		return b.search(ctx, query)
	})
}

func (b *USASpendingBackend) search(ctx context.Context, query string) ([]types.SearchResult, error) {
	if b.APIKey == "" {
		return nil, errors.Wrap(ErrMissingCredential, "USASpending API needs an API key")
	}

	body, err := json.Marshal(b.buildRequest(query))
	if err != nil {
		return nil, errors.Wrap(err, "encoding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, usaSpendingAPIBase, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", b.APIKey)
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, b.Retry)
	if err != nil {
		return nil, errors.Wrap(err, "USASpending API request")
	}
	defer resp.Body.Close()

	var ur usaSpendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return nil, errors.Wrap(err, "parsing USASpending response")
	}

	at := now()
	results := make([]types.SearchResult, 0, len(ur.Results))
	for _, a := range ur.Results {
		results = append(results, types.NewResult(types.KindUSASpending, string(types.KindUSASpending),
			a.title(), a.link(), a.snippet(), at))
	}
	return results, nil
}

func (b *USASpendingBackend) buildRequest(query string) usaSpendingRequest {
	limit := b.Limit
	if limit <= 0 {
		limit = 20
	}
	return usaSpendingRequest{
		Filters: usaSpendingFilters{
			Keywords:       []string{query},
			AwardTypeCodes: usaSpendingAwardTypes,
			TimePeriod:     []usaSpendingPeriod{{StartDate: b.StartDate, EndDate: b.EndDate}},
		},
		Fields: usaSpendingFields,
		Page:   1,
		Limit:  limit,
		Sort:   "Award Amount",
		Order:  "desc",
	}
}

// USASpending JSON structures.
type usaSpendingRequest struct {
	Filters usaSpendingFilters `json:"filters"`
	Fields  []string           `json:"fields"`
	Page    int                `json:"page"`
	Limit   int                `json:"limit"`
	Sort    string             `json:"sort"`
	Order   string             `json:"order"`
}

type usaSpendingFilters struct {
	Keywords       []string            `json:"keywords"`
	AwardTypeCodes []string            `json:"award_type_codes"`
	TimePeriod     []usaSpendingPeriod `json:"time_period"`
}

type usaSpendingPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type usaSpendingResponse struct {
	Results []usaSpendingAward `json:"results"`
}

type usaSpendingAward struct {
	AwardID        string  `json:"Award ID"`
	RecipientName  string  `json:"Recipient Name"`
	AwardAmount    float64 `json:"Award Amount"`
	Description    string  `json:"Description"`
	AwardingAgency string  `json:"Awarding Agency"`
	InternalID     string  `json:"generated_internal_id"`
}

func (a usaSpendingAward) title() string {
	if a.AwardID == "" {
		return a.RecipientName
	}
	return fmt.Sprintf("%s (%s)", a.RecipientName, a.AwardID)
}

func (a usaSpendingAward) link() string {
	if a.InternalID == "" {
		return ""
	}
	return usaSpendingAwardPage + a.InternalID
}

func (a usaSpendingAward) snippet() string {
	s := fmt.Sprintf("$%.2f", a.AwardAmount)
	if a.AwardingAgency != "" {
		s += " from " + a.AwardingAgency
	}
	if d := strings.TrimSpace(a.Description); d != "" {
		s += ": " + d
	}
	return s
}
