// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/civictrace/pkg/types"
)

const fecFixture = `{"results":[
  {"contributor_name":"ACME CORP","contributor_employer":"SELF","contributor_state":"TX",
   "contribution_receipt_amount":2500,"contribution_receipt_date":"2022-03-01T00:00:00",
   "committee_id":"C001","committee":{"name":"Friends of Kids PAC"},"pdf_url":"https://docquery.fec.gov/x.pdf"},
  {"contributor_name":"ACME CORP","contribution_receipt_amount":100.5,"committee_id":"C002"}
]}`

func TestFECRequestParamsAndMapping(t *testing.T) {
	var captured *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		fmt.Fprint(w, fecFixture)
	}))
	defer ts.Close()
	swap(t, &fecAPIBase, ts.URL)

	cfg := testFetchConfig()
	cfg.FEC.APIKey = "fec-key"
	b := NewFEC(ts.Client(), cfg, nil)

	got := b.Fetch(context.Background(), "Acme Corp")
	require.Len(t, got, 2)

	q := captured.URL.Query()
	assert.Equal(t, "fec-key", q.Get("api_key"))
	assert.Equal(t, "Acme Corp", q.Get("contributor_name"))
	assert.Equal(t, "20", q.Get("per_page"))
	assert.Equal(t, "-contribution_receipt_date", q.Get("sort"))

	assert.Equal(t, "ACME CORP to Friends of Kids PAC", got[0].Title)
	assert.Equal(t, "https://docquery.fec.gov/x.pdf", got[0].Link)
	assert.Equal(t, "$2500.00 on 2022-03-01 employer SELF (TX)", got[0].Snippet)
	assert.Equal(t, "fec_api", got[0].Source)
	assert.Equal(t, 0.9, got[0].Confidence)

	assert.Equal(t, "ACME CORP to C002", got[1].Title)
	assert.Equal(t, fecReceiptsSearch+"ACME+CORP", got[1].Link)
	assert.Equal(t, "$100.50", got[1].Snippet)
}

func TestFECRetryExhaustionYieldsEmpty(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()
	swap(t, &fecAPIBase, ts.URL)

	log, logs := observedLogger()
	b := &FECBackend{Client: ts.Client(), APIKey: "k", Retry: fastRetry(3), Logger: log}

	var got []types.SearchResult
	assert.NotPanics(t, func() {
		got = b.Fetch(context.Background(), "acme")
	})
	assert.NotNil(t, got)
	assert.Empty(t, got)
	// 1 initial + 3 retries.
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, logs.FilterMessage("source failed").Len())
}

func TestFECClientErrorNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()
	swap(t, &fecAPIBase, ts.URL)

	b := &FECBackend{Client: ts.Client(), APIKey: "bad", Retry: fastRetry(3)}
	assert.Empty(t, b.Fetch(context.Background(), "acme"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFECMissingKey(t *testing.T) {
	b := &FECBackend{}
	got := b.Fetch(context.Background(), "acme")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
