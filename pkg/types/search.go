// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the civictrace engine:
// normalized search results, coverage requirements, the aggregate fetch
// result, vendor records, and configuration.
package types

import "time"

// SourceKind identifies the adapter that produced a result. The kind fixes
// both the confidence of a result and the set of fields it carries.
type SourceKind string

const (
	KindLocal       SourceKind = "local_db"
	KindGoogleCSE   SourceKind = "google_cse"
	KindFEC         SourceKind = "fec_api"
	KindUSASpending SourceKind = "usaspending_api"
	KindScrape      SourceKind = "scrape"
	KindBrowser     SourceKind = "browser"
)

// Static per-adapter confidence. Local curated data ranks highest, browser
// automation lowest.
const (
	ConfidenceLocal       = 1.0
	ConfidenceGoogleCSE   = 0.8
	ConfidenceFEC         = 0.9
	ConfidenceUSASpending = 0.95
	ConfidenceScrape      = 0.7
	ConfidenceBrowser     = 0.6
)

var kindConfidence = map[SourceKind]float64{
	KindLocal:       ConfidenceLocal,
	KindGoogleCSE:   ConfidenceGoogleCSE,
	KindFEC:         ConfidenceFEC,
	KindUSASpending: ConfidenceUSASpending,
	KindScrape:      ConfidenceScrape,
	KindBrowser:     ConfidenceBrowser,
}

// ConfidenceFor returns the fixed confidence of results produced by kind.
// Unknown kinds have zero confidence.
func ConfidenceFor(kind SourceKind) float64 {
	return kindConfidence[kind]
}

// Field names a SearchResult field as it appears in coverage requirements.
type Field string

const (
	FieldTitle       Field = "title"
	FieldLink        Field = "link"
	FieldSnippet     Field = "snippet"
	FieldSource      Field = "source"
	FieldConfidence  Field = "confidence"
	FieldRetrievedAt Field = "retrieved_at"
	FieldTierHit     Field = "tier_hit"
)

// baseFields are carried by every result. Snippet is present even when
// empty, as on anchor-extracted hits.
var baseFields = []Field{FieldTitle, FieldLink, FieldSnippet, FieldSource, FieldConfidence, FieldRetrievedAt, FieldTierHit}

// kindFields is the field registry: the fields each adapter populates.
var kindFields = map[SourceKind]map[Field]bool{
	KindLocal:       fieldSet(),
	KindGoogleCSE:   fieldSet(),
	KindFEC:         fieldSet(),
	KindUSASpending: fieldSet(),
	KindScrape:      fieldSet(),
	KindBrowser:     fieldSet(),
}

func fieldSet(extra ...Field) map[Field]bool {
	set := make(map[Field]bool, len(baseFields)+len(extra))
	for _, f := range baseFields {
		set[f] = true
	}
	for _, f := range extra {
		set[f] = true
	}
	return set
}

// FieldsFor returns whether kind populates field.
func FieldsFor(kind SourceKind, field Field) bool {
	return kindFields[kind][field]
}

// SearchResult is a normalized hit from any source adapter. Results are
// created by an adapter at fetch time and not modified afterwards, except
// that the ladder stamps TierHit before accumulating them.
type SearchResult struct {
	// Title is the display title of the hit.
	Title string `json:"title" yaml:"title"`

	// Link is the URL of the hit.
	Link string `json:"link" yaml:"link"`

	// Snippet is a short description; may be empty.
	Snippet string `json:"snippet" yaml:"snippet"`

	// Source tags the origin: "local_db", "google_cse", "fec_api",
	// "usaspending_api", a scraped domain, or a domain suffixed "_browser".
	Source string `json:"source" yaml:"source"`

	// Kind is the adapter that produced the result.
	Kind SourceKind `json:"kind" yaml:"kind"`

	// Confidence is the adapter's static trust value in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// RetrievedAt is the fetch time.
	RetrievedAt time.Time `json:"retrieved_at" yaml:"retrieved_at"`

	// TierHit is the ladder tier (0-4) that produced the result.
	TierHit int `json:"tier_hit" yaml:"tier_hit"`
}

// HasField reports whether the result carries the named field according to
// the registry for its kind. Unknown names are never present.
func (r SearchResult) HasField(name string) bool {
	return FieldsFor(r.Kind, Field(name))
}

// NewResult builds a result of the given kind with its registry confidence
// and the retrieval time set.
func NewResult(kind SourceKind, source, title, link, snippet string, at time.Time) SearchResult {
	return SearchResult{
		Title:       title,
		Link:        link,
		Snippet:     snippet,
		Source:      source,
		Kind:        kind,
		Confidence:  ConfidenceFor(kind),
		RetrievedAt: at.UTC(),
	}
}
