// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Run is one persisted ladder invocation: the inputs and the FetchResult
// they produced.
type Run struct {
	// ID is a K-sortable identifier assigned when the run is saved.
	ID string `json:"id" yaml:"id"`

	// Query is the entity name as given by the caller.
	Query string `json:"query" yaml:"query"`

	Requirements []CoverageRequirement `json:"requirements" yaml:"requirements"`
	Annotations  Annotations           `json:"annotations" yaml:"annotations"`

	// CreatedAt is when the run completed.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	Result FetchResult `json:"result" yaml:"result"`
}

// RunSummary is the listing view of a Run.
type RunSummary struct {
	ID          string    `json:"id" yaml:"id"`
	Query       string    `json:"query" yaml:"query"`
	Coverage    float64   `json:"coverage" yaml:"coverage"`
	TierHit     int       `json:"tier_hit" yaml:"tier_hit"`
	ResultCount int       `json:"result_count" yaml:"result_count"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}
