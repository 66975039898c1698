// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"
)

// CoverageRequirement is one completeness criterion supplied by the caller.
type CoverageRequirement struct {
	// EntityType labels the requirement; informational only.
	EntityType string `json:"entity_type" yaml:"entity_type"`

	// MinConfidence is the confidence floor a result must meet.
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`

	// RequiredFields lists field names every qualifying result must carry.
	RequiredFields []string `json:"required_fields" yaml:"required_fields"`
}

// Annotations biases the search-engine tier: Boost labels are OR-included,
// Exclude labels are negated.
type Annotations struct {
	Boost   []string `json:"boost,omitempty" yaml:"boost,omitempty"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// ParseAnnotations decodes a YAML or JSON annotation document. Empty input
// yields empty annotations. Blank labels are dropped.
func ParseAnnotations(data []byte) (Annotations, error) {
	var a Annotations
	if len(strings.TrimSpace(string(data))) == 0 {
		return a, nil
	}
	if err := yaml.Unmarshal(data, &a); err != nil {
		return Annotations{}, errors.Wrap(err, "parsing annotations")
	}
	a.Boost = compact(a.Boost)
	a.Exclude = compact(a.Exclude)
	return a, nil
}

func compact(labels []string) []string {
	var out []string
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// FetchResult is the aggregate outcome of one escalation run.
type FetchResult struct {
	// Results holds every hit in discovery order across tiers. Hits found by
	// more than one tier appear once per tier.
	Results []SearchResult `json:"results" yaml:"results"`

	// Coverage is the last computed coverage score in [0,1].
	Coverage float64 `json:"coverage" yaml:"coverage"`

	// TierHit is the highest tier actually reached.
	TierHit int `json:"tier_hit" yaml:"tier_hit"`

	// Latency is the elapsed milliseconds from ladder start to return.
	Latency int64 `json:"latency" yaml:"latency"`
}

// Vendor is one record in the local curated store.
type Vendor struct {
	Name        string `json:"name" yaml:"name"`
	SourceURL   string `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	State       string `json:"state,omitempty" yaml:"state,omitempty"`
}
