// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coverage scores how completely a result set satisfies a list of
// coverage requirements.
package coverage

import "github.com/pdiddy/civictrace/pkg/types"

// Calculate returns the mean, over requirements, of the fraction of all
// results that satisfy each requirement. A result satisfies a requirement
// when its confidence meets MinConfidence and it carries every field in
// RequiredFields. Empty results or requirements score 0.
//
// The denominator is the total result count, so adding results that
// satisfy nothing lowers the score.
func Calculate(results []types.SearchResult, requirements []types.CoverageRequirement) float64 {
	if len(results) == 0 || len(requirements) == 0 {
		return 0
	}

	var sum float64
	for _, req := range requirements {
		matched := 0
		for _, r := range results {
			if Satisfies(r, req) {
				matched++
			}
		}
		sum += float64(matched) / float64(len(results))
	}
	return sum / float64(len(requirements))
}

// Satisfies reports whether r meets req's confidence floor and carries all of
// its required fields.
func Satisfies(r types.SearchResult, req types.CoverageRequirement) bool {
	if r.Confidence < req.MinConfidence {
		return false
	}
	for _, f := range req.RequiredFields {
		if !r.HasField(f) {
			return false
		}
	}
	return true
}
