// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/civictrace/pkg/types"
)

// RunFile is the on-disk representation of a ladder run. A run can be
// saved to a file and reloaded later without re-querying any source.
type RunFile struct {
	Query        string                      `yaml:"query"`
	Requirements []types.CoverageRequirement `yaml:"requirements"`
	Annotations  types.Annotations           `yaml:"annotations,omitempty"`
	Results      []types.SearchResult        `yaml:"results"`
	Summary      RunSummary                  `yaml:"summary"`
}

// RunSummary stores the ladder outcome and a timestamp.
type RunSummary struct {
	Total     int       `yaml:"total"`
	Coverage  float64   `yaml:"coverage"`
	TierHit   int       `yaml:"tier_hit"`
	LatencyMS int64     `yaml:"latency_ms"`
	Timestamp time.Time `yaml:"timestamp"`
}

// WriteRunFile saves run to a YAML file at path.
func WriteRunFile(path string, run types.Run) error {
	ts := run.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	rf := RunFile{
		Query:        run.Query,
		Requirements: run.Requirements,
		Annotations:  run.Annotations,
		Results:      run.Result.Results,
		Summary: RunSummary{
			Total:     len(run.Result.Results),
			Coverage:  run.Result.Coverage,
			TierHit:   run.Result.TierHit,
			LatencyMS: run.Result.Latency,
			Timestamp: ts.UTC(),
		},
	}

	data, err := yaml.Marshal(&rf)
	if err != nil {
		return errors.Wrap(err, "marshaling run file")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing run file %s", path)
}

// ReadRunFile loads a previously saved run file from disk.
func ReadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading run file")
	}
	var rf RunFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, errors.Wrap(err, "parsing run file")
	}
	return &rf, nil
}

// ToRun converts a run file back into a Run.
func (rf RunFile) ToRun() types.Run {
	results := rf.Results
	if results == nil {
		results = []types.SearchResult{}
	}
	return types.Run{
		Query:        rf.Query,
		Requirements: rf.Requirements,
		Annotations:  rf.Annotations,
		CreatedAt:    rf.Summary.Timestamp,
		Result: types.FetchResult{
			Results:  results,
			Coverage: rf.Summary.Coverage,
			TierHit:  rf.Summary.TierHit,
			Latency:  rf.Summary.LatencyMS,
		},
	}
}

// ReadRequirements loads coverage requirements from a YAML or JSON file
// holding either a bare list or a document with a "requirements" list.
func ReadRequirements(path string) ([]types.CoverageRequirement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading requirements file")
	}

	var list []types.CoverageRequirement
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var doc struct {
		Requirements []types.CoverageRequirement `yaml:"requirements"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing requirements file %s", path)
	}
	return doc.Requirements, nil
}
