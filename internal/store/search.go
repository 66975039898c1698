// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/civictrace/pkg/types"
)

// SearchOptions holds parameters for searching stored results.
type SearchOptions struct {
	// Query is the FTS5 match string over result titles and snippets.
	Query string

	// Source filters by exact source tag.
	Source string

	// RunID restricts the search to one run.
	RunID string

	// MinConfidence drops results below this confidence.
	MinConfidence float64

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Hit is a stored result together with the run that produced it.
type Hit struct {
	types.SearchResult `yaml:",inline"`
	RunID              string `json:"run_id" yaml:"run_id"`
	RunQuery           string `json:"run_query" yaml:"run_query"`
}

// Search queries stored results. Full-text queries are ranked by relevance;
// filter-only queries return the newest runs first, each in result order.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]Hit, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = strings.TrimSpace(opts.Query) != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT res.title, res.link, res.snippet, res.source, res.kind, res.confidence,
				res.retrieved_at, res.tier_hit, res.run_id, r.query
			FROM results_fts
			JOIN results res ON res.rowid = results_fts.rowid
			JOIN runs r ON r.id = res.run_id
			WHERE results_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT res.title, res.link, res.snippet, res.source, res.kind, res.confidence,
				res.retrieved_at, res.tier_hit, res.run_id, r.query
			FROM results res
			JOIN runs r ON r.id = res.run_id
			WHERE 1=1`)
	}

	if opts.Source != "" {
		qb.WriteString(` AND res.source = ?`)
		args = append(args, opts.Source)
	}
	if opts.RunID != "" {
		qb.WriteString(` AND res.run_id = ?`)
		args = append(args, opts.RunID)
	}
	if opts.MinConfidence > 0 {
		qb.WriteString(` AND res.confidence >= ?`)
		args = append(args, opts.MinConfidence)
	}

	if useFTS {
		qb.WriteString(` ORDER BY results_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY r.created_at DESC, res.position`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "searching results")
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		r, err := scanResult(rows, &h.RunID, &h.RunQuery)
		if err != nil {
			return nil, err
		}
		h.SearchResult = r
		hits = append(hits, h)
	}
	return hits, errors.Wrap(rows.Err(), "iterating results")
}
