// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// TryHit records a rate-limit hit for source at `at` unless limit hits
// already fall after since. Hits at or before since are pruned. The
// connection opens transactions with BEGIN IMMEDIATE, so concurrent
// processes serialize on the check and the insert.
func (s *Store) TryHit(ctx context.Context, source string, limit int, since, at time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM gate_hits WHERE source = ? AND at <= ?`, source, formatTime(since),
	); err != nil {
		return false, errors.Wrap(err, "pruning gate hits")
	}

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM gate_hits WHERE source = ? AND at > ?`, source, formatTime(since),
	).Scan(&n); err != nil {
		return false, errors.Wrap(err, "counting gate hits")
	}
	if n >= limit {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gate_hits (source, at) VALUES (?, ?)`, source, formatTime(at),
	); err != nil {
		return false, errors.Wrap(err, "recording gate hit")
	}
	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "committing gate hit")
	}
	return true, nil
}

// CountHits returns the number of hits recorded for source after since.
func (s *Store) CountHits(ctx context.Context, source string, since time.Time) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM gate_hits WHERE source = ? AND at > ?`, source, formatTime(since),
	).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "counting gate hits")
	}
	return n, nil
}
