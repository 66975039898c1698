// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit gates expensive sources behind per-source request
// budgets counted over a sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/civictrace/pkg/types"
)

// Window is the length of the sliding window budgets are counted over.
const Window = time.Minute

// Limiter tracks request timestamps per source. A nil *Limiter and sources
// without a configured budget are never limited. Safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	budget map[string]int
	hits   map[string][]time.Time
	now    func() time.Time
}

func budgets(cfg types.RateLimitConfig) map[string]int {
	budget := make(map[string]int, len(cfg.PerMinute))
	for source, n := range cfg.PerMinute {
		if n > 0 {
			budget[source] = n
		}
	}
	return budget
}

// New returns an in-process Limiter enforcing the per-minute budgets in cfg.
func New(cfg types.RateLimitConfig) *Limiter {
	return &Limiter{
		budget: budgets(cfg),
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Limited reports whether source has exhausted its budget in the current
// window without recording a request.
func (l *Limiter) Limited(source string) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.budget[source]
	if !ok {
		return false
	}
	return len(l.prune(source)) >= limit
}

// Allow records a request for source and returns true, or returns false
// without recording when the budget is exhausted.
func (l *Limiter) Allow(source string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.budget[source]
	if !ok {
		return true
	}
	hits := l.prune(source)
	if len(hits) >= limit {
		return false
	}
	l.hits[source] = append(hits, l.now())
	return true
}

// prune drops timestamps older than Window. Callers hold l.mu.
func (l *Limiter) prune(source string) []time.Time {
	cutoff := l.now().Add(-Window)
	hits := l.hits[source]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]
	l.hits[source] = hits
	return hits
}

// HitLog persists request timestamps so budgets hold across processes.
type HitLog interface {
	// TryHit atomically records a hit for source at `at` unless limit hits
	// already fall after since. It reports whether the hit was recorded.
	TryHit(ctx context.Context, source string, limit int, since, at time.Time) (bool, error)

	// CountHits returns the number of hits for source after since.
	CountHits(ctx context.Context, source string, since time.Time) (int, error)
}

// Shared enforces the same budgets as Limiter over a HitLog, so every
// Fetcher and process writing to one log shares the window. A HitLog error
// counts as limited.
type Shared struct {
	budget  map[string]int
	hits    HitLog
	log     *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

// NewShared returns a gate enforcing cfg's budgets against hits.
func NewShared(cfg types.RateLimitConfig, hits HitLog, log *zap.Logger) *Shared {
	if log == nil {
		log = zap.NewNop()
	}
	return &Shared{
		budget:  budgets(cfg),
		hits:    hits,
		log:     log,
		now:     time.Now,
		timeout: 5 * time.Second,
	}
}

// Limited reports whether source has exhausted its budget without
// recording a request.
func (g *Shared) Limited(source string) bool {
	limit, ok := g.budget[source]
	if !ok {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	n, err := g.hits.CountHits(ctx, source, g.now().Add(-Window))
	if err != nil {
		g.log.Warn("rate limit lookup failed", zap.String("source", source), zap.Error(err))
		return true
	}
	return n >= limit
}

// Allow records a request for source and returns true, or returns false
// without recording when the budget is exhausted.
func (g *Shared) Allow(source string) bool {
	limit, ok := g.budget[source]
	if !ok {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	at := g.now()
	allowed, err := g.hits.TryHit(ctx, source, limit, at.Add(-Window), at)
	if err != nil {
		g.log.Warn("rate limit update failed", zap.String("source", source), zap.Error(err))
		return false
	}
	return allowed
}
