// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/civictrace/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(types.StoreConfig{DataDir: dir, MaxResults: 20})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dir
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRun(query string, at time.Time) types.Run {
	return types.Run{
		Query: query,
		Requirements: []types.CoverageRequirement{
			{EntityType: "vendor", MinConfidence: 0.9, RequiredFields: []string{"title", "snippet"}},
		},
		Annotations: types.Annotations{Boost: []string{"foster"}, Exclude: []string{"jobs"}},
		CreatedAt:   at,
		Result: types.FetchResult{
			Results: []types.SearchResult{
				withTier(types.NewResult(types.KindLocal, "local_db", query, "https://acme.example",
					"Residential foster care provider", at), 0),
				withTier(types.NewResult(types.KindScrape, "www.casey.org", query+" annual report",
					"https://www.casey.org/acme", "", at), 3),
			},
			Coverage: 0.5,
			TierHit:  3,
			Latency:  420,
		},
	}
}

func withTier(r types.SearchResult, tier int) types.SearchResult {
	r.TierHit = tier
	return r
}

func mustSave(t *testing.T, s *Store, run types.Run) types.Run {
	t.Helper()
	saved, err := s.SaveRun(context.Background(), run)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	return saved
}

// --- schema ---

func TestNewStoreCreatesDatabase(t *testing.T) {
	_, dir := testStore(t)
	if _, err := os.Stat(filepath.Join(dir, indexDir, dbFile)); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
}

func TestNewStoreReopensExisting(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewStore(types.StoreConfig{DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	saved := mustSave(t, s1, sampleRun("Acme Corp", baseTime))
	s1.Close()

	s2, err := NewStore(types.StoreConfig{DataDir: dir})
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s2.Close()

	run, err := s2.GetRun(context.Background(), saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Query != "Acme Corp" {
		t.Errorf("Query = %q, want Acme Corp", run.Query)
	}
}

// --- save and load ---

func TestSaveRunAssignsID(t *testing.T) {
	s, _ := testStore(t)
	a := mustSave(t, s, sampleRun("Acme Corp", baseTime))
	b := mustSave(t, s, sampleRun("Acme Corp", baseTime))

	if a.ID == "" || b.ID == "" {
		t.Fatal("expected generated IDs")
	}
	if a.ID == b.ID {
		t.Errorf("IDs collide: %s", a.ID)
	}
	if len(a.ID) != 27 {
		t.Errorf("ID %q is not a KSUID", a.ID)
	}
}

func TestSaveRunKeepsGivenID(t *testing.T) {
	s, _ := testStore(t)
	run := sampleRun("Acme Corp", baseTime)
	run.ID = "run-1"
	saved := mustSave(t, s, run)
	if saved.ID != "run-1" {
		t.Errorf("ID = %q, want run-1", saved.ID)
	}
	if _, err := s.SaveRun(context.Background(), run); err == nil {
		t.Error("expected duplicate ID to fail")
	}
}

func TestGetRunRoundTrip(t *testing.T) {
	s, _ := testStore(t)
	want := sampleRun("Acme Corp", baseTime)
	saved := mustSave(t, s, want)

	got, err := s.GetRun(context.Background(), saved.ID)
	if err != nil {
		t.Fatal(err)
	}

	if !got.CreatedAt.Equal(baseTime) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, baseTime)
	}
	if got.Result.Coverage != 0.5 || got.Result.TierHit != 3 || got.Result.Latency != 420 {
		t.Errorf("result header = %+v", got.Result)
	}
	if len(got.Requirements) != 1 || got.Requirements[0].MinConfidence != 0.9 {
		t.Errorf("requirements = %+v", got.Requirements)
	}
	if len(got.Annotations.Boost) != 1 || got.Annotations.Boost[0] != "foster" {
		t.Errorf("annotations = %+v", got.Annotations)
	}
	if len(got.Result.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(got.Result.Results))
	}

	first := got.Result.Results[0]
	if first.Kind != types.KindLocal || first.Source != "local_db" || first.TierHit != 0 {
		t.Errorf("first result = %+v", first)
	}
	if first.Snippet != "Residential foster care provider" {
		t.Errorf("Snippet = %q", first.Snippet)
	}
	if !first.RetrievedAt.Equal(baseTime) {
		t.Errorf("RetrievedAt = %v", first.RetrievedAt)
	}
	if second := got.Result.Results[1]; second.Snippet != "" || second.Kind != types.KindScrape {
		t.Errorf("second result = %+v", second)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestGetRunEmptyResults(t *testing.T) {
	s, _ := testStore(t)
	run := sampleRun("Nobody Inc", baseTime)
	run.Result.Results = nil
	saved := mustSave(t, s, run)

	got, err := s.GetRun(context.Background(), saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Result.Results == nil || len(got.Result.Results) != 0 {
		t.Errorf("Results = %#v, want empty non-nil", got.Result.Results)
	}
}

func TestDeleteRunCascades(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	saved := mustSave(t, s, sampleRun("Acme Corp", baseTime))

	if err := s.DeleteRun(ctx, saved.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRun(ctx, saved.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("after delete err = %v", err)
	}
	hits, err := s.Search(ctx, SearchOptions{Query: "annual"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("deleted results still indexed: %d hits", len(hits))
	}
	if err := s.DeleteRun(ctx, saved.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

// --- listing ---

func TestListRunsNewestFirst(t *testing.T) {
	s, _ := testStore(t)
	mustSave(t, s, sampleRun("first", baseTime))
	mustSave(t, s, sampleRun("third", baseTime.Add(2*time.Hour)))
	mustSave(t, s, sampleRun("second", baseTime.Add(time.Hour+500*time.Millisecond)))

	runs, err := s.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	for i, want := range []string{"third", "second", "first"} {
		if runs[i].Query != want {
			t.Errorf("runs[%d].Query = %q, want %q", i, runs[i].Query, want)
		}
	}
	if runs[0].ResultCount != 2 {
		t.Errorf("ResultCount = %d, want 2", runs[0].ResultCount)
	}
}

func TestListRunsLimit(t *testing.T) {
	s, _ := testStore(t)
	for i := 0; i < 5; i++ {
		mustSave(t, s, sampleRun("run", baseTime.Add(time.Duration(i)*time.Minute)))
	}
	runs, err := s.ListRuns(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("got %d runs, want 2", len(runs))
	}
}

// --- search ---

func TestSearchFullText(t *testing.T) {
	s, _ := testStore(t)
	acme := mustSave(t, s, sampleRun("Acme Corp", baseTime))
	mustSave(t, s, sampleRun("Beta Homes", baseTime.Add(time.Minute)))

	hits, err := s.Search(context.Background(), SearchOptions{Query: "acme"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	for _, h := range hits {
		if h.RunID != acme.ID || h.RunQuery != "Acme Corp" {
			t.Errorf("hit from run %s (%s)", h.RunID, h.RunQuery)
		}
	}
}

func TestSearchMatchesSnippet(t *testing.T) {
	s, _ := testStore(t)
	mustSave(t, s, sampleRun("Acme Corp", baseTime))

	hits, err := s.Search(context.Background(), SearchOptions{Query: "residential"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Source != "local_db" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestSearchFilters(t *testing.T) {
	s, _ := testStore(t)
	acme := mustSave(t, s, sampleRun("Acme Corp", baseTime))
	mustSave(t, s, sampleRun("Beta Homes", baseTime.Add(time.Minute)))

	tests := []struct {
		name string
		opts SearchOptions
		want int
	}{
		{"all", SearchOptions{}, 4},
		{"by source", SearchOptions{Source: "www.casey.org"}, 2},
		{"by run", SearchOptions{RunID: acme.ID}, 2},
		{"by confidence", SearchOptions{MinConfidence: 0.9}, 2},
		{"fts and source", SearchOptions{Query: "report", Source: "www.casey.org"}, 2},
		{"limit", SearchOptions{MaxResults: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := s.Search(context.Background(), tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) != tt.want {
				t.Errorf("got %d hits, want %d", len(hits), tt.want)
			}
		})
	}
}

// --- export ---

func TestExportYAML(t *testing.T) {
	s, dir := testStore(t)
	mustSave(t, s, sampleRun("Acme Corp", baseTime))
	mustSave(t, s, sampleRun("Beta Homes", baseTime.Add(time.Minute)))

	path, err := s.ExportYAML(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, indexDir, "export.yaml") {
		t.Errorf("path = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var runs []types.Run
	if err := yaml.Unmarshal(data, &runs); err != nil {
		t.Fatalf("parsing export: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("exported %d runs, want 2", len(runs))
	}
	if runs[0].Query != "Beta Homes" || len(runs[0].Result.Results) != 2 {
		t.Errorf("first exported run = %+v", runs[0])
	}
}

func TestExportJSON(t *testing.T) {
	s, _ := testStore(t)
	mustSave(t, s, sampleRun("Acme Corp", baseTime))

	path, err := s.ExportJSON(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "export.json" {
		t.Errorf("path = %s", path)
	}
}

func TestGateHitsSharedAcrossHandles(t *testing.T) {
	s, dir := testStore(t)
	other, err := NewStore(types.StoreConfig{DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	ctx := context.Background()

	at := baseTime
	ok, err := s.TryHit(ctx, "browser", 1, at.Add(-time.Minute), at)
	if err != nil || !ok {
		t.Fatalf("first hit: ok=%v err=%v", ok, err)
	}

	at = at.Add(10 * time.Second)
	ok, err = other.TryHit(ctx, "browser", 1, at.Add(-time.Minute), at)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second handle should see the first hit and refuse")
	}
	if n, _ := other.CountHits(ctx, "browser", at.Add(-time.Minute)); n != 1 {
		t.Errorf("CountHits = %d, want 1", n)
	}
	if n, _ := s.CountHits(ctx, "scrape", at.Add(-time.Minute)); n != 0 {
		t.Errorf("CountHits(scrape) = %d, want 0", n)
	}

	// Once the first hit leaves the window it is pruned and a slot frees up.
	at = baseTime.Add(61 * time.Second)
	ok, err = other.TryHit(ctx, "browser", 1, at.Add(-time.Minute), at)
	if err != nil || !ok {
		t.Fatalf("hit after window: ok=%v err=%v", ok, err)
	}
	var rows int
	if err := s.db.QueryRow(`SELECT count(*) FROM gate_hits`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("gate_hits rows = %d, want 1 after pruning", rows)
	}
}
