// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders ladder results and stored runs for the terminal
// and reads and writes run files.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/civictrace/internal/store"
	"github.com/pdiddy/civictrace/pkg/types"
)

// FormatTable writes a FetchResult as a human-readable table to w.
func FormatTable(res types.FetchResult, w io.Writer) {
	if len(res.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
	} else {
		fmt.Fprintf(w, "%-4s  %-4s  %-50s  %-24s  %-4s  %s\n",
			"Rank", "Tier", "Title", "Source", "Conf", "Link")
		fmt.Fprintln(w, strings.Repeat("-", 120))

		for i, r := range res.Results {
			fmt.Fprintf(w, "%-4d  %-4d  %-50s  %-24s  %-4.2f  %s\n",
				i+1, r.TierHit, truncate(r.Title, 50), truncate(r.Source, 24), r.Confidence, r.Link)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%d results, coverage %.2f, tier %d, %dms\n",
		len(res.Results), res.Coverage, res.TierHit, res.Latency)
}

// FormatJSON writes a FetchResult as indented JSON to w.
func FormatJSON(res types.FetchResult, w io.Writer) error {
	return EncodeJSON(w, res)
}

// FormatRuns writes run summaries as a table to w.
func FormatRuns(runs []types.RunSummary, w io.Writer) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return
	}

	fmt.Fprintf(w, "%-27s  %-40s  %-8s  %-4s  %-7s  %s\n",
		"ID", "Query", "Coverage", "Tier", "Results", "Created")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range runs {
		fmt.Fprintf(w, "%-27s  %-40s  %-8.2f  %-4d  %-7d  %s\n",
			r.ID, truncate(r.Query, 40), r.Coverage, r.TierHit, r.ResultCount,
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
}

// FormatHits writes stored search hits as a table to w.
func FormatHits(hits []store.Hit, w io.Writer) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-40s  %-24s  %-4s  %-30s  %s\n",
		"Title", "Source", "Conf", "Run", "Link")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, h := range hits {
		fmt.Fprintf(w, "%-40s  %-24s  %-4.2f  %-30s  %s\n",
			truncate(h.Title, 40), truncate(h.Source, 24), h.Confidence, truncate(h.RunQuery, 30), h.Link)
	}
	fmt.Fprintf(w, "\n%d results\n", len(hits))
}

// EncodeJSON writes v as indented JSON to w.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
