// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/civictrace/internal/report"
	"github.com/pdiddy/civictrace/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved runs (list, show, search, export, import)",
	Long: `Runs manages the local SQLite store of saved fetch runs. Results of every
saved run are indexed for full-text search over titles and snippets.`,
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("max-results")
	runs, err := st.ListRuns(context.Background(), limit)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return report.EncodeJSON(os.Stdout, runs)
	}
	report.FormatRuns(runs, os.Stdout)
	return nil
}

// --- show subcommand ---

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the results of one saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(context.Background(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return report.EncodeJSON(os.Stdout, run)
	}
	fmt.Printf("Run %s: %q at %s\n\n", run.ID, run.Query, run.CreatedAt.Format("2006-01-02 15:04:05"))
	report.FormatTable(run.Result, os.Stdout)
	return nil
}

// --- search subcommand ---

var runsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored results with full-text search and filters",
	Long: `Search queries the results of every saved run using FTS5 full-text
search over titles and snippets, structured filters (source, run, minimum
confidence), or a combination of both.`,
	RunE: runRunsSearch,
}

func runRunsSearch(cmd *cobra.Command, args []string) error {
	opts := searchOptsFromFlags(cmd, args)
	if opts.Query == "" && opts.Source == "" && opts.RunID == "" && opts.MinConfidence == 0 {
		return fmt.Errorf("query or filter required: provide a search query, --source, --run, or --min-confidence")
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	hits, err := st.Search(context.Background(), opts)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return report.EncodeJSON(os.Stdout, hits)
	}
	report.FormatHits(hits, os.Stdout)
	return nil
}

// --- export subcommand ---

var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every saved run to YAML or JSON",
	Long: `Export writes all saved runs with their results to
<data-dir>/index/export.yaml or export.json.`,
	RunE: runRunsExport,
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	var path string
	switch format {
	case "yaml", "":
		path, err = st.ExportYAML(context.Background())
	case "json":
		path, err = st.ExportJSON(context.Background())
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

// --- import subcommand ---

var runsImportCmd = &cobra.Command{
	Use:   "import <run-file>...",
	Short: "Save run files written by fetch --output into the store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRunsImport,
}

func runRunsImport(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, path := range args {
		rf, err := report.ReadRunFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		saved, err := st.SaveRun(context.Background(), rf.ToRun())
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("imported %s as %s\n", path, saved.ID)
	}
	return nil
}

// --- shared helpers ---

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.NewStore(storeConfig(cmd, cfg.Store))
}

func searchOptsFromFlags(cmd *cobra.Command, args []string) store.SearchOptions {
	var opts store.SearchOptions
	if len(args) > 0 {
		opts.Query = strings.Join(args, " ")
	}
	opts.Source, _ = cmd.Flags().GetString("source")
	opts.RunID, _ = cmd.Flags().GetString("run")
	opts.MinConfidence, _ = cmd.Flags().GetFloat64("min-confidence")
	opts.MaxResults, _ = cmd.Flags().GetInt("max-results")
	return opts
}

func init() {
	runsCmd.PersistentFlags().String("data-dir", "data", "directory holding the run store")
	runsCmd.PersistentFlags().Int("max-results", 20, "maximum number of rows to return")

	runsListCmd.Flags().Bool("json", false, "output runs as JSON")
	runsShowCmd.Flags().Bool("json", false, "output the run as JSON")

	runsSearchCmd.Flags().String("source", "", "filter by source tag (e.g. fec_api, www.casey.org)")
	runsSearchCmd.Flags().String("run", "", "filter by run ID")
	runsSearchCmd.Flags().Float64("min-confidence", 0, "drop results below this confidence")
	runsSearchCmd.Flags().Bool("json", false, "output results as JSON")

	runsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsSearchCmd, runsExportCmd, runsImportCmd)
	rootCmd.AddCommand(runsCmd)
}
