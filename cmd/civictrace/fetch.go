// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/civictrace/internal/fetch"
	"github.com/pdiddy/civictrace/internal/ratelimit"
	"github.com/pdiddy/civictrace/internal/report"
	"github.com/pdiddy/civictrace/internal/store"
	"github.com/pdiddy/civictrace/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [entity name]",
	Short: "Gather evidence about an entity through the escalation ladder",
	Long: `Fetch walks the escalation ladder for an entity name: local store,
web search, campaign-finance and spending APIs, whitelisted site scrape, and
headless browser. It stops at the first tier whose accumulated results reach
the coverage threshold for the given requirements.

Requirements come from --requirements (YAML or JSON list) or from the
--entity, --min-confidence and --fields flags. Annotations from --annotations,
--boost and --exclude shape only the web search query.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	if len(args) > 0 {
		query = args[0]
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("entity name required: provide an argument or --query")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if t, _ := cmd.Flags().GetFloat64("threshold"); t > 0 {
		cfg.Fetch.CoverageThreshold = t
	}
	if noBrowser, _ := cmd.Flags().GetBool("no-browser"); noBrowser {
		cfg.Fetch.Browser.Enabled = false
	}

	needed, err := requirementsFromFlags(cmd)
	if err != nil {
		return err
	}
	ann, err := annotationsFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// The run store also holds rate-limit hits so budgets span invocations.
	save, _ := cmd.Flags().GetBool("save")
	var st *store.Store
	if save || len(cfg.Fetch.RateLimit.PerMinute) > 0 {
		st, err = store.NewStore(storeConfig(cmd, cfg.Store))
		if err != nil {
			return err
		}
		defer st.Close()
	}
	var gate fetch.Gate
	if st != nil {
		gate = ratelimit.NewShared(cfg.Fetch.RateLimit, st, logger)
	}

	f := fetch.NewFromConfig(cfg.Fetch, gate, logger)
	res, err := f.FetchWithPriorityLadder(ctx, query, needed, ann)
	if err != nil {
		return err
	}

	run := types.Run{
		Query:        strings.TrimSpace(query),
		Requirements: needed,
		Annotations:  ann,
		CreatedAt:    time.Now(),
		Result:       res,
	}

	if save {
		saved, err := st.SaveRun(context.Background(), run)
		if err != nil {
			return err
		}
		logger.Info("run saved", zap.String("id", saved.ID))
		fmt.Fprintf(os.Stderr, "Saved run %s\n", saved.ID)
	}

	if out, _ := cmd.Flags().GetString("output"); out != "" {
		if err := report.WriteRunFile(out, run); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return report.FormatJSON(res, os.Stdout)
	}
	report.FormatTable(res, os.Stdout)
	return nil
}

func requirementsFromFlags(cmd *cobra.Command) ([]types.CoverageRequirement, error) {
	if path, _ := cmd.Flags().GetString("requirements"); path != "" {
		return report.ReadRequirements(path)
	}
	entity, _ := cmd.Flags().GetString("entity")
	minConf, _ := cmd.Flags().GetFloat64("min-confidence")
	fields, _ := cmd.Flags().GetStringSlice("fields")
	if minConf < 0 || minConf > 1 {
		return nil, fmt.Errorf("--min-confidence must be in [0,1], got %v", minConf)
	}
	return []types.CoverageRequirement{{
		EntityType:     entity,
		MinConfidence:  minConf,
		RequiredFields: fields,
	}}, nil
}

func annotationsFromFlags(cmd *cobra.Command) (types.Annotations, error) {
	var ann types.Annotations
	if path, _ := cmd.Flags().GetString("annotations"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return ann, fmt.Errorf("reading annotations: %w", err)
		}
		if ann, err = types.ParseAnnotations(data); err != nil {
			return ann, err
		}
	}
	boost, _ := cmd.Flags().GetStringSlice("boost")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	ann.Boost = append(ann.Boost, boost...)
	ann.Exclude = append(ann.Exclude, exclude...)
	return ann, nil
}

// registerFetchFlags declares the fetch flags on cmd.
func registerFetchFlags(cmd *cobra.Command) {
	cmd.Flags().String("query", "", "entity name (alternative to the positional argument)")
	cmd.Flags().String("requirements", "", "YAML or JSON file of coverage requirements")
	cmd.Flags().String("entity", "vendor", "entity type of the default requirement")
	cmd.Flags().Float64("min-confidence", 0.9, "minimum confidence of the default requirement")
	cmd.Flags().StringSlice("fields", []string{"title", "snippet"}, "required fields of the default requirement")
	cmd.Flags().String("annotations", "", "YAML or JSON file with boost and exclude labels")
	cmd.Flags().StringSlice("boost", nil, "label to OR-include in the web search query (repeatable)")
	cmd.Flags().StringSlice("exclude", nil, "label to exclude from the web search query (repeatable)")
	cmd.Flags().Float64("threshold", 0, "coverage threshold (default from config, 0.95)")
	cmd.Flags().Bool("no-browser", false, "never run the headless browser tier")
	cmd.Flags().Duration("timeout", 0, "abandon escalation after this long")
	cmd.Flags().Bool("json", false, "output the result as JSON")
	cmd.Flags().Bool("save", false, "save the run to the local store")
	cmd.Flags().StringP("output", "o", "", "write the run to a YAML file")
	cmd.Flags().String("data-dir", "data", "directory holding the run store")
}

func init() {
	registerFetchFlags(fetchCmd)
	rootCmd.AddCommand(fetchCmd)
}
