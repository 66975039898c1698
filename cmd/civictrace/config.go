// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/civictrace/pkg/types"
)

// Secret file names under .secrets/.
const (
	secretGoogleKey      = "google-cse-api-key"
	secretGoogleEngine   = "google-cse-engine-id"
	secretFECKey         = "fec-api-key"
	secretUSASpendingKey = "usaspending-api-key"
)

// envKeys are bound explicitly so CIVICTRACE_FETCH_GOOGLE_API_KEY and
// friends reach Unmarshal even when no config file names them.
var envKeys = []string{
	"fetch.coverage_threshold",
	"fetch.google.api_key",
	"fetch.google.engine_id",
	"fetch.fec.api_key",
	"fetch.usaspending.api_key",
	"fetch.local.path",
	"fetch.browser.enabled",
	"store.data_dir",
}

// fileConfig mirrors the layout of civictrace.yaml.
type fileConfig struct {
	Fetch types.FetchConfig `mapstructure:"fetch"`
	Store types.StoreConfig `mapstructure:"store"`
}

// loadConfig decodes viper settings over the defaults and fills missing
// credentials from .secrets/.
func loadConfig() (fileConfig, error) {
	cfg := fileConfig{
		Fetch: types.DefaultFetchConfig(),
		Store: types.StoreConfig{DataDir: "data", MaxResults: 20},
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	f := &cfg.Fetch
	f.Google.APIKey = secretDefault(secretGoogleKey, f.Google.APIKey)
	f.Google.EngineID = secretDefault(secretGoogleEngine, f.Google.EngineID)
	f.FEC.APIKey = secretDefault(secretFECKey, f.FEC.APIKey)
	f.USASpending.APIKey = secretDefault(secretUSASpendingKey, f.USASpending.APIKey)
	if len(f.Scrape.Domains) == 0 {
		f.Scrape.Domains = append([]string(nil), types.DefaultWhitelist...)
	}
	return cfg, nil
}

// storeConfig applies the --data-dir and --max-results flags, when the
// command has them, over the loaded store config.
func storeConfig(cmd *cobra.Command, cfg types.StoreConfig) types.StoreConfig {
	if f := cmd.Flags().Lookup("data-dir"); f != nil && f.Changed {
		cfg.DataDir = f.Value.String()
	}
	if n, err := cmd.Flags().GetInt("max-results"); err == nil && n > 0 {
		cfg.MaxResults = n
	}
	return cfg
}
