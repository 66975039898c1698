package types

import "time"

// HTTPConfig holds shared HTTP settings used by adapters that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout. Zero leaves the client unbounded.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "civictrace/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// RetryConfig parameterizes the retry policy of one adapter.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt. Zero
	// disables retries; negative uses the default of 3.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay" mapstructure:"initial_delay"`

	// Factor multiplies the delay on each further retry (default 2).
	Factor float64 `json:"factor" yaml:"factor" mapstructure:"factor"`

	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`
}

// LocalConfig locates the curated vendor store.
type LocalConfig struct {
	// Path is a JSON or YAML file with vendor records.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// GoogleConfig holds Custom Search Engine settings.
type GoogleConfig struct {
	APIKey   string      `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	EngineID string      `json:"engine_id,omitempty" yaml:"engine_id,omitempty" mapstructure:"engine_id"`
	Retry    RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`
}

// FECConfig holds campaign-finance API settings.
type FECConfig struct {
	APIKey  string      `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	PerPage int         `json:"per_page" yaml:"per_page" mapstructure:"per_page"`
	Retry   RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`
}

// USASpendingConfig holds federal spending-awards API settings.
type USASpendingConfig struct {
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// StartDate and EndDate bound the award search window (YYYY-MM-DD).
	StartDate string `json:"start_date" yaml:"start_date" mapstructure:"start_date"`
	EndDate   string `json:"end_date" yaml:"end_date" mapstructure:"end_date"`

	// Limit is the page size (default 20).
	Limit int         `json:"limit" yaml:"limit" mapstructure:"limit"`
	Retry RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`
}

// ScrapeConfig holds whitelisted-site scraping settings.
type ScrapeConfig struct {
	// Domains is the whitelist, queried in order.
	Domains []string `json:"domains" yaml:"domains" mapstructure:"domains"`

	// Timeout bounds each per-domain request (default 5s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// BrowserConfig holds headless browser settings for tier 4.
type BrowserConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Headless bool   `json:"headless" yaml:"headless" mapstructure:"headless"`
	Bin      string `json:"bin,omitempty" yaml:"bin,omitempty" mapstructure:"bin"`

	// IdleTimeout bounds the network-idle wait per page.
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout" mapstructure:"idle_timeout"`

	// NavigationTimeout bounds loading a single domain's search page.
	NavigationTimeout time.Duration `json:"navigation_timeout" yaml:"navigation_timeout" mapstructure:"navigation_timeout"`
}

// RateLimitConfig holds per-source request budgets for a sliding one-minute
// window. A source without a budget is never limited.
type RateLimitConfig struct {
	PerMinute map[string]int `json:"per_minute,omitempty" yaml:"per_minute,omitempty" mapstructure:"per_minute"`
}

// FetchConfig groups the settings of one escalation ladder.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// CoverageThreshold stops escalation once reached (default 0.95).
	CoverageThreshold float64 `json:"coverage_threshold" yaml:"coverage_threshold" mapstructure:"coverage_threshold"`

	Local       LocalConfig       `json:"local" yaml:"local" mapstructure:"local"`
	Google      GoogleConfig      `json:"google" yaml:"google" mapstructure:"google"`
	FEC         FECConfig         `json:"fec" yaml:"fec" mapstructure:"fec"`
	USASpending USASpendingConfig `json:"usaspending" yaml:"usaspending" mapstructure:"usaspending"`
	Scrape      ScrapeConfig      `json:"scrape" yaml:"scrape" mapstructure:"scrape"`
	Browser     BrowserConfig     `json:"browser" yaml:"browser" mapstructure:"browser"`
	RateLimit   RateLimitConfig   `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
}

// StoreConfig locates the run database.
type StoreConfig struct {
	// DataDir holds civictrace.db and exports.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// MaxResults is the default row limit for listings (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// DefaultWhitelist is the scrape and browser domain whitelist used when none
// is configured.
var DefaultWhitelist = []string{"www.acf.hhs.gov", "www.childwelfare.gov", "www.casey.org"}

// DefaultCoverageThreshold is the coverage at which the ladder stops.
const DefaultCoverageThreshold = 0.95

// DefaultFetchConfig returns the ladder defaults.
func DefaultFetchConfig() FetchConfig {
	apiRetry := RetryConfig{MaxRetries: 3, InitialDelay: time.Second, Factor: 2, MaxDelay: 30 * time.Second}
	return FetchConfig{
		HTTPConfig: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "civictrace/0.1",
		},
		CoverageThreshold: DefaultCoverageThreshold,
		Local:             LocalConfig{Path: "data/vendors.json"},
		Google:            GoogleConfig{Retry: apiRetry},
		FEC:               FECConfig{PerPage: 20, Retry: apiRetry},
		USASpending: USASpendingConfig{
			StartDate: "2019-10-01",
			EndDate:   "2024-09-30",
			Limit:     20,
			Retry:     apiRetry,
		},
		Scrape: ScrapeConfig{
			Domains: append([]string(nil), DefaultWhitelist...),
			Timeout: 5 * time.Second,
		},
		Browser: BrowserConfig{
			Enabled:           true,
			Headless:          true,
			IdleTimeout:       5 * time.Second,
			NavigationTimeout: 30 * time.Second,
		},
	}
}
