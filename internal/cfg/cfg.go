// Package cfg holds sentinel's application configuration, registered as
// flags and filled from SENTINEL_-prefixed environment variables by main.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
)

// Config adds sentinel-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int

	AzureOpenAIEndpoint   string
	AzureOpenAIKey        string
	AzureOpenAIDeployment string
	AzureOpenAIAPIVersion string

	ClaudeAPIKey string
	ClaudeModel  string

	DatabaseURL        string
	ArchiveDatabaseURL string

	RateLimitRequests      int
	RateLimitWindowSeconds int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.AzureOpenAIEndpoint, "azure-openai-endpoint", "", "Azure OpenAI resource base URL for the primary classifier")
	fs.StringVar(&c.AzureOpenAIKey, "azure-openai-key", "", "API key for the Azure OpenAI primary classifier")
	fs.StringVar(&c.AzureOpenAIDeployment, "azure-openai-deployment", "", "Azure OpenAI deployment identifier")
	fs.StringVar(&c.AzureOpenAIAPIVersion, "azure-openai-api-version", "2024-06-01", "Azure OpenAI API version")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude fallback classifier (empty = no fallback provider)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model for the fallback classifier")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "primary PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.ArchiveDatabaseURL, "archive-database-url", "", "cold-store PostgreSQL connection URL, TLS required (empty = archival disabled)")
	fs.IntVar(&c.RateLimitRequests, "rate-limit-requests", 100, "primary-provider request budget per window (1..10000)")
	fs.IntVar(&c.RateLimitWindowSeconds, "rate-limit-window-seconds", 60, "rate budget window in seconds (1..3600)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// The primary classifier is mandatory; triage cannot run without it
	if c.AzureOpenAIEndpoint == "" {
		errs = append(errs, errors.New("AZURE_OPENAI_ENDPOINT is required"))
	}
	if c.AzureOpenAIKey == "" {
		errs = append(errs, errors.New("AZURE_OPENAI_KEY is required"))
	}
	if c.AzureOpenAIDeployment == "" {
		errs = append(errs, errors.New("AZURE_OPENAI_DEPLOYMENT is required"))
	}
	if c.AzureOpenAIAPIVersion == "" {
		errs = append(errs, errors.New("AZURE_OPENAI_API_VERSION is required"))
	}

	// Fallback provider is optional, but a key without a model is a mistake
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	// Cold-store connections must use TLS
	if c.ArchiveDatabaseURL != "" {
		if err := validateTLSDatabaseURL(c.ArchiveDatabaseURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid ARCHIVE_DATABASE_URL: %w", err))
		}
	}

	if c.RateLimitRequests <= 0 || c.RateLimitRequests > 10000 {
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT_REQUESTS %d (must be 1..10000)", c.RateLimitRequests))
	}
	if c.RateLimitWindowSeconds <= 0 || c.RateLimitWindowSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT_WINDOW_SECONDS %d (must be 1..3600)", c.RateLimitWindowSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// validateTLSDatabaseURL enforces an sslmode that actually encrypts.
func validateTLSDatabaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	switch u.Query().Get("sslmode") {
	case "require", "verify-ca", "verify-full":
		return nil
	case "":
		return errors.New("sslmode is required (require, verify-ca, or verify-full)")
	default:
		return fmt.Errorf("sslmode %q does not enforce TLS", u.Query().Get("sslmode"))
	}
}
