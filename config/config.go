// Package config loads runtime configuration for the multi-agent service
// from environment variables, with optional .env file support.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the multi-agent service. Every knob can
// be set either with the ATELIER_ prefix or with the bare variable name.
type Config struct {
	// Model selection
	Model           string   `envconfig:"LLM_MODEL" default:"openai/gpt-4o"` // provider-prefixed model for all experts
	AvailableModels []string `envconfig:"AVAILABLE_MODELS" default:"openai/gpt-4o,openai/gpt-4o-mini,anthropic/claude-sonnet-4"`

	// Provider credentials. All optional; a provider whose key is unset is
	// skipped at adapter construction.
	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	AnthropicKey  string `envconfig:"ANTHROPIC_API_KEY"`
	GeminiKey     string `envconfig:"GEMINI_API_KEY"`
	OpenRouterKey string `envconfig:"OPENROUTER_API_KEY"`

	// Workspace configuration
	SandboxRoot string `envconfig:"SANDBOX_ROOT" default:"output"` // parent directory for per-session sandboxes

	// Run limits
	MaxToolCalls     int `envconfig:"MAX_TOOL_CALLS" default:"15"`    // hard per-run ceiling on tool executions
	MaxIterations    int `envconfig:"MAX_ITERATIONS" default:"10"`    // model round-trips per run
	MaxToolFailures  int `envconfig:"MAX_TOOL_FAILURES" default:"3"`  // identical failures before a tool is disabled
	RecentFilesLimit int `envconfig:"RECENT_FILES_LIMIT" default:"10"`

	// Timeouts
	ExecTimeout     time.Duration `envconfig:"EXEC_TIMEOUT" default:"180s"`     // execute_bash_command
	SafeExecTimeout time.Duration `envconfig:"SAFE_EXEC_TIMEOUT" default:"30s"` // execute_safe_bash
	LLMTimeout      time.Duration `envconfig:"LLM_TIMEOUT" default:"30s"`       // per model request
	MaxRetries      int           `envconfig:"LLM_MAX_RETRIES" default:"2"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`   // debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"` // console writer for development
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from environment variables. It first attempts to
// load a .env file if one exists, then processes the environment.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables without
// attempting to load a .env file (useful for containerized deployments).
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("atelier", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that limits and timeouts are usable.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("LLM_MODEL must not be empty")
	}
	if c.MaxToolCalls <= 0 {
		return fmt.Errorf("MAX_TOOL_CALLS must be positive, got %d", c.MaxToolCalls)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("MAX_ITERATIONS must be positive, got %d", c.MaxIterations)
	}
	if c.MaxToolFailures <= 0 {
		return fmt.Errorf("MAX_TOOL_FAILURES must be positive, got %d", c.MaxToolFailures)
	}
	if c.RecentFilesLimit <= 0 {
		return fmt.Errorf("RECENT_FILES_LIMIT must be positive, got %d", c.RecentFilesLimit)
	}
	if c.ExecTimeout <= 0 {
		return fmt.Errorf("EXEC_TIMEOUT must be positive, got %s", c.ExecTimeout)
	}
	if c.SafeExecTimeout <= 0 {
		return fmt.Errorf("SAFE_EXEC_TIMEOUT must be positive, got %s", c.SafeExecTimeout)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("LLM_MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	if len(c.AvailableModels) == 0 {
		return fmt.Errorf("AVAILABLE_MODELS must list at least one model")
	}
	return nil
}

// KeyFor returns the configured API key for a provider, or empty if unset.
func (c *Config) KeyFor(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return c.OpenAIKey
	case "anthropic":
		return c.AnthropicKey
	case "gemini", "google":
		return c.GeminiKey
	case "openrouter":
		return c.OpenRouterKey
	}
	return ""
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
