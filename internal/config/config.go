// Package config provides configuration loading and validation for the server
// and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when neither the environment nor a config file provides a
// value. The model settings mirror the Groq production deployment.
const (
	DefaultPort             = 8000
	DefaultProvider         = "groq"
	DefaultGroqModel        = "llama-3.3-70b-versatile"
	DefaultGeminiModel      = "gemini-2.5-flash"
	DefaultMaxTokens        = 2000
	DefaultTemperature      = 0.7
	DefaultTimeoutSeconds   = 60
	DefaultCooldownMinutes  = 5
	DefaultFailureThreshold = 0 // generic failures never bench a key
)

// Config holds all runtime settings. Fields can be loaded from a JSON file
// and are overridden by environment variables.
type Config struct {
	// Server
	Port int `json:"port,omitempty"` // HTTP listen port

	// AI provider
	Provider    string  `json:"provider,omitempty"`     // "groq" or "gemini"
	APIKeys     string  `json:"api_keys,omitempty"`     // Comma-separated credential list
	Model       string  `json:"model,omitempty"`        // Model name for the provider
	MaxTokens   int     `json:"max_tokens,omitempty"`   // Completion token cap
	Temperature float64 `json:"temperature,omitempty"`  // Sampling temperature
	TimeoutSecs int     `json:"timeout_secs,omitempty"` // Per-call timeout in seconds

	// Key pool
	CooldownMinutes  int `json:"cooldown_minutes,omitempty"`  // Bench interval for rate-limited keys
	FailureThreshold int `json:"failure_threshold,omitempty"` // Consecutive generic failures before cooldown (0 = off)

	// Optional integrations
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL URL for run history
	UseBrowser  bool   `json:"use_browser,omitempty"`  // Headless browser fallback for SPA job pages
}

// Load builds the configuration from an optional JSON file path and the
// environment. Environment variables win over file values; defaults fill the
// rest.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile reads a JSON config file.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("GROQ_API_KEYS"); v != "" {
		c.APIKeys = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxTokens = n
		}
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Temperature = f
		}
	}
	if v := os.Getenv("LLM_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TimeoutSecs = n
		}
	}
	if v := os.Getenv("KEY_COOLDOWN_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CooldownMinutes = n
		}
	}
	if v := os.Getenv("KEY_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FailureThreshold = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("USE_BROWSER"); v != "" {
		c.UseBrowser = v == "1" || strings.EqualFold(v, "true")
	}
}

// applyDefaults fills zero-valued fields.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Model == "" {
		if c.Provider == "gemini" {
			c.Model = DefaultGeminiModel
		} else {
			c.Model = DefaultGroqModel
		}
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = DefaultTimeoutSeconds
	}
	if c.CooldownMinutes == 0 {
		c.CooldownMinutes = DefaultCooldownMinutes
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
}

// Validate checks that the configuration has usable values. A missing key
// list is fatal: the service cannot call the AI provider without credentials.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config error: invalid port %d", c.Port)
	}
	if c.Provider != "groq" && c.Provider != "gemini" {
		return fmt.Errorf("config error: unknown provider %q", c.Provider)
	}
	if len(c.APIKeyList()) == 0 {
		return fmt.Errorf("config error: no API keys configured (set GROQ_API_KEYS)")
	}
	if c.CooldownMinutes < 0 {
		return fmt.Errorf("config error: 'cooldown_minutes' must be non-negative")
	}
	if c.FailureThreshold < 0 {
		return fmt.Errorf("config error: 'failure_threshold' must be non-negative")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("config error: 'temperature' must be in [0, 2]")
	}
	return nil
}

// APIKeyList parses the comma-separated key list, dropping empty entries.
func (c *Config) APIKeyList() []string {
	var keys []string
	for _, k := range strings.Split(c.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Cooldown returns the key cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

// Timeout returns the per-call LLM timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}
