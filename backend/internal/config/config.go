// Package config loads the engine server's environment-variable
// configuration (spec §6.6): the adapter credential is required, the
// rest fall back to sane development defaults. A missing required
// variable aborts startup with a structured report rather than a bare
// error string.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the turn-pipeline server.
type Config struct {
	Server  ServerConfig
	Auth    AuthConfig
	Adapter AdapterConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port        string
	Environment string
	BundleDir   string
	StatePath   string
}

// AuthConfig holds the JWT role-matrix configuration consumed by
// internal/auth (player/dm claims, spec §6's GM-only gating).
type AuthConfig struct {
	JWTSecret            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// AdapterConfig selects and configures the pipeline's Adapter (spec §4.9,
// §6.6). Provider defaults to "mock", which needs no credential.
type AdapterConfig struct {
	Provider string // "openai", "anthropic", "openrouter", or "mock"
	APIKey   string
	Model    string
}

// MissingVarReport is the structured abort report spec §6.6 requires
// when a required environment variable is absent: one entry per
// missing variable, named rather than a single opaque error string.
type MissingVarReport struct {
	Missing []string
}

func (r *MissingVarReport) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(r.Missing, ", "))
}

// Load loads configuration from environment variables. The adapter
// provider is read from ADAPTER_PROVIDER (default "mock"); when it names
// a real provider, that provider's `<PROVIDER>_API_KEY` is required and
// Load returns a *MissingVarReport if it is absent.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Server.Port = strconv.Itoa(getEnvAsInt("PORT", 8080))
	cfg.Server.Environment = getEnv("NODE_ENV", "development")
	cfg.Server.BundleDir = getEnv("BUNDLE_DIR", "./bundles")
	cfg.Server.StatePath = getEnv("STATE_PATH", "./game_state.json")

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", "dev-only-secret-change-in-production")
	cfg.Auth.AccessTokenDuration = getEnvAsDuration("ACCESS_TOKEN_DURATION", 15*time.Minute)
	cfg.Auth.RefreshTokenDuration = getEnvAsDuration("REFRESH_TOKEN_DURATION", 7*24*time.Hour)

	cfg.Adapter.Provider = strings.ToLower(getEnv("ADAPTER_PROVIDER", "mock"))
	cfg.Adapter.Model = getEnv("ADAPTER_MODEL", defaultModel(cfg.Adapter.Provider))

	if cfg.Adapter.Provider != "mock" {
		key := getEnv(adapterKeyVar(cfg.Adapter.Provider), "")
		if key == "" {
			return nil, &MissingVarReport{Missing: []string{adapterKeyVar(cfg.Adapter.Provider)}}
		}
		cfg.Adapter.APIKey = key
	}

	return cfg, nil
}

// adapterKeyVar derives the `<PROVIDER>_API_KEY` variable name spec
// §6.6 names.
func adapterKeyVar(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4-turbo-preview"
	case "anthropic":
		return "claude-3-5-sonnet-latest"
	case "openrouter":
		return "openrouter/auto"
	default:
		return ""
	}
}

// getEnv gets an environment variable with a fallback value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a fallback value.
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvAsDuration gets an environment variable as a duration with a fallback value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(strValue)
	if err != nil {
		return defaultValue
	}
	return duration
}

// Validate runs structural sanity checks beyond what Load already
// enforces (the adapter credential is checked at Load time since its
// variable name depends on the configured provider).
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be numeric: %w", err)
	}
	if c.Server.BundleDir == "" {
		return fmt.Errorf("bundle directory is required")
	}
	if c.Server.StatePath == "" {
		return fmt.Errorf("state path is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT secret must be at least 16 characters")
	}
	if c.Auth.AccessTokenDuration <= 0 {
		return fmt.Errorf("access token duration must be positive")
	}
	if c.Auth.RefreshTokenDuration <= 0 {
		return fmt.Errorf("refresh token duration must be positive")
	}
	switch c.Adapter.Provider {
	case "mock", "openai", "anthropic", "openrouter":
	default:
		return fmt.Errorf("unknown adapter provider %q", c.Adapter.Provider)
	}
	if c.Adapter.Provider != "mock" && c.Adapter.APIKey == "" {
		return fmt.Errorf("%s is required for adapter provider %q", adapterKeyVar(c.Adapter.Provider), c.Adapter.Provider)
	}
	return nil
}
