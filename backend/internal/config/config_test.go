package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "a-very-long-secret-key-value"

func withCleanEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"PORT", "NODE_ENV", "BUNDLE_DIR", "STATE_PATH",
		"JWT_SECRET", "ACCESS_TOKEN_DURATION", "REFRESH_TOKEN_DURATION",
		"ADAPTER_PROVIDER", "ADAPTER_MODEL",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY",
	}
	original := make(map[string]string, len(envVars))
	for _, key := range envVars {
		original[key] = os.Getenv(key)
		require.NoError(t, os.Unsetenv(key))
	}
	t.Cleanup(func() {
		for key, value := range original {
			if value != "" {
				require.NoError(t, os.Setenv(key, value))
			} else {
				require.NoError(t, os.Unsetenv(key))
			}
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	withCleanEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "./bundles", cfg.Server.BundleDir)
	assert.Equal(t, "./game_state.json", cfg.Server.StatePath)

	assert.Equal(t, "dev-only-secret-change-in-production", cfg.Auth.JWTSecret)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenDuration)

	assert.Equal(t, "mock", cfg.Adapter.Provider)
	assert.Equal(t, "", cfg.Adapter.APIKey)
}

func TestLoadFromEnvironment(t *testing.T) {
	withCleanEnv(t)

	require.NoError(t, os.Setenv("PORT", "3000"))
	require.NoError(t, os.Setenv("NODE_ENV", "production"))
	require.NoError(t, os.Setenv("BUNDLE_DIR", "/var/data/bundles"))
	require.NoError(t, os.Setenv("STATE_PATH", "/var/data/state.json"))
	require.NoError(t, os.Setenv("JWT_SECRET", testJWTSecret))
	require.NoError(t, os.Setenv("ACCESS_TOKEN_DURATION", "30m"))
	require.NoError(t, os.Setenv("REFRESH_TOKEN_DURATION", "336h"))
	require.NoError(t, os.Setenv("ADAPTER_PROVIDER", "openai"))
	require.NoError(t, os.Setenv("ADAPTER_MODEL", "gpt-4"))
	require.NoError(t, os.Setenv("OPENAI_API_KEY", "test-key"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Environment)
	assert.Equal(t, "/var/data/bundles", cfg.Server.BundleDir)
	assert.Equal(t, "/var/data/state.json", cfg.Server.StatePath)
	assert.Equal(t, testJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 14*24*time.Hour, cfg.Auth.RefreshTokenDuration)
	assert.Equal(t, "openai", cfg.Adapter.Provider)
	assert.Equal(t, "gpt-4", cfg.Adapter.Model)
	assert.Equal(t, "test-key", cfg.Adapter.APIKey)
}

func TestLoadMissingAdapterKeyAbortsWithStructuredReport(t *testing.T) {
	withCleanEnv(t)
	require.NoError(t, os.Setenv("ADAPTER_PROVIDER", "anthropic"))

	cfg, err := Load()
	require.Nil(t, cfg)
	require.Error(t, err)

	report, ok := err.(*MissingVarReport)
	require.True(t, ok, "expected a *MissingVarReport, got %T", err)
	assert.Equal(t, []string{"ANTHROPIC_API_KEY"}, report.Missing)
	assert.Contains(t, report.Error(), "ANTHROPIC_API_KEY")
}

func TestLoadInvalidDurationFallsBackToDefault(t *testing.T) {
	withCleanEnv(t)
	require.NoError(t, os.Setenv("ACCESS_TOKEN_DURATION", "not-a-duration"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
}

func TestLoadInvalidPortFallsBackToDefault(t *testing.T) {
	withCleanEnv(t)
	require.NoError(t, os.Setenv("PORT", "not-a-port"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      "8080",
			BundleDir: "./bundles",
			StatePath: "./game_state.json",
		},
		Auth: AuthConfig{
			JWTSecret:            testJWTSecret,
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
		},
		Adapter: AdapterConfig{Provider: "mock"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid configuration"},
		{
			name:    "missing server port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "non-numeric server port",
			mutate:  func(c *Config) { c.Server.Port = "http" },
			wantErr: "server port must be numeric",
		},
		{
			name:    "missing bundle directory",
			mutate:  func(c *Config) { c.Server.BundleDir = "" },
			wantErr: "bundle directory is required",
		},
		{
			name:    "missing state path",
			mutate:  func(c *Config) { c.Server.StatePath = "" },
			wantErr: "state path is required",
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "short" },
			wantErr: "JWT secret must be at least 16 characters",
		},
		{
			name:    "non-positive access token duration",
			mutate:  func(c *Config) { c.Auth.AccessTokenDuration = 0 },
			wantErr: "access token duration must be positive",
		},
		{
			name:    "non-positive refresh token duration",
			mutate:  func(c *Config) { c.Auth.RefreshTokenDuration = 0 },
			wantErr: "refresh token duration must be positive",
		},
		{
			name:    "unknown adapter provider",
			mutate:  func(c *Config) { c.Adapter.Provider = "bogus" },
			wantErr: `unknown adapter provider "bogus"`,
		},
		{
			name: "real adapter provider requires API key",
			mutate: func(c *Config) {
				c.Adapter.Provider = "openai"
				c.Adapter.APIKey = ""
			},
			wantErr: "OPENAI_API_KEY is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
