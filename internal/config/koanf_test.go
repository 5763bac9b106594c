// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearMappedEnv unsets every mapped variable for the duration of the test.
func clearMappedEnv(t *testing.T) {
	t.Helper()
	keys := []string{ConfigPathEnvVar}
	for k := range envMappings {
		keys = append(keys, strings.ToUpper(k))
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path != "/data/basketwise.duckdb" {
		t.Errorf("Database.Path = %q, want /data/basketwise.duckdb", cfg.Database.Path)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Recommend.MinSupport != 0.01 {
		t.Errorf("Recommend.MinSupport = %v, want 0.01", cfg.Recommend.MinSupport)
	}
	if cfg.Recommend.MinConfidence != 0.30 {
		t.Errorf("Recommend.MinConfidence = %v, want 0.30", cfg.Recommend.MinConfidence)
	}
	if cfg.Recommend.MinLift != 1.0 {
		t.Errorf("Recommend.MinLift = %v, want 1.0", cfg.Recommend.MinLift)
	}
	if cfg.Recommend.MaxItemsetSize != 3 {
		t.Errorf("Recommend.MaxItemsetSize = %d, want 3", cfg.Recommend.MaxItemsetSize)
	}
	if cfg.Recommend.RuleFreshnessDays != 7 {
		t.Errorf("Recommend.RuleFreshnessDays = %d, want 7", cfg.Recommend.RuleFreshnessDays)
	}
	if cfg.Recommend.DefaultLimit != 10 || cfg.Recommend.MaxLimit != 20 {
		t.Errorf("limits = %d/%d, want 10/20", cfg.Recommend.DefaultLimit, cfg.Recommend.MaxLimit)
	}
	if got := cfg.Recommend.Generation.Interval(); got != 24*time.Hour {
		t.Errorf("Generation.Interval() = %v, want 24h", got)
	}
	if got := cfg.Recommend.Generation.StartupDelay(); got != 5*time.Minute {
		t.Errorf("Generation.StartupDelay() = %v, want 5m", got)
	}
	if got := cfg.Recommend.Generation.ErrorRetry(); got != time.Hour {
		t.Errorf("Generation.ErrorRetry() = %v, want 1h", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"DUCKDB_PATH", "database.path"},
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"APRIORI_MIN_SUPPORT", "recommend.min_support"},
		{"APRIORI_GENERATION_INTERVAL_HOURS", "recommend.generation.interval_hours"},
		{"APRIORI_STARTUP_DELAY_MINUTES", "recommend.generation.startup_delay_minutes"},
		{"APRIORI_ERROR_RETRY_MINUTES", "recommend.generation.error_retry_minutes"},
		{"RUNSTATE_PATH", "runstate.path"},
		{"apriori_min_lift", "recommend.min_lift"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	clearMappedEnv(t)
	tmpDir := t.TempDir()

	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Errorf("Failed to restore working directory: %v", err)
		}
	})
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}

	t.Run("no config file exists", func(t *testing.T) {
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty string", got)
		}
	})

	t.Run("config.yaml exists", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("logging: {}"), 0o644); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}
		defer os.Remove(filepath.Join(tmpDir, "config.yaml"))

		if got := findConfigFile(); got != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", got)
		}
	})

	t.Run("CONFIG_PATH takes precedence", func(t *testing.T) {
		customPath := filepath.Join(tmpDir, "custom.yaml")
		if err := os.WriteFile(customPath, []byte("logging: {}"), 0o644); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}
		t.Setenv(ConfigPathEnvVar, customPath)

		if got := findConfigFile(); got != customPath {
			t.Errorf("findConfigFile() = %q, want %q", got, customPath)
		}
	})

	t.Run("CONFIG_PATH pointing nowhere falls back", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty string", got)
		}
	})
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	clearMappedEnv(t)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("APRIORI_MIN_SUPPORT", "0.05")
	t.Setenv("APRIORI_GENERATION_INTERVAL_HOURS", "6")
	t.Setenv("APRIORI_STARTUP_DELAY_MINUTES", "0")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RECOMMEND_REGENERATION_TIMEOUT", "45s")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Recommend.MinSupport != 0.05 {
		t.Errorf("Recommend.MinSupport = %v, want 0.05", cfg.Recommend.MinSupport)
	}
	if got := cfg.Recommend.Generation.Interval(); got != 6*time.Hour {
		t.Errorf("Generation.Interval() = %v, want 6h", got)
	}
	if got := cfg.Recommend.Generation.StartupDelay(); got != 0 {
		t.Errorf("Generation.StartupDelay() = %v, want 0", got)
	}
	if cfg.Recommend.RegenerationTimeout != 45*time.Second {
		t.Errorf("RegenerationTimeout = %v, want 45s", cfg.Recommend.RegenerationTimeout)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v, want two trimmed origins", cfg.Security.CORSOrigins)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
}

func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	clearMappedEnv(t)

	configContent := `
server:
  port: 8888
logging:
  level: "warn"
recommend:
  min_confidence: 0.5
  generation:
    interval_hours: 12
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DUCKDB_PATH", "/custom/db.duckdb")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888 (from file)", cfg.Server.Port)
	}
	if cfg.Recommend.MinConfidence != 0.5 {
		t.Errorf("MinConfidence = %v, want 0.5 (from file)", cfg.Recommend.MinConfidence)
	}
	if cfg.Recommend.Generation.IntervalHours != 12 {
		t.Errorf("IntervalHours = %d, want 12 (from file)", cfg.Recommend.Generation.IntervalHours)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want error (env override)", cfg.Logging.Level)
	}
	if cfg.Database.Path != "/custom/db.duckdb" {
		t.Errorf("Database.Path = %q, want /custom/db.duckdb (env override)", cfg.Database.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "HTTP_PORT"},
		{"support above one", func(c *Config) { c.Recommend.MinSupport = 1.5 }, "APRIORI_MIN_SUPPORT"},
		{"zero support", func(c *Config) { c.Recommend.MinSupport = 0 }, "APRIORI_MIN_SUPPORT"},
		{"itemset size one", func(c *Config) { c.Recommend.MaxItemsetSize = 1 }, "APRIORI_MAX_ITEMSET_SIZE"},
		{"default over max", func(c *Config) { c.Recommend.DefaultLimit = 30 }, "RECOMMEND_DEFAULT_LIMIT"},
		{"zero interval", func(c *Config) { c.Recommend.Generation.IntervalHours = 0 }, "APRIORI_GENERATION_INTERVAL_HOURS"},
		{"zero interval disabled", func(c *Config) {
			c.Recommend.Generation.Enabled = false
			c.Recommend.Generation.IntervalHours = 0
		}, ""},
		{"runstate path", func(c *Config) { c.RunState.Path = "" }, "RUNSTATE_PATH"},
		{"runstate in memory", func(c *Config) {
			c.RunState.Path = ""
			c.RunState.InMemory = true
		}, ""},
		{"rate limit window", func(c *Config) { c.Security.RateLimitWindow = time.Millisecond }, "RATE_LIMIT_WINDOW"},
		{"rate limit disabled", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitReqs = 0
		}, ""},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
