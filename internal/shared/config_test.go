package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./ymlib.db" {
			t.Errorf("expected database path ./ymlib.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8000 {
			t.Errorf("expected server port 8000, got %d", config.Server.Port)
		}

		if config.API.BaseURL != "http://localhost:8000/api/v1" {
			t.Errorf("expected api base URL http://localhost:8000/api/v1, got %s", config.API.BaseURL)
		}

		if config.API.ListLimit != 9999 {
			t.Errorf("expected list limit 9999, got %d", config.API.ListLimit)
		}

		if got := config.API.Timeout().Seconds(); got != 30 {
			t.Errorf("expected 30s timeout, got %v", got)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[api]
base_url = "https://backup.example.com/api/v1"
timeout_seconds = 10

[database]
path = "/custom/path.db"

[server]
port = 9090

[log]
level = "debug"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.API.BaseURL != "https://backup.example.com/api/v1" {
			t.Errorf("expected custom base URL, got %s", config.API.BaseURL)
		}
		if config.API.TimeoutSeconds != 10 {
			t.Errorf("expected timeout 10, got %d", config.API.TimeoutSeconds)
		}
		if config.API.ListLimit != 9999 {
			t.Errorf("expected list limit to keep default 9999, got %d", config.API.ListLimit)
		}
		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Server.Port != 9090 {
			t.Errorf("expected server port 9090, got %d", config.Server.Port)
		}
		if config.Server.Host != "127.0.0.1" {
			t.Errorf("expected server host to keep default, got %s", config.Server.Host)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tt := []struct {
			name   string
			mutate func(c *Config)
		}{
			{name: "relative base url", mutate: func(c *Config) { c.API.BaseURL = "/api/v1" }},
			{name: "zero timeout", mutate: func(c *Config) { c.API.TimeoutSeconds = 0 }},
			{name: "negative rate", mutate: func(c *Config) { c.API.RequestsPerSecond = -1 }},
			{name: "zero list limit", mutate: func(c *Config) { c.API.ListLimit = 0 }},
			{name: "empty database path", mutate: func(c *Config) { c.Database.Path = "" }},
			{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "loud" }},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				config := DefaultConfig()
				tc.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})
}
