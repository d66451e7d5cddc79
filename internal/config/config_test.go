package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempConfig(t, `
polymarket:
  timeout: 5s
  max_retries: 2
  trade_limit: 500

history:
  fidelity_minutes: 15
  lookback_hours: 36

storage:
  db_path: "./data/test.db"
  max_snapshots: 50

telegram:
  bot_token: "test_token"
  chat_id: "test_chat_id"
  enabled: true

logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Polymarket.Timeout != 5*time.Second {
		t.Errorf("Unexpected timeout: %v", cfg.Polymarket.Timeout)
	}
	if cfg.Polymarket.MaxRetries != 2 {
		t.Errorf("Unexpected max retries: %d", cfg.Polymarket.MaxRetries)
	}
	if cfg.History.FidelityMinutes != 15 {
		t.Errorf("Unexpected fidelity: %d", cfg.History.FidelityMinutes)
	}
	if cfg.History.LookbackHours != 36 {
		t.Errorf("Unexpected lookback: %d", cfg.History.LookbackHours)
	}
	if cfg.Storage.DBPath != "./data/test.db" {
		t.Errorf("Unexpected db path: %s", cfg.Storage.DBPath)
	}
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken != "test_token" {
		t.Errorf("Unexpected telegram config: %+v", cfg.Telegram)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	// A minimal file picks up defaults for everything else.
	path := writeTempConfig(t, `
logging:
  level: "info"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Polymarket.GammaAPIURL != "https://gamma-api.polymarket.com" {
		t.Errorf("Unexpected gamma URL: %s", cfg.Polymarket.GammaAPIURL)
	}
	if cfg.Polymarket.DataAPIURL != "https://data-api.polymarket.com" {
		t.Errorf("Unexpected data URL: %s", cfg.Polymarket.DataAPIURL)
	}
	if cfg.Polymarket.CLOBAPIURL != "https://clob.polymarket.com" {
		t.Errorf("Unexpected clob URL: %s", cfg.Polymarket.CLOBAPIURL)
	}
	if cfg.Polymarket.TradeLimit != 10000 {
		t.Errorf("Unexpected trade limit: %d", cfg.Polymarket.TradeLimit)
	}
	if cfg.History.FidelityMinutes != 5 || cfg.History.LookbackHours != 24 {
		t.Errorf("Unexpected history defaults: %+v", cfg.History)
	}
	if cfg.Telegram.Enabled {
		t.Error("Telegram should be disabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidateErrors(t *testing.T) {
	base := func() *Config {
		path := writeTempConfig(t, "logging:\n  level: info\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty gamma url", func(c *Config) { c.Polymarket.GammaAPIURL = "" }},
		{"empty data url", func(c *Config) { c.Polymarket.DataAPIURL = "" }},
		{"empty clob url", func(c *Config) { c.Polymarket.CLOBAPIURL = "" }},
		{"zero timeout", func(c *Config) { c.Polymarket.Timeout = 0 }},
		{"zero retries", func(c *Config) { c.Polymarket.MaxRetries = 0 }},
		{"zero trade limit", func(c *Config) { c.Polymarket.TradeLimit = 0 }},
		{"zero fidelity", func(c *Config) { c.History.FidelityMinutes = 0 }},
		{"zero lookback", func(c *Config) { c.History.LookbackHours = 0 }},
		{"empty db path", func(c *Config) { c.Storage.DBPath = "" }},
		{"zero snapshots", func(c *Config) { c.Storage.MaxSnapshots = 0 }},
		{"telegram enabled without token", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" }},
		{"telegram enabled without chat", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.BotToken = "t" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
