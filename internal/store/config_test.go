package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
mode: DRY_RUN
strategy: zero-cross
universe:
  static: [INFY, TCS]
sizing:
  max_positions: 4
  buying_power_fraction: 0.95
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.PollSeconds != 300 {
		t.Errorf("Expected poll default 300, got %d", cfg.PollSeconds)
	}
	if cfg.Data.Period != "60d" || cfg.Data.Interval != "5m" {
		t.Errorf("Expected data defaults, got %s/%s", cfg.Data.Period, cfg.Data.Interval)
	}
	if cfg.MACD.Fast != 12 || cfg.MACD.Slow != 26 || cfg.MACD.Signal != 9 {
		t.Errorf("Expected 12/26/9 defaults, got %d/%d/%d", cfg.MACD.Fast, cfg.MACD.Slow, cfg.MACD.Signal)
	}
	if !cfg.OneActionPerCycle() {
		t.Error("Expected one_action_per_cycle to default to true")
	}
	if cfg.Portfolio.LedgerPath == "" {
		t.Error("Expected ledger path default")
	}
}

func TestOneActionPerCycleExplicitFalse(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig+`
  one_action_per_cycle: false
`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.OneActionPerCycle() {
		t.Error("Expected explicit false to be honored")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"bad mode", func(c *Config) { c.Mode = "PAPER" }, "mode"},
		{"bad strategy", func(c *Config) { c.Strategy = "macd-magic" }, "strategy"},
		{"empty universe", func(c *Config) { c.Universe.Static = nil; c.Universe.Source = "STATIC" }, "universe"},
		{"fast not below slow", func(c *Config) { c.MACD.Fast = 26; c.MACD.Slow = 12 }, "macd.fast"},
		{"zero positions", func(c *Config) { c.Sizing.MaxPositions = 0 }, "max_positions"},
		{"fraction above one", func(c *Config) { c.Sizing.BuyingPowerFraction = 1.5 }, "buying_power_fraction"},
		{"trail out of range", func(c *Config) { c.Sizing.TrailPercent = 100 }, "trail_percent"},
		{"notify without host", func(c *Config) { c.Notify.Enabled = true }, "notify"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, minimalConfig))
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantSub, err)
			}
		})
	}
}

func TestLoadConfigScrapeAllowsEmptyStatic(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
mode: LIVE
strategy: signal-cross
universe:
  source: SCRAPE
  index_url: https://example.com/constituents
sizing:
  max_positions: 2
  buying_power_fraction: 0.5
`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Universe.Source != "SCRAPE" {
		t.Errorf("Unexpected source %s", cfg.Universe.Source)
	}
}
