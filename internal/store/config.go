package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode        string `yaml:"mode"`
	PollSeconds int    `yaml:"poll_seconds"`
	Exchange    string `yaml:"exchange"`
	Strategy    string `yaml:"strategy"`
	Universe    struct {
		Static   []string `yaml:"static"`
		Source   string   `yaml:"source"`
		IndexURL string   `yaml:"index_url"`
	} `yaml:"universe"`
	Data struct {
		Period            string `yaml:"period"`
		Interval          string `yaml:"interval"`
		FreshAttempts     int    `yaml:"fresh_attempts"`
		FreshDelaySeconds int    `yaml:"fresh_delay_seconds"`
	} `yaml:"data"`
	MACD struct {
		Fast   int `yaml:"fast"`
		Slow   int `yaml:"slow"`
		Signal int `yaml:"signal"`
	} `yaml:"macd"`
	Sizing struct {
		MaxPositions        int     `yaml:"max_positions"`
		BuyingPowerFraction float64 `yaml:"buying_power_fraction"`
		TrailPercent        float64 `yaml:"trail_percent"`
		// Pointer so an absent key defaults to true.
		OneActionPerCycle *bool `yaml:"one_action_per_cycle"`
	} `yaml:"sizing"`
	Confirm struct {
		Attempts     int `yaml:"attempts"`
		DelaySeconds int `yaml:"delay_seconds"`
	} `yaml:"confirm"`
	Portfolio struct {
		LedgerPath string `yaml:"ledger_path"`
	} `yaml:"portfolio"`
	Study struct {
		TopSectors int    `yaml:"top_sectors"`
		TopAssets  int    `yaml:"top_assets"`
		OutputDir  string `yaml:"output_dir"`
	} `yaml:"study"`
	Notify struct {
		Enabled     bool   `yaml:"enabled"`
		SMTPHost    string `yaml:"smtp_host"`
		SMTPPort    int    `yaml:"smtp_port"`
		From        string `yaml:"from"`
		To          string `yaml:"to"`
		MaxAttempts int    `yaml:"max_attempts"`
	} `yaml:"notify"`
}

// OneActionPerCycle reports whether the engine stops after its first
// executed order. On by default; exhaustive per-cycle rebalancing is the
// opt-in behavior.
func (c *Config) OneActionPerCycle() bool {
	return c.Sizing.OneActionPerCycle == nil || *c.Sizing.OneActionPerCycle
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Strategy != "zero-cross" && c.Strategy != "signal-cross" {
		return fmt.Errorf("invalid strategy '%s': must be 'zero-cross' or 'signal-cross'", c.Strategy)
	}
	if len(c.Universe.Static) == 0 && c.Universe.Source != "SCRAPE" {
		return errors.New("universe.static cannot be empty unless universe.source is 'SCRAPE'")
	}
	if c.MACD.Fast <= 0 || c.MACD.Slow <= 0 || c.MACD.Signal <= 0 {
		return errors.New("macd periods must be positive")
	}
	if c.MACD.Fast >= c.MACD.Slow {
		return fmt.Errorf("macd.fast (%d) must be smaller than macd.slow (%d)", c.MACD.Fast, c.MACD.Slow)
	}
	if c.Sizing.MaxPositions <= 0 {
		return errors.New("sizing.max_positions must be positive")
	}
	if c.Sizing.BuyingPowerFraction <= 0 || c.Sizing.BuyingPowerFraction > 1 {
		return fmt.Errorf("sizing.buying_power_fraction must be in (0, 1], got %.2f", c.Sizing.BuyingPowerFraction)
	}
	if c.Sizing.TrailPercent < 0 || c.Sizing.TrailPercent >= 100 {
		return fmt.Errorf("sizing.trail_percent must be in [0, 100), got %.2f", c.Sizing.TrailPercent)
	}
	if c.Notify.Enabled && (c.Notify.SMTPHost == "" || c.Notify.From == "" || c.Notify.To == "") {
		return errors.New("notify requires smtp_host, from and to when enabled")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.PollSeconds == 0 {
		c.PollSeconds = 300
	}
	if c.Universe.Source == "" {
		c.Universe.Source = "STATIC"
	}
	if c.Data.Period == "" {
		c.Data.Period = "60d"
	}
	if c.Data.Interval == "" {
		c.Data.Interval = "5m"
	}
	if c.Data.FreshAttempts == 0 {
		c.Data.FreshAttempts = 8
	}
	if c.Data.FreshDelaySeconds == 0 {
		c.Data.FreshDelaySeconds = 3
	}
	if c.MACD.Fast == 0 {
		c.MACD.Fast = 12
	}
	if c.MACD.Slow == 0 {
		c.MACD.Slow = 26
	}
	if c.MACD.Signal == 0 {
		c.MACD.Signal = 9
	}
	if c.Confirm.Attempts == 0 {
		c.Confirm.Attempts = 5
	}
	if c.Confirm.DelaySeconds == 0 {
		c.Confirm.DelaySeconds = 1
	}
	if c.Portfolio.LedgerPath == "" {
		c.Portfolio.LedgerPath = "DataStorage/PortfolioHistory.csv"
	}
	if c.Study.TopSectors == 0 {
		c.Study.TopSectors = 2
	}
	if c.Study.TopAssets == 0 {
		c.Study.TopAssets = 5
	}
	if c.Study.OutputDir == "" {
		c.Study.OutputDir = "DataStorage"
	}
	if c.Notify.SMTPPort == 0 {
		c.Notify.SMTPPort = 465
	}
	if c.Notify.MaxAttempts == 0 {
		c.Notify.MaxAttempts = 10
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
