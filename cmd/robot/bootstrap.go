package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/broker/brokerobs"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/broker/kite"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/engine"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/engine/engineobs"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/indicator"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/interfaces"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/logger"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/marketdata"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/notify"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/store"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/strategy"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/trace"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/tradelog"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/universe"
)

// initializeSystem initializes environment, logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("ROBOT_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old tradelog files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("ROBOT_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeBroker builds the venue adapter with observability
func initializeBroker(ctx context.Context, cfg *store.Config) (interfaces.Broker, error) {
	brk, err := kite.New(kite.Params{
		Mode:        cfg.Mode,
		APIKey:      os.Getenv("KITE_API_KEY"),
		AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
		Exchange:    cfg.Exchange,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	}

	return brokerobs.Wrap(brk), nil
}

// initializeMarketData layers freshness validation over the chart client
func initializeMarketData(cfg *store.Config) *marketdata.Service {
	return marketdata.NewService(marketdata.NewYahooClient(), marketdata.ServiceOpts{
		Period:   cfg.Data.Period,
		Interval: cfg.Data.Interval,
		Params: indicator.Params{
			Fast:   cfg.MACD.Fast,
			Slow:   cfg.MACD.Slow,
			Signal: cfg.MACD.Signal,
		},
		FreshAttempts: cfg.Data.FreshAttempts,
		FreshDelay:    time.Duration(cfg.Data.FreshDelaySeconds) * time.Second,
	})
}

// resolveUniverse returns the tradable symbol list per config
func resolveUniverse(ctx context.Context, cfg *store.Config) ([]string, error) {
	if cfg.Universe.Source != "SCRAPE" {
		return cfg.Universe.Static, nil
	}

	scraper := universe.NewScraper(cfg.Universe.IndexURL, universe.DefaultSelectors(), 30*time.Second)
	symbols, err := universe.AllSymbols(ctx, scraper)
	if err != nil {
		return nil, fmt.Errorf("scrape universe: %w", err)
	}
	logger.Info(ctx, "Universe scraped", "url", cfg.Universe.IndexURL, "symbols", len(symbols))
	return symbols, nil
}

// initializeEngine builds the trading engine with observability
func initializeEngine(cfg *store.Config, brk interfaces.Broker, data engine.SeriesSource,
	strat strategy.Strategy, symbols []string) interfaces.Engine {
	eng := engine.New(cfg, brk, data, strat, symbols)
	return engineobs.Wrap(eng)
}

// initializeNotifier builds the mail reporter, nil when disabled
func initializeNotifier(cfg *store.Config) interfaces.Notifier {
	if !cfg.Notify.Enabled {
		return nil
	}
	return notify.NewMailer(notify.MailerOpts{
		Host:        cfg.Notify.SMTPHost,
		Port:        cfg.Notify.SMTPPort,
		From:        cfg.Notify.From,
		Password:    os.Getenv("SMTP_PASSWORD"),
		To:          cfg.Notify.To,
		MaxAttempts: cfg.Notify.MaxAttempts,
	})
}
