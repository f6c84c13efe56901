package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/indicator"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/interfaces"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/logger"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/marketdata"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/notify"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/store"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/strategy"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/study"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/trace"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/universe"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	mode := flag.String("mode", "market", "study mode: market or params")
	configPath := flag.String("config", "config.yaml", "config file path")
	fastFlag := flag.String("fast", "8,12,16", "fast period candidates for -mode params")
	slowFlag := flag.String("slow", "20,26,32", "slow period candidates for -mode params")
	signalFlag := flag.String("signal", "5,9,13", "signal period candidates for -mode params")
	periodFlag := flag.String("period", "", "history range candidates for -mode params (default: data.period)")
	intervalFlag := flag.String("interval", "", "bar interval candidates for -mode params (default: data.interval)")
	flag.Parse()

	_ = godotenv.Load()
	must(logger.Init())
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	ctx := context.Background()

	cfg, err := store.LoadConfig(*configPath)
	must(err)

	strat, err := strategy.Parse(cfg.Strategy)
	must(err)

	data := marketdata.NewService(marketdata.NewYahooClient(), marketdata.ServiceOpts{
		Period:   cfg.Data.Period,
		Interval: cfg.Data.Interval,
		Params: indicator.Params{
			Fast:   cfg.MACD.Fast,
			Slow:   cfg.MACD.Slow,
			Signal: cfg.MACD.Signal,
		},
	})

	switch *mode {
	case "market":
		must(runMarketStudy(ctx, cfg, data, strat))
	case "params":
		periods := parseStrings(*periodFlag)
		if len(periods) == 0 {
			periods = []string{cfg.Data.Period}
		}
		intervals := parseStrings(*intervalFlag)
		if len(intervals) == 0 {
			intervals = []string{cfg.Data.Interval}
		}
		grid := study.Grid{
			Period:   periods,
			Interval: intervals,
			Fast:     parseInts(*fastFlag),
			Slow:     parseInts(*slowFlag),
			Signal:   parseInts(*signalFlag),
		}
		must(runParamStudy(ctx, cfg, strat, grid))
	default:
		log.Fatalf("unknown mode %q (supported: market, params)", *mode)
	}
}

func runMarketStudy(ctx context.Context, cfg *store.Config, data *marketdata.Service, strat strategy.Strategy) error {
	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	market := study.NewMarket(provider, data, strat, cfg.Study.TopSectors, cfg.Study.TopAssets)
	report, err := market.Run(ctx)
	if err != nil {
		return err
	}

	if err := study.WriteReport(report, cfg.Study.OutputDir); err != nil {
		return err
	}
	logger.Info(ctx, "Market study written",
		"dir", cfg.Study.OutputDir,
		"sectors", len(report.Sectors),
		"top_assets", len(report.TopAssets),
	)

	if cfg.Notify.Enabled {
		if err := mailReport(ctx, cfg, report); err != nil {
			return err
		}
	}

	b, _ := json.MarshalIndent(report.TopAssets, "", "  ")
	fmt.Println(string(b))
	return nil
}

func mailReport(ctx context.Context, cfg *store.Config, report *study.Report) error {
	mailer := notify.NewMailer(notify.MailerOpts{
		Host:        cfg.Notify.SMTPHost,
		Port:        cfg.Notify.SMTPPort,
		From:        cfg.Notify.From,
		Password:    os.Getenv("SMTP_PASSWORD"),
		To:          cfg.Notify.To,
		MaxAttempts: cfg.Notify.MaxAttempts,
	})

	body := fmt.Sprintf("Market study finished: %d sectors ranked, %d assets selected from %s.",
		len(report.Sectors), len(report.TopAssets), strings.Join(report.TopSectors, ", "))
	attachments := []string{
		filepath.Join(cfg.Study.OutputDir, "SectorPerformance.csv"),
		filepath.Join(cfg.Study.OutputDir, "AssetPerformance.csv"),
		filepath.Join(cfg.Study.OutputDir, "TopAssets.txt"),
	}
	return mailer.Send(ctx, "Market study report", body, attachments)
}

func runParamStudy(ctx context.Context, cfg *store.Config, strat strategy.Strategy, grid study.Grid) error {
	if len(cfg.Universe.Static) == 0 {
		return fmt.Errorf("parameter study needs universe.static symbols")
	}

	best, err := study.SearchParams(ctx, marketdata.NewYahooClient(), cfg.Universe.Static, strat, grid)
	if err != nil {
		return err
	}

	logger.Info(ctx, "Parameter search finished",
		"period", best.Period,
		"interval", best.Interval,
		"fast", best.Params.Fast,
		"slow", best.Params.Slow,
		"signal", best.Params.Signal,
		"mean_return_pct", best.ReturnPct,
		"evaluated", best.Evaluated,
	)

	b, _ := json.MarshalIndent(best, "", "  ")
	fmt.Println(string(b))
	return nil
}

// buildProvider picks the universe source. The market study needs sector
// labels, so a static universe must be grouped under a single pseudo sector.
func buildProvider(cfg *store.Config) (interfaces.UniverseProvider, error) {
	if cfg.Universe.Source == "SCRAPE" {
		return universe.NewScraper(cfg.Universe.IndexURL, universe.DefaultSelectors(), 30*time.Second), nil
	}
	if len(cfg.Universe.Static) == 0 {
		return nil, fmt.Errorf("universe.static is empty and universe.source is not SCRAPE")
	}
	return universe.NewStatic(map[string][]string{"Configured": cfg.Universe.Static}), nil
}

func parseStrings(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInts(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			log.Fatalf("invalid period list %q: %v", s, err)
		}
		out = append(out, n)
	}
	return out
}
