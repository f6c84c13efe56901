package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/interfaces"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/logger"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/portfolio"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/store"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/strategy"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	must(initializeSystem())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	must(err)

	compressOldLogs(ctx)

	strat, err := strategy.Parse(cfg.Strategy)
	must(err)

	symbols, err := resolveUniverse(ctx, cfg)
	must(err)

	brk, err := initializeBroker(ctx, cfg)
	must(err)

	data := initializeMarketData(cfg)
	eng := initializeEngine(cfg, brk, data, strat, symbols)
	ledger := portfolio.NewLedger(cfg.Portfolio.LedgerPath)
	notifier := initializeNotifier(cfg)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()

	logger.Info(ctx, "Robot started",
		"mode", cfg.Mode,
		"strategy", strat.String(),
		"universe", len(symbols),
		"poll_seconds", cfg.PollSeconds,
	)

	for {
		select {
		case <-tick.C:
			result, err := eng.Run(ctx)
			if err != nil {
				logger.ErrorWithErr(ctx, "Cycle failed", err)
				continue
			}
			b, _ := json.Marshal(result)
			fmt.Println(string(b))

			recordEquity(ctx, brk, ledger)
		case <-sigc:
			logger.Info(ctx, "Shutting down")
			shutdown(ctx, cfg, ledger, notifier)
			return
		case <-ctx.Done():
			return
		}
	}
}

func recordEquity(ctx context.Context, brk interfaces.Broker, ledger *portfolio.Ledger) {
	account, err := brk.Account(ctx)
	if err != nil {
		logger.Warn(ctx, "Skipping equity snapshot", "error", err.Error())
		return
	}
	if err := ledger.Append(types.EquityRecord{Ts: time.Now().UTC(), Equity: account.Equity}); err != nil {
		logger.Warn(ctx, "Failed to append equity snapshot", "error", err.Error())
	}
}

// shutdown finalizes the ledger and mails the report when configured.
func shutdown(ctx context.Context, cfg *store.Config, ledger *portfolio.Ledger, notifier interfaces.Notifier) {
	if err := ledger.WriteDietzReturns(); err != nil {
		logger.Warn(ctx, "Failed to write portfolio returns", "error", err.Error())
	}

	if notifier == nil {
		return
	}
	body := fmt.Sprintf("Trading session ended at %s. Portfolio history attached.",
		time.Now().UTC().Format(time.RFC3339))
	if err := notifier.Send(ctx, "Trading session report", body, []string{cfg.Portfolio.LedgerPath}); err != nil {
		logger.Warn(ctx, "Failed to send session report", "error", err.Error())
	}
}
