package engine

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/indicator"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/interfaces"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/logger"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/marketdata"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/store"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/strategy"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/tradelog"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// SeriesSource serves enriched, freshness-validated price series.
type SeriesSource interface {
	GetFreshSeries(ctx context.Context, symbol string) (*types.Series, error)
}

// Engine runs one reconciliation cycle at a time: refresh broker state,
// evaluate the crossing rule per symbol and act on the resulting signals.
// It keeps no position state of its own; the broker is the source of truth,
// so a crash between cycles loses nothing.
type Engine struct {
	cfg      *store.Config
	brk      interfaces.Broker
	data     SeriesSource
	strat    strategy.Strategy
	universe []string

	sleep func(context.Context, time.Duration) error
}

var _ interfaces.Engine = (*Engine)(nil)

func New(cfg *store.Config, brk interfaces.Broker, data SeriesSource, strat strategy.Strategy, universe []string) *Engine {
	return &Engine{
		cfg:      cfg,
		brk:      brk,
		data:     data,
		strat:    strat,
		universe: universe,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes one cycle over the configured universe extended with every
// symbol currently held, so exits fire even after the universe rotates.
func (e *Engine) Run(ctx context.Context) (*types.CycleResult, error) {
	account, err := e.brk.Account(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := e.brk.Positions(ctx)
	if err != nil {
		return nil, err
	}
	openBuys, err := e.brk.OpenOrders(ctx, "BUY")
	if err != nil {
		return nil, err
	}

	held := make(map[string]types.Position, len(positions))
	for _, p := range positions {
		held[p.Symbol] = p
	}
	pendingBuy := make(map[string]bool, len(openBuys))
	for _, o := range openBuys {
		pendingBuy[o.Symbol] = true
	}
	symbols := extendUniverse(e.universe, positions)

	logger.Debug(ctx, "Cycle state refreshed",
		"equity", account.Equity,
		"held", len(held),
		"open_buys", len(openBuys),
		"universe", len(symbols),
	)

	result := &types.CycleResult{Action: "NONE"}
	heldCount := len(held)
	openBuyCount := len(openBuys)

	for _, symbol := range symbols {
		series, err := e.data.GetFreshSeries(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.recordSkip(ctx, result, symbol, err)
			continue
		}

		sig, err := strategy.Latest(series, e.strat)
		if err != nil {
			e.recordSkip(ctx, result, symbol, err)
			continue
		}
		if sig == types.SignalNone {
			continue
		}

		logger.Signal(ctx, symbol, e.strat.String(), sig.String(), "close", series.LastBar().Close)
		_ = tradelog.AppendSignal(tradelog.SignalEntry{
			Symbol:   symbol,
			Strategy: e.strat.String(),
			Signal:   sig.String(),
			Close:    series.LastBar().Close,
		})

		var acted bool
		switch sig {
		case types.SignalBuy:
			acted = e.handleBuy(ctx, result, account, symbol, held, pendingBuy, &heldCount, &openBuyCount)
		case types.SignalSell:
			acted = e.handleSell(ctx, result, symbol, held, &heldCount)
		}

		if acted && e.cfg.OneActionPerCycle() {
			break
		}
	}

	return result, nil
}

func (e *Engine) handleBuy(ctx context.Context, result *types.CycleResult, account types.Account,
	symbol string, held map[string]types.Position, pendingBuy map[string]bool, heldCount, openBuyCount *int) bool {

	if _, ok := held[symbol]; ok {
		logger.Debug(ctx, "Buy signal on held symbol, ignoring", "symbol", symbol)
		return false
	}
	// A pending buy already claims this symbol; buying again would risk a
	// duplicate fill.
	if pendingBuy[symbol] {
		logger.Risk(ctx, symbol, "BUY_BLOCKED_OPEN_ORDER")
		return false
	}
	slots := e.cfg.Sizing.MaxPositions - *heldCount - *openBuyCount
	if slots <= 0 {
		logger.Risk(ctx, symbol, "BUY_BLOCKED_MAX_POSITIONS",
			"held", *heldCount,
			"open_buys", *openBuyCount,
			"max_positions", e.cfg.Sizing.MaxPositions,
		)
		return false
	}

	notional := buyNotional(account.BuyingPower, e.cfg.Sizing.BuyingPowerFraction, slots)
	if notional <= 0 {
		logger.Risk(ctx, symbol, "BUY_BLOCKED_NO_BUYING_POWER", "buying_power", account.BuyingPower)
		return false
	}

	receipt, err := e.executeBuy(ctx, symbol, notional)
	if err != nil {
		e.recordSkip(ctx, result, symbol, err)
		return false
	}

	*openBuyCount++
	pendingBuy[symbol] = true
	result.Symbol = symbol
	result.Signal = types.SignalBuy.String()
	result.Action = "BUY"
	result.Notional = notional
	result.Orders = append(result.Orders, receipt)
	return true
}

func (e *Engine) handleSell(ctx context.Context, result *types.CycleResult, symbol string,
	held map[string]types.Position, heldCount *int) bool {

	if _, ok := held[symbol]; !ok {
		logger.Debug(ctx, "Sell signal without position, ignoring", "symbol", symbol)
		return false
	}

	receipt, err := e.executeSell(ctx, symbol)
	if err != nil {
		e.recordSkip(ctx, result, symbol, err)
		return false
	}

	delete(held, symbol)
	*heldCount--
	result.Symbol = symbol
	result.Signal = types.SignalSell.String()
	result.Action = "SELL"
	result.Orders = append(result.Orders, receipt)
	return true
}

func (e *Engine) recordSkip(ctx context.Context, result *types.CycleResult, symbol string, err error) {
	result.Skipped = append(result.Skipped, symbol)

	var stale *marketdata.StaleDataError
	var insufficient *indicator.InsufficientDataError
	var rejected *interfaces.OrderSubmissionError
	switch {
	case errors.As(err, &stale):
		logger.Warn(ctx, "Skipping symbol on stale data", "symbol", symbol, "attempts", stale.Attempts)
	case errors.As(err, &insufficient):
		logger.Warn(ctx, "Skipping symbol on short history",
			"symbol", symbol, "points", insufficient.Points, "required", insufficient.Required)
	case errors.As(err, &rejected):
		logger.ErrorWithErr(ctx, "Order rejected, not retrying", err, "symbol", symbol, "side", rejected.Side)
	default:
		logger.ErrorWithErr(ctx, "Skipping symbol", err, "symbol", symbol)
	}
}

// extendUniverse appends held symbols missing from the universe and returns
// a sorted, deduplicated copy so cycle ordering is stable.
func extendUniverse(universe []string, positions []types.Position) []string {
	seen := make(map[string]bool, len(universe)+len(positions))
	out := make([]string, 0, len(universe)+len(positions))
	for _, s := range universe {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, p := range positions {
		if !seen[p.Symbol] {
			seen[p.Symbol] = true
			out = append(out, p.Symbol)
		}
	}
	sort.Strings(out)
	return out
}

// buyNotional splits the deployable buying power equally across the free
// position slots, truncated to the cent. Truncation, not rounding: the
// order must never exceed the deployable amount.
func buyNotional(buyingPower, fraction float64, slots int) float64 {
	if slots <= 0 {
		return 0
	}
	raw := buyingPower * fraction / float64(slots)
	return math.Floor(raw*100) / 100
}
