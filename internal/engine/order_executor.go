package engine

import (
	"context"
	"time"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/logger"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/tradelog"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// executeBuy submits the market buy, waits for the fill and attaches the
// trailing stop. A missing confirmation or a failed stop placement leaves
// the position unprotected but standing; only the entry itself is fatal.
func (e *Engine) executeBuy(ctx context.Context, symbol string, notional float64) (types.OrderReceipt, error) {
	receipt, err := e.brk.PlaceMarketOrder(ctx, types.OrderReq{
		Symbol:   symbol,
		Side:     "BUY",
		Notional: notional,
		Tag:      "macd",
	})
	if err != nil {
		return types.OrderReceipt{}, err
	}

	logger.Order(ctx, symbol, "BUY", notional, receipt.OrderID, "status", receipt.Status)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:   symbol,
		Side:     "BUY",
		Notional: notional,
		OrderID:  receipt.OrderID,
		Status:   receipt.Status,
	})

	if e.cfg.Sizing.TrailPercent <= 0 {
		return receipt, nil
	}

	pos, ok := e.confirmFill(ctx, symbol)
	if !ok {
		logger.Risk(ctx, symbol, "TRAIL_SKIPPED_UNCONFIRMED_FILL",
			"order_id", receipt.OrderID,
			"attempts", e.cfg.Confirm.Attempts,
		)
		return receipt, nil
	}

	stop, err := e.brk.PlaceTrailingStop(ctx, symbol, pos.Qty, e.cfg.Sizing.TrailPercent)
	if err != nil {
		logger.Risk(ctx, symbol, "TRAIL_PLACEMENT_FAILED", "error", err.Error(), "qty", pos.Qty)
		return receipt, nil
	}
	logger.Info(ctx, "Trailing stop attached",
		"symbol", symbol,
		"order_id", stop.OrderID,
		"qty", pos.Qty,
		"trail_percent", e.cfg.Sizing.TrailPercent,
	)
	return receipt, nil
}

// confirmFill polls for the position a bounded number of times.
func (e *Engine) confirmFill(ctx context.Context, symbol string) (types.Position, bool) {
	delay := time.Duration(e.cfg.Confirm.DelaySeconds) * time.Second
	for attempt := 1; attempt <= e.cfg.Confirm.Attempts; attempt++ {
		if attempt > 1 {
			if err := e.sleep(ctx, delay); err != nil {
				return types.Position{}, false
			}
		}
		pos, err := e.brk.OpenPosition(ctx, symbol)
		if err != nil {
			logger.Warn(ctx, "Fill confirmation poll failed", "symbol", symbol, "attempt", attempt, "error", err.Error())
			continue
		}
		if pos.Qty > 0 {
			return pos, true
		}
	}
	return types.Position{}, false
}

// executeSell closes the full open position at market.
func (e *Engine) executeSell(ctx context.Context, symbol string) (types.OrderReceipt, error) {
	receipt, err := e.brk.ClosePosition(ctx, symbol)
	if err != nil {
		return types.OrderReceipt{}, err
	}

	logger.Order(ctx, symbol, "SELL", 0, receipt.OrderID, "status", receipt.Status)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:  symbol,
		Side:    "SELL",
		OrderID: receipt.OrderID,
		Status:  receipt.Status,
	})
	return receipt, nil
}
