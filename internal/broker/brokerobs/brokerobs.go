package brokerobs

import (
	"context"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/interfaces"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/logger"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/trace"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{
		broker: broker,
	}
}

func (ob *observableBroker) Account(ctx context.Context) (types.Account, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Account")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching account state")

	account, err := ob.broker.Account(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account state", err)
		return types.Account{}, err
	}

	logger.DebugSkip(ctx, 1, "Account state fetched",
		"equity", account.Equity,
		"buying_power", account.BuyingPower,
	)
	return account, nil
}

func (ob *observableBroker) Positions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Positions")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching open positions")

	positions, err := ob.broker.Positions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch positions", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Positions fetched", "count", len(positions))
	return positions, nil
}

func (ob *observableBroker) OpenOrders(ctx context.Context, side string) ([]types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OpenOrders")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching open orders", "side", side)

	orders, err := ob.broker.OpenOrders(ctx, side)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch open orders", err, "side", side)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Open orders fetched", "side", side, "count", len(orders))
	return orders, nil
}

func (ob *observableBroker) OpenPosition(ctx context.Context, symbol string) (types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OpenPosition")
	defer span.End()

	position, err := ob.broker.OpenPosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch position", err, "symbol", symbol)
		return types.Position{}, err
	}

	logger.DebugSkip(ctx, 1, "Position fetched", "symbol", symbol, "qty", position.Qty)
	return position, nil
}

func (ob *observableBroker) PlaceMarketOrder(ctx context.Context, req types.OrderReq) (types.OrderReceipt, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceMarketOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing market order",
		"symbol", req.Symbol,
		"side", req.Side,
		"notional", req.Notional,
		"tag", req.Tag,
	)

	receipt, err := ob.broker.PlaceMarketOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place market order", err,
			"symbol", req.Symbol,
			"side", req.Side,
			"notional", req.Notional,
		)
		return types.OrderReceipt{}, err
	}

	logger.InfoSkip(ctx, 1, "Market order placed",
		"symbol", req.Symbol,
		"order_id", receipt.OrderID,
		"status", receipt.Status,
	)
	return receipt, nil
}

func (ob *observableBroker) PlaceTrailingStop(ctx context.Context, symbol string, qty, trailPercent float64) (types.OrderReceipt, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceTrailingStop")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing trailing stop",
		"symbol", symbol,
		"qty", qty,
		"trail_percent", trailPercent,
	)

	receipt, err := ob.broker.PlaceTrailingStop(ctx, symbol, qty, trailPercent)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place trailing stop", err,
			"symbol", symbol,
			"qty", qty,
		)
		return types.OrderReceipt{}, err
	}

	logger.InfoSkip(ctx, 1, "Trailing stop placed",
		"symbol", symbol,
		"order_id", receipt.OrderID,
		"status", receipt.Status,
	)
	return receipt, nil
}

func (ob *observableBroker) ClosePosition(ctx context.Context, symbol string) (types.OrderReceipt, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ClosePosition")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Closing position", "symbol", symbol)

	receipt, err := ob.broker.ClosePosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to close position", err, "symbol", symbol)
		return types.OrderReceipt{}, err
	}

	logger.InfoSkip(ctx, 1, "Position close submitted",
		"symbol", symbol,
		"order_id", receipt.OrderID,
		"status", receipt.Status,
	)
	return receipt, nil
}
