package interfaces

import (
	"context"
	"fmt"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// OrderSubmissionError reports a venue rejection. Submissions are never
// retried automatically; without an idempotency key a retry risks a
// duplicate fill.
type OrderSubmissionError struct {
	Symbol string
	Side   string
	Err    error
}

func (e *OrderSubmissionError) Error() string {
	return fmt.Sprintf("order submission for %s %s rejected: %v", e.Side, e.Symbol, e.Err)
}

func (e *OrderSubmissionError) Unwrap() error { return e.Err }

// Broker is the trading venue collaborator. Paper/live routing is a
// provider concern behind this interface, never engine logic.
type Broker interface {
	Account(ctx context.Context) (types.Account, error)
	Positions(ctx context.Context) ([]types.Position, error)
	OpenOrders(ctx context.Context, side string) ([]types.Order, error)
	OpenPosition(ctx context.Context, symbol string) (types.Position, error)
	PlaceMarketOrder(ctx context.Context, req types.OrderReq) (types.OrderReceipt, error)
	PlaceTrailingStop(ctx context.Context, symbol string, qty, trailPercent float64) (types.OrderReceipt, error)
	ClosePosition(ctx context.Context, symbol string) (types.OrderReceipt, error)
}
