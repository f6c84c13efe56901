package interfaces

import (
	"context"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// MarketData fetches raw price history. Providers may return a stale
// terminal bar; freshness validation is the caller's job.
type MarketData interface {
	GetBars(ctx context.Context, symbol, period, interval string) (*types.Series, error)
}
