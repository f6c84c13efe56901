package backtest

import (
	"fmt"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/strategy"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// Wallet replay starts from a nominal 100 units so the end-minus-start
// difference reads directly as a percentage return.
const startWallet = 100.0

// Run replays the crossing rule over an enriched series, compounding the
// wallet on each completed round trip. A position still open at the end of
// the series stays unrealized; marking it to market would let a single
// untriggered exit dominate the score.
func Run(s *types.Series, strat strategy.Strategy) (types.BacktestSummary, error) {
	if !s.Enriched() {
		return types.BacktestSummary{}, fmt.Errorf("series for %s has no indicator columns", s.Symbol)
	}
	if len(s.Bars) < 2 {
		return types.BacktestSummary{}, fmt.Errorf("series for %s too short to replay", s.Symbol)
	}

	wallet := startWallet
	var holding bool
	var entry float64
	transactions := 0

	for i := 1; i < len(s.Bars); i++ {
		sig, err := strategy.At(s, strat, i)
		if err != nil {
			return types.BacktestSummary{}, err
		}
		price := s.Bars[i].Close

		switch {
		case sig == types.SignalBuy && !holding:
			holding = true
			entry = price
		case sig == types.SignalSell && holding:
			// Only completed round trips count as transactions.
			wallet *= price / entry
			holding = false
			transactions++
		}
	}

	first := s.Bars[0].Close
	last := s.LastBar().Close

	return types.BacktestSummary{
		Symbol:        s.Symbol,
		Strategy:      strat.String(),
		ReturnPct:     wallet - startWallet,
		HoldReturnPct: (last/first - 1) * 100,
		Transactions:  transactions,
	}, nil
}

// IsOutlier flags replays that should not enter sector aggregates: no
// trades at all, or returns extreme enough to be data artifacts rather
// than strategy performance.
func IsOutlier(s types.BacktestSummary) bool {
	return s.Transactions == 0 || s.ReturnPct < -90 || s.ReturnPct > 150
}
