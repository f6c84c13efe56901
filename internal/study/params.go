package study

import (
	"context"
	"errors"
	"math"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/backtest"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/indicator"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/interfaces"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/logger"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/strategy"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// Grid is the candidate value set per search dimension. Period and Interval
// shape the fetch, so each (period, interval) pair is fetched once and the
// MACD dimensions are evaluated on that data.
type Grid struct {
	Period   []string
	Interval []string
	Fast     []int
	Slow     []int
	Signal   []int
}

// Best is the winning combination of a grid search. Evaluated counts the
// combinations that passed validation, across all dimensions.
type Best struct {
	Period    string
	Interval  string
	Params    indicator.Params
	ReturnPct float64
	StdDev    float64
	Evaluated int
}

// SearchParams exhaustively evaluates the grid and returns the combination
// with the highest mean return over the symbols. Ties keep the first
// combination found, so the search order (period, interval, fast, slow,
// signal) is part of the contract. Combinations that fail validation or
// produce only outliers are skipped.
func SearchParams(ctx context.Context, data interfaces.MarketData, symbols []string, strat strategy.Strategy, grid Grid) (Best, error) {
	if len(symbols) == 0 {
		return Best{}, errors.New("no symbols to search over")
	}
	if len(grid.Period) == 0 || len(grid.Interval) == 0 ||
		len(grid.Fast) == 0 || len(grid.Slow) == 0 || len(grid.Signal) == 0 {
		return Best{}, errors.New("empty parameter grid")
	}

	best := searchPeriod(ctx, data, symbols, strat, grid)
	if math.IsInf(best.ReturnPct, -1) {
		return Best{}, errors.New("no parameter combination produced a usable result")
	}
	return best, nil
}

func worst() Best {
	return Best{ReturnPct: math.Inf(-1)}
}

// better folds two candidates, keeping the earlier one on ties so the
// search order decides winners deterministically. Evaluation counts always
// accumulate.
func better(first, second Best) Best {
	out := first
	if second.ReturnPct > first.ReturnPct {
		out = second
	}
	out.Evaluated = first.Evaluated + second.Evaluated
	return out
}

// Each dimension is one recursion folding head against tail, so adding a
// dimension means adding a level, not rewriting loop nesting.
func searchPeriod(ctx context.Context, data interfaces.MarketData, symbols []string, strat strategy.Strategy, grid Grid) Best {
	if len(grid.Period) == 0 {
		return worst()
	}
	head := searchInterval(ctx, data, symbols, strat, grid, grid.Period[0])
	rest := grid
	rest.Period = grid.Period[1:]
	return better(head, searchPeriod(ctx, data, symbols, strat, rest))
}

func searchInterval(ctx context.Context, data interfaces.MarketData, symbols []string, strat strategy.Strategy, grid Grid, period string) Best {
	if len(grid.Interval) == 0 {
		return worst()
	}
	series := fetchAll(ctx, data, symbols, period, grid.Interval[0])
	head := searchFast(series, strat, grid, period, grid.Interval[0])
	rest := grid
	rest.Interval = grid.Interval[1:]
	return better(head, searchInterval(ctx, data, symbols, strat, rest, period))
}

func fetchAll(ctx context.Context, data interfaces.MarketData, symbols []string, period, interval string) []*types.Series {
	var out []*types.Series
	for _, symbol := range symbols {
		s, err := data.GetBars(ctx, symbol, period, interval)
		if err != nil {
			logger.Warn(ctx, "Skipping symbol in parameter search",
				"symbol", symbol, "period", period, "interval", interval, "error", err.Error())
			continue
		}
		out = append(out, s)
	}
	return out
}

func searchFast(series []*types.Series, strat strategy.Strategy, grid Grid, period, interval string) Best {
	if len(grid.Fast) == 0 {
		return worst()
	}
	head := searchSlow(series, strat, grid, period, interval, grid.Fast[0])
	rest := grid
	rest.Fast = grid.Fast[1:]
	return better(head, searchFast(series, strat, rest, period, interval))
}

func searchSlow(series []*types.Series, strat strategy.Strategy, grid Grid, period, interval string, fast int) Best {
	if len(grid.Slow) == 0 {
		return worst()
	}
	head := searchSignal(series, strat, grid, period, interval, fast, grid.Slow[0])
	rest := grid
	rest.Slow = grid.Slow[1:]
	return better(head, searchSlow(series, strat, rest, period, interval, fast))
}

func searchSignal(series []*types.Series, strat strategy.Strategy, grid Grid, period, interval string, fast, slow int) Best {
	if len(grid.Signal) == 0 {
		return worst()
	}
	p := indicator.Params{Fast: fast, Slow: slow, Signal: grid.Signal[0]}
	head := evaluate(series, strat, period, interval, p)
	rest := grid
	rest.Signal = grid.Signal[1:]
	return better(head, searchSignal(series, strat, rest, period, interval, fast, slow))
}

func evaluate(series []*types.Series, strat strategy.Strategy, period, interval string, p indicator.Params) Best {
	if p.Validate() != nil {
		return worst()
	}
	out := worst()
	out.Evaluated = 1

	var returns []float64
	for _, raw := range series {
		// Fresh value per evaluation; Enrich writes the derived columns.
		s := &types.Series{Symbol: raw.Symbol, Interval: raw.Interval, Bars: raw.Bars}
		if err := indicator.Enrich(s, p); err != nil {
			continue
		}
		summary, err := backtest.Run(s, strat)
		if err != nil || backtest.IsOutlier(summary) {
			continue
		}
		returns = append(returns, summary.ReturnPct)
	}
	if len(returns) == 0 {
		return out
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}

	out.Period = period
	out.Interval = interval
	out.Params = p
	out.ReturnPct = mean
	out.StdDev = math.Sqrt(sumSq / float64(len(returns)))
	return out
}
