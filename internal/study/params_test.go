package study

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/backtest"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/indicator"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/strategy"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// oscillating yields repeated crossings so short-period setups trade.
func oscillating(symbol string, n int) *types.Series {
	s := &types.Series{Symbol: symbol, Interval: "5m"}
	for i := 0; i < n; i++ {
		c := 100 + 10*math.Sin(float64(i)/3)
		s.Bars = append(s.Bars, types.Bar{Ts: int64(i * 300), Close: c})
	}
	return s
}

// flatBars never crosses, so every replay on it is an outlier.
func flatBars(symbol string, n int) *types.Series {
	s := &types.Series{Symbol: symbol, Interval: "5m"}
	for i := 0; i < n; i++ {
		s.Bars = append(s.Bars, types.Bar{Ts: int64(i * 300), Close: 100})
	}
	return s
}

// symbolBars serves the same bars for every period and interval.
type symbolBars struct {
	series map[string]*types.Series
}

func (b *symbolBars) GetBars(_ context.Context, symbol, _, _ string) (*types.Series, error) {
	if s, ok := b.series[symbol]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no data for %s", symbol)
}

// periodBars serves bars keyed by the requested period.
type periodBars struct {
	series map[string]*types.Series
}

func (b *periodBars) GetBars(_ context.Context, symbol, period, _ string) (*types.Series, error) {
	s, ok := b.series[period]
	if !ok {
		return nil, fmt.Errorf("no data for period %s", period)
	}
	return &types.Series{Symbol: symbol, Interval: s.Interval, Bars: s.Bars}, nil
}

func TestSearchParamsFindsGridMaximum(t *testing.T) {
	series := []*types.Series{oscillating("AAA", 120), oscillating("BBB", 90)}
	source := &symbolBars{series: map[string]*types.Series{
		"AAA": series[0],
		"BBB": series[1],
	}}
	grid := Grid{
		Period:   []string{"60d"},
		Interval: []string{"5m"},
		Fast:     []int{2, 3},
		Slow:     []int{6, 10},
		Signal:   []int{3, 5},
	}

	best, err := SearchParams(context.Background(), source, []string{"AAA", "BBB"}, strategy.ZeroCross, grid)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if best.Evaluated != 8 {
		t.Errorf("Expected 8 evaluated combinations, got %d", best.Evaluated)
	}
	if best.Period != "60d" || best.Interval != "5m" {
		t.Errorf("Expected the lone fetch shape 60d/5m, got %s/%s", best.Period, best.Interval)
	}

	// The winner must dominate every combination when re-evaluated directly.
	for _, fast := range grid.Fast {
		for _, slow := range grid.Slow {
			for _, signal := range grid.Signal {
				p := indicator.Params{Fast: fast, Slow: slow, Signal: signal}
				mean, ok := meanReturn(series, p)
				if !ok {
					continue
				}
				if mean > best.ReturnPct+1e-9 {
					t.Errorf("Combination %+v beats reported best: %f > %f", p, mean, best.ReturnPct)
				}
			}
		}
	}

	// And the reported best must be reproducible from its own parameters.
	mean, ok := meanReturn(series, best.Params)
	if !ok {
		t.Fatal("Best parameters produced no usable result on re-evaluation")
	}
	if math.Abs(mean-best.ReturnPct) > 1e-9 {
		t.Errorf("Best return not reproducible: %f vs %f", mean, best.ReturnPct)
	}
}

func meanReturn(series []*types.Series, p indicator.Params) (float64, bool) {
	var sum float64
	var n int
	for _, raw := range series {
		s := &types.Series{Symbol: raw.Symbol, Interval: raw.Interval, Bars: raw.Bars}
		if err := indicator.Enrich(s, p); err != nil {
			continue
		}
		summary, err := backtest.Run(s, strategy.ZeroCross)
		if err != nil || backtest.IsOutlier(summary) {
			continue
		}
		sum += summary.ReturnPct
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func TestSearchParamsSearchesFetchDimensions(t *testing.T) {
	// The 60d fetch returns flat bars (all replays outliers), the 30d fetch
	// trades; the search must pick the period up as a dimension.
	source := &periodBars{series: map[string]*types.Series{
		"60d": flatBars("AAA", 60),
		"30d": oscillating("AAA", 120),
	}}
	grid := Grid{
		Period:   []string{"60d", "30d"},
		Interval: []string{"5m"},
		Fast:     []int{2},
		Slow:     []int{6},
		Signal:   []int{3},
	}

	best, err := SearchParams(context.Background(), source, []string{"AAA"}, strategy.ZeroCross, grid)
	if err != nil {
		t.Fatal(err)
	}
	if best.Period != "30d" {
		t.Errorf("Expected 30d to win, got %s", best.Period)
	}
	if best.Evaluated != 2 {
		t.Errorf("Expected both fetch shapes evaluated, got %d", best.Evaluated)
	}
}

func TestSearchParamsSkipsInvalidCombinations(t *testing.T) {
	source := &symbolBars{series: map[string]*types.Series{"AAA": oscillating("AAA", 120)}}
	// fast >= slow is invalid and must not count as evaluated.
	grid := Grid{
		Period:   []string{"60d"},
		Interval: []string{"5m"},
		Fast:     []int{2, 10},
		Slow:     []int{6},
		Signal:   []int{3},
	}

	best, err := SearchParams(context.Background(), source, []string{"AAA"}, strategy.ZeroCross, grid)
	if err != nil {
		t.Fatal(err)
	}
	if best.Evaluated != 1 {
		t.Errorf("Expected only the valid combination evaluated, got %d", best.Evaluated)
	}
	if best.Params.Fast != 2 || best.Params.Slow != 6 || best.Params.Signal != 3 {
		t.Errorf("Unexpected winning params: %+v", best.Params)
	}
}

func TestSearchParamsEmptyInputs(t *testing.T) {
	ctx := context.Background()
	source := &symbolBars{series: map[string]*types.Series{"AAA": oscillating("AAA", 120)}}
	grid := Grid{
		Period:   []string{"60d"},
		Interval: []string{"5m"},
		Fast:     []int{2},
		Slow:     []int{6},
		Signal:   []int{3},
	}

	if _, err := SearchParams(ctx, source, nil, strategy.ZeroCross, grid); err == nil {
		t.Error("Expected error for empty symbol set")
	}
	if _, err := SearchParams(ctx, source, []string{"AAA"}, strategy.ZeroCross, Grid{}); err == nil {
		t.Error("Expected error for empty grid")
	}

	// A grid of exclusively invalid combinations cannot produce a winner.
	bad := grid
	bad.Fast = []int{10}
	bad.Slow = []int{5}
	if _, err := SearchParams(ctx, source, []string{"AAA"}, strategy.ZeroCross, bad); err == nil {
		t.Error("Expected error when no combination is usable")
	}
}
