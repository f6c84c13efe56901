package backtest

import (
	"math"
	"testing"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/strategy"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// scripted builds an enriched series whose MACD column drives the zero-cross
// rule through a known trade sequence.
func scripted(closes, macd []float64) *types.Series {
	s := &types.Series{Symbol: "TEST", Interval: "5m"}
	for i, c := range closes {
		s.Bars = append(s.Bars, types.Bar{Ts: int64(i * 300), Close: c})
	}
	s.FastEMA = make([]float64, len(closes))
	s.SlowEMA = make([]float64, len(closes))
	s.MACD = macd
	s.SignalLine = make([]float64, len(closes))
	return s
}

func TestRunCompoundsRoundTrips(t *testing.T) {
	// Buy at 100 (index 1), sell at 120 (index 3), re-enter at index 5.
	s := scripted(
		[]float64{100, 100, 110, 120, 100, 100},
		[]float64{-1, 1, 2, -1, -2, 1},
	)

	summary, err := Run(s, strategy.ZeroCross)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if math.Abs(summary.ReturnPct-20) > 1e-9 {
		t.Errorf("Expected 20%% return, got %f", summary.ReturnPct)
	}
	if summary.Transactions != 1 {
		t.Errorf("Expected 1 completed round trip, got %d", summary.Transactions)
	}
	if summary.HoldReturnPct != 0 {
		t.Errorf("Expected flat hold return, got %f", summary.HoldReturnPct)
	}
	if summary.Strategy != "zero-cross" {
		t.Errorf("Expected strategy recorded, got %q", summary.Strategy)
	}
}

func TestRunLeavesTerminalPositionUnrealized(t *testing.T) {
	// Entry at index 1, price doubles afterwards, no exit signal.
	s := scripted(
		[]float64{100, 100, 150, 200},
		[]float64{-1, 1, 2, 3},
	)

	summary, err := Run(s, strategy.ZeroCross)
	if err != nil {
		t.Fatal(err)
	}
	if summary.ReturnPct != 0 {
		t.Errorf("Expected open position to stay unrealized, got %f", summary.ReturnPct)
	}
	if summary.Transactions != 0 {
		t.Errorf("Expected no completed transactions, got %d", summary.Transactions)
	}
	// With nothing realized the replay is degenerate and must be excluded
	// from aggregates.
	if !IsOutlier(summary) {
		t.Error("Expected an unclosed single buy to be flagged as an outlier")
	}
}

func TestRunIgnoresSellBeforeFirstBuy(t *testing.T) {
	s := scripted(
		[]float64{100, 90, 95, 105},
		[]float64{1, -1, -2, 1},
	)

	summary, err := Run(s, strategy.ZeroCross)
	if err != nil {
		t.Fatal(err)
	}
	// The initial sell has nothing to close and the terminal buy never exits.
	if summary.ReturnPct != 0 {
		t.Errorf("Expected zero realized return, got %f", summary.ReturnPct)
	}
	if summary.Transactions != 0 {
		t.Errorf("Expected no completed transactions, got %d", summary.Transactions)
	}
}

func TestRunDeterministic(t *testing.T) {
	s := scripted(
		[]float64{100, 100, 110, 120, 100, 100},
		[]float64{-1, 1, 2, -1, -2, 1},
	)

	a, err := Run(s, strategy.ZeroCross)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run(s, strategy.ZeroCross)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("Replay is not reproducible: %+v vs %+v", a, b)
	}
}

func TestRunRejectsUnenrichedSeries(t *testing.T) {
	s := &types.Series{Symbol: "TEST", Bars: []types.Bar{{Ts: 0, Close: 1}, {Ts: 300, Close: 2}}}
	if _, err := Run(s, strategy.ZeroCross); err == nil {
		t.Error("Expected error for series without indicator columns")
	}
}

func TestIsOutlier(t *testing.T) {
	tests := []struct {
		name    string
		summary types.BacktestSummary
		want    bool
	}{
		{"no trades", types.BacktestSummary{Transactions: 0, ReturnPct: 5}, true},
		{"extreme loss", types.BacktestSummary{Transactions: 4, ReturnPct: -95}, true},
		{"extreme gain", types.BacktestSummary{Transactions: 4, ReturnPct: 200}, true},
		{"ordinary result", types.BacktestSummary{Transactions: 4, ReturnPct: 12}, false},
		{"boundary loss kept", types.BacktestSummary{Transactions: 4, ReturnPct: -90}, false},
		{"boundary gain kept", types.BacktestSummary{Transactions: 4, ReturnPct: 150}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOutlier(tt.summary); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
