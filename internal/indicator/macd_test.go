package indicator

import (
	"errors"
	"math"
	"testing"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

func seriesFromCloses(closes []float64) *types.Series {
	s := &types.Series{Symbol: "TEST"}
	for i, c := range closes {
		s.Bars = append(s.Bars, types.Bar{Ts: int64(i * 60), Close: c})
	}
	return s
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEMAAnchoredAtFirstValue(t *testing.T) {
	values := []float64{10, 12, 14}
	out := EMA(values, 3) // alpha = 0.5

	if !almostEqual(out[0], 10) {
		t.Errorf("Expected first EMA value to equal first input, got %f", out[0])
	}
	if !almostEqual(out[1], 11) { // 0.5*12 + 0.5*10
		t.Errorf("Expected EMA[1] = 11, got %f", out[1])
	}
	if !almostEqual(out[2], 12.5) { // 0.5*14 + 0.5*11
		t.Errorf("Expected EMA[2] = 12.5, got %f", out[2])
	}
}

func TestEnrichComputesAllColumns(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	s := seriesFromCloses(closes)

	if err := Enrich(s, DefaultParams()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !s.Enriched() {
		t.Fatal("Expected series to be enriched")
	}
	for i := range s.MACD {
		if !almostEqual(s.MACD[i], s.FastEMA[i]-s.SlowEMA[i]) {
			t.Fatalf("MACD[%d] is not fast-slow difference", i)
		}
	}
	// A steadily rising price keeps the fast average above the slow one.
	if s.MACD[len(s.MACD)-1] <= 0 {
		t.Errorf("Expected positive terminal MACD on a rising series, got %f", s.MACD[len(s.MACD)-1])
	}
}

func TestEnrichDeterministic(t *testing.T) {
	closes := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9, 3, 2, 3, 8, 4, 6, 2, 6, 4, 3, 3, 8, 3, 2, 7}
	a := seriesFromCloses(closes)
	b := seriesFromCloses(closes)

	if err := Enrich(a, DefaultParams()); err != nil {
		t.Fatal(err)
	}
	if err := Enrich(b, DefaultParams()); err != nil {
		t.Fatal(err)
	}
	for i := range a.SignalLine {
		if a.SignalLine[i] != b.SignalLine[i] || a.MACD[i] != b.MACD[i] {
			t.Fatalf("Enrich is not reproducible at index %d", i)
		}
	}
}

func TestEnrichInsufficientData(t *testing.T) {
	s := seriesFromCloses([]float64{1, 2, 3, 4, 5})

	err := Enrich(s, DefaultParams())
	if err == nil {
		t.Fatal("Expected error for series shorter than the slow period")
	}
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientDataError, got %T", err)
	}
	if insufficient.Points != 5 || insufficient.Required != 26 {
		t.Errorf("Unexpected error detail: %+v", insufficient)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := (Params{Fast: 26, Slow: 12, Signal: 9}).Validate(); err == nil {
		t.Error("Expected error when fast >= slow")
	}
	if err := (Params{Fast: 0, Slow: 12, Signal: 9}).Validate(); err == nil {
		t.Error("Expected error for zero period")
	}
}
