package indicator

import (
	"fmt"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// Params are the MACD smoothing periods.
type Params struct {
	Fast   int
	Slow   int
	Signal int
}

// DefaultParams returns the conventional 12/26/9 MACD setup.
func DefaultParams() Params {
	return Params{Fast: 12, Slow: 26, Signal: 9}
}

func (p Params) Validate() error {
	if p.Fast <= 0 || p.Slow <= 0 || p.Signal <= 0 {
		return fmt.Errorf("macd periods must be positive, got %d/%d/%d", p.Fast, p.Slow, p.Signal)
	}
	if p.Fast >= p.Slow {
		return fmt.Errorf("fast period %d must be smaller than slow period %d", p.Fast, p.Slow)
	}
	return nil
}

// InsufficientDataError means the series is shorter than the slow period.
// The averages are numerically meaningless below that, so this is a hard
// precondition failure for the affected symbol, not a warning.
type InsufficientDataError struct {
	Symbol   string
	Points   int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: got %d points, need %d", e.Symbol, e.Points, e.Required)
}

// EMA computes an exponentially-weighted moving average over values with the
// given span. The recursion is anchored at the first value and never looks
// ahead: out[0] = values[0], out[i] = alpha*values[i] + (1-alpha)*out[i-1]
// with alpha = 2/(span+1).
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Enrich computes the derived MACD columns on the series in place:
// FastEMA, SlowEMA, MACD = fast-slow and SignalLine = EMA(MACD, signal).
// Deterministic and side-effect-free beyond the series itself.
func Enrich(s *types.Series, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if len(s.Bars) < p.Slow {
		return &InsufficientDataError{Symbol: s.Symbol, Points: len(s.Bars), Required: p.Slow}
	}

	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}

	s.FastEMA = EMA(closes, p.Fast)
	s.SlowEMA = EMA(closes, p.Slow)

	s.MACD = make([]float64, len(closes))
	for i := range closes {
		s.MACD[i] = s.FastEMA[i] - s.SlowEMA[i]
	}
	s.SignalLine = EMA(s.MACD, p.Signal)
	return nil
}
