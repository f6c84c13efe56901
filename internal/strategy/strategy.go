package strategy

import (
	"fmt"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// Strategy is a closed set of crossing rules. Keeping it an enum (rather
// than string dispatch) makes an unknown selector representable only at the
// parsing boundary.
type Strategy int

const (
	// ZeroCross buys when the MACD crosses from negative to non-negative
	// and sells on the mirror crossing.
	ZeroCross Strategy = iota
	// SignalCross buys when the signal line crosses from below to above
	// the MACD and sells on the mirror crossing.
	SignalCross
)

func (s Strategy) String() string {
	switch s {
	case ZeroCross:
		return "zero-cross"
	case SignalCross:
		return "signal-cross"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// UnknownStrategyError is a configuration bug: the selector does not name
// any known crossing rule.
type UnknownStrategyError struct {
	Name string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown strategy %q (supported: zero-cross, signal-cross)", e.Name)
}

// Parse resolves a config selector to a Strategy.
func Parse(name string) (Strategy, error) {
	switch name {
	case "zero-cross":
		return ZeroCross, nil
	case "signal-cross":
		return SignalCross, nil
	default:
		return 0, &UnknownStrategyError{Name: name}
	}
}

// At evaluates the crossing rule at index i of an enriched series,
// comparing exactly i-1 and i. It is the single signal function shared by
// the live engine and the backtester: replay passes a historical index,
// live evaluation uses Latest.
func At(s *types.Series, strat Strategy, i int) (types.Signal, error) {
	if !s.Enriched() {
		return types.SignalNone, fmt.Errorf("series for %s has no indicator columns", s.Symbol)
	}
	if i < 1 || i >= len(s.Bars) {
		return types.SignalNone, fmt.Errorf("index %d out of range for %d-bar series", i, len(s.Bars))
	}

	var prev, cur float64
	switch strat {
	case ZeroCross:
		prev, cur = s.MACD[i-1], s.MACD[i]
	case SignalCross:
		prev, cur = s.SignalLine[i-1]-s.MACD[i-1], s.SignalLine[i]-s.MACD[i]
	default:
		return types.SignalNone, &UnknownStrategyError{Name: strat.String()}
	}

	switch {
	case prev < 0 && cur >= 0:
		return types.SignalBuy, nil
	case prev > 0 && cur < 0:
		return types.SignalSell, nil
	default:
		return types.SignalNone, nil
	}
}

// Latest evaluates the crossing rule at the terminal index.
func Latest(s *types.Series, strat Strategy) (types.Signal, error) {
	return At(s, strat, len(s.Bars)-1)
}
