package types

import "time"

// Bar is a single sampled closing price.
type Bar struct {
	Ts    int64
	Close float64
}

// Series is an ordered price history for one symbol plus the derived MACD
// columns. The derived slices are empty until indicator.Enrich has run and
// always share the length of Bars afterwards.
type Series struct {
	Symbol     string
	Interval   string
	Bars       []Bar
	FastEMA    []float64
	SlowEMA    []float64
	MACD       []float64
	SignalLine []float64
}

// Enriched reports whether the derived columns have been computed.
func (s *Series) Enriched() bool {
	return len(s.Bars) > 0 && len(s.MACD) == len(s.Bars) && len(s.SignalLine) == len(s.Bars)
}

// LastBar returns the terminal bar. Callers must check len(Bars) > 0 first.
func (s *Series) LastBar() Bar { return s.Bars[len(s.Bars)-1] }

// Signal is a discrete trading decision.
type Signal int

const (
	SignalNone Signal = iota
	SignalBuy
	SignalSell
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "NONE"
	}
}

type Account struct {
	ID          string
	Equity      float64
	BuyingPower float64
}

type Position struct {
	Symbol   string
	Qty      float64
	AvgPrice float64
}

// Order is an open order as reported by the broker.
type Order struct {
	ID     string
	Symbol string
	Side   string // "BUY" or "SELL"
	Status string
}

// OrderReq is a market order intent produced by the engine.
type OrderReq struct {
	Symbol   string
	Side     string // "BUY" or "SELL"
	Notional float64
	Tag      string
}

type OrderReceipt struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CycleResult summarizes one reconciliation cycle of the engine.
type CycleResult struct {
	Symbol   string         `json:"symbol,omitempty"`
	Signal   string         `json:"signal,omitempty"`
	Action   string         `json:"action"`
	Notional float64        `json:"notional,omitempty"`
	Orders   []OrderReceipt `json:"orders,omitempty"`
	Skipped  []string       `json:"skipped,omitempty"`
}

// BacktestSummary is the outcome of one simulated replay. The wallet starts
// at 100 units, so ReturnPct is both the end-minus-start difference and the
// percentage return.
type BacktestSummary struct {
	Symbol        string
	Strategy      string
	ReturnPct     float64
	HoldReturnPct float64
	Transactions  int
}

// SectorResult aggregates backtest outcomes across one sector's
// constituents, outliers excluded.
type SectorResult struct {
	Sector          string
	AvgReturn       float64
	StdDevReturn    float64
	AvgTransactions float64
	Assets          int
}

type AssetResult struct {
	Sector       string
	Symbol       string
	ReturnPct    float64
	Transactions int
}

// EquityRecord is one row of the append-only portfolio ledger.
type EquityRecord struct {
	Ts          time.Time
	Equity      float64
	CashFlow    float64
	DietzReturn float64
	HasDietz    bool
}
