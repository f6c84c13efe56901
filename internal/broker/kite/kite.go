package kite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/interfaces"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

type Params struct {
	Mode        string
	APIKey      string
	AccessToken string
	Exchange    string
}

// Kite routes orders through the Zerodha Kite Connect API. In DRY_RUN mode
// every call is served from an in-memory simulated account so the engine
// exercises the full order path without touching the venue.
type Kite struct {
	p  Params
	kc *kiteconnect.Client

	mu  sync.Mutex
	sim *simAccount
}

type simAccount struct {
	cash      float64
	positions map[string]types.Position
	orderSeq  int
}

var _ interfaces.Broker = (*Kite)(nil)

func New(p Params) (*Kite, error) {
	k := &Kite{p: p}

	if p.Mode == "DRY_RUN" {
		k.sim = &simAccount{
			cash:      1_000_000,
			positions: make(map[string]types.Position),
		}
		return k, nil
	}

	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("missing API key/access token")
	}
	k.kc = kiteconnect.New(p.APIKey)
	k.kc.SetAccessToken(p.AccessToken)
	return k, nil
}

func (k *Kite) Account(ctx context.Context) (types.Account, error) {
	if k.sim != nil {
		k.mu.Lock()
		defer k.mu.Unlock()
		equity := k.sim.cash
		for _, pos := range k.sim.positions {
			equity += pos.Qty * pos.AvgPrice
		}
		return types.Account{ID: "SIM", Equity: equity, BuyingPower: k.sim.cash}, nil
	}

	margins, err := k.kc.GetUserMargins()
	if err != nil {
		return types.Account{}, fmt.Errorf("fetch margins: %w", err)
	}
	return types.Account{
		ID:          "LIVE",
		Equity:      margins.Equity.Net,
		BuyingPower: margins.Equity.Available.Cash,
	}, nil
}

func (k *Kite) Positions(ctx context.Context) ([]types.Position, error) {
	if k.sim != nil {
		k.mu.Lock()
		defer k.mu.Unlock()
		out := make([]types.Position, 0, len(k.sim.positions))
		for _, pos := range k.sim.positions {
			out = append(out, pos)
		}
		return out, nil
	}

	positions, err := k.kc.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	var out []types.Position
	for _, p := range positions.Net {
		if p.Quantity == 0 {
			continue
		}
		out = append(out, types.Position{
			Symbol:   p.Tradingsymbol,
			Qty:      float64(p.Quantity),
			AvgPrice: p.AveragePrice,
		})
	}
	return out, nil
}

func (k *Kite) OpenPosition(ctx context.Context, symbol string) (types.Position, error) {
	positions, err := k.Positions(ctx)
	if err != nil {
		return types.Position{}, err
	}
	for _, p := range positions {
		if p.Symbol == symbol {
			return p, nil
		}
	}
	return types.Position{}, nil
}

// OpenOrders returns pending orders, optionally filtered by side.
func (k *Kite) OpenOrders(ctx context.Context, side string) ([]types.Order, error) {
	if k.sim != nil {
		// Simulated orders fill instantly, nothing is ever pending.
		return nil, nil
	}

	orders, err := k.kc.GetOrders()
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	var out []types.Order
	for _, o := range orders {
		if !isPending(o.Status) {
			continue
		}
		if side != "" && o.TransactionType != side {
			continue
		}
		out = append(out, types.Order{
			ID:     o.OrderID,
			Symbol: o.TradingSymbol,
			Side:   o.TransactionType,
			Status: o.Status,
		})
	}
	return out, nil
}

func isPending(status string) bool {
	switch status {
	case "OPEN", "TRIGGER PENDING", "AMO REQ RECEIVED", "VALIDATION PENDING", "PUT ORDER REQ RECEIVED":
		return true
	default:
		return false
	}
}

// LTP returns the last traded price for symbol on the configured exchange.
func (k *Kite) LTP(ctx context.Context, symbol string) (float64, error) {
	if k.sim != nil {
		k.mu.Lock()
		defer k.mu.Unlock()
		if pos, ok := k.sim.positions[symbol]; ok {
			return pos.AvgPrice, nil
		}
		return 1000 + rand.Float64()*100, nil
	}

	instrument := k.p.Exchange + ":" + symbol
	quotes, err := k.kc.GetLTP(instrument)
	if err != nil {
		return 0, fmt.Errorf("fetch ltp for %s: %w", symbol, err)
	}
	q, ok := quotes[instrument]
	if !ok || q.LastPrice <= 0 {
		return 0, fmt.Errorf("no quote for %s", instrument)
	}
	return q.LastPrice, nil
}

// PlaceMarketOrder converts the notional to a whole-share quantity at the
// last traded price and submits a regular market order. Notionals below one
// share are rejected rather than rounded up.
func (k *Kite) PlaceMarketOrder(ctx context.Context, req types.OrderReq) (types.OrderReceipt, error) {
	price, err := k.LTP(ctx, req.Symbol)
	if err != nil {
		return types.OrderReceipt{}, err
	}
	qty := int(math.Floor(req.Notional / price))
	if qty <= 0 {
		return types.OrderReceipt{}, &interfaces.OrderSubmissionError{
			Symbol: req.Symbol,
			Side:   req.Side,
			Err:    fmt.Errorf("notional %.2f buys no whole share at %.2f", req.Notional, price),
		}
	}

	if k.sim != nil {
		return k.simFill(req.Symbol, req.Side, qty, price)
	}

	resp, err := k.kc.PlaceOrder(kiteconnect.VarietyRegular, kiteconnect.OrderParams{
		Exchange:        k.p.Exchange,
		Tradingsymbol:   req.Symbol,
		TransactionType: req.Side,
		Quantity:        qty,
		OrderType:       kiteconnect.OrderTypeMarket,
		Product:         kiteconnect.ProductCNC,
		Validity:        kiteconnect.ValidityDay,
		Tag:             req.Tag,
	})
	if err != nil {
		return types.OrderReceipt{}, &interfaces.OrderSubmissionError{Symbol: req.Symbol, Side: req.Side, Err: err}
	}
	return types.OrderReceipt{OrderID: resp.OrderID, Status: "PLACED", Message: "ok"}, nil
}

// PlaceTrailingStop attaches a stop-loss market sell below the current
// price that trails upward as the price rises.
func (k *Kite) PlaceTrailingStop(ctx context.Context, symbol string, qty, trailPercent float64) (types.OrderReceipt, error) {
	if qty <= 0 {
		return types.OrderReceipt{}, fmt.Errorf("no quantity to protect for %s", symbol)
	}

	if k.sim != nil {
		k.mu.Lock()
		defer k.mu.Unlock()
		k.sim.orderSeq++
		return types.OrderReceipt{
			OrderID: fmt.Sprintf("SIM-%d", k.sim.orderSeq),
			Status:  "SIMULATED",
			Message: fmt.Sprintf("trailing stop %.1f%%", trailPercent),
		}, nil
	}

	price, err := k.LTP(ctx, symbol)
	if err != nil {
		return types.OrderReceipt{}, err
	}
	trigger := price * (1 - trailPercent/100)

	resp, err := k.kc.PlaceOrder(kiteconnect.VarietyRegular, kiteconnect.OrderParams{
		Exchange:         k.p.Exchange,
		Tradingsymbol:    symbol,
		TransactionType:  kiteconnect.TransactionTypeSell,
		Quantity:         int(qty),
		OrderType:        kiteconnect.OrderTypeSLM,
		TriggerPrice:     trigger,
		TrailingStoploss: trailPercent,
		Product:          kiteconnect.ProductCNC,
		Validity:         kiteconnect.ValidityDay,
		Tag:              "trail",
	})
	if err != nil {
		return types.OrderReceipt{}, &interfaces.OrderSubmissionError{Symbol: symbol, Side: "SELL", Err: err}
	}
	return types.OrderReceipt{OrderID: resp.OrderID, Status: "PLACED", Message: "ok"}, nil
}

// ClosePosition sells the full open quantity at market.
func (k *Kite) ClosePosition(ctx context.Context, symbol string) (types.OrderReceipt, error) {
	pos, err := k.OpenPosition(ctx, symbol)
	if err != nil {
		return types.OrderReceipt{}, err
	}
	if pos.Qty <= 0 {
		return types.OrderReceipt{}, fmt.Errorf("no open position in %s to close", symbol)
	}

	if k.sim != nil {
		return k.simFill(symbol, "SELL", int(pos.Qty), pos.AvgPrice)
	}

	resp, err := k.kc.PlaceOrder(kiteconnect.VarietyRegular, kiteconnect.OrderParams{
		Exchange:        k.p.Exchange,
		Tradingsymbol:   symbol,
		TransactionType: kiteconnect.TransactionTypeSell,
		Quantity:        int(pos.Qty),
		OrderType:       kiteconnect.OrderTypeMarket,
		Product:         kiteconnect.ProductCNC,
		Validity:        kiteconnect.ValidityDay,
		Tag:             "close",
	})
	if err != nil {
		return types.OrderReceipt{}, &interfaces.OrderSubmissionError{Symbol: symbol, Side: "SELL", Err: err}
	}
	return types.OrderReceipt{OrderID: resp.OrderID, Status: "PLACED", Message: "ok"}, nil
}

func (k *Kite) simFill(symbol, side string, qty int, price float64) (types.OrderReceipt, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	cost := float64(qty) * price
	switch side {
	case "BUY":
		if cost > k.sim.cash {
			return types.OrderReceipt{}, &interfaces.OrderSubmissionError{
				Symbol: symbol,
				Side:   side,
				Err:    fmt.Errorf("insufficient simulated cash: need %.2f, have %.2f", cost, k.sim.cash),
			}
		}
		k.sim.cash -= cost
		pos := k.sim.positions[symbol]
		total := pos.Qty + float64(qty)
		pos.Symbol = symbol
		pos.AvgPrice = (pos.AvgPrice*pos.Qty + cost) / total
		pos.Qty = total
		k.sim.positions[symbol] = pos
	case "SELL":
		pos, ok := k.sim.positions[symbol]
		if !ok || pos.Qty < float64(qty) {
			return types.OrderReceipt{}, &interfaces.OrderSubmissionError{
				Symbol: symbol,
				Side:   side,
				Err:    errors.New("insufficient simulated position"),
			}
		}
		k.sim.cash += cost
		pos.Qty -= float64(qty)
		if pos.Qty == 0 {
			delete(k.sim.positions, symbol)
		} else {
			k.sim.positions[symbol] = pos
		}
	default:
		return types.OrderReceipt{}, fmt.Errorf("unknown side %q", side)
	}

	k.sim.orderSeq++
	return types.OrderReceipt{
		OrderID: fmt.Sprintf("SIM-%d", k.sim.orderSeq),
		Status:  "SIMULATED",
		Message: fmt.Sprintf("%s %d @ %.2f", side, qty, price),
	}, nil
}
