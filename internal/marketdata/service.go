package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/indicator"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/interfaces"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// StaleDataError means every fetch attempt returned a terminal bar outside
// the freshness window. The affected symbol must be skipped for the cycle;
// trading on a stale close would act on a signal that may already be gone.
type StaleDataError struct {
	Symbol   string
	Attempts int
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("stale data for %s after %d attempts", e.Symbol, e.Attempts)
}

// Service layers indicator enrichment and freshness validation over a raw
// price provider.
type Service struct {
	provider interfaces.MarketData
	params   indicator.Params

	period   string
	interval string

	freshAttempts int
	freshDelay    time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

type ServiceOpts struct {
	Period        string
	Interval      string
	Params        indicator.Params
	FreshAttempts int
	FreshDelay    time.Duration
}

func NewService(provider interfaces.MarketData, opts ServiceOpts) *Service {
	if opts.FreshAttempts <= 0 {
		opts.FreshAttempts = 8
	}
	return &Service{
		provider:      provider,
		params:        opts.Params,
		period:        opts.Period,
		interval:      opts.Interval,
		freshAttempts: opts.FreshAttempts,
		freshDelay:    opts.FreshDelay,
		now:           time.Now,
		sleep:         sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GetSeries fetches the configured history for symbol and enriches it with
// the MACD columns.
func (s *Service) GetSeries(ctx context.Context, symbol string) (*types.Series, error) {
	series, err := s.provider.GetBars(ctx, symbol, s.period, s.interval)
	if err != nil {
		return nil, err
	}
	if err := indicator.Enrich(series, s.params); err != nil {
		return nil, err
	}
	return series, nil
}

// GetFreshSeries fetches an enriched series whose terminal bar covers the
// current wall-clock instant, retrying a bounded number of times while the
// provider still serves the previous bar. Transient fetch errors consume an
// attempt like a stale response does.
func (s *Service) GetFreshSeries(ctx context.Context, symbol string) (*types.Series, error) {
	intervalDur, err := ParseInterval(s.interval)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.freshAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, s.freshDelay); err != nil {
				return nil, err
			}
		}

		series, err := s.GetSeries(ctx, symbol)
		if err != nil {
			lastErr = err
			continue
		}

		last := time.Unix(series.LastBar().Ts, 0)
		now := s.now()
		if !now.Before(last) && now.Before(last.Add(intervalDur)) {
			return series, nil
		}
		lastErr = nil
	}

	staleErr := &StaleDataError{Symbol: symbol, Attempts: s.freshAttempts}
	if lastErr != nil {
		return nil, fmt.Errorf("%w (last fetch error: %v)", staleErr, lastErr)
	}
	return nil, staleErr
}

// ParseInterval converts a provider interval token such as "5m", "1h" or
// "1d" to a duration.
func ParseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	unit := interval[len(interval)-1:]
	n, err := strconv.Atoi(strings.TrimSuffix(interval, unit))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	switch unit {
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid interval unit %q", interval)
	}
}
