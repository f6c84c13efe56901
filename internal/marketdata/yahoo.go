package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/api"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/interfaces"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

const yahooChartBaseURL = "https://query1.finance.yahoo.com"

// YahooClient fetches price history from the Yahoo Finance chart endpoint.
// Transient transport failures are retried with backoff; freshness of the
// returned bars is the Service's concern, not the client's.
type YahooClient struct {
	client *api.Client
	retry  *api.RetryConfig
}

var _ interfaces.MarketData = (*YahooClient)(nil)

func NewYahooClient(opts ...api.ClientOption) *YahooClient {
	base := []api.ClientOption{
		api.WithBaseURL(yahooChartBaseURL),
		api.WithTimeout(20 * time.Second),
		api.WithLogging(true),
	}
	return &YahooClient{
		client: api.NewClient(append(base, opts...)...),
		retry:  api.DefaultRetryConfig(),
	}
}

// chartResponse mirrors the subset of the chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetBars fetches raw closing-price bars. Bars with a null close (halted or
// not yet printed) are dropped, preserving strictly increasing timestamps.
func (y *YahooClient) GetBars(ctx context.Context, symbol, period, interval string) (*types.Series, error) {
	path := fmt.Sprintf("/v8/finance/chart/%s?range=%s&interval=%s",
		url.PathEscape(symbol), url.QueryEscape(period), url.QueryEscape(interval))

	req := api.NewRequest(http.MethodGet, path).WithContext(ctx)
	for key, value := range api.YahooFinanceHeaders() {
		req.WithHeader(key, value)
	}
	resp, err := y.client.DoWithRetry(req, y.retry)
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", symbol, err)
	}

	var parsed chartResponse
	if err := resp.ParseJSON(&parsed); err != nil {
		return nil, fmt.Errorf("parse chart payload for %s: %w (body: %.120s)", symbol, err, resp.String())
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart error for %s: %s (%s)",
			symbol, parsed.Chart.Error.Description, parsed.Chart.Error.Code)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("empty chart payload for %s", symbol)
	}

	result := parsed.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	if len(result.Timestamp) != len(closes) {
		return nil, fmt.Errorf("misaligned chart payload for %s: %d timestamps, %d closes",
			symbol, len(result.Timestamp), len(closes))
	}

	series := &types.Series{Symbol: symbol, Interval: interval}
	for i, ts := range result.Timestamp {
		if closes[i] == nil {
			continue
		}
		series.Bars = append(series.Bars, types.Bar{Ts: ts, Close: *closes[i]})
	}
	return series, nil
}
