package datafetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"btc_tracker_backend/models"

	"github.com/shopspring/decimal"
)

// KuCoin public market data API.
const kucoinBaseURL = "https://api.kucoin.com"

// kucoinOKCode is the success code KuCoin returns in the response body.
const kucoinOKCode = "200000"

// KuCoinFeed fetches hourly candles from the KuCoin public market API.
// Candle endpoints need no credentials.
type KuCoinFeed struct {
	baseURL    string
	httpClient *http.Client
}

// NewKuCoinFeed creates a KuCoin candle feed.
func NewKuCoinFeed() *KuCoinFeed {
	return &KuCoinFeed{
		baseURL: kucoinBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewKuCoinFeedWithBaseURL creates a feed against a custom base URL (tests).
func NewKuCoinFeedWithBaseURL(baseURL string) *KuCoinFeed {
	f := NewKuCoinFeed()
	f.baseURL = baseURL
	return f
}

// kucoinCandleResponse is the envelope of /api/v1/market/candles. Each data
// row is [time, open, close, high, low, volume, turnover], all strings,
// newest first.
type kucoinCandleResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// GetCandles fetches candles for [start, end] in unix seconds. KuCoin may
// return them newest-first and may omit hours it has no data for yet.
func (f *KuCoinFeed) GetCandles(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]models.Candle, error) {
	if interval != time.Hour {
		return nil, fmt.Errorf("kucoin feed supports 1h candles only, got %s", interval)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("type", "1hour")
	params.Set("startAt", strconv.FormatInt(start.Unix(), 10))
	params.Set("endAt", strconv.FormatInt(end.Unix(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		f.baseURL+"/api/v1/market/candles?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build kucoin request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kucoin request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kucoin returned status %d", resp.StatusCode)
	}

	var body kucoinCandleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode kucoin response: %w", err)
	}
	if body.Code != kucoinOKCode {
		return nil, fmt.Errorf("kucoin error code %s: %s", body.Code, body.Msg)
	}

	candles := make([]models.Candle, 0, len(body.Data))
	for _, row := range body.Data {
		candle, err := parseKuCoinRow(row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// parseKuCoinRow converts one [time, open, close, high, low, volume, turnover]
// row into a Candle with an hour-aligned UTC timestamp.
func parseKuCoinRow(row []string) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("kucoin candle row has %d fields, want at least 6", len(row))
	}

	unix, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("invalid kucoin candle time %q: %w", row[0], err)
	}

	fields := [5]float64{}
	for i, raw := range row[1:6] {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return models.Candle{}, fmt.Errorf("invalid kucoin candle field %q: %w", raw, err)
		}
		fields[i] = d.InexactFloat64()
	}

	return models.Candle{
		Timestamp: time.Unix(unix, 0).UTC().Truncate(time.Hour),
		Open:      fields[0],
		Close:     fields[1],
		High:      fields[2],
		Low:       fields[3],
		Volume:    fields[4],
	}, nil
}
