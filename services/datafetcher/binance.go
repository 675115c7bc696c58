package datafetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"btc_tracker_backend/models"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// BinanceFeed fetches hourly candles from Binance. It backs the seeding path,
// which needs a deep single-request history the public KuCoin endpoint does
// not provide as conveniently.
type BinanceFeed struct {
	client *binance.Client
}

// NewBinanceFeed creates a Binance candle feed. Credentials may be empty for
// public kline data.
func NewBinanceFeed(apiKey, apiSecret string) *BinanceFeed {
	return &BinanceFeed{client: binance.NewClient(apiKey, apiSecret)}
}

// GetCandles fetches hourly candles for the given range.
func (f *BinanceFeed) GetCandles(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]models.Candle, error) {
	if interval != time.Hour {
		return nil, fmt.Errorf("binance feed supports 1h candles only, got %s", interval)
	}
	svc := f.client.NewKlinesService().
		Symbol(binanceSymbol(symbol)).
		Interval("1h").
		StartTime(start.UnixMilli()).
		EndTime(end.UnixMilli())
	return f.fetch(ctx, svc)
}

// GetRecent fetches the most recent limit hourly candles.
func (f *BinanceFeed) GetRecent(ctx context.Context, symbol string, limit int) ([]models.Candle, error) {
	svc := f.client.NewKlinesService().
		Symbol(binanceSymbol(symbol)).
		Interval("1h").
		Limit(limit)
	return f.fetch(ctx, svc)
}

func (f *BinanceFeed) fetch(ctx context.Context, svc *binance.KlinesService) ([]models.Candle, error) {
	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines request failed: %w", err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		open, err := parsePrice(k.Open)
		if err != nil {
			return nil, err
		}
		high, err := parsePrice(k.High)
		if err != nil {
			return nil, err
		}
		low, err := parsePrice(k.Low)
		if err != nil {
			return nil, err
		}
		closePrice, err := parsePrice(k.Close)
		if err != nil {
			return nil, err
		}
		volume, err := parsePrice(k.Volume)
		if err != nil {
			return nil, err
		}
		candles = append(candles, models.Candle{
			Timestamp: time.UnixMilli(k.OpenTime).UTC().Truncate(time.Hour),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}
	return candles, nil
}

// binanceSymbol maps the configured pair ("BTC-USDT") to Binance's compact
// form ("BTCUSDT").
func binanceSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "-", "")
}

// parsePrice converts a decimal string from the exchange to float64.
func parsePrice(raw string) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid binance price %q: %w", raw, err)
	}
	return d.InexactFloat64(), nil
}
