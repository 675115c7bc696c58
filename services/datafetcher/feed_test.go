package datafetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"btc_tracker_backend/models"
)

// flakyFeed fails the first failures calls, then succeeds.
type flakyFeed struct {
	failures int
	calls    int
	candles  []models.Candle
}

func (f *flakyFeed) GetCandles(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]models.Candle, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.candles, nil
}

func TestRetryingFeedRecovers(t *testing.T) {
	want := []models.Candle{{Close: 67000}}
	inner := &flakyFeed{failures: 1, candles: want}
	feed := NewRetryingFeed(inner, 3)

	got, err := feed.GetCandles(context.Background(), "BTC-USDT", time.Hour, time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Close != 67000 {
		t.Fatalf("got %v, want the wrapped feed's candles", got)
	}
	if inner.calls != 2 {
		t.Fatalf("inner feed called %d times, want 2", inner.calls)
	}
}

func TestRetryingFeedExhaustsAttempts(t *testing.T) {
	inner := &flakyFeed{failures: 100}
	feed := NewRetryingFeed(inner, 2)

	_, err := feed.GetCandles(context.Background(), "BTC-USDT", time.Hour, time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("expected ErrFeedUnavailable, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner feed called %d times, want 2", inner.calls)
	}
}

func TestRetryingFeedHonorsContext(t *testing.T) {
	inner := &flakyFeed{failures: 100}
	feed := NewRetryingFeed(inner, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := feed.GetCandles(ctx, "BTC-USDT", time.Hour, time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
