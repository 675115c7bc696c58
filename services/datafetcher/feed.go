package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"btc_tracker_backend/models"
	"btc_tracker_backend/pkg/logger"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// ErrFeedUnavailable marks a feed request that failed after all retries.
// The run that hit it ends without writing anything; the gap stays open for
// the next invocation.
var ErrFeedUnavailable = errors.New("candle feed unavailable")

// CandleFeed fetches OHLCV candles for a time range. Implementations may
// return candles in any order and may return fewer than requested near the
// current time; callers sort and deduplicate.
type CandleFeed interface {
	GetCandles(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]models.Candle, error)
}

// RetryingFeed wraps a CandleFeed with bounded retries and exponential
// backoff for transient network failures.
type RetryingFeed struct {
	feed     CandleFeed
	attempts int
}

// NewRetryingFeed wraps feed with up to attempts tries per request.
func NewRetryingFeed(feed CandleFeed, attempts int) *RetryingFeed {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryingFeed{feed: feed, attempts: attempts}
}

// GetCandles delegates to the wrapped feed, retrying with backoff until the
// attempt budget is spent.
func (r *RetryingFeed) GetCandles(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]models.Candle, error) {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		candles, err := r.feed.GetCandles(ctx, symbol, interval, start, end)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		logger.Warn("candle feed request failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.attempts),
			zap.Error(err))
		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrFeedUnavailable, r.attempts, lastErr)
}
