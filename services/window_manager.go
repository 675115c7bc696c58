package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"btc_tracker_backend/models"
	"btc_tracker_backend/pkg/logger"
	"btc_tracker_backend/services/datafetcher"

	"go.uber.org/zap"
)

// HistoryWindow is the trailing history every sync starts from. It equals
// the longest indicator lookback, so any row appended on top of a full
// window has enough prior history for all metrics to be defined.
const HistoryWindow = 200

// ErrInsufficientHistory means the store holds fewer candles than the
// trailing window needs. Fatal for an update run; the store must be seeded
// once (run with -seed) before incremental updates can succeed.
var ErrInsufficientHistory = errors.New("insufficient candle history in store")

// ExtendedWindow is the result of one sync: the stored trailing window plus
// any candles fetched for the gap since the last persisted hour.
type ExtendedWindow struct {
	// Candles is the full ordered window, stored history first, ascending.
	Candles []models.Candle
	// NewTimestamps are the hour keys not yet persisted — the only upsert
	// candidates for this run.
	NewTimestamps []time.Time
	// LastStored is the newest timestamp that was already persisted.
	LastStored time.Time
	// UpToDate is set when no gap exists (same-hour re-invocation).
	UpToDate bool
	// NoNewData is set when a gap exists but the feed had nothing for it yet.
	NoNewData bool
}

// WindowManager owns the in-memory candle window: it loads the trailing
// stored history, detects the gap up to the current top of hour and requests
// exactly the missing range from the feed.
type WindowManager struct {
	store      CandleStore
	feed       datafetcher.CandleFeed
	symbol     string
	windowSize int
	now        func() time.Time
}

// NewWindowManager creates a window manager over the given store and feed.
func NewWindowManager(store CandleStore, feed datafetcher.CandleFeed, symbol string) *WindowManager {
	return &WindowManager{
		store:      store,
		feed:       feed,
		symbol:     symbol,
		windowSize: HistoryWindow,
		now:        time.Now,
	}
}

// Sync loads the trailing window, detects the gap between the last stored
// candle and the current top of hour, and backfills it from the feed.
func (w *WindowManager) Sync(ctx context.Context) (*ExtendedWindow, error) {
	docs, err := w.store.LoadRecent(ctx, w.windowSize)
	if err != nil {
		return nil, fmt.Errorf("load recent candles: %w", err)
	}
	if len(docs) < w.windowSize {
		return nil, fmt.Errorf("%w: found %d of %d required candles", ErrInsufficientHistory, len(docs), w.windowSize)
	}

	stored := make([]models.Candle, len(docs))
	for i, doc := range docs {
		stored[i] = doc.Candle
	}
	lastStored := stored[len(stored)-1].Timestamp

	nowHour := w.now().UTC().Truncate(time.Hour)
	if !nowHour.After(lastStored) {
		logger.Debug("window up to date", zap.Time("last_stored", lastStored))
		return &ExtendedWindow{Candles: stored, LastStored: lastStored, UpToDate: true}, nil
	}

	// Request the half-open gap (lastStored, nowHour].
	start := lastStored.Add(time.Hour)
	fetched, err := w.feed.GetCandles(ctx, w.symbol, time.Hour, start, nowHour)
	if err != nil {
		return nil, fmt.Errorf("fetch missing candles: %w", err)
	}

	fresh := mergeNewCandles(fetched, lastStored, nowHour)
	if len(fresh) == 0 {
		logger.Info("no candles available yet for gap",
			zap.Time("last_stored", lastStored),
			zap.Time("now_hour", nowHour))
		return &ExtendedWindow{Candles: stored, LastStored: lastStored, NoNewData: true}, nil
	}

	window := append(stored, fresh...)
	newTimestamps := make([]time.Time, len(fresh))
	for i, c := range fresh {
		newTimestamps[i] = c.Timestamp
	}

	logger.Info("extended window with fetched candles",
		zap.Time("last_stored", lastStored),
		zap.Int("fetched", len(fetched)),
		zap.Int("new", len(fresh)))
	return &ExtendedWindow{Candles: window, NewTimestamps: newTimestamps, LastStored: lastStored}, nil
}

// mergeNewCandles hour-aligns, sorts and deduplicates feed candles, keeping
// only timestamps inside the (lastStored, nowHour] gap. The feed may return
// candles in any order, with duplicates, or outside the requested range.
func mergeNewCandles(fetched []models.Candle, lastStored, nowHour time.Time) []models.Candle {
	candidates := make([]models.Candle, 0, len(fetched))
	for _, c := range fetched {
		c.Timestamp = c.Timestamp.UTC().Truncate(time.Hour)
		if !c.Timestamp.After(lastStored) || c.Timestamp.After(nowHour) {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.Before(candidates[j].Timestamp)
	})

	merged := candidates[:0]
	var prev time.Time
	for _, c := range candidates {
		if len(merged) > 0 && c.Timestamp.Equal(prev) {
			continue
		}
		merged = append(merged, c)
		prev = c.Timestamp
	}
	return merged
}
