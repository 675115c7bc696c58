package services

import (
	"context"
	"fmt"
	"sort"

	"btc_tracker_backend/models"
	"btc_tracker_backend/pkg/logger"
	"btc_tracker_backend/services/analysis"

	"go.uber.org/zap"
)

// SeedBatch is how many hourly candles the bootstrap fetches. Large enough
// that after dropping the 200-hour warm-up there is a full trailing window
// left for incremental updates to build on.
const SeedBatch = 500

// SeedFeed is the deep-history feed the seeder needs; the Binance adapter
// provides it.
type SeedFeed interface {
	GetRecent(ctx context.Context, symbol string, limit int) ([]models.Candle, error)
}

// SeedService bootstraps a cold store with enough candle history for
// incremental updates. Runs once, operator-invoked (main -seed flag).
type SeedService struct {
	store  CandleStore
	feed   SeedFeed
	engine *analysis.Engine
	symbol string
}

// NewSeedService creates a seeder over the given store and feed.
func NewSeedService(store CandleStore, feed SeedFeed, engine *analysis.Engine, symbol string) *SeedService {
	return &SeedService{store: store, feed: feed, engine: engine, symbol: symbol}
}

// Seed fetches the most recent SeedBatch hourly candles, computes the full
// metric set, drops warm-up rows and upserts the rest. Writes go newest
// first so the collection's natural order starts at the latest candle.
// Re-running is safe: upserts replace per timestamp.
func (s *SeedService) Seed(ctx context.Context) (int, error) {
	candles, err := s.feed.GetRecent(ctx, s.symbol, SeedBatch)
	if err != nil {
		return 0, fmt.Errorf("fetch seed candles: %w", err)
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("seed feed returned no candles")
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	metrics := s.engine.Compute(candles)

	written := 0
	for i := len(candles) - 1; i >= 0; i-- {
		if !metrics[i].Stable() {
			continue
		}
		doc := models.CandleDocument{Candle: candles[i], MetricSet: metrics[i]}
		if err := s.store.Upsert(ctx, doc); err != nil {
			return written, err
		}
		written++
	}

	logger.Info("seeded candle history",
		zap.Int("fetched", len(candles)),
		zap.Int("written", written))
	return written, nil
}
