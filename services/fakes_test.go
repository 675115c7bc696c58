package services

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"btc_tracker_backend/models"
)

var testAnchor = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// genTestCandles builds a deterministic, varied hourly series starting at
// testAnchor. Varied enough that every indicator is defined once its warm-up
// window is satisfied.
func genTestCandles(n int) []models.Candle {
	candles := make([]models.Candle, n)
	price := 60000.0
	for i := 0; i < n; i++ {
		drift := math.Sin(float64(i)/9)*200 + float64(i%11) - 5
		open := price
		closePrice := price + drift
		candles[i] = models.Candle{
			Timestamp: testAnchor.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      math.Max(open, closePrice) + 40,
			Low:       math.Min(open, closePrice) - 40,
			Close:     closePrice,
			Volume:    500 + float64(i%23)*7,
		}
		price = closePrice
	}
	return candles
}

// docsFromCandles wraps candles as stored documents. Store-side metric values
// are irrelevant to the updater, which recomputes everything from OHLCV.
func docsFromCandles(candles []models.Candle) []models.CandleDocument {
	docs := make([]models.CandleDocument, len(candles))
	for i, c := range candles {
		docs[i] = models.CandleDocument{Candle: c}
	}
	return docs
}

// fakeStore is an in-memory CandleStore keyed by timestamp.
type fakeStore struct {
	mu        sync.Mutex
	docs      map[int64]models.CandleDocument
	order     []time.Time // upsert call order
	failAfter int         // fail the Nth upsert onward; -1 never fails
	upserts   int
	loadErr   error
}

func newFakeStore(docs []models.CandleDocument) *fakeStore {
	s := &fakeStore{docs: make(map[int64]models.CandleDocument), failAfter: -1}
	for _, d := range docs {
		s.docs[d.Timestamp.Unix()] = d
	}
	return s
}

func (s *fakeStore) LoadRecent(ctx context.Context, n int) ([]models.CandleDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	all := make([]models.CandleDocument, 0, len(s.docs))
	for _, d := range s.docs {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (s *fakeStore) Upsert(ctx context.Context, doc models.CandleDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter >= 0 && s.upserts >= s.failAfter {
		return ErrStoreUnavailable
	}
	s.upserts++
	s.docs[doc.Timestamp.Unix()] = doc
	s.order = append(s.order, doc.Timestamp)
	return nil
}

func (s *fakeStore) has(ts time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[ts.Unix()]
	return ok
}

func (s *fakeStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// lockedStore adds an UpdateLocker that always reports the lock as held.
type lockedStore struct {
	*fakeStore
	tryLockCalls int
	unlockCalls  int
	held         bool
}

func (s *lockedStore) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	s.tryLockCalls++
	return !s.held, nil
}

func (s *lockedStore) Unlock(ctx context.Context, name string) error {
	s.unlockCalls++
	return nil
}

// fetchCall records one feed request range.
type fetchCall struct {
	start time.Time
	end   time.Time
}

// fakeFeed returns a canned candle slice and records every requested range.
// With raw set it returns the slice verbatim, ignoring the requested range,
// to exercise the merge logic against a misbehaving feed.
type fakeFeed struct {
	candles []models.Candle
	err     error
	raw     bool
	calls   []fetchCall
}

func (f *fakeFeed) GetCandles(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]models.Candle, error) {
	f.calls = append(f.calls, fetchCall{start: start, end: end})
	if f.err != nil {
		return nil, f.err
	}
	if f.raw {
		return f.candles, nil
	}
	// Serve only the requested range, like a real exchange.
	var out []models.Candle
	for _, c := range f.candles {
		if c.Timestamp.Before(start) || c.Timestamp.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// fixedClock pins a window manager to a given current time.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
