package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"btc_tracker_backend/models"
)

// stableMetrics returns one fully defined metric set per candle.
func stableMetrics(n int) []models.MetricSet {
	metrics := make([]models.MetricSet, n)
	for i := range metrics {
		m := &metrics[i]
		m.SMA50, m.SMA100, m.SMA200 = 1, 1, 1
		m.EMA20, m.EMA50, m.EMA100, m.EMA200 = 1, 1, 1, 1
		m.RSI, m.StochRSI, m.StochRSIK, m.StochRSID = 1, 1, 1, 1
		m.BBHigh, m.BBLow = 1, 1
		m.IchimokuConversion, m.IchimokuBase, m.IchimokuA, m.IchimokuB = 1, 1, 1, 1
		m.DonchianHigh, m.DonchianLow, m.DonchianMid = 1, 1, 1
		m.Fib236, m.Fib382, m.Fib500, m.Fib618, m.Fib100 = 1, 1, 1, 1, 1
		m.HDPRMA, m.HDPRDistance = 1, 1
		m.MACDLine, m.MACDSignal, m.MACDHistogram = 1, 1, 1
		m.MoonCycle = "New Moon"
	}
	return metrics
}

func TestReconcileWritesNewRowsAscending(t *testing.T) {
	candles := genTestCandles(5)
	metrics := stableMetrics(5)
	store := newFakeStore(nil)
	r := NewReconciler(store)

	// Candidates deliberately out of order.
	candidates := []time.Time{candles[4].Timestamp, candles[2].Timestamp, candles[3].Timestamp}

	result, err := r.Reconcile(context.Background(), candles, metrics, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Written) != 3 || len(result.Skipped) != 0 {
		t.Fatalf("written=%d skipped=%d, want 3/0", len(result.Written), len(result.Skipped))
	}
	for i := 1; i < len(store.order); i++ {
		if !store.order[i].After(store.order[i-1]) {
			t.Fatalf("writes not ascending: %v", store.order)
		}
	}
	if store.has(candles[0].Timestamp) || store.has(candles[1].Timestamp) {
		t.Fatal("non-candidate timestamps must not be written")
	}
}

func TestReconcileSkipsUnstableRows(t *testing.T) {
	candles := genTestCandles(3)
	metrics := stableMetrics(3)
	metrics[1].SMA200 = math.NaN()
	store := newFakeStore(nil)
	r := NewReconciler(store)

	candidates := []time.Time{candles[0].Timestamp, candles[1].Timestamp, candles[2].Timestamp}
	result, err := r.Reconcile(context.Background(), candles, metrics, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Written) != 2 {
		t.Fatalf("written = %v, want 2 rows", result.Written)
	}
	if len(result.Skipped) != 1 || !result.Skipped[0].Equal(candles[1].Timestamp) {
		t.Fatalf("skipped = %v, want the unstable row only", result.Skipped)
	}
	if store.has(candles[1].Timestamp) {
		t.Fatal("unstable row must not be persisted")
	}
}

func TestReconcileIdempotent(t *testing.T) {
	candles := genTestCandles(4)
	metrics := stableMetrics(4)
	store := newFakeStore(nil)
	r := NewReconciler(store)
	candidates := []time.Time{candles[1].Timestamp, candles[2].Timestamp}

	first, err := r.Reconcile(context.Background(), candles, metrics, candidates)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	sizeAfterFirst := store.size()

	second, err := r.Reconcile(context.Background(), candles, metrics, candidates)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(first.Written) != len(second.Written) {
		t.Fatalf("runs diverged: %d vs %d written", len(first.Written), len(second.Written))
	}
	if store.size() != sizeAfterFirst {
		t.Fatalf("replay changed store size: %d -> %d", sizeAfterFirst, store.size())
	}
}

func TestReconcileAbortsOnStoreFailure(t *testing.T) {
	candles := genTestCandles(3)
	metrics := stableMetrics(3)
	store := newFakeStore(nil)
	store.failAfter = 1 // first write succeeds, second fails
	r := NewReconciler(store)

	candidates := []time.Time{candles[0].Timestamp, candles[1].Timestamp, candles[2].Timestamp}
	result, err := r.Reconcile(context.Background(), candles, metrics, candidates)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	// Partial success: exactly the rows before the failure, no holes.
	if len(result.Written) != 1 || !result.Written[0].Equal(candles[0].Timestamp) {
		t.Fatalf("written = %v, want only the first candidate", result.Written)
	}
	if store.has(candles[1].Timestamp) || store.has(candles[2].Timestamp) {
		t.Fatal("rows after the failure must not be written")
	}
}

func TestReconcileSkipsTimestampsMissingFromWindow(t *testing.T) {
	candles := genTestCandles(2)
	metrics := stableMetrics(2)
	store := newFakeStore(nil)
	r := NewReconciler(store)

	phantom := candles[1].Timestamp.Add(time.Hour)
	result, err := r.Reconcile(context.Background(), candles, metrics,
		[]time.Time{candles[1].Timestamp, phantom})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Written) != 1 || len(result.Skipped) != 1 {
		t.Fatalf("written=%v skipped=%v, want 1 written and the phantom skipped", result.Written, result.Skipped)
	}
}
