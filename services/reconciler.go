package services

import (
	"context"
	"sort"
	"time"

	"btc_tracker_backend/models"
	"btc_tracker_backend/pkg/logger"

	"go.uber.org/zap"
)

// ReconcileResult reports which candidate timestamps were written and which
// were skipped as unstable.
type ReconcileResult struct {
	Written []time.Time
	Skipped []time.Time
}

// Reconciler persists newly computed rows. Only timestamps not yet in the
// store are candidates; historical rows are never rewritten, so retracement
// snapshots accepted by earlier runs stay as written.
type Reconciler struct {
	store CandleStore
}

// NewReconciler creates a reconciler writing through the given store.
func NewReconciler(store CandleStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile upserts a full candle+metrics document for every stable new
// timestamp, in ascending order. Rows whose metrics are still warming up are
// skipped, not failed. A store error aborts the remaining batch so the store
// is always caught up through the last written timestamp with no holes
// before it; rows already written stay written and a retry converges on the
// same documents.
func (r *Reconciler) Reconcile(ctx context.Context, candles []models.Candle, metrics []models.MetricSet, newTimestamps []time.Time) (*ReconcileResult, error) {
	index := make(map[int64]int, len(candles))
	for i, c := range candles {
		index[c.Timestamp.Unix()] = i
	}

	sorted := append([]time.Time(nil), newTimestamps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	result := &ReconcileResult{}
	for _, ts := range sorted {
		i, ok := index[ts.Unix()]
		if !ok {
			logger.Warn("candidate timestamp missing from window", zap.Time("timestamp", ts))
			result.Skipped = append(result.Skipped, ts)
			continue
		}

		if undefined := metrics[i].UndefinedMetrics(); len(undefined) > 0 {
			logger.Warn("skipping unstable row",
				zap.Time("timestamp", ts),
				zap.Strings("undefined", undefined))
			result.Skipped = append(result.Skipped, ts)
			continue
		}

		doc := models.CandleDocument{Candle: candles[i], MetricSet: metrics[i]}
		if err := r.store.Upsert(ctx, doc); err != nil {
			return result, err
		}
		result.Written = append(result.Written, ts)
		logger.Info("upserted backfilled candle", zap.Time("timestamp", ts))
	}
	return result, nil
}
