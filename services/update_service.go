package services

import (
	"context"
	"fmt"
	"time"

	"btc_tracker_backend/pkg/logger"
	"btc_tracker_backend/services/analysis"
	"btc_tracker_backend/services/datafetcher"

	"go.uber.org/zap"
)

// Update cycle statuses reported in the run summary.
const (
	StatusOK             = "ok"
	StatusUpToDate       = "up_to_date"
	StatusNoNewData      = "no_new_data"
	StatusAlreadyRunning = "already_running"
)

// Advisory lock parameters for overlapping invocations.
const (
	updateLockName = "hourly_update"
	updateLockTTL  = 10 * time.Minute
)

// UpdateSummary is the outcome of one update cycle.
type UpdateSummary struct {
	Status            string      `json:"status"`
	Message           string      `json:"message"`
	Written           int         `json:"written"`
	Skipped           int         `json:"skipped"`
	WrittenTimestamps []time.Time `json:"written_timestamps,omitempty"`
	SkippedTimestamps []time.Time `json:"skipped_timestamps,omitempty"`
}

// UpdateLocker is the optional advisory lock a store may provide to avoid
// duplicate feed calls from overlapping runs.
type UpdateLocker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name string) error
}

// UpdateService runs one incremental update cycle end to end:
// sync window -> recompute metrics -> reconcile into the store.
type UpdateService struct {
	windows    *WindowManager
	engine     *analysis.Engine
	reconciler *Reconciler
	locker     UpdateLocker // nil disables overlap protection
}

// NewUpdateService wires the window manager, indicator engine and reconciler
// over the given store and feed. If the store also implements UpdateLocker,
// runs take a best-effort advisory lock.
func NewUpdateService(store CandleStore, feed datafetcher.CandleFeed, engine *analysis.Engine, symbol string) *UpdateService {
	svc := &UpdateService{
		windows:    NewWindowManager(store, feed, symbol),
		engine:     engine,
		reconciler: NewReconciler(store),
	}
	if locker, ok := store.(UpdateLocker); ok {
		svc.locker = locker
	}
	return svc
}

// RunUpdate executes one update cycle. It is safe to invoke concurrently:
// upserts are idempotent per timestamp, so two racing runs computing the
// same hours converge on the same documents. The advisory lock only spares
// the feed a duplicate request — it is not mutual exclusion.
func (s *UpdateService) RunUpdate(ctx context.Context) (*UpdateSummary, error) {
	if s.locker != nil {
		acquired, err := s.locker.TryLock(ctx, updateLockName, updateLockTTL)
		if err != nil {
			logger.Warn("advisory lock unavailable, continuing without it", zap.Error(err))
		} else if !acquired {
			return &UpdateSummary{
				Status:  StatusAlreadyRunning,
				Message: "another update run holds the lock",
			}, nil
		} else {
			defer func() {
				unlockCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := s.locker.Unlock(unlockCtx, updateLockName); err != nil {
					logger.Warn("failed to release advisory lock", zap.Error(err))
				}
			}()
		}
	}

	window, err := s.windows.Sync(ctx)
	if err != nil {
		return nil, err
	}
	if window.UpToDate {
		return &UpdateSummary{
			Status:  StatusUpToDate,
			Message: fmt.Sprintf("no new candles, latest in store is %s", window.LastStored.Format(time.RFC3339)),
		}, nil
	}
	if window.NoNewData {
		return &UpdateSummary{
			Status:  StatusNoNewData,
			Message: fmt.Sprintf("feed has no candles yet for the gap after %s", window.LastStored.Format(time.RFC3339)),
		}, nil
	}

	metrics := s.engine.Compute(window.Candles)

	result, reconcileErr := s.reconciler.Reconcile(ctx, window.Candles, metrics, window.NewTimestamps)
	summary := &UpdateSummary{
		Status:            StatusOK,
		Written:           len(result.Written),
		Skipped:           len(result.Skipped),
		WrittenTimestamps: result.Written,
		SkippedTimestamps: result.Skipped,
	}
	if reconcileErr != nil {
		summary.Message = fmt.Sprintf("aborted after %d of %d writes", len(result.Written), len(window.NewTimestamps))
		return summary, reconcileErr
	}
	summary.Message = fmt.Sprintf("wrote %d candles, skipped %d", summary.Written, summary.Skipped)
	return summary, nil
}
