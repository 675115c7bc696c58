package scheduler

import (
	"context"
	"time"

	"btc_tracker_backend/pkg/logger"
	"btc_tracker_backend/services"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// runTimeout bounds one scheduled update cycle.
const runTimeout = 5 * time.Minute

// updateCronSpec fires a minute past every hour, once the hourly candle has
// closed.
const updateCronSpec = "1 * * * *"

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron    *gocron.Scheduler
	updates *services.UpdateService
}

// NewScheduler creates a new scheduler instance
func NewScheduler(updates *services.UpdateService) *Scheduler {
	return &Scheduler{
		cron:    gocron.NewScheduler(time.UTC),
		updates: updates,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	logger.Info("Starting scheduler...")

	// Overlap with an external HTTP trigger is safe: the run takes an
	// advisory lock and upserts are idempotent per timestamp.
	if _, err := s.cron.Cron(updateCronSpec).Do(s.runHourlyUpdate); err != nil {
		logger.Error("failed to schedule hourly update", zap.Error(err))
		return
	}

	s.cron.StartAsync()
	logger.Info("Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	logger.Info("Scheduler stopped")
}

// runHourlyUpdate runs one update cycle and logs the outcome.
func (s *Scheduler) runHourlyUpdate() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	summary, err := s.updates.RunUpdate(ctx)
	if err != nil {
		logger.Error("scheduled update failed", zap.Error(err))
		return
	}
	logger.Info("scheduled update finished",
		zap.String("status", summary.Status),
		zap.Int("written", summary.Written),
		zap.Int("skipped", summary.Skipped))
}
