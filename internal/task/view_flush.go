package task

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonio/internal/storage"
)

// ViewFlushJob persists buffered widget views.
type ViewFlushJob struct {
	database *gorm.DB
	counter  *ViewCounter
	logger   *zap.Logger
}

// NewViewFlushJob builds a ViewFlushJob.
func NewViewFlushJob(database *gorm.DB, counter *ViewCounter, logger *zap.Logger) *ViewFlushJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewFlushJob{
		database: database,
		counter:  counter,
		logger:   logger,
	}
}

// Run drains the counter into storage. Failed batches return to the counter for the next run.
func (job *ViewFlushJob) Run(ctx context.Context) error {
	drained := job.counter.Drain()
	if len(drained) == 0 {
		return nil
	}
	if err := storage.IncrementWidgetViews(ctx, job.database, drained); err != nil {
		job.counter.Restore(drained)
		job.logger.Warn("widget_view_flush_failed", zap.Error(err), zap.Int("widgets", len(drained)))
		return err
	}
	job.logger.Debug("widget_view_flush", zap.Int("widgets", len(drained)))
	return nil
}

// Runner adapts the job for a Scheduler.
func (job *ViewFlushJob) Runner() RunnerFunc {
	return func(ctx context.Context) {
		_ = job.Run(ctx)
	}
}
