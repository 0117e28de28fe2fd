package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"storekriti/internal/config"
	"storekriti/internal/events"
	"storekriti/internal/metrics"
	"storekriti/internal/models"
	"storekriti/internal/pageviews"
)

const retentionBatchSize = 1000

// RetentionJob removes pageviews and events older than the configured
// retention. Visitors, sessions and leads are kept.
type RetentionJob struct {
	dbManager  cartridge.DBManager
	logger     *slog.Logger
	cfg        *config.Config
	now        func() time.Time
	batchPause time.Duration
}

func NewRetentionJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *RetentionJob {
	return &RetentionJob{
		dbManager:  dbManager,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		batchPause: 100 * time.Millisecond,
	}
}

func (j *RetentionJob) Name() string { return "retention" }

func (j *RetentionJob) Interval() time.Duration { return 24 * time.Hour }

// Run deletes expired rows in batches. A retention of zero days disables it.
func (j *RetentionJob) Run(ctx context.Context) error {
	retentionDays := j.cfg.RetentionDays
	if retentionDays <= 0 {
		j.logger.Debug("Retention disabled, keeping all tracking data")
		return nil
	}

	db := j.dbManager.GetConnection()
	cutoff := j.now().UTC().AddDate(0, 0, -retentionDays)

	j.logger.Info("Starting retention cleanup",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoff))

	pvDeleted, err := j.purge(ctx, db, "pageviews", func(tx *gorm.DB) (int64, error) {
		return pageviews.DeleteBefore(tx, cutoff, retentionBatchSize)
	})
	if err != nil {
		return err
	}
	evDeleted, err := j.purge(ctx, db, "events", func(tx *gorm.DB) (int64, error) {
		return events.DeleteBefore(tx, cutoff, retentionBatchSize)
	})
	if err != nil {
		return err
	}

	j.logger.Info("Retention cleanup finished",
		slog.Int64("pageviews_deleted", pvDeleted),
		slog.Int64("events_deleted", evDeleted))
	return nil
}

func (j *RetentionJob) purge(ctx context.Context, db *gorm.DB, table string, deleteBatch func(tx *gorm.DB) (int64, error)) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var deleted int64
		err := models.PerformWrite(j.logger, db, func(tx *gorm.DB) error {
			n, err := deleteBatch(tx)
			deleted = n
			return err
		})
		if err != nil {
			j.logger.Error("Failed to delete expired rows",
				slog.String("table", table),
				slog.Any("error", err),
				slog.Int64("deleted_so_far", total))
			return total, err
		}

		total += deleted
		metrics.RetentionDeleted.WithLabelValues(table).Add(float64(deleted))

		if deleted < retentionBatchSize {
			return total, nil
		}

		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case <-time.After(j.batchPause):
		}
	}
}
