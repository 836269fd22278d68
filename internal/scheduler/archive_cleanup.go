package scheduler

import (
	"context"
	"time"

	"hcp_job_processor/platform/logger"
)

const (
	defaultArchiveCleanupInterval = time.Hour
	defaultArchiveRetention       = 30 * 24 * time.Hour
)

// ArchivePruner deletes archived objects older than a cutoff.
type ArchivePruner interface {
	DeleteOlderThan(ctx context.Context, bucket, prefix string, cutoff time.Time) (int, error)
}

// ArchiveCleanup periodically removes archived webhook bodies past retention.
type ArchiveCleanup struct {
	store     ArchivePruner
	bucket    string
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewArchiveCleanup(store ArchivePruner, bucket string, log *logger.Logger, interval, retention time.Duration) *ArchiveCleanup {
	if interval <= 0 {
		interval = defaultArchiveCleanupInterval
	}
	if retention <= 0 {
		retention = defaultArchiveRetention
	}
	if log == nil {
		log = logger.Nop()
	}

	return &ArchiveCleanup{
		store:     store,
		bucket:    bucket,
		log:       log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (c *ArchiveCleanup) Run(ctx context.Context) {
	if c == nil || c.store == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *ArchiveCleanup) cleanup(ctx context.Context) {
	cutoff := c.now().Add(-c.retention)

	deleted, err := c.store.DeleteOlderThan(ctx, c.bucket, "", cutoff)
	if err != nil {
		c.log.Warn("webhook archive cleanup failed", "error", err, "deleted", deleted)
		return
	}

	if deleted > 0 {
		c.log.Info("webhook archive cleanup deleted objects", "deleted", deleted)
	}
}
