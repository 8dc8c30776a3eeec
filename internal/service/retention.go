package service

import (
	"context"
	"errors"
	"time"

	"github.com/stemflow/stemflow/internal/storage"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/internal/store/model"
	"go.uber.org/zap"
)

const (
	defaultFailedRetention = 7 * 24 * time.Hour
	defaultReapInterval    = time.Hour
	reapBatchSize          = 500
)

// RetentionReaper removes FAILED jobs once they are older than the retention
// window, together with their uploaded object.
type RetentionReaper struct {
	store     store.Store
	objects   storage.ObjectStore
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	log       *zap.SugaredLogger
}

func NewRetentionReaper(s store.Store, objects storage.ObjectStore, retention, interval time.Duration) *RetentionReaper {
	if retention <= 0 {
		retention = defaultFailedRetention
	}
	if interval <= 0 {
		interval = defaultReapInterval
	}
	return &RetentionReaper{
		store:     s,
		objects:   objects,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		log:       zap.S().Named("retention_reaper"),
	}
}

// Run reaps on every tick until ctx is cancelled.
func (r *RetentionReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Infow("retention reaper started", "retention", r.retention, "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("retention reaper stopped")
			return nil
		case <-ticker.C:
			if n, err := r.Reap(ctx); err != nil {
				r.log.Errorw("failed to reap failed jobs", "error", err)
			} else if n > 0 {
				r.log.Infow("reaped failed jobs", "count", n)
			}
		}
	}
}

// Reap deletes one batch of expired failed jobs and returns how many rows went away.
func (r *RetentionReaper) Reap(ctx context.Context) (int, error) {
	filter := store.NewJobQueryFilter().
		ByStatus(model.JobStatusFailed).
		UpdatedBefore(r.now().Add(-r.retention))
	jobs, err := r.store.Job().List(ctx, filter, store.NewJobQueryOptions().WithSortOrder(store.SortByUpdatedTime).WithLimit(reapBatchSize))
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, job := range jobs {
		if err := r.store.Job().Delete(ctx, job.ID); err != nil {
			if !errors.Is(err, store.ErrRecordNotFound) {
				r.log.Warnw("failed to delete expired job", "job_id", job.ID, "error", err)
			}
			continue
		}
		reaped++

		if err := r.objects.Remove(ctx, job.FilePath); err != nil {
			r.log.Warnw("failed to remove object of expired job", "job_id", job.ID, "path", job.FilePath, "error", err)
		}
	}
	return reaped, nil
}
