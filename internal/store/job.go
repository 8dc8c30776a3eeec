package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stemflow/stemflow/internal/store/model"
	"gorm.io/gorm"
)

type Job interface {
	Create(ctx context.Context, job model.Job) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) ([]model.Job, error)
	SetHash(ctx context.Context, id string, hash string) error
	SetCategory(ctx context.Context, id string, categoryID string) error
	SetWavePath(ctx context.Context, id string, path string) error
	// Transition moves the job to next only if its current status is an allowed
	// source for next. Returns ErrInvalidTransition when another writer got there first.
	Transition(ctx context.Context, id string, next model.JobStatus) (*model.Job, error)
	// RevertApproval steps an APPROVED job back to HASH_PENDING and nothing else.
	RevertApproval(ctx context.Context, id string) (*model.Job, error)
	MarkFailed(ctx context.Context, id string, reason string) (*model.Job, error)
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[model.JobStatus]int64, error)
}

type JobStore struct {
	db *gorm.DB
}

var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job model.Job) (*model.Job, error) {
	if job.Status == "" {
		job.Status = model.JobStatusCreated
	}
	if err := s.getDB(ctx).WithContext(ctx).Create(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).WithContext(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) ([]model.Job, error) {
	var jobs []model.Job
	tx := s.getDB(ctx).WithContext(ctx).Model(&jobs)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobStore) SetHash(ctx context.Context, id string, hash string) error {
	return s.updateColumn(ctx, id, "stem_hash", hash)
}

func (s *JobStore) SetCategory(ctx context.Context, id string, categoryID string) error {
	return s.updateColumn(ctx, id, "category_id", categoryID)
}

func (s *JobStore) SetWavePath(ctx context.Context, id string, path string) error {
	return s.updateColumn(ctx, id, "audio_wave_path", path)
}

func (s *JobStore) Transition(ctx context.Context, id string, next model.JobStatus) (*model.Job, error) {
	return s.transition(ctx, id, next, model.TransitionSources(next), nil)
}

func (s *JobStore) RevertApproval(ctx context.Context, id string) (*model.Job, error) {
	return s.transition(ctx, id, model.JobStatusHashPending, []model.JobStatus{model.JobStatusApproved}, nil)
}

func (s *JobStore) MarkFailed(ctx context.Context, id string, reason string) (*model.Job, error) {
	next := model.JobStatusFailed
	return s.transition(ctx, id, next, model.TransitionSources(next), map[string]any{"failure_reason": reason})
}

func (s *JobStore) Delete(ctx context.Context, id string) error {
	result := s.getDB(ctx).WithContext(ctx).Where("id = ?", id).Delete(&model.Job{})
	if result.Error != nil {
		return fmt.Errorf("deleting job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *JobStore) CountByStatus(ctx context.Context) (map[model.JobStatus]int64, error) {
	var rows []struct {
		Status model.JobStatus
		Total  int64
	}
	if err := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("counting jobs: %w", err)
	}

	counts := make(map[model.JobStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

func (s *JobStore) transition(ctx context.Context, id string, next model.JobStatus, sources []model.JobStatus, extra map[string]any) (*model.Job, error) {
	if len(sources) == 0 {
		return nil, ErrInvalidTransition
	}

	values := map[string]any{
		"status":     next,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		values[k] = v
	}

	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ? AND status IN ?", id, sources).
		Updates(values)
	if result.Error != nil {
		return nil, fmt.Errorf("updating job status: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Either the row is gone or its status is not a valid source for next.
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}

	return s.Get(ctx, id)
}

func (s *JobStore) updateColumn(ctx context.Context, id string, column string, value any) error {
	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{column: value, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("updating job %s: %w", column, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
