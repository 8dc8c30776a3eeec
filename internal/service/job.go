package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	api "github.com/stemflow/stemflow/api/v1alpha1"
	"github.com/stemflow/stemflow/internal/realtime"
	"github.com/stemflow/stemflow/internal/service/mappers"
	"github.com/stemflow/stemflow/internal/storage"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/internal/store/model"
	"github.com/stemflow/stemflow/internal/tasks"
	"go.uber.org/zap"
)

type JobService struct {
	store    store.Store
	producer TaskProducer
	objects  storage.ObjectStore
	notifier realtime.Notifier
	log      *zap.SugaredLogger
}

func NewJobService(s store.Store, producer TaskProducer, objects storage.ObjectStore, notifier realtime.Notifier) *JobService {
	return &JobService{
		store:    s,
		producer: producer,
		objects:  objects,
		notifier: notifier,
		log:      zap.S().Named("job_service"),
	}
}

// CreateJob records an uploaded file and asks the worker to hash it. A failed
// enqueue removes the row again since nothing else would ever advance it.
func (s *JobService) CreateJob(ctx context.Context, user model.User, req api.CreateJobRequest) (*model.Job, error) {
	exists, err := s.objects.Exists(ctx, req.FilePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, NewErrObjectMissing(req.FilePath)
	}

	job, err := s.store.Job().Create(ctx, mappers.JobFromApi(uuid.NewString(), user, req))
	if err != nil {
		return nil, err
	}

	if err := s.producer.Enqueue(ctx, tasks.GenerateHashArgs{
		UserID:           job.UserID,
		TrackID:          job.TrackID,
		StageID:          job.StageID,
		StemID:           job.ID,
		FilePath:         job.FilePath,
		OriginalFilename: job.FileName,
	}); err != nil {
		if derr := s.store.Job().Delete(context.Background(), job.ID); derr != nil {
			s.log.Errorw("failed to remove job after enqueue failure", "job_id", job.ID, "error", derr)
		}
		return nil, NewErrEnqueueFailed(err)
	}

	updated, err := s.store.Job().Transition(ctx, job.ID, model.JobStatusHashPending)
	switch {
	case err == nil:
		job = updated
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrRecordNotFound):
		// the worker answered before we got here
		s.log.Debugw("job moved on before hash pending was recorded", "job_id", job.ID)
		if current, gerr := s.store.Job().Get(ctx, job.ID); gerr == nil {
			job = current
		}
	default:
		return nil, err
	}

	s.notifier.JoinRoom(user.ID, realtime.TrackRoom(job.TrackID))
	s.log.Infow("job created", "job_id", job.ID, "user_id", user.ID, "track_id", job.TrackID, "stage_id", job.StageID)

	return job, nil
}

// GetJob returns the job to its owner. Other users get a not found.
func (s *JobService) GetJob(ctx context.Context, user model.User, id string) (*model.Job, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}
	if job.UserID != user.ID {
		return nil, NewErrJobNotFound(id)
	}
	return job, nil
}

func (s *JobService) ListJobs(ctx context.Context, user model.User, trackID string) ([]model.Job, error) {
	filter := store.NewJobQueryFilter().ByUserID(user.ID)
	if trackID != "" {
		filter = filter.ByTrackID(trackID)
	}
	return s.store.Job().List(ctx, filter, store.NewJobQueryOptions().WithSortOrder(store.SortByCreatedTime))
}
