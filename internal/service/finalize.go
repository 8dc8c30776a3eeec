package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/internal/store/model"
	"go.uber.org/zap"
)

// Finalizer promotes an analysed job into a working stem and a version stem.
type Finalizer struct {
	store store.Store
	log   *zap.SugaredLogger
}

func NewFinalizer(s store.Store) *Finalizer {
	return &Finalizer{store: s, log: zap.S().Named("finalizer")}
}

// Finalize returns nil without error when the job no longer exists.
// The job row is deleted only after both asset writes were attempted.
func (f *Finalizer) Finalize(ctx context.Context, jobID string) (*model.Stem, error) {
	job, err := f.store.Job().Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if job.CategoryID == nil {
		return nil, NewErrCategoryMissing(jobID)
	}

	stem, err := f.claimAndCreateStem(ctx, jobID)
	if err != nil || stem == nil {
		return stem, err
	}

	if err := f.createVersion(ctx, *stem); err != nil {
		f.log.Errorw("failed to create version stem, keeping working stem", "job_id", jobID, "stem_id", stem.ID, "error", err)
	}

	if err := f.store.Job().Delete(ctx, jobID); err != nil {
		f.log.Warnw("failed to delete finalized job", "job_id", jobID, "error", err)
	}

	f.log.Infow("job finalized", "job_id", jobID, "stem_id", stem.ID)
	return stem, nil
}

// claimAndCreateStem moves the job to FINALIZED and writes the working stem in
// one transaction, so a failed insert leaves the job claimable again.
func (f *Finalizer) claimAndCreateStem(ctx context.Context, jobID string) (*model.Stem, error) {
	txCtx, err := f.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}

	claimed, err := f.store.Job().Transition(txCtx, jobID, model.JobStatusFinalized)
	if err != nil {
		_, _ = store.Rollback(txCtx)
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			return nil, nil
		case errors.Is(err, store.ErrInvalidTransition):
			return nil, NewErrInvalidTransition(jobID, string(model.JobStatusFinalized))
		default:
			return nil, err
		}
	}

	stem, err := f.store.Stem().Create(txCtx, model.NewStemFromJob(uuid.NewString(), *claimed))
	if err != nil {
		_, _ = store.Rollback(txCtx)
		return nil, err
	}

	if _, err := store.Commit(txCtx); err != nil {
		return nil, err
	}
	return stem, nil
}

func (f *Finalizer) createVersion(ctx context.Context, stem model.Stem) error {
	version, err := f.store.Stem().NextVersion(ctx, stem.StageID, stem.CategoryID)
	if err != nil {
		return err
	}
	_, err = f.store.Stem().CreateVersion(ctx, model.NewVersionStem(uuid.NewString(), stem, version))
	return err
}
