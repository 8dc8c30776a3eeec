package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	api "github.com/stemflow/stemflow/api/v1alpha1"
	"github.com/stemflow/stemflow/internal/realtime"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/internal/store/model"
	"github.com/stemflow/stemflow/internal/tasks"
	"github.com/stemflow/stemflow/pkg/metrics"
	"go.uber.org/zap"
)

const (
	hashCheckEndpoint      = "hash-check"
	completionEndpoint     = "completion"
	progressEndpoint       = "progress"
	mixingCompleteEndpoint = "mixing-complete"

	outcomeIgnored          = "ignored"
	outcomeAlreadyProcessed = "already_processed"
	outcomeDuplicate        = "duplicate"
	outcomeApproved         = "approved"
	outcomeCompleted        = "completed"
	outcomeFailed           = "failed"
	outcomeError            = "error"

	analysisStageTag = "audio_analysis"
	DefaultNumPeaks  = 4000
)

// WebhookService consumes worker callbacks and drives the job state machine.
// Every status change is a compare-and-set on the job row, so concurrent
// deliveries of one callback produce side effects once.
type WebhookService struct {
	store     store.Store
	producer  TaskProducer
	notifier  realtime.Notifier
	finalizer *Finalizer
	numPeaks  int
	log       *zap.SugaredLogger
}

type WebhookOption func(w *WebhookService)

func WithNumPeaks(n int) WebhookOption {
	return func(w *WebhookService) {
		if n > 0 {
			w.numPeaks = n
		}
	}
}

func NewWebhookService(s store.Store, producer TaskProducer, notifier realtime.Notifier, opts ...WebhookOption) *WebhookService {
	w := &WebhookService{
		store:     s,
		producer:  producer,
		notifier:  notifier,
		finalizer: NewFinalizer(s),
		numPeaks:  DefaultNumPeaks,
		log:       zap.S().Named("webhook_service"),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *WebhookService) HashCheck(ctx context.Context, req api.HashCheckRequest) (resp api.HashCheckResponse, err error) {
	resp = api.HashCheckResponse{StemID: req.StemID, AudioHash: req.AudioHash}
	owner, trackID, fileName := req.UserID, req.TrackID, req.OriginalFilename

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hash check panicked: %v", r)
		}
		if err != nil {
			metrics.IncreaseWebhookOutcomeMetric(hashCheckEndpoint, outcomeError)
			w.notifyError(owner, req.StemID, trackID, fileName, err.Error(), "hash_check")
		}
	}()

	job, err := w.store.Job().Get(ctx, req.StemID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			w.log.Infow("hash check for unknown job, ignoring", "job_id", req.StemID)
			metrics.IncreaseWebhookOutcomeMetric(hashCheckEndpoint, outcomeIgnored)
			resp.Message = "Job not found"
			return resp, nil
		}
		return resp, err
	}
	owner, trackID, fileName = job.UserID, job.TrackID, displayName(req.OriginalFilename, job.FileName)

	if !job.Status.AwaitingHash() {
		return w.alreadyProcessed(resp, job), nil
	}

	if err := w.store.Job().SetHash(ctx, job.ID, req.AudioHash); err != nil {
		return resp, err
	}

	duplicate, err := w.store.Stem().ExistsByHash(ctx, job.TrackID, job.StageID, req.AudioHash)
	if err != nil {
		return resp, err
	}

	if duplicate {
		return w.discardDuplicate(ctx, resp, job, req.AudioHash)
	}
	return w.approve(ctx, resp, job, req.AudioHash, fileName)
}

// discardDuplicate runs enqueue, delete, notify in that order. The row is disposable,
// so a lost notification after the delete is acceptable.
func (w *WebhookService) discardDuplicate(ctx context.Context, resp api.HashCheckResponse, job *model.Job, hash string) (api.HashCheckResponse, error) {
	if _, err := w.store.Job().Transition(ctx, job.ID, model.JobStatusDuplicate); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrRecordNotFound) {
			return w.alreadyProcessed(resp, job), nil
		}
		return resp, err
	}

	if err := w.producer.Enqueue(ctx, tasks.DeleteDuplicateArgs{
		UserID:        job.UserID,
		TrackID:       job.TrackID,
		StageID:       job.StageID,
		StemID:        job.ID,
		FilePath:      job.FilePath,
		DuplicateHash: hash,
	}); err != nil {
		w.log.Warnw("failed to enqueue duplicate deletion", "job_id", job.ID, "error", err)
	}

	if err := w.store.Job().Delete(ctx, job.ID); err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return resp, err
	}

	w.notifier.SendToUser(job.UserID, realtime.EventFileDuplicate, realtime.Payload{
		"trackId":       job.TrackID,
		"stageId":       job.StageID,
		"filename":      job.FileName,
		"originalPath":  job.FilePath,
		"duplicateHash": hash,
	})

	metrics.IncreaseWebhookOutcomeMetric(hashCheckEndpoint, outcomeDuplicate)
	w.log.Infow("duplicate stem discarded", "job_id", job.ID, "track_id", job.TrackID, "stage_id", job.StageID)

	resp.Success = true
	resp.IsDuplicate = true
	resp.Message = "Duplicate file detected"
	return resp, nil
}

func (w *WebhookService) approve(ctx context.Context, resp api.HashCheckResponse, job *model.Job, hash, fileName string) (api.HashCheckResponse, error) {
	if _, err := w.store.Job().Transition(ctx, job.ID, model.JobStatusApproved); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrRecordNotFound) {
			return w.alreadyProcessed(resp, job), nil
		}
		return resp, err
	}

	if category, err := w.ensureCategory(ctx, job.TrackID, categoryName(fileName)); err != nil {
		w.log.Warnw("failed to create category, continuing with analysis", "job_id", job.ID, "track_id", job.TrackID, "error", err)
	} else if err := w.store.Job().SetCategory(ctx, job.ID, category.ID); err != nil {
		w.log.Warnw("failed to record category on job", "job_id", job.ID, "category_id", category.ID, "error", err)
	}

	if err := w.producer.Enqueue(ctx, tasks.AnalyzeAudioArgs{
		UserID:           job.UserID,
		TrackID:          job.TrackID,
		StageID:          job.StageID,
		StemID:           job.ID,
		FilePath:         job.FilePath,
		StemHash:         hash,
		OriginalFilename: fileName,
		NumPeaks:         w.numPeaks,
	}); err != nil {
		// step back so a redelivered hash check can try again
		if _, rerr := w.store.Job().RevertApproval(context.Background(), job.ID); rerr != nil {
			w.log.Errorw("failed to revert job after enqueue failure", "job_id", job.ID, "error", rerr)
		}
		return resp, NewErrEnqueueFailed(err)
	}

	if _, err := w.store.Job().Transition(ctx, job.ID, model.JobStatusAnalysisPending); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrRecordNotFound) {
			if w.analysisReported(ctx, job.ID) {
				w.log.Infow("analysis result arrived before approval was recorded", "job_id", job.ID)
				return w.alreadyProcessed(resp, job), nil
			}
		}
		return resp, err
	}

	w.notifier.SendToUser(job.UserID, realtime.EventProcessingApproved, realtime.Payload{
		"trackId":      job.TrackID,
		"stageId":      job.StageID,
		"filename":     fileName,
		"hash":         hash,
		"originalPath": job.FilePath,
	})

	metrics.IncreaseWebhookOutcomeMetric(hashCheckEndpoint, outcomeApproved)
	w.log.Infow("stem approved for analysis", "job_id", job.ID, "track_id", job.TrackID)

	resp.Success = true
	resp.Message = "File approved for processing"
	return resp, nil
}

// analysisReported is true once a completion for the job has been handled,
// which can happen between the analyze-audio enqueue and the analysis-pending write.
func (w *WebhookService) analysisReported(ctx context.Context, jobID string) bool {
	current, err := w.store.Job().Get(ctx, jobID)
	if err != nil {
		return errors.Is(err, store.ErrRecordNotFound)
	}
	return current.Status == model.JobStatusFailed || current.Status == model.JobStatusFinalized
}

func (w *WebhookService) ensureCategory(ctx context.Context, trackID, name string) (*model.Category, error) {
	category, err := w.store.Category().Create(ctx, model.Category{
		ID:      uuid.NewString(),
		Name:    name,
		TrackID: trackID,
	})
	if errors.Is(err, store.ErrDuplicateKey) {
		return w.store.Category().GetByName(ctx, trackID, name)
	}
	return category, err
}

func (w *WebhookService) alreadyProcessed(resp api.HashCheckResponse, job *model.Job) api.HashCheckResponse {
	metrics.IncreaseWebhookOutcomeMetric(hashCheckEndpoint, outcomeAlreadyProcessed)
	w.log.Infow("hash check already processed", "job_id", job.ID, "status", job.Status)
	resp.Success = true
	resp.Message = "already processed"
	return resp
}

func (w *WebhookService) Completion(ctx context.Context, req api.CompletionRequest) (resp api.CompletionResponse, err error) {
	resp = api.CompletionResponse{StemID: req.StemID, ProcessedStatus: req.Status}
	owner, trackID, fileName := req.UserID, req.TrackID, stringOrEmpty(req.OriginalFilename)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completion panicked: %v", r)
		}
		if err != nil {
			metrics.IncreaseWebhookOutcomeMetric(completionEndpoint, outcomeError)
			var invalid *ErrInvalidTransition
			if !errors.As(err, &invalid) {
				w.notifyError(owner, req.StemID, trackID, fileName, err.Error(), analysisStageTag)
			}
		}
	}()

	job, err := w.store.Job().Get(ctx, req.StemID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return w.ignoredCompletion(resp), nil
		}
		return resp, err
	}
	owner, trackID, fileName = job.UserID, job.TrackID, displayName(fileName, job.FileName)

	if !api.IsSuccessStatus(req.Status) {
		reason := failureMessage(req.Result)
		if _, err := w.store.Job().MarkFailed(ctx, job.ID, reason); err != nil {
			switch {
			case errors.Is(err, store.ErrRecordNotFound):
				return w.ignoredCompletion(resp), nil
			case errors.Is(err, store.ErrInvalidTransition) && w.failedAlready(ctx, job.ID):
				w.log.Infow("failure already recorded", "job_id", job.ID)
			case errors.Is(err, store.ErrInvalidTransition):
				return resp, NewErrInvalidTransition(job.ID, string(model.JobStatusFailed))
			default:
				return resp, err
			}
		}
		w.notifier.SendToUser(owner, realtime.EventFileProcessingError, realtime.Payload{
			"stemId":   job.ID,
			"trackId":  trackID,
			"filename": fileName,
			"error":    reason,
			"stage":    analysisStageTag,
		})
		metrics.IncreaseWebhookOutcomeMetric(completionEndpoint, outcomeFailed)
		w.log.Warnw("audio analysis failed", "job_id", job.ID, "reason", reason)

		resp.Status = "success"
		resp.Message = "Failure recorded"
		return resp, nil
	}

	// Persist the waveform first so a retry of this callback is safe even if promotion fails.
	if req.AudioWavePath != nil && *req.AudioWavePath != "" {
		if err := w.store.Job().SetWavePath(ctx, job.ID, *req.AudioWavePath); err != nil {
			return resp, err
		}
	}

	stem, err := w.finalizer.Finalize(ctx, job.ID)
	if err != nil {
		var invalid *ErrInvalidTransition
		if errors.As(err, &invalid) && w.finalizedElsewhere(ctx, job.ID) {
			metrics.IncreaseWebhookOutcomeMetric(completionEndpoint, outcomeAlreadyProcessed)
			resp.Status = "success"
			resp.Message = "already processed"
			return resp, nil
		}
		return resp, err
	}
	if stem == nil {
		w.log.Warnw("nothing to finalize", "job_id", job.ID)
		return w.ignoredCompletion(resp), nil
	}

	payload := realtime.Payload{
		"stemId":   stem.ID,
		"trackId":  trackID,
		"filename": fileName,
		"result":   req.Result,
	}
	if req.ProcessingTime != nil {
		payload["duration"] = *req.ProcessingTime
	}
	w.notifier.SendToUser(owner, realtime.EventFileProcessingCompleted, payload)
	metrics.IncreaseWebhookOutcomeMetric(completionEndpoint, outcomeCompleted)

	resp.Status = "success"
	resp.Message = "Processing completed"
	return resp, nil
}

// finalizedElsewhere tells a redelivered completion apart from one that raced
// ahead of the analysis-pending write. Only the latter should be retried.
func (w *WebhookService) finalizedElsewhere(ctx context.Context, jobID string) bool {
	current, err := w.store.Job().Get(ctx, jobID)
	if err != nil {
		return errors.Is(err, store.ErrRecordNotFound)
	}
	return current.Status == model.JobStatusFinalized
}

func (w *WebhookService) failedAlready(ctx context.Context, jobID string) bool {
	current, err := w.store.Job().Get(ctx, jobID)
	return err == nil && current.Status == model.JobStatusFailed
}

func (w *WebhookService) ignoredCompletion(resp api.CompletionResponse) api.CompletionResponse {
	w.log.Infow("completion for unknown job, ignoring", "job_id", resp.StemID)
	metrics.IncreaseWebhookOutcomeMetric(completionEndpoint, outcomeIgnored)
	resp.Status = outcomeIgnored
	resp.Message = "Job not found"
	resp.ProcessedStatus = outcomeIgnored
	return resp
}

func (w *WebhookService) Progress(ctx context.Context, req api.ProgressRequest) (api.ProgressResponse, error) {
	resp := api.ProgressResponse{StemID: req.StemID}

	job, err := w.store.Job().Get(ctx, req.StemID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			metrics.IncreaseWebhookOutcomeMetric(progressEndpoint, outcomeIgnored)
			resp.Status = outcomeIgnored
			return resp, nil
		}
		return resp, err
	}

	w.notifier.SendToUser(job.UserID, realtime.EventFileProcessingProgress, realtime.Payload{
		"stemId":   job.ID,
		"trackId":  job.TrackID,
		"filename": job.FileName,
		"progress": req.Progress,
		"stage":    req.Stage,
		"message":  req.Message,
	})
	metrics.IncreaseWebhookOutcomeMetric(progressEndpoint, "delivered")

	resp.Status = "success"
	return resp, nil
}

func (w *WebhookService) MixingComplete(ctx context.Context, req api.MixingCompleteRequest) (api.MixingCompleteResponse, error) {
	resp := api.MixingCompleteResponse{StageID: req.StageID, StemCount: req.StemCount}

	if _, err := w.store.Stage().Get(ctx, req.StageID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			metrics.IncreaseWebhookOutcomeMetric(mixingCompleteEndpoint, outcomeIgnored)
			resp.Status = outcomeIgnored
			resp.Message = "Stage not found"
			return resp, nil
		}
		return resp, err
	}

	room := realtime.StageRoom(req.StageID)
	success := api.IsSuccessStatus(req.Status)
	if success && strings.TrimSpace(req.MixedFilePath) == "" {
		metrics.IncreaseWebhookOutcomeMetric(mixingCompleteEndpoint, outcomeError)
		return resp, NewErrBadRequest("mixed_file_path is required when the mixdown succeeded")
	}
	if !success {
		w.notifier.SendToRoom(room, realtime.EventStemJobFailed, realtime.Payload{
			"stageId": req.StageID,
			"taskId":  req.TaskID,
			"status":  req.Status,
		})
		metrics.IncreaseWebhookOutcomeMetric(mixingCompleteEndpoint, outcomeFailed)
		resp.Status = "success"
		resp.Message = "Mixing failure recorded"
		return resp, nil
	}

	if err := w.store.Stage().SetMixPath(ctx, req.StageID, req.MixedFilePath); err != nil {
		return resp, err
	}

	w.notifier.SendToRoom(room, realtime.EventStemJobCompleted, realtime.Payload{
		"stageId":       req.StageID,
		"taskId":        req.TaskID,
		"mixedFilePath": req.MixedFilePath,
	})
	w.notifier.SendToRoom(room, realtime.EventAllStemJobsCompleted, realtime.Payload{
		"stageId":   req.StageID,
		"stemCount": req.StemCount,
	})
	metrics.IncreaseWebhookOutcomeMetric(mixingCompleteEndpoint, outcomeCompleted)
	w.log.Infow("mixdown stored", "stage_id", req.StageID, "stem_count", req.StemCount)

	resp.Status = "success"
	resp.Message = "Mixing completed"
	resp.MixedFilePath = req.MixedFilePath
	return resp, nil
}

func (w *WebhookService) notifyError(userID, jobID, trackID, fileName, message, stage string) {
	if userID == "" {
		return
	}
	w.notifier.SendToUser(userID, realtime.EventFileProcessingError, realtime.Payload{
		"stemId":   jobID,
		"trackId":  trackID,
		"filename": fileName,
		"error":    message,
		"stage":    stage,
	})
}

// categoryName strips the extension: "Kick Drum.wav" -> "Kick Drum".
func categoryName(fileName string) string {
	base := filepath.Base(fileName)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		return base
	}
	return name
}

func displayName(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// failureMessage digs the worker error out of the result payload.
func failureMessage(result json.RawMessage) string {
	const fallback = "Audio analysis failed"
	if len(result) == 0 {
		return fallback
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(result, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}

	var s string
	if err := json.Unmarshal(result, &s); err == nil && s != "" {
		return s
	}
	return fallback
}
