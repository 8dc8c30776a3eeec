package v1alpha1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	api "github.com/stemflow/stemflow/api/v1alpha1"
	"github.com/stemflow/stemflow/internal/auth"
	"github.com/stemflow/stemflow/internal/handlers/v1alpha1/mappers"
	"go.uber.org/zap"
)

func (h *ServiceHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	logger := zap.S().Named("job_handler").With("operation", "create_job")
	user := auth.MustHaveUser(r.Context())

	var form api.CreateJobRequest
	if err := render.DecodeJSON(r.Body, &form); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobSrv.CreateJob(r.Context(), user, form)
	if err != nil {
		logger.Errorw("failed to create job", "user_id", user.ID, "error", err)
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, mappers.JobToApi(*job))
}

func (h *ServiceHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())
	id := chi.URLParam(r, "id")

	job, err := h.jobSrv.GetJob(r.Context(), user, id)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	render.JSON(w, r, mappers.JobToApi(*job))
}

func (h *ServiceHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	jobs, err := h.jobSrv.ListJobs(r.Context(), user, r.URL.Query().Get("trackId"))
	if err != nil {
		zap.S().Named("job_handler").Errorw("failed to list jobs", "user_id", user.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	render.JSON(w, r, mappers.JobListToApi(jobs...))
}
