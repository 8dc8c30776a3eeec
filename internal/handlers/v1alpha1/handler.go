package v1alpha1

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	api "github.com/stemflow/stemflow/api/v1alpha1"
	"github.com/stemflow/stemflow/internal/handlers/validator"
	"github.com/stemflow/stemflow/internal/service"
)

const webhookSecretHeader = "X-Webhook-Secret"

type ServiceHandler struct {
	jobSrv        *service.JobService
	webhookSrv    *service.WebhookService
	validator     *validator.Validator
	webhookSecret string
}

func NewServiceHandler(jobService *service.JobService, webhookService *service.WebhookService, webhookSecret string) *ServiceHandler {
	v := validator.NewValidator()
	v.Register(validator.NewJobValidationRules()...)

	return &ServiceHandler{
		jobSrv:        jobService,
		webhookSrv:    webhookService,
		validator:     v,
		webhookSecret: webhookSecret,
	}
}

// RegisterJobRoutes mounts the browser facing routes. authn must put the caller in the request context.
func (h *ServiceHandler) RegisterJobRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Use(authn)
		r.Post("/", h.CreateJob)
		r.Get("/", h.ListJobs)
		r.Get("/{id}", h.GetJob)
	})
}

// RegisterWebhookRoutes mounts the worker callbacks.
func (h *ServiceHandler) RegisterWebhookRoutes(r chi.Router) {
	r.Route("/webhook", func(r chi.Router) {
		r.Use(h.requireWebhookSecret)
		r.Post("/hash-check", h.HashCheck)
		r.Post("/completion", h.Completion)
		r.Post("/progress", h.Progress)
		r.Post("/mixing-complete", h.MixingComplete)
	})
}

// requireWebhookSecret is a no-op when no secret is configured.
func (h *ServiceHandler) requireWebhookSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.webhookSecret != "" {
			got := r.Header.Get(webhookSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
				writeError(w, r, http.StatusUnauthorized, "invalid webhook secret")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, api.Error{Message: message})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch err.(type) {
	case *service.ErrResourceNotFound:
		return http.StatusNotFound
	case *service.ErrObjectMissing, *service.ErrBadRequest, *validator.ErrInvalidRequest:
		return http.StatusBadRequest
	case *service.ErrInvalidTransition, *service.ErrInvariantViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
