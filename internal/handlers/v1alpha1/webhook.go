package v1alpha1

import (
	"net/http"

	"github.com/go-chi/render"
	api "github.com/stemflow/stemflow/api/v1alpha1"
	"go.uber.org/zap"
)

// decodeWebhook reads and validates a callback body. It writes the 400 itself.
func (h *ServiceHandler) decodeWebhook(w http.ResponseWriter, r *http.Request, form any) bool {
	if err := render.DecodeJSON(r.Body, form); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return false
	}
	if err := h.validator.Struct(form); err != nil {
		zap.S().Named("webhook_handler").Warnw("rejected callback", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *ServiceHandler) HashCheck(w http.ResponseWriter, r *http.Request) {
	var form api.HashCheckRequest
	if !h.decodeWebhook(w, r, &form) {
		return
	}

	resp, err := h.webhookSrv.HashCheck(r.Context(), form)
	if err != nil {
		zap.S().Named("webhook_handler").Errorw("hash check failed", "job_id", form.StemID, "error", err)
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	render.JSON(w, r, resp)
}

func (h *ServiceHandler) Completion(w http.ResponseWriter, r *http.Request) {
	var form api.CompletionRequest
	if !h.decodeWebhook(w, r, &form) {
		return
	}

	resp, err := h.webhookSrv.Completion(r.Context(), form)
	if err != nil {
		zap.S().Named("webhook_handler").Errorw("completion failed", "job_id", form.StemID, "status", form.Status, "error", err)
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	render.JSON(w, r, resp)
}

func (h *ServiceHandler) Progress(w http.ResponseWriter, r *http.Request) {
	var form api.ProgressRequest
	if !h.decodeWebhook(w, r, &form) {
		return
	}

	resp, err := h.webhookSrv.Progress(r.Context(), form)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	render.JSON(w, r, resp)
}

func (h *ServiceHandler) MixingComplete(w http.ResponseWriter, r *http.Request) {
	var form api.MixingCompleteRequest
	if !h.decodeWebhook(w, r, &form) {
		return
	}

	resp, err := h.webhookSrv.MixingComplete(r.Context(), form)
	if err != nil {
		zap.S().Named("webhook_handler").Errorw("mixing complete failed", "stage_id", form.StageID, "error", err)
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	render.JSON(w, r, resp)
}
