package jobs

import (
	"context"
	"errors"
	"net/http"

	apperrors "freezefit/pkg/errors"
	httputil "freezefit/pkg/http"
	"freezefit/pkg/logger"
	"freezefit/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type runner interface {
	Run(ctx context.Context, name string) (int, error)
}

// TriggerHandler exposes the jobs over HTTP for deployments without a
// long-running scheduler. Requests must carry a body signature made with
// the internal secret.
type TriggerHandler struct {
	jobs   runner
	secret string
	log    *logger.Logger
}

type RunResult struct {
	Job       string `json:"job"`
	Processed int    `json:"processed"`
}

func NewTriggerHandler(jobs runner, secret string, log *logger.Logger) *TriggerHandler {
	return &TriggerHandler{jobs: jobs, secret: secret, log: log}
}

func (h *TriggerHandler) Run(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name, err := httputil.RequireParam(ps.ByName("name"), "name")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Run", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	processed, err := h.jobs.Run(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownJob):
			err = apperrors.NotFoundWithID("Job", name)
		case errors.Is(err, ErrJobRunning):
			err = apperrors.Conflict("Job " + name + " is already running")
		default:
			err = apperrors.Internal("Job failed", err)
		}
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Run", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, RunResult{Job: name, Processed: processed}); err != nil {
		h.log.Error("failed to write success response", "handler", "Run", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TriggerHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/internal/jobs/:name", middleware.SignatureVerification(h.secret, h.log, h.Run))
}
