package handler

import (
	"net/http"

	"freezefit/internal/businesshours/service"
	"freezefit/pkg/auth"
	httputil "freezefit/pkg/http"
	"freezefit/pkg/logger"
	"freezefit/pkg/middleware"
	"freezefit/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type HoursHandler struct {
	service service.HoursService
	log     *logger.Logger
}

func NewHoursHandler(service service.HoursService, log *logger.Logger) *HoursHandler {
	return &HoursHandler{
		service: service,
		log:     log,
	}
}

func (h *HoursHandler) GetWeek(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	instituteID, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetWeek", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	week, err := h.service.GetWeek(r.Context(), instituteID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetWeek", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, week); err != nil {
		h.log.Error("failed to write success response", "handler", "GetWeek", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HoursHandler) ReplaceWeek(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	instituteID, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ReplaceWeek", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var week model.WeekHours
	if err := httputil.DecodeJSON(r, &week); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ReplaceWeek", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	saved, err := h.service.ReplaceWeek(r.Context(), p, instituteID, &week)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ReplaceWeek", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, saved); err != nil {
		h.log.Error("failed to write success response", "handler", "ReplaceWeek", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HoursHandler) ListClosures(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	instituteID, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListClosures", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	closures, err := h.service.ListClosures(r.Context(), instituteID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListClosures", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, closures); err != nil {
		h.log.Error("failed to write success response", "handler", "ListClosures", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HoursHandler) CreateClosure(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	instituteID, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CreateClosure", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var closure model.Closure
	if err := httputil.DecodeJSON(r, &closure); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CreateClosure", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.CreateClosure(r.Context(), p, instituteID, &closure); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CreateClosure", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, closure); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateClosure", "operation", "WriteCreated", "error", err)
	}
}

func (h *HoursHandler) DeleteClosure(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	id, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "DeleteClosure", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.DeleteClosure(r.Context(), p, id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "DeleteClosure", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *HoursHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/institutes/:id/hours", h.GetWeek)
	router.PUT("/api/v1/institutes/:id/hours", middleware.Require(h.ReplaceWeek, auth.RoleProvider))
	router.GET("/api/v1/institutes/:id/closures", h.ListClosures)
	router.POST("/api/v1/institutes/:id/closures", middleware.Require(h.CreateClosure, auth.RoleProvider))
	router.DELETE("/api/v1/closures/:id", middleware.Require(h.DeleteClosure, auth.RoleProvider))
}
