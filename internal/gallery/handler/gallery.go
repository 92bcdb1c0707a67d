package handler

import (
	"net/http"

	"freezefit/internal/gallery/service"
	"freezefit/pkg/auth"
	httputil "freezefit/pkg/http"
	"freezefit/pkg/logger"
	"freezefit/pkg/middleware"
	"freezefit/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type GalleryHandler struct {
	service service.GalleryService
	log     *logger.Logger
}

func NewGalleryHandler(service service.GalleryService, log *logger.Logger) *GalleryHandler {
	return &GalleryHandler{
		service: service,
		log:     log,
	}
}

func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	instituteID, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	images, err := h.service.List(r.Context(), instituteID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, images); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *GalleryHandler) Add(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	instituteID, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Add", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var image model.GalleryImage
	if err := httputil.DecodeJSON(r, &image); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Add", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.Add(r.Context(), p, instituteID, &image); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Add", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, image); err != nil {
		h.log.Error("failed to write created response", "handler", "Add", "operation", "WriteCreated", "error", err)
	}
}

func (h *GalleryHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	id, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Delete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.Delete(r.Context(), p, id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Delete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *GalleryHandler) Reorder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	instituteID, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reorder", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var order model.GalleryOrder
	if err := httputil.DecodeJSON(r, &order); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reorder", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	images, err := h.service.Reorder(r.Context(), p, instituteID, &order)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reorder", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, images); err != nil {
		h.log.Error("failed to write success response", "handler", "Reorder", "operation", "WriteSuccess", "error", err)
	}
}

func (h *GalleryHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/institutes/:id/gallery", h.List)
	router.POST("/api/v1/institutes/:id/gallery", middleware.Require(h.Add, auth.RoleProvider))
	router.PUT("/api/v1/institutes/:id/gallery/order", middleware.Require(h.Reorder, auth.RoleProvider))
	router.DELETE("/api/v1/gallery/:id", middleware.Require(h.Delete, auth.RoleProvider))
}
