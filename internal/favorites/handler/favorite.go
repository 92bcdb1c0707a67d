package handler

import (
	"net/http"

	"freezefit/internal/favorites/service"
	"freezefit/pkg/auth"
	httputil "freezefit/pkg/http"
	"freezefit/pkg/logger"
	"freezefit/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type FavoriteHandler struct {
	service service.FavoriteService
	log     *logger.Logger
}

func NewFavoriteHandler(service service.FavoriteService, log *logger.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		service: service,
		log:     log,
	}
}

func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	favorites, total, err := h.service.List(r.Context(), p, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, favorites, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	instituteID, err := httputil.RequireParam(ps.ByName("institute_id"), "institute_id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Add", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.Add(r.Context(), p, instituteID); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Add", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	instituteID, err := httputil.RequireParam(ps.ByName("institute_id"), "institute_id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Remove", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.Remove(r.Context(), p, instituteID); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Remove", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *FavoriteHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/users/me/favorites", middleware.Require(h.List))
	router.PUT("/api/v1/users/me/favorites/:institute_id", middleware.Require(h.Add))
	router.DELETE("/api/v1/users/me/favorites/:institute_id", middleware.Require(h.Remove))
}
