package handler

import (
	"net/http"

	"freezefit/internal/institutes/service"
	"freezefit/pkg/auth"
	httputil "freezefit/pkg/http"
	"freezefit/pkg/logger"
	"freezefit/pkg/middleware"
	"freezefit/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type InstituteHandler struct {
	service service.InstituteService
	log     *logger.Logger
}

func NewInstituteHandler(service service.InstituteService, log *logger.Logger) *InstituteHandler {
	return &InstituteHandler{
		service: service,
		log:     log,
	}
}

func (h *InstituteHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	var institute model.Institute
	if err := httputil.DecodeJSON(r, &institute); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), p, &institute); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, institute); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *InstituteHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	institute, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, institute); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *InstituteHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	search, err := parseSearch(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Search", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	institutes, total, err := h.service.Search(r.Context(), search)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Search", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, institutes, total, search.Limit, search.Offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Search", "operation", "WritePaginated", "error", err)
	}
}

func (h *InstituteHandler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Mine", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	institutes, total, err := h.service.GetByOwner(r.Context(), p.UserID, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Mine", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, institutes, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Mine", "operation", "WritePaginated", "error", err)
	}
}

func (h *InstituteHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	id, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var updates model.InstituteUpdate
	if err := httputil.DecodeJSON(r, &updates); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	institute, err := h.service.Update(r.Context(), p, id, &updates)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, institute); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *InstituteHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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

func parseSearch(r *http.Request) (*model.InstituteSearch, error) {
	query := r.URL.Query()
	search := &model.InstituteSearch{
		Query:   query.Get("q"),
		City:    query.Get("city"),
		Amenity: query.Get("amenity"),
		Sort:    query.Get("sort"),
	}

	var err error
	if search.MinRating, err = httputil.QueryFloat(r, "min_rating"); err != nil {
		return nil, err
	}
	if search.Latitude, err = httputil.QueryFloat(r, "lat"); err != nil {
		return nil, err
	}
	if search.Longitude, err = httputil.QueryFloat(r, "lng"); err != nil {
		return nil, err
	}
	if search.RadiusKM, err = httputil.QueryFloat(r, "radius_km"); err != nil {
		return nil, err
	}
	if search.Limit, search.Offset, err = httputil.ExtractLimitOffset(r); err != nil {
		return nil, err
	}
	return search, nil
}

func (h *InstituteHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/institutes", h.Search)
	router.POST("/api/v1/institutes", middleware.Require(h.Create, auth.RoleProvider))
	router.GET("/api/v1/institutes/:id", h.GetByID)
	router.PATCH("/api/v1/institutes/:id", middleware.Require(h.Update, auth.RoleProvider))
	router.DELETE("/api/v1/institutes/:id", middleware.Require(h.Delete, auth.RoleProvider))
	router.GET("/api/v1/providers/me/institutes", middleware.Require(h.Mine, auth.RoleProvider))
}
