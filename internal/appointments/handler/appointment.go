package handler

import (
	"net/http"

	"freezefit/internal/appointments/service"
	"freezefit/pkg/auth"
	httputil "freezefit/pkg/http"
	"freezefit/pkg/logger"
	"freezefit/pkg/middleware"
	"freezefit/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AppointmentHandler struct {
	service service.AppointmentService
	log     *logger.Logger
}

func NewAppointmentHandler(service service.AppointmentService, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		log:     log,
	}
}

func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	var req model.AppointmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Book", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	appointment, err := h.service.Book(r.Context(), p, &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Book", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, appointment); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *AppointmentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	id, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	appointment, err := h.service.GetByID(r.Context(), p, id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, appointment); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	filter, err := parseFilter(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListMine", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	appointments, total, err := h.service.ListMine(r.Context(), p, filter)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListMine", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, appointments, total, filter.Limit, filter.Offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *AppointmentHandler) ListForInstitute(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	instituteID, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListForInstitute", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListForInstitute", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	appointments, total, err := h.service.ListForInstitute(r.Context(), p, instituteID, filter)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListForInstitute", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, appointments, total, filter.Limit, filter.Offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListForInstitute", "operation", "WritePaginated", "error", err)
	}
}

func (h *AppointmentHandler) ChangeStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	id, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ChangeStatus", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var change model.StatusChange
	if err := httputil.DecodeJSON(r, &change); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ChangeStatus", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	appointment, err := h.service.ChangeStatus(r.Context(), p, id, &change)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ChangeStatus", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, appointment); err != nil {
		h.log.Error("failed to write success response", "handler", "ChangeStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	id, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reschedule", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var req model.RescheduleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reschedule", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	appointment, err := h.service.Reschedule(r.Context(), p, id, &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reschedule", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, appointment); err != nil {
		h.log.Error("failed to write success response", "handler", "Reschedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	instituteID, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Availability", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	query := r.URL.Query()
	date, err := httputil.RequireParam(query.Get("date"), "date")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Availability", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	availability, err := h.service.Availability(r.Context(), instituteID, query.Get("service_id"), date)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Availability", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, availability); err != nil {
		h.log.Error("failed to write success response", "handler", "Availability", "operation", "WriteSuccess", "error", err)
	}
}

func parseFilter(r *http.Request) (*model.AppointmentFilter, error) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		return nil, err
	}
	upcoming, err := httputil.QueryBool(r, "upcoming")
	if err != nil {
		return nil, err
	}
	from, err := httputil.QueryTime(r, "from")
	if err != nil {
		return nil, err
	}
	to, err := httputil.QueryTime(r, "to")
	if err != nil {
		return nil, err
	}

	return &model.AppointmentFilter{
		Status:   r.URL.Query().Get("status"),
		Upcoming: upcoming,
		From:     from,
		To:       to,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

func (h *AppointmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/appointments", middleware.Require(h.Book, auth.RoleCustomer))
	router.GET("/api/v1/appointments/:id", middleware.Require(h.GetByID))
	router.PATCH("/api/v1/appointments/:id/status", middleware.Require(h.ChangeStatus))
	router.PATCH("/api/v1/appointments/:id/reschedule", middleware.Require(h.Reschedule))
	router.GET("/api/v1/users/me/appointments", middleware.Require(h.ListMine))
	router.GET("/api/v1/institutes/:id/appointments", middleware.Require(h.ListForInstitute, auth.RoleProvider))
	router.GET("/api/v1/institutes/:id/availability", h.Availability)
}
