package handler

import (
	"net/http"

	"freezefit/internal/messages/service"
	"freezefit/pkg/auth"
	httputil "freezefit/pkg/http"
	"freezefit/pkg/logger"
	"freezefit/pkg/middleware"
	"freezefit/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type MessageHandler struct {
	service service.MessageService
	log     *logger.Logger
}

func NewMessageHandler(service service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: service,
		log:     log,
	}
}

func (h *MessageHandler) SendToInstitute(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	instituteID, err := httputil.RequireParam(ps.ByName("id"), "id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "SendToInstitute", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var req model.MessageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "SendToInstitute", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	msg, err := h.service.SendToInstitute(r.Context(), p, instituteID, &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "SendToInstitute", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, msg); err != nil {
		h.log.Error("failed to write created response", "handler", "SendToInstitute", "operation", "WriteCreated", "error", err)
	}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	instituteID, err := httputil.RequireParam(ps.ByName("institute_id"), "institute_id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Send", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	customerID, err := httputil.RequireParam(ps.ByName("customer_id"), "customer_id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Send", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var req model.MessageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Send", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	msg, err := h.service.Send(r.Context(), p, instituteID, customerID, &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Send", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, msg); err != nil {
		h.log.Error("failed to write created response", "handler", "Send", "operation", "WriteCreated", "error", err)
	}
}

func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	instituteID, err := httputil.RequireParam(ps.ByName("institute_id"), "institute_id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Conversation", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	customerID, err := httputil.RequireParam(ps.ByName("customer_id"), "customer_id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Conversation", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Conversation", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	messages, total, err := h.service.Conversation(r.Context(), p, instituteID, customerID, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Conversation", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, messages, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Conversation", "operation", "WritePaginated", "error", err)
	}
}

func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	conversations, err := h.service.Conversations(r.Context(), p)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Conversations", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, conversations); err != nil {
		h.log.Error("failed to write success response", "handler", "Conversations", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	instituteID, err := httputil.RequireParam(ps.ByName("institute_id"), "institute_id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "MarkRead", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	customerID, err := httputil.RequireParam(ps.ByName("customer_id"), "customer_id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "MarkRead", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	marked, err := h.service.MarkRead(r.Context(), p, instituteID, customerID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "MarkRead", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]int64{"marked": marked}); err != nil {
		h.log.Error("failed to write success response", "handler", "MarkRead", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	count, err := h.service.UnreadCount(r.Context(), p)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "UnreadCount", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, count); err != nil {
		h.log.Error("failed to write success response", "handler", "UnreadCount", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MessageHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/institutes/:id/messages", middleware.Require(h.SendToInstitute, auth.RoleCustomer))
	router.POST("/api/v1/conversations/:institute_id/:customer_id/messages", middleware.Require(h.Send))
	router.GET("/api/v1/conversations/:institute_id/:customer_id/messages", middleware.Require(h.Conversation))
	router.POST("/api/v1/conversations/:institute_id/:customer_id/read", middleware.Require(h.MarkRead))
	router.GET("/api/v1/users/me/conversations", middleware.Require(h.Conversations))
	router.GET("/api/v1/users/me/messages/unread-count", middleware.Require(h.UnreadCount))
}
