package handler

import (
	"net/http"

	"freezefit/internal/loyalty/service"
	"freezefit/pkg/auth"
	httputil "freezefit/pkg/http"
	"freezefit/pkg/logger"
	"freezefit/pkg/middleware"
	"freezefit/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type LoyaltyHandler struct {
	service service.LoyaltyService
	log     *logger.Logger
}

func NewLoyaltyHandler(service service.LoyaltyService, log *logger.Logger) *LoyaltyHandler {
	return &LoyaltyHandler{
		service: service,
		log:     log,
	}
}

func (h *LoyaltyHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	status, err := h.service.GetStatus(r.Context(), p.UserID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Status", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, status); err != nil {
		h.log.Error("failed to write success response", "handler", "Status", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LoyaltyHandler) Transactions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Transactions", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	txs, total, err := h.service.GetTransactions(r.Context(), p.UserID, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Transactions", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, txs, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Transactions", "operation", "WritePaginated", "error", err)
	}
}

func (h *LoyaltyHandler) Redeem(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, _ := auth.FromContext(r.Context())

	var req model.PointsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Redeem", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	status, err := h.service.Redeem(r.Context(), p.UserID, &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Redeem", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, status); err != nil {
		h.log.Error("failed to write success response", "handler", "Redeem", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LoyaltyHandler) Adjust(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := httputil.RequireParam(ps.ByName("user_id"), "user_id")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Adjust", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var req model.AdjustRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Adjust", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	status, err := h.service.Adjust(r.Context(), userID, &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Adjust", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, status); err != nil {
		h.log.Error("failed to write success response", "handler", "Adjust", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LoyaltyHandler) Levels(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, h.service.Levels()); err != nil {
		h.log.Error("failed to write success response", "handler", "Levels", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LoyaltyHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/loyalty/levels", h.Levels)
	router.GET("/api/v1/users/me/loyalty", middleware.Require(h.Status))
	router.GET("/api/v1/users/me/loyalty/transactions", middleware.Require(h.Transactions))
	router.POST("/api/v1/users/me/loyalty/redeem", middleware.Require(h.Redeem, auth.RoleCustomer))
	router.POST("/api/v1/admin/loyalty/:user_id/adjust", middleware.Require(h.Adjust, auth.RoleAdmin))
}
