package http

import (
	"encoding/json"
	"net/http"

	apperrors "freezefit/pkg/errors"
)

// Envelope is the body of every API response.
type Envelope struct {
	Data    any        `json:"data"`
	Error   *ErrorBody `json:"error"`
	Success bool       `json:"success"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Meta struct {
	TotalCount int64 `json:"total_count"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError renders err as a failed envelope. Errors that are not
// AppErrors are reported as internal errors without their message.
func WriteError(w http.ResponseWriter, err error) error {
	appErr := apperrors.AsAppError(err)

	body := &ErrorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if appErr.Code == apperrors.CodeInternal {
		body.Message = "Internal server error"
		body.Details = nil
	}

	return WriteJSON(w, appErr.StatusCode(), Envelope{Error: body})
}

func WriteSuccess(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusOK, Envelope{Data: data, Success: true})
}

func WriteCreated(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusCreated, Envelope{Data: data, Success: true})
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func WritePaginated(w http.ResponseWriter, data any, totalCount int64, limit int, offset int) error {
	return WriteJSON(w, http.StatusOK, Envelope{
		Data:    data,
		Success: true,
		Meta: &Meta{
			TotalCount: totalCount,
			Limit:      limit,
			Offset:     offset,
		},
	})
}

// ErrorJSON renders a failed envelope as raw bytes for middleware that
// writes responses before a handler runs.
func ErrorJSON(code, message string) []byte {
	b, err := json.Marshal(Envelope{Error: &ErrorBody{Code: code, Message: message}})
	if err != nil {
		return []byte(`{"data":null,"error":{"code":"INTERNAL_ERROR","message":"Internal server error"},"success":false}`)
	}
	return b
}
