package middleware

import (
	"net/http"

	apperrors "freezefit/pkg/errors"
)

// MaxRequestSize rejects bodies whose declared length exceeds maxBytes and
// caps the reader for bodies of unknown length.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeRejection(w, http.StatusRequestEntityTooLarge, apperrors.CodePayloadTooLarge, "Request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
