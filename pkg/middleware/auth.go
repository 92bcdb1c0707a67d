package middleware

import (
	"net/http"
	"strings"

	"freezefit/pkg/auth"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

// Authenticate parses a bearer access token when present. Requests without
// a token pass through anonymously; an invalid token is rejected.
func Authenticate(tokens *auth.TokenManager, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(raw) == "" {
				writeRejection(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Malformed Authorization header")
				return
			}

			claims, err := tokens.Parse(strings.TrimSpace(raw), auth.TokenTypeAccess)
			if err != nil {
				log.Debug("Access token rejected",
					"request_id", RequestIDFromContext(r.Context()),
					"error", err,
				)
				writeRejection(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Invalid or expired token")
				return
			}

			ctx := auth.WithPrincipal(r.Context(), &auth.Principal{
				UserID: claims.UserID,
				Email:  claims.Email,
				Role:   claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require wraps a route so only authenticated callers holding one of roles
// reach it. No roles means any authenticated caller.
func Require(next httprouter.Handle, roles ...string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		p, ok := auth.FromContext(r.Context())
		if !ok {
			writeRejection(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Authentication required")
			return
		}
		if len(roles) > 0 && !p.HasRole(roles...) {
			writeRejection(w, http.StatusForbidden, apperrors.CodeForbidden, "Insufficient permissions")
			return
		}
		next(w, r, ps)
	}
}
