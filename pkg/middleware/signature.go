package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	apperrors "freezefit/pkg/errors"
	httputil "freezefit/pkg/http"
	"freezefit/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const SignatureHeader = "X-Signature-256"

// SignatureVerification guards internal routes (job triggers) with an
// HMAC-SHA256 of the raw body, sent as "sha256=<hex>".
func SignatureVerification(secret string, log *logger.Logger, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if secret == "" {
			logAndReject(w, log, r, "Internal secret not configured")
			return
		}

		signature := extractSignature(r)
		if signature == "" {
			logAndReject(w, log, r, "Missing "+SignatureHeader+" header")
			return
		}

		body, err := httputil.PeekBody(r)
		if err != nil {
			logAndReject(w, log, r, "Failed to read request body")
			return
		}

		if !VerifySignature(body, signature, secret) {
			logAndReject(w, log, r, "Invalid signature")
			return
		}

		next(w, r, ps)
	}
}

func extractSignature(r *http.Request) string {
	header := r.Header.Get(SignatureHeader)
	if header == "" {
		return ""
	}

	signature, found := strings.CutPrefix(header, "sha256=")
	if found {
		return signature
	}

	return header
}

func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(body []byte, receivedSignature string, secret string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(receivedSignature))
}

func logAndReject(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Signature verification failed",
		"request_id", RequestIDFromContext(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)

	writeRejection(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
}
