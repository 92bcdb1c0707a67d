package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"freezefit/pkg/auth"
	"freezefit/pkg/cache"
	"freezefit/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}

func TestRequestLogging_SetsRequestID(t *testing.T) {
	var seen string
	h := RequestLogging(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	incoming := "7d0c2f0e-8f5e-4c41-9a43-6e2a7f1b9d10"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, incoming, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "not-a-uuid", seen)
}

func TestContentTypeValidation(t *testing.T) {
	h := ContentTypeValidation(logger.Discard())(okHandler())

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{"json post", http.MethodPost, `{}`, "application/json; charset=utf-8", http.StatusOK},
		{"text post", http.MethodPost, `{}`, "text/plain", http.StatusUnsupportedMediaType},
		{"bodiless put", http.MethodPut, ``, "", http.StatusOK},
		{"get", http.MethodGet, ``, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	h := MaxRequestSize(4)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", errorCode(t, rec))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestTimeout(t *testing.T) {
	h := RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		time.Sleep(5 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "TIMEOUT", errorCode(t, rec))
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(2, time.Hour, logger.Discard())
	defer limiter.Stop()
	h := RateLimit(limiter)(okHandler())

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", ClientIP(req, 1))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 203.0.113.9")
	assert.Equal(t, "10.0.0.7", ClientIP(req, 0), "header ignored without trusted proxies")
	assert.Equal(t, "203.0.113.9", ClientIP(req, 1), "right-most hop appended by the load balancer")
	assert.Equal(t, "1.2.3.4", ClientIP(req, 2))
	assert.Equal(t, "10.0.0.7", ClientIP(req, 3), "fewer hops than trusted proxies")
}

func TestRateLimit_ForgedForwardedFor(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour, logger.Discard()).TrustProxies(1)
	defer limiter.Stop()
	h := RateLimit(limiter)(okHandler())

	send := func(forged string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		req.Header.Set("X-Forwarded-For", forged+", 198.51.100.4")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("2.2.2.2"))
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://freezefit.app"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/institutes", nil)
	req.Header.Set("Origin", "https://freezefit.app")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://freezefit.app", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticateAndRequire(t *testing.T) {
	tokens := auth.NewTokenManager(testSecret, "freezefit", time.Minute, time.Hour)
	pair, err := tokens.Issue(auth.Subject{UserID: "u-1", Email: "a@b.de", Role: auth.RoleCustomer})
	require.NoError(t, err)

	router := httprouter.New()
	router.GET("/any", Require(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		p, _ := auth.FromContext(r.Context())
		_, _ = w.Write([]byte(p.UserID))
	}))
	router.GET("/providers", Require(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {}, auth.RoleProvider))

	h := Authenticate(tokens, logger.Discard())(router)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"anonymous", "/any", "", http.StatusUnauthorized},
		{"valid token", "/any", "Bearer " + pair.AccessToken, http.StatusOK},
		{"refresh token as access", "/any", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"garbage", "/any", "Bearer abc", http.StatusUnauthorized},
		{"no bearer prefix", "/any", pair.AccessToken, http.StatusUnauthorized},
		{"wrong role", "/providers", "Bearer " + pair.AccessToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	ttlMap := cache.NewTTLMap(time.Hour)
	defer ttlMap.Stop()
	store := NewCacheIdempotencyStore(ttlMap, time.Hour, logger.Discard())

	var calls atomic.Int32
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"a-1"}`))
	}))

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(`{}`))
		req.Header.Set(DefaultIdempotencyHeader, key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("k-1")
	second := send("k-1")
	third := send("k-2")

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Empty(t, third.Header().Get("Idempotent-Replayed"))
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	ttlMap := cache.NewTTLMap(time.Hour)
	defer ttlMap.Stop()
	store := NewCacheIdempotencyStore(ttlMap, time.Hour, logger.Discard())

	var calls atomic.Int32
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
	}))

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(DefaultIdempotencyHeader, "same")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestSignatureVerification(t *testing.T) {
	secret := "internal-secret"
	var called bool
	handle := SignatureVerification(secret, logger.Discard(), func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		called = true
	})

	body := `{"job":"expire-pending"}`

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/expire-pending", strings.NewReader(body))
	req.Header.Set(SignatureHeader, "sha256="+Sign([]byte(body), secret))
	rec := httptest.NewRecorder()
	handle(rec, req, nil)
	assert.True(t, called)

	called = false
	req = httptest.NewRequest(http.MethodPost, "/internal/jobs/expire-pending", strings.NewReader(body))
	req.Header.Set(SignatureHeader, "sha256=deadbeef")
	rec = httptest.NewRecorder()
	handle(rec, req, nil)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Chain(okHandler(), mw("outer"), mw("inner")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, order)
}
