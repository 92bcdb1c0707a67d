package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"freezefit/pkg/auth"
	"freezefit/pkg/cache"
	"freezefit/pkg/logger"
)

const (
	DefaultIdempotencyHeader = "Idempotency-Key"
	idempotencyKeyPrefix     = "idempotency:"
	maxIdempotencyKeyLength  = 255
)

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool)
	Set(ctx context.Context, key string, response *CachedResponse)
}

type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

// CacheIdempotencyStore keeps replayable responses in a cache.Cache, which
// is either the in-process TTL map or Redis when several instances share
// traffic.
type CacheIdempotencyStore struct {
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

func NewCacheIdempotencyStore(c cache.Cache, ttl time.Duration, log *logger.Logger) *CacheIdempotencyStore {
	return &CacheIdempotencyStore{cache: c, ttl: ttl, log: log}
}

func (s *CacheIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	var response CachedResponse
	if !cache.GetJSON(ctx, s.cache, idempotencyKeyPrefix+key, &response) {
		return nil, false
	}
	return &response, true
}

func (s *CacheIdempotencyStore) Set(ctx context.Context, key string, response *CachedResponse) {
	response.CreatedAt = time.Now()
	if err := cache.SetJSON(ctx, s.cache, idempotencyKeyPrefix+key, response, s.ttl); err != nil {
		s.log.Warn("Failed to store idempotent response", "error", err)
	}
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the stored 2xx response of an earlier write carrying
// the same key. Keys are scoped to caller, method and path.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = DefaultIdempotencyHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idempotencyKey := extractIdempotencyKey(r, headerName)

			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if handleCachedResponse(w, r, store, idempotencyKey) {
				return
			}

			capture := captureResponse(w)
			next.ServeHTTP(capture, r)
			cacheSuccessfulResponse(r.Context(), store, idempotencyKey, capture, w)
		})
	}
}

func extractIdempotencyKey(r *http.Request, headerName string) string {
	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
		return ""
	}
	key := r.Header.Get(headerName)
	if key == "" || len(key) > maxIdempotencyKeyLength {
		return ""
	}

	caller := "anonymous"
	if p, ok := auth.FromContext(r.Context()); ok {
		caller = p.UserID
	}
	return caller + ":" + r.Method + ":" + r.URL.Path + ":" + key
}

func handleCachedResponse(w http.ResponseWriter, r *http.Request, store IdempotencyStore, key string) bool {
	cached, found := store.Get(r.Context(), key)
	if !found {
		return false
	}

	replayCachedResponse(w, cached)
	return true
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

func captureResponse(w http.ResponseWriter) *responseCapture {
	return &responseCapture{
		ResponseWriter: w,
		statusCode:     200,
		body:           &bytes.Buffer{},
	}
}

func cacheSuccessfulResponse(ctx context.Context, store IdempotencyStore, key string, capture *responseCapture, w http.ResponseWriter) {
	if !shouldCacheResponse(capture.statusCode) {
		return
	}

	headers := w.Header().Clone()
	headers.Del(RequestIDHeader)

	cached := &CachedResponse{
		StatusCode: capture.statusCode,
		Headers:    headers,
		Body:       capture.body.Bytes(),
	}
	store.Set(context.WithoutCancel(ctx), key, cached)
}

func shouldCacheResponse(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
