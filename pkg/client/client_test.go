package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"freezefit/pkg/auth"
	apperrors "freezefit/pkg/errors"
	httputil "freezefit/pkg/http"
	"freezefit/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	gets          atomic.Int32
	lastAuth      atomic.Value
	lastCity      atomic.Value
	instituteName atomic.Value
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/institutes/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.gets.Add(1)
		if r.PathValue("id") == "missing" {
			_ = httputil.WriteError(w, apperrors.NotFoundWithID("Institute", "missing"))
			return
		}
		_ = httputil.WriteSuccess(w, &model.Institute{ID: r.PathValue("id"), Name: f.instituteName.Load().(string)})
	})
	mux.HandleFunc("GET /api/v1/institutes", func(w http.ResponseWriter, r *http.Request) {
		f.gets.Add(1)
		f.lastCity.Store(r.URL.Query().Get("city"))
		_ = httputil.WritePaginated(w, []*model.Institute{{ID: "i-1"}, {ID: "i-2"}}, 7, 2, 0)
	})
	mux.HandleFunc("POST /api/v1/institutes/{id}/reviews", func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.WriteCreated(w, &model.Review{ID: "r-1", InstituteID: r.PathValue("id"), Rating: 5})
	})
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.WriteSuccess(w, &model.AuthResponse{
			User:   &model.User{ID: "u-1", Email: "mia@example.com"},
			Tokens: &auth.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"},
		})
	})
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth.Store(r.Header.Get("Authorization"))
		_ = httputil.WriteSuccess(w, &model.User{ID: "u-1"})
	})
	mux.HandleFunc("DELETE /api/v1/users/me/favorites/{id}", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNoContent(w)
	})
	return mux
}

func newTestClient(tb testing.TB) (*Client, *fakeAPI) {
	tb.Helper()
	api := &fakeAPI{}
	api.instituteName.Store("Kältekammer Mitte")
	srv := httptest.NewServer(api.handler())
	tb.Cleanup(srv.Close)

	c := NewClient(srv.URL)
	tb.Cleanup(c.Close)
	return c, api
}

func TestInstituteClient_GetIsCached(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	first, err := c.Institutes.Get(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, "Kältekammer Mitte", first.Name)

	api.instituteName.Store("Renamed")
	second, err := c.Institutes.Get(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, "Kältekammer Mitte", second.Name)
	assert.Equal(t, int32(1), api.gets.Load())
}

func TestInstituteClient_WriteInvalidatesCollection(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	_, err := c.Institutes.Get(ctx, "i-1")
	require.NoError(t, err)

	review, err := c.Institutes.CreateReview(ctx, "i-1", &model.ReviewCreate{Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, "i-1", review.InstituteID)

	api.instituteName.Store("Renamed")
	again, err := c.Institutes.Get(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", again.Name)
	assert.Equal(t, int32(2), api.gets.Load())
}

func TestInstituteClient_CacheExpires(t *testing.T) {
	c, api := newTestClient(t)
	c.HTTP.SetCacheTTL(time.Millisecond)
	ctx := context.Background()

	_, err := c.Institutes.Get(ctx, "i-1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = c.Institutes.Get(ctx, "i-1")
	require.NoError(t, err)

	assert.Equal(t, int32(2), api.gets.Load())
}

func TestInstituteClient_SearchReturnsMeta(t *testing.T) {
	c, api := newTestClient(t)

	institutes, meta, err := c.Institutes.Search(context.Background(), &model.InstituteSearch{City: "Berlin", Limit: 2})
	require.NoError(t, err)

	assert.Len(t, institutes, 2)
	require.NotNil(t, meta)
	assert.Equal(t, int64(7), meta.TotalCount)
	assert.Equal(t, "Berlin", api.lastCity.Load())
}

func TestHttpClient_ErrorEnvelope(t *testing.T) {
	c, api := newTestClient(t)

	_, err := c.Institutes.Get(context.Background(), "missing")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, apiErr.Code)
	assert.Equal(t, "missing", apiErr.Details["id"])

	// failures are not cached
	_, _ = c.Institutes.Get(context.Background(), "missing")
	assert.Equal(t, int32(2), api.gets.Load())
}

func TestAuthClient_LoginSetsToken(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	resp, err := c.Auth.Login(ctx, "mia@example.com", "secret-password")
	require.NoError(t, err)
	assert.Equal(t, "u-1", resp.User.ID)

	_, err = c.Auth.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-1", api.lastAuth.Load())
}

func TestHttpClient_NoContent(t *testing.T) {
	c, _ := newTestClient(t)
	assert.NoError(t, c.HTTP.Delete(context.Background(), "/api/v1/users/me/favorites/i-1"))
}

func TestCollection(t *testing.T) {
	tests := map[string]string{
		"/api/v1/institutes/i-1/reviews": "/api/v1/institutes",
		"/api/v1/appointments":           "/api/v1/appointments",
		"/api/v1/institutes?city=Berlin": "/api/v1/institutes",
		"/health":                        "/health",
	}
	for in, want := range tests {
		assert.Equal(t, want, collection(in), in)
	}
}
