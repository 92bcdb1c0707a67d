package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"freezefit/pkg/auth"
	apperrors "freezefit/pkg/errors"
	httputil "freezefit/pkg/http"
	"freezefit/pkg/logger"
	"freezefit/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUserService struct {
	registerFunc func(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error)
	getByIDFunc  func(ctx context.Context, id string) (*model.User, error)
	passwordFunc func(ctx context.Context, id string, req *model.PasswordChange) error
}

func (m *mockUserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	return m.registerFunc(ctx, req)
}

func (m *mockUserService) Login(context.Context, *model.LoginRequest) (*model.AuthResponse, error) {
	return nil, apperrors.Unauthorized("Invalid email or password")
}

func (m *mockUserService) Refresh(context.Context, *model.RefreshRequest) (*auth.TokenPair, error) {
	return nil, nil
}

func (m *mockUserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserService) Update(context.Context, string, *model.UserUpdate) (*model.User, error) {
	return nil, nil
}

func (m *mockUserService) ChangePassword(ctx context.Context, id string, req *model.PasswordChange) error {
	return m.passwordFunc(ctx, id, req)
}

func newRouter(svc *mockUserService) *httprouter.Router {
	router := httprouter.New()
	NewUserHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) httputil.Envelope {
	t.Helper()
	var env httputil.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRegister_Created(t *testing.T) {
	svc := &mockUserService{
		registerFunc: func(_ context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
			assert.Equal(t, "anna@example.de", req.Email)
			return &model.AuthResponse{User: &model.User{ID: "u-1", Email: req.Email}}, nil
		},
	}

	body := `{"email":"anna@example.de","password":"eiskalt-2026","name":"Anna","role":"customer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
}

func TestRegister_RejectsUnknownFields(t *testing.T) {
	svc := &mockUserService{
		registerFunc: func(context.Context, *model.RegisterRequest) (*model.AuthResponse, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"email":"a@b.de","is_admin":true}`))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, apperrors.CodeInvalidInput, env.Error.Code)
}

func TestLogin_Unauthorized(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"a@b.de","password":"x"}`))
	rec := httptest.NewRecorder()
	newRouter(&mockUserService{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_RequiresAuthentication(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()
	newRouter(&mockUserService{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_UsesPrincipal(t *testing.T) {
	svc := &mockUserService{
		getByIDFunc: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "anna@example.de", PasswordHash: "secret-hash"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{UserID: "u-7", Role: auth.RoleCustomer}))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"u-7"`)
	assert.NotContains(t, rec.Body.String(), "secret-hash")
}

func TestChangePassword_NoContent(t *testing.T) {
	svc := &mockUserService{
		passwordFunc: func(_ context.Context, id string, req *model.PasswordChange) error {
			assert.Equal(t, "u-7", id)
			assert.Equal(t, "new-password", req.NewPassword)
			return nil
		},
	}

	body := `{"current_password":"old-password","new_password":"new-password"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/me/password", strings.NewReader(body))
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{UserID: "u-7", Role: auth.RoleCustomer}))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
