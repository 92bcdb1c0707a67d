package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"freezefit/pkg/auth"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/logger"
	"freezefit/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCatalogService struct {
	created         *model.ServiceCreate
	includeInactive bool
	deleted         string
}

func (m *mockCatalogService) Create(_ context.Context, _ *auth.Principal, instituteID string, req *model.ServiceCreate) (*model.Service, error) {
	m.created = req
	return &model.Service{ID: "s-1", InstituteID: instituteID, Name: req.Name, Price: req.Price}, nil
}

func (m *mockCatalogService) GetByID(_ context.Context, id string) (*model.Service, error) {
	return nil, apperrors.NotFoundWithID("Service", id)
}

func (m *mockCatalogService) GetByInstitute(_ context.Context, _ *auth.Principal, _ string, includeInactive bool, _, _ int) ([]*model.Service, int64, error) {
	m.includeInactive = includeInactive
	return []*model.Service{{ID: "s-1", Name: "Ganzkörper -110°C"}}, 1, nil
}

func (m *mockCatalogService) Update(_ context.Context, _ *auth.Principal, id string, updates *model.ServiceUpdate) (*model.Service, error) {
	return &model.Service{ID: id}, nil
}

func (m *mockCatalogService) Delete(_ context.Context, _ *auth.Principal, id string) error {
	m.deleted = id
	return nil
}

func serve(svc *mockCatalogService, req *http.Request, p *auth.Principal) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewServiceHandler(svc, logger.Discard()).RegisterRoutes(router)
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

var provider = &auth.Principal{UserID: "u-9", Role: auth.RoleProvider}

func TestCreate(t *testing.T) {
	svc := &mockCatalogService{}
	body := `{"name":"Ganzkörper","category":"whole_body","duration_min":3,"price":"49.90"}`

	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/institutes/i-1/services", strings.NewReader(body)), provider)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.created)
	assert.True(t, decimal.RequireFromString("49.90").Equal(svc.created.Price))
	assert.Contains(t, rec.Body.String(), `"institute_id":"i-1"`)
}

func TestCreate_UnknownField(t *testing.T) {
	svc := &mockCatalogService{}
	body := `{"name":"Ganzkörper","colour":"blue"}`

	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/institutes/i-1/services", strings.NewReader(body)), provider)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.created)
}

func TestCreate_CustomerForbidden(t *testing.T) {
	customer := &auth.Principal{UserID: "u-1", Role: auth.RoleCustomer}

	rec := serve(&mockCatalogService{}, httptest.NewRequest(http.MethodPost, "/api/v1/institutes/i-1/services", strings.NewReader(`{}`)), customer)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestList_Public(t *testing.T) {
	svc := &mockCatalogService{}

	rec := serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/institutes/i-1/services?include_inactive=true", nil), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.includeInactive)
	assert.Contains(t, rec.Body.String(), "Ganzkörper -110°C")
}

func TestGetByID_NotFound(t *testing.T) {
	rec := serve(&mockCatalogService{}, httptest.NewRequest(http.MethodGet, "/api/v1/services/s-404", nil), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelete(t *testing.T) {
	svc := &mockCatalogService{}

	rec := serve(svc, httptest.NewRequest(http.MethodDelete, "/api/v1/services/s-1", nil), provider)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "s-1", svc.deleted)
}
