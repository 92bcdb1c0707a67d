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
)

type mockLoyaltyService struct {
	redeemFunc func(ctx context.Context, userID string, req *model.PointsRequest) (*model.LoyaltyStatus, error)
	adjustFunc func(ctx context.Context, userID string, req *model.AdjustRequest) (*model.LoyaltyStatus, error)
}

func (m *mockLoyaltyService) EnsureAccount(context.Context, string) error { return nil }

func (m *mockLoyaltyService) Record(context.Context, string, int, string, string, *string) (*model.LoyaltyAccount, error) {
	return nil, nil
}

func (m *mockLoyaltyService) AwardAppointment(context.Context, string, decimal.Decimal, string) (int, error) {
	return 0, nil
}

func (m *mockLoyaltyService) AwardReviewBonus(context.Context, string, string) (int, error) {
	return 0, nil
}

func (m *mockLoyaltyService) GetStatus(_ context.Context, userID string) (*model.LoyaltyStatus, error) {
	return &model.LoyaltyStatus{LoyaltyAccount: model.LoyaltyAccount{UserID: userID, Level: model.LevelBronze}}, nil
}

func (m *mockLoyaltyService) GetTransactions(_ context.Context, userID string, limit int, offset int) ([]*model.LoyaltyTransaction, int64, error) {
	return []*model.LoyaltyTransaction{{ID: "t-1", UserID: userID, Points: 10}}, 1, nil
}

func (m *mockLoyaltyService) Redeem(ctx context.Context, userID string, req *model.PointsRequest) (*model.LoyaltyStatus, error) {
	return m.redeemFunc(ctx, userID, req)
}

func (m *mockLoyaltyService) Adjust(ctx context.Context, userID string, req *model.AdjustRequest) (*model.LoyaltyStatus, error) {
	return m.adjustFunc(ctx, userID, req)
}

func (m *mockLoyaltyService) Levels() []model.LoyaltyLevel {
	return []model.LoyaltyLevel{{Name: model.LevelBronze}}
}

func serve(svc *mockLoyaltyService, req *http.Request, p *auth.Principal) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewLoyaltyHandler(svc, logger.Discard()).RegisterRoutes(router)
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLevels_Public(t *testing.T) {
	rec := serve(&mockLoyaltyService{}, httptest.NewRequest(http.MethodGet, "/api/v1/loyalty/levels", nil), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"bronze"`)
}

func TestStatus_RequiresAuthentication(t *testing.T) {
	rec := serve(&mockLoyaltyService{}, httptest.NewRequest(http.MethodGet, "/api/v1/users/me/loyalty", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransactions_Paginated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me/loyalty/transactions?limit=5", nil)
	rec := serve(&mockLoyaltyService{}, req, &auth.Principal{UserID: "u-1", Role: auth.RoleCustomer})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_count":1`)
	assert.Contains(t, rec.Body.String(), `"limit":5`)
}

func TestRedeem_Conflict(t *testing.T) {
	svc := &mockLoyaltyService{
		redeemFunc: func(_ context.Context, userID string, req *model.PointsRequest) (*model.LoyaltyStatus, error) {
			assert.Equal(t, "u-1", userID)
			assert.Equal(t, 500, req.Points)
			return nil, apperrors.Conflict("Insufficient points: balance is 20")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/me/loyalty/redeem", strings.NewReader(`{"points":500}`))
	rec := serve(svc, req, &auth.Principal{UserID: "u-1", Role: auth.RoleCustomer})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdjust_AdminOnly(t *testing.T) {
	svc := &mockLoyaltyService{
		adjustFunc: func(_ context.Context, userID string, req *model.AdjustRequest) (*model.LoyaltyStatus, error) {
			return &model.LoyaltyStatus{LoyaltyAccount: model.LoyaltyAccount{UserID: userID, Points: req.Points}}, nil
		},
	}
	body := `{"points":100,"reason":"Kulanz"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/loyalty/u-9/adjust", strings.NewReader(body))
	rec := serve(svc, req, &auth.Principal{UserID: "u-1", Role: auth.RoleProvider})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/loyalty/u-9/adjust", strings.NewReader(body))
	rec = serve(svc, req, &auth.Principal{UserID: "admin", Role: auth.RoleAdmin})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":"u-9"`)
}
