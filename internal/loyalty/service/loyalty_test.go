package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	loyaltyerrors "freezefit/internal/loyalty/errors"
	"freezefit/internal/loyalty/validator"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/logger"
	"freezefit/pkg/model"
	"freezefit/pkg/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLoyaltyRepository struct {
	accounts map[string]*model.LoyaltyAccount
	ledger   []*model.LoyaltyTransaction

	afterLock func()
}

func newMemoryRepo() *memoryLoyaltyRepository {
	return &memoryLoyaltyRepository{accounts: map[string]*model.LoyaltyAccount{}}
}

func (m *memoryLoyaltyRepository) FindAccount(_ context.Context, userID string) (*model.LoyaltyAccount, error) {
	if uuid.Validate(userID) != nil {
		return nil, loyaltyerrors.ErrInvalidID
	}
	a, ok := m.accounts[userID]
	if !ok {
		return nil, loyaltyerrors.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memoryLoyaltyRepository) LockAccount(ctx context.Context, userID string) (*model.LoyaltyAccount, error) {
	account, err := m.FindAccount(ctx, userID)
	if m.afterLock != nil {
		m.afterLock()
	}
	return account, err
}

func (m *memoryLoyaltyRepository) CreateAccount(_ context.Context, account *model.LoyaltyAccount) error {
	if _, ok := m.accounts[account.UserID]; ok {
		return nil
	}
	cp := *account
	m.accounts[account.UserID] = &cp
	return nil
}

func (m *memoryLoyaltyRepository) UpsertAccount(_ context.Context, account *model.LoyaltyAccount) error {
	account.UpdatedAt = time.Now()
	cp := *account
	m.accounts[account.UserID] = &cp
	return nil
}

func (m *memoryLoyaltyRepository) SaveAccount(_ context.Context, account *model.LoyaltyAccount) error {
	if _, ok := m.accounts[account.UserID]; !ok {
		return loyaltyerrors.ErrAccountNotFound
	}
	account.UpdatedAt = time.Now()
	cp := *account
	m.accounts[account.UserID] = &cp
	return nil
}

func (m *memoryLoyaltyRepository) InsertTransaction(_ context.Context, tx *model.LoyaltyTransaction) error {
	tx.ID = uuid.NewString()
	tx.CreatedAt = time.Now()
	m.ledger = append(m.ledger, tx)
	return nil
}

func (m *memoryLoyaltyRepository) LedgerTotals(_ context.Context, userID string) (int, int, error) {
	balance, lifetime := 0, 0
	for _, tx := range m.ledger {
		if tx.UserID != userID {
			continue
		}
		balance += tx.Points
		if tx.Type != model.TransactionRedeem {
			lifetime += tx.Points
		}
	}
	return balance, lifetime, nil
}

func (m *memoryLoyaltyRepository) ListTransactions(_ context.Context, userID string, limit int, offset int) ([]*model.LoyaltyTransaction, error) {
	var out []*model.LoyaltyTransaction
	for i := len(m.ledger) - 1; i >= 0; i-- {
		if m.ledger[i].UserID == userID {
			out = append(out, m.ledger[i])
		}
	}
	if offset >= len(out) {
		return []*model.LoyaltyTransaction{}, nil
	}
	return out[offset:min(len(out), offset+limit)], nil
}

func (m *memoryLoyaltyRepository) CountTransactions(_ context.Context, userID string) (int64, error) {
	var n int64
	for _, tx := range m.ledger {
		if tx.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memoryLoyaltyRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return fn(ctx)
}

func newTestService(repo *memoryLoyaltyRepository) LoyaltyService {
	log := logger.Discard()
	cfg := &config.Config{Log: log, ReadTimeout: time.Second, LoyaltyReviewBonus: 25}
	return NewLoyaltyService(repo, validator.NewLoyaltyValidator(validation.New(log)), cfg)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok, "expected AppError, got %T", err)
	return appErr.StatusCode()
}

func TestEnsureAccount_Idempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	userID := uuid.NewString()

	require.NoError(t, svc.EnsureAccount(context.Background(), userID))
	require.NoError(t, svc.EnsureAccount(context.Background(), userID))

	assert.Len(t, repo.accounts, 1)
	assert.Equal(t, model.LevelBronze, repo.accounts[userID].Level)
}

func TestAwardAppointment_UsesLevelMultiplier(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	userID := uuid.NewString()
	repo.accounts[userID] = &model.LoyaltyAccount{UserID: userID, Points: 100, LifetimePoints: 1600, Level: model.LevelGold}

	points, err := svc.AwardAppointment(context.Background(), userID, decimal.RequireFromString("40.00"), uuid.NewString())
	require.NoError(t, err)

	assert.Equal(t, 50, points)
	assert.Equal(t, 150, repo.accounts[userID].Points)
	assert.Equal(t, 1650, repo.accounts[userID].LifetimePoints)
	require.Len(t, repo.ledger, 1)
	assert.Equal(t, model.TransactionEarn, repo.ledger[0].Type)
	assert.NotNil(t, repo.ledger[0].ReferenceID)
}

func TestRecord_PromotesLevel(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	userID := uuid.NewString()
	repo.accounts[userID] = &model.LoyaltyAccount{UserID: userID, Points: 480, LifetimePoints: 480, Level: model.LevelBronze}

	account, err := svc.Record(context.Background(), userID, 30, model.TransactionBonus, "test", nil)
	require.NoError(t, err)

	assert.Equal(t, model.LevelSilver, account.Level)
}

func TestRecord_CreatesMissingAccountFromLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	userID := uuid.NewString()
	repo.ledger = append(repo.ledger,
		&model.LoyaltyTransaction{UserID: userID, Points: 600, Type: model.TransactionEarn},
		&model.LoyaltyTransaction{UserID: userID, Points: -100, Type: model.TransactionRedeem},
	)

	account, err := svc.Record(context.Background(), userID, 25, model.TransactionBonus, "Review written", nil)
	require.NoError(t, err)

	assert.Equal(t, 525, account.Points)
	assert.Equal(t, 625, account.LifetimePoints)
	assert.Equal(t, model.LevelSilver, account.Level)
	assert.Contains(t, repo.accounts, userID)
}

func TestRecord_MissingAccountOverwritesConcurrentEnrolment(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	userID := uuid.NewString()
	repo.ledger = append(repo.ledger, &model.LoyaltyTransaction{UserID: userID, Points: 300, Type: model.TransactionEarn})
	repo.afterLock = func() {
		repo.afterLock = nil
		require.NoError(t, svc.EnsureAccount(context.Background(), userID))
	}

	account, err := svc.Record(context.Background(), userID, 100, model.TransactionEarn, "Appointment completed", nil)
	require.NoError(t, err)
	assert.Equal(t, 400, account.Points)

	stored, err := svc.GetStatus(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 400, stored.Points)
	assert.Equal(t, 400, stored.LifetimePoints)
}

func TestRedeem_DoesNotDemote(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	userID := uuid.NewString()
	repo.accounts[userID] = &model.LoyaltyAccount{UserID: userID, Points: 1600, LifetimePoints: 1600, Level: model.LevelGold}

	status, err := svc.Redeem(context.Background(), userID, &model.PointsRequest{Points: 1500})
	require.NoError(t, err)

	assert.Equal(t, 100, status.Points)
	assert.Equal(t, 1600, status.LifetimePoints)
	assert.Equal(t, model.LevelGold, status.Level)
	assert.Equal(t, "Points redeemed", repo.ledger[0].Reason)
	assert.Equal(t, -1500, repo.ledger[0].Points)
}

func TestRedeem_InsufficientPoints(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	userID := uuid.NewString()
	repo.accounts[userID] = &model.LoyaltyAccount{UserID: userID, Points: 50, LifetimePoints: 50, Level: model.LevelBronze}

	_, err := svc.Redeem(context.Background(), userID, &model.PointsRequest{Points: 51})

	assert.Equal(t, http.StatusConflict, statusOf(t, err))
	assert.Empty(t, repo.ledger)
	assert.Equal(t, 50, repo.accounts[userID].Points)
}

func TestRedeem_Validation(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Redeem(context.Background(), uuid.NewString(), &model.PointsRequest{Points: 0})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
}

func TestAdjust_NegativeLowersLifetime(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	userID := uuid.NewString()
	repo.accounts[userID] = &model.LoyaltyAccount{UserID: userID, Points: 600, LifetimePoints: 600, Level: model.LevelSilver}

	status, err := svc.Adjust(context.Background(), userID, &model.AdjustRequest{Points: -200, Reason: "Korrektur"})
	require.NoError(t, err)

	assert.Equal(t, 400, status.Points)
	assert.Equal(t, 400, status.LifetimePoints)
	assert.Equal(t, model.LevelBronze, status.Level)
}

func TestAdjust_RequiresReason(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Adjust(context.Background(), uuid.NewString(), &model.AdjustRequest{Points: 10, Reason: "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
}

func TestGetStatus_FromLedgerWithoutAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	userID := uuid.NewString()
	repo.ledger = append(repo.ledger, &model.LoyaltyTransaction{UserID: userID, Points: 750, Type: model.TransactionEarn})

	status, err := svc.GetStatus(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 750, status.Points)
	assert.Equal(t, model.LevelSilver, status.Level)
	assert.Equal(t, 750, status.PointsToNextLevel)
	assert.Equal(t, 25.0, status.ProgressPercent)
	assert.Empty(t, repo.accounts)
}

func TestGetStatus_InvalidID(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.GetStatus(context.Background(), "not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestGetTransactions_NewestFirst(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	userID := uuid.NewString()

	for _, p := range []int{10, 20, 30} {
		_, err := svc.Record(context.Background(), userID, p, model.TransactionEarn, "visit", nil)
		require.NoError(t, err)
	}

	txs, total, err := svc.GetTransactions(context.Background(), userID, 2, 0)
	require.NoError(t, err)

	assert.EqualValues(t, 3, total)
	require.Len(t, txs, 2)
	assert.Equal(t, 30, txs[0].Points)
}

func TestAwardReviewBonus(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	userID := uuid.NewString()

	points, err := svc.AwardReviewBonus(context.Background(), userID, uuid.NewString())
	require.NoError(t, err)

	assert.Equal(t, 25, points)
	assert.Equal(t, 25, repo.accounts[userID].Points)
	assert.Equal(t, model.TransactionBonus, repo.ledger[0].Type)
}

func TestLevels_ReturnsCopy(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	levels := svc.Levels()
	levels[0].Name = "changed"

	assert.Equal(t, model.LevelBronze, Levels[0].Name)
	assert.Len(t, svc.Levels(), 5)
}
