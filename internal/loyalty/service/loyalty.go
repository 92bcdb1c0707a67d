package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	loyaltyerrors "freezefit/internal/loyalty/errors"
	"freezefit/internal/loyalty/repository"
	"freezefit/internal/loyalty/validator"
	"freezefit/pkg/config"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/model"
	"freezefit/pkg/sanitizer"
	"freezefit/pkg/validation"

	"github.com/shopspring/decimal"
)

type LoyaltyService interface {
	EnsureAccount(ctx context.Context, userID string) error
	Record(ctx context.Context, userID string, points int, txType string, reason string, referenceID *string) (*model.LoyaltyAccount, error)
	AwardAppointment(ctx context.Context, userID string, price decimal.Decimal, appointmentID string) (int, error)
	AwardReviewBonus(ctx context.Context, userID string, reviewID string) (int, error)
	GetStatus(ctx context.Context, userID string) (*model.LoyaltyStatus, error)
	GetTransactions(ctx context.Context, userID string, limit int, offset int) ([]*model.LoyaltyTransaction, int64, error)
	Redeem(ctx context.Context, userID string, req *model.PointsRequest) (*model.LoyaltyStatus, error)
	Adjust(ctx context.Context, userID string, req *model.AdjustRequest) (*model.LoyaltyStatus, error)
	Levels() []model.LoyaltyLevel
}

type loyaltyService struct {
	repo      repository.LoyaltyRepository
	validator *validator.LoyaltyValidator
	cfg       *config.Config
}

func NewLoyaltyService(
	repo repository.LoyaltyRepository,
	validator *validator.LoyaltyValidator,
	cfg *config.Config,
) LoyaltyService {
	return &loyaltyService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *loyaltyService) EnsureAccount(ctx context.Context, userID string) error {
	err := s.repo.CreateAccount(ctx, &model.LoyaltyAccount{
		UserID: userID,
		Level:  model.LevelBronze,
	})
	if err != nil {
		return fmt.Errorf("failed to open loyalty account: %w", err)
	}
	return nil
}

// Record writes a ledger row and applies it to the account. Accounts that
// predate the loyalty feature are created from the ledger sum, overwriting an
// empty account a concurrent enrolment may have opened.
func (s *loyaltyService) Record(ctx context.Context, userID string, points int, txType string, reason string, referenceID *string) (*model.LoyaltyAccount, error) {
	if points == 0 {
		return nil, apperrors.InvalidInput("points must not be zero")
	}

	var account *model.LoyaltyAccount
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.LockAccount(txCtx, userID)
		if err != nil && !errors.Is(err, loyaltyerrors.ErrAccountNotFound) {
			return err
		}

		if points < 0 {
			balance := 0
			if existing != nil {
				balance = existing.Points
			} else if balance, _, err = s.repo.LedgerTotals(txCtx, userID); err != nil {
				return err
			}
			if balance+points < 0 {
				return apperrors.Conflict(fmt.Sprintf("Insufficient points: balance is %d", balance)).
					WithDetails(map[string]any{"balance": balance, "requested": -points})
			}
		}

		entry := &model.LoyaltyTransaction{
			UserID:      userID,
			Points:      points,
			Type:        txType,
			Reason:      reason,
			ReferenceID: referenceID,
		}
		if err := s.repo.InsertTransaction(txCtx, entry); err != nil {
			return err
		}

		if existing == nil {
			balance, lifetime, err := s.repo.LedgerTotals(txCtx, userID)
			if err != nil {
				return err
			}
			account = &model.LoyaltyAccount{
				UserID:         userID,
				Points:         max(0, balance),
				LifetimePoints: max(0, lifetime),
			}
			account.Level = LevelFor(account.LifetimePoints).Name
			return s.repo.UpsertAccount(txCtx, account)
		}

		account = existing
		account.Points += points
		if txType != model.TransactionRedeem {
			account.LifetimePoints = max(0, account.LifetimePoints+points)
		}
		account.Level = LevelFor(account.LifetimePoints).Name
		return s.repo.SaveAccount(txCtx, account)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		if errors.Is(err, loyaltyerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid user ID format")
		}
		s.cfg.Log.Error("Failed to record loyalty transaction",
			"user_id", userID,
			"points", points,
			"type", txType,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to record loyalty points", err)
	}

	s.cfg.Log.Info("Loyalty transaction recorded",
		"user_id", userID,
		"points", points,
		"type", txType,
		"balance", account.Points,
		"level", account.Level,
	)
	return account, nil
}

func (s *loyaltyService) AwardAppointment(ctx context.Context, userID string, price decimal.Decimal, appointmentID string) (int, error) {
	level := model.LevelBronze
	account, err := s.repo.FindAccount(ctx, userID)
	switch {
	case err == nil:
		level = account.Level
	case errors.Is(err, loyaltyerrors.ErrAccountNotFound):
		if _, lifetime, err := s.repo.LedgerTotals(ctx, userID); err == nil {
			level = LevelFor(lifetime).Name
		}
	default:
		return 0, apperrors.Internal("Failed to load loyalty account", err)
	}

	points := EarnedPoints(price, level)
	if points == 0 {
		return 0, nil
	}

	ref := appointmentID
	if _, err := s.Record(ctx, userID, points, model.TransactionEarn, "Appointment completed", &ref); err != nil {
		return 0, err
	}
	return points, nil
}

func (s *loyaltyService) AwardReviewBonus(ctx context.Context, userID string, reviewID string) (int, error) {
	bonus := s.cfg.LoyaltyReviewBonus
	if bonus <= 0 {
		return 0, nil
	}
	ref := reviewID
	if _, err := s.Record(ctx, userID, bonus, model.TransactionBonus, "Review written", &ref); err != nil {
		return 0, err
	}
	return bonus, nil
}

func (s *loyaltyService) GetStatus(ctx context.Context, userID string) (*model.LoyaltyStatus, error) {
	account, err := s.repo.FindAccount(ctx, userID)
	if err == nil {
		return Status(*account), nil
	}
	if errors.Is(err, loyaltyerrors.ErrInvalidID) {
		return nil, apperrors.InvalidInput("Invalid user ID format")
	}
	if !errors.Is(err, loyaltyerrors.ErrAccountNotFound) {
		s.cfg.Log.Error("Failed to load loyalty account", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve loyalty status", err)
	}

	balance, lifetime, err := s.repo.LedgerTotals(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to sum loyalty ledger", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve loyalty status", err)
	}

	return Status(model.LoyaltyAccount{
		UserID:         userID,
		Points:         max(0, balance),
		LifetimePoints: max(0, lifetime),
	}), nil
}

func (s *loyaltyService) GetTransactions(ctx context.Context, userID string, limit int, offset int) ([]*model.LoyaltyTransaction, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var txs []*model.LoyaltyTransaction
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		var err error
		count, err = s.repo.CountTransactions(ctx, userID)
		if err != nil {
			s.cfg.Log.Error("Failed to count loyalty transactions", "user_id", userID, "error", err)
			errCount = apperrors.Internal("Failed to count loyalty transactions", err)
		}
	}()
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		var err error
		txs, err = s.repo.ListTransactions(ctx, userID, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list loyalty transactions", "user_id", userID, "error", err)
			errFind = apperrors.Internal("Failed to retrieve loyalty transactions", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return txs, count, nil
}

func (s *loyaltyService) Redeem(ctx context.Context, userID string, req *model.PointsRequest) (*model.LoyaltyStatus, error) {
	req.Reason = sanitizer.SanitizeLine(req.Reason)
	if err := s.validator.ValidatePoints(req); err != nil {
		return nil, validation.ToAppError("Redemption", err)
	}
	if req.Reason == "" {
		req.Reason = "Points redeemed"
	}

	account, err := s.Record(ctx, userID, -req.Points, model.TransactionRedeem, req.Reason, nil)
	if err != nil {
		return nil, err
	}
	return Status(*account), nil
}

func (s *loyaltyService) Adjust(ctx context.Context, userID string, req *model.AdjustRequest) (*model.LoyaltyStatus, error) {
	req.Reason = sanitizer.SanitizeLine(req.Reason)
	if err := s.validator.ValidateAdjustment(req); err != nil {
		return nil, validation.ToAppError("Adjustment", err)
	}

	account, err := s.Record(ctx, userID, req.Points, model.TransactionAdjust, req.Reason, nil)
	if err != nil {
		return nil, err
	}
	return Status(*account), nil
}

func (s *loyaltyService) Levels() []model.LoyaltyLevel {
	return append([]model.LoyaltyLevel(nil), Levels...)
}
