package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	loyaltyerrors "freezefit/internal/loyalty/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	"freezefit/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultOperationTimeout = 5 * time.Second

	accountColumns     = `user_id, points, lifetime_points, level, updated_at`
	transactionColumns = `id, user_id, points, type, reason, reference_id, created_at`
)

type LoyaltyRepository interface {
	FindAccount(ctx context.Context, userID string) (*model.LoyaltyAccount, error)
	LockAccount(ctx context.Context, userID string) (*model.LoyaltyAccount, error)
	CreateAccount(ctx context.Context, account *model.LoyaltyAccount) error
	UpsertAccount(ctx context.Context, account *model.LoyaltyAccount) error
	SaveAccount(ctx context.Context, account *model.LoyaltyAccount) error
	InsertTransaction(ctx context.Context, tx *model.LoyaltyTransaction) error
	LedgerTotals(ctx context.Context, userID string) (balance int, lifetime int, err error)
	ListTransactions(ctx context.Context, userID string, limit int, offset int) ([]*model.LoyaltyTransaction, error)
	CountTransactions(ctx context.Context, userID string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type postgresLoyaltyRepository struct {
	db        *sqlx.DB
	txManager postgres.TransactionManager
}

func NewPostgresLoyaltyRepository(cfg *config.Config) LoyaltyRepository {
	return &postgresLoyaltyRepository{
		db:        cfg.DB,
		txManager: postgres.NewTransactionManager(cfg.DB),
	}
}

func (r *postgresLoyaltyRepository) FindAccount(ctx context.Context, userID string) (*model.LoyaltyAccount, error) {
	return r.getAccount(ctx, `SELECT `+accountColumns+` FROM loyalty_accounts WHERE user_id = $1`, userID)
}

// LockAccount takes the user's loyalty advisory lock and reads the account
// with FOR UPDATE. The advisory lock also covers users without an account
// row. Call it inside a transaction.
func (r *postgresLoyaltyRepository) LockAccount(ctx context.Context, userID string) (*model.LoyaltyAccount, error) {
	if uuid.Validate(userID) != nil {
		return nil, loyaltyerrors.ErrInvalidID
	}

	lockCtx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	if _, err := postgres.Querier(lockCtx, r.db).ExecContext(lockCtx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, "loyalty_"+userID); err != nil {
		return nil, fmt.Errorf("failed to lock loyalty account: %w", err)
	}
	return r.getAccount(ctx, `SELECT `+accountColumns+` FROM loyalty_accounts WHERE user_id = $1 FOR UPDATE`, userID)
}

func (r *postgresLoyaltyRepository) getAccount(ctx context.Context, query string, userID string) (*model.LoyaltyAccount, error) {
	if uuid.Validate(userID) != nil {
		return nil, loyaltyerrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var account model.LoyaltyAccount
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &account, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, loyaltyerrors.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load loyalty account: %w", err)
	}
	return &account, nil
}

// CreateAccount is a no-op when the account already exists.
func (r *postgresLoyaltyRepository) CreateAccount(ctx context.Context, account *model.LoyaltyAccount) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	_, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `
		INSERT INTO loyalty_accounts (user_id, points, lifetime_points, level)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING`,
		account.UserID, account.Points, account.LifetimePoints, account.Level)
	if err != nil {
		return fmt.Errorf("failed to create loyalty account: %w", err)
	}
	account.UpdatedAt = time.Now()
	return nil
}

// UpsertAccount writes the account, replacing the totals of an existing row.
func (r *postgresLoyaltyRepository) UpsertAccount(ctx context.Context, account *model.LoyaltyAccount) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	err := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, `
		INSERT INTO loyalty_accounts (user_id, points, lifetime_points, level)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET points = EXCLUDED.points, lifetime_points = EXCLUDED.lifetime_points,
			level = EXCLUDED.level, updated_at = now()
		RETURNING updated_at`,
		account.UserID, account.Points, account.LifetimePoints, account.Level).Scan(&account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert loyalty account: %w", err)
	}
	return nil
}

func (r *postgresLoyaltyRepository) SaveAccount(ctx context.Context, account *model.LoyaltyAccount) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	err := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, `
		UPDATE loyalty_accounts
		SET points = $2, lifetime_points = $3, level = $4, updated_at = now()
		WHERE user_id = $1
		RETURNING updated_at`,
		account.UserID, account.Points, account.LifetimePoints, account.Level).Scan(&account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return loyaltyerrors.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to save loyalty account: %w", err)
	}
	return nil
}

func (r *postgresLoyaltyRepository) InsertTransaction(ctx context.Context, tx *model.LoyaltyTransaction) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	err := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, `
		INSERT INTO loyalty_transactions (user_id, points, type, reason, reference_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		tx.UserID, tx.Points, tx.Type, tx.Reason, tx.ReferenceID).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert loyalty transaction: %w", err)
	}
	return nil
}

// LedgerTotals sums the ledger. Redemptions lower the balance but never the
// lifetime total.
func (r *postgresLoyaltyRepository) LedgerTotals(ctx context.Context, userID string) (int, int, error) {
	if uuid.Validate(userID) != nil {
		return 0, 0, loyaltyerrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var totals struct {
		Balance  int `db:"balance"`
		Lifetime int `db:"lifetime"`
	}
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &totals, `
		SELECT COALESCE(SUM(points), 0) AS balance,
		       COALESCE(SUM(points) FILTER (WHERE type <> 'redeem'), 0) AS lifetime
		FROM loyalty_transactions
		WHERE user_id = $1`, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum loyalty ledger: %w", err)
	}
	return totals.Balance, totals.Lifetime, nil
}

func (r *postgresLoyaltyRepository) ListTransactions(ctx context.Context, userID string, limit int, offset int) ([]*model.LoyaltyTransaction, error) {
	if uuid.Validate(userID) != nil {
		return nil, loyaltyerrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	txs := []*model.LoyaltyTransaction{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &txs, `
		SELECT `+transactionColumns+`
		FROM loyalty_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list loyalty transactions: %w", err)
	}
	return txs, nil
}

func (r *postgresLoyaltyRepository) CountTransactions(ctx context.Context, userID string) (int64, error) {
	if uuid.Validate(userID) != nil {
		return 0, loyaltyerrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var count int64
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &count,
		`SELECT COUNT(*) FROM loyalty_transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count loyalty transactions: %w", err)
	}
	return count, nil
}

func (r *postgresLoyaltyRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
