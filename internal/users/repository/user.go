package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	userserrors "freezefit/internal/users/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	"freezefit/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultOperationTimeout = 5 * time.Second

	userColumns = `id, email, password_hash, name, phone, avatar_url, role, created_at, updated_at`
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, id string, changes *postgres.Changes) (*model.User, error)
	UpdatePassword(ctx context.Context, id string, hash string) error
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type postgresUserRepository struct {
	db        *sqlx.DB
	txManager postgres.TransactionManager
}

func NewPostgresUserRepository(cfg *config.Config) UserRepository {
	return &postgresUserRepository{
		db:        cfg.DB,
		txManager: postgres.NewTransactionManager(cfg.DB),
	}
}

func (r *postgresUserRepository) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query := `
		INSERT INTO users (email, password_hash, name, phone, avatar_url, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	row := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, query,
		user.Email, user.PasswordHash, user.Name, user.Phone, user.AvatarURL, user.Role)
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if postgres.IsUniqueViolation(err) {
			return userserrors.ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if uuid.Validate(id) != nil {
		return nil, userserrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var user model.User
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &user,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, userserrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (r *postgresUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var user model.User
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &user,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, userserrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &user, nil
}

func (r *postgresUserRepository) Update(ctx context.Context, id string, changes *postgres.Changes) (*model.User, error) {
	if uuid.Validate(id) != nil {
		return nil, userserrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query, args := postgres.BuildUpdate("users", "id", id, changes, userColumns)

	var user model.User
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, userserrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

func (r *postgresUserRepository) UpdatePassword(ctx context.Context, id string, hash string) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return userserrors.ErrNotFound
	}
	return nil
}

func (r *postgresUserRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
