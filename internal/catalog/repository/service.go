package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	catalogerrors "freezefit/internal/catalog/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	"freezefit/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultOperationTimeout = 5 * time.Second

	serviceColumns = `id, institute_id, name, description, category, duration_min, price, currency,
		max_participants, is_active, created_at, updated_at`
)

type ServiceRepository interface {
	Create(ctx context.Context, svc *model.Service) error
	FindByID(ctx context.Context, id string) (*model.Service, error)
	FindByInstitute(ctx context.Context, instituteID string, includeInactive bool, limit int, offset int) ([]*model.Service, error)
	CountByInstitute(ctx context.Context, instituteID string, includeInactive bool) (int64, error)
	Update(ctx context.Context, id string, changes *postgres.Changes) (*model.Service, error)
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type postgresServiceRepository struct {
	db        *sqlx.DB
	txManager postgres.TransactionManager
}

func NewPostgresServiceRepository(cfg *config.Config) ServiceRepository {
	return &postgresServiceRepository{
		db:        cfg.DB,
		txManager: postgres.NewTransactionManager(cfg.DB),
	}
}

func (r *postgresServiceRepository) Create(ctx context.Context, svc *model.Service) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query := `
		INSERT INTO services (institute_id, name, description, category, duration_min, price, currency,
			max_participants, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	row := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, query,
		svc.InstituteID, svc.Name, svc.Description, svc.Category, svc.DurationMin, svc.Price,
		svc.Currency, svc.MaxParticipants, svc.IsActive)
	if err := row.Scan(&svc.ID, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return catalogerrors.ErrInstituteNotFound
		}
		return fmt.Errorf("failed to insert service: %w", err)
	}
	return nil
}

func (r *postgresServiceRepository) FindByID(ctx context.Context, id string) (*model.Service, error) {
	if uuid.Validate(id) != nil {
		return nil, catalogerrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var svc model.Service
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &svc,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalogerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find service: %w", err)
	}
	return &svc, nil
}

func (r *postgresServiceRepository) FindByInstitute(ctx context.Context, instituteID string, includeInactive bool, limit int, offset int) ([]*model.Service, error) {
	if uuid.Validate(instituteID) != nil {
		return nil, catalogerrors.ErrInstituteNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	services := []*model.Service{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &services, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE institute_id = $1 AND (is_active OR $2)
		ORDER BY category, price, name
		LIMIT $3 OFFSET $4`, instituteID, includeInactive, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

func (r *postgresServiceRepository) CountByInstitute(ctx context.Context, instituteID string, includeInactive bool) (int64, error) {
	if uuid.Validate(instituteID) != nil {
		return 0, catalogerrors.ErrInstituteNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var count int64
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &count,
		`SELECT COUNT(*) FROM services WHERE institute_id = $1 AND (is_active OR $2)`, instituteID, includeInactive)
	if err != nil {
		return 0, fmt.Errorf("failed to count services: %w", err)
	}
	return count, nil
}

func (r *postgresServiceRepository) Update(ctx context.Context, id string, changes *postgres.Changes) (*model.Service, error) {
	if uuid.Validate(id) != nil {
		return nil, catalogerrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query, args := postgres.BuildUpdate("services", "id", id, changes, serviceColumns)

	var svc model.Service
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &svc, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalogerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update service: %w", err)
	}
	return &svc, nil
}

func (r *postgresServiceRepository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return catalogerrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return catalogerrors.ErrNotFound
	}
	return nil
}

func (r *postgresServiceRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
