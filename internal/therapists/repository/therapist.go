package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	therapisterrors "freezefit/internal/therapists/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	"freezefit/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	defaultOperationTimeout = 5 * time.Second

	therapistColumns = `id, institute_id, name, title, bio, specializations, image_url, is_active,
		created_at, updated_at`
)

type TherapistRepository interface {
	Create(ctx context.Context, therapist *model.Therapist) error
	FindByID(ctx context.Context, id string) (*model.Therapist, error)
	FindByInstitute(ctx context.Context, instituteID string, includeInactive bool, limit int, offset int) ([]*model.Therapist, error)
	CountByInstitute(ctx context.Context, instituteID string, includeInactive bool) (int64, error)
	Update(ctx context.Context, id string, changes *postgres.Changes) (*model.Therapist, error)
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type postgresTherapistRepository struct {
	db        *sqlx.DB
	txManager postgres.TransactionManager
}

func NewPostgresTherapistRepository(cfg *config.Config) TherapistRepository {
	return &postgresTherapistRepository{
		db:        cfg.DB,
		txManager: postgres.NewTransactionManager(cfg.DB),
	}
}

func (r *postgresTherapistRepository) Create(ctx context.Context, therapist *model.Therapist) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query := `
		INSERT INTO therapists (institute_id, name, title, bio, specializations, image_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	row := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, query,
		therapist.InstituteID, therapist.Name, therapist.Title, therapist.Bio,
		pq.Array([]string(therapist.Specializations)), therapist.ImageURL, therapist.IsActive)
	if err := row.Scan(&therapist.ID, &therapist.CreatedAt, &therapist.UpdatedAt); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return therapisterrors.ErrInstituteNotFound
		}
		return fmt.Errorf("failed to insert therapist: %w", err)
	}
	return nil
}

func (r *postgresTherapistRepository) FindByID(ctx context.Context, id string) (*model.Therapist, error) {
	if uuid.Validate(id) != nil {
		return nil, therapisterrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var therapist model.Therapist
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &therapist,
		`SELECT `+therapistColumns+` FROM therapists WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, therapisterrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find therapist: %w", err)
	}
	return &therapist, nil
}

func (r *postgresTherapistRepository) FindByInstitute(ctx context.Context, instituteID string, includeInactive bool, limit int, offset int) ([]*model.Therapist, error) {
	if uuid.Validate(instituteID) != nil {
		return nil, therapisterrors.ErrInstituteNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	therapists := []*model.Therapist{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &therapists, `
		SELECT `+therapistColumns+`
		FROM therapists
		WHERE institute_id = $1 AND (is_active OR $2)
		ORDER BY name, id
		LIMIT $3 OFFSET $4`, instituteID, includeInactive, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list therapists: %w", err)
	}
	return therapists, nil
}

func (r *postgresTherapistRepository) CountByInstitute(ctx context.Context, instituteID string, includeInactive bool) (int64, error) {
	if uuid.Validate(instituteID) != nil {
		return 0, therapisterrors.ErrInstituteNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var count int64
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &count,
		`SELECT COUNT(*) FROM therapists WHERE institute_id = $1 AND (is_active OR $2)`, instituteID, includeInactive)
	if err != nil {
		return 0, fmt.Errorf("failed to count therapists: %w", err)
	}
	return count, nil
}

func (r *postgresTherapistRepository) Update(ctx context.Context, id string, changes *postgres.Changes) (*model.Therapist, error) {
	if uuid.Validate(id) != nil {
		return nil, therapisterrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query, args := postgres.BuildUpdate("therapists", "id", id, changes, therapistColumns)

	var therapist model.Therapist
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &therapist, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, therapisterrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update therapist: %w", err)
	}
	return &therapist, nil
}

func (r *postgresTherapistRepository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return therapisterrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `DELETE FROM therapists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete therapist: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return therapisterrors.ErrNotFound
	}
	return nil
}

func (r *postgresTherapistRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
