package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	workshoperrors "freezefit/internal/workshops/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	"freezefit/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultOperationTimeout = 5 * time.Second

	workshopColumns = `w.id, w.institute_id, w.title, w.description, w.starts_at, w.duration_min, w.capacity,
		w.price, w.currency, w.registered_count, w.status, i.name AS institute_name, w.created_at, w.updated_at`

	workshopFrom = ` FROM workshops w JOIN institutes i ON i.id = w.institute_id`
)

// EventContext is what the workshop.registered notification needs.
type EventContext struct {
	InstituteName string `db:"institute_name"`
	Timezone      string `db:"timezone"`
	CustomerEmail string `db:"customer_email"`
	CustomerName  string `db:"customer_name"`
}

type WorkshopRepository interface {
	Create(ctx context.Context, workshop *model.Workshop) error
	FindByID(ctx context.Context, id string) (*model.Workshop, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.Workshop, error)
	FindByInstitute(ctx context.Context, instituteID string, upcoming bool, limit int, offset int) ([]*model.Workshop, error)
	CountByInstitute(ctx context.Context, instituteID string, upcoming bool) (int64, error)
	Update(ctx context.Context, id string, changes *postgres.Changes) error
	Delete(ctx context.Context, id string) error
	CreateRegistration(ctx context.Context, workshopID string, customerID string) error
	DeleteRegistration(ctx context.Context, workshopID string, customerID string) error
	AdjustRegistered(ctx context.Context, workshopID string, delta int) error
	FindRegistrations(ctx context.Context, workshopID string) ([]*model.WorkshopRegistration, error)
	FindEventContext(ctx context.Context, workshopID string, customerID string) (*EventContext, error)
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type postgresWorkshopRepository struct {
	db        *sqlx.DB
	txManager postgres.TransactionManager
}

func NewPostgresWorkshopRepository(cfg *config.Config) WorkshopRepository {
	return &postgresWorkshopRepository{
		db:        cfg.DB,
		txManager: postgres.NewTransactionManager(cfg.DB),
	}
}

func (r *postgresWorkshopRepository) Create(ctx context.Context, w *model.Workshop) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query := `
		INSERT INTO workshops (institute_id, title, description, starts_at, duration_min, capacity, price, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, registered_count, created_at, updated_at`

	row := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, query,
		w.InstituteID, w.Title, w.Description, w.StartsAt, w.DurationMin, w.Capacity, w.Price, w.Currency, w.Status)
	if err := row.Scan(&w.ID, &w.RegisteredCount, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return workshoperrors.ErrInstituteNotFound
		}
		return fmt.Errorf("failed to insert workshop: %w", err)
	}
	return nil
}

func (r *postgresWorkshopRepository) FindByID(ctx context.Context, id string) (*model.Workshop, error) {
	return r.find(ctx, id, "")
}

// FindByIDForUpdate locks the workshop row until the surrounding transaction
// ends. Registrations serialize on it.
func (r *postgresWorkshopRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Workshop, error) {
	return r.find(ctx, id, " FOR UPDATE OF w")
}

func (r *postgresWorkshopRepository) find(ctx context.Context, id string, lock string) (*model.Workshop, error) {
	if uuid.Validate(id) != nil {
		return nil, workshoperrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var w model.Workshop
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &w,
		`SELECT `+workshopColumns+workshopFrom+` WHERE w.id = $1`+lock, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workshoperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find workshop: %w", err)
	}
	return &w, nil
}

func (r *postgresWorkshopRepository) FindByInstitute(ctx context.Context, instituteID string, upcoming bool, limit int, offset int) ([]*model.Workshop, error) {
	if uuid.Validate(instituteID) != nil {
		return nil, workshoperrors.ErrInstituteNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	workshops := []*model.Workshop{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &workshops,
		`SELECT `+workshopColumns+workshopFrom+`
		WHERE w.institute_id = $1 AND (NOT $2 OR (w.starts_at >= now() AND w.status = 'scheduled'))
		ORDER BY w.starts_at, w.id
		LIMIT $3 OFFSET $4`, instituteID, upcoming, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list workshops: %w", err)
	}
	return workshops, nil
}

func (r *postgresWorkshopRepository) CountByInstitute(ctx context.Context, instituteID string, upcoming bool) (int64, error) {
	if uuid.Validate(instituteID) != nil {
		return 0, workshoperrors.ErrInstituteNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var count int64
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &count, `
		SELECT COUNT(*) FROM workshops w
		WHERE w.institute_id = $1 AND (NOT $2 OR (w.starts_at >= now() AND w.status = 'scheduled'))`,
		instituteID, upcoming)
	if err != nil {
		return 0, fmt.Errorf("failed to count workshops: %w", err)
	}
	return count, nil
}

func (r *postgresWorkshopRepository) Update(ctx context.Context, id string, changes *postgres.Changes) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query, args := postgres.BuildUpdate("workshops", "id", id, changes, "")
	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update workshop: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return workshoperrors.ErrNotFound
	}
	return nil
}

func (r *postgresWorkshopRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `DELETE FROM workshops WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workshop: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return workshoperrors.ErrNotFound
	}
	return nil
}

func (r *postgresWorkshopRepository) CreateRegistration(ctx context.Context, workshopID string, customerID string) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	_, err := postgres.Querier(ctx, r.db).ExecContext(ctx,
		`INSERT INTO workshop_registrations (workshop_id, customer_id) VALUES ($1, $2)`, workshopID, customerID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return workshoperrors.ErrAlreadyRegistered
		}
		return fmt.Errorf("failed to insert workshop registration: %w", err)
	}
	return nil
}

func (r *postgresWorkshopRepository) DeleteRegistration(ctx context.Context, workshopID string, customerID string) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx,
		`DELETE FROM workshop_registrations WHERE workshop_id = $1 AND customer_id = $2`, workshopID, customerID)
	if err != nil {
		return fmt.Errorf("failed to delete workshop registration: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return workshoperrors.ErrRegistrationNotFound
	}
	return nil
}

func (r *postgresWorkshopRepository) AdjustRegistered(ctx context.Context, workshopID string, delta int) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	_, err := postgres.Querier(ctx, r.db).ExecContext(ctx,
		`UPDATE workshops SET registered_count = registered_count + $2, updated_at = now() WHERE id = $1`,
		workshopID, delta)
	if err != nil {
		return fmt.Errorf("failed to update registered count: %w", err)
	}
	return nil
}

func (r *postgresWorkshopRepository) FindRegistrations(ctx context.Context, workshopID string) ([]*model.WorkshopRegistration, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	registrations := []*model.WorkshopRegistration{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &registrations, `
		SELECT wr.id, wr.workshop_id, wr.customer_id, u.name AS customer_name, wr.created_at
		FROM workshop_registrations wr JOIN users u ON u.id = wr.customer_id
		WHERE wr.workshop_id = $1
		ORDER BY wr.created_at, wr.id`, workshopID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workshop registrations: %w", err)
	}
	return registrations, nil
}

func (r *postgresWorkshopRepository) FindEventContext(ctx context.Context, workshopID string, customerID string) (*EventContext, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var ec EventContext
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &ec, `
		SELECT i.name AS institute_name, i.timezone, u.email AS customer_email, u.name AS customer_name
		FROM workshops w
		JOIN institutes i ON i.id = w.institute_id
		JOIN users u ON u.id = $2
		WHERE w.id = $1`, workshopID, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workshoperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workshop event context: %w", err)
	}
	return &ec, nil
}

func (r *postgresWorkshopRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
