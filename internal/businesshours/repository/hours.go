package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	hourserrors "freezefit/internal/businesshours/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	"freezefit/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultOperationTimeout = 5 * time.Second

	hoursColumns = `institute_id, weekday,
		COALESCE(to_char(open_time, 'HH24:MI'), '') AS open_time,
		COALESCE(to_char(close_time, 'HH24:MI'), '') AS close_time,
		is_closed`

	closureColumns = `id, institute_id, to_char(date, 'YYYY-MM-DD') AS date, reason, created_at`
)

type HoursRepository interface {
	FindWeek(ctx context.Context, instituteID string) ([]model.BusinessHours, error)
	FindDay(ctx context.Context, instituteID string, weekday int) (*model.BusinessHours, error)
	ReplaceWeek(ctx context.Context, instituteID string, days []model.BusinessHours) error
	FindClosures(ctx context.Context, instituteID string, from string) ([]*model.Closure, error)
	FindClosure(ctx context.Context, id string) (*model.Closure, error)
	IsClosedOn(ctx context.Context, instituteID string, date string) (bool, error)
	CreateClosure(ctx context.Context, closure *model.Closure) error
	DeleteClosure(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type postgresHoursRepository struct {
	db        *sqlx.DB
	txManager postgres.TransactionManager
}

func NewPostgresHoursRepository(cfg *config.Config) HoursRepository {
	return &postgresHoursRepository{
		db:        cfg.DB,
		txManager: postgres.NewTransactionManager(cfg.DB),
	}
}

func (r *postgresHoursRepository) FindWeek(ctx context.Context, instituteID string) ([]model.BusinessHours, error) {
	if uuid.Validate(instituteID) != nil {
		return nil, hourserrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	days := []model.BusinessHours{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &days,
		`SELECT `+hoursColumns+` FROM business_hours WHERE institute_id = $1 ORDER BY weekday`, instituteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load business hours: %w", err)
	}
	return days, nil
}

// FindDay returns nil without error when no hours are stored for weekday.
func (r *postgresHoursRepository) FindDay(ctx context.Context, instituteID string, weekday int) (*model.BusinessHours, error) {
	if uuid.Validate(instituteID) != nil {
		return nil, hourserrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var day model.BusinessHours
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &day,
		`SELECT `+hoursColumns+` FROM business_hours WHERE institute_id = $1 AND weekday = $2`, instituteID, weekday)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load business hours: %w", err)
	}
	return &day, nil
}

// ReplaceWeek deletes the stored week and inserts days. Run it inside a
// transaction.
func (r *postgresHoursRepository) ReplaceWeek(ctx context.Context, instituteID string, days []model.BusinessHours) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	q := postgres.Querier(ctx, r.db)
	if _, err := q.ExecContext(ctx, `DELETE FROM business_hours WHERE institute_id = $1`, instituteID); err != nil {
		return fmt.Errorf("failed to clear business hours: %w", err)
	}

	for _, d := range days {
		_, err := q.ExecContext(ctx, `
			INSERT INTO business_hours (institute_id, weekday, open_time, close_time, is_closed)
			VALUES ($1, $2, NULLIF($3, '')::time, NULLIF($4, '')::time, $5)`,
			instituteID, d.Weekday, d.OpenTime, d.CloseTime, d.IsClosed)
		if err != nil {
			if postgres.IsForeignKeyViolation(err) {
				return hourserrors.ErrInstituteNotFound
			}
			return fmt.Errorf("failed to insert business hours for weekday %d: %w", d.Weekday, err)
		}
	}
	return nil
}

func (r *postgresHoursRepository) FindClosures(ctx context.Context, instituteID string, from string) ([]*model.Closure, error) {
	if uuid.Validate(instituteID) != nil {
		return nil, hourserrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	closures := []*model.Closure{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &closures, `
		SELECT `+closureColumns+`
		FROM closures
		WHERE institute_id = $1 AND date >= $2::date
		ORDER BY date`, instituteID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to list closures: %w", err)
	}
	return closures, nil
}

func (r *postgresHoursRepository) FindClosure(ctx context.Context, id string) (*model.Closure, error) {
	if uuid.Validate(id) != nil {
		return nil, hourserrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var closure model.Closure
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &closure,
		`SELECT `+closureColumns+` FROM closures WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, hourserrors.ErrClosureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find closure: %w", err)
	}
	return &closure, nil
}

func (r *postgresHoursRepository) IsClosedOn(ctx context.Context, instituteID string, date string) (bool, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var closed bool
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &closed,
		`SELECT EXISTS (SELECT 1 FROM closures WHERE institute_id = $1 AND date = $2::date)`, instituteID, date)
	if err != nil {
		return false, fmt.Errorf("failed to check closures: %w", err)
	}
	return closed, nil
}

func (r *postgresHoursRepository) CreateClosure(ctx context.Context, closure *model.Closure) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	err := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, `
		INSERT INTO closures (institute_id, date, reason)
		VALUES ($1, $2::date, $3)
		RETURNING id, created_at`,
		closure.InstituteID, closure.Date, closure.Reason).Scan(&closure.ID, &closure.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return hourserrors.ErrClosureExists
		}
		if postgres.IsForeignKeyViolation(err) {
			return hourserrors.ErrInstituteNotFound
		}
		return fmt.Errorf("failed to insert closure: %w", err)
	}
	return nil
}

func (r *postgresHoursRepository) DeleteClosure(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return hourserrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `DELETE FROM closures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete closure: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return hourserrors.ErrClosureNotFound
	}
	return nil
}

func (r *postgresHoursRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
