package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	appointmenterrors "freezefit/internal/appointments/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	"freezefit/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const (
	defaultOperationTimeout = 5 * time.Second

	appointmentColumns = `a.id, a.customer_id, a.institute_id, a.service_id, a.therapist_id, a.start_time,
		a.end_time, a.status, a.notes, a.price, a.currency, a.cancel_reason, a.reminder_sent_at,
		a.points_awarded, s.name AS service_name, i.name AS institute_name, a.created_at, a.updated_at`

	appointmentFrom = ` FROM appointments a
		JOIN services s ON s.id = a.service_id
		JOIN institutes i ON i.id = a.institute_id`

	// Statuses that hold a slot.
	activeStatuses = `('pending', 'confirmed', 'completed')`
)

// BookingTarget is the service being booked together with the institute
// fields booking rules need.
type BookingTarget struct {
	ServiceID       string          `db:"service_id"`
	InstituteID     string          `db:"institute_id"`
	ServiceName     string          `db:"service_name"`
	DurationMin     int             `db:"duration_min"`
	Price           decimal.Decimal `db:"price"`
	Currency        string          `db:"currency"`
	MaxParticipants int             `db:"max_participants"`
	ServiceActive   bool            `db:"service_active"`
	InstituteName   string          `db:"institute_name"`
	InstituteActive bool            `db:"institute_active"`
	Timezone        string          `db:"timezone"`
}

type TherapistRef struct {
	ID          string `db:"id"`
	InstituteID string `db:"institute_id"`
	IsActive    bool   `db:"is_active"`
}

// Contacts carries everything notifications need about an appointment.
type Contacts struct {
	CustomerID    string `db:"customer_id"`
	CustomerEmail string `db:"customer_email"`
	CustomerName  string `db:"customer_name"`
	OwnerID       string `db:"owner_id"`
	OwnerEmail    string `db:"owner_email"`
	OwnerName     string `db:"owner_name"`
	Timezone      string `db:"timezone"`
}

type TimeRange struct {
	StartTime time.Time `db:"start_time"`
	EndTime   time.Time `db:"end_time"`
}

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *model.Appointment) error
	FindByID(ctx context.Context, id string) (*model.Appointment, error)
	FindByCustomer(ctx context.Context, customerID string, filter *model.AppointmentFilter) ([]*model.Appointment, error)
	CountByCustomer(ctx context.Context, customerID string, filter *model.AppointmentFilter) (int64, error)
	FindByInstitute(ctx context.Context, instituteID string, filter *model.AppointmentFilter) ([]*model.Appointment, error)
	CountByInstitute(ctx context.Context, instituteID string, filter *model.AppointmentFilter) (int64, error)
	FindTarget(ctx context.Context, serviceID string) (*BookingTarget, error)
	FindTherapist(ctx context.Context, therapistID string) (*TherapistRef, error)
	FindContacts(ctx context.Context, appointmentID string) (*Contacts, error)
	LockInstituteDay(ctx context.Context, instituteID string, day time.Time) error
	CountOverlapping(ctx context.Context, serviceID string, start, end time.Time, excludeID string) (int, error)
	TherapistBusy(ctx context.Context, therapistID string, start, end time.Time, excludeID string) (bool, error)
	BookedRanges(ctx context.Context, serviceID string, from, to time.Time) ([]TimeRange, error)
	UpdateStatus(ctx context.Context, id string, from string, to string, reason string) error
	Reschedule(ctx context.Context, id string, start, end time.Time) error
	SetPointsAwarded(ctx context.Context, id string, points int) error
	ClaimDueReminders(ctx context.Context, now time.Time, until time.Time, limit int) ([]*model.Appointment, error)
	ExpirePending(ctx context.Context, before time.Time, reason string) ([]*model.Appointment, error)
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type postgresAppointmentRepository struct {
	db        *sqlx.DB
	txManager postgres.TransactionManager
}

func NewPostgresAppointmentRepository(cfg *config.Config) AppointmentRepository {
	return &postgresAppointmentRepository{
		db:        cfg.DB,
		txManager: postgres.NewTransactionManager(cfg.DB),
	}
}

func (r *postgresAppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query := `
		INSERT INTO appointments (customer_id, institute_id, service_id, therapist_id, start_time, end_time,
			status, notes, price, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	row := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, query,
		a.CustomerID, a.InstituteID, a.ServiceID, a.TherapistID, a.StartTime, a.EndTime,
		a.Status, a.Notes, a.Price, a.Currency)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return appointmenterrors.ErrServiceNotFound
		}
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}

func (r *postgresAppointmentRepository) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	if uuid.Validate(id) != nil {
		return nil, appointmenterrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var a model.Appointment
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &a,
		`SELECT `+appointmentColumns+appointmentFrom+` WHERE a.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appointmenterrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return &a, nil
}

func (r *postgresAppointmentRepository) FindByCustomer(ctx context.Context, customerID string, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	w := filterWhere("a.customer_id", customerID, filter)
	order := "a.start_time DESC"
	if filter.Upcoming {
		order = "a.start_time ASC"
	}
	return r.list(ctx, w, order, filter.Limit, filter.Offset)
}

func (r *postgresAppointmentRepository) CountByCustomer(ctx context.Context, customerID string, filter *model.AppointmentFilter) (int64, error) {
	return r.count(ctx, filterWhere("a.customer_id", customerID, filter))
}

func (r *postgresAppointmentRepository) FindByInstitute(ctx context.Context, instituteID string, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	return r.list(ctx, filterWhere("a.institute_id", instituteID, filter), "a.start_time ASC", filter.Limit, filter.Offset)
}

func (r *postgresAppointmentRepository) CountByInstitute(ctx context.Context, instituteID string, filter *model.AppointmentFilter) (int64, error) {
	return r.count(ctx, filterWhere("a.institute_id", instituteID, filter))
}

// filterWhere builds the shared predicate for list and count so both see the
// same placeholders.
func filterWhere(ownerColumn, ownerID string, filter *model.AppointmentFilter) *postgres.Where {
	w := &postgres.Where{}
	w.Add(ownerColumn+" = ?", ownerID)
	if filter.Status != "" {
		w.Add("a.status = ?", filter.Status)
	}
	if filter.Upcoming {
		w.Add("a.start_time >= now()")
		w.Add("a.status IN ('pending', 'confirmed')")
	}
	if filter.From != nil {
		w.Add("a.start_time >= ?", *filter.From)
	}
	if filter.To != nil {
		w.Add("a.start_time < ?", *filter.To)
	}
	return w
}

func (r *postgresAppointmentRepository) list(ctx context.Context, w *postgres.Where, order string, limit, offset int) ([]*model.Appointment, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	args := w.Args()
	query := fmt.Sprintf(`SELECT %s%s%s ORDER BY %s, a.id LIMIT $%d OFFSET $%d`,
		appointmentColumns, appointmentFrom, w.SQL(), order, len(args)+1, len(args)+2)

	appointments := []*model.Appointment{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &appointments, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *postgresAppointmentRepository) count(ctx context.Context, w *postgres.Where) (int64, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var count int64
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &count,
		`SELECT COUNT(*) FROM appointments a`+w.SQL(), w.Args()...)
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

func (r *postgresAppointmentRepository) FindTarget(ctx context.Context, serviceID string) (*BookingTarget, error) {
	if uuid.Validate(serviceID) != nil {
		return nil, appointmenterrors.ErrServiceNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var target BookingTarget
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &target, `
		SELECT s.id AS service_id, s.institute_id, s.name AS service_name, s.duration_min, s.price,
			s.currency, s.max_participants, s.is_active AS service_active,
			i.name AS institute_name, i.is_active AS institute_active, i.timezone
		FROM services s
		JOIN institutes i ON i.id = s.institute_id
		WHERE s.id = $1`, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appointmenterrors.ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}
	return &target, nil
}

func (r *postgresAppointmentRepository) FindTherapist(ctx context.Context, therapistID string) (*TherapistRef, error) {
	if uuid.Validate(therapistID) != nil {
		return nil, appointmenterrors.ErrTherapistNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var ref TherapistRef
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &ref,
		`SELECT id, institute_id, is_active FROM therapists WHERE id = $1`, therapistID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appointmenterrors.ErrTherapistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load therapist: %w", err)
	}
	return &ref, nil
}

func (r *postgresAppointmentRepository) FindContacts(ctx context.Context, appointmentID string) (*Contacts, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var c Contacts
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &c, `
		SELECT c.id AS customer_id, c.email AS customer_email, c.name AS customer_name,
			o.id AS owner_id, o.email AS owner_email, o.name AS owner_name, i.timezone
		FROM appointments a
		JOIN users c ON c.id = a.customer_id
		JOIN institutes i ON i.id = a.institute_id
		JOIN users o ON o.id = i.owner_id
		WHERE a.id = $1`, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appointmenterrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load appointment contacts: %w", err)
	}
	return &c, nil
}

// LockInstituteDay serializes bookings for one institute and local day until
// the surrounding transaction ends. Must run inside a transaction.
func (r *postgresAppointmentRepository) LockInstituteDay(ctx context.Context, instituteID string, day time.Time) error {
	key := fmt.Sprintf("appointment_lock_%s_%s", instituteID, day.Format("20060102"))
	_, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	if err != nil {
		return fmt.Errorf("failed to acquire slot lock: %w", err)
	}
	return nil
}

func (r *postgresAppointmentRepository) CountOverlapping(ctx context.Context, serviceID string, start, end time.Time, excludeID string) (int, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var n int
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &n, `
		SELECT COUNT(*) FROM appointments
		WHERE service_id = $1 AND status IN `+activeStatuses+`
			AND start_time < $3 AND end_time > $2
			AND id::text <> $4`, serviceID, start, end, excludeID)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping appointments: %w", err)
	}
	return n, nil
}

func (r *postgresAppointmentRepository) TherapistBusy(ctx context.Context, therapistID string, start, end time.Time, excludeID string) (bool, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var busy bool
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &busy, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE therapist_id = $1 AND status IN `+activeStatuses+`
				AND start_time < $3 AND end_time > $2
				AND id::text <> $4)`, therapistID, start, end, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check therapist schedule: %w", err)
	}
	return busy, nil
}

// BookedRanges returns the slots held for serviceID that overlap [from, to).
func (r *postgresAppointmentRepository) BookedRanges(ctx context.Context, serviceID string, from, to time.Time) ([]TimeRange, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	ranges := []TimeRange{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &ranges, `
		SELECT start_time, end_time FROM appointments
		WHERE service_id = $1 AND status IN `+activeStatuses+`
			AND start_time < $3 AND end_time > $2
		ORDER BY start_time`, serviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load booked slots: %w", err)
	}
	return ranges, nil
}

// UpdateStatus moves the appointment from one status to another. It reports
// ErrNotFound when the row is gone or no longer in status from.
func (r *postgresAppointmentRepository) UpdateStatus(ctx context.Context, id string, from string, to string, reason string) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `
		UPDATE appointments SET status = $3, cancel_reason = $4, updated_at = now()
		WHERE id = $1 AND status = $2`, id, from, to, reason)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return appointmenterrors.ErrNotFound
	}
	return nil
}

func (r *postgresAppointmentRepository) Reschedule(ctx context.Context, id string, start, end time.Time) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `
		UPDATE appointments SET start_time = $2, end_time = $3, reminder_sent_at = NULL, updated_at = now()
		WHERE id = $1`, id, start, end)
	if err != nil {
		return fmt.Errorf("failed to reschedule appointment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return appointmenterrors.ErrNotFound
	}
	return nil
}

func (r *postgresAppointmentRepository) SetPointsAwarded(ctx context.Context, id string, points int) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	_, err := postgres.Querier(ctx, r.db).ExecContext(ctx,
		`UPDATE appointments SET points_awarded = $2, updated_at = now() WHERE id = $1`, id, points)
	if err != nil {
		return fmt.Errorf("failed to record awarded points: %w", err)
	}
	return nil
}

// ClaimDueReminders stamps reminder_sent_at on up to limit confirmed
// appointments starting in [now, until] and returns them. Rows locked by a
// concurrent claim are skipped, so each appointment is returned once.
func (r *postgresAppointmentRepository) ClaimDueReminders(ctx context.Context, now time.Time, until time.Time, limit int) ([]*model.Appointment, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	claimed := []*model.Appointment{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &claimed, `
		WITH claimed AS (
			UPDATE appointments SET reminder_sent_at = $1
			WHERE id IN (
				SELECT id FROM appointments
				WHERE status = 'confirmed' AND reminder_sent_at IS NULL
					AND start_time >= $1 AND start_time <= $2
				ORDER BY start_time
				LIMIT $3
				FOR UPDATE SKIP LOCKED
			)
			RETURNING *
		)
		SELECT `+appointmentColumns+`
		FROM claimed a
		JOIN services s ON s.id = a.service_id
		JOIN institutes i ON i.id = a.institute_id
		ORDER BY a.start_time`, now, until, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due reminders: %w", err)
	}
	return claimed, nil
}

// ExpirePending cancels pending appointments that started before the given
// time and returns them.
func (r *postgresAppointmentRepository) ExpirePending(ctx context.Context, before time.Time, reason string) ([]*model.Appointment, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	expired := []*model.Appointment{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &expired, `
		WITH expired AS (
			UPDATE appointments SET status = 'cancelled', cancel_reason = $2, updated_at = now()
			WHERE status = 'pending' AND start_time < $1
			RETURNING *
		)
		SELECT `+appointmentColumns+`
		FROM expired a
		JOIN services s ON s.id = a.service_id
		JOIN institutes i ON i.id = a.institute_id`, before, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to expire pending appointments: %w", err)
	}
	return expired, nil
}

func (r *postgresAppointmentRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
