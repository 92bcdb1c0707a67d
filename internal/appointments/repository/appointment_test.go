package repository

import (
	"context"
	"testing"
	"time"

	appointmenterrors "freezefit/internal/appointments/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	instituteID   = "3c1f5b0e-8a7d-4f2e-9b6c-1d2e3f4a5b6c"
	serviceID     = "7a8b9c0d-1e2f-4a3b-8c4d-5e6f7a8b9c0d"
	appointmentID = "9b2e4c1a-0f3d-4e5b-8a6c-7d8e9f0a1b2c"
)

func newRepo(t *testing.T) (AppointmentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresAppointmentRepository(&config.Config{DB: sqlx.NewDb(db, "sqlmock")}), mock
}

func TestFilterWhere(t *testing.T) {
	from := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	w := filterWhere("a.institute_id", instituteID, &model.AppointmentFilter{Status: "confirmed", Upcoming: true, From: &from})

	assert.Equal(t,
		" WHERE a.institute_id = $1 AND a.status = $2 AND a.start_time >= now() AND a.status IN ('pending', 'confirmed') AND a.start_time >= $3",
		w.SQL())
	assert.Equal(t, []any{instituteID, "confirmed", from}, w.Args())
}

func TestLockInstituteDay(t *testing.T) {
	repo, mock := newRepo(t)
	day := time.Date(2026, 11, 2, 23, 30, 0, 0, time.UTC)

	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("appointment_lock_" + instituteID + "_20261102").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.LockInstituteDay(context.Background(), instituteID, day))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountOverlapping(t *testing.T) {
	repo, mock := newRepo(t)
	start := time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) FROM appointments.*status IN \('pending', 'confirmed', 'completed'\).*start_time < \$3 AND end_time > \$2`).
		WithArgs(serviceID, start, end, "").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountOverlapping(context.Background(), serviceID, start, end, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpdateStatus_StaleStatus(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(`(?s)UPDATE appointments SET status = \$3.*WHERE id = \$1 AND status = \$2`).
		WithArgs(appointmentID, "pending", "confirmed", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), appointmentID, "pending", "confirmed", "")
	assert.ErrorIs(t, err, appointmenterrors.ErrNotFound)
}

func TestFindTarget_Missing(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`(?s)FROM services s\s+JOIN institutes i`).
		WithArgs(serviceID).
		WillReturnRows(sqlmock.NewRows([]string{"service_id"}))

	_, err := repo.FindTarget(context.Background(), serviceID)
	assert.ErrorIs(t, err, appointmenterrors.ErrServiceNotFound)

	_, err = repo.FindTarget(context.Background(), "nope")
	assert.ErrorIs(t, err, appointmenterrors.ErrServiceNotFound)
}

func TestFindByID_InvalidID(t *testing.T) {
	repo, _ := newRepo(t)

	_, err := repo.FindByID(context.Background(), "123")
	assert.ErrorIs(t, err, appointmenterrors.ErrInvalidID)
}

func TestClaimDueReminders(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)
	until := now.Add(24 * time.Hour)
	start := time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "customer_id", "institute_id", "service_id", "therapist_id", "start_time",
		"end_time", "status", "notes", "price", "currency", "cancel_reason", "reminder_sent_at",
		"points_awarded", "service_name", "institute_name", "created_at", "updated_at"}).
		AddRow(appointmentID, "u-1", instituteID, serviceID, nil, start,
			start.Add(30*time.Minute), "confirmed", "", "49.90", "EUR", "", now,
			0, "Ganzkörper", "Kältekammer Nord", now, now)

	mock.ExpectQuery(`(?s)WITH claimed AS \(\s*UPDATE appointments SET reminder_sent_at = \$1.*reminder_sent_at IS NULL.*LIMIT \$3\s*FOR UPDATE SKIP LOCKED.*RETURNING \*`).
		WithArgs(now, until, 100).
		WillReturnRows(rows)

	claimed, err := repo.ClaimDueReminders(context.Background(), now, until, 100)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, appointmentID, claimed[0].ID)
	require.NotNil(t, claimed[0].ReminderSentAt)
	assert.True(t, now.Equal(*claimed[0].ReminderSentAt))
	assert.Equal(t, "Ganzkörper", claimed[0].ServiceName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
