package repository

import (
	"context"
	"testing"

	hourserrors "freezefit/internal/businesshours/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const instituteID = "3c1f5b0e-8a7d-4f2e-9b6c-1d2e3f4a5b6c"

func newRepo(t *testing.T) (HoursRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresHoursRepository(&config.Config{DB: sqlx.NewDb(db, "sqlmock")}), mock
}

func TestFindDay_Missing(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`(?s)SELECT institute_id, weekday.*FROM business_hours WHERE institute_id = \$1 AND weekday = \$2`).
		WithArgs(instituteID, 3).
		WillReturnRows(sqlmock.NewRows([]string{"institute_id", "weekday", "open_time", "close_time", "is_closed"}))

	day, err := repo.FindDay(context.Background(), instituteID, 3)
	require.NoError(t, err)
	assert.Nil(t, day)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDay(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`(?s)FROM business_hours WHERE institute_id = \$1 AND weekday = \$2`).
		WithArgs(instituteID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"institute_id", "weekday", "open_time", "close_time", "is_closed"}).
			AddRow(instituteID, 1, "09:00", "18:00", false))

	day, err := repo.FindDay(context.Background(), instituteID, 1)
	require.NoError(t, err)
	require.NotNil(t, day)
	assert.Equal(t, "09:00", day.OpenTime)
	assert.Equal(t, "18:00", day.CloseTime)
}

func TestFindWeek_InvalidID(t *testing.T) {
	repo, _ := newRepo(t)

	_, err := repo.FindWeek(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, hourserrors.ErrInvalidID)
}

func TestReplaceWeek(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(`DELETE FROM business_hours WHERE institute_id = \$1`).
		WithArgs(instituteID).
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec(`INSERT INTO business_hours`).
		WithArgs(instituteID, 1, "09:00", "18:00", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO business_hours`).
		WithArgs(instituteID, 0, "", "", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ReplaceWeek(context.Background(), instituteID, []model.BusinessHours{
		{Weekday: 1, OpenTime: "09:00", CloseTime: "18:00"},
		{Weekday: 0, IsClosed: true},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceWeek_UnknownInstitute(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(`DELETE FROM business_hours`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO business_hours`).WillReturnError(&pq.Error{Code: "23503"})

	err := repo.ReplaceWeek(context.Background(), instituteID, []model.BusinessHours{{Weekday: 2, IsClosed: true}})
	assert.ErrorIs(t, err, hourserrors.ErrInstituteNotFound)
}

func TestCreateClosure_Duplicate(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`INSERT INTO closures`).
		WithArgs(instituteID, "2026-12-24", "Heiligabend").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateClosure(context.Background(), &model.Closure{InstituteID: instituteID, Date: "2026-12-24", Reason: "Heiligabend"})
	assert.ErrorIs(t, err, hourserrors.ErrClosureExists)
}

func TestIsClosedOn(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(instituteID, "2026-12-25").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	closed, err := repo.IsClosedOn(context.Background(), instituteID, "2026-12-25")
	require.NoError(t, err)
	assert.True(t, closed)
}

func TestDeleteClosure_NotFound(t *testing.T) {
	repo, mock := newRepo(t)
	id := "9b2e4c1a-0f3d-4e5b-8a6c-7d8e9f0a1b2c"

	mock.ExpectExec(`DELETE FROM closures WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteClosure(context.Background(), id)
	assert.ErrorIs(t, err, hourserrors.ErrClosureNotFound)
}
