package repository

import (
	"context"
	"testing"
	"time"

	favoriteerrors "freezefit/internal/favorites/errors"
	"freezefit/pkg/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userID      = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	instituteID = "3c1f5b0e-8a7d-4f2e-9b6c-1d2e3f4a5b6c"
)

func newRepo(t *testing.T) (FavoriteRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresFavoriteRepository(&config.Config{DB: sqlx.NewDb(db, "sqlmock")}), mock
}

func TestAdd_Idempotent(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(`(?s)INSERT INTO favorites.*ON CONFLICT \(user_id, institute_id\) DO NOTHING`).
		WithArgs(userID, instituteID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT INTO favorites`).
		WithArgs(userID, instituteID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	added, err := repo.Add(context.Background(), userID, instituteID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Add(context.Background(), userID, instituteID)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestAdd_UnknownInstitute(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(`(?s)INSERT INTO favorites`).WillReturnError(&pq.Error{Code: "23503"})

	_, err := repo.Add(context.Background(), userID, instituteID)
	assert.ErrorIs(t, err, favoriteerrors.ErrInstituteNotFound)

	_, err = repo.Add(context.Background(), userID, "not-a-uuid")
	assert.ErrorIs(t, err, favoriteerrors.ErrInstituteNotFound)
}

func TestFindByUser(t *testing.T) {
	repo, mock := newRepo(t)
	added := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)FROM favorites f JOIN institutes i ON i.id = f.institute_id.*LIMIT \$2 OFFSET \$3`).
		WithArgs(userID, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"institute_id", "institute_name", "city", "image_url", "average_rating", "review_count", "created_at"}).
			AddRow(instituteID, "Eiszeit", "Köln", "", 4.5, 12, added))

	favorites, err := repo.FindByUser(context.Background(), userID, 20, 0)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, "Eiszeit", favorites[0].InstituteName)
	assert.Equal(t, 4.5, favorites[0].AverageRating)
}
