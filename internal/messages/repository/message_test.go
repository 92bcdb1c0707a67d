package repository

import (
	"context"
	"testing"

	messageerrors "freezefit/internal/messages/errors"
	"freezefit/pkg/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	instituteID = "3c1f5b0e-8a7d-4f2e-9b6c-1d2e3f4a5b6c"
	customerID  = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	ownerID     = "5d6e7f80-1a2b-4c3d-8e4f-5a6b7c8d9e0f"
)

func newRepo(t *testing.T) (MessageRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresMessageRepository(&config.Config{DB: sqlx.NewDb(db, "sqlmock")}), mock
}

var partyColumns = []string{"institute_name", "owner_id", "owner_email", "owner_name", "customer_email", "customer_name"}

func TestFindParties(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`(?s)FROM institutes i.*LEFT JOIN users c ON c.id = \$2.*WHERE i.id = \$1`).
		WithArgs(instituteID, customerID).
		WillReturnRows(sqlmock.NewRows(partyColumns).
			AddRow("Eiszeit", ownerID, "studio@example.com", "Studio", "mia@example.com", "Mia"))

	parties, err := repo.FindParties(context.Background(), instituteID, customerID)
	require.NoError(t, err)
	assert.Equal(t, "Eiszeit", parties.InstituteName)
	assert.Equal(t, "mia@example.com", parties.CustomerEmail)
}

func TestFindParties_UnknownCustomer(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`(?s)FROM institutes i`).
		WillReturnRows(sqlmock.NewRows(partyColumns).
			AddRow("Eiszeit", ownerID, "studio@example.com", "Studio", "", ""))

	_, err := repo.FindParties(context.Background(), instituteID, customerID)
	assert.ErrorIs(t, err, messageerrors.ErrCustomerNotFound)
}

func TestFindParties_InvalidIDs(t *testing.T) {
	repo, _ := newRepo(t)

	_, err := repo.FindParties(context.Background(), "x", customerID)
	assert.ErrorIs(t, err, messageerrors.ErrInstituteNotFound)

	_, err = repo.FindParties(context.Background(), instituteID, "y")
	assert.ErrorIs(t, err, messageerrors.ErrCustomerNotFound)
}

func TestMarkRead(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(`(?s)UPDATE messages SET read_at = now\(\).*sender_id <> \$3 AND read_at IS NULL`).
		WithArgs(instituteID, customerID, ownerID).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.MarkRead(context.Background(), instituteID, customerID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestCountUnread(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\).*m.sender_id <> \$1 AND m.read_at IS NULL`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountUnread(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
