package access

import (
	"context"
	"testing"

	"freezefit/pkg/auth"
	apperrors "freezefit/pkg/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const instituteID = "0b0d5c1e-3f4a-4c2b-9a7e-8f1d2c3b4a5e"

func newChecker(t *testing.T) (Checker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewChecker(sqlx.NewDb(db, "sqlmock")), mock
}

func expectOwner(mock sqlmock.Sqlmock, owner string) {
	mock.ExpectQuery(`SELECT owner_id FROM institutes WHERE id = \$1`).
		WithArgs(instituteID).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(owner))
}

func TestRequireInstituteOwner(t *testing.T) {
	tests := []struct {
		name      string
		principal *auth.Principal
		owner     string
		wantCode  string
	}{
		{name: "owner", principal: &auth.Principal{UserID: "u-1", Role: auth.RoleProvider}, owner: "u-1"},
		{name: "admin", principal: &auth.Principal{UserID: "root", Role: auth.RoleAdmin}, owner: "u-1"},
		{name: "other provider", principal: &auth.Principal{UserID: "u-2", Role: auth.RoleProvider}, owner: "u-1", wantCode: apperrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker, mock := newChecker(t)
			expectOwner(mock, tt.owner)

			err := checker.RequireInstituteOwner(context.Background(), tt.principal, instituteID)
			if tt.wantCode == "" {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRequireInstituteOwner_Missing(t *testing.T) {
	checker, mock := newChecker(t)
	mock.ExpectQuery(`SELECT owner_id FROM institutes`).
		WithArgs(instituteID).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}))

	err := checker.RequireInstituteOwner(context.Background(), &auth.Principal{UserID: "u-1", Role: auth.RoleProvider}, instituteID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestRequireInstituteOwner_InvalidIDSkipsQuery(t *testing.T) {
	checker, mock := newChecker(t)

	err := checker.RequireInstituteOwner(context.Background(), &auth.Principal{UserID: "u-1"}, "not-a-uuid")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireInstituteOwner_Anonymous(t *testing.T) {
	checker, _ := newChecker(t)
	err := checker.RequireInstituteOwner(context.Background(), nil, instituteID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestIsInstituteOwner(t *testing.T) {
	checker, mock := newChecker(t)
	expectOwner(mock, "u-1")

	ok, err := checker.IsInstituteOwner(context.Background(), &auth.Principal{UserID: "u-1"}, instituteID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.IsInstituteOwner(context.Background(), nil, instituteID)
	require.NoError(t, err)
	assert.False(t, ok)
}
