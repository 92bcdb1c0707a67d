package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"freezefit/internal/access/accesstest"
	therapisterrors "freezefit/internal/therapists/errors"
	"freezefit/internal/therapists/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/logger"
	"freezefit/pkg/model"
	"freezefit/pkg/validation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTherapistRepository struct {
	therapists  map[string]*model.Therapist
	lastChanges *postgres.Changes
}

func (m *memoryTherapistRepository) Create(_ context.Context, t *model.Therapist) error {
	t.ID = uuid.NewString()
	cp := *t
	m.therapists[t.ID] = &cp
	return nil
}

func (m *memoryTherapistRepository) FindByID(_ context.Context, id string) (*model.Therapist, error) {
	if uuid.Validate(id) != nil {
		return nil, therapisterrors.ErrInvalidID
	}
	t, ok := m.therapists[id]
	if !ok {
		return nil, therapisterrors.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memoryTherapistRepository) FindByInstitute(_ context.Context, instituteID string, includeInactive bool, _ int, _ int) ([]*model.Therapist, error) {
	out := []*model.Therapist{}
	for _, t := range m.therapists {
		if t.InstituteID == instituteID && (t.IsActive || includeInactive) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryTherapistRepository) CountByInstitute(_ context.Context, instituteID string, includeInactive bool) (int64, error) {
	var n int64
	for _, t := range m.therapists {
		if t.InstituteID == instituteID && (t.IsActive || includeInactive) {
			n++
		}
	}
	return n, nil
}

func (m *memoryTherapistRepository) Update(_ context.Context, id string, changes *postgres.Changes) (*model.Therapist, error) {
	m.lastChanges = changes
	cp := *m.therapists[id]
	return &cp, nil
}

func (m *memoryTherapistRepository) Delete(_ context.Context, id string) error {
	delete(m.therapists, id)
	return nil
}

func (m *memoryTherapistRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return fn(ctx)
}

var (
	instituteID = uuid.NewString()
	owner       = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleProvider}
	stranger    = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleProvider}
)

func newTestService() (TherapistService, *memoryTherapistRepository) {
	log := logger.Discard()
	repo := &memoryTherapistRepository{therapists: map[string]*model.Therapist{}}
	owners := accesstest.New().Set(instituteID, owner.UserID)
	return NewTherapistService(repo, validator.NewTherapistValidator(validation.New(log)), owners, &config.Config{Log: log}), repo
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.StatusCode()
}

func TestCreate_Normalizes(t *testing.T) {
	svc, _ := newTestService()
	therapist := &model.Therapist{
		Name:            "  Anna   Kalt ",
		Title:           "<b>Physiotherapeutin</b>",
		Specializations: []string{"Sports Recovery", " sports recovery", "Rheuma", ""},
		ImageURL:        "cdn.example.com/anna.jpg",
	}

	require.NoError(t, svc.Create(context.Background(), owner, instituteID, therapist))

	assert.Equal(t, "Anna Kalt", therapist.Name)
	assert.Equal(t, "Physiotherapeutin", therapist.Title)
	assert.Equal(t, []string{"sports recovery", "rheuma"}, []string(therapist.Specializations))
	assert.Equal(t, "https://cdn.example.com/anna.jpg", therapist.ImageURL)
	assert.Equal(t, instituteID, therapist.InstituteID)
	assert.True(t, therapist.IsActive)
}

func TestCreate_Rejections(t *testing.T) {
	svc, repo := newTestService()

	err := svc.Create(context.Background(), stranger, instituteID, &model.Therapist{Name: "Ben"})
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	err = svc.Create(context.Background(), owner, instituteID, &model.Therapist{Name: "B"})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	assert.Empty(t, repo.therapists)
}

func TestUpdate_Diff(t *testing.T) {
	svc, repo := newTestService()
	therapist := &model.Therapist{Name: "Clara Frost", Specializations: []string{"rheuma"}}
	require.NoError(t, svc.Create(context.Background(), owner, instituteID, therapist))

	same := []string{" Rheuma "}
	_, err := svc.Update(context.Background(), owner, therapist.ID, &model.TherapistUpdate{Specializations: &same})
	require.NoError(t, err)
	assert.Nil(t, repo.lastChanges)

	inactive := false
	bio := "Seit 2015 im Team."
	_, err = svc.Update(context.Background(), owner, therapist.ID, &model.TherapistUpdate{IsActive: &inactive, Bio: &bio})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bio", "is_active"}, repo.lastChanges.Columns())
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newTestService()
	name := "Nobody"

	_, err := svc.Update(context.Background(), owner, uuid.NewString(), &model.TherapistUpdate{Name: &name})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = svc.Update(context.Background(), owner, "42", &model.TherapistUpdate{Name: &name})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestGetByInstitute_HidesInactive(t *testing.T) {
	svc, repo := newTestService()
	therapist := &model.Therapist{Name: "Dora Eis"}
	require.NoError(t, svc.Create(context.Background(), owner, instituteID, therapist))
	repo.therapists[therapist.ID].IsActive = false

	_, total, err := svc.GetByInstitute(context.Background(), nil, instituteID, true, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)

	list, total, err := svc.GetByInstitute(context.Background(), owner, instituteID, true, 20, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)
}

func TestDelete(t *testing.T) {
	svc, repo := newTestService()
	therapist := &model.Therapist{Name: "Emil Schnee"}
	require.NoError(t, svc.Create(context.Background(), owner, instituteID, therapist))

	err := svc.Delete(context.Background(), stranger, therapist.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	require.NoError(t, svc.Delete(context.Background(), owner, therapist.ID))
	assert.Empty(t, repo.therapists)
}
