package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"freezefit/internal/access/accesstest"
	workshoperrors "freezefit/internal/workshops/errors"
	"freezefit/internal/workshops/repository"
	"freezefit/internal/workshops/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/events"
	"freezefit/pkg/logger"
	"freezefit/pkg/model"
	"freezefit/pkg/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryWorkshopRepository serializes transactions, which stands in for the
// row lock taken by FindByIDForUpdate.
type memoryWorkshopRepository struct {
	tx            sync.Mutex
	mu            sync.Mutex
	workshops     map[string]*model.Workshop
	registrations map[string]map[string]bool
}

func newMemoryRepo() *memoryWorkshopRepository {
	return &memoryWorkshopRepository{
		workshops:     map[string]*model.Workshop{},
		registrations: map[string]map[string]bool{},
	}
}

func (m *memoryWorkshopRepository) Create(_ context.Context, w *model.Workshop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = uuid.NewString()
	cp := *w
	m.workshops[w.ID] = &cp
	m.registrations[w.ID] = map[string]bool{}
	return nil
}

func (m *memoryWorkshopRepository) FindByID(_ context.Context, id string) (*model.Workshop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uuid.Validate(id) != nil {
		return nil, workshoperrors.ErrInvalidID
	}
	w, ok := m.workshops[id]
	if !ok {
		return nil, workshoperrors.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memoryWorkshopRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Workshop, error) {
	return m.FindByID(ctx, id)
}

func (m *memoryWorkshopRepository) FindByInstitute(_ context.Context, instituteID string, upcoming bool, limit int, offset int) ([]*model.Workshop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Workshop{}
	for _, w := range m.workshops {
		if w.InstituteID == instituteID && (!upcoming || w.Status == model.WorkshopScheduled && w.StartsAt.After(fixedNow)) {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryWorkshopRepository) CountByInstitute(ctx context.Context, instituteID string, upcoming bool) (int64, error) {
	list, _ := m.FindByInstitute(ctx, instituteID, upcoming, 0, 0)
	return int64(len(list)), nil
}

func (m *memoryWorkshopRepository) Update(_ context.Context, id string, changes *postgres.Changes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workshops[id]
	if !ok {
		return workshoperrors.ErrNotFound
	}
	for _, col := range changes.Columns() {
		v, _ := changes.Get(col)
		switch col {
		case "title":
			w.Title = v.(string)
		case "capacity":
			w.Capacity = v.(int)
		case "status":
			w.Status = v.(string)
		case "starts_at":
			w.StartsAt = v.(time.Time)
		}
	}
	return nil
}

func (m *memoryWorkshopRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workshops[id]; !ok {
		return workshoperrors.ErrNotFound
	}
	delete(m.workshops, id)
	return nil
}

func (m *memoryWorkshopRepository) CreateRegistration(_ context.Context, workshopID string, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registrations[workshopID][customerID] {
		return workshoperrors.ErrAlreadyRegistered
	}
	m.registrations[workshopID][customerID] = true
	return nil
}

func (m *memoryWorkshopRepository) DeleteRegistration(_ context.Context, workshopID string, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.registrations[workshopID][customerID] {
		return workshoperrors.ErrRegistrationNotFound
	}
	delete(m.registrations[workshopID], customerID)
	return nil
}

func (m *memoryWorkshopRepository) AdjustRegistered(_ context.Context, workshopID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workshops[workshopID].RegisteredCount += delta
	return nil
}

func (m *memoryWorkshopRepository) FindRegistrations(_ context.Context, workshopID string) ([]*model.WorkshopRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.WorkshopRegistration{}
	for customerID := range m.registrations[workshopID] {
		out = append(out, &model.WorkshopRegistration{WorkshopID: workshopID, CustomerID: customerID})
	}
	return out, nil
}

func (m *memoryWorkshopRepository) FindEventContext(_ context.Context, _ string, _ string) (*repository.EventContext, error) {
	return &repository.EventContext{InstituteName: "Eiszeit", Timezone: "Europe/Berlin", CustomerEmail: "kunde@example.com"}, nil
}

func (m *memoryWorkshopRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	m.tx.Lock()
	defer m.tx.Unlock()
	return fn(ctx)
}

var (
	instituteID = uuid.NewString()
	owner       = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleProvider}
	customer    = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleCustomer}

	fixedNow = time.Date(2026, 11, 2, 8, 0, 0, 0, time.UTC)
)

func newService() (*workshopService, *memoryWorkshopRepository, *events.Recorder) {
	log := logger.Discard()
	repo := newMemoryRepo()
	publisher := &events.Recorder{}
	svc := NewWorkshopService(repo, validator.NewWorkshopValidator(validation.New(log)),
		accesstest.New().Set(instituteID, owner.UserID), publisher, &config.Config{Log: log}).(*workshopService)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, publisher
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.StatusCode()
}

func newWorkshop(capacity int) *model.Workshop {
	return &model.Workshop{
		Title:       "Eisbaden für Einsteiger",
		StartsAt:    fixedNow.Add(72 * time.Hour),
		DurationMin: 90,
		Capacity:    capacity,
		Price:       decimal.RequireFromString("25.00"),
	}
}

func createWorkshop(t *testing.T, svc WorkshopService, capacity int) *model.Workshop {
	t.Helper()
	w := newWorkshop(capacity)
	require.NoError(t, svc.Create(context.Background(), owner, instituteID, w))
	return w
}

func TestCreate_Defaults(t *testing.T) {
	svc, _, _ := newService()

	w := newWorkshop(10)
	w.Title = "  <em>Atemtechnik</em>  "
	w.Status = model.WorkshopCancelled
	w.RegisteredCount = 7
	require.NoError(t, svc.Create(context.Background(), owner, instituteID, w))

	assert.Equal(t, "Atemtechnik", w.Title)
	assert.Equal(t, model.WorkshopScheduled, w.Status)
	assert.Equal(t, 0, w.RegisteredCount)
	assert.Equal(t, "EUR", w.Currency)
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		p      *auth.Principal
		mutate func(w *model.Workshop)
		status int
	}{
		{"not the owner", customer, func(*model.Workshop) {}, http.StatusForbidden},
		{"in the past", owner, func(w *model.Workshop) { w.StartsAt = fixedNow.Add(-time.Hour) }, http.StatusUnprocessableEntity},
		{"zero capacity", owner, func(w *model.Workshop) { w.Capacity = 0 }, http.StatusUnprocessableEntity},
		{"short title", owner, func(w *model.Workshop) { w.Title = "Yo" }, http.StatusUnprocessableEntity},
		{"negative price", owner, func(w *model.Workshop) { w.Price = decimal.NewFromInt(-1) }, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newService()
			w := newWorkshop(5)
			tt.mutate(w)
			err := svc.Create(context.Background(), tt.p, instituteID, w)
			assert.Equal(t, tt.status, statusOf(t, err))
			assert.Empty(t, repo.workshops)
		})
	}
}

func TestRegister(t *testing.T) {
	svc, _, publisher := newService()
	w := createWorkshop(t, svc, 5)

	registered, err := svc.Register(context.Background(), customer, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, registered.RegisteredCount)
	assert.Equal(t, 4, registered.SpotsLeft())

	require.Equal(t, []string{events.TypeWorkshopRegistered}, publisher.Types())
	payload := publisher.Events()[0].Payload.(events.WorkshopRegistered)
	assert.Equal(t, customer.UserID, payload.Customer.UserID)
	assert.Equal(t, "Europe/Berlin", payload.Timezone)

	_, err = svc.Register(context.Background(), customer, w.ID)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestRegister_CapacityUnderConcurrency(t *testing.T) {
	svc, repo, _ := newService()
	w := createWorkshop(t, svc, 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, full := 0, 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleCustomer}
			_, err := svc.Register(context.Background(), p, w.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperrors.HasCode(err, apperrors.CodeConflict) {
				full++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, full)
	assert.Equal(t, 3, repo.workshops[w.ID].RegisteredCount)
	assert.Len(t, repo.registrations[w.ID], 3)
}

func TestRegister_CancelledOrPast(t *testing.T) {
	svc, repo, _ := newService()
	w := createWorkshop(t, svc, 5)

	repo.workshops[w.ID].Status = model.WorkshopCancelled
	_, err := svc.Register(context.Background(), customer, w.ID)
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	repo.workshops[w.ID].Status = model.WorkshopScheduled
	repo.workshops[w.ID].StartsAt = fixedNow.Add(-time.Minute)
	_, err = svc.Register(context.Background(), customer, w.ID)
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	_, err = svc.Register(context.Background(), customer, uuid.NewString())
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestUnregister(t *testing.T) {
	svc, repo, _ := newService()
	w := createWorkshop(t, svc, 5)

	_, err := svc.Register(context.Background(), customer, w.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Unregister(context.Background(), customer, w.ID))
	assert.Equal(t, 0, repo.workshops[w.ID].RegisteredCount)

	err = svc.Unregister(context.Background(), customer, w.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestUpdate(t *testing.T) {
	svc, repo, _ := newService()
	w := createWorkshop(t, svc, 5)
	repo.workshops[w.ID].RegisteredCount = 4

	_, err := svc.Update(context.Background(), owner, w.ID, &model.WorkshopUpdate{Capacity: ptr(3)})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	updated, err := svc.Update(context.Background(), owner, w.ID, &model.WorkshopUpdate{Capacity: ptr(8), Status: ptr("Cancelled")})
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Capacity)
	assert.Equal(t, model.WorkshopCancelled, updated.Status)

	_, err = svc.Update(context.Background(), customer, w.ID, &model.WorkshopUpdate{Title: ptr("Gekapert")})
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestUpdate_PastWorkshopKeepsEditable(t *testing.T) {
	svc, repo, _ := newService()
	w := createWorkshop(t, svc, 5)
	repo.workshops[w.ID].StartsAt = fixedNow.Add(-48 * time.Hour)

	updated, err := svc.Update(context.Background(), owner, w.ID, &model.WorkshopUpdate{Title: ptr("Rückblick Eisbaden")})
	require.NoError(t, err)
	assert.Equal(t, "Rückblick Eisbaden", updated.Title)

	_, err = svc.Update(context.Background(), owner, w.ID, &model.WorkshopUpdate{StartsAt: ptr(fixedNow.Add(-time.Hour))})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
}

func TestRegistrations_OwnerOnly(t *testing.T) {
	svc, _, _ := newService()
	w := createWorkshop(t, svc, 5)
	_, err := svc.Register(context.Background(), customer, w.ID)
	require.NoError(t, err)

	list, err := svc.Registrations(context.Background(), owner, w.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Registrations(context.Background(), customer, w.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func ptr[T any](v T) *T { return &v }
