package service

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"freezefit/internal/access/accesstest"
	reviewerrors "freezefit/internal/reviews/errors"
	"freezefit/internal/reviews/repository"
	"freezefit/internal/reviews/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/events"
	"freezefit/pkg/logger"
	"freezefit/pkg/model"
	"freezefit/pkg/validation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type aggregate struct {
	average float64
	count   int
}

type memoryReviewRepository struct {
	mu           sync.Mutex
	reviews      map[string]*model.Review
	appointments map[string]*repository.AppointmentRef
	aggregates   map[string]aggregate
	names        map[string]string
}

func newMemoryRepo() *memoryReviewRepository {
	return &memoryReviewRepository{
		reviews:      map[string]*model.Review{},
		appointments: map[string]*repository.AppointmentRef{},
		aggregates:   map[string]aggregate{},
		names:        map[string]string{},
	}
}

func (m *memoryReviewRepository) Create(_ context.Context, review *model.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.InstituteID == review.InstituteID && r.CustomerID == review.CustomerID {
			return reviewerrors.ErrAlreadyReviewed
		}
	}
	review.ID = uuid.NewString()
	review.CreatedAt = time.Now()
	cp := *review
	cp.CustomerName = m.names[review.CustomerID]
	m.reviews[review.ID] = &cp
	return nil
}

func (m *memoryReviewRepository) FindByID(_ context.Context, id string) (*model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uuid.Validate(id) != nil {
		return nil, reviewerrors.ErrInvalidID
	}
	r, ok := m.reviews[id]
	if !ok {
		return nil, reviewerrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memoryReviewRepository) FindByInstitute(_ context.Context, instituteID string, order string, limit int, offset int) ([]*model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Review{}
	for _, r := range m.reviews {
		if r.InstituteID == instituteID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		switch order {
		case model.ReviewSortRatingHigh:
			return out[i].Rating > out[j].Rating
		case model.ReviewSortRatingLow:
			return out[i].Rating < out[j].Rating
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []*model.Review{}, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (m *memoryReviewRepository) CountByInstitute(_ context.Context, instituteID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.reviews {
		if r.InstituteID == instituteID {
			n++
		}
	}
	return n, nil
}

func (m *memoryReviewRepository) Update(_ context.Context, id string, changes *postgres.Changes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return reviewerrors.ErrNotFound
	}
	for _, col := range changes.Columns() {
		v, _ := changes.Get(col)
		switch col {
		case "rating":
			r.Rating = v.(int)
		case "title":
			r.Title = v.(string)
		case "comment":
			r.Comment = v.(string)
		}
	}
	return nil
}

func (m *memoryReviewRepository) SetReply(_ context.Context, id string, reply string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return reviewerrors.ErrNotFound
	}
	r.ProviderReply = reply
	r.RepliedAt = &at
	return nil
}

func (m *memoryReviewRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[id]; !ok {
		return reviewerrors.ErrNotFound
	}
	delete(m.reviews, id)
	return nil
}

func (m *memoryReviewRepository) RecomputeAggregates(_ context.Context, instituteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum, n := 0, 0
	for _, r := range m.reviews {
		if r.InstituteID == instituteID {
			sum += r.Rating
			n++
		}
	}
	agg := aggregate{count: n}
	if n > 0 {
		agg.average = float64(sum) / float64(n)
	}
	m.aggregates[instituteID] = agg
	return nil
}

func (m *memoryReviewRepository) FindAppointment(_ context.Context, appointmentID string) (*repository.AppointmentRef, error) {
	ref, ok := m.appointments[appointmentID]
	if !ok {
		return nil, reviewerrors.ErrAppointmentNotFound
	}
	return ref, nil
}

func (m *memoryReviewRepository) FindContacts(_ context.Context, _ string) (*repository.Contacts, error) {
	return &repository.Contacts{InstituteName: "Eiszeit", OwnerID: owner.UserID, OwnerEmail: "studio@example.com"}, nil
}

func (m *memoryReviewRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return fn(ctx)
}

type stubLoyalty struct {
	awarded []string
}

func (l *stubLoyalty) AwardReviewBonus(_ context.Context, userID string, _ string) (int, error) {
	l.awarded = append(l.awarded, userID)
	return 25, nil
}

type stubCache struct {
	invalidated []string
}

func (c *stubCache) Invalidate(_ context.Context, id string) {
	c.invalidated = append(c.invalidated, id)
}

var (
	instituteID = uuid.NewString()
	owner       = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleProvider}
	customer    = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleCustomer}
	other       = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleCustomer}
	admin       = &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleAdmin}
)

type fixture struct {
	svc       ReviewService
	repo      *memoryReviewRepository
	loyalty   *stubLoyalty
	cache     *stubCache
	publisher *events.Recorder
}

func newFixture() *fixture {
	log := logger.Discard()
	repo := newMemoryRepo()
	repo.names[customer.UserID] = "Mia Kühn"
	loyalty := &stubLoyalty{}
	cache := &stubCache{}
	publisher := &events.Recorder{}

	svc := NewReviewService(repo, validator.NewReviewValidator(validation.New(log)),
		accesstest.New().Set(instituteID, owner.UserID), loyalty, cache, publisher, &config.Config{Log: log})

	return &fixture{svc: svc, repo: repo, loyalty: loyalty, cache: cache, publisher: publisher}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.StatusCode()
}

func ptr[T any](v T) *T { return &v }

func TestCreate(t *testing.T) {
	f := newFixture()

	review, err := f.svc.Create(context.Background(), customer, instituteID, &model.ReviewCreate{
		Rating:  5,
		Title:   "  <b>Eiskalt</b>  gut ",
		Comment: "Sehr freundlich.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Eiskalt gut", review.Title)
	assert.Equal(t, "Mia Kühn", review.CustomerName)
	assert.Equal(t, aggregate{average: 5, count: 1}, f.repo.aggregates[instituteID])
	assert.Equal(t, []string{customer.UserID}, f.loyalty.awarded)
	assert.Equal(t, []string{instituteID}, f.cache.invalidated)

	require.Equal(t, []string{events.TypeReviewCreated}, f.publisher.Types())
	payload := f.publisher.Events()[0].Payload.(events.ReviewCreated)
	assert.Equal(t, "Eiszeit", payload.InstituteName)
	assert.Equal(t, owner.UserID, payload.Owner.UserID)
	assert.Equal(t, 5, payload.Rating)
}

func TestCreate_OnePerInstitute(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), customer, instituteID, &model.ReviewCreate{Rating: 4})
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), customer, instituteID, &model.ReviewCreate{Rating: 1})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
	assert.Len(t, f.loyalty.awarded, 1)
}

func TestCreate_InvalidRating(t *testing.T) {
	for _, rating := range []int{0, 6} {
		f := newFixture()
		_, err := f.svc.Create(context.Background(), customer, instituteID, &model.ReviewCreate{Rating: rating})
		assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
		assert.Empty(t, f.repo.reviews)
	}
}

func TestCreate_Appointment(t *testing.T) {
	completed := uuid.NewString()
	pending := uuid.NewString()
	foreign := uuid.NewString()

	tests := []struct {
		name          string
		appointmentID string
		status        int
	}{
		{"completed own appointment", completed, 0},
		{"not completed", pending, http.StatusUnprocessableEntity},
		{"someone else's", foreign, http.StatusUnprocessableEntity},
		{"unknown", uuid.NewString(), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.repo.appointments[completed] = &repository.AppointmentRef{CustomerID: customer.UserID, InstituteID: instituteID, Status: model.StatusCompleted}
			f.repo.appointments[pending] = &repository.AppointmentRef{CustomerID: customer.UserID, InstituteID: instituteID, Status: model.StatusPending}
			f.repo.appointments[foreign] = &repository.AppointmentRef{CustomerID: other.UserID, InstituteID: instituteID, Status: model.StatusCompleted}

			_, err := f.svc.Create(context.Background(), customer, instituteID, &model.ReviewCreate{
				AppointmentID: ptr(tt.appointmentID),
				Rating:        4,
			})
			if tt.status == 0 {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.status, statusOf(t, err))
		})
	}
}

func TestCreate_Unauthenticated(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), nil, instituteID, &model.ReviewCreate{Rating: 4})
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestGetByInstitute_Sort(t *testing.T) {
	f := newFixture()
	for i, p := range []*auth.Principal{customer, other, admin} {
		_, err := f.svc.Create(context.Background(), p, instituteID, &model.ReviewCreate{Rating: i + 2})
		require.NoError(t, err)
	}

	reviews, total, err := f.svc.GetByInstitute(context.Background(), instituteID, model.ReviewSortRatingHigh, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, 4, reviews[0].Rating)
	assert.Equal(t, 2, reviews[2].Rating)

	_, _, err = f.svc.GetByInstitute(context.Background(), instituteID, "loudest", 10, 0)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestUpdate(t *testing.T) {
	f := newFixture()
	review, err := f.svc.Create(context.Background(), customer, instituteID, &model.ReviewCreate{Rating: 2, Title: "Geht so"})
	require.NoError(t, err)

	updated, err := f.svc.Update(context.Background(), customer, review.ID, &model.ReviewUpdate{Rating: ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Rating)
	assert.Equal(t, "Geht so", updated.Title)
	assert.Equal(t, aggregate{average: 4, count: 1}, f.repo.aggregates[instituteID])
	assert.Len(t, f.cache.invalidated, 2)

	_, err = f.svc.Update(context.Background(), customer, review.ID, &model.ReviewUpdate{Title: ptr("Toll")})
	require.NoError(t, err)
	assert.Len(t, f.cache.invalidated, 2, "text-only edits leave aggregates alone")

	_, err = f.svc.Update(context.Background(), other, review.ID, &model.ReviewUpdate{Rating: ptr(1)})
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = f.svc.Update(context.Background(), customer, review.ID, &model.ReviewUpdate{Rating: ptr(9)})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
}

func TestDelete(t *testing.T) {
	f := newFixture()
	first, err := f.svc.Create(context.Background(), customer, instituteID, &model.ReviewCreate{Rating: 5})
	require.NoError(t, err)
	second, err := f.svc.Create(context.Background(), other, instituteID, &model.ReviewCreate{Rating: 3})
	require.NoError(t, err)

	err = f.svc.Delete(context.Background(), other, first.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	require.NoError(t, f.svc.Delete(context.Background(), customer, first.ID))
	assert.Equal(t, aggregate{average: 3, count: 1}, f.repo.aggregates[instituteID])

	require.NoError(t, f.svc.Delete(context.Background(), admin, second.ID))
	assert.Equal(t, aggregate{}, f.repo.aggregates[instituteID])

	err = f.svc.Delete(context.Background(), admin, second.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestReply(t *testing.T) {
	f := newFixture()
	review, err := f.svc.Create(context.Background(), customer, instituteID, &model.ReviewCreate{Rating: 5})
	require.NoError(t, err)

	replied, err := f.svc.Reply(context.Background(), owner, review.ID, &model.ReviewReply{Reply: " Danke <i>Mia</i>! "})
	require.NoError(t, err)
	assert.Equal(t, "Danke Mia!", replied.ProviderReply)
	assert.NotNil(t, replied.RepliedAt)

	_, err = f.svc.Reply(context.Background(), customer, review.ID, &model.ReviewReply{Reply: "Ich auch"})
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = f.svc.Reply(context.Background(), owner, review.ID, &model.ReviewReply{Reply: "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
}

func TestGetByID_InvalidID(t *testing.T) {
	f := newFixture()
	_, err := f.svc.GetByID(context.Background(), "abc")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}
