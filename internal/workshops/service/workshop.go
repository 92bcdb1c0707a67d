package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"freezefit/internal/access"
	workshoperrors "freezefit/internal/workshops/errors"
	"freezefit/internal/workshops/repository"
	"freezefit/internal/workshops/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/events"
	"freezefit/pkg/model"
	"freezefit/pkg/sanitizer"
	"freezefit/pkg/validation"
)

const defaultCurrency = "EUR"

type WorkshopService interface {
	Create(ctx context.Context, p *auth.Principal, instituteID string, workshop *model.Workshop) error
	GetByID(ctx context.Context, id string) (*model.Workshop, error)
	GetByInstitute(ctx context.Context, instituteID string, upcoming bool, limit int, offset int) ([]*model.Workshop, int64, error)
	Update(ctx context.Context, p *auth.Principal, id string, updates *model.WorkshopUpdate) (*model.Workshop, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
	Register(ctx context.Context, p *auth.Principal, id string) (*model.Workshop, error)
	Unregister(ctx context.Context, p *auth.Principal, id string) error
	Registrations(ctx context.Context, p *auth.Principal, id string) ([]*model.WorkshopRegistration, error)
}

type workshopService struct {
	repo      repository.WorkshopRepository
	validator *validator.WorkshopValidator
	access    access.Checker
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewWorkshopService(
	repo repository.WorkshopRepository,
	validator *validator.WorkshopValidator,
	access access.Checker,
	publisher events.Publisher,
	cfg *config.Config,
) WorkshopService {
	return &workshopService{
		repo:      repo,
		validator: validator,
		access:    access,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *workshopService) Create(ctx context.Context, p *auth.Principal, instituteID string, workshop *model.Workshop) error {
	if err := s.access.RequireInstituteOwner(ctx, p, instituteID); err != nil {
		return err
	}

	workshop.InstituteID = instituteID
	workshop.Status = model.WorkshopScheduled
	workshop.RegisteredCount = 0
	sanitizeWorkshop(workshop)
	if workshop.Currency == "" {
		workshop.Currency = defaultCurrency
	}

	if err := s.validate(workshop, true); err != nil {
		s.cfg.Log.Warn("Workshop validation failed", "institute_id", instituteID, "title", workshop.Title, "error", err)
		return validation.ToAppError("Workshop", err)
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.Create(txCtx, workshop)
	})
	if err != nil {
		if errors.Is(err, workshoperrors.ErrInstituteNotFound) {
			return apperrors.NotFoundWithID("Institute", instituteID)
		}
		s.cfg.Log.Error("Failed to create workshop", "institute_id", instituteID, "error", err)
		return apperrors.Internal("Failed to create workshop", err)
	}

	s.cfg.Log.Info("Workshop created successfully", "id", workshop.ID, "institute_id", instituteID, "starts_at", workshop.StartsAt)
	return nil
}

func (s *workshopService) GetByID(ctx context.Context, id string) (*model.Workshop, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Workshop ID cannot be empty")
	}

	workshop, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}
	return workshop, nil
}

func (s *workshopService) GetByInstitute(ctx context.Context, instituteID string, upcoming bool, limit int, offset int) ([]*model.Workshop, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var workshops []*model.Workshop
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByInstitute(ctx, instituteID, upcoming)
	}()
	go func() {
		defer wg.Done()
		workshops, errFind = s.repo.FindByInstitute(ctx, instituteID, upcoming, limit, offset)
	}()
	wg.Wait()

	for _, err := range []error{errCount, errFind} {
		if err == nil {
			continue
		}
		if errors.Is(err, workshoperrors.ErrInstituteNotFound) {
			return nil, 0, apperrors.InvalidInput("Invalid institute ID format")
		}
		s.cfg.Log.Error("Failed to list workshops", "institute_id", instituteID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve workshops", err)
	}
	return workshops, count, nil
}

func (s *workshopService) Update(ctx context.Context, p *auth.Principal, id string, updates *model.WorkshopUpdate) (*model.Workshop, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireInstituteOwner(ctx, p, existing.InstituteID); err != nil {
		return nil, err
	}

	merged := mergeWorkshopUpdates(existing, updates)
	sanitizeWorkshop(merged)

	startMoved := !merged.StartsAt.Equal(existing.StartsAt)
	if err := s.validate(merged, startMoved); err != nil {
		s.cfg.Log.Warn("Workshop validation failed", "id", id, "error", err)
		return nil, validation.ToAppError("Workshop", err)
	}

	changes := diffWorkshop(existing, merged)
	if changes.Len() == 0 {
		return existing, nil
	}

	if err := s.repo.Update(ctx, id, changes); err != nil {
		if errors.Is(err, workshoperrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Workshop", id)
		}
		s.cfg.Log.Error("Failed to update workshop", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update workshop", err)
	}

	s.cfg.Log.Info("Workshop updated successfully", "id", id, "fields", changes.Columns())
	return s.GetByID(ctx, id)
}

func (s *workshopService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.access.RequireInstituteOwner(ctx, p, existing.InstituteID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, workshoperrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Workshop", id)
		}
		s.cfg.Log.Error("Failed to delete workshop", "id", id, "error", err)
		return apperrors.Internal("Failed to delete workshop", err)
	}

	s.cfg.Log.Info("Workshop deleted successfully", "id", id, "institute_id", existing.InstituteID)
	return nil
}

// Register takes one seat. The workshop row stays locked for the whole
// transaction so concurrent registrations cannot oversell it.
func (s *workshopService) Register(ctx context.Context, p *auth.Principal, id string) (*model.Workshop, error) {
	if p == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	var workshop *model.Workshop
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		var err error
		workshop, err = s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return s.mapLookupError(err, id)
		}
		if workshop.Status == model.WorkshopCancelled {
			return validation.ToAppError("Workshop registration", validation.Fail("workshop", "workshop has been cancelled"))
		}
		if !workshop.StartsAt.After(s.now()) {
			return validation.ToAppError("Workshop registration", validation.Fail("workshop", "workshop has already started"))
		}
		if workshop.SpotsLeft() == 0 {
			return apperrors.Conflict("Workshop is fully booked")
		}
		if err := s.repo.CreateRegistration(txCtx, id, p.UserID); err != nil {
			return err
		}
		if err := s.repo.AdjustRegistered(txCtx, id, 1); err != nil {
			return err
		}
		workshop.RegisteredCount++
		return nil
	})
	if err != nil {
		if errors.Is(err, workshoperrors.ErrAlreadyRegistered) {
			return nil, apperrors.Conflict("You are already registered for this workshop")
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		s.cfg.Log.Error("Failed to register for workshop", "id", id, "customer_id", p.UserID, "error", err)
		return nil, apperrors.Internal("Failed to register for workshop", err)
	}

	s.cfg.Log.Info("Workshop registration created",
		"id", id,
		"customer_id", p.UserID,
		"registered", workshop.RegisteredCount,
		"capacity", workshop.Capacity,
	)
	s.publishRegistered(ctx, workshop, p.UserID)
	return workshop, nil
}

func (s *workshopService) Unregister(ctx context.Context, p *auth.Principal, id string) error {
	if p == nil {
		return apperrors.Unauthorized("Authentication required")
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		workshop, err := s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return s.mapLookupError(err, id)
		}
		if !workshop.StartsAt.After(s.now()) {
			return validation.ToAppError("Workshop registration", validation.Fail("workshop", "workshop has already started"))
		}
		if err := s.repo.DeleteRegistration(txCtx, id, p.UserID); err != nil {
			return err
		}
		return s.repo.AdjustRegistered(txCtx, id, -1)
	})
	if err != nil {
		if errors.Is(err, workshoperrors.ErrRegistrationNotFound) {
			return apperrors.NotFound("Workshop registration")
		}
		if apperrors.IsAppError(err) {
			return err
		}
		s.cfg.Log.Error("Failed to cancel workshop registration", "id", id, "customer_id", p.UserID, "error", err)
		return apperrors.Internal("Failed to cancel workshop registration", err)
	}

	s.cfg.Log.Info("Workshop registration cancelled", "id", id, "customer_id", p.UserID)
	return nil
}

func (s *workshopService) Registrations(ctx context.Context, p *auth.Principal, id string) ([]*model.WorkshopRegistration, error) {
	workshop, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireInstituteOwner(ctx, p, workshop.InstituteID); err != nil {
		return nil, err
	}

	registrations, err := s.repo.FindRegistrations(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to list workshop registrations", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve workshop registrations", err)
	}
	return registrations, nil
}

func (s *workshopService) validate(w *model.Workshop, checkStart bool) error {
	if err := s.validator.ValidateWorkshop(w); err != nil {
		return err
	}
	if checkStart {
		return s.validator.ValidateStart(w.StartsAt, s.now())
	}
	return nil
}

func (s *workshopService) mapLookupError(err error, id string) error {
	switch {
	case errors.Is(err, workshoperrors.ErrNotFound):
		return apperrors.NotFoundWithID("Workshop", id)
	case errors.Is(err, workshoperrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid workshop ID format")
	}
	s.cfg.Log.Error("Failed to get workshop by ID", "id", id, "error", err)
	return apperrors.Internal("Failed to retrieve workshop", err)
}

func (s *workshopService) publishRegistered(ctx context.Context, w *model.Workshop, customerID string) {
	ec, err := s.repo.FindEventContext(ctx, w.ID, customerID)
	if err != nil {
		s.cfg.Log.Warn("Skipping workshop event, contacts unavailable", "id", w.ID, "error", err)
		return
	}

	s.publisher.Publish(ctx, events.TypeWorkshopRegistered, w.ID, events.WorkshopRegistered{
		WorkshopID:    w.ID,
		Title:         w.Title,
		InstituteName: ec.InstituteName,
		StartsAt:      w.StartsAt,
		Timezone:      ec.Timezone,
		Customer:      events.Recipient{UserID: customerID, Email: ec.CustomerEmail, Name: ec.CustomerName},
	})
}

func sanitizeWorkshop(w *model.Workshop) {
	w.Title = sanitizer.SanitizeLine(w.Title)
	w.Description = sanitizer.SanitizeText(w.Description)
	w.Currency = strings.ToUpper(strings.TrimSpace(w.Currency))
	w.Status = strings.ToLower(strings.TrimSpace(w.Status))
	w.StartsAt = w.StartsAt.UTC().Truncate(time.Minute)
}

func mergeWorkshopUpdates(existing *model.Workshop, updates *model.WorkshopUpdate) *model.Workshop {
	merged := *existing

	if updates.Title != nil {
		merged.Title = *updates.Title
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.StartsAt != nil {
		merged.StartsAt = *updates.StartsAt
	}
	if updates.DurationMin != nil {
		merged.DurationMin = *updates.DurationMin
	}
	if updates.Capacity != nil {
		merged.Capacity = *updates.Capacity
	}
	if updates.Price != nil {
		merged.Price = *updates.Price
	}
	if updates.Currency != nil {
		merged.Currency = *updates.Currency
	}
	if updates.Status != nil {
		merged.Status = *updates.Status
	}

	return &merged
}

func diffWorkshop(existing, merged *model.Workshop) *postgres.Changes {
	changes := &postgres.Changes{}
	if merged.Title != existing.Title {
		changes.Set("title", merged.Title)
	}
	if merged.Description != existing.Description {
		changes.Set("description", merged.Description)
	}
	if !merged.StartsAt.Equal(existing.StartsAt) {
		changes.Set("starts_at", merged.StartsAt)
	}
	if merged.DurationMin != existing.DurationMin {
		changes.Set("duration_min", merged.DurationMin)
	}
	if merged.Capacity != existing.Capacity {
		changes.Set("capacity", merged.Capacity)
	}
	if !merged.Price.Equal(existing.Price) {
		changes.Set("price", merged.Price)
	}
	if merged.Currency != existing.Currency {
		changes.Set("currency", merged.Currency)
	}
	if merged.Status != existing.Status {
		changes.Set("status", merged.Status)
	}
	return changes
}
