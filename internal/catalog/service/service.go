package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"freezefit/internal/access"
	catalogerrors "freezefit/internal/catalog/errors"
	"freezefit/internal/catalog/repository"
	"freezefit/internal/catalog/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/model"
	"freezefit/pkg/sanitizer"
	"freezefit/pkg/validation"
)

const defaultCurrency = "EUR"

type CatalogService interface {
	Create(ctx context.Context, p *auth.Principal, instituteID string, req *model.ServiceCreate) (*model.Service, error)
	GetByID(ctx context.Context, id string) (*model.Service, error)
	GetByInstitute(ctx context.Context, p *auth.Principal, instituteID string, includeInactive bool, limit int, offset int) ([]*model.Service, int64, error)
	Update(ctx context.Context, p *auth.Principal, id string, updates *model.ServiceUpdate) (*model.Service, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
}

type catalogService struct {
	repo      repository.ServiceRepository
	validator *validator.ServiceValidator
	access    access.Checker
	cfg       *config.Config
}

func NewCatalogService(
	repo repository.ServiceRepository,
	validator *validator.ServiceValidator,
	access access.Checker,
	cfg *config.Config,
) CatalogService {
	return &catalogService{
		repo:      repo,
		validator: validator,
		access:    access,
		cfg:       cfg,
	}
}

func (s *catalogService) Create(ctx context.Context, p *auth.Principal, instituteID string, req *model.ServiceCreate) (*model.Service, error) {
	if err := s.access.RequireInstituteOwner(ctx, p, instituteID); err != nil {
		return nil, err
	}

	svc := &model.Service{
		InstituteID:     instituteID,
		Name:            sanitizer.NormalizeName(req.Name),
		Description:     sanitizer.SanitizeText(req.Description),
		Category:        strings.ToLower(strings.TrimSpace(req.Category)),
		DurationMin:     req.DurationMin,
		Price:           req.Price,
		Currency:        strings.ToUpper(strings.TrimSpace(req.Currency)),
		MaxParticipants: req.MaxParticipants,
		IsActive:        true,
	}
	s.applyDefaultsForNewService(svc, req)

	if err := s.validator.ValidateService(svc); err != nil {
		s.cfg.Log.Warn("Service validation failed",
			"institute_id", instituteID,
			"name", svc.Name,
			"error", err,
		)
		return nil, validation.ToAppError("Service", err)
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.Create(txCtx, svc)
	})
	if err != nil {
		if errors.Is(err, catalogerrors.ErrInstituteNotFound) {
			return nil, apperrors.NotFoundWithID("Institute", instituteID)
		}
		s.cfg.Log.Error("Failed to create service", "institute_id", instituteID, "error", err)
		return nil, apperrors.Internal("Failed to create service", err)
	}

	s.cfg.Log.Info("Service created successfully",
		"id", svc.ID,
		"institute_id", instituteID,
		"category", svc.Category,
		"price", svc.Price.StringFixed(2),
	)
	return svc, nil
}

func (s *catalogService) GetByID(ctx context.Context, id string) (*model.Service, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Service ID cannot be empty")
	}

	svc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Service", id)
		}
		if errors.Is(err, catalogerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid service ID format")
		}
		s.cfg.Log.Error("Failed to get service by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve service", err)
	}
	return svc, nil
}

// GetByInstitute lists offerings. Inactive ones are only shown to the owner.
func (s *catalogService) GetByInstitute(ctx context.Context, p *auth.Principal, instituteID string, includeInactive bool, limit int, offset int) ([]*model.Service, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	if includeInactive {
		owner, err := s.access.IsInstituteOwner(ctx, p, instituteID)
		if err != nil {
			return nil, 0, apperrors.Internal("Failed to verify institute ownership", err)
		}
		includeInactive = owner
	}

	var count int64
	var services []*model.Service
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByInstitute(ctx, instituteID, includeInactive)
		if err != nil {
			errCount = err
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		services, err = s.repo.FindByInstitute(ctx, instituteID, includeInactive, limit, offset)
		if err != nil {
			errFind = err
		}
	}()
	wg.Wait()

	for _, err := range []error{errCount, errFind} {
		if err == nil {
			continue
		}
		if errors.Is(err, catalogerrors.ErrInstituteNotFound) {
			return nil, 0, apperrors.InvalidInput("Invalid institute ID format")
		}
		s.cfg.Log.Error("Failed to list services", "institute_id", instituteID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve services", err)
	}
	return services, count, nil
}

func (s *catalogService) Update(ctx context.Context, p *auth.Principal, id string, updates *model.ServiceUpdate) (*model.Service, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireInstituteOwner(ctx, p, existing.InstituteID); err != nil {
		return nil, err
	}

	s.sanitizeUpdate(updates)
	merged := mergeServiceUpdates(existing, updates)

	if err := s.validator.ValidateService(merged); err != nil {
		s.cfg.Log.Warn("Service validation failed", "id", id, "error", err)
		return nil, validation.ToAppError("Service", err)
	}

	changes := diffService(existing, merged)
	if changes.Len() == 0 {
		return existing, nil
	}

	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Service", id)
		}
		s.cfg.Log.Error("Failed to update service", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update service", err)
	}

	s.cfg.Log.Info("Service updated successfully", "id", id, "fields", changes.Columns())
	return updated, nil
}

func (s *catalogService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.access.RequireInstituteOwner(ctx, p, existing.InstituteID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, catalogerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Service", id)
		}
		s.cfg.Log.Error("Failed to delete service", "id", id, "error", err)
		return apperrors.Internal("Failed to delete service", err)
	}

	s.cfg.Log.Info("Service deleted successfully", "id", id, "institute_id", existing.InstituteID)
	return nil
}

func (s *catalogService) applyDefaultsForNewService(svc *model.Service, req *model.ServiceCreate) {
	if svc.Currency == "" {
		svc.Currency = defaultCurrency
	}
	if svc.MaxParticipants == 0 {
		svc.MaxParticipants = 1
	}
	if req.IsActive != nil {
		svc.IsActive = *req.IsActive
	}
}

func (s *catalogService) sanitizeUpdate(updates *model.ServiceUpdate) {
	if updates.Name != nil {
		normalized := sanitizer.NormalizeName(*updates.Name)
		updates.Name = &normalized
	}
	if updates.Description != nil {
		normalized := sanitizer.SanitizeText(*updates.Description)
		updates.Description = &normalized
	}
	if updates.Category != nil {
		normalized := strings.ToLower(strings.TrimSpace(*updates.Category))
		updates.Category = &normalized
	}
	if updates.Currency != nil {
		normalized := strings.ToUpper(strings.TrimSpace(*updates.Currency))
		updates.Currency = &normalized
	}
}

func mergeServiceUpdates(existing *model.Service, updates *model.ServiceUpdate) *model.Service {
	merged := *existing

	if updates.Name != nil {
		merged.Name = *updates.Name
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.Category != nil {
		merged.Category = *updates.Category
	}
	if updates.DurationMin != nil {
		merged.DurationMin = *updates.DurationMin
	}
	if updates.Price != nil {
		merged.Price = *updates.Price
	}
	if updates.Currency != nil {
		merged.Currency = *updates.Currency
	}
	if updates.MaxParticipants != nil {
		merged.MaxParticipants = *updates.MaxParticipants
	}
	if updates.IsActive != nil {
		merged.IsActive = *updates.IsActive
	}

	return &merged
}

func diffService(existing, merged *model.Service) *postgres.Changes {
	changes := &postgres.Changes{}
	if merged.Name != existing.Name {
		changes.Set("name", merged.Name)
	}
	if merged.Description != existing.Description {
		changes.Set("description", merged.Description)
	}
	if merged.Category != existing.Category {
		changes.Set("category", merged.Category)
	}
	if merged.DurationMin != existing.DurationMin {
		changes.Set("duration_min", merged.DurationMin)
	}
	if !merged.Price.Equal(existing.Price) {
		changes.Set("price", merged.Price)
	}
	if merged.Currency != existing.Currency {
		changes.Set("currency", merged.Currency)
	}
	if merged.MaxParticipants != existing.MaxParticipants {
		changes.Set("max_participants", merged.MaxParticipants)
	}
	if merged.IsActive != existing.IsActive {
		changes.Set("is_active", merged.IsActive)
	}
	return changes
}
