package service

import (
	"context"
	"errors"
	"slices"
	"sync"

	"freezefit/internal/access"
	therapisterrors "freezefit/internal/therapists/errors"
	"freezefit/internal/therapists/repository"
	"freezefit/internal/therapists/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/model"
	"freezefit/pkg/sanitizer"
	"freezefit/pkg/validation"
)

type TherapistService interface {
	Create(ctx context.Context, p *auth.Principal, instituteID string, therapist *model.Therapist) error
	GetByID(ctx context.Context, id string) (*model.Therapist, error)
	GetByInstitute(ctx context.Context, p *auth.Principal, instituteID string, includeInactive bool, limit int, offset int) ([]*model.Therapist, int64, error)
	Update(ctx context.Context, p *auth.Principal, id string, updates *model.TherapistUpdate) (*model.Therapist, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
}

type therapistService struct {
	repo      repository.TherapistRepository
	validator *validator.TherapistValidator
	access    access.Checker
	cfg       *config.Config
}

func NewTherapistService(
	repo repository.TherapistRepository,
	validator *validator.TherapistValidator,
	access access.Checker,
	cfg *config.Config,
) TherapistService {
	return &therapistService{
		repo:      repo,
		validator: validator,
		access:    access,
		cfg:       cfg,
	}
}

func (s *therapistService) Create(ctx context.Context, p *auth.Principal, instituteID string, therapist *model.Therapist) error {
	if err := s.access.RequireInstituteOwner(ctx, p, instituteID); err != nil {
		return err
	}

	therapist.InstituteID = instituteID
	s.sanitizeTherapist(therapist)
	therapist.IsActive = true

	if err := s.validator.ValidateTherapist(therapist); err != nil {
		s.cfg.Log.Warn("Therapist validation failed",
			"institute_id", instituteID,
			"name", therapist.Name,
			"error", err,
		)
		return validation.ToAppError("Therapist", err)
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.Create(txCtx, therapist)
	})
	if err != nil {
		if errors.Is(err, therapisterrors.ErrInstituteNotFound) {
			return apperrors.NotFoundWithID("Institute", instituteID)
		}
		s.cfg.Log.Error("Failed to create therapist", "institute_id", instituteID, "error", err)
		return apperrors.Internal("Failed to create therapist", err)
	}

	s.cfg.Log.Info("Therapist created successfully", "id", therapist.ID, "institute_id", instituteID)
	return nil
}

func (s *therapistService) GetByID(ctx context.Context, id string) (*model.Therapist, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Therapist ID cannot be empty")
	}

	therapist, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, therapisterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Therapist", id)
		}
		if errors.Is(err, therapisterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid therapist ID format")
		}
		s.cfg.Log.Error("Failed to get therapist by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve therapist", err)
	}
	return therapist, nil
}

func (s *therapistService) GetByInstitute(ctx context.Context, p *auth.Principal, instituteID string, includeInactive bool, limit int, offset int) ([]*model.Therapist, int64, error) {
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
	var therapists []*model.Therapist
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByInstitute(ctx, instituteID, includeInactive)
	}()
	go func() {
		defer wg.Done()
		therapists, errFind = s.repo.FindByInstitute(ctx, instituteID, includeInactive, limit, offset)
	}()
	wg.Wait()

	for _, err := range []error{errCount, errFind} {
		if err == nil {
			continue
		}
		if errors.Is(err, therapisterrors.ErrInstituteNotFound) {
			return nil, 0, apperrors.InvalidInput("Invalid institute ID format")
		}
		s.cfg.Log.Error("Failed to list therapists", "institute_id", instituteID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve therapists", err)
	}
	return therapists, count, nil
}

func (s *therapistService) Update(ctx context.Context, p *auth.Principal, id string, updates *model.TherapistUpdate) (*model.Therapist, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireInstituteOwner(ctx, p, existing.InstituteID); err != nil {
		return nil, err
	}

	merged := mergeTherapistUpdates(existing, updates)
	s.sanitizeTherapist(merged)

	if err := s.validator.ValidateTherapist(merged); err != nil {
		s.cfg.Log.Warn("Therapist validation failed", "id", id, "error", err)
		return nil, validation.ToAppError("Therapist", err)
	}

	changes := diffTherapist(existing, merged)
	if changes.Len() == 0 {
		return existing, nil
	}

	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		if errors.Is(err, therapisterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Therapist", id)
		}
		s.cfg.Log.Error("Failed to update therapist", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update therapist", err)
	}

	s.cfg.Log.Info("Therapist updated successfully", "id", id, "fields", changes.Columns())
	return updated, nil
}

func (s *therapistService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.access.RequireInstituteOwner(ctx, p, existing.InstituteID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, therapisterrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Therapist", id)
		}
		s.cfg.Log.Error("Failed to delete therapist", "id", id, "error", err)
		return apperrors.Internal("Failed to delete therapist", err)
	}

	s.cfg.Log.Info("Therapist deleted successfully", "id", id, "institute_id", existing.InstituteID)
	return nil
}

// sanitizeTherapist is idempotent, so it also runs on merged rows.
func (s *therapistService) sanitizeTherapist(t *model.Therapist) {
	t.Name = sanitizer.NormalizeName(t.Name)
	t.Title = sanitizer.SanitizeLine(t.Title)
	t.Bio = sanitizer.SanitizeText(t.Bio)
	t.ImageURL = sanitizer.NormalizeURL(t.ImageURL)
	t.Specializations = sanitizer.NormalizeSpecializations(t.Specializations)
}

func mergeTherapistUpdates(existing *model.Therapist, updates *model.TherapistUpdate) *model.Therapist {
	merged := *existing

	if updates.Name != nil {
		merged.Name = *updates.Name
	}
	if updates.Title != nil {
		merged.Title = *updates.Title
	}
	if updates.Bio != nil {
		merged.Bio = *updates.Bio
	}
	if updates.Specializations != nil {
		merged.Specializations = *updates.Specializations
	}
	if updates.ImageURL != nil {
		merged.ImageURL = *updates.ImageURL
	}
	if updates.IsActive != nil {
		merged.IsActive = *updates.IsActive
	}

	return &merged
}

func diffTherapist(existing, merged *model.Therapist) *postgres.Changes {
	changes := &postgres.Changes{}
	if merged.Name != existing.Name {
		changes.Set("name", merged.Name)
	}
	if merged.Title != existing.Title {
		changes.Set("title", merged.Title)
	}
	if merged.Bio != existing.Bio {
		changes.Set("bio", merged.Bio)
	}
	if !slices.Equal(merged.Specializations, existing.Specializations) {
		changes.Set("specializations", merged.Specializations)
	}
	if merged.ImageURL != existing.ImageURL {
		changes.Set("image_url", merged.ImageURL)
	}
	if merged.IsActive != existing.IsActive {
		changes.Set("is_active", merged.IsActive)
	}
	return changes
}
