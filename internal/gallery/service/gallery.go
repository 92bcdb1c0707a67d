package service

import (
	"context"
	"errors"

	"freezefit/internal/access"
	galleryerrors "freezefit/internal/gallery/errors"
	"freezefit/internal/gallery/repository"
	"freezefit/internal/gallery/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/model"
	"freezefit/pkg/sanitizer"
	"freezefit/pkg/validation"
)

// CacheInvalidator drops cached institute reads after the gallery changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, id string)
}

type GalleryService interface {
	List(ctx context.Context, instituteID string) ([]*model.GalleryImage, error)
	Add(ctx context.Context, p *auth.Principal, instituteID string, image *model.GalleryImage) error
	Delete(ctx context.Context, p *auth.Principal, id string) error
	Reorder(ctx context.Context, p *auth.Principal, instituteID string, order *model.GalleryOrder) ([]*model.GalleryImage, error)
}

type galleryService struct {
	repo      repository.GalleryRepository
	validator *validator.GalleryValidator
	access    access.Checker
	cache     CacheInvalidator
	cfg       *config.Config
}

func NewGalleryService(
	repo repository.GalleryRepository,
	validator *validator.GalleryValidator,
	access access.Checker,
	cache CacheInvalidator,
	cfg *config.Config,
) GalleryService {
	return &galleryService{
		repo:      repo,
		validator: validator,
		access:    access,
		cache:     cache,
		cfg:       cfg,
	}
}

func (s *galleryService) List(ctx context.Context, instituteID string) ([]*model.GalleryImage, error) {
	images, err := s.repo.FindByInstitute(ctx, instituteID)
	if err != nil {
		if errors.Is(err, galleryerrors.ErrInstituteNotFound) {
			return nil, apperrors.InvalidInput("Invalid institute ID format")
		}
		s.cfg.Log.Error("Failed to list gallery", "institute_id", instituteID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve gallery", err)
	}
	return images, nil
}

func (s *galleryService) Add(ctx context.Context, p *auth.Principal, instituteID string, image *model.GalleryImage) error {
	if err := s.access.RequireInstituteOwner(ctx, p, instituteID); err != nil {
		return err
	}

	image.InstituteID = instituteID
	image.ImageURL = sanitizer.NormalizeURL(image.ImageURL)
	image.Caption = sanitizer.SanitizeLine(image.Caption)

	if err := s.validator.ValidateImage(image); err != nil {
		s.cfg.Log.Warn("Gallery image validation failed", "institute_id", instituteID, "error", err)
		return validation.ToAppError("Gallery image", err)
	}

	if err := s.repo.Create(ctx, image); err != nil {
		if errors.Is(err, galleryerrors.ErrInstituteNotFound) {
			return apperrors.NotFoundWithID("Institute", instituteID)
		}
		s.cfg.Log.Error("Failed to add gallery image", "institute_id", instituteID, "error", err)
		return apperrors.Internal("Failed to add gallery image", err)
	}

	s.cache.Invalidate(ctx, instituteID)
	s.cfg.Log.Info("Gallery image added", "id", image.ID, "institute_id", instituteID, "sort_order", image.SortOrder)
	return nil
}

func (s *galleryService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	image, err := s.repo.FindByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, galleryerrors.ErrNotFound):
			return apperrors.NotFoundWithID("Gallery image", id)
		case errors.Is(err, galleryerrors.ErrInvalidID):
			return apperrors.InvalidInput("Invalid gallery image ID format")
		}
		s.cfg.Log.Error("Failed to load gallery image", "id", id, "error", err)
		return apperrors.Internal("Failed to retrieve gallery image", err)
	}
	if err := s.access.RequireInstituteOwner(ctx, p, image.InstituteID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, galleryerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Gallery image", id)
		}
		s.cfg.Log.Error("Failed to delete gallery image", "id", id, "error", err)
		return apperrors.Internal("Failed to delete gallery image", err)
	}

	s.cache.Invalidate(ctx, image.InstituteID)
	s.cfg.Log.Info("Gallery image deleted", "id", id, "institute_id", image.InstituteID)
	return nil
}

// Reorder assigns positions 1..n following order.IDs.
func (s *galleryService) Reorder(ctx context.Context, p *auth.Principal, instituteID string, order *model.GalleryOrder) ([]*model.GalleryImage, error) {
	if err := s.access.RequireInstituteOwner(ctx, p, instituteID); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateOrder(order); err != nil {
		return nil, validation.ToAppError("Gallery order", err)
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		images, err := s.repo.FindByInstitute(txCtx, instituteID)
		if err != nil {
			return err
		}
		if err := s.validator.ValidatePermutation(order.IDs, images); err != nil {
			s.cfg.Log.Warn("Gallery order rejected", "institute_id", instituteID, "error", err)
			return validation.ToAppError("Gallery order", err)
		}
		for i, id := range order.IDs {
			if err := s.repo.SetOrder(txCtx, id, i+1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		s.cfg.Log.Error("Failed to reorder gallery", "institute_id", instituteID, "error", err)
		return nil, apperrors.Internal("Failed to reorder gallery", err)
	}

	s.cache.Invalidate(ctx, instituteID)
	s.cfg.Log.Info("Gallery reordered", "institute_id", instituteID, "images", len(order.IDs))
	return s.List(ctx, instituteID)
}
