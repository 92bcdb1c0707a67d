package service

import (
	"context"
	"errors"
	"sync"

	favoriteerrors "freezefit/internal/favorites/errors"
	"freezefit/internal/favorites/repository"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/model"
)

type FavoriteService interface {
	List(ctx context.Context, p *auth.Principal, limit int, offset int) ([]*model.Favorite, int64, error)
	Add(ctx context.Context, p *auth.Principal, instituteID string) error
	Remove(ctx context.Context, p *auth.Principal, instituteID string) error
}

type favoriteService struct {
	repo repository.FavoriteRepository
	cfg  *config.Config
}

func NewFavoriteService(repo repository.FavoriteRepository, cfg *config.Config) FavoriteService {
	return &favoriteService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *favoriteService) List(ctx context.Context, p *auth.Principal, limit int, offset int) ([]*model.Favorite, int64, error) {
	if p == nil {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var favorites []*model.Favorite
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByUser(ctx, p.UserID)
	}()
	go func() {
		defer wg.Done()
		favorites, errFind = s.repo.FindByUser(ctx, p.UserID, limit, offset)
	}()
	wg.Wait()

	for _, err := range []error{errCount, errFind} {
		if err != nil {
			s.cfg.Log.Error("Failed to list favorites", "user_id", p.UserID, "error", err)
			return nil, 0, apperrors.Internal("Failed to retrieve favorites", err)
		}
	}
	return favorites, count, nil
}

func (s *favoriteService) Add(ctx context.Context, p *auth.Principal, instituteID string) error {
	if p == nil {
		return apperrors.Unauthorized("Authentication required")
	}

	added, err := s.repo.Add(ctx, p.UserID, instituteID)
	if err != nil {
		if errors.Is(err, favoriteerrors.ErrInstituteNotFound) {
			return apperrors.NotFoundWithID("Institute", instituteID)
		}
		s.cfg.Log.Error("Failed to add favorite", "user_id", p.UserID, "institute_id", instituteID, "error", err)
		return apperrors.Internal("Failed to add favorite", err)
	}
	if added {
		s.cfg.Log.Info("Favorite added", "user_id", p.UserID, "institute_id", instituteID)
	}
	return nil
}

func (s *favoriteService) Remove(ctx context.Context, p *auth.Principal, instituteID string) error {
	if p == nil {
		return apperrors.Unauthorized("Authentication required")
	}

	removed, err := s.repo.Remove(ctx, p.UserID, instituteID)
	if err != nil {
		s.cfg.Log.Error("Failed to remove favorite", "user_id", p.UserID, "institute_id", instituteID, "error", err)
		return apperrors.Internal("Failed to remove favorite", err)
	}
	if removed {
		s.cfg.Log.Info("Favorite removed", "user_id", p.UserID, "institute_id", instituteID)
	}
	return nil
}
