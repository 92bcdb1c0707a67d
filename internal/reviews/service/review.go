package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"freezefit/internal/access"
	reviewerrors "freezefit/internal/reviews/errors"
	"freezefit/internal/reviews/repository"
	"freezefit/internal/reviews/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/events"
	"freezefit/pkg/model"
	"freezefit/pkg/sanitizer"
	"freezefit/pkg/validation"

	"github.com/google/uuid"
)

// BonusAwarder credits loyalty points for a new review.
type BonusAwarder interface {
	AwardReviewBonus(ctx context.Context, userID string, reviewID string) (int, error)
}

// CacheInvalidator drops cached institute reads after the rating changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, id string)
}

type ReviewService interface {
	Create(ctx context.Context, p *auth.Principal, instituteID string, req *model.ReviewCreate) (*model.Review, error)
	GetByID(ctx context.Context, id string) (*model.Review, error)
	GetByInstitute(ctx context.Context, instituteID string, sort string, limit int, offset int) ([]*model.Review, int64, error)
	Update(ctx context.Context, p *auth.Principal, id string, updates *model.ReviewUpdate) (*model.Review, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
	Reply(ctx context.Context, p *auth.Principal, id string, reply *model.ReviewReply) (*model.Review, error)
}

type reviewService struct {
	repo      repository.ReviewRepository
	validator *validator.ReviewValidator
	access    access.Checker
	loyalty   BonusAwarder
	cache     CacheInvalidator
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewReviewService(
	repo repository.ReviewRepository,
	validator *validator.ReviewValidator,
	access access.Checker,
	loyalty BonusAwarder,
	cache CacheInvalidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReviewService {
	return &reviewService{
		repo:      repo,
		validator: validator,
		access:    access,
		loyalty:   loyalty,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *reviewService) Create(ctx context.Context, p *auth.Principal, instituteID string, req *model.ReviewCreate) (*model.Review, error) {
	if p == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	review := &model.Review{
		InstituteID:   instituteID,
		CustomerID:    p.UserID,
		AppointmentID: req.AppointmentID,
		Rating:        req.Rating,
		Title:         req.Title,
		Comment:       req.Comment,
	}
	sanitizeReview(review)

	if err := s.validator.ValidateReview(review); err != nil {
		s.cfg.Log.Warn("Review validation failed", "institute_id", instituteID, "error", err)
		return nil, validation.ToAppError("Review", err)
	}
	if review.AppointmentID != nil {
		if err := s.checkAppointment(ctx, review); err != nil {
			return nil, err
		}
	}

	var bonus int
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, review); err != nil {
			return err
		}
		if err := s.repo.RecomputeAggregates(txCtx, instituteID); err != nil {
			return err
		}
		var err error
		bonus, err = s.loyalty.AwardReviewBonus(txCtx, p.UserID, review.ID)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, reviewerrors.ErrAlreadyReviewed):
			return nil, apperrors.Conflict("You have already reviewed this institute")
		case errors.Is(err, reviewerrors.ErrInstituteNotFound):
			return nil, apperrors.NotFoundWithID("Institute", instituteID)
		case apperrors.IsAppError(err):
			return nil, err
		}
		s.cfg.Log.Error("Failed to create review", "institute_id", instituteID, "error", err)
		return nil, apperrors.Internal("Failed to create review", err)
	}

	s.cache.Invalidate(ctx, instituteID)
	s.cfg.Log.Info("Review created successfully",
		"id", review.ID,
		"institute_id", instituteID,
		"rating", review.Rating,
		"bonus_points", bonus,
	)

	created, err := s.GetByID(ctx, review.ID)
	if err != nil {
		return nil, err
	}
	s.publishCreated(ctx, created)
	return created, nil
}

func (s *reviewService) checkAppointment(ctx context.Context, review *model.Review) error {
	if uuid.Validate(*review.AppointmentID) != nil {
		return validation.ToAppError("Review", validation.Fail("appointment_id", "appointment_id must be a valid UUID"))
	}
	ref, err := s.repo.FindAppointment(ctx, *review.AppointmentID)
	if err != nil {
		if errors.Is(err, reviewerrors.ErrAppointmentNotFound) {
			return validation.ToAppError("Review", validation.Fail("appointment_id", "appointment does not exist"))
		}
		s.cfg.Log.Error("Failed to load reviewed appointment", "appointment_id", *review.AppointmentID, "error", err)
		return apperrors.Internal("Failed to verify appointment", err)
	}
	if ref.CustomerID != review.CustomerID || ref.InstituteID != review.InstituteID {
		return validation.ToAppError("Review", validation.Fail("appointment_id", "appointment does not belong to you at this institute"))
	}
	if ref.Status != model.StatusCompleted {
		return validation.ToAppError("Review", validation.Fail("appointment_id", "only completed appointments can be reviewed"))
	}
	return nil
}

func (s *reviewService) GetByID(ctx context.Context, id string) (*model.Review, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Review ID cannot be empty")
	}

	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reviewerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Review", id)
		}
		if errors.Is(err, reviewerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid review ID format")
		}
		s.cfg.Log.Error("Failed to get review by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve review", err)
	}
	return review, nil
}

func (s *reviewService) GetByInstitute(ctx context.Context, instituteID string, sort string, limit int, offset int) ([]*model.Review, int64, error) {
	if err := s.validator.ValidateSort(sort); err != nil {
		return nil, 0, apperrors.InvalidInput("sort must be one of newest, rating_high, rating_low")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var reviews []*model.Review
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByInstitute(ctx, instituteID)
	}()
	go func() {
		defer wg.Done()
		reviews, errFind = s.repo.FindByInstitute(ctx, instituteID, sort, limit, offset)
	}()
	wg.Wait()

	for _, err := range []error{errCount, errFind} {
		if err == nil {
			continue
		}
		if errors.Is(err, reviewerrors.ErrInstituteNotFound) {
			return nil, 0, apperrors.InvalidInput("Invalid institute ID format")
		}
		s.cfg.Log.Error("Failed to list reviews", "institute_id", instituteID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve reviews", err)
	}
	return reviews, count, nil
}

func (s *reviewService) Update(ctx context.Context, p *auth.Principal, id string, updates *model.ReviewUpdate) (*model.Review, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil || p.UserID != existing.CustomerID {
		return nil, apperrors.Forbidden("Only the author can edit a review")
	}

	merged := *existing
	if updates.Rating != nil {
		merged.Rating = *updates.Rating
	}
	if updates.Title != nil {
		merged.Title = *updates.Title
	}
	if updates.Comment != nil {
		merged.Comment = *updates.Comment
	}
	sanitizeReview(&merged)

	if err := s.validator.ValidateReview(&merged); err != nil {
		s.cfg.Log.Warn("Review validation failed", "id", id, "error", err)
		return nil, validation.ToAppError("Review", err)
	}

	changes := &postgres.Changes{}
	if merged.Rating != existing.Rating {
		changes.Set("rating", merged.Rating)
	}
	if merged.Title != existing.Title {
		changes.Set("title", merged.Title)
	}
	if merged.Comment != existing.Comment {
		changes.Set("comment", merged.Comment)
	}
	if changes.Len() == 0 {
		return existing, nil
	}

	ratingChanged := merged.Rating != existing.Rating
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, id, changes); err != nil {
			return err
		}
		if ratingChanged {
			return s.repo.RecomputeAggregates(txCtx, existing.InstituteID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, reviewerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Review", id)
		}
		s.cfg.Log.Error("Failed to update review", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update review", err)
	}
	if ratingChanged {
		s.cache.Invalidate(ctx, existing.InstituteID)
	}

	s.cfg.Log.Info("Review updated successfully", "id", id, "fields", changes.Columns())
	return s.GetByID(ctx, id)
}

func (s *reviewService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil || (p.UserID != existing.CustomerID && !p.IsAdmin()) {
		return apperrors.Forbidden("Only the author or an admin can delete a review")
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, id); err != nil {
			return err
		}
		return s.repo.RecomputeAggregates(txCtx, existing.InstituteID)
	})
	if err != nil {
		if errors.Is(err, reviewerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Review", id)
		}
		s.cfg.Log.Error("Failed to delete review", "id", id, "error", err)
		return apperrors.Internal("Failed to delete review", err)
	}

	s.cache.Invalidate(ctx, existing.InstituteID)
	s.cfg.Log.Info("Review deleted successfully", "id", id, "institute_id", existing.InstituteID)
	return nil
}

func (s *reviewService) Reply(ctx context.Context, p *auth.Principal, id string, reply *model.ReviewReply) (*model.Review, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireInstituteOwner(ctx, p, existing.InstituteID); err != nil {
		return nil, err
	}

	reply.Reply = sanitizer.SanitizeText(reply.Reply)
	if err := s.validator.ValidateReply(reply); err != nil {
		s.cfg.Log.Warn("Review reply validation failed", "id", id, "error", err)
		return nil, validation.ToAppError("Review reply", err)
	}

	if err := s.repo.SetReply(ctx, id, reply.Reply, s.now().UTC()); err != nil {
		if errors.Is(err, reviewerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Review", id)
		}
		s.cfg.Log.Error("Failed to save review reply", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to save reply", err)
	}

	s.cfg.Log.Info("Review reply saved", "id", id, "institute_id", existing.InstituteID)
	return s.GetByID(ctx, id)
}

func (s *reviewService) publishCreated(ctx context.Context, review *model.Review) {
	contacts, err := s.repo.FindContacts(ctx, review.InstituteID)
	if err != nil {
		s.cfg.Log.Warn("Skipping review event, contacts unavailable", "id", review.ID, "error", err)
		return
	}

	s.publisher.Publish(ctx, events.TypeReviewCreated, review.ID, events.ReviewCreated{
		ReviewID:      review.ID,
		InstituteID:   review.InstituteID,
		InstituteName: contacts.InstituteName,
		Owner:         events.Recipient{UserID: contacts.OwnerID, Email: contacts.OwnerEmail, Name: contacts.OwnerName},
		CustomerName:  review.CustomerName,
		Rating:        review.Rating,
		Title:         review.Title,
	})
}

func sanitizeReview(r *model.Review) {
	r.Title = sanitizer.SanitizeLine(r.Title)
	r.Comment = sanitizer.SanitizeText(r.Comment)
}
