package service

import (
	"context"
	"errors"
	"time"

	"freezefit/internal/access"
	hourserrors "freezefit/internal/businesshours/errors"
	"freezefit/internal/businesshours/repository"
	"freezefit/internal/businesshours/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/model"
	"freezefit/pkg/sanitizer"
	"freezefit/pkg/validation"
)

const dateLayout = "2006-01-02"

type HoursService interface {
	GetWeek(ctx context.Context, instituteID string) ([]model.BusinessHours, error)
	ReplaceWeek(ctx context.Context, p *auth.Principal, instituteID string, week *model.WeekHours) ([]model.BusinessHours, error)
	OpeningHours(ctx context.Context, instituteID string, day time.Time) (*model.BusinessHours, error)
	ListClosures(ctx context.Context, instituteID string) ([]*model.Closure, error)
	CreateClosure(ctx context.Context, p *auth.Principal, instituteID string, closure *model.Closure) error
	DeleteClosure(ctx context.Context, p *auth.Principal, id string) error
}

type hoursService struct {
	repo      repository.HoursRepository
	validator *validator.HoursValidator
	access    access.Checker
	cfg       *config.Config
}

func NewHoursService(
	repo repository.HoursRepository,
	validator *validator.HoursValidator,
	access access.Checker,
	cfg *config.Config,
) HoursService {
	return &hoursService{
		repo:      repo,
		validator: validator,
		access:    access,
		cfg:       cfg,
	}
}

// GetWeek always returns seven entries, Sunday first. Days without stored
// hours are reported closed.
func (s *hoursService) GetWeek(ctx context.Context, instituteID string) ([]model.BusinessHours, error) {
	stored, err := s.repo.FindWeek(ctx, instituteID)
	if err != nil {
		if errors.Is(err, hourserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid institute ID format")
		}
		s.cfg.Log.Error("Failed to load business hours", "institute_id", instituteID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve business hours", err)
	}

	week := make([]model.BusinessHours, 7)
	for i := range week {
		week[i] = model.BusinessHours{InstituteID: instituteID, Weekday: i, IsClosed: true}
	}
	for _, d := range stored {
		if d.Weekday >= 0 && d.Weekday < 7 {
			week[d.Weekday] = d
		}
	}
	return week, nil
}

func (s *hoursService) ReplaceWeek(ctx context.Context, p *auth.Principal, instituteID string, week *model.WeekHours) ([]model.BusinessHours, error) {
	if err := s.access.RequireInstituteOwner(ctx, p, instituteID); err != nil {
		return nil, err
	}

	for i := range week.Days {
		d := &week.Days[i]
		d.InstituteID = instituteID
		if d.IsClosed {
			d.OpenTime, d.CloseTime = "", ""
		}
	}

	if err := s.validator.ValidateWeek(week); err != nil {
		s.cfg.Log.Warn("Business hours validation failed", "institute_id", instituteID, "error", err)
		return nil, validation.ToAppError("Business hours", err)
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.ReplaceWeek(txCtx, instituteID, week.Days)
	})
	if err != nil {
		if errors.Is(err, hourserrors.ErrInstituteNotFound) {
			return nil, apperrors.NotFoundWithID("Institute", instituteID)
		}
		s.cfg.Log.Error("Failed to replace business hours", "institute_id", instituteID, "error", err)
		return nil, apperrors.Internal("Failed to save business hours", err)
	}

	s.cfg.Log.Info("Business hours replaced", "institute_id", instituteID, "days", len(week.Days))
	return s.GetWeek(ctx, instituteID)
}

// OpeningHours returns the window the institute is open on day, or nil when
// it is closed that day (no hours, weekly rest day, or special closure).
// day must already be in the institute's zone.
func (s *hoursService) OpeningHours(ctx context.Context, instituteID string, day time.Time) (*model.BusinessHours, error) {
	hours, err := s.repo.FindDay(ctx, instituteID, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	if hours == nil || hours.IsClosed {
		return nil, nil
	}

	closed, err := s.repo.IsClosedOn(ctx, instituteID, day.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, nil
	}
	return hours, nil
}

// ListClosures returns today's and future closures.
func (s *hoursService) ListClosures(ctx context.Context, instituteID string) ([]*model.Closure, error) {
	closures, err := s.repo.FindClosures(ctx, instituteID, time.Now().Format(dateLayout))
	if err != nil {
		if errors.Is(err, hourserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid institute ID format")
		}
		s.cfg.Log.Error("Failed to list closures", "institute_id", instituteID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve closures", err)
	}
	return closures, nil
}

func (s *hoursService) CreateClosure(ctx context.Context, p *auth.Principal, instituteID string, closure *model.Closure) error {
	if err := s.access.RequireInstituteOwner(ctx, p, instituteID); err != nil {
		return err
	}

	closure.InstituteID = instituteID
	closure.Reason = sanitizer.SanitizeLine(closure.Reason)

	if err := s.validator.ValidateClosure(closure); err != nil {
		return validation.ToAppError("Closure", err)
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.CreateClosure(txCtx, closure)
	})
	if err != nil {
		switch {
		case errors.Is(err, hourserrors.ErrClosureExists):
			return apperrors.Conflict("A closure already exists for " + closure.Date)
		case errors.Is(err, hourserrors.ErrInstituteNotFound):
			return apperrors.NotFoundWithID("Institute", instituteID)
		}
		s.cfg.Log.Error("Failed to create closure", "institute_id", instituteID, "date", closure.Date, "error", err)
		return apperrors.Internal("Failed to create closure", err)
	}

	s.cfg.Log.Info("Closure created", "id", closure.ID, "institute_id", instituteID, "date", closure.Date)
	return nil
}

func (s *hoursService) DeleteClosure(ctx context.Context, p *auth.Principal, id string) error {
	closure, err := s.repo.FindClosure(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, hourserrors.ErrClosureNotFound):
			return apperrors.NotFoundWithID("Closure", id)
		case errors.Is(err, hourserrors.ErrInvalidID):
			return apperrors.InvalidInput("Invalid closure ID format")
		}
		return apperrors.Internal("Failed to retrieve closure", err)
	}

	if err := s.access.RequireInstituteOwner(ctx, p, closure.InstituteID); err != nil {
		return err
	}

	if err := s.repo.DeleteClosure(ctx, id); err != nil {
		if errors.Is(err, hourserrors.ErrClosureNotFound) {
			return apperrors.NotFoundWithID("Closure", id)
		}
		s.cfg.Log.Error("Failed to delete closure", "id", id, "error", err)
		return apperrors.Internal("Failed to delete closure", err)
	}

	s.cfg.Log.Info("Closure deleted", "id", id, "institute_id", closure.InstituteID)
	return nil
}
