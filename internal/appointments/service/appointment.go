package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"freezefit/internal/access"
	appointmenterrors "freezefit/internal/appointments/errors"
	"freezefit/internal/appointments/repository"
	"freezefit/internal/appointments/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/events"
	"freezefit/pkg/locale"
	"freezefit/pkg/model"
	"freezefit/pkg/sanitizer"
	"freezefit/pkg/validation"

	"github.com/shopspring/decimal"
)

const (
	dateLayout      = "2006-01-02"
	expiredReason   = "expired"
	reminderBatch   = 100
	clockTimeLayout = "15:04"
)

// HoursProvider resolves the opening window of an institute on a local day.
type HoursProvider interface {
	OpeningHours(ctx context.Context, instituteID string, day time.Time) (*model.BusinessHours, error)
}

// PointsAwarder credits loyalty points for a completed appointment.
type PointsAwarder interface {
	AwardAppointment(ctx context.Context, userID string, price decimal.Decimal, appointmentID string) (int, error)
}

// transitions lists the allowed status changes. Terminal statuses have none.
var transitions = map[string][]string{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusNoShow, model.StatusCancelled},
}

type AppointmentService interface {
	Book(ctx context.Context, p *auth.Principal, req *model.AppointmentRequest) (*model.Appointment, error)
	GetByID(ctx context.Context, p *auth.Principal, id string) (*model.Appointment, error)
	ListMine(ctx context.Context, p *auth.Principal, filter *model.AppointmentFilter) ([]*model.Appointment, int64, error)
	ListForInstitute(ctx context.Context, p *auth.Principal, instituteID string, filter *model.AppointmentFilter) ([]*model.Appointment, int64, error)
	ChangeStatus(ctx context.Context, p *auth.Principal, id string, change *model.StatusChange) (*model.Appointment, error)
	Reschedule(ctx context.Context, p *auth.Principal, id string, req *model.RescheduleRequest) (*model.Appointment, error)
	Availability(ctx context.Context, instituteID string, serviceID string, date string) (*model.Availability, error)
	SendReminders(ctx context.Context) (int, error)
	ExpirePending(ctx context.Context) (int, error)
}

type appointmentService struct {
	repo      repository.AppointmentRepository
	validator *validator.AppointmentValidator
	access    access.Checker
	hours     HoursProvider
	loyalty   PointsAwarder
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewAppointmentService(
	repo repository.AppointmentRepository,
	validator *validator.AppointmentValidator,
	access access.Checker,
	hours HoursProvider,
	loyalty PointsAwarder,
	publisher events.Publisher,
	cfg *config.Config,
) AppointmentService {
	return &appointmentService{
		repo:      repo,
		validator: validator,
		access:    access,
		hours:     hours,
		loyalty:   loyalty,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *appointmentService) Book(ctx context.Context, p *auth.Principal, req *model.AppointmentRequest) (*model.Appointment, error) {
	if p == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	req.Notes = sanitizer.SanitizeText(req.Notes)
	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Appointment validation failed", "customer_id", p.UserID, "error", err)
		return nil, validation.ToAppError("Appointment", err)
	}

	target, err := s.loadTarget(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if req.TherapistID != nil {
		if err := s.checkTherapist(ctx, *req.TherapistID, target.InstituteID); err != nil {
			return nil, err
		}
	}

	start := req.StartTime.UTC().Truncate(time.Minute)
	end := start.Add(time.Duration(target.DurationMin) * time.Minute)
	if err := s.checkSlot(ctx, target, start, end); err != nil {
		return nil, err
	}

	appointment := &model.Appointment{
		CustomerID:    p.UserID,
		InstituteID:   target.InstituteID,
		ServiceID:     target.ServiceID,
		TherapistID:   req.TherapistID,
		StartTime:     start,
		EndTime:       end,
		Status:        model.StatusPending,
		Notes:         req.Notes,
		Price:         target.Price,
		Currency:      target.Currency,
		ServiceName:   target.ServiceName,
		InstituteName: target.InstituteName,
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.reserve(txCtx, target, appointment.TherapistID, start, end, ""); err != nil {
			return err
		}
		return s.repo.Create(txCtx, appointment)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		if errors.Is(err, appointmenterrors.ErrServiceNotFound) {
			return nil, apperrors.NotFoundWithID("Service", req.ServiceID)
		}
		s.cfg.Log.Error("Failed to book appointment", "service_id", req.ServiceID, "customer_id", p.UserID, "error", err)
		return nil, apperrors.Internal("Failed to book appointment", err)
	}

	s.cfg.Log.Info("Appointment booked successfully",
		"id", appointment.ID,
		"institute_id", appointment.InstituteID,
		"service_id", appointment.ServiceID,
		"start_time", appointment.StartTime,
	)
	s.publish(ctx, events.TypeAppointmentBooked, appointment, "", "")
	return appointment, nil
}

// GetByID is visible to the customer, the institute owner and admins.
func (s *appointmentService) GetByID(ctx context.Context, p *auth.Principal, id string) (*model.Appointment, error) {
	if p == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.CustomerID == p.UserID {
		return appointment, nil
	}

	owner, err := s.access.IsInstituteOwner(ctx, p, appointment.InstituteID)
	if err != nil {
		return nil, apperrors.Internal("Failed to verify institute ownership", err)
	}
	if !owner {
		return nil, apperrors.Forbidden("You cannot view this appointment")
	}
	return appointment, nil
}

func (s *appointmentService) ListMine(ctx context.Context, p *auth.Principal, filter *model.AppointmentFilter) ([]*model.Appointment, int64, error) {
	if p == nil {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	return s.list(ctx, filter, "customer_id", p.UserID, s.repo.CountByCustomer, s.repo.FindByCustomer)
}

func (s *appointmentService) ListForInstitute(ctx context.Context, p *auth.Principal, instituteID string, filter *model.AppointmentFilter) ([]*model.Appointment, int64, error) {
	if err := s.access.RequireInstituteOwner(ctx, p, instituteID); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, filter, "institute_id", instituteID, s.repo.CountByInstitute, s.repo.FindByInstitute)
}

func (s *appointmentService) list(
	ctx context.Context,
	filter *model.AppointmentFilter,
	scope string,
	scopeID string,
	countFn func(context.Context, string, *model.AppointmentFilter) (int64, error),
	findFn func(context.Context, string, *model.AppointmentFilter) ([]*model.Appointment, error),
) ([]*model.Appointment, int64, error) {
	filter.Limit = config.NormalizePaginationLimit(filter.Limit)
	filter.Offset = config.NormalizeOffset(filter.Offset)

	if err := s.validator.ValidateFilter(filter); err != nil {
		return nil, 0, validation.ToAppError("Appointment filter", err)
	}

	var count int64
	var appointments []*model.Appointment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		count, errCount = countFn(ctx, scopeID, filter)
	}()
	go func() {
		defer wg.Done()
		appointments, errFind = findFn(ctx, scopeID, filter)
	}()
	wg.Wait()

	for _, err := range []error{errCount, errFind} {
		if err != nil {
			s.cfg.Log.Error("Failed to list appointments", scope, scopeID, "error", err)
			return nil, 0, apperrors.Internal("Failed to retrieve appointments", err)
		}
	}
	return appointments, count, nil
}

func (s *appointmentService) ChangeStatus(ctx context.Context, p *auth.Principal, id string, change *model.StatusChange) (*model.Appointment, error) {
	if p == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	change.Reason = sanitizer.SanitizeLine(change.Reason)
	if err := s.validator.ValidateStatusChange(change); err != nil {
		return nil, validation.ToAppError("Status change", err)
	}

	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	owner, err := s.access.IsInstituteOwner(ctx, p, appointment.InstituteID)
	if err != nil {
		return nil, apperrors.Internal("Failed to verify institute ownership", err)
	}
	customer := appointment.CustomerID == p.UserID
	if !owner && !customer {
		return nil, apperrors.Forbidden("You cannot change this appointment")
	}

	if appointment.IsTerminal() {
		return nil, apperrors.Conflict(fmt.Sprintf("Appointment is already %s", appointment.Status))
	}
	if !allowed(appointment.Status, change.Status) {
		return nil, apperrors.Conflict(fmt.Sprintf("Cannot change status from %s to %s", appointment.Status, change.Status))
	}

	now := s.now()
	if !owner {
		if change.Status != model.StatusCancelled {
			return nil, apperrors.Forbidden("Customers can only cancel appointments")
		}
		if err := s.checkCancellationWindow(appointment, now); err != nil {
			return nil, err
		}
	}
	if (change.Status == model.StatusCompleted || change.Status == model.StatusNoShow) && appointment.StartTime.After(now) {
		return nil, apperrors.Conflict("Appointment has not started yet")
	}

	reason := ""
	if change.Status == model.StatusCancelled {
		reason = change.Reason
	}

	oldStatus := appointment.Status
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateStatus(txCtx, id, oldStatus, change.Status, reason); err != nil {
			if errors.Is(err, appointmenterrors.ErrNotFound) {
				return apperrors.Conflict("Appointment was changed concurrently, please reload")
			}
			return err
		}
		if change.Status != model.StatusCompleted || appointment.PointsAwarded > 0 {
			return nil
		}
		points, err := s.loyalty.AwardAppointment(txCtx, appointment.CustomerID, appointment.Price, appointment.ID)
		if err != nil {
			return err
		}
		appointment.PointsAwarded = points
		return s.repo.SetPointsAwarded(txCtx, id, points)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		s.cfg.Log.Error("Failed to change appointment status", "id", id, "status", change.Status, "error", err)
		return nil, apperrors.Internal("Failed to change appointment status", err)
	}

	appointment.Status = change.Status
	appointment.CancelReason = reason

	s.cfg.Log.Info("Appointment status changed",
		"id", id,
		"from", oldStatus,
		"to", change.Status,
		"by", p.UserID,
		"points_awarded", appointment.PointsAwarded,
	)
	s.publish(ctx, events.TypeAppointmentStatusChanged, appointment, oldStatus, reason)
	return appointment, nil
}

func (s *appointmentService) Reschedule(ctx context.Context, p *auth.Principal, id string, req *model.RescheduleRequest) (*model.Appointment, error) {
	if p == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if err := s.validator.ValidateReschedule(req); err != nil {
		return nil, validation.ToAppError("Reschedule", err)
	}

	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.CustomerID != p.UserID && !p.IsAdmin() {
		return nil, apperrors.Forbidden("Only the customer can reschedule this appointment")
	}
	if appointment.IsTerminal() {
		return nil, apperrors.Conflict(fmt.Sprintf("Appointment is already %s", appointment.Status))
	}
	if err := s.checkCancellationWindow(appointment, s.now()); err != nil {
		return nil, err
	}

	target, err := s.loadTarget(ctx, appointment.ServiceID)
	if err != nil {
		return nil, err
	}

	start := req.StartTime.UTC().Truncate(time.Minute)
	end := start.Add(time.Duration(target.DurationMin) * time.Minute)
	if start.Equal(appointment.StartTime) {
		return appointment, nil
	}
	if err := s.checkSlot(ctx, target, start, end); err != nil {
		return nil, err
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.reserve(txCtx, target, appointment.TherapistID, start, end, appointment.ID); err != nil {
			return err
		}
		return s.repo.Reschedule(txCtx, id, start, end)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		if errors.Is(err, appointmenterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Appointment", id)
		}
		s.cfg.Log.Error("Failed to reschedule appointment", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to reschedule appointment", err)
	}

	s.cfg.Log.Info("Appointment rescheduled", "id", id, "from", appointment.StartTime, "to", start)
	appointment.StartTime = start
	appointment.EndTime = end
	appointment.ReminderSentAt = nil
	return appointment, nil
}

// Availability lists the bookable slots of a service on a local date. Slots
// are stepped by the service duration from opening time.
func (s *appointmentService) Availability(ctx context.Context, instituteID string, serviceID string, date string) (*model.Availability, error) {
	if serviceID == "" {
		return nil, apperrors.InvalidInput("service_id parameter is required")
	}

	target, err := s.loadTarget(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if target.InstituteID != instituteID {
		return nil, apperrors.NotFoundWithID("Service", serviceID)
	}

	loc := locale.LoadLocation(target.Timezone)
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid date parameter: " + date)
	}

	result := &model.Availability{
		InstituteID: instituteID,
		ServiceID:   serviceID,
		Date:        date,
		Timezone:    loc.String(),
		Slots:       []model.Slot{},
	}

	hours, err := s.hours.OpeningHours(ctx, instituteID, day)
	if err != nil {
		s.cfg.Log.Error("Failed to load opening hours", "institute_id", instituteID, "date", date, "error", err)
		return nil, apperrors.Internal("Failed to load opening hours", err)
	}
	if hours == nil {
		result.Closed = true
		return result, nil
	}

	open, closing, err := window(day, hours)
	if err != nil {
		return nil, apperrors.Internal("Stored business hours are invalid", err)
	}

	booked, err := s.repo.BookedRanges(ctx, serviceID, open, closing)
	if err != nil {
		s.cfg.Log.Error("Failed to load booked slots", "service_id", serviceID, "date", date, "error", err)
		return nil, apperrors.Internal("Failed to load availability", err)
	}

	now := s.now()
	step := time.Duration(target.DurationMin) * time.Minute
	for start := open; !start.Add(step).After(closing); start = start.Add(step) {
		if !start.After(now) {
			continue
		}
		end := start.Add(step)
		free := target.MaxParticipants - overlapping(booked, start, end)
		if free <= 0 {
			continue
		}
		result.Slots = append(result.Slots, model.Slot{StartTime: start, EndTime: end, Available: free})
	}
	return result, nil
}

// SendReminders publishes reminder events for confirmed appointments starting
// within the configured lead time. Appointments are claimed before the event
// goes out, so overlapping runs never remind twice.
func (s *appointmentService) SendReminders(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.repo.ClaimDueReminders(ctx, now, now.Add(s.cfg.ReminderLeadTime), reminderBatch)
	if err != nil {
		return 0, err
	}

	for _, appointment := range due {
		s.publish(ctx, events.TypeAppointmentReminder, appointment, "", "")
	}
	return len(due), nil
}

// ExpirePending cancels pending appointments whose start time has passed.
func (s *appointmentService) ExpirePending(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpirePending(ctx, s.now(), expiredReason)
	if err != nil {
		return 0, err
	}
	for _, appointment := range expired {
		s.publish(ctx, events.TypeAppointmentStatusChanged, appointment, model.StatusPending, expiredReason)
	}
	return len(expired), nil
}

func (s *appointmentService) load(ctx context.Context, id string) (*model.Appointment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	appointment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appointmenterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Appointment", id)
		}
		if errors.Is(err, appointmenterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid appointment ID format")
		}
		s.cfg.Log.Error("Failed to get appointment by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve appointment", err)
	}
	return appointment, nil
}

func (s *appointmentService) loadTarget(ctx context.Context, serviceID string) (*repository.BookingTarget, error) {
	target, err := s.repo.FindTarget(ctx, serviceID)
	if err != nil {
		if errors.Is(err, appointmenterrors.ErrServiceNotFound) {
			return nil, apperrors.NotFoundWithID("Service", serviceID)
		}
		s.cfg.Log.Error("Failed to load service for booking", "service_id", serviceID, "error", err)
		return nil, apperrors.Internal("Failed to load service", err)
	}
	if !target.ServiceActive || !target.InstituteActive {
		return nil, apperrors.Validation("Service is not bookable", map[string]any{"service_id": serviceID})
	}
	return target, nil
}

func (s *appointmentService) checkTherapist(ctx context.Context, therapistID, instituteID string) error {
	ref, err := s.repo.FindTherapist(ctx, therapistID)
	if err != nil {
		if errors.Is(err, appointmenterrors.ErrTherapistNotFound) {
			return apperrors.NotFoundWithID("Therapist", therapistID)
		}
		return apperrors.Internal("Failed to load therapist", err)
	}
	if ref.InstituteID != instituteID || !ref.IsActive {
		return apperrors.Validation("Therapist is not available at this institute", map[string]any{"therapist_id": therapistID})
	}
	return nil
}

// checkSlot verifies the slot is in the future and inside the opening hours
// of the institute's local day.
func (s *appointmentService) checkSlot(ctx context.Context, target *repository.BookingTarget, start, end time.Time) error {
	if !start.After(s.now()) {
		return apperrors.Validation("Appointment must start in the future", map[string]any{"start_time": start})
	}

	loc := locale.LoadLocation(target.Timezone)
	localStart := start.In(loc)

	hours, err := s.hours.OpeningHours(ctx, target.InstituteID, localStart)
	if err != nil {
		s.cfg.Log.Error("Failed to load opening hours", "institute_id", target.InstituteID, "error", err)
		return apperrors.Internal("Failed to load opening hours", err)
	}
	if hours == nil {
		return apperrors.Validation("Institute is closed on this day", map[string]any{"date": localStart.Format(dateLayout)})
	}

	open, closing, err := window(localStart, hours)
	if err != nil {
		return apperrors.Internal("Stored business hours are invalid", err)
	}
	if start.Before(open) || end.After(closing) {
		return apperrors.Validation("Appointment is outside business hours", map[string]any{
			"open_time":  hours.OpenTime,
			"close_time": hours.CloseTime,
		})
	}
	return nil
}

// reserve takes the institute-day lock and checks capacity and therapist
// overlap. Must run inside a transaction.
func (s *appointmentService) reserve(ctx context.Context, target *repository.BookingTarget, therapistID *string, start, end time.Time, excludeID string) error {
	day := start.In(locale.LoadLocation(target.Timezone))
	if err := s.repo.LockInstituteDay(ctx, target.InstituteID, day); err != nil {
		return err
	}

	booked, err := s.repo.CountOverlapping(ctx, target.ServiceID, start, end, excludeID)
	if err != nil {
		return err
	}
	if booked >= target.MaxParticipants {
		return apperrors.Conflict("This time slot is fully booked")
	}

	if therapistID != nil {
		busy, err := s.repo.TherapistBusy(ctx, *therapistID, start, end, excludeID)
		if err != nil {
			return err
		}
		if busy {
			return apperrors.Conflict("The therapist already has an appointment at this time")
		}
	}
	return nil
}

func (s *appointmentService) checkCancellationWindow(appointment *model.Appointment, now time.Time) error {
	if appointment.Status != model.StatusConfirmed {
		return nil
	}
	if appointment.StartTime.Sub(now) < s.cfg.CancellationWindow {
		return apperrors.Conflict(fmt.Sprintf(
			"Confirmed appointments can only be changed at least %s before the start", s.cfg.CancellationWindow))
	}
	return nil
}

func (s *appointmentService) publish(ctx context.Context, eventType string, a *model.Appointment, oldStatus, reason string) {
	contacts, err := s.repo.FindContacts(ctx, a.ID)
	if err != nil {
		s.cfg.Log.Warn("Skipping appointment event, contacts unavailable", "id", a.ID, "event_type", eventType, "error", err)
		return
	}

	s.publisher.Publish(ctx, eventType, a.ID, events.AppointmentPayload{
		AppointmentID: a.ID,
		Customer:      events.Recipient{UserID: contacts.CustomerID, Email: contacts.CustomerEmail, Name: contacts.CustomerName},
		Owner:         events.Recipient{UserID: contacts.OwnerID, Email: contacts.OwnerEmail, Name: contacts.OwnerName},
		InstituteID:   a.InstituteID,
		InstituteName: a.InstituteName,
		ServiceName:   a.ServiceName,
		StartTime:     a.StartTime,
		Timezone:      contacts.Timezone,
		Status:        a.Status,
		OldStatus:     oldStatus,
		Reason:        reason,
		Price:         a.Price.StringFixed(2),
		Currency:      a.Currency,
		PointsAwarded: a.PointsAwarded,
	})
}

func allowed(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// window returns the opening and closing instants of hours on day's date in
// day's location.
func window(day time.Time, hours *model.BusinessHours) (time.Time, time.Time, error) {
	open, err := clockOn(day, hours.OpenTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	closing, err := clockOn(day, hours.CloseTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return open, closing, nil
}

func clockOn(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse(clockTimeLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q: %w", clock, err)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

func overlapping(booked []repository.TimeRange, start, end time.Time) int {
	n := 0
	for _, b := range booked {
		if b.StartTime.Before(end) && b.EndTime.After(start) {
			n++
		}
	}
	return n
}
