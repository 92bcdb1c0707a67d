package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"freezefit/pkg/model"
)

type AppointmentClient struct {
	http *HttpClient
}

func (c *AppointmentClient) Availability(ctx context.Context, instituteID, serviceID string, date time.Time) (*model.Availability, error) {
	q := url.Values{}
	q.Set("service_id", serviceID)
	q.Set("date", date.Format(time.DateOnly))

	var availability model.Availability
	path := "/api/v1/institutes/" + url.PathEscape(instituteID) + "/availability?" + q.Encode()
	if _, err := c.http.Get(ctx, path, &availability); err != nil {
		return nil, err
	}
	return &availability, nil
}

func (c *AppointmentClient) Book(ctx context.Context, req *model.AppointmentRequest) (*model.Appointment, error) {
	var appointment model.Appointment
	if err := c.http.Post(ctx, "/api/v1/appointments", req, &appointment, appointmentViews...); err != nil {
		return nil, err
	}
	return &appointment, nil
}

func (c *AppointmentClient) Get(ctx context.Context, id string) (*model.Appointment, error) {
	var appointment model.Appointment
	if _, err := c.http.Get(ctx, "/api/v1/appointments/"+url.PathEscape(id), &appointment); err != nil {
		return nil, err
	}
	return &appointment, nil
}

func (c *AppointmentClient) ListMine(ctx context.Context, status string, upcoming bool, limit, offset int) ([]*model.Appointment, *Meta, error) {
	q := url.Values{}
	setString(q, "status", status)
	if upcoming {
		q.Set("upcoming", "true")
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var appointments []*model.Appointment
	meta, err := c.http.Get(ctx, "/api/v1/users/me/appointments?"+q.Encode(), &appointments)
	if err != nil {
		return nil, nil, err
	}
	return appointments, meta, nil
}

// ChangeStatus confirms, completes or cancels an appointment. Completion
// credits loyalty points, so the caller's cached loyalty status is dropped.
func (c *AppointmentClient) ChangeStatus(ctx context.Context, id, status, reason string) (*model.Appointment, error) {
	var appointment model.Appointment
	req := &model.StatusChange{Status: status, Reason: reason}
	if err := c.http.Patch(ctx, "/api/v1/appointments/"+url.PathEscape(id)+"/status", req, &appointment, appointmentViews...); err != nil {
		return nil, err
	}
	return &appointment, nil
}

func (c *AppointmentClient) Reschedule(ctx context.Context, id string, start time.Time) (*model.Appointment, error) {
	var appointment model.Appointment
	req := &model.RescheduleRequest{StartTime: start}
	if err := c.http.Patch(ctx, "/api/v1/appointments/"+url.PathEscape(id)+"/reschedule", req, &appointment, appointmentViews...); err != nil {
		return nil, err
	}
	return &appointment, nil
}

// appointmentViews are the cached views an appointment write changes besides
// the appointment itself.
var appointmentViews = []string{"/api/v1/users/me", "/api/v1/institutes"}
