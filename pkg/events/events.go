package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeUserRegistered           = "user.registered"
	TypeAppointmentBooked        = "appointment.booked"
	TypeAppointmentStatusChanged = "appointment.status_changed"
	TypeAppointmentReminder      = "appointment.reminder"
	TypeReviewCreated            = "review.created"
	TypeWorkshopRegistered       = "workshop.registered"
	TypeMessageSent              = "message.sent"
)

// Event is the envelope written to the events topic.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Occurred    time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

func New(eventType, aggregateID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Occurred:    time.Now().UTC(),
		Payload:     raw,
	}, nil
}

func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher delivers domain events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, eventType, aggregateID string, payload any)
}

type Recipient struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type UserRegistered struct {
	User Recipient `json:"user"`
	Role string    `json:"role"`
}

type AppointmentPayload struct {
	AppointmentID string    `json:"appointment_id"`
	Customer      Recipient `json:"customer"`
	Owner         Recipient `json:"owner"`
	InstituteID   string    `json:"institute_id"`
	InstituteName string    `json:"institute_name"`
	ServiceName   string    `json:"service_name"`
	StartTime     time.Time `json:"start_time"`
	Timezone      string    `json:"timezone"`
	Status        string    `json:"status"`
	OldStatus     string    `json:"old_status,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Price         string    `json:"price"`
	Currency      string    `json:"currency"`
	PointsAwarded int       `json:"points_awarded,omitempty"`
}

type ReviewCreated struct {
	ReviewID      string    `json:"review_id"`
	InstituteID   string    `json:"institute_id"`
	InstituteName string    `json:"institute_name"`
	Owner         Recipient `json:"owner"`
	CustomerName  string    `json:"customer_name"`
	Rating        int       `json:"rating"`
	Title         string    `json:"title"`
}

type WorkshopRegistered struct {
	WorkshopID    string    `json:"workshop_id"`
	Title         string    `json:"title"`
	InstituteName string    `json:"institute_name"`
	StartsAt      time.Time `json:"starts_at"`
	Timezone      string    `json:"timezone"`
	Customer      Recipient `json:"customer"`
}

type MessageSent struct {
	MessageID     string    `json:"message_id"`
	InstituteID   string    `json:"institute_id"`
	InstituteName string    `json:"institute_name"`
	CustomerID    string    `json:"customer_id"`
	SenderName    string    `json:"sender_name"`
	Recipient     Recipient `json:"recipient"`
	Preview       string    `json:"preview"`
}
