package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

type Appointment struct {
	ID             string          `json:"id" db:"id"`
	CustomerID     string          `json:"customer_id" db:"customer_id"`
	InstituteID    string          `json:"institute_id" db:"institute_id"`
	ServiceID      string          `json:"service_id" db:"service_id"`
	TherapistID    *string         `json:"therapist_id" db:"therapist_id"`
	StartTime      time.Time       `json:"start_time" db:"start_time"`
	EndTime        time.Time       `json:"end_time" db:"end_time"`
	Status         string          `json:"status" db:"status"`
	Notes          string          `json:"notes" db:"notes"`
	Price          decimal.Decimal `json:"price" db:"price"`
	Currency       string          `json:"currency" db:"currency"`
	CancelReason   string          `json:"cancel_reason,omitempty" db:"cancel_reason"`
	ReminderSentAt *time.Time      `json:"reminder_sent_at,omitempty" db:"reminder_sent_at"`
	PointsAwarded  int             `json:"points_awarded" db:"points_awarded"`
	ServiceName    string          `json:"service_name" db:"service_name"`
	InstituteName  string          `json:"institute_name" db:"institute_name"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the status can no longer change.
func (a *Appointment) IsTerminal() bool {
	switch a.Status {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type AppointmentRequest struct {
	ServiceID   string    `json:"service_id" validate:"required,uuid"`
	TherapistID *string   `json:"therapist_id,omitempty" validate:"omitempty,uuid"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	Notes       string    `json:"notes,omitempty" validate:"max=1000"`
}

type StatusChange struct {
	Status string `json:"status" validate:"required,oneof=confirmed completed cancelled no_show"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type RescheduleRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
}

type AppointmentFilter struct {
	Status   string
	Upcoming bool
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

type Slot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Available int       `json:"available"`
}

type Availability struct {
	InstituteID string `json:"institute_id"`
	ServiceID   string `json:"service_id"`
	Date        string `json:"date"`
	Timezone    string `json:"timezone"`
	Closed      bool   `json:"closed"`
	Slots       []Slot `json:"slots"`
}
