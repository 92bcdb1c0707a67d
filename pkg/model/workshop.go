package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WorkshopScheduled = "scheduled"
	WorkshopCancelled = "cancelled"
)

type Workshop struct {
	ID              string          `json:"id" db:"id"`
	InstituteID     string          `json:"institute_id" db:"institute_id" validate:"required,uuid"`
	Title           string          `json:"title" db:"title" validate:"required,min=3,max=150"`
	Description     string          `json:"description" db:"description" validate:"max=5000"`
	StartsAt        time.Time       `json:"starts_at" db:"starts_at" validate:"required"`
	DurationMin     int             `json:"duration_min" db:"duration_min" validate:"required,min=15,max=720"`
	Capacity        int             `json:"capacity" db:"capacity" validate:"required,min=1,max=500"`
	Price           decimal.Decimal `json:"price" db:"price" validate:"gte=0"`
	Currency        string          `json:"currency" db:"currency" validate:"required,iso4217"`
	RegisteredCount int             `json:"registered_count" db:"registered_count"`
	Status          string          `json:"status" db:"status" validate:"required,oneof=scheduled cancelled"`
	InstituteName   string          `json:"institute_name,omitempty" db:"institute_name"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// SpotsLeft never goes below zero.
func (w *Workshop) SpotsLeft() int {
	return max(0, w.Capacity-w.RegisteredCount)
}

type WorkshopUpdate struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	StartsAt    *time.Time       `json:"starts_at,omitempty"`
	DurationMin *int             `json:"duration_min,omitempty"`
	Capacity    *int             `json:"capacity,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Currency    *string          `json:"currency,omitempty"`
	Status      *string          `json:"status,omitempty"`
}

type WorkshopRegistration struct {
	ID           string    `json:"id" db:"id"`
	WorkshopID   string    `json:"workshop_id" db:"workshop_id"`
	CustomerID   string    `json:"customer_id" db:"customer_id"`
	CustomerName string    `json:"customer_name" db:"customer_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
