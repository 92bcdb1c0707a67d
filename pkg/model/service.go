package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CategoryWholeBody   = "whole_body"
	CategoryPartialBody = "partial_body"
	CategoryLocal       = "local"
	CategoryFacial      = "facial"
	CategoryOther       = "other"
)

// Service is a bookable cryotherapy offering of an institute.
type Service struct {
	ID              string          `json:"id" db:"id"`
	InstituteID     string          `json:"institute_id" db:"institute_id" validate:"required,uuid"`
	Name            string          `json:"name" db:"name" validate:"required,min=2,max=120"`
	Description     string          `json:"description" db:"description" validate:"max=2000"`
	Category        string          `json:"category" db:"category" validate:"required,oneof=whole_body partial_body local facial other"`
	DurationMin     int             `json:"duration_min" db:"duration_min" validate:"required,min=5,max=240"`
	Price           decimal.Decimal `json:"price" db:"price" validate:"gte=0"`
	Currency        string          `json:"currency" db:"currency" validate:"required,iso4217"`
	MaxParticipants int             `json:"max_participants" db:"max_participants" validate:"required,min=1,max=50"`
	IsActive        bool            `json:"is_active" db:"is_active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

type ServiceCreate struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	DurationMin     int             `json:"duration_min"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency,omitempty"`
	MaxParticipants int             `json:"max_participants,omitempty"`
	IsActive        *bool           `json:"is_active,omitempty"`
}

type ServiceUpdate struct {
	Name            *string          `json:"name,omitempty"`
	Description     *string          `json:"description,omitempty"`
	Category        *string          `json:"category,omitempty"`
	DurationMin     *int             `json:"duration_min,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	Currency        *string          `json:"currency,omitempty"`
	MaxParticipants *int             `json:"max_participants,omitempty"`
	IsActive        *bool            `json:"is_active,omitempty"`
}
