package model

import (
	"time"

	"github.com/lib/pq"
)

type Therapist struct {
	ID              string         `json:"id" db:"id"`
	InstituteID     string         `json:"institute_id" db:"institute_id" validate:"required,uuid"`
	Name            string         `json:"name" db:"name" validate:"required,min=2,max=100"`
	Title           string         `json:"title" db:"title" validate:"max=100"`
	Bio             string         `json:"bio" db:"bio" validate:"max=2000"`
	Specializations pq.StringArray `json:"specializations" db:"specializations" validate:"max=20,unique,dive,min=2,max=60"`
	ImageURL        string         `json:"image_url,omitempty" db:"image_url" validate:"omitempty,https_url,max=500"`
	IsActive        bool           `json:"is_active" db:"is_active"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

type TherapistUpdate struct {
	Name            *string   `json:"name,omitempty"`
	Title           *string   `json:"title,omitempty"`
	Bio             *string   `json:"bio,omitempty"`
	Specializations *[]string `json:"specializations,omitempty"`
	ImageURL        *string   `json:"image_url,omitempty"`
	IsActive        *bool     `json:"is_active,omitempty"`
}
