package model

import "time"

type Favorite struct {
	InstituteID   string    `json:"institute_id" db:"institute_id"`
	InstituteName string    `json:"institute_name" db:"institute_name"`
	City          string    `json:"city" db:"city"`
	ImageURL      string    `json:"image_url,omitempty" db:"image_url"`
	AverageRating float64   `json:"average_rating" db:"average_rating"`
	ReviewCount   int       `json:"review_count" db:"review_count"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
