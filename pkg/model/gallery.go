package model

import "time"

type GalleryImage struct {
	ID          string    `json:"id" db:"id"`
	InstituteID string    `json:"institute_id" db:"institute_id"`
	ImageURL    string    `json:"image_url" db:"image_url" validate:"required,https_url,max=500"`
	Caption     string    `json:"caption" db:"caption" validate:"max=200"`
	SortOrder   int       `json:"sort_order" db:"sort_order"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type GalleryOrder struct {
	IDs []string `json:"ids" validate:"required,min=1,unique,dive,uuid"`
}
