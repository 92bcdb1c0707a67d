package model

import "time"

type Review struct {
	ID            string     `json:"id" db:"id"`
	InstituteID   string     `json:"institute_id" db:"institute_id"`
	CustomerID    string     `json:"customer_id" db:"customer_id"`
	CustomerName  string     `json:"customer_name" db:"customer_name"`
	AppointmentID *string    `json:"appointment_id,omitempty" db:"appointment_id"`
	Rating        int        `json:"rating" db:"rating" validate:"required,min=1,max=5"`
	Title         string     `json:"title" db:"title" validate:"max=120"`
	Comment       string     `json:"comment" db:"comment" validate:"max=2000"`
	ProviderReply string     `json:"provider_reply,omitempty" db:"provider_reply"`
	RepliedAt     *time.Time `json:"replied_at,omitempty" db:"replied_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

type ReviewCreate struct {
	AppointmentID *string `json:"appointment_id,omitempty" validate:"omitempty,uuid"`
	Rating        int     `json:"rating"`
	Title         string  `json:"title,omitempty"`
	Comment       string  `json:"comment,omitempty"`
}

type ReviewUpdate struct {
	Rating  *int    `json:"rating,omitempty"`
	Title   *string `json:"title,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

type ReviewReply struct {
	Reply string `json:"reply" validate:"notblank,max=2000"`
}

const (
	ReviewSortNewest     = "newest"
	ReviewSortRatingHigh = "rating_high"
	ReviewSortRatingLow  = "rating_low"
)
