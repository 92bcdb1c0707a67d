package model

import (
	"time"

	"github.com/lib/pq"
)

type Institute struct {
	ID            string         `json:"id" db:"id"`
	OwnerID       string         `json:"owner_id" db:"owner_id"`
	Name          string         `json:"name" db:"name" validate:"required,min=2,max=120"`
	Description   string         `json:"description" db:"description" validate:"max=5000"`
	Street        string         `json:"street" db:"street" validate:"required,min=2,max=200"`
	PostalCode    string         `json:"postal_code" db:"postal_code" validate:"required,min=3,max=12"`
	City          string         `json:"city" db:"city" validate:"required,min=2,max=100"`
	Country       string         `json:"country" db:"country" validate:"required,iso3166_1_alpha2"`
	Phone         string         `json:"phone,omitempty" db:"phone" validate:"omitempty,e164"`
	Email         string         `json:"email,omitempty" db:"email" validate:"omitempty,email,max=254"`
	WebsiteURL    string         `json:"website_url,omitempty" db:"website_url" validate:"omitempty,url,max=500"`
	Latitude      *float64       `json:"latitude" db:"latitude" validate:"omitempty,latitude"`
	Longitude     *float64       `json:"longitude" db:"longitude" validate:"omitempty,longitude"`
	ImageURL      string         `json:"image_url,omitempty" db:"image_url" validate:"omitempty,https_url,max=500"`
	Amenities     pq.StringArray `json:"amenities" db:"amenities" validate:"max=30,unique,dive,min=2,max=50"`
	Timezone      string         `json:"timezone" db:"timezone" validate:"required,timezone"`
	IsActive      bool           `json:"is_active" db:"is_active"`
	AverageRating float64        `json:"average_rating" db:"average_rating"`
	ReviewCount   int            `json:"review_count" db:"review_count"`
	DistanceKM    *float64       `json:"distance_km,omitempty" db:"distance_km"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

type InstituteUpdate struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Street      *string   `json:"street,omitempty"`
	PostalCode  *string   `json:"postal_code,omitempty"`
	City        *string   `json:"city,omitempty"`
	Country     *string   `json:"country,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Email       *string   `json:"email,omitempty"`
	WebsiteURL  *string   `json:"website_url,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	Amenities   *[]string `json:"amenities,omitempty"`
	Timezone    *string   `json:"timezone,omitempty"`
	IsActive    *bool     `json:"is_active,omitempty"`
}

const (
	SortRating   = "rating"
	SortName     = "name"
	SortDistance = "distance"
	SortNewest   = "newest"
)

type InstituteSearch struct {
	Query     string   `json:"q,omitempty"`
	City      string   `json:"city,omitempty"`
	Amenity   string   `json:"amenity,omitempty"`
	MinRating *float64 `json:"min_rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	Latitude  *float64 `json:"lat,omitempty" validate:"omitempty,latitude,required_with=Longitude"`
	Longitude *float64 `json:"lng,omitempty" validate:"omitempty,longitude,required_with=Latitude"`
	RadiusKM  *float64 `json:"radius_km,omitempty" validate:"omitempty,gt=0,lte=500"`
	Sort      string   `json:"sort,omitempty" validate:"omitempty,oneof=rating name distance newest"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}

// HasLocation reports whether the search is anchored at a point.
func (s *InstituteSearch) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}
