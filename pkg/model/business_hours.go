package model

import "time"

// BusinessHours is the opening window of an institute on one weekday
// (0 = Sunday ... 6 = Saturday). Times are local to the institute.
type BusinessHours struct {
	InstituteID string `json:"institute_id" db:"institute_id"`
	Weekday     int    `json:"weekday" db:"weekday" validate:"min=0,max=6"`
	OpenTime    string `json:"open_time,omitempty" db:"open_time" validate:"required_if=IsClosed false,omitempty,hhmm"`
	CloseTime   string `json:"close_time,omitempty" db:"close_time" validate:"required_if=IsClosed false,omitempty,hhmm"`
	IsClosed    bool   `json:"is_closed" db:"is_closed"`
}

type WeekHours struct {
	Days []BusinessHours `json:"days" validate:"required,min=1,max=7,unique=Weekday,dive"`
}

type Closure struct {
	ID          string    `json:"id" db:"id"`
	InstituteID string    `json:"institute_id" db:"institute_id"`
	Date        string    `json:"date" db:"date" validate:"required,date"`
	Reason      string    `json:"reason" db:"reason" validate:"max=200"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
