package errors

import "errors"

var (
	ErrNotFound = errors.New("review not found")

	ErrInvalidID = errors.New("invalid review ID format")

	ErrAlreadyReviewed = errors.New("customer already reviewed this institute")

	ErrInstituteNotFound = errors.New("institute not found")

	ErrAppointmentNotFound = errors.New("appointment not found")
)
