package errors

import "errors"

var (
	ErrNotFound = errors.New("appointment not found")

	ErrInvalidID = errors.New("invalid appointment ID format")

	ErrServiceNotFound = errors.New("service not found")

	ErrTherapistNotFound = errors.New("therapist not found")
)
