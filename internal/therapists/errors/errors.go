package errors

import "errors"

var (
	ErrNotFound = errors.New("therapist not found")

	ErrInvalidID = errors.New("invalid therapist ID format")

	ErrInstituteNotFound = errors.New("institute not found")
)
