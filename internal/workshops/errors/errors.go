package errors

import "errors"

var (
	ErrNotFound = errors.New("workshop not found")

	ErrInvalidID = errors.New("invalid workshop ID format")

	ErrInstituteNotFound = errors.New("institute not found")

	ErrAlreadyRegistered = errors.New("customer already registered for workshop")

	ErrRegistrationNotFound = errors.New("workshop registration not found")
)
