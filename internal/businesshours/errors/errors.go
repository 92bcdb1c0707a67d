package errors

import "errors"

var (
	ErrClosureNotFound = errors.New("closure not found")

	ErrInvalidID = errors.New("invalid ID format")

	ErrClosureExists = errors.New("closure already exists for this date")

	ErrInstituteNotFound = errors.New("institute not found")
)
