package errors

import "errors"

var (
	ErrAccountNotFound = errors.New("loyalty account not found")

	ErrInvalidID = errors.New("invalid user ID format")

	ErrInsufficientPoints = errors.New("insufficient loyalty points")
)
