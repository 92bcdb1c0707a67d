package errors

import "errors"

var (
	ErrNotFound = errors.New("institute not found")

	ErrInvalidID = errors.New("invalid institute ID format")

	ErrOwnerNotFound = errors.New("institute owner does not exist")
)
