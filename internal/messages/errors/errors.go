package errors

import "errors"

var (
	ErrInstituteNotFound = errors.New("institute not found")

	ErrCustomerNotFound = errors.New("customer not found")
)
