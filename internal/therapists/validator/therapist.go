package validator

import (
	"freezefit/pkg/model"
	"freezefit/pkg/validation"
)

type TherapistValidator struct {
	v *validation.Validator
}

func NewTherapistValidator(v *validation.Validator) *TherapistValidator {
	return &TherapistValidator{v: v}
}

func (tv *TherapistValidator) ValidateTherapist(therapist *model.Therapist) error {
	return tv.v.Struct(therapist)
}
