package validator

import (
	"freezefit/pkg/model"
	"freezefit/pkg/validation"
)

type InstituteValidator struct {
	v *validation.Validator
}

func NewInstituteValidator(v *validation.Validator) *InstituteValidator {
	return &InstituteValidator{v: v}
}

func (iv *InstituteValidator) ValidateInstitute(institute *model.Institute) error {
	if err := iv.v.Struct(institute); err != nil {
		return err
	}
	if (institute.Latitude == nil) != (institute.Longitude == nil) {
		return validation.Fail("latitude", "latitude and longitude must be set together")
	}
	return nil
}

func (iv *InstituteValidator) ValidateSearch(search *model.InstituteSearch) error {
	return iv.v.Struct(search)
}
