package validator

import (
	"freezefit/pkg/model"
	"freezefit/pkg/validation"
)

type ServiceValidator struct {
	v *validation.Validator
}

func NewServiceValidator(v *validation.Validator) *ServiceValidator {
	return &ServiceValidator{v: v}
}

func (sv *ServiceValidator) ValidateService(svc *model.Service) error {
	if err := sv.v.Struct(svc); err != nil {
		return err
	}
	if !svc.Price.Equal(svc.Price.Round(2)) {
		return validation.Fail("price", "price must have at most two decimal places")
	}
	return nil
}
