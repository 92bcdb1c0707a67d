package validator

import (
	"freezefit/pkg/model"
	"freezefit/pkg/validation"
)

type AppointmentValidator struct {
	v *validation.Validator
}

func NewAppointmentValidator(v *validation.Validator) *AppointmentValidator {
	return &AppointmentValidator{v: v}
}

func (av *AppointmentValidator) ValidateRequest(req *model.AppointmentRequest) error {
	return av.v.Struct(req)
}

func (av *AppointmentValidator) ValidateStatusChange(change *model.StatusChange) error {
	return av.v.Struct(change)
}

func (av *AppointmentValidator) ValidateReschedule(req *model.RescheduleRequest) error {
	return av.v.Struct(req)
}

// ValidateFilter checks the optional list filters.
func (av *AppointmentValidator) ValidateFilter(filter *model.AppointmentFilter) error {
	if filter.Status != "" {
		if err := av.v.Var("status", filter.Status, "oneof=pending confirmed completed cancelled no_show"); err != nil {
			return err
		}
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return validation.Fail("to", "to must be after from")
	}
	return nil
}
