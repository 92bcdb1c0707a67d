package validator

import (
	"time"

	"freezefit/pkg/model"
	"freezefit/pkg/validation"
)

type WorkshopValidator struct {
	v *validation.Validator
}

func NewWorkshopValidator(v *validation.Validator) *WorkshopValidator {
	return &WorkshopValidator{v: v}
}

// ValidateWorkshop checks the struct rules. Capacity cannot shrink below the
// registrations already taken.
func (wv *WorkshopValidator) ValidateWorkshop(w *model.Workshop) error {
	if err := wv.v.Struct(w); err != nil {
		return err
	}
	if w.Capacity < w.RegisteredCount {
		return validation.Fail("capacity", "capacity cannot be lower than the number of registrations")
	}
	return nil
}

func (wv *WorkshopValidator) ValidateStart(start time.Time, now time.Time) error {
	if !start.After(now) {
		return validation.Fail("starts_at", "starts_at must be in the future")
	}
	return nil
}
