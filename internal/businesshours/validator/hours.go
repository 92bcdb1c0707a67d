package validator

import (
	"fmt"

	"freezefit/pkg/model"
	"freezefit/pkg/validation"
)

type HoursValidator struct {
	v *validation.Validator
}

func NewHoursValidator(v *validation.Validator) *HoursValidator {
	return &HoursValidator{v: v}
}

// ValidateWeek checks the struct tags and that every open day closes after
// it opens. HH:MM strings compare correctly as text.
func (hv *HoursValidator) ValidateWeek(week *model.WeekHours) error {
	if err := hv.v.Struct(week); err != nil {
		return err
	}
	for i, d := range week.Days {
		if d.IsClosed {
			continue
		}
		if d.CloseTime <= d.OpenTime {
			return validation.Fail(fmt.Sprintf("days[%d].close_time", i), "close_time must be after open_time")
		}
	}
	return nil
}

func (hv *HoursValidator) ValidateClosure(closure *model.Closure) error {
	return hv.v.Struct(closure)
}
