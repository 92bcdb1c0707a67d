package validator

import (
	"freezefit/pkg/model"
	"freezefit/pkg/validation"
)

type MessageValidator struct {
	v *validation.Validator
}

func NewMessageValidator(v *validation.Validator) *MessageValidator {
	return &MessageValidator{v: v}
}

func (mv *MessageValidator) ValidateMessage(msg *model.Message) error {
	return mv.v.Struct(msg)
}
