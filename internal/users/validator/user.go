package validator

import (
	"freezefit/pkg/model"
	"freezefit/pkg/validation"
)

type UserValidator struct {
	v *validation.Validator
}

func NewUserValidator(v *validation.Validator) *UserValidator {
	return &UserValidator{v: v}
}

func (uv *UserValidator) ValidateRegistration(req *model.RegisterRequest) error {
	return uv.v.Struct(req)
}

func (uv *UserValidator) ValidateLogin(req *model.LoginRequest) error {
	return uv.v.Struct(req)
}

func (uv *UserValidator) ValidateUser(user *model.User) error {
	return uv.v.Struct(user)
}

func (uv *UserValidator) ValidatePasswordChange(req *model.PasswordChange) error {
	if err := uv.v.Struct(req); err != nil {
		return err
	}
	if req.CurrentPassword == req.NewPassword {
		return validation.Fail("new_password", "new_password must differ from current_password")
	}
	return nil
}
