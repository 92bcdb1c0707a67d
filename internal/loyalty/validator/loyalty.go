package validator

import (
	"freezefit/pkg/model"
	"freezefit/pkg/validation"
)

type LoyaltyValidator struct {
	v *validation.Validator
}

func NewLoyaltyValidator(v *validation.Validator) *LoyaltyValidator {
	return &LoyaltyValidator{v: v}
}

func (lv *LoyaltyValidator) ValidatePoints(req *model.PointsRequest) error {
	return lv.v.Struct(req)
}

func (lv *LoyaltyValidator) ValidateAdjustment(req *model.AdjustRequest) error {
	return lv.v.Struct(req)
}
