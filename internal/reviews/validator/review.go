package validator

import (
	"freezefit/pkg/model"
	"freezefit/pkg/validation"
)

type ReviewValidator struct {
	v *validation.Validator
}

func NewReviewValidator(v *validation.Validator) *ReviewValidator {
	return &ReviewValidator{v: v}
}

func (rv *ReviewValidator) ValidateReview(review *model.Review) error {
	return rv.v.Struct(review)
}

func (rv *ReviewValidator) ValidateReply(reply *model.ReviewReply) error {
	return rv.v.Struct(reply)
}

func (rv *ReviewValidator) ValidateSort(sort string) error {
	if sort == "" {
		return nil
	}
	return rv.v.Var("sort", sort, "oneof=newest rating_high rating_low")
}
