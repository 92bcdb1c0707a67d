package validator

import (
	"freezefit/pkg/model"
	"freezefit/pkg/validation"
)

type GalleryValidator struct {
	v *validation.Validator
}

func NewGalleryValidator(v *validation.Validator) *GalleryValidator {
	return &GalleryValidator{v: v}
}

func (gv *GalleryValidator) ValidateImage(image *model.GalleryImage) error {
	return gv.v.Struct(image)
}

func (gv *GalleryValidator) ValidateOrder(order *model.GalleryOrder) error {
	return gv.v.Struct(order)
}

// ValidatePermutation checks that ids names every current image exactly once.
func (gv *GalleryValidator) ValidatePermutation(ids []string, images []*model.GalleryImage) error {
	if len(ids) != len(images) {
		return validation.Fail("ids", "ids must list every image of the gallery exactly once")
	}
	known := make(map[string]bool, len(images))
	for _, img := range images {
		known[img.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return validation.Fail("ids", "ids contains an image that is not part of this gallery")
		}
		delete(known, id)
	}
	return nil
}
