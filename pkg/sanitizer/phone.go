package sanitizer

import (
	"strings"

	"freezefit/pkg/locale"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone returns the E.164 form of phone or "" when it cannot be
// parsed as a possible number in any supported region.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	for _, region := range locale.SupportedRegions {
		parsed, err := phonenumbers.Parse(phone, region)
		if err != nil {
			continue
		}
		if !phonenumbers.IsPossibleNumber(parsed) {
			continue
		}
		return phonenumbers.Format(parsed, phonenumbers.E164)
	}
	return ""
}
