package locale

import (
	"strings"
	"time"
	_ "time/tzdata"
)

func InferTimezoneFromPhone(phone string) string {
	if country := InferCountryFromPhone(phone); country != nil {
		return country.DefaultTimezone
	}
	return DefaultTimezone
}

func InferCountryFromPhone(phone string) *Country {
	normalized := strings.TrimSpace(phone)
	if normalized == "" {
		return nil
	}

	for _, country := range Countries {
		for _, prefix := range country.PhonePrefixes {
			if strings.HasPrefix(normalized, prefix) {
				c := country
				return &c
			}
		}
	}

	return nil
}

// ResolveTimezone picks the zone for an institute: an explicit country wins,
// then the phone prefix, then the platform default.
func ResolveTimezone(country, phone string) string {
	if _, ok := LookupCountry(country); ok {
		return TimezoneForCountry(country)
	}
	return InferTimezoneFromPhone(phone)
}

// LoadLocation never fails: unknown zones fall back to the default zone and
// finally to UTC when the tz database is missing.
func LoadLocation(tz string) *time.Location {
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}
