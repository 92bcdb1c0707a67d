package locale

import (
	"strings"
)

const (
	DefaultCountry  = "DE"
	DefaultTimezone = "Europe/Berlin"
)

type Country struct {
	Code            string   // ISO 3166-1 alpha-2 country code (e.g., "DE", "AT")
	Name            string   // Human-readable country name
	PhonePrefixes   []string // Dialing prefixes (e.g., ["+49", "0049"])
	PhoneRegion     string   // Region passed to the phone number parser
	DefaultTimezone string   // IANA timezone identifier (e.g., "Europe/Berlin")
	Currency        string   // ISO 4217 currency used for prices
}

var (
	Countries = map[string]Country{
		"DE": {
			Code:            "DE",
			Name:            "Germany",
			PhonePrefixes:   []string{"+49", "0049"},
			PhoneRegion:     "DE",
			DefaultTimezone: "Europe/Berlin",
			Currency:        "EUR",
		},
		"AT": {
			Code:            "AT",
			Name:            "Austria",
			PhonePrefixes:   []string{"+43", "0043"},
			PhoneRegion:     "AT",
			DefaultTimezone: "Europe/Vienna",
			Currency:        "EUR",
		},
		"CH": {
			Code:            "CH",
			Name:            "Switzerland",
			PhonePrefixes:   []string{"+41", "0041"},
			PhoneRegion:     "CH",
			DefaultTimezone: "Europe/Zurich",
			Currency:        "CHF",
		},
	}

	// SupportedRegions lists phone parser regions in lookup order.
	SupportedRegions = []string{"DE", "AT", "CH"}
)

// LookupCountry resolves a country by ISO code or English name.
func LookupCountry(codeOrName string) (Country, bool) {
	key := strings.TrimSpace(codeOrName)
	if c, ok := Countries[strings.ToUpper(key)]; ok {
		return c, true
	}
	for _, c := range Countries {
		if strings.EqualFold(c.Name, key) {
			return c, true
		}
	}
	return Country{}, false
}

// TimezoneForCountry returns the IANA zone of a supported country or the
// platform default.
func TimezoneForCountry(codeOrName string) string {
	if c, ok := LookupCountry(codeOrName); ok {
		return c.DefaultTimezone
	}
	return DefaultTimezone
}
