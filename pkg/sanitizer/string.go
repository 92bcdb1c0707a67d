package sanitizer

import "strings"

// TrimAndNormalize trims s and collapses every run of whitespace into one
// space.
func TrimAndNormalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

func NormalizeCity(city string) string {
	return TrimAndNormalize(city)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizeTag(tag string) string {
	return strings.ToLower(TrimAndNormalize(tag))
}

func NormalizePostalCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), " ", ""))
}

// NormalizeCountry upper-cases ISO codes and leaves longer names trimmed.
func NormalizeCountry(country string) string {
	c := TrimAndNormalize(country)
	if len(c) == 2 {
		return strings.ToUpper(c)
	}
	return c
}

// Truncate shortens s to at most n runes, appending an ellipsis when it cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
