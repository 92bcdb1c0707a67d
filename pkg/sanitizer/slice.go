package sanitizer

import "slices"

// NormalizeStringSlice normalizes every item and drops empty results and
// duplicates, keeping first-seen order. It never returns nil so the column
// is stored as an empty array.
func NormalizeStringSlice(items []string, normalize func(string) string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if n := normalize(item); n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

func NormalizeAmenities(amenities []string) []string {
	return NormalizeStringSlice(amenities, NormalizeTag)
}

func NormalizeSpecializations(specializations []string) []string {
	return NormalizeStringSlice(specializations, NormalizeTag)
}
