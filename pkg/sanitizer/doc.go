// Package sanitizer normalizes user supplied text before validation and storage.
//
// All normalization functions are idempotent. Invalid input is returned as an
// empty value rather than an error; validators reject the empty value later
// with a field specific message.
//
// Normalization includes:
//   - Phone numbers: E.164 using the DACH regions (+49, +43, +41)
//   - E-mail addresses: trimmed and lower-cased
//   - URLs: forced to https, lower-case host, trailing slash removed
//   - Free text: HTML stripped (reviews, messages, descriptions) and whitespace collapsed
//   - Slices: duplicates and empty values removed after normalization
//   - Numbers: clamped to a range
package sanitizer
