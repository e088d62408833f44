package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooLong is returned when location length exceeds the maximum.
var ErrLocationTooLong = errors.New("location too long")

// ErrLocationInvalidChars is returned when location contains disallowed characters.
var ErrLocationInvalidChars = errors.New("location contains invalid characters")

// ErrUnknownLanguage is returned for a language tag the formatter cannot localize.
var ErrUnknownLanguage = errors.New("unsupported language")

// ErrUnknownUnits is returned for a unit system other than metric/imperial.
var ErrUnknownUnits = errors.New("units must be metric or imperial")

const maxLocationRunes = 100

// supportedLanguages are the locales the formatter has label tables for.
// The provider accepts more, but output labels would be wrong for them.
var supportedLanguages = map[string]struct{}{
	"en": {},
	"zh": {},
	"es": {},
}

// ValidateLocation trims the input, enforces the length bound in runes, and
// restricts to letters (Unicode, so Chinese city names pass), digits, space,
// comma, hyphen. Returns the trimmed string. Lowercasing is left to the
// cache-key derivation.
func ValidateLocation(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrLocationEmpty
	}
	if len(r) > maxLocationRunes {
		return "", ErrLocationTooLong
	}
	for _, c := range r {
		if !isAllowedLocationRune(c) {
			return "", ErrLocationInvalidChars
		}
	}
	return s, nil
}

func isAllowedLocationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-':
		return true
	}
	return false
}

// ValidateLanguage lowercases and checks the tag against the supported set.
func ValidateLanguage(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if _, ok := supportedLanguages[s]; !ok {
		return "", ErrUnknownLanguage
	}
	return s, nil
}
