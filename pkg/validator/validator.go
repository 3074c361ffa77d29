package validator

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	MaxURLLength       = 2048
	MinShortCodeLength = 3
	MaxShortCodeLength = 10
	MinValidityMinutes = 1
	MaxValidityMinutes = 525600
)

var urlPattern = regexp.MustCompile(`^https?://(www\.)?[-a-zA-Z0-9@:%._\+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_\+.~#?&//=]*)$`)

// unsafeFragments are rejected anywhere in the URL, not just in the scheme
var unsafeFragments = []string{"javascript:", "data:", "file:", "ftp://"}

// ValidateURL checks if a URL may be shortened
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return ErrEmptyURL
	}

	// Lengths are counted in characters, as validator/v10 min/max tags do
	if utf8.RuneCountInString(rawURL) > MaxURLLength {
		return ErrURLTooLong
	}

	if !MatchesURLPattern(rawURL) {
		return ErrInvalidURL
	}

	if HasUnsafeProtocol(rawURL) {
		return ErrUnsafeProtocol
	}

	return nil
}

// MatchesURLPattern reports whether rawURL is an absolute http(s) URL with a host
func MatchesURLPattern(rawURL string) bool {
	return urlPattern.MatchString(rawURL)
}

// HasUnsafeProtocol reports whether rawURL mentions a blocked protocol anywhere
func HasUnsafeProtocol(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, fragment := range unsafeFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// ValidateShortCode checks the format of a custom shortcode.
// Uniqueness depends on registry state and is checked by the caller.
func ValidateShortCode(code string) error {
	if n := utf8.RuneCountInString(code); n < MinShortCodeLength || n > MaxShortCodeLength {
		return ErrInvalidShortCodeLength
	}

	for _, char := range code {
		if !isAlphanumeric(char) {
			return ErrInvalidShortCodeFormat
		}
	}

	return nil
}

// ParseValidityPeriod parses a validity period given in whole minutes.
// ok is false when the field was left empty. Decimals and trailing text are rejected.
func ParseValidityPeriod(period string) (minutes int, ok bool, err error) {
	period = strings.TrimSpace(period)
	if period == "" {
		return 0, false, nil
	}

	minutes, err = strconv.Atoi(period)
	if err != nil || minutes < MinValidityMinutes || minutes > MaxValidityMinutes {
		return 0, true, ErrInvalidValidityPeriod
	}

	return minutes, true, nil
}

func isAlphanumeric(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9')
}
