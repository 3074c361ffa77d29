package validator

import "errors"

// Each error text is the message shown next to the offending form field.
var (
	ErrEmptyURL       = errors.New("URL is required")
	ErrURLTooLong     = errors.New("URL is too long (maximum 2048 characters)")
	ErrInvalidURL     = errors.New("Please enter a valid URL (must start with http:// or https://)")
	ErrUnsafeProtocol = errors.New("URL contains potentially unsafe protocol")

	ErrInvalidShortCodeLength = errors.New("Custom shortcode must be 3-10 characters")
	ErrInvalidShortCodeFormat = errors.New("Custom shortcode can only contain letters and numbers")
	ErrShortCodeInUse         = errors.New("This shortcode is already in use")

	ErrInvalidValidityPeriod = errors.New("Validity period must be between 1 and 525600 minutes")
)
