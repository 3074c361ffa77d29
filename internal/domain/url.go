package domain

import (
	"errors"
	"time"
)

// DefaultValidityMinutes is applied when a shorten request carries no validity period (30 days).
const DefaultValidityMinutes = 43200

// MaxValidityMinutes is the number of minutes in a non-leap year.
const MaxValidityMinutes = 525600

// URL represents a shortened URL held by the registry
type URL struct {
	ID                string    `json:"id"`
	OriginalURL       string    `json:"original_url"`
	ShortCode         string    `json:"short_code"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	ClickCount        int64     `json:"click_count"`
	IsCustomShortCode bool      `json:"is_custom_short_code"`
	ValidityMinutes   int       `json:"validity_minutes"`
}

// Domain errors - callers check for them with errors.Is
var (
	ErrURLNotFound = errors.New("URL not found")
	ErrURLExpired  = errors.New("URL has expired")
)

// NewURL builds a record valid for the given number of minutes starting at createdAt
func NewURL(id, originalURL, shortCode string, isCustom bool, validityMinutes int, createdAt time.Time) *URL {
	return &URL{
		ID:                id,
		OriginalURL:       originalURL,
		ShortCode:         shortCode,
		CreatedAt:         createdAt,
		ExpiresAt:         createdAt.Add(time.Duration(validityMinutes) * time.Minute),
		ClickCount:        0,
		IsCustomShortCode: isCustom,
		ValidityMinutes:   validityMinutes,
	}
}

// IsExpired reports whether now is past the expiry time.
// A record is still active at exactly ExpiresAt.
func (u *URL) IsExpired(now time.Time) bool {
	return now.After(u.ExpiresAt)
}

// Status returns "expired" or "active" as observed at now
func (u *URL) Status(now time.Time) string {
	if u.IsExpired(now) {
		return StatusExpired
	}
	return StatusActive
}

// CanBeAccessed checks if the URL can be followed at now
func (u *URL) CanBeAccessed(now time.Time) error {
	if u.IsExpired(now) {
		return ErrURLExpired
	}
	return nil
}

// IncrementClicks increases the click counter
func (u *URL) IncrementClicks() {
	u.ClickCount++
}

// Record states
const (
	StatusActive  = "active"
	StatusExpired = "expired"
)
