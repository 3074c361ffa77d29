package repository

import (
	"context"
	"errors"

	"url-registry/internal/domain"
)

// ErrShortCodeExists is returned when a shortcode that must be unique is already held
var ErrShortCodeExists = errors.New("short code already exists")

// URLRepository defines the interface for URL record access.
// Implementations return copies so callers never share state with the store.
type URLRepository interface {
	// Create prepends a record. Custom shortcodes are checked for uniqueness
	// in the same critical section as the insert.
	Create(ctx context.Context, url *domain.URL) error

	// CreateUnique prepends a record only when no record holds its shortcode,
	// custom or generated. It returns ErrShortCodeExists otherwise.
	CreateUnique(ctx context.Context, url *domain.URL) error

	// GetByShortCode returns the most recently created record with the code
	GetByShortCode(ctx context.Context, shortCode string) (*domain.URL, error)

	GetByID(ctx context.Context, id string) (*domain.URL, error)

	// List returns every record, newest first
	List(ctx context.Context) ([]*domain.URL, error)

	ExistsShortCode(ctx context.Context, shortCode string) (bool, error)
}

// ClickRepository defines the interface for click event access
type ClickRepository interface {
	// Record prepends the click and increments the owning record's counter
	// atomically. It returns the updated record.
	Record(ctx context.Context, click *domain.ClickEvent) (*domain.URL, error)

	// List returns up to limit events, newest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]*domain.ClickEvent, error)

	// GetByURLID returns up to limit events for one record, newest first
	GetByURLID(ctx context.Context, urlID string, limit int) ([]*domain.ClickEvent, error)
}
