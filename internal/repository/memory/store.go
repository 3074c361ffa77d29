package memory

import (
	"context"
	"fmt"
	"sync"

	"url-registry/internal/domain"
	"url-registry/internal/repository"
)

// Store holds URL records and click events in process memory.
// Both collections are kept newest first and share one lock.
type Store struct {
	mu     sync.RWMutex
	urls   []*domain.URL
	clicks []*domain.ClickEvent
}

// New creates an empty store
func New() *Store {
	return &Store{}
}

// URLs returns the record side of the store
func (s *Store) URLs() *URLRepository {
	return &URLRepository{store: s}
}

// Clicks returns the click side of the store
func (s *Store) Clicks() *ClickRepository {
	return &ClickRepository{store: s}
}

// URLRepository implements repository.URLRepository
type URLRepository struct {
	store *Store
}

var _ repository.URLRepository = (*URLRepository)(nil)

// Create prepends a copy of url. Generated codes may repeat.
func (r *URLRepository) Create(ctx context.Context, url *domain.URL) error {
	return r.create(ctx, url, url.IsCustomShortCode)
}

// CreateUnique prepends a copy of url unless its code is already held
func (r *URLRepository) CreateUnique(ctx context.Context, url *domain.URL) error {
	return r.create(ctx, url, true)
}

func (r *URLRepository) create(ctx context.Context, url *domain.URL, unique bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if unique && r.store.indexOfCode(url.ShortCode) >= 0 {
		return fmt.Errorf("%w: %s", repository.ErrShortCodeExists, url.ShortCode)
	}

	stored := *url
	r.store.urls = append([]*domain.URL{&stored}, r.store.urls...)
	return nil
}

// GetByShortCode returns the newest record with shortCode
func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*domain.URL, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	i := r.store.indexOfCode(shortCode)
	if i < 0 {
		return nil, domain.ErrURLNotFound
	}
	url := *r.store.urls[i]
	return &url, nil
}

func (r *URLRepository) GetByID(ctx context.Context, id string) (*domain.URL, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	i := r.store.indexOfID(id)
	if i < 0 {
		return nil, domain.ErrURLNotFound
	}
	url := *r.store.urls[i]
	return &url, nil
}

// List returns a snapshot of every record
func (r *URLRepository) List(ctx context.Context) ([]*domain.URL, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	urls := make([]*domain.URL, len(r.store.urls))
	for i, u := range r.store.urls {
		url := *u
		urls[i] = &url
	}
	return urls, nil
}

func (r *URLRepository) ExistsShortCode(ctx context.Context, shortCode string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.store.indexOfCode(shortCode) >= 0, nil
}

// ClickRepository implements repository.ClickRepository
type ClickRepository struct {
	store *Store
}

var _ repository.ClickRepository = (*ClickRepository)(nil)

// Record prepends click and bumps the owning record's counter
func (r *ClickRepository) Record(ctx context.Context, click *domain.ClickEvent) (*domain.URL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	i := r.store.indexOfID(click.URLID)
	if i < 0 {
		return nil, domain.ErrURLNotFound
	}

	owner := r.store.urls[i]
	owner.IncrementClicks()

	stored := *click
	r.store.clicks = append([]*domain.ClickEvent{&stored}, r.store.clicks...)

	updated := *owner
	return &updated, nil
}

// List returns the newest limit events
func (r *ClickRepository) List(ctx context.Context, limit int) ([]*domain.ClickEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return copyClicks(r.store.clicks, limit, func(*domain.ClickEvent) bool { return true }), nil
}

func (r *ClickRepository) GetByURLID(ctx context.Context, urlID string, limit int) ([]*domain.ClickEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return copyClicks(r.store.clicks, limit, func(c *domain.ClickEvent) bool { return c.URLID == urlID }), nil
}

// indexOfCode expects the caller to hold the lock
func (s *Store) indexOfCode(shortCode string) int {
	for i, u := range s.urls {
		if u.ShortCode == shortCode {
			return i
		}
	}
	return -1
}

func (s *Store) indexOfID(id string) int {
	for i, u := range s.urls {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func copyClicks(clicks []*domain.ClickEvent, limit int, keep func(*domain.ClickEvent) bool) []*domain.ClickEvent {
	out := make([]*domain.ClickEvent, 0)
	for _, c := range clicks {
		if limit > 0 && len(out) == limit {
			break
		}
		if !keep(c) {
			continue
		}
		click := *c
		out = append(out, &click)
	}
	return out
}
