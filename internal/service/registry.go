package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"url-registry/internal/diaglog"
	"url-registry/internal/domain"
	"url-registry/internal/metrics"
	"url-registry/internal/repository"
	"url-registry/pkg/validator"
)

// DiagnosticLogger receives best-effort diagnostic entries.
// Implementations must not block the caller.
type DiagnosticLogger interface {
	Log(level diaglog.Level, pkg, message string)
}

// OriginSource supplies simulated click origins
type OriginSource interface {
	Origin(userAgent string) (location, clientID, agent string)
}

// Config controls optional registry behaviour
type Config struct {
	// CheckGeneratedCollisions regenerates codes that are already held
	CheckGeneratedCollisions bool
	MaxGenerateAttempts      int
	// SimulatedLatency is waited before a shorten request mutates state
	SimulatedLatency time.Duration
}

// ShortenRequest carries the raw shorten form values
type ShortenRequest struct {
	OriginalURL     string
	CustomShortCode string
	ValidityPeriod  string
}

// Visit describes the request that followed a short link
type Visit struct {
	Referrer  string
	UserAgent string
}

// Registry owns URL records and click events
type Registry struct {
	urls    repository.URLRepository
	clicks  repository.ClickRepository
	diag    DiagnosticLogger
	origins OriginSource
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
	newID   func() string
}

// Option customises a Registry
type Option func(*Registry)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithOriginSource replaces the default click origin simulator
func WithOriginSource(origins OriginSource) Option {
	return func(r *Registry) { r.origins = origins }
}

// WithIDGenerator replaces uuid generation for records and clicks
func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) { r.newID = newID }
}

// NewRegistry creates a registry over the given repositories
func NewRegistry(urls repository.URLRepository, clicks repository.ClickRepository, diag DiagnosticLogger, logger *slog.Logger, cfg Config, opts ...Option) *Registry {
	if cfg.MaxGenerateAttempts <= 0 {
		cfg.MaxGenerateAttempts = 10
	}

	r := &Registry{
		urls:    urls,
		clicks:  clicks,
		diag:    diag,
		origins: NewOriginSimulator(0),
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Shorten validates req and creates a new record.
// A *domain.ValidationError is returned before any state change when input is rejected.
func (r *Registry) Shorten(ctx context.Context, req ShortenRequest) (*domain.URL, error) {
	url, err := r.shorten(ctx, req)
	if err != nil {
		r.diag.Log(diaglog.LevelError, diaglog.PackageShorten, "URL shortening failed: "+err.Error())
		return nil, err
	}

	metrics.RecordURLCreated(url.IsCustomShortCode)
	r.diag.Log(diaglog.LevelInfo, diaglog.PackageShorten,
		fmt.Sprintf("URL shortened successfully: %s -> %s", url.OriginalURL, url.ShortCode))
	r.logger.Info("URL shortened",
		"id", url.ID,
		"short_code", url.ShortCode,
		"custom", url.IsCustomShortCode,
		"expires_at", url.ExpiresAt,
	)

	return url, nil
}

func (r *Registry) shorten(ctx context.Context, req ShortenRequest) (*domain.URL, error) {
	validityMinutes, err := r.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	if r.cfg.SimulatedLatency > 0 {
		timer := time.NewTimer(r.cfg.SimulatedLatency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("shorten cancelled: %w", ctx.Err())
		}
	}

	if req.CustomShortCode == "" {
		return r.createGenerated(ctx, req.OriginalURL, validityMinutes)
	}

	url := domain.NewURL(r.newID(), req.OriginalURL, req.CustomShortCode, true, validityMinutes, r.now())
	if err := r.urls.Create(ctx, url); err != nil {
		// Another request took the custom code between validation and insert
		if errors.Is(err, repository.ErrShortCodeExists) {
			verr := domain.NewValidationError()
			verr.Add(domain.FieldCustomShortCode, validator.ErrShortCodeInUse.Error())
			metrics.RecordValidationFailure(domain.FieldCustomShortCode)
			return nil, verr
		}
		return nil, fmt.Errorf("failed to create URL: %w", err)
	}

	return url, nil
}

// validate checks every field and returns the resolved validity in minutes
func (r *Registry) validate(ctx context.Context, req ShortenRequest) (int, error) {
	verr := domain.NewValidationError()

	if err := validator.ValidateURL(req.OriginalURL); err != nil {
		verr.Add(domain.FieldURL, err.Error())
	}

	if req.CustomShortCode != "" {
		if err := validator.ValidateShortCode(req.CustomShortCode); err != nil {
			verr.Add(domain.FieldCustomShortCode, err.Error())
		} else {
			taken, err := r.urls.ExistsShortCode(ctx, req.CustomShortCode)
			if err != nil {
				return 0, fmt.Errorf("failed to check short code: %w", err)
			}
			if taken {
				verr.Add(domain.FieldCustomShortCode, validator.ErrShortCodeInUse.Error())
			}
		}
	}

	minutes, ok, err := validator.ParseValidityPeriod(req.ValidityPeriod)
	if err != nil {
		verr.Add(domain.FieldValidityPeriod, err.Error())
	}
	if !ok {
		minutes = domain.DefaultValidityMinutes
	}

	if verr.HasErrors() {
		fields := make([]string, 0, len(verr.Fields))
		for field := range verr.Fields {
			fields = append(fields, field)
		}
		metrics.RecordValidationFailure(fields...)
		return 0, verr
	}

	return minutes, nil
}

// createGenerated stores a record under a generated code. Held codes are only
// avoided when CheckGeneratedCollisions is set; otherwise duplicates are accepted.
func (r *Registry) createGenerated(ctx context.Context, originalURL string, validityMinutes int) (*domain.URL, error) {
	if !r.cfg.CheckGeneratedCollisions {
		url := domain.NewURL(r.newID(), originalURL, generateShortCode(r.now()), false, validityMinutes, r.now())
		if err := r.urls.Create(ctx, url); err != nil {
			return nil, fmt.Errorf("failed to create URL: %w", err)
		}
		return url, nil
	}

	for attempt := 0; attempt < r.cfg.MaxGenerateAttempts; attempt++ {
		code := generateShortCode(r.now())
		taken, err := r.urls.ExistsShortCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to check short code: %w", err)
		}
		if taken {
			metrics.RecordGeneratedCollision()
			continue
		}

		// The store rechecks under its lock; a concurrent request may have won
		url := domain.NewURL(r.newID(), originalURL, code, false, validityMinutes, r.now())
		err = r.urls.CreateUnique(ctx, url)
		if errors.Is(err, repository.ErrShortCodeExists) {
			metrics.RecordGeneratedCollision()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create URL: %w", err)
		}
		return url, nil
	}

	return nil, fmt.Errorf("failed to generate unique short code after %d attempts", r.cfg.MaxGenerateAttempts)
}

// RecordClick registers a follow of the record with urlID.
// Expired records return domain.ErrURLExpired and are left untouched.
func (r *Registry) RecordClick(ctx context.Context, urlID string, visit Visit) (*domain.ClickEvent, error) {
	url, err := r.urls.GetByID(ctx, urlID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	if err := url.CanBeAccessed(now); err != nil {
		metrics.RecordExpiredRejection()
		r.diag.Log(diaglog.LevelWarn, diaglog.PackageRedirect, "Attempted to access expired URL: "+url.ShortCode)
		return nil, err
	}

	location, clientID, agent := r.origins.Origin(visit.UserAgent)
	click := domain.NewClickEvent(r.newID(), url, visit.Referrer, now).
		WithSimulatedOrigin(location, clientID, agent)

	if _, err := r.clicks.Record(ctx, click); err != nil {
		return nil, fmt.Errorf("failed to record click: %w", err)
	}

	metrics.RecordClickRecorded()
	r.diag.Log(diaglog.LevelInfo, diaglog.PackageRedirect, "Redirect tracked for "+url.ShortCode)

	return click, nil
}

// Statistics aggregates over the current records
func (r *Registry) Statistics(ctx context.Context) (domain.Statistics, error) {
	urls, err := r.urls.List(ctx)
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("failed to list URLs: %w", err)
	}
	return domain.ComputeStatistics(urls, r.now()), nil
}

// List returns every record, newest first
func (r *Registry) List(ctx context.Context) ([]*domain.URL, error) {
	return r.urls.List(ctx)
}

// Clicks returns the newest limit click events
func (r *Registry) Clicks(ctx context.Context, limit int) ([]*domain.ClickEvent, error) {
	return r.clicks.List(ctx, limit)
}

// ClicksFor returns the newest limit click events of the record that
// shortCode currently resolves to. limit <= 0 returns all of them.
func (r *Registry) ClicksFor(ctx context.Context, shortCode string, limit int) ([]*domain.ClickEvent, error) {
	url, err := r.urls.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}
	return r.clicks.GetByURLID(ctx, url.ID, limit)
}

// Lookup returns the newest record holding shortCode
func (r *Registry) Lookup(ctx context.Context, shortCode string) (*domain.URL, error) {
	return r.urls.GetByShortCode(ctx, shortCode)
}

// Now reports the registry clock
func (r *Registry) Now() time.Time {
	return r.now()
}
