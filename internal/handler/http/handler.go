package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"url-registry/internal/domain"
	"url-registry/internal/service"
)

const (
	defaultClickLimit = 10
	maxClickLimit     = 1000
)

// ExpiredNotice is shown when a short link is followed after its expiry
const ExpiredNotice = "This short URL has expired and is no longer valid."

// Registry defines the registry operations needed by the handler
type Registry interface {
	Shorten(ctx context.Context, req service.ShortenRequest) (*domain.URL, error)
	RecordClick(ctx context.Context, urlID string, visit service.Visit) (*domain.ClickEvent, error)
	Statistics(ctx context.Context) (domain.Statistics, error)
	List(ctx context.Context) ([]*domain.URL, error)
	Clicks(ctx context.Context, limit int) ([]*domain.ClickEvent, error)
	ClicksFor(ctx context.Context, shortCode string, limit int) ([]*domain.ClickEvent, error)
	Lookup(ctx context.Context, shortCode string) (*domain.URL, error)
	Now() time.Time
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	registry Registry
	logger   *slog.Logger
	baseURL  string // e.g. "http://localhost:8080"
}

// NewHandler creates a new HTTP handler
func NewHandler(registry Registry, logger *slog.Logger, baseURL string) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger,
		baseURL:  baseURL,
	}
}

// CreateURLRequest mirrors the shorten form
type CreateURLRequest struct {
	URL             string    `json:"currentUrl" validate:"required,max=2048,weburl,safeurl"`
	CustomShortcode string    `json:"customShortcode,omitempty" validate:"omitempty,min=3,max=10,alphanum"`
	ValidityPeriod  FormValue `json:"validityPeriod,omitempty" validate:"omitempty,validity"`
}

// FormValue accepts either a JSON string or a JSON number
type FormValue string

func (v *FormValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = FormValue(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*v = FormValue(n.String())
	return nil
}

type URLResponse struct {
	ID                string    `json:"id"`
	ShortCode         string    `json:"short_code"`
	ShortURL          string    `json:"short_url"`
	OriginalURL       string    `json:"original_url"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	ClickCount        int64     `json:"click_count"`
	IsCustomShortcode bool      `json:"is_custom_shortcode"`
	ValidityMinutes   int       `json:"validity_minutes"`
	Status            string    `json:"status"`
}

// CreateURL handles POST /api/v1/urls
func (h *Handler) CreateURL(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req CreateURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "Invalid request body", "INVALID_JSON")
		return
	}

	// The registry checks state-dependent rules such as shortcode uniqueness,
	// so it always runs and its field messages are merged with these.
	details := validateCreateRequest(&req)

	url, err := h.registry.Shorten(r.Context(), service.ShortenRequest{
		OriginalURL:     req.URL,
		CustomShortCode: req.CustomShortcode,
		ValidityPeriod:  string(req.ValidityPeriod),
	})
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			respondValidationError(w, http.StatusUnprocessableEntity, mergeFieldErrors(details, verr.Fields))
			return
		}
		h.handleError(w, r, err, "Failed to create URL")
		return
	}
	if len(details) > 0 {
		h.logger.Warn("Registry accepted a request rejected by pre-validation",
			"short_code", url.ShortCode,
			"details", details,
		)
	}

	respondSuccess(w, http.StatusCreated, h.toResponse(url, h.registry.Now()), "URL created successfully")
}

// ListURLs handles GET /api/v1/urls
func (h *Handler) ListURLs(w http.ResponseWriter, r *http.Request) {
	urls, err := h.registry.List(r.Context())
	if err != nil {
		h.handleError(w, r, err, "Failed to list URLs")
		return
	}

	now := h.registry.Now()
	response := make([]URLResponse, 0, len(urls))
	for _, url := range urls {
		response = append(response, h.toResponse(url, now))
	}

	respondSuccess(w, http.StatusOK, response, "")
}

// GetURL handles GET /api/v1/urls/{shortcode}
func (h *Handler) GetURL(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortcode")

	url, err := h.registry.Lookup(r.Context(), shortCode)
	if err != nil {
		h.handleError(w, r, err, "Failed to get URL")
		return
	}

	respondSuccess(w, http.StatusOK, h.toResponse(url, h.registry.Now()), "")
}

// GetStatistics handles GET /api/v1/stats
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.Statistics(r.Context())
	if err != nil {
		h.handleError(w, r, err, "Failed to compute statistics")
		return
	}

	respondSuccess(w, http.StatusOK, stats, "")
}

// ListClicks handles GET /api/v1/clicks?limit=N
func (h *Handler) ListClicks(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseClickLimit(w, r)
	if !ok {
		return
	}

	clicks, err := h.registry.Clicks(r.Context(), limit)
	if err != nil {
		h.handleError(w, r, err, "Failed to list clicks")
		return
	}

	respondSuccess(w, http.StatusOK, clicks, "")
}

// ListURLClicks handles GET /api/v1/urls/{shortcode}/clicks?limit=N
func (h *Handler) ListURLClicks(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseClickLimit(w, r)
	if !ok {
		return
	}

	clicks, err := h.registry.ClicksFor(r.Context(), chi.URLParam(r, "shortcode"), limit)
	if err != nil {
		h.handleError(w, r, err, "Failed to list clicks")
		return
	}

	respondSuccess(w, http.StatusOK, clicks, "")
}

// parseClickLimit writes a 400 and returns false when limit is out of range
func parseClickLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultClickLimit, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxClickLimit {
		respondErrorCode(w, http.StatusBadRequest,
			fmt.Sprintf("limit must be between 1 and %d", maxClickLimit), "INVALID_LIMIT")
		return 0, false
	}
	return n, true
}

// RedirectURL handles GET /{shortcode}.
// The click is recorded before redirecting; expired links are refused.
func (h *Handler) RedirectURL(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortcode")

	url, err := h.registry.Lookup(r.Context(), shortCode)
	if err != nil {
		h.handleError(w, r, err, "Failed to resolve short code")
		return
	}

	_, err = h.registry.RecordClick(r.Context(), url.ID, service.Visit{
		Referrer:  r.Referer(),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.handleError(w, r, err, "Failed to record click")
		return
	}

	// 302 because links expire
	http.Redirect(w, r, url.OriginalURL, http.StatusFound)
}

// HealthCheck handles GET /health/live
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleError maps registry errors to HTTP responses
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondValidationError(w, http.StatusUnprocessableEntity, verr.Fields)
	case errors.Is(err, domain.ErrURLExpired):
		respondErrorCode(w, http.StatusGone, ExpiredNotice, "URL_EXPIRED")
	case errors.Is(err, domain.ErrURLNotFound):
		respondErrorCode(w, http.StatusNotFound, "URL not found", "NOT_FOUND")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn(action, "error", err, "path", r.URL.Path)
		respondErrorCode(w, http.StatusServiceUnavailable, "Request cancelled", "CANCELLED")
	default:
		h.logger.Error(action, "error", err, "path", r.URL.Path)
		respondErrorCode(w, http.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR")
	}
}

// mergeFieldErrors combines both message sets; registry messages win per field
func mergeFieldErrors(pre, registry map[string]string) map[string]string {
	merged := make(map[string]string, len(pre)+len(registry))
	for field, msg := range pre {
		merged[field] = msg
	}
	for field, msg := range registry {
		merged[field] = msg
	}
	return merged
}

func (h *Handler) toResponse(url *domain.URL, now time.Time) URLResponse {
	return URLResponse{
		ID:                url.ID,
		ShortCode:         url.ShortCode,
		ShortURL:          fmt.Sprintf("%s/%s", h.baseURL, url.ShortCode),
		OriginalURL:       url.OriginalURL,
		CreatedAt:         url.CreatedAt,
		ExpiresAt:         url.ExpiresAt,
		ClickCount:        url.ClickCount,
		IsCustomShortcode: url.IsCustomShortCode,
		ValidityMinutes:   url.ValidityMinutes,
		Status:            url.Status(now),
	}
}
