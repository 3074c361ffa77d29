package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"url-registry/internal/metrics"
	"url-registry/pkg/logger"
)

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Int(1), args.Get(2).(time.Time), args.Error(3)
}

func (m *MockRateLimiter) MaxRequests() int {
	return 100
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimitMiddleware(t *testing.T) {
	reset := time.Now().Add(30 * time.Second)

	tests := []struct {
		name          string
		allowed       bool
		err           error
		expectedCode  int
		expectHeaders bool
	}{
		{"allowed", true, nil, http.StatusOK, true},
		{"limited", false, nil, http.StatusTooManyRequests, true},
		{"limiter down fails open", false, errors.New("redis down"), http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			limiter := new(MockRateLimiter)
			limiter.On("Allow", mock.Anything, "203.0.113.9").Return(tt.allowed, 7, reset, tt.err)

			handler := RateLimitMiddleware(limiter, testLogger())(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/abc", nil)
			req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
			w := httptest.NewRecorder()

			// Act
			handler.ServeHTTP(w, req)

			// Assert
			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.expectHeaders {
				assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
				assert.Equal(t, "7", w.Header().Get("X-RateLimit-Remaining"))
				assert.Equal(t, strconv.FormatInt(reset.Unix(), 10), w.Header().Get("X-RateLimit-Reset"))
			} else {
				assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
			}
			if tt.expectedCode == http.StatusTooManyRequests {
				assert.NotEmpty(t, w.Header().Get("Retry-After"))
			}
			limiter.AssertExpectations(t)
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logger.RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "upstream-id", seen)
	assert.Equal(t, "upstream-id", w.Header().Get("X-Request-ID"))
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/{shortcode}", okHandler)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/{shortcode}", "200")
	before := testutil.ToFloat64(counter)

	for _, code := range []string{"/aaa", "/bbb", "/ccc"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, code, nil))
	}

	assert.Equal(t, before+3, testutil.ToFloat64(counter))
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"forwarded chain", "198.51.100.1, 10.0.0.2", "", "10.0.0.3:1234", "198.51.100.1"},
		{"real ip", "", "198.51.100.7", "10.0.0.3:1234", "198.51.100.7"},
		{"remote addr", "", "", "192.0.2.10:5555", "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			assert.Equal(t, tt.want, extractIP(req))
		})
	}
}

func TestRouter_RateLimitSkipsHealth(t *testing.T) {
	handler, _ := setupTestHandler()
	limiter := new(MockRateLimiter)

	router := NewRouter(handler, RouterConfig{Logger: testLogger(), Limiter: limiter})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything)
}
