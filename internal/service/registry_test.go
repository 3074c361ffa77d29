package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"url-registry/internal/diaglog"
	"url-registry/internal/domain"
	"url-registry/internal/repository"
	"url-registry/internal/repository/memory"
	"url-registry/pkg/validator"
)

// ==================== MOCKS ====================

type MockDiagLogger struct {
	mock.Mock
}

func (m *MockDiagLogger) Log(level diaglog.Level, pkg, message string) {
	m.Called(level, pkg, message)
}

type MockURLRepository struct {
	mock.Mock
}

func (m *MockURLRepository) Create(ctx context.Context, url *domain.URL) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockURLRepository) CreateUnique(ctx context.Context, url *domain.URL) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockURLRepository) GetByShortCode(ctx context.Context, shortCode string) (*domain.URL, error) {
	args := m.Called(ctx, shortCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.URL), args.Error(1)
}

func (m *MockURLRepository) GetByID(ctx context.Context, id string) (*domain.URL, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.URL), args.Error(1)
}

func (m *MockURLRepository) List(ctx context.Context) ([]*domain.URL, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.URL), args.Error(1)
}

func (m *MockURLRepository) ExistsShortCode(ctx context.Context, shortCode string) (bool, error) {
	args := m.Called(ctx, shortCode)
	return args.Bool(0), args.Error(1)
}

type stubOrigins struct{}

func (stubOrigins) Origin(userAgent string) (string, string, string) {
	if userAgent == "" {
		userAgent = "stub-agent"
	}
	return "Tokyo, Japan", "192.168.1.42", userAgent
}

// ==================== HELPER FUNCTIONS ====================

var startTime = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testRegistry struct {
	*Registry
	store *memory.Store
	diag  *MockDiagLogger
	clock *testClock
}

func setupTestRegistry(cfg Config) *testRegistry {
	store := memory.New()
	diag := new(MockDiagLogger)
	diag.On("Log", mock.Anything, mock.Anything, mock.Anything).Return()
	clock := &testClock{t: startTime}

	var ids atomic.Int64
	registry := NewRegistry(store.URLs(), store.Clicks(), diag, testLogger(), cfg,
		WithClock(clock.Now),
		WithOriginSource(stubOrigins{}),
		WithIDGenerator(func() string {
			return fmt.Sprintf("id-%d", ids.Add(1))
		}),
	)

	return &testRegistry{Registry: registry, store: store, diag: diag, clock: clock}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func (tr *testRegistry) count(t *testing.T) int {
	urls, err := tr.List(context.Background())
	require.NoError(t, err)
	return len(urls)
}

func requireValidationError(t *testing.T, err error) *domain.ValidationError {
	t.Helper()
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr
}

// ==================== SHORTEN TESTS ====================

func TestShorten_GeneratedCode(t *testing.T) {
	// Arrange
	tr := setupTestRegistry(Config{})

	// Act
	url, err := tr.Shorten(context.Background(), ShortenRequest{OriginalURL: "https://example.com"})

	// Assert
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-zA-Z]{7}$`), url.ShortCode)
	assert.Equal(t, string(shortCodeAlphabet[startTime.UnixMilli()%62]), url.ShortCode[6:])
	assert.False(t, url.IsCustomShortCode)
	assert.Equal(t, 30*24*time.Hour, url.ExpiresAt.Sub(url.CreatedAt))
	assert.Equal(t, domain.DefaultValidityMinutes, url.ValidityMinutes)
	assert.Equal(t, int64(0), url.ClickCount)
	assert.Equal(t, 1, tr.count(t))

	tr.diag.AssertCalled(t, "Log", diaglog.LevelInfo, diaglog.PackageShorten,
		"URL shortened successfully: https://example.com -> "+url.ShortCode)
}

func TestShorten_CustomCodeAndValidity(t *testing.T) {
	tr := setupTestRegistry(Config{})

	url, err := tr.Shorten(context.Background(), ShortenRequest{
		OriginalURL:     "https://example.com",
		CustomShortCode: "mylink",
		ValidityPeriod:  "60",
	})

	require.NoError(t, err)
	assert.Equal(t, "mylink", url.ShortCode)
	assert.True(t, url.IsCustomShortCode)
	assert.Equal(t, startTime, url.CreatedAt)
	assert.Equal(t, startTime.Add(60*time.Minute), url.ExpiresAt)
	assert.Equal(t, 60, url.ValidityMinutes)
}

func TestShorten_InvalidURL(t *testing.T) {
	tr := setupTestRegistry(Config{})

	_, err := tr.Shorten(context.Background(), ShortenRequest{OriginalURL: "not-a-url"})

	verr := requireValidationError(t, err)
	assert.Equal(t, map[string]string{
		domain.FieldURL: "Please enter a valid URL (must start with http:// or https://)",
	}, verr.Fields)
	assert.Equal(t, 0, tr.count(t))
	tr.diag.AssertCalled(t, "Log", diaglog.LevelError, diaglog.PackageShorten, mock.MatchedBy(func(msg string) bool {
		return strings.HasPrefix(msg, "URL shortening failed: ")
	}))
}

func TestShorten_DuplicateCustomCode(t *testing.T) {
	tr := setupTestRegistry(Config{})
	ctx := context.Background()

	_, err := tr.Shorten(ctx, ShortenRequest{OriginalURL: "https://example.com", CustomShortCode: "mylink"})
	require.NoError(t, err)

	_, err = tr.Shorten(ctx, ShortenRequest{OriginalURL: "https://a.com", CustomShortCode: "mylink"})

	verr := requireValidationError(t, err)
	assert.Equal(t, "This shortcode is already in use", verr.Fields[domain.FieldCustomShortCode])
	assert.Len(t, verr.Fields, 1)
	assert.Equal(t, 1, tr.count(t))
}

func TestShorten_RejectedURLsDoNotMutate(t *testing.T) {
	urls := []struct {
		url  string
		want error
	}{
		{"", validator.ErrEmptyURL},
		{"example.com", validator.ErrInvalidURL},
		{"mailto:someone@example.com", validator.ErrInvalidURL},
		{"https://example.com/?r=javascript:alert(1)", validator.ErrUnsafeProtocol},
		{"https://example.com/DATA:blob", validator.ErrUnsafeProtocol},
		{"https://example.com/file:etc", validator.ErrUnsafeProtocol},
		{"https://example.com/?src=ftp://host", validator.ErrUnsafeProtocol},
		{"https://example.com/" + strings.Repeat("x", 2048), validator.ErrURLTooLong},
	}

	for _, tt := range urls {
		t.Run(tt.want.Error(), func(t *testing.T) {
			tr := setupTestRegistry(Config{})

			_, err := tr.Shorten(context.Background(), ShortenRequest{OriginalURL: tt.url})

			verr := requireValidationError(t, err)
			assert.Equal(t, tt.want.Error(), verr.Fields[domain.FieldURL])
			assert.Equal(t, 0, tr.count(t))
		})
	}
}

func TestShorten_ValidityPeriodBounds(t *testing.T) {
	tests := []struct {
		period  string
		wantErr bool
		minutes int
	}{
		{"1", false, 1},
		{"525600", false, 525600},
		{"0", true, 0},
		{"-1", true, 0},
		{"525601", true, 0},
		{"ten", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			tr := setupTestRegistry(Config{})

			url, err := tr.Shorten(context.Background(), ShortenRequest{
				OriginalURL:    "https://example.com",
				ValidityPeriod: tt.period,
			})

			if tt.wantErr {
				verr := requireValidationError(t, err)
				assert.Equal(t, "Validity period must be between 1 and 525600 minutes", verr.Fields[domain.FieldValidityPeriod])
				assert.Equal(t, 0, tr.count(t))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, time.Duration(tt.minutes)*time.Minute, url.ExpiresAt.Sub(url.CreatedAt))
		})
	}
}

func TestShorten_ReportsEveryField(t *testing.T) {
	tr := setupTestRegistry(Config{})

	_, err := tr.Shorten(context.Background(), ShortenRequest{
		OriginalURL:     "",
		CustomShortCode: "a!",
		ValidityPeriod:  "0",
	})

	verr := requireValidationError(t, err)
	assert.Equal(t, map[string]string{
		domain.FieldURL:             "URL is required",
		domain.FieldCustomShortCode: "Custom shortcode must be 3-10 characters",
		domain.FieldValidityPeriod:  "Validity period must be between 1 and 525600 minutes",
	}, verr.Fields)
}

func TestShorten_CustomCodeFormat(t *testing.T) {
	tr := setupTestRegistry(Config{})

	_, err := tr.Shorten(context.Background(), ShortenRequest{
		OriginalURL:     "https://example.com",
		CustomShortCode: "my-link",
	})

	verr := requireValidationError(t, err)
	assert.Equal(t, "Custom shortcode can only contain letters and numbers", verr.Fields[domain.FieldCustomShortCode])
}

func TestShorten_SimulatedLatencyHonoursContext(t *testing.T) {
	tr := setupTestRegistry(Config{SimulatedLatency: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Shorten(ctx, ShortenRequest{OriginalURL: "https://example.com"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, tr.count(t))
}

func TestShorten_GeneratedCollisionCheck(t *testing.T) {
	// Arrange
	repo := new(MockURLRepository)
	diag := new(MockDiagLogger)
	diag.On("Log", mock.Anything, mock.Anything, mock.Anything).Return()

	repo.On("ExistsShortCode", mock.Anything, mock.Anything).Return(true, nil).Once()
	repo.On("ExistsShortCode", mock.Anything, mock.Anything).Return(false, nil).Once()
	repo.On("CreateUnique", mock.Anything, mock.AnythingOfType("*domain.URL")).Return(nil)

	registry := NewRegistry(repo, nil, diag, testLogger(), Config{CheckGeneratedCollisions: true})

	// Act
	url, err := registry.Shorten(context.Background(), ShortenRequest{OriginalURL: "https://example.com"})

	// Assert
	require.NoError(t, err)
	assert.Len(t, url.ShortCode, GeneratedShortCodeLength)
	repo.AssertNumberOfCalls(t, "ExistsShortCode", 2)
	repo.AssertExpectations(t)
}

func TestShorten_GeneratedCollisionGivesUp(t *testing.T) {
	repo := new(MockURLRepository)
	diag := new(MockDiagLogger)
	diag.On("Log", mock.Anything, mock.Anything, mock.Anything).Return()
	repo.On("ExistsShortCode", mock.Anything, mock.Anything).Return(true, nil)

	registry := NewRegistry(repo, nil, diag, testLogger(), Config{CheckGeneratedCollisions: true, MaxGenerateAttempts: 3})

	_, err := registry.Shorten(context.Background(), ShortenRequest{OriginalURL: "https://example.com"})

	assert.ErrorContains(t, err, "after 3 attempts")
	repo.AssertNumberOfCalls(t, "ExistsShortCode", 3)
	repo.AssertNotCalled(t, "CreateUnique", mock.Anything, mock.Anything)
}

func TestShorten_GeneratedCollisionLostRaceRetries(t *testing.T) {
	// Arrange
	repo := new(MockURLRepository)
	diag := new(MockDiagLogger)
	diag.On("Log", mock.Anything, mock.Anything, mock.Anything).Return()

	repo.On("ExistsShortCode", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("CreateUnique", mock.Anything, mock.AnythingOfType("*domain.URL")).
		Return(fmt.Errorf("%w: taken", repository.ErrShortCodeExists)).Once()
	repo.On("CreateUnique", mock.Anything, mock.AnythingOfType("*domain.URL")).Return(nil).Once()

	registry := NewRegistry(repo, nil, diag, testLogger(), Config{CheckGeneratedCollisions: true})

	// Act
	url, err := registry.Shorten(context.Background(), ShortenRequest{OriginalURL: "https://example.com"})

	// Assert
	require.NoError(t, err)
	assert.False(t, url.IsCustomShortCode)
	repo.AssertNumberOfCalls(t, "CreateUnique", 2)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestShorten_ConcurrentGeneratedCodesStayUnique(t *testing.T) {
	tr := setupTestRegistry(Config{CheckGeneratedCollisions: true, MaxGenerateAttempts: 50})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tr.Shorten(ctx, ShortenRequest{OriginalURL: "https://example.com"})
		}()
	}
	wg.Wait()

	urls, err := tr.List(ctx)
	require.NoError(t, err)
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		assert.False(t, seen[u.ShortCode], "duplicate code %s", u.ShortCode)
		seen[u.ShortCode] = true
	}
}

func TestShorten_RepositoryFailure(t *testing.T) {
	repo := new(MockURLRepository)
	diag := new(MockDiagLogger)
	diag.On("Log", mock.Anything, mock.Anything, mock.Anything).Return()
	repo.On("ExistsShortCode", mock.Anything, "mylink").Return(false, errors.New("store unavailable"))

	registry := NewRegistry(repo, nil, diag, testLogger(), Config{})

	_, err := registry.Shorten(context.Background(), ShortenRequest{OriginalURL: "https://example.com", CustomShortCode: "mylink"})

	assert.ErrorContains(t, err, "store unavailable")
	var verr *domain.ValidationError
	assert.False(t, errors.As(err, &verr))
}

// ==================== RECORD CLICK TESTS ====================

func TestRecordClick_Active(t *testing.T) {
	// Arrange
	tr := setupTestRegistry(Config{})
	ctx := context.Background()
	url, err := tr.Shorten(ctx, ShortenRequest{OriginalURL: "https://example.com", CustomShortCode: "mylink"})
	require.NoError(t, err)
	tr.clock.Advance(time.Minute)

	// Act
	click, err := tr.RecordClick(ctx, url.ID, Visit{})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, url.ID, click.URLID)
	assert.Equal(t, "mylink", click.ShortCode)
	assert.Equal(t, domain.DirectReferrer, click.Referrer)
	assert.Equal(t, "Tokyo, Japan", click.Location)
	assert.Equal(t, "192.168.1.42", click.ClientID)
	assert.Equal(t, startTime.Add(time.Minute), click.Timestamp)

	stored, err := tr.Lookup(ctx, "mylink")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ClickCount)

	clicks, err := tr.Clicks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, clicks, 1)
	assert.Equal(t, click.ID, clicks[0].ID)

	tr.diag.AssertCalled(t, "Log", diaglog.LevelInfo, diaglog.PackageRedirect, "Redirect tracked for mylink")
}

func TestRecordClick_PrependsEvents(t *testing.T) {
	tr := setupTestRegistry(Config{})
	ctx := context.Background()
	url, err := tr.Shorten(ctx, ShortenRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	first, err := tr.RecordClick(ctx, url.ID, Visit{Referrer: "https://google.com"})
	require.NoError(t, err)
	second, err := tr.RecordClick(ctx, url.ID, Visit{UserAgent: "curl/8.0"})
	require.NoError(t, err)

	clicks, err := tr.Clicks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, clicks, 2)
	assert.Equal(t, second.ID, clicks[0].ID)
	assert.Equal(t, first.ID, clicks[1].ID)
	assert.Equal(t, "https://google.com", first.Referrer)
	assert.Equal(t, "curl/8.0", second.UserAgent)

	stored, err := tr.Lookup(ctx, url.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.ClickCount)
}

func TestClicksFor(t *testing.T) {
	// Arrange
	tr := setupTestRegistry(Config{})
	ctx := context.Background()
	mine, err := tr.Shorten(ctx, ShortenRequest{OriginalURL: "https://example.com", CustomShortCode: "mylink"})
	require.NoError(t, err)
	other, err := tr.Shorten(ctx, ShortenRequest{OriginalURL: "https://other.com", CustomShortCode: "other"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := tr.RecordClick(ctx, mine.ID, Visit{})
		require.NoError(t, err)
	}
	_, err = tr.RecordClick(ctx, other.ID, Visit{})
	require.NoError(t, err)

	// Act
	clicks, err := tr.ClicksFor(ctx, "mylink", 2)

	// Assert
	require.NoError(t, err)
	require.Len(t, clicks, 2)
	for _, c := range clicks {
		assert.Equal(t, mine.ID, c.URLID)
	}

	all, err := tr.ClicksFor(ctx, "mylink", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = tr.ClicksFor(ctx, "missing", 10)
	assert.ErrorIs(t, err, domain.ErrURLNotFound)
}

func TestRecordClick_Expired(t *testing.T) {
	tr := setupTestRegistry(Config{})
	ctx := context.Background()
	url, err := tr.Shorten(ctx, ShortenRequest{OriginalURL: "https://example.com", CustomShortCode: "short", ValidityPeriod: "1"})
	require.NoError(t, err)

	// Exactly at expiry the record is still active
	tr.clock.Advance(time.Minute)
	_, err = tr.RecordClick(ctx, url.ID, Visit{})
	require.NoError(t, err)

	tr.clock.Advance(time.Millisecond)
	click, err := tr.RecordClick(ctx, url.ID, Visit{})

	assert.ErrorIs(t, err, domain.ErrURLExpired)
	assert.Nil(t, click)

	stored, err := tr.Lookup(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ClickCount)

	clicks, err := tr.Clicks(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, clicks, 1)

	tr.diag.AssertCalled(t, "Log", diaglog.LevelWarn, diaglog.PackageRedirect, "Attempted to access expired URL: short")
}

func TestRecordClick_UnknownURL(t *testing.T) {
	tr := setupTestRegistry(Config{})

	_, err := tr.RecordClick(context.Background(), "missing", Visit{})

	assert.ErrorIs(t, err, domain.ErrURLNotFound)
}

// ==================== STATISTICS TESTS ====================

func TestStatistics(t *testing.T) {
	tr := setupTestRegistry(Config{})
	ctx := context.Background()

	short, err := tr.Shorten(ctx, ShortenRequest{OriginalURL: "https://a.com", ValidityPeriod: "1"})
	require.NoError(t, err)
	long, err := tr.Shorten(ctx, ShortenRequest{OriginalURL: "https://b.com"})
	require.NoError(t, err)
	_, err = tr.Shorten(ctx, ShortenRequest{OriginalURL: "https://c.com"})
	require.NoError(t, err)

	_, err = tr.RecordClick(ctx, short.ID, Visit{})
	require.NoError(t, err)
	_, err = tr.RecordClick(ctx, long.ID, Visit{})
	require.NoError(t, err)

	tr.clock.Advance(2 * time.Minute)

	stats, err := tr.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.Statistics{
		TotalURLs:           3,
		TotalClicks:         2,
		ActiveURLs:          2,
		ExpiredURLs:         1,
		AverageClicksPerURL: 0.67,
	}, stats)

	again, err := tr.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats, again)
}

func TestStatistics_Empty(t *testing.T) {
	tr := setupTestRegistry(Config{})

	stats, err := tr.Statistics(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.Statistics{}, stats)
}

// ==================== LOOKUP TESTS ====================

func TestLookup_NewestRecordWins(t *testing.T) {
	tr := setupTestRegistry(Config{})
	ctx := context.Background()

	older := domain.NewURL("old", "https://old.com", "dup1234", false, 60, startTime)
	newer := domain.NewURL("new", "https://new.com", "dup1234", false, 60, startTime)
	require.NoError(t, tr.store.URLs().Create(ctx, older))
	require.NoError(t, tr.store.URLs().Create(ctx, newer))

	got, err := tr.Lookup(ctx, "dup1234")

	require.NoError(t, err)
	assert.Equal(t, "new", got.ID)
}

// ==================== GENERATOR TESTS ====================

func TestGenerateShortCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		at := startTime.Add(time.Duration(i) * time.Millisecond)
		code := generateShortCode(at)

		require.Len(t, code, GeneratedShortCodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(shortCodeAlphabet, c))
		}
		assert.Equal(t, shortCodeAlphabet[at.UnixMilli()%62], code[6])
	}
}

func TestOriginSimulator(t *testing.T) {
	sim := NewOriginSimulator(42)

	for i := 0; i < 50; i++ {
		location, clientID, agent := sim.Origin("")

		assert.Contains(t, ClickLocations, location)
		assert.Regexp(t, `^192\.168\.1\.\d{1,3}$`, clientID)
		assert.NotEmpty(t, agent)
	}

	_, _, agent := sim.Origin("curl/8.0")
	assert.Equal(t, "curl/8.0", agent)
}
