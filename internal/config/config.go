package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"url-registry/internal/diaglog"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	App       AppConfig
	Registry  RegistryConfig
	DiagLog   DiagLogConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	BaseURL         string // prefix for rendered short URLs
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL settings for the postgres diagnostic sink.
// Registry state never goes to the database.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings for the rate limiter
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// AppConfig holds application-wide settings
type AppConfig struct {
	Environment   string
	LogLevel      string
	LogFormat     string
	EnableMetrics bool
}

// RegistryConfig controls the URL registry
type RegistryConfig struct {
	CheckGeneratedCollisions bool
	MaxGenerateAttempts      int
	SimulatedLatency         time.Duration
	ClickSeed                uint64 // 0 picks a random seed
}

// DiagLogConfig controls the diagnostic log dispatcher
type DiagLogConfig struct {
	Sink            string // http, postgres or none
	URL             string
	Token           string
	Stack           string
	MinLevel        string // info, warn or error
	Timeout         time.Duration
	BufferSize      int
	ShutdownTimeout time.Duration
}

// RateLimitConfig controls the Redis rate limiter
type RateLimitConfig struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
}

// JobsConfig controls background jobs
type JobsConfig struct {
	StatsEnabled  bool
	StatsSchedule string
}

// Diagnostic sink names
const (
	SinkHTTP     = "http"
	SinkPostgres = "postgres"
	SinkNone     = "none"
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			BaseURL:         strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
			ReadTimeout:     parseDuration("SERVER_READ_TIMEOUT", "10s"),
			WriteTimeout:    parseDuration("SERVER_WRITE_TIMEOUT", "10s"),
			IdleTimeout:     parseDuration("SERVER_IDLE_TIMEOUT", "120s"),
			RequestTimeout:  parseDuration("SERVER_REQUEST_TIMEOUT", "5s"),
			ShutdownTimeout: parseDuration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
			AllowedOrigins:  parseList("CORS_ALLOWED_ORIGINS", "https://*,http://*"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "registry"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "registry"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 1),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt("REDIS_DB", 0),
		},
		App: AppConfig{
			Environment:   getEnv("APP_ENV", "development"),
			LogLevel:      getEnv("LOG_LEVEL", "info"),
			LogFormat:     getEnv("LOG_FORMAT", ""),
			EnableMetrics: parseBool("ENABLE_METRICS", true),
		},
		Registry: RegistryConfig{
			CheckGeneratedCollisions: parseBool("REGISTRY_CHECK_GENERATED_COLLISIONS", false),
			MaxGenerateAttempts:      parseInt("REGISTRY_MAX_GENERATE_ATTEMPTS", 10),
			SimulatedLatency:         parseDuration("REGISTRY_SIMULATED_LATENCY", "0s"),
			ClickSeed:                uint64(parseInt("REGISTRY_CLICK_SEED", 0)),
		},
		DiagLog: DiagLogConfig{
			Sink:            getEnv("DIAG_LOG_SINK", SinkHTTP),
			URL:             getEnv("DIAG_LOG_URL", ""),
			Token:           getEnv("DIAG_LOG_TOKEN", ""),
			Stack:           getEnv("DIAG_LOG_STACK", "backend"),
			MinLevel:        getEnv("DIAG_LOG_MIN_LEVEL", string(diaglog.LevelInfo)),
			Timeout:         parseDuration("DIAG_LOG_TIMEOUT", "5s"),
			BufferSize:      parseInt("DIAG_LOG_BUFFER_SIZE", 256),
			ShutdownTimeout: parseDuration("DIAG_LOG_SHUTDOWN_TIMEOUT", "5s"),
		},
		RateLimit: RateLimitConfig{
			Enabled:     parseBool("RATE_LIMIT_ENABLED", false),
			MaxRequests: parseInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 100),
			Window:      parseDuration("RATE_LIMIT_WINDOW", "1m"),
		},
		Jobs: JobsConfig{
			StatsEnabled:  parseBool("JOBS_STATS_ENABLED", true),
			StatsSchedule: getEnv("JOBS_STATS_SCHEDULE", "@every 1m"),
		},
	}

	// Readable logs locally, JSON everywhere else
	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = "json"
		if cfg.IsDevelopment() {
			cfg.App.LogFormat = "text"
		}
	}

	// No endpoint means there is nowhere to post to
	if cfg.DiagLog.Sink == SinkHTTP && cfg.DiagLog.URL == "" {
		cfg.DiagLog.Sink = SinkNone
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s (must be 1-65535)", c.Server.Port)
	}

	validEnvs := map[string]bool{
		"development": true,
		"production":  true,
		"testing":     true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, production, or testing)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.App.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.App.LogLevel)
	}

	if c.App.LogFormat != "json" && c.App.LogFormat != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.App.LogFormat)
	}

	switch c.DiagLog.Sink {
	case SinkHTTP:
		if c.DiagLog.URL == "" {
			return errors.New("DIAG_LOG_URL is required for the http sink")
		}
	case SinkPostgres, SinkNone:
	default:
		return fmt.Errorf("invalid diagnostic sink: %s (must be http, postgres, or none)", c.DiagLog.Sink)
	}

	if _, err := diaglog.ParseLevel(c.DiagLog.MinLevel); err != nil {
		return fmt.Errorf("invalid DIAG_LOG_MIN_LEVEL: %w", err)
	}

	if c.Registry.MaxGenerateAttempts < 1 {
		return errors.New("REGISTRY_MAX_GENERATE_ATTEMPTS must be at least 1")
	}
	if c.Registry.SimulatedLatency < 0 {
		return errors.New("REGISTRY_SIMULATED_LATENCY cannot be negative")
	}

	if c.RateLimit.Enabled && (c.RateLimit.MaxRequests < 1 || c.RateLimit.Window < time.Second) {
		return errors.New("rate limit needs at least 1 request per window of 1s or more")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address in host:port format
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions to parse environment variables with defaults

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

func parseList(key string, defaultValue string) []string {
	var items []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
