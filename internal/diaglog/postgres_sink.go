package diaglog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"url-registry/internal/metrics"
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS diagnostic_logs (
		id         BIGSERIAL PRIMARY KEY,
		stack      TEXT        NOT NULL,
		level      TEXT        NOT NULL,
		package    TEXT        NOT NULL,
		message    TEXT        NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

const insertEntrySQL = `
	INSERT INTO diagnostic_logs (stack, level, package, message)
	VALUES ($1, $2, $3, $4)
`

// execer is the part of *pgxpool.Pool the sink needs
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresSink stores entries in the diagnostic_logs table.
// Only diagnostics go here; registry state stays in memory.
type PostgresSink struct {
	db execer
}

// NewPostgresSink creates a sink writing through db
func NewPostgresSink(db execer) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Name() string { return "postgres" }

// EnsureSchema creates the diagnostic_logs table when missing
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		metrics.DatabaseErrorsTotal.WithLabelValues("create_table").Inc()
		return fmt.Errorf("failed to create diagnostic_logs table: %w", err)
	}
	return nil
}

// Send inserts one entry
func (s *PostgresSink) Send(ctx context.Context, entry Entry) error {
	start := time.Now()
	_, err := s.db.Exec(ctx, insertEntrySQL, entry.Stack, string(entry.Level), entry.Package, entry.Message)
	metrics.DatabaseQueryDuration.WithLabelValues("insert_diagnostic").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DatabaseErrorsTotal.WithLabelValues("insert_diagnostic").Inc()
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// InitDB initializes the database connection pool
func InitDB(ctx context.Context, dsn string, maxConns, minConns int, maxLifetime time.Duration) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = int32(maxConns)
	config.MinConns = int32(minConns)
	config.MaxConnLifetime = maxLifetime
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
