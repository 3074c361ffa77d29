package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"url-registry/internal/domain"
	"url-registry/internal/metrics"
)

// StatisticsSource is satisfied by the registry
type StatisticsSource interface {
	Statistics(ctx context.Context) (domain.Statistics, error)
}

// StatsReporter periodically publishes registry statistics to the gauges
type StatsReporter struct {
	source  StatisticsSource
	logger  *slog.Logger
	timeout time.Duration
	cron    *cron.Cron
}

// NewStatsReporter creates a reporter. Nothing runs until Start.
func NewStatsReporter(source StatisticsSource, logger *slog.Logger) *StatsReporter {
	return &StatsReporter{
		source:  source,
		logger:  logger,
		timeout: 10 * time.Second,
		cron:    cron.New(),
	}
}

// Start schedules the report using a cron spec such as "@every 1m" or "*/5 * * * *"
func (r *StatsReporter) Start(schedule string) error {
	if _, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.Report(ctx)
	}); err != nil {
		return fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
	}

	r.cron.Start()
	r.logger.Info("Stats reporter started", "schedule", schedule)
	return nil
}

// Stop halts the scheduler and waits for a running report to finish or ctx to end
func (r *StatsReporter) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
		r.logger.Warn("Stats reporter did not stop in time")
	}
}

// Report takes one statistics snapshot and publishes it
func (r *StatsReporter) Report(ctx context.Context) {
	stats, err := r.source.Statistics(ctx)
	if err != nil {
		r.logger.Error("Failed to compute statistics", "error", err)
		return
	}

	metrics.RecordRegistryStats(stats.ActiveURLs, stats.ExpiredURLs, stats.TotalClicks)

	r.logger.Debug("Registry statistics",
		"total_urls", stats.TotalURLs,
		"active_urls", stats.ActiveURLs,
		"expired_urls", stats.ExpiredURLs,
		"total_clicks", stats.TotalClicks,
		"average_clicks_per_url", stats.AverageClicksPerURL,
	)
}
