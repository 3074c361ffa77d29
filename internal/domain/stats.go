package domain

import (
	"math"
	"time"
)

// Statistics aggregates the current record set
type Statistics struct {
	TotalURLs           int     `json:"total_urls"`
	TotalClicks         int64   `json:"total_clicks"`
	ActiveURLs          int     `json:"active_urls"`
	ExpiredURLs         int     `json:"expired_urls"`
	AverageClicksPerURL float64 `json:"average_clicks_per_url"`
}

// ComputeStatistics scans urls once, comparing each expiry against now.
// It has no side effects, so repeated calls with the same input agree.
func ComputeStatistics(urls []*URL, now time.Time) Statistics {
	var stats Statistics
	stats.TotalURLs = len(urls)

	for _, u := range urls {
		stats.TotalClicks += u.ClickCount
		if !u.IsExpired(now) {
			stats.ActiveURLs++
		}
	}
	stats.ExpiredURLs = stats.TotalURLs - stats.ActiveURLs

	if stats.TotalURLs > 0 {
		avg := float64(stats.TotalClicks) / float64(stats.TotalURLs)
		stats.AverageClicksPerURL = math.Round(avg*100) / 100
	}

	return stats
}
