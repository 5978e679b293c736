package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-outbox/webhook"
)

// WorkerSource supplies live worker heartbeats, typically backed by Redis
type WorkerSource func(ctx context.Context) ([]WorkerInfo, error)

// StoreCollector implements the Collector interface on top of the
// delivery store's aggregate stats plus an optional worker source
type StoreCollector struct {
	stats   webhook.StatsReader
	workers WorkerSource
}

// NewStoreCollector creates a store-backed metrics collector
// workers may be nil when no heartbeat backend is configured
func NewStoreCollector(stats webhook.StatsReader, workers WorkerSource) *StoreCollector {
	return &StoreCollector{
		stats:   stats,
		workers: workers,
	}
}

// Collect gathers all metrics from the store
func (c *StoreCollector) Collect(ctx context.Context) (Metrics, error) {
	stats, err := c.stats.Stats(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting delivery stats: %w", err)
	}

	workers, err := c.GetActiveWorkers(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting active workers: %w", err)
	}

	return Metrics{
		StatusCounts:    stats.StatusCounts,
		EventCounts:     stats.EventCounts,
		ActiveEndpoints: stats.ActiveEndpoints,
		TotalEndpoints:  stats.TotalEndpoints,
		Workers:         workers,
		Timestamp:       time.Now(),
	}, nil
}

// GetStatusCounts returns counts of deliveries grouped by status
func (c *StoreCollector) GetStatusCounts(ctx context.Context) (map[string]int64, error) {
	stats, err := c.stats.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting delivery stats: %w", err)
	}
	return stats.StatusCounts, nil
}

// GetEventCounts returns counts of deliveries grouped by event type
func (c *StoreCollector) GetEventCounts(ctx context.Context) (map[string]int64, error) {
	stats, err := c.stats.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting delivery stats: %w", err)
	}
	return stats.EventCounts, nil
}

// GetEndpointCounts returns active and total endpoint counts
func (c *StoreCollector) GetEndpointCounts(ctx context.Context) (int64, int64, error) {
	stats, err := c.stats.Stats(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("getting delivery stats: %w", err)
	}
	return stats.ActiveEndpoints, stats.TotalEndpoints, nil
}

// GetActiveWorkers returns information about active dispatcher workers
func (c *StoreCollector) GetActiveWorkers(ctx context.Context) ([]WorkerInfo, error) {
	if c.workers == nil {
		return []WorkerInfo{}, nil
	}
	return c.workers(ctx)
}
