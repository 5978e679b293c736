package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of the webhook delivery system.
type Metrics struct {
	// StatusCounts maps delivery status name to count of deliveries in that status
	StatusCounts map[string]int64 `json:"status_counts"`

	// EventCounts maps event type to count of deliveries created for it
	EventCounts map[string]int64 `json:"event_counts"`

	// ActiveEndpoints is the number of endpoints currently accepting deliveries
	ActiveEndpoints int64 `json:"active_endpoints"`

	// TotalEndpoints is the number of registered endpoints
	TotalEndpoints int64 `json:"total_endpoints"`

	// Workers lists the dispatcher workers with a live heartbeat
	Workers []WorkerInfo `json:"workers"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// WorkerInfo represents information about an active dispatcher worker.
type WorkerInfo struct {
	// WorkerID is a unique identifier for the worker
	WorkerID string `json:"worker_id"`

	// Status is the current status of the worker (e.g., "idle", "processing")
	Status string `json:"status"`

	// LastHeartbeat is the timestamp of the last heartbeat
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Collector defines the interface for collecting metrics from the webhook system.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetStatusCounts returns the count of deliveries by status
	GetStatusCounts(ctx context.Context) (map[string]int64, error)

	// GetEventCounts returns the count of deliveries by event type
	GetEventCounts(ctx context.Context) (map[string]int64, error)

	// GetEndpointCounts returns active and total endpoint counts
	GetEndpointCounts(ctx context.Context) (active, total int64, err error)

	// GetActiveWorkers returns information about active dispatcher workers
	GetActiveWorkers(ctx context.Context) ([]WorkerInfo, error)
}
