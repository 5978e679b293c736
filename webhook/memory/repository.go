package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marcelsud/webhook-outbox/webhook"
)

/* In-memory implementation of webhook.Repository
 * Used by unit tests and local development; all access is serialized
 * by a single mutex so record writes are atomic
 */

type Repository struct {
	mu         sync.RWMutex
	endpoints  map[string]webhook.Endpoint
	deliveries map[string]webhook.Delivery
}

// NewRepository creates an empty in-memory repository
func NewRepository() *Repository {
	return &Repository{
		endpoints:  make(map[string]webhook.Endpoint),
		deliveries: make(map[string]webhook.Delivery),
	}
}

// GetEndpoint retrieves an endpoint by ID
func (r *Repository) GetEndpoint(ctx context.Context, id string) (webhook.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.endpoints[id]
	if !ok {
		return webhook.Endpoint{}, webhook.ErrNotFound
	}
	return e, nil
}

// ListEndpoints returns all endpoints
func (r *Repository) ListEndpoints(ctx context.Context) ([]webhook.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	endpoints := make([]webhook.Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		endpoints = append(endpoints, e)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].CreatedAt.Before(endpoints[j].CreatedAt)
	})
	return endpoints, nil
}

// StoreEndpoint creates or replaces an endpoint record
func (r *Repository) StoreEndpoint(ctx context.Context, e webhook.Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endpoints[e.ID] = e
	return nil
}

// DeleteEndpoint removes an endpoint
func (r *Repository) DeleteEndpoint(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.endpoints[id]; !ok {
		return webhook.ErrNotFound
	}
	delete(r.endpoints, id)
	return nil
}

// GetDelivery retrieves a delivery record by ID
func (r *Repository) GetDelivery(ctx context.Context, id string) (webhook.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.deliveries[id]
	if !ok {
		return webhook.Delivery{}, webhook.ErrNotFound
	}
	return d, nil
}

// ListDeliveries returns matching records most-recent-first
func (r *Repository) ListDeliveries(ctx context.Context, filter webhook.DeliveryFilter) ([]webhook.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	deliveries := make([]webhook.Delivery, 0, len(r.deliveries))
	for _, d := range r.deliveries {
		if filter.EndpointID != "" && d.EndpointID != filter.EndpointID {
			continue
		}
		if filter.Status != 0 && d.Status != filter.Status {
			continue
		}
		deliveries = append(deliveries, d)
	}
	sort.Slice(deliveries, func(i, j int) bool {
		return deliveries[i].CreatedAt.After(deliveries[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = webhook.DefaultListLimit
	}
	if len(deliveries) > limit {
		deliveries = deliveries[:limit]
	}
	return deliveries, nil
}

// DueRetries returns Retrying deliveries whose scheduled time has arrived
func (r *Repository) DueRetries(ctx context.Context, now time.Time) ([]webhook.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []webhook.Delivery
	for _, d := range r.deliveries {
		if d.Status == webhook.Retrying && !d.NextRetryAt.IsZero() && !d.NextRetryAt.After(now) {
			due = append(due, d)
		}
	}
	return due, nil
}

// SaveDelivery creates or replaces a delivery record atomically
func (r *Repository) SaveDelivery(ctx context.Context, d webhook.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deliveries[d.ID] = d
	return nil
}

// DeleteDeliveriesOlderThan removes records created before cutoff
func (r *Repository) DeleteDeliveriesOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, d := range r.deliveries {
		if d.CreatedAt.Before(cutoff) {
			delete(r.deliveries, id)
			removed++
		}
	}
	return removed, nil
}

// Stats aggregates delivery and endpoint counts
func (r *Repository) Stats(ctx context.Context) (webhook.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := webhook.Stats{
		TotalDeliveries: int64(len(r.deliveries)),
		StatusCounts:    make(map[string]int64),
		EventCounts:     make(map[string]int64),
		EndpointCounts:  make(map[string]int64),
		TotalEndpoints:  int64(len(r.endpoints)),
	}
	for _, d := range r.deliveries {
		stats.StatusCounts[d.Status.String()]++
		stats.EventCounts[d.EventType.String()]++
		stats.EndpointCounts[d.EndpointID]++
	}
	for _, e := range r.endpoints {
		if e.IsActive {
			stats.ActiveEndpoints++
		}
	}
	return stats, nil
}

// Close releases nothing for the in-memory store
func (r *Repository) Close(ctx context.Context) error {
	return nil
}
