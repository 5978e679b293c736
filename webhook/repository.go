package webhook

import (
	"context"
	"time"
)

/* Small, focused interfaces following "The Go Way"
 * Interfaces abstract behavior, not things
 * Written for users of the API, not just for testing
 */

// EndpointReader provides read operations for endpoints
type EndpointReader interface {
	/* Context is always the first parameter in functions that do I/O
	 * This allows for cancellation, timeouts, and shared values
	 */
	GetEndpoint(ctx context.Context, id string) (Endpoint, error)
	ListEndpoints(ctx context.Context) ([]Endpoint, error)
}

// EndpointWriter provides write operations for endpoints
type EndpointWriter interface {
	// StoreEndpoint creates or fully replaces an endpoint record
	StoreEndpoint(ctx context.Context, e Endpoint) error
	DeleteEndpoint(ctx context.Context, id string) error
}

// DeliveryReader provides read operations for delivery records
type DeliveryReader interface {
	GetDelivery(ctx context.Context, id string) (Delivery, error)
	// ListDeliveries returns records most-recent-first
	ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]Delivery, error)
	/* DueRetries returns deliveries in Retrying state whose scheduled
	 * time has arrived; consumed by the retry sweep
	 */
	DueRetries(ctx context.Context, now time.Time) ([]Delivery, error)
}

// DeliveryWriter provides write operations for delivery records
type DeliveryWriter interface {
	/* SaveDelivery creates or replaces a delivery record as one atomic
	 * write; callers keep a single writer per record at a time
	 */
	SaveDelivery(ctx context.Context, d Delivery) error
	// DeleteDeliveriesOlderThan removes records created before cutoff
	DeleteDeliveriesOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// StatsReader provides aggregate counts for the monitoring layer
type StatsReader interface {
	Stats(ctx context.Context) (Stats, error)
}

/* Interface composition - combining small interfaces into larger ones
 * This is preferred over large monolithic interfaces
 */
type Repository interface {
	EndpointReader
	EndpointWriter
	DeliveryReader
	DeliveryWriter
	StatsReader
	Close(ctx context.Context) error
}
