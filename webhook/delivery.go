package webhook

import (
	"encoding/json"
	"time"
)

/* Delivery represents one tracked attempt-series of relaying a single
 * event to a single endpoint
 * EndpointID is a non-owning reference: it is kept as a historical
 * reference even after the endpoint is deleted
 * Invariants: Attempts <= MaxAttempts; NextRetryAt is set iff the
 * status is Retrying; a final status is never reopened
 */
type Delivery struct {
	ID             string
	EndpointID     string
	EventType      EventType
	Payload        json.RawMessage
	Status         Status
	Attempts       int
	MaxAttempts    int
	NextRetryAt    time.Time
	ResponseStatus int
	ResponseBody   string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DeliveryFilter narrows delivery listings
// Zero values mean "no filter"; Limit <= 0 falls back to a default
type DeliveryFilter struct {
	EndpointID string
	Status     Status
	Limit      int
}

// DefaultListLimit caps delivery listings when no limit is given
const DefaultListLimit = 100

// Stats aggregates delivery and endpoint counts for the monitoring layer
type Stats struct {
	TotalDeliveries int64            `json:"total_deliveries"`
	StatusCounts    map[string]int64 `json:"status_counts"`
	EventCounts     map[string]int64 `json:"event_counts"`
	EndpointCounts  map[string]int64 `json:"endpoint_counts"`
	ActiveEndpoints int64            `json:"active_endpoints"`
	TotalEndpoints  int64            `json:"total_endpoints"`
}
