package webhook

import (
	"fmt"
	"net/url"
	"slices"
	"time"
)

const (
	// DefaultMaxAttempts is the attempt budget copied to new deliveries
	DefaultMaxAttempts = 3
	// DefaultTimeoutSeconds bounds a single outbound POST
	DefaultTimeoutSeconds = 30
)

/* Endpoint represents a registered subscriber URL
 * Uses value semantics as it represents data, not behavior
 * The secret is never empty once the endpoint is created
 */
type Endpoint struct {
	ID             string
	URL            string
	Secret         string
	Events         []EventType
	IsActive       bool
	MaxAttempts    int
	TimeoutSeconds int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SubscribedTo reports whether the endpoint subscribes to the event type
func (e Endpoint) SubscribedTo(eventType EventType) bool {
	return slices.Contains(e.Events, eventType)
}

// Timeout returns the per-attempt timeout as a duration
func (e Endpoint) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// Validate checks the endpoint invariants
func (e Endpoint) Validate() error {
	if err := ValidateURL(e.URL); err != nil {
		return err
	}
	if len(e.Events) == 0 {
		return &ValidationError{Field: "events", Reason: "events must not be empty"}
	}
	for _, et := range e.Events {
		if err := et.Validate(); err != nil {
			return fmt.Errorf("validating event: %w", err)
		}
	}
	if e.Secret == "" {
		return &ValidationError{Field: "secret", Reason: "secret must not be empty"}
	}
	if e.MaxAttempts < 1 {
		return &ValidationError{Field: "max_attempts", Reason: "max_attempts must be at least 1"}
	}
	if e.TimeoutSeconds < 1 {
		return &ValidationError{Field: "timeout_seconds", Reason: "timeout_seconds must be at least 1"}
	}
	return nil
}

// ValidateURL rejects malformed or non-HTTP target URLs
func ValidateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("malformed URL: %q", raw)}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("URL must be http(s) with a host: %q", raw)}
	}
	return nil
}
