package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marcelsud/webhook-outbox/webhook/signature"
)

/* Service represents the business logic layer
 * Uses pointer semantics as it's an API, not data
 * Constructed once with injected dependencies; no ambient global state
 */

// UseCase defines the business operations for the webhook subsystem
type UseCase interface {
	CreateEndpoint(ctx context.Context, params CreateEndpointParams) (Endpoint, error)
	UpdateEndpoint(ctx context.Context, id string, params UpdateEndpointParams) (Endpoint, error)
	DeleteEndpoint(ctx context.Context, id string) error
	GetEndpoint(ctx context.Context, id string) (Endpoint, error)
	ListEndpoints(ctx context.Context) ([]Endpoint, error)
	Subscribers(ctx context.Context, eventType EventType) ([]Endpoint, error)
	Trigger(ctx context.Context, eventType EventType, payload json.RawMessage, endpointID string) ([]Delivery, error)
	TestEndpoint(ctx context.Context, id string) (TestResult, error)
	GetDelivery(ctx context.Context, id string) (Delivery, error)
	ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]Delivery, error)
	Stats(ctx context.Context) (Stats, error)
	VerifySignature(rawBody []byte, signatureHeader, secret, timestampHeader string) bool
}

// CreateEndpointParams carries the fields for endpoint registration
// Zero Secret means "generate one"; zero numeric fields take defaults
type CreateEndpointParams struct {
	URL            string
	Events         []EventType
	Secret         string
	MaxAttempts    int
	TimeoutSeconds int
}

// UpdateEndpointParams carries a partial update; nil fields are unchanged
type UpdateEndpointParams struct {
	URL            *string
	Events         []EventType
	Secret         *string
	IsActive       *bool
	MaxAttempts    *int
	TimeoutSeconds *int
}

// TestResult is the synchronous outcome of an endpoint self-test
type TestResult struct {
	Success        bool
	DeliveryID     string
	Status         Status
	ResponseStatus int
	ErrorMessage   string
}

type Service struct {
	Repo   Repository
	Sender *Sender
	Pool   Submitter
	now    func() time.Time
}

// NewService creates a new webhook service with dependency injection
func NewService(repo Repository, sender *Sender, pool Submitter) *Service {
	return &Service{
		Repo:   repo,
		Sender: sender,
		Pool:   pool,
		now:    time.Now,
	}
}

// CreateEndpoint registers a new subscriber endpoint
// If no secret is supplied a cryptographically random one is generated
func (s *Service) CreateEndpoint(ctx context.Context, params CreateEndpointParams) (Endpoint, error) {
	if params.Secret == "" {
		secret, err := signature.GenerateSecret()
		if err != nil {
			return Endpoint{}, fmt.Errorf("generating secret: %w", err)
		}
		params.Secret = secret
	}
	if params.MaxAttempts == 0 {
		params.MaxAttempts = DefaultMaxAttempts
	}
	if params.TimeoutSeconds == 0 {
		params.TimeoutSeconds = DefaultTimeoutSeconds
	}

	now := s.now()
	endpoint := Endpoint{
		ID:             uuid.New().String(),
		URL:            params.URL,
		Secret:         params.Secret,
		Events:         params.Events,
		IsActive:       true,
		MaxAttempts:    params.MaxAttempts,
		TimeoutSeconds: params.TimeoutSeconds,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := endpoint.Validate(); err != nil {
		return Endpoint{}, err
	}

	if err := s.Repo.StoreEndpoint(ctx, endpoint); err != nil {
		return Endpoint{}, fmt.Errorf("storing endpoint: %w", err)
	}
	return endpoint, nil
}

// UpdateEndpoint applies a partial update to an endpoint
func (s *Service) UpdateEndpoint(ctx context.Context, id string, params UpdateEndpointParams) (Endpoint, error) {
	endpoint, err := s.Repo.GetEndpoint(ctx, id)
	if err != nil {
		return Endpoint{}, err
	}

	if params.URL != nil {
		endpoint.URL = *params.URL
	}
	if params.Events != nil {
		endpoint.Events = params.Events
	}
	if params.Secret != nil {
		endpoint.Secret = *params.Secret
	}
	if params.IsActive != nil {
		endpoint.IsActive = *params.IsActive
	}
	if params.MaxAttempts != nil {
		endpoint.MaxAttempts = *params.MaxAttempts
	}
	if params.TimeoutSeconds != nil {
		endpoint.TimeoutSeconds = *params.TimeoutSeconds
	}
	endpoint.UpdatedAt = s.now()

	if err := endpoint.Validate(); err != nil {
		return Endpoint{}, err
	}
	if err := s.Repo.StoreEndpoint(ctx, endpoint); err != nil {
		return Endpoint{}, fmt.Errorf("updating endpoint: %w", err)
	}
	return endpoint, nil
}

// DeleteEndpoint removes an endpoint
// Existing delivery records keep their endpoint ID as a historical reference
func (s *Service) DeleteEndpoint(ctx context.Context, id string) error {
	if err := s.Repo.DeleteEndpoint(ctx, id); err != nil {
		return err
	}
	return nil
}

// GetEndpoint retrieves an endpoint by ID
func (s *Service) GetEndpoint(ctx context.Context, id string) (Endpoint, error) {
	return s.Repo.GetEndpoint(ctx, id)
}

// ListEndpoints returns all registered endpoints
func (s *Service) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	return s.Repo.ListEndpoints(ctx)
}

// Subscribers returns the active endpoints subscribed to an event type
func (s *Service) Subscribers(ctx context.Context, eventType EventType) ([]Endpoint, error) {
	if err := eventType.Validate(); err != nil {
		return nil, fmt.Errorf("validating event type: %w", err)
	}
	endpoints, err := s.Repo.ListEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing endpoints: %w", err)
	}
	subscribers := make([]Endpoint, 0)
	for _, e := range endpoints {
		if e.IsActive && e.SubscribedTo(eventType) {
			subscribers = append(subscribers, e)
		}
	}
	return subscribers, nil
}

/* Trigger creates one Pending delivery per resolved endpoint and hands
 * each to the worker pool for its first attempt
 * Submission is fire-and-continue: the created records are returned
 * without waiting for attempts; outcomes are observed via the store
 * A broadcast with zero subscribers returns an empty list, not an error
 */
func (s *Service) Trigger(ctx context.Context, eventType EventType, payload json.RawMessage, endpointID string) ([]Delivery, error) {
	if err := eventType.Validate(); err != nil {
		return nil, fmt.Errorf("validating event type: %w", err)
	}
	if !json.Valid(payload) {
		return nil, &ValidationError{Field: "payload", Reason: "payload must be valid JSON"}
	}

	var targets []Endpoint
	if endpointID != "" {
		endpoint, err := s.Repo.GetEndpoint(ctx, endpointID)
		if err != nil {
			return nil, err
		}
		if !endpoint.IsActive {
			return nil, &ValidationError{Field: "endpoint_id", Reason: "endpoint is not active"}
		}
		targets = []Endpoint{endpoint}
	} else {
		subscribers, err := s.Subscribers(ctx, eventType)
		if err != nil {
			return nil, err
		}
		targets = subscribers
	}

	deliveries := make([]Delivery, 0, len(targets))
	for _, endpoint := range targets {
		delivery, err := s.createDelivery(ctx, endpoint, eventType, payload)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, delivery)
		s.Pool.Submit(delivery)
	}
	return deliveries, nil
}

// TestEndpoint routes a synthetic delivery through the normal attempt
// path and returns the outcome synchronously
func (s *Service) TestEndpoint(ctx context.Context, id string) (TestResult, error) {
	endpoint, err := s.Repo.GetEndpoint(ctx, id)
	if err != nil {
		return TestResult{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"event":     "test",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"data":      map[string]string{"message": "This is a test webhook"},
	})
	if err != nil {
		return TestResult{}, fmt.Errorf("building test payload: %w", err)
	}

	delivery, err := s.createDelivery(ctx, endpoint, ItemCreated, payload)
	if err != nil {
		return TestResult{}, err
	}

	updated, err := s.Sender.Attempt(ctx, delivery)
	if err != nil {
		return TestResult{}, fmt.Errorf("attempting test delivery: %w", err)
	}

	return TestResult{
		Success:        updated.Status == Sent,
		DeliveryID:     updated.ID,
		Status:         updated.Status,
		ResponseStatus: updated.ResponseStatus,
		ErrorMessage:   updated.ErrorMessage,
	}, nil
}

// GetDelivery retrieves a delivery record by ID
func (s *Service) GetDelivery(ctx context.Context, id string) (Delivery, error) {
	return s.Repo.GetDelivery(ctx, id)
}

// ListDeliveries returns delivery records most-recent-first
func (s *Service) ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]Delivery, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	return s.Repo.ListDeliveries(ctx, filter)
}

// Stats returns aggregate delivery and endpoint counts
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.Repo.Stats(ctx)
}

// VerifySignature validates an inbound signature over the exact raw
// bytes received; it returns false on any malformed input
func (s *Service) VerifySignature(rawBody []byte, signatureHeader, secret, timestampHeader string) bool {
	return signature.Verify(rawBody, signatureHeader, secret, timestampHeader)
}

func (s *Service) createDelivery(ctx context.Context, endpoint Endpoint, eventType EventType, payload json.RawMessage) (Delivery, error) {
	now := s.now()
	delivery := Delivery{
		ID:          uuid.New().String(),
		EndpointID:  endpoint.ID,
		EventType:   eventType,
		Payload:     payload,
		Status:      Pending,
		Attempts:    0,
		MaxAttempts: endpoint.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.SaveDelivery(ctx, delivery); err != nil {
		return Delivery{}, fmt.Errorf("storing delivery: %w", err)
	}
	return delivery, nil
}
