package chi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marcelsud/webhook-outbox/webhook"
)

// triggerRequest represents an event dispatch request
type triggerRequest struct {
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	EndpointID string          `json:"endpoint_id,omitempty"`
}

// deliverySummary is the per-delivery slice of a trigger response
type deliverySummary struct {
	ID         string `json:"id"`
	EndpointID string `json:"endpoint_id"`
	Status     string `json:"status"`
}

// triggerResponse represents the API response when triggering an event
type triggerResponse struct {
	DeliveriesCount int               `json:"deliveries_count"`
	Deliveries      []deliverySummary `json:"deliveries"`
}

// deliveryResponse represents a delivery record in the API
type deliveryResponse struct {
	ID             string     `json:"id"`
	EndpointID     string     `json:"endpoint_id"`
	EventType      string     `json:"event_type"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	MaxAttempts    int        `json:"max_attempts"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	ResponseStatus int        `json:"response_status,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// verifyRequest represents an inbound signature verification request
type verifyRequest struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	Secret    string `json:"secret"`
	Timestamp string `json:"timestamp"`
}

func newDeliveryResponse(d webhook.Delivery) deliveryResponse {
	resp := deliveryResponse{
		ID:             d.ID,
		EndpointID:     d.EndpointID,
		EventType:      d.EventType.String(),
		Status:         d.Status.String(),
		Attempts:       d.Attempts,
		MaxAttempts:    d.MaxAttempts,
		ResponseStatus: d.ResponseStatus,
		ErrorMessage:   d.ErrorMessage,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if !d.NextRetryAt.IsZero() {
		t := d.NextRetryAt
		resp.NextRetryAt = &t
	}
	return resp
}

// postEvent handles POST /v1/events
func postEvent(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req triggerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		eventType, err := webhook.ParseEventType(req.EventType)
		if err != nil {
			respondError(w, err)
			return
		}

		deliveries, err := webhookService.Trigger(r.Context(), eventType, req.Payload, req.EndpointID)
		if err != nil {
			respondError(w, err)
			return
		}

		summaries := make([]deliverySummary, 0, len(deliveries))
		for _, d := range deliveries {
			summaries = append(summaries, deliverySummary{
				ID:         d.ID,
				EndpointID: d.EndpointID,
				Status:     d.Status.String(),
			})
		}

		// 202: delivery outcomes are observed later via the delivery queries
		respondJSON(w, http.StatusAccepted, triggerResponse{
			DeliveriesCount: len(summaries),
			Deliveries:      summaries,
		})
	})
}

// getDeliveries handles GET /v1/deliveries
func getDeliveries(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := webhook.DeliveryFilter{
			EndpointID: r.URL.Query().Get("endpoint_id"),
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := webhook.ParseStatus(raw)
			if err != nil {
				respondError(w, err)
				return
			}
			filter.Status = status
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			filter.Limit = limit
		}

		deliveries, err := webhookService.ListDeliveries(r.Context(), filter)
		if err != nil {
			respondError(w, err)
			return
		}

		responses := make([]deliveryResponse, 0, len(deliveries))
		for _, d := range deliveries {
			responses = append(responses, newDeliveryResponse(d))
		}
		respondJSON(w, http.StatusOK, responses)
	})
}

// getDelivery handles GET /v1/deliveries/{id}
func getDelivery(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivery, err := webhookService.GetDelivery(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, newDeliveryResponse(delivery))
	})
}

// getStats handles GET /v1/stats
func getStats(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := webhookService.Stats(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, stats)
	})
}

// postVerify handles POST /v1/verify for endpoints that also receive
// webhooks from this system and must validate inbound signatures
func postVerify(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		valid := webhookService.VerifySignature([]byte(req.Payload), req.Signature, req.Secret, req.Timestamp)
		respondJSON(w, http.StatusOK, map[string]bool{"valid": valid})
	})
}
