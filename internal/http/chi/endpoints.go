package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marcelsud/webhook-outbox/webhook"
)

/* HTTP layer DTOs for the endpoint registry
 * Separate from domain entities to avoid leaking internal structure
 * The signing secret is never echoed back in views
 */

// endpointRequest represents an endpoint registration
type endpointRequest struct {
	URL        string   `json:"url"`
	Events     []string `json:"events"`
	Secret     string   `json:"secret,omitempty"`
	RetryCount int      `json:"retry_count,omitempty"`
	Timeout    int      `json:"timeout,omitempty"`
}

// endpointUpdateRequest represents a partial endpoint update
type endpointUpdateRequest struct {
	URL        *string  `json:"url"`
	Events     []string `json:"events"`
	Secret     *string  `json:"secret"`
	IsActive   *bool    `json:"is_active"`
	RetryCount *int     `json:"retry_count"`
	Timeout    *int     `json:"timeout"`
}

// endpointResponse represents an endpoint in the API
type endpointResponse struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Events     []string  `json:"events"`
	IsActive   bool      `json:"is_active"`
	RetryCount int       `json:"retry_count"`
	Timeout    int       `json:"timeout"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// testResponse represents the outcome of an endpoint self-test
type testResponse struct {
	Success        bool   `json:"success"`
	DeliveryID     string `json:"delivery_id"`
	Status         string `json:"status"`
	ResponseStatus int    `json:"response_status,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

func newEndpointResponse(e webhook.Endpoint) endpointResponse {
	events := make([]string, len(e.Events))
	for i, et := range e.Events {
		events[i] = et.String()
	}
	return endpointResponse{
		ID:         e.ID,
		URL:        e.URL,
		Events:     events,
		IsActive:   e.IsActive,
		RetryCount: e.MaxAttempts,
		Timeout:    e.TimeoutSeconds,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// postEndpoint handles POST /v1/endpoints
func postEndpoint(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req endpointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		events, err := webhook.ParseEventTypes(req.Events)
		if err != nil {
			respondError(w, err)
			return
		}

		endpoint, err := webhookService.CreateEndpoint(r.Context(), webhook.CreateEndpointParams{
			URL:            req.URL,
			Events:         events,
			Secret:         req.Secret,
			MaxAttempts:    req.RetryCount,
			TimeoutSeconds: req.Timeout,
		})
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, newEndpointResponse(endpoint))
	})
}

// getEndpoints handles GET /v1/endpoints
func getEndpoints(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoints, err := webhookService.ListEndpoints(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}

		responses := make([]endpointResponse, 0, len(endpoints))
		for _, e := range endpoints {
			responses = append(responses, newEndpointResponse(e))
		}
		respondJSON(w, http.StatusOK, responses)
	})
}

// getEndpoint handles GET /v1/endpoints/{id}
func getEndpoint(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint, err := webhookService.GetEndpoint(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, newEndpointResponse(endpoint))
	})
}

// putEndpoint handles PUT /v1/endpoints/{id}
func putEndpoint(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req endpointUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		params := webhook.UpdateEndpointParams{
			URL:            req.URL,
			Secret:         req.Secret,
			IsActive:       req.IsActive,
			MaxAttempts:    req.RetryCount,
			TimeoutSeconds: req.Timeout,
		}
		if req.Events != nil {
			events, err := webhook.ParseEventTypes(req.Events)
			if err != nil {
				respondError(w, err)
				return
			}
			params.Events = events
		}

		endpoint, err := webhookService.UpdateEndpoint(r.Context(), chi.URLParam(r, "id"), params)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, newEndpointResponse(endpoint))
	})
}

// deleteEndpoint handles DELETE /v1/endpoints/{id}
func deleteEndpoint(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := webhookService.DeleteEndpoint(r.Context(), chi.URLParam(r, "id")); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// testEndpoint handles POST /v1/endpoints/{id}/test
func testEndpoint(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := webhookService.TestEndpoint(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, testResponse{
			Success:        result.Success,
			DeliveryID:     result.DeliveryID,
			Status:         result.Status.String(),
			ResponseStatus: result.ResponseStatus,
			ErrorMessage:   result.ErrorMessage,
		})
	})
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// respondError maps domain errors to HTTP status codes
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, webhook.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case webhook.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
