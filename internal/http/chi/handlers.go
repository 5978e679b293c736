package chi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"github.com/marcelsud/webhook-outbox/webhook"
)

// Handlers sets up the webhook API routes
// metricsHandler is optional; when set it is mounted at /metrics
func Handlers(webhookService webhook.UseCase, metricsHandler http.Handler) *chi.Mux {
	logger := httplog.NewLogger("webhook-outbox", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		// Endpoint registry
		r.Method(http.MethodPost, "/endpoints", postEndpoint(webhookService))
		r.Method(http.MethodGet, "/endpoints", getEndpoints(webhookService))
		r.Method(http.MethodGet, "/endpoints/{id}", getEndpoint(webhookService))
		r.Method(http.MethodPut, "/endpoints/{id}", putEndpoint(webhookService))
		r.Method(http.MethodDelete, "/endpoints/{id}", deleteEndpoint(webhookService))
		r.Method(http.MethodPost, "/endpoints/{id}/test", testEndpoint(webhookService))

		// Event dispatch and delivery tracking
		r.Method(http.MethodPost, "/events", postEvent(webhookService))
		r.Method(http.MethodGet, "/deliveries", getDeliveries(webhookService))
		r.Method(http.MethodGet, "/deliveries/{id}", getDelivery(webhookService))
		r.Method(http.MethodGet, "/stats", getStats(webhookService))

		// Inbound signature verification
		r.Method(http.MethodPost, "/verify", postVerify(webhookService))
	})

	return r
}
