package webhook_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/webhook-outbox/webhook"
	"github.com/marcelsud/webhook-outbox/webhook/memory"
	"github.com/marcelsud/webhook-outbox/webhook/signature"
)

type capturedRequest struct {
	headers http.Header
	body    []byte
}

// wrappingRepo wraps the not-found sentinel the way the Redis store
// wraps its other errors
type wrappingRepo struct {
	*memory.Repository
}

func (r *wrappingRepo) GetEndpoint(ctx context.Context, id string) (webhook.Endpoint, error) {
	e, err := r.Repository.GetEndpoint(ctx, id)
	if err != nil {
		return webhook.Endpoint{}, fmt.Errorf("getting endpoint: %w", err)
	}
	return e, nil
}

func storeEndpoint(t *testing.T, repo *memory.Repository, url string, timeoutSeconds int) webhook.Endpoint {
	t.Helper()
	now := time.Now()
	endpoint := webhook.Endpoint{
		ID:             uuid.New().String(),
		URL:            url,
		Secret:         "attempt-secret",
		Events:         []webhook.EventType{webhook.ItemCreated},
		IsActive:       true,
		MaxAttempts:    3,
		TimeoutSeconds: timeoutSeconds,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, repo.StoreEndpoint(context.Background(), endpoint))
	return endpoint
}

func pendingDelivery(endpoint webhook.Endpoint, payload string) webhook.Delivery {
	now := time.Now()
	return webhook.Delivery{
		ID:          uuid.New().String(),
		EndpointID:  endpoint.ID,
		EventType:   webhook.ItemCreated,
		Payload:     json.RawMessage(payload),
		Status:      webhook.Pending,
		Attempts:    0,
		MaxAttempts: endpoint.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("success - 2xx marks the record sent", func(t *testing.T) {
		captured := make(chan capturedRequest, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			captured <- capturedRequest{headers: r.Header.Clone(), body: body}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"received":true}`))
		}))
		defer server.Close()

		repo := memory.NewRepository()
		endpoint := storeEndpoint(t, repo, server.URL, 30)
		sender := webhook.NewSender(repo, nil)

		updated, err := sender.Attempt(ctx, pendingDelivery(endpoint, `{"id": 42, "title": "first"}`))
		require.NoError(t, err)
		assert.Equal(t, webhook.Sent, updated.Status)
		assert.Equal(t, 1, updated.Attempts)
		assert.Equal(t, http.StatusOK, updated.ResponseStatus)
		assert.Equal(t, `{"received":true}`, updated.ResponseBody)
		assert.Empty(t, updated.ErrorMessage)
		assert.True(t, updated.NextRetryAt.IsZero())

		req := <-captured
		assert.Equal(t, "application/json", req.headers.Get("Content-Type"))
		assert.Equal(t, "webhook-outbox/1.0", req.headers.Get("User-Agent"))
		assert.Equal(t, "item.created", req.headers.Get("X-Webhook-Event"))
		assert.Equal(t, updated.ID, req.headers.Get("X-Webhook-Delivery"))
		assert.NotEmpty(t, req.headers.Get("X-Webhook-Timestamp"))

		// The signature verifies over the raw bytes the subscriber received
		valid := signature.Verify(req.body,
			req.headers.Get("X-Webhook-Signature"),
			endpoint.Secret,
			req.headers.Get("X-Webhook-Timestamp"))
		assert.True(t, valid)

		// The record in the store matches the returned one
		stored, err := repo.GetDelivery(ctx, updated.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Sent, stored.Status)
	})

	t.Run("retry - 5xx schedules a retry with backoff", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		endpoint := storeEndpoint(t, repo, server.URL, 30)
		sender := webhook.NewSender(repo, nil)

		updated, err := sender.Attempt(ctx, pendingDelivery(endpoint, `{"id":1}`))
		require.NoError(t, err)
		assert.Equal(t, webhook.Retrying, updated.Status)
		assert.Equal(t, 1, updated.Attempts)
		assert.Equal(t, http.StatusInternalServerError, updated.ResponseStatus)
		assert.Contains(t, updated.ErrorMessage, "HTTP 500")
		assert.WithinDuration(t, time.Now().Add(time.Minute), updated.NextRetryAt, 5*time.Second)
	})

	t.Run("retry - backoff doubles with each failed attempt", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		endpoint := storeEndpoint(t, repo, server.URL, 30)
		sender := webhook.NewSender(repo, nil)

		d := pendingDelivery(endpoint, `{"id":1}`)
		d.MaxAttempts = 5

		d, err := sender.Attempt(ctx, d)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(1*time.Minute), d.NextRetryAt, 5*time.Second)

		d, err = sender.Attempt(ctx, d)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(2*time.Minute), d.NextRetryAt, 5*time.Second)

		d, err = sender.Attempt(ctx, d)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(4*time.Minute), d.NextRetryAt, 5*time.Second)
	})

	t.Run("failure - attempt budget exhausted is terminal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		endpoint := storeEndpoint(t, repo, server.URL, 30)
		sender := webhook.NewSender(repo, nil)

		d := pendingDelivery(endpoint, `{"id":1}`)
		d.Attempts = 2 // this attempt is the 3rd of 3

		updated, err := sender.Attempt(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, webhook.Failed, updated.Status)
		assert.Equal(t, 3, updated.Attempts)
		assert.True(t, updated.NextRetryAt.IsZero())
	})

	t.Run("failure - connection error counts as an attempt", func(t *testing.T) {
		repo := memory.NewRepository()
		// Reserved TEST-NET-1 address, nothing listens there
		endpoint := storeEndpoint(t, repo, "http://192.0.2.1:9/hooks", 1)
		sender := webhook.NewSender(repo, nil)

		updated, err := sender.Attempt(ctx, pendingDelivery(endpoint, `{"id":1}`))
		require.NoError(t, err)
		assert.Equal(t, webhook.Retrying, updated.Status)
		assert.Equal(t, 1, updated.Attempts)
		assert.NotEmpty(t, updated.ErrorMessage)
		assert.Zero(t, updated.ResponseStatus)
	})

	t.Run("failure - slow subscriber hits the endpoint timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer server.Close()
		defer close(release)

		repo := memory.NewRepository()
		endpoint := storeEndpoint(t, repo, server.URL, 1)
		sender := webhook.NewSender(repo, nil)

		start := time.Now()
		updated, err := sender.Attempt(ctx, pendingDelivery(endpoint, `{"id":1}`))
		require.NoError(t, err)
		assert.Equal(t, webhook.Retrying, updated.Status)
		assert.NotEmpty(t, updated.ErrorMessage)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("failure - deleted endpoint is terminal", func(t *testing.T) {
		repo := memory.NewRepository()
		endpoint := storeEndpoint(t, repo, "https://example.com/hooks", 30)
		d := pendingDelivery(endpoint, `{"id":1}`)
		require.NoError(t, repo.DeleteEndpoint(ctx, endpoint.ID))

		sender := webhook.NewSender(repo, nil)
		updated, err := sender.Attempt(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, webhook.Failed, updated.Status)
		assert.Equal(t, "endpoint not found", updated.ErrorMessage)
		// No HTTP attempt was made
		assert.Equal(t, 0, updated.Attempts)
	})

	t.Run("failure - wrapped not-found from the store is still terminal", func(t *testing.T) {
		repo := &wrappingRepo{Repository: memory.NewRepository()}
		sender := webhook.NewSender(repo, nil)

		d := pendingDelivery(webhook.Endpoint{ID: "gone", MaxAttempts: 3}, `{"id":1}`)
		updated, err := sender.Attempt(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, webhook.Failed, updated.Status)
		assert.Equal(t, "endpoint not found", updated.ErrorMessage)
	})

	t.Run("failure - oversized response body is truncated", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			for i := 0; i < 100; i++ {
				w.Write([]byte("0123456789012345678901234567890123456789"))
			}
		}))
		defer server.Close()

		repo := memory.NewRepository()
		endpoint := storeEndpoint(t, repo, server.URL, 30)
		sender := webhook.NewSender(repo, nil)

		updated, err := sender.Attempt(ctx, pendingDelivery(endpoint, `{"id":1}`))
		require.NoError(t, err)
		assert.Equal(t, webhook.Sent, updated.Status)
		assert.Len(t, updated.ResponseBody, 1024)
	})
}
