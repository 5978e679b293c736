package webhook_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/webhook-outbox/webhook"
	"github.com/marcelsud/webhook-outbox/webhook/memory"
)

type heartbeatSpy struct {
	mu       sync.Mutex
	statuses map[string][]string
}

func (h *heartbeatSpy) SetWorkerHeartbeat(_ context.Context, workerID, status string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.statuses == nil {
		h.statuses = make(map[string][]string)
	}
	h.statuses[workerID] = append(h.statuses[workerID], status)
	return nil
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("success - deliveries are processed by the pool", func(t *testing.T) {
		var hits atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		endpoint := storeEndpoint(t, repo, server.URL, 30)
		sender := webhook.NewSender(repo, nil)

		dispatcher := webhook.NewDispatcher(sender, 4, 16)
		dispatcher.Start(ctx)

		for i := 0; i < 10; i++ {
			d := pendingDelivery(endpoint, `{"id":1}`)
			require.NoError(t, repo.SaveDelivery(ctx, d))
			assert.True(t, dispatcher.Submit(d))
		}
		dispatcher.Stop()

		assert.Equal(t, int64(10), hits.Load())
	})

	t.Run("duplicate submission is rejected while in flight", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		endpoint := storeEndpoint(t, repo, server.URL, 30)
		sender := webhook.NewSender(repo, nil)

		dispatcher := webhook.NewDispatcher(sender, 1, 16)
		dispatcher.Start(ctx)

		d := pendingDelivery(endpoint, `{"id":1}`)
		require.NoError(t, repo.SaveDelivery(ctx, d))

		assert.True(t, dispatcher.Submit(d))
		assert.False(t, dispatcher.Submit(d))

		close(release)
		dispatcher.Stop()

		// Once the attempt finished the record may be submitted again
		assert.True(t, func() bool {
			dp := webhook.NewDispatcher(sender, 1, 16)
			dp.Start(ctx)
			ok := dp.Submit(d)
			dp.Stop()
			return ok
		}())
	})

	t.Run("worker heartbeats are recorded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		endpoint := storeEndpoint(t, repo, server.URL, 30)
		sender := webhook.NewSender(repo, nil)

		spy := &heartbeatSpy{}
		dispatcher := webhook.NewDispatcher(sender, 2, 16)
		dispatcher.SetHeartbeat(spy)
		dispatcher.Start(ctx)

		d := pendingDelivery(endpoint, `{"id":1}`)
		require.NoError(t, repo.SaveDelivery(ctx, d))
		require.True(t, dispatcher.Submit(d))
		dispatcher.Stop()

		spy.mu.Lock()
		defer spy.mu.Unlock()
		assert.Len(t, spy.statuses, 2)
		seen := make([]string, 0)
		for _, transitions := range spy.statuses {
			seen = append(seen, transitions...)
		}
		assert.Contains(t, seen, "idle")
		assert.Contains(t, seen, "processing")
	})
}

func TestScheduler(t *testing.T) {
	ctx := context.Background()

	t.Run("sweep resubmits due retries", func(t *testing.T) {
		repo := memory.NewRepository()
		pool := &fakePool{}
		scheduler := webhook.NewScheduler(repo, pool, nil, webhook.SchedulerOptions{})

		endpoint := storeEndpoint(t, repo, "https://example.com/hooks", 30)

		due := pendingDelivery(endpoint, `{"id":1}`)
		due.Status = webhook.Retrying
		due.Attempts = 1
		due.NextRetryAt = time.Now().Add(-time.Minute)
		require.NoError(t, repo.SaveDelivery(ctx, due))

		notYet := pendingDelivery(endpoint, `{"id":2}`)
		notYet.Status = webhook.Retrying
		notYet.Attempts = 1
		notYet.NextRetryAt = time.Now().Add(time.Hour)
		require.NoError(t, repo.SaveDelivery(ctx, notYet))

		scheduler.SweepRetries(ctx)

		require.Equal(t, 1, pool.count())
		pool.mu.Lock()
		defer pool.mu.Unlock()
		assert.Equal(t, due.ID, pool.submitted[0].ID)
	})

	t.Run("cleanup removes records past retention", func(t *testing.T) {
		repo := memory.NewRepository()
		pool := &fakePool{}
		scheduler := webhook.NewScheduler(repo, pool, nil, webhook.SchedulerOptions{
			Retention: 30 * 24 * time.Hour,
		})

		endpoint := storeEndpoint(t, repo, "https://example.com/hooks", 30)

		old := pendingDelivery(endpoint, `{"id":1}`)
		old.Status = webhook.Sent
		old.CreatedAt = time.Now().Add(-31 * 24 * time.Hour)
		require.NoError(t, repo.SaveDelivery(ctx, old))

		recent := pendingDelivery(endpoint, `{"id":2}`)
		recent.Status = webhook.Sent
		require.NoError(t, repo.SaveDelivery(ctx, recent))

		scheduler.CleanupOldDeliveries(ctx)

		_, err := repo.GetDelivery(ctx, old.ID)
		assert.ErrorIs(t, err, webhook.ErrNotFound)
		_, err = repo.GetDelivery(ctx, recent.ID)
		assert.NoError(t, err)
	})

	t.Run("start and stop terminate cleanly", func(t *testing.T) {
		repo := memory.NewRepository()
		pool := &fakePool{}
		scheduler := webhook.NewScheduler(repo, pool, nil, webhook.SchedulerOptions{
			RetryInterval:   10 * time.Millisecond,
			CleanupInterval: 10 * time.Millisecond,
		})

		scheduler.Start(ctx)
		time.Sleep(50 * time.Millisecond)
		scheduler.Stop()
	})
}
