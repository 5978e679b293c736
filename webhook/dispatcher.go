package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// heartbeatInterval is how often an idle worker re-records its
// heartbeat; it must stay well under the heartbeat key TTL so a
// quiet pool never reads as dead
const heartbeatInterval = 30 * time.Second

// Submitter hands deliveries to the background worker pool
type Submitter interface {
	/* Submit queues a delivery for an attempt
	 * Returns false if the same delivery already has an attempt queued
	 * or in flight, so a record never has two concurrent writers
	 */
	Submit(d Delivery) bool
}

// HeartbeatRecorder reports worker liveness to the monitoring layer
type HeartbeatRecorder interface {
	SetWorkerHeartbeat(ctx context.Context, workerID, status string) error
}

/* Dispatcher fans deliveries out to a bounded pool of workers so a
 * single broadcast event cannot open unbounded outbound connections
 * One delivery's failure or timeout never blocks another's attempt
 */
type Dispatcher struct {
	sender    *Sender
	heartbeat HeartbeatRecorder // optional

	jobs           chan Delivery
	workers        int
	heartbeatEvery time.Duration
	wg             sync.WaitGroup
	mu             sync.Mutex
	inFlight       map[string]struct{}
	started        bool
}

// NewDispatcher creates a dispatcher with the given pool and queue sizes
func NewDispatcher(sender *Sender, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers * 16
	}
	return &Dispatcher{
		sender:         sender,
		jobs:           make(chan Delivery, queueSize),
		workers:        workers,
		heartbeatEvery: heartbeatInterval,
		inFlight:       make(map[string]struct{}),
	}
}

// SetHeartbeat wires an optional worker-liveness recorder
func (dp *Dispatcher) SetHeartbeat(hb HeartbeatRecorder) {
	dp.heartbeat = hb
}

// Start launches the worker pool; workers run until Stop is called
func (dp *Dispatcher) Start(ctx context.Context) {
	dp.mu.Lock()
	if dp.started {
		dp.mu.Unlock()
		return
	}
	dp.started = true
	dp.mu.Unlock()

	for i := 0; i < dp.workers; i++ {
		dp.wg.Add(1)
		workerID := fmt.Sprintf("worker-%s", uuid.New().String()[:8])
		go dp.work(ctx, workerID)
	}
}

// Submit queues a delivery unless one is already queued or in flight
func (dp *Dispatcher) Submit(d Delivery) bool {
	dp.mu.Lock()
	if _, exists := dp.inFlight[d.ID]; exists {
		dp.mu.Unlock()
		return false
	}
	dp.inFlight[d.ID] = struct{}{}
	dp.mu.Unlock()

	dp.jobs <- d
	return true
}

// Stop closes the queue and waits for in-flight attempts to finish
func (dp *Dispatcher) Stop() {
	close(dp.jobs)
	dp.wg.Wait()
}

func (dp *Dispatcher) work(ctx context.Context, workerID string) {
	defer dp.wg.Done()

	ticker := time.NewTicker(dp.heartbeatEvery)
	defer ticker.Stop()

	dp.recordHeartbeat(ctx, workerID, "idle")
	for {
		select {
		case d, ok := <-dp.jobs:
			if !ok {
				return
			}
			dp.recordHeartbeat(ctx, workerID, "processing")

			// Attempt handles its own failures; only store errors surface,
			// and those leave the record for the next retry sweep
			_, _ = dp.sender.Attempt(ctx, d)

			dp.mu.Lock()
			delete(dp.inFlight, d.ID)
			dp.mu.Unlock()

			dp.recordHeartbeat(ctx, workerID, "idle")
		case <-ticker.C:
			// Re-record while idle so the heartbeat key TTL never
			// lapses between jobs
			dp.recordHeartbeat(ctx, workerID, "idle")
		}
	}
}

func (dp *Dispatcher) recordHeartbeat(ctx context.Context, workerID, status string) {
	if dp.heartbeat == nil {
		return
	}
	_ = dp.heartbeat.SetWorkerHeartbeat(ctx, workerID, status)
}
