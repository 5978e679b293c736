package webhook

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

/* Scheduler owns the two periodic background tasks of the subsystem:
 * the retry sweep, which resubmits due Retrying deliveries, and the
 * retention cleanup, which removes old delivery records
 * Both are cancellable and stop deterministically on shutdown
 */
type Scheduler struct {
	repo      DeliveryHousekeeper
	pool      Submitter
	logger    *slog.Logger
	interval  time.Duration
	cleanup   time.Duration
	retention time.Duration
	now       func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// DeliveryHousekeeper is the slice of the store the scheduler needs
type DeliveryHousekeeper interface {
	DueRetries(ctx context.Context, now time.Time) ([]Delivery, error)
	DeleteDeliveriesOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// SchedulerOptions configures the scheduler intervals
type SchedulerOptions struct {
	// RetryInterval is the sweep tick (default 60s)
	RetryInterval time.Duration
	// CleanupInterval is the retention tick (default 1h)
	CleanupInterval time.Duration
	// Retention is how long delivery records are kept (default 30 days)
	Retention time.Duration
}

// NewScheduler creates a stopped scheduler
func NewScheduler(repo DeliveryHousekeeper, pool Submitter, logger *slog.Logger, opts SchedulerOptions) *Scheduler {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Minute
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Hour
	}
	if opts.Retention <= 0 {
		opts.Retention = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		repo:      repo,
		pool:      pool,
		logger:    logger,
		interval:  opts.RetryInterval,
		cleanup:   opts.CleanupInterval,
		retention: opts.Retention,
		now:       time.Now,
	}
}

// Start launches the retry sweep and cleanup loops
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.retryLoop(ctx)
	go s.cleanupLoop(ctx)
}

// Stop cancels both loops and waits for them to exit
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) retryLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepRetries(ctx)
		}
	}
}

func (s *Scheduler) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanupOldDeliveries(ctx)
		}
	}
}

// SweepRetries resubmits every due Retrying delivery to the pool
func (s *Scheduler) SweepRetries(ctx context.Context) {
	due, err := s.repo.DueRetries(ctx, s.now())
	if err != nil {
		s.logger.Error("sweeping due retries", "error", err)
		return
	}
	for _, d := range due {
		if s.pool.Submit(d) {
			s.logger.Info("resubmitted delivery for retry", "delivery_id", d.ID, "attempts", d.Attempts)
		}
	}
}

// CleanupOldDeliveries removes delivery records past the retention window
func (s *Scheduler) CleanupOldDeliveries(ctx context.Context) {
	cutoff := s.now().Add(-s.retention)
	removed, err := s.repo.DeleteDeliveriesOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("cleaning up old deliveries", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("cleaned up old deliveries", "count", removed)
	}
}
