package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcelsud/webhook-outbox/webhook"
)

/* Redis implementation of webhook.Repository
 * Uses Redis Hashes for endpoint/delivery records and sorted sets as
 * secondary indexes: one ordered by creation time for recency listings
 * and one ordered by next-retry time for the retry sweep
 */

const (
	endpointPrefix = "endpoint" // Hash naming: endpoint:{endpoint_id}
	deliveryPrefix = "delivery" // Hash naming: delivery:{delivery_id}

	endpointSetKey     = "endpoints"              // Set of all endpoint IDs
	deliveryByCreated  = "deliveries:by_created"  // ZSet scored by created_at
	deliveryRetryQueue = "deliveries:retry_queue" // ZSet scored by next_retry_at
)

type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Redis repository
func NewRepository(addr, password string, db int) (*Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Repository{
		client: client,
	}, nil
}

// StoreEndpoint creates or replaces an endpoint record
func (r *Repository) StoreEndpoint(ctx context.Context, e webhook.Endpoint) error {
	eventNames := make([]string, len(e.Events))
	for i, et := range e.Events {
		eventNames[i] = et.String()
	}
	eventsJSON, err := json.Marshal(eventNames)
	if err != nil {
		return fmt.Errorf("marshaling events: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, endpointKey(e.ID), map[string]interface{}{
		"id":              e.ID,
		"url":             e.URL,
		"secret":          e.Secret,
		"events":          string(eventsJSON),
		"is_active":       strconv.FormatBool(e.IsActive),
		"max_attempts":    e.MaxAttempts,
		"timeout_seconds": e.TimeoutSeconds,
		"created_at":      e.CreatedAt.UnixNano(),
		"updated_at":      e.UpdatedAt.UnixNano(),
	})
	pipe.SAdd(ctx, endpointSetKey, e.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing endpoint: %w", err)
	}
	return nil
}

// GetEndpoint retrieves an endpoint by ID
func (r *Repository) GetEndpoint(ctx context.Context, id string) (webhook.Endpoint, error) {
	data, err := r.client.HGetAll(ctx, endpointKey(id)).Result()
	if err != nil {
		return webhook.Endpoint{}, fmt.Errorf("getting endpoint: %w", err)
	}
	if len(data) == 0 {
		return webhook.Endpoint{}, webhook.ErrNotFound
	}
	return endpointFromHash(data)
}

// ListEndpoints returns all endpoints ordered by creation time
func (r *Repository) ListEndpoints(ctx context.Context) ([]webhook.Endpoint, error) {
	ids, err := r.client.SMembers(ctx, endpointSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing endpoint IDs: %w", err)
	}
	if len(ids) == 0 {
		return []webhook.Endpoint{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, endpointKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("fetching endpoints: %w", err)
	}

	endpoints := make([]webhook.Endpoint, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		e, err := endpointFromHash(data)
		if err != nil {
			continue
		}
		endpoints = append(endpoints, e)
	}
	sortByCreatedAt(endpoints)
	return endpoints, nil
}

// DeleteEndpoint removes an endpoint
// Delivery records keep their endpoint ID as a historical reference
func (r *Repository) DeleteEndpoint(ctx context.Context, id string) error {
	exists, err := r.client.Exists(ctx, endpointKey(id)).Result()
	if err != nil {
		return fmt.Errorf("checking endpoint: %w", err)
	}
	if exists == 0 {
		return webhook.ErrNotFound
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, endpointKey(id))
	pipe.SRem(ctx, endpointSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting endpoint: %w", err)
	}
	return nil
}

/* SaveDelivery writes the record and both indexes in one MULTI/EXEC so
 * the retry queue never disagrees with the record's status
 */
func (r *Repository) SaveDelivery(ctx context.Context, d webhook.Delivery) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, deliveryKey(d.ID), map[string]interface{}{
		"id":              d.ID,
		"endpoint_id":     d.EndpointID,
		"event_type":      d.EventType.String(),
		"payload":         string(d.Payload),
		"status":          d.Status.String(),
		"attempts":        d.Attempts,
		"max_attempts":    d.MaxAttempts,
		"next_retry_at":   nanosOrZero(d.NextRetryAt),
		"response_status": d.ResponseStatus,
		"response_body":   d.ResponseBody,
		"error_message":   d.ErrorMessage,
		"created_at":      d.CreatedAt.UnixNano(),
		"updated_at":      d.UpdatedAt.UnixNano(),
	})
	pipe.ZAdd(ctx, deliveryByCreated, redis.Z{Score: float64(d.CreatedAt.Unix()), Member: d.ID})
	if d.Status == webhook.Retrying && !d.NextRetryAt.IsZero() {
		pipe.ZAdd(ctx, deliveryRetryQueue, redis.Z{Score: float64(d.NextRetryAt.Unix()), Member: d.ID})
	} else {
		pipe.ZRem(ctx, deliveryRetryQueue, d.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving delivery: %w", err)
	}
	return nil
}

// GetDelivery retrieves a delivery record by ID
func (r *Repository) GetDelivery(ctx context.Context, id string) (webhook.Delivery, error) {
	data, err := r.client.HGetAll(ctx, deliveryKey(id)).Result()
	if err != nil {
		return webhook.Delivery{}, fmt.Errorf("getting delivery: %w", err)
	}
	if len(data) == 0 {
		return webhook.Delivery{}, webhook.ErrNotFound
	}
	return deliveryFromHash(data)
}

// ListDeliveries returns matching records most-recent-first
func (r *Repository) ListDeliveries(ctx context.Context, filter webhook.DeliveryFilter) ([]webhook.Delivery, error) {
	ids, err := r.client.ZRevRange(ctx, deliveryByCreated, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing delivery IDs: %w", err)
	}
	if len(ids) == 0 {
		return []webhook.Delivery{}, nil
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = webhook.DefaultListLimit
	}

	// Without record-level filters the newest IDs are the result set;
	// only fetch what the limit allows instead of the whole history
	if filter.EndpointID == "" && filter.Status == 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, deliveryKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("fetching deliveries: %w", err)
	}

	deliveries := make([]webhook.Delivery, 0, limit)
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		d, err := deliveryFromHash(data)
		if err != nil {
			continue
		}
		if filter.EndpointID != "" && d.EndpointID != filter.EndpointID {
			continue
		}
		if filter.Status != 0 && d.Status != filter.Status {
			continue
		}
		deliveries = append(deliveries, d)
		if len(deliveries) == limit {
			break
		}
	}
	return deliveries, nil
}

// DueRetries returns Retrying deliveries whose next_retry_at has passed
func (r *Repository) DueRetries(ctx context.Context, now time.Time) ([]webhook.Delivery, error) {
	ids, err := r.client.ZRangeByScore(ctx, deliveryRetryQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("querying retry queue: %w", err)
	}

	due := make([]webhook.Delivery, 0, len(ids))
	for _, id := range ids {
		d, err := r.GetDelivery(ctx, id)
		if err != nil {
			// Record expired or removed between index read and fetch
			continue
		}
		if d.Status == webhook.Retrying {
			due = append(due, d)
		}
	}
	return due, nil
}

// DeleteDeliveriesOlderThan removes records created before cutoff
func (r *Repository) DeleteDeliveriesOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := r.client.ZRangeByScore(ctx, deliveryByCreated, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("querying old deliveries: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, deliveryKey(id))
		pipe.ZRem(ctx, deliveryByCreated, id)
		pipe.ZRem(ctx, deliveryRetryQueue, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("deleting old deliveries: %w", err)
	}
	return len(ids), nil
}

// Stats aggregates delivery and endpoint counts
func (r *Repository) Stats(ctx context.Context) (webhook.Stats, error) {
	stats := webhook.Stats{
		StatusCounts:   make(map[string]int64),
		EventCounts:    make(map[string]int64),
		EndpointCounts: make(map[string]int64),
	}

	ids, err := r.client.ZRange(ctx, deliveryByCreated, 0, -1).Result()
	if err != nil {
		return webhook.Stats{}, fmt.Errorf("listing delivery IDs: %w", err)
	}

	if len(ids) > 0 {
		// Use pipeline for efficient batch operations
		pipe := r.client.Pipeline()
		cmds := make([]*redis.SliceCmd, len(ids))
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, deliveryKey(id), "status", "event_type", "endpoint_id")
		}
		if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
			return webhook.Stats{}, fmt.Errorf("executing pipeline: %w", err)
		}

		for _, cmd := range cmds {
			fields, err := cmd.Result()
			if err != nil || len(fields) < 3 {
				continue
			}
			status, ok1 := fields[0].(string)
			eventType, ok2 := fields[1].(string)
			endpointID, ok3 := fields[2].(string)
			if !ok1 || !ok2 || !ok3 {
				continue
			}
			stats.TotalDeliveries++
			stats.StatusCounts[status]++
			stats.EventCounts[eventType]++
			stats.EndpointCounts[endpointID]++
		}
	}

	endpointIDs, err := r.client.SMembers(ctx, endpointSetKey).Result()
	if err != nil {
		return webhook.Stats{}, fmt.Errorf("listing endpoint IDs: %w", err)
	}
	stats.TotalEndpoints = int64(len(endpointIDs))
	for _, id := range endpointIDs {
		active, err := r.client.HGet(ctx, endpointKey(id), "is_active").Result()
		if err == nil && active == "true" {
			stats.ActiveEndpoints++
		}
	}

	return stats, nil
}

// Close closes the Redis connection
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

// GetClient returns the underlying Redis client for advanced operations
func (r *Repository) GetClient() *redis.Client {
	return r.client
}

// Helper functions

func endpointKey(id string) string {
	return fmt.Sprintf("%s:%s", endpointPrefix, id)
}

func deliveryKey(id string) string {
	return fmt.Sprintf("%s:%s", deliveryPrefix, id)
}

func nanosOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func timeFromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func endpointFromHash(data map[string]string) (webhook.Endpoint, error) {
	var eventNames []string
	if raw, ok := data["events"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &eventNames); err != nil {
			return webhook.Endpoint{}, fmt.Errorf("unmarshaling events: %w", err)
		}
	}
	events, err := webhook.ParseEventTypes(eventNames)
	if err != nil {
		return webhook.Endpoint{}, fmt.Errorf("parsing events: %w", err)
	}

	return webhook.Endpoint{
		ID:             data["id"],
		URL:            data["url"],
		Secret:         data["secret"],
		Events:         events,
		IsActive:       data["is_active"] == "true",
		MaxAttempts:    int(parseInt64(data["max_attempts"])),
		TimeoutSeconds: int(parseInt64(data["timeout_seconds"])),
		CreatedAt:      timeFromNanos(parseInt64(data["created_at"])),
		UpdatedAt:      timeFromNanos(parseInt64(data["updated_at"])),
	}, nil
}

func deliveryFromHash(data map[string]string) (webhook.Delivery, error) {
	eventType, err := webhook.ParseEventType(data["event_type"])
	if err != nil {
		return webhook.Delivery{}, fmt.Errorf("parsing event type: %w", err)
	}
	status, err := webhook.ParseStatus(data["status"])
	if err != nil {
		return webhook.Delivery{}, fmt.Errorf("parsing status: %w", err)
	}

	return webhook.Delivery{
		ID:             data["id"],
		EndpointID:     data["endpoint_id"],
		EventType:      eventType,
		Payload:        []byte(data["payload"]),
		Status:         status,
		Attempts:       int(parseInt64(data["attempts"])),
		MaxAttempts:    int(parseInt64(data["max_attempts"])),
		NextRetryAt:    timeFromNanos(parseInt64(data["next_retry_at"])),
		ResponseStatus: int(parseInt64(data["response_status"])),
		ResponseBody:   data["response_body"],
		ErrorMessage:   data["error_message"],
		CreatedAt:      timeFromNanos(parseInt64(data["created_at"])),
		UpdatedAt:      timeFromNanos(parseInt64(data["updated_at"])),
	}, nil
}

func sortByCreatedAt(endpoints []webhook.Endpoint) {
	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].CreatedAt.Before(endpoints[j].CreatedAt)
	})
}
