package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/marcelsud/webhook-outbox/webhook/signature"
)

const (
	userAgent = "webhook-outbox/1.0"

	// maxResponseBody caps how much of the subscriber response is recorded
	maxResponseBody = 1024
)

/* Sender performs one HTTP delivery attempt for a delivery record
 * Transport failures are recovered locally by the retry policy and
 * recorded on the record; they are never raised to the dispatch caller
 * The only errors returned are persistence failures
 */
type Sender struct {
	repo   Repository
	client *http.Client
	now    func() time.Time
}

// NewSender creates a sender backed by the given store
// The http.Client carries no global timeout: each attempt is bounded
// by the endpoint's own configured timeout instead
func NewSender(repo Repository, client *http.Client) *Sender {
	if client == nil {
		client = &http.Client{}
	}
	return &Sender{
		repo:   repo,
		client: client,
		now:    time.Now,
	}
}

// Attempt executes one delivery attempt and persists the updated record
func (s *Sender) Attempt(ctx context.Context, d Delivery) (Delivery, error) {
	endpoint, err := s.repo.GetEndpoint(ctx, d.EndpointID)
	if errors.Is(err, ErrNotFound) {
		// Terminal: the endpoint was deleted, no further retry
		d.Status = Failed
		d.ErrorMessage = "endpoint not found"
		d.NextRetryAt = time.Time{}
		return s.save(ctx, d)
	}
	if err != nil {
		return d, fmt.Errorf("looking up endpoint: %w", err)
	}

	d.Attempts++

	now := s.now()
	timestamp := strconv.FormatInt(now.Unix(), 10)

	body, err := signature.Canonicalize(d.Payload)
	if err != nil {
		d.Status = Failed
		d.ErrorMessage = fmt.Sprintf("serializing payload: %v", err)
		d.NextRetryAt = time.Time{}
		return s.save(ctx, d)
	}
	sigHeader, err := signature.Header(d.Payload, endpoint.Secret, timestamp)
	if err != nil {
		d.Status = Failed
		d.ErrorMessage = fmt.Sprintf("signing payload: %v", err)
		d.NextRetryAt = time.Time{}
		return s.save(ctx, d)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, endpoint.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return s.save(ctx, s.recordFailure(d, now, fmt.Sprintf("building request: %v", err)))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Event", d.EventType.String())
	req.Header.Set("X-Webhook-Delivery", d.ID)
	req.Header.Set("X-Webhook-Timestamp", timestamp)
	req.Header.Set("X-Webhook-Signature", sigHeader)

	resp, err := s.client.Do(req)
	if err != nil {
		// Timeout, connection refused, DNS failure
		return s.save(ctx, s.recordFailure(d, now, err.Error()))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	d.ResponseStatus = resp.StatusCode
	d.ResponseBody = string(respBody)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.Status = Sent
		d.ErrorMessage = ""
		d.NextRetryAt = time.Time{}
		return s.save(ctx, d)
	}

	return s.save(ctx, s.recordFailure(d, now, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, d.ResponseBody)))
}

/* recordFailure applies the retry policy after a failed attempt:
 * Retrying with exponential backoff while the attempt budget lasts,
 * terminal Failed once it is exhausted
 */
func (s *Sender) recordFailure(d Delivery, now time.Time, errMsg string) Delivery {
	d.ErrorMessage = errMsg
	if d.Attempts < d.MaxAttempts {
		d.Status = Retrying
		d.NextRetryAt = now.Add(backoffDelay(d.Attempts))
	} else {
		d.Status = Failed
		d.NextRetryAt = time.Time{}
	}
	return d
}

func (s *Sender) save(ctx context.Context, d Delivery) (Delivery, error) {
	d.UpdatedAt = s.now()
	if err := s.repo.SaveDelivery(ctx, d); err != nil {
		return d, fmt.Errorf("saving delivery: %w", err)
	}
	return d, nil
}

// backoffDelay returns the wait before the next attempt: 1, 2, 4, 8, ...
// minutes after the 1st, 2nd, 3rd, 4th failed attempt
func backoffDelay(attempts int) time.Duration {
	return time.Duration(1<<(attempts-1)) * time.Minute
}
