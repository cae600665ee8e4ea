package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/truthshield/triage/internal/encoding"
	"github.com/truthshield/triage/internal/resilience"
)

const PublishStatusFailed = "failed"

// PublishDispatcher drains the publish queue and posts pre-verified
// prebunks to the configured client webhook. Delivery goes through a
// pooled HTTP client so a dead webhook trips the circuit breaker
// instead of piling up goroutines.
type PublishDispatcher struct {
	queue    PublishQueue
	pool     *resilience.ConnectionPool
	endpoint string
	interval time.Duration
}

// NewPublishDispatcher creates a dispatcher. A zero interval defaults
// to 30 seconds.
func NewPublishDispatcher(queue PublishQueue, pool *resilience.ConnectionPool, endpoint string, interval time.Duration) *PublishDispatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PublishDispatcher{
		queue:    queue,
		pool:     pool,
		endpoint: endpoint,
		interval: interval,
	}
}

// Run processes the queue until ctx is cancelled.
func (d *PublishDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchPending(ctx); err != nil {
				slog.Warn("Publish dispatch pass failed", "error", err)
			}
		}
	}
}

// DispatchPending posts every queued entry once. Entries whose delivery
// fails stay queued for the next pass.
func (d *PublishDispatcher) DispatchPending(ctx context.Context) error {
	entries, err := d.queue.List(ctx)
	if err != nil {
		return fmt.Errorf("list publish queue: %w", err)
	}

	for _, entry := range entries {
		if entry.Status != PublishStatusQueued {
			continue
		}

		if err := d.deliver(ctx, entry); err != nil {
			slog.Warn("Prebunk delivery failed, will retry",
				"entry_id", entry.ID,
				"content_id", entry.Item.ContentID,
				"error", err,
			)
			continue
		}

		if _, err := d.queue.MarkProcessed(ctx, entry.ID, PublishStatusPosted); err != nil {
			return fmt.Errorf("mark processed %s: %w", entry.ID, err)
		}

		slog.Info("Prebunk delivered",
			"entry_id", entry.ID,
			"content_id", entry.Item.ContentID,
			"action", entry.Action,
		)
	}

	return nil
}

func (d *PublishDispatcher) deliver(ctx context.Context, entry PublishEntry) error {
	payload, err := encoding.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode publish entry: %w", err)
	}

	resp, err := d.pool.DoRequest(ctx, http.MethodPost, d.endpoint,
		map[string]string{"Content-Type": "application/json"},
		bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
