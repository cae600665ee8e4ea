package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/truthshield/triage/internal/types"
)

// Publish entry statuses.
const (
	PublishStatusQueued = "queued"
	PublishStatusPosted = "posted"
)

// PublishEntry is one queued auto-publish candidate.
type PublishEntry struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Action      string            `json:"action"`
	CreatedAt   time.Time         `json:"created_at"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
	Item        types.ContentItem `json:"item"`
}

// PublishQueue is the downstream collaborator escalated pre-verified items
// are handed to. The router only enqueues; processing belongs elsewhere.
type PublishQueue interface {
	Enqueue(ctx context.Context, action string, item types.ContentItem) (PublishEntry, error)
	List(ctx context.Context) ([]PublishEntry, error)
	MarkProcessed(ctx context.Context, id, status string) (bool, error)
}

// MemoryPublishQueue is the in-process PublishQueue.
type MemoryPublishQueue struct {
	mu      sync.Mutex
	entries []PublishEntry
}

// NewMemoryPublishQueue creates an empty queue.
func NewMemoryPublishQueue() *MemoryPublishQueue {
	return &MemoryPublishQueue{}
}

func (q *MemoryPublishQueue) Enqueue(_ context.Context, action string, item types.ContentItem) (PublishEntry, error) {
	entry := PublishEntry{
		ID:        uuid.NewString(),
		Status:    PublishStatusQueued,
		Action:    action,
		CreatedAt: time.Now().UTC(),
		Item:      item,
	}

	q.mu.Lock()
	q.entries = append(q.entries, entry)
	q.mu.Unlock()
	return entry, nil
}

func (q *MemoryPublishQueue) List(_ context.Context) ([]PublishEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]PublishEntry{}, q.entries...), nil
}

func (q *MemoryPublishQueue) MarkProcessed(_ context.Context, id, status string) (bool, error) {
	if status == "" {
		status = PublishStatusPosted
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].ID == id {
			now := time.Now().UTC()
			q.entries[i].Status = status
			q.entries[i].ProcessedAt = &now
			return true, nil
		}
	}
	return false, nil
}
