package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truthshield/triage/internal/resilience"
	"github.com/truthshield/triage/internal/types"
)

func newTestPool() *resilience.ConnectionPool {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	return resilience.NewConnectionPool(2, 4, time.Minute, cb)
}

func TestDispatchPendingPostsQueuedEntries(t *testing.T) {
	var mu sync.Mutex
	var received []PublishEntry

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var entry PublishEntry
		require.NoError(t, json.Unmarshal(body, &entry))

		mu.Lock()
		received = append(received, entry)
		mu.Unlock()

		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	queue := NewMemoryPublishQueue()
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, RouteActionAlertHITL, types.ContentItem{ContentID: "c-1", Platform: "telegram"})
	require.NoError(t, err)

	dispatcher := NewPublishDispatcher(queue, newTestPool(), srv.URL, time.Second)
	require.NoError(t, dispatcher.DispatchPending(ctx))

	mu.Lock()
	require.Len(t, received, 1)
	assert.Equal(t, "c-1", received[0].Item.ContentID)
	mu.Unlock()

	entries, err := queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, PublishStatusPosted, entries[0].Status)
	assert.NotNil(t, entries[0].ProcessedAt)
}

func TestDispatchPendingLeavesFailedEntriesQueued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	queue := NewMemoryPublishQueue()
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, RouteActionSemiHITL, types.ContentItem{ContentID: "c-2"})
	require.NoError(t, err)

	dispatcher := NewPublishDispatcher(queue, newTestPool(), srv.URL, time.Second)
	require.NoError(t, dispatcher.DispatchPending(ctx))

	entries, err := queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, PublishStatusQueued, entries[0].Status, "failed delivery stays queued for the next pass")
}

func TestDispatchPendingSkipsProcessedEntries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	queue := NewMemoryPublishQueue()
	ctx := context.Background()

	entry, err := queue.Enqueue(ctx, RouteActionAlertHITL, types.ContentItem{ContentID: "c-3"})
	require.NoError(t, err)

	ok, err := queue.MarkProcessed(ctx, entry.ID, PublishStatusPosted)
	require.NoError(t, err)
	require.True(t, ok)

	dispatcher := NewPublishDispatcher(queue, newTestPool(), srv.URL, time.Second)
	require.NoError(t, dispatcher.DispatchPending(ctx))

	assert.Equal(t, 0, calls, "already processed entries are not redelivered")
}
