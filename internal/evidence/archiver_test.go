package evidence

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestArchiveAndVerify(t *testing.T) {
	store := NewMemoryStore()
	archiver := NewArchiver(store)

	item := map[string]interface{}{
		"platform":   "tiktok",
		"content_id": "abc123",
		"views":      100000,
	}

	record, err := archiver.Archive(context.Background(), item, "ALERT_HITL", map[string]interface{}{"source": "router"})
	require.NoError(t, err)

	assert.Len(t, record.SHA256, 64)
	assert.True(t, strings.HasSuffix(record.Key, "_"+record.SHA256[:12]))
	assert.Equal(t, "ALERT_HITL", record.Payload.Decision)

	ok, err := Verify(record)
	require.NoError(t, err)
	assert.True(t, ok, "stored payload must re-hash to the stored hash")

	// Tampering with the payload must fail verification.
	record.Payload.Decision = "SEMI_HITL"
	ok, err = Verify(record)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArchiveDeterministicHash(t *testing.T) {
	now := fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	item := map[string]interface{}{"b": 2, "a": 1}

	first, err := NewArchiverWithClock(NewMemoryStore(), now).Archive(context.Background(), item, "ARCHIVE", nil)
	require.NoError(t, err)
	second, err := NewArchiverWithClock(NewMemoryStore(), now).Archive(context.Background(), item, "ARCHIVE", nil)
	require.NoError(t, err)

	assert.Equal(t, first.SHA256, second.SHA256, "same payload and clock must hash identically")
	assert.Equal(t, first.Key, second.Key)
}

func TestArchiveTimestampsDifferentiateRecords(t *testing.T) {
	store := NewMemoryStore()
	item := map[string]interface{}{"content_id": "x"}

	first, err := NewArchiverWithClock(store, fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))).
		Archive(context.Background(), item, "ARCHIVE", nil)
	require.NoError(t, err)
	second, err := NewArchiverWithClock(store, fixedClock(time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC))).
		Archive(context.Background(), item, "ARCHIVE", nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.SHA256, second.SHA256, "timestamp is part of the hashed payload")
}

func TestArchiverGet(t *testing.T) {
	archiver := NewArchiver(NewMemoryStore())

	record, err := archiver.Archive(context.Background(), map[string]interface{}{"id": 1}, "SEMI_HITL", nil)
	require.NoError(t, err)

	got, ok, err := archiver.Get(context.Background(), record.SHA256)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record.Key, got.Key)

	_, ok, err = archiver.Get(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	archiver := NewArchiver(store)
	record, err := archiver.Archive(context.Background(), map[string]interface{}{"views": 5000}, "ALERT_HITL", nil)
	require.NoError(t, err)

	got, ok, err := store.Get(context.Background(), record.SHA256)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record.SHA256, got.SHA256)

	verified, err := Verify(got)
	require.NoError(t, err)
	assert.True(t, verified)

	// A fresh store over the same directory picks the record up again.
	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	_, ok, err = reopened.Get(context.Background(), record.SHA256)
	require.NoError(t, err)
	assert.True(t, ok)
}

type failingStore struct{}

func (failingStore) Put(context.Context, Record) error { return errors.New("disk full") }
func (failingStore) Get(context.Context, string) (Record, bool, error) {
	return Record{}, false, nil
}
func (failingStore) Keys(context.Context) ([]string, error) { return nil, nil }

func TestArchiveSurfacesStorageFailure(t *testing.T) {
	archiver := NewArchiver(failingStore{})

	_, err := archiver.Archive(context.Background(), map[string]interface{}{}, "ALERT_HITL", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evidence write failed")
}

func TestWriterDrainsOnClose(t *testing.T) {
	store := NewMemoryStore()
	writer := NewWriter(NewArchiver(store), WriterConfig{Workers: 2, QueueSize: 16})

	for i := 0; i < 10; i++ {
		err := writer.Enqueue(map[string]interface{}{"i": i}, "ARCHIVE", nil)
		require.NoError(t, err)
	}
	writer.Close()

	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	assert.Len(t, keys, 10)

	assert.Equal(t, ErrWriterClosed, writer.Enqueue(nil, "ARCHIVE", nil))
}

type slowStore struct {
	release chan struct{}
	inner   Store
}

func (s *slowStore) Put(ctx context.Context, record Record) error {
	<-s.release
	return s.inner.Put(ctx, record)
}
func (s *slowStore) Get(ctx context.Context, hash string) (Record, bool, error) {
	return s.inner.Get(ctx, hash)
}
func (s *slowStore) Keys(ctx context.Context) ([]string, error) { return s.inner.Keys(ctx) }

func TestWriterBackpressure(t *testing.T) {
	slow := &slowStore{release: make(chan struct{}), inner: NewMemoryStore()}
	writer := NewWriter(NewArchiver(slow), WriterConfig{Workers: 1, QueueSize: 1})

	// First job occupies the worker, second fills the queue. Worker pickup
	// is asynchronous, so allow one extra slot before expecting rejection.
	require.NoError(t, writer.Enqueue(map[string]interface{}{"i": 0}, "ARCHIVE", nil))
	var sawFull bool
	for i := 0; i < 3; i++ {
		if err := writer.Enqueue(map[string]interface{}{"i": i + 1}, "ARCHIVE", nil); errors.Is(err, ErrQueueFull) {
			sawFull = true
			break
		}
	}
	assert.True(t, sawFull, "a bounded queue must reject once saturated")

	close(slow.release)
	writer.Close()
}

func TestWriterSurfacesFailures(t *testing.T) {
	var mu sync.Mutex
	var seen []error

	writer := NewWriter(NewArchiver(failingStore{}), WriterConfig{
		Workers:   1,
		QueueSize: 4,
		OnFailure: func(err error) {
			mu.Lock()
			seen = append(seen, err)
			mu.Unlock()
		},
	})

	require.NoError(t, writer.Enqueue(map[string]interface{}{}, "ALERT_HITL", nil))
	writer.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, uint64(1), writer.Stats()["failures"])
}
