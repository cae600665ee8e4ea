package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truthshield/triage/internal/evidence"
	"github.com/truthshield/triage/internal/triage"
	"github.com/truthshield/triage/internal/watchlist"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEvidenceStoreRoundTrip(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	store := NewEvidenceStore(repo)
	archiver := evidence.NewArchiver(store)

	ctx := context.Background()
	record, err := archiver.Archive(ctx, map[string]interface{}{"content_id": "vid-1", "views": 100000}, "ALERT_HITL", nil)
	require.NoError(t, err)

	got, ok, err := store.Get(ctx, record.SHA256)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record.Key, got.Key)
	assert.Equal(t, "ALERT_HITL", got.Payload.Decision)

	verified, err := evidence.Verify(got)
	require.NoError(t, err)
	assert.True(t, verified, "record survives the sqlite round trip intact")

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{record.Key}, keys)

	_, ok, err = store.Get(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvidenceStoreDuplicateHashIsNoop(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	store := NewEvidenceStore(repo)

	record := evidence.Record{
		Key:    "2026-03-01T12-00-00Z_abcdef123456",
		SHA256: "abcdef1234567890",
		Payload: evidence.Payload{
			Timestamp:  "2026-03-01T12:00:00Z",
			Decision:   "ARCHIVE",
			Item:       []byte(`{}`),
			Provenance: map[string]interface{}{},
		},
	}

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, record))
	require.NoError(t, store.Put(ctx, record))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestWatchlistStoreDurability(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	store, err := NewWatchlistStore(ctx, repo)
	require.NoError(t, err)

	topics := []string{"elections"}
	roi := 0.7
	entry, err := store.Upsert("Acme", watchlist.Fields{Topics: &topics, ROIThreshold: &roi})
	require.NoError(t, err)
	assert.Equal(t, 0.7, entry.ROIThreshold)

	// A fresh store over the same database sees the persisted entry.
	reloaded, err := NewWatchlistStore(ctx, repo)
	require.NoError(t, err)

	got, ok := reloaded.Get("acme")
	require.True(t, ok)
	assert.Equal(t, []string{"elections"}, got.Topics)
	assert.Equal(t, 0.7, got.ROIThreshold)

	entries, err := reloaded.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHarmWeightDurability(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.UpsertHarmWeight(ctx, "crypto", 2.2))
	require.NoError(t, repo.UpsertHarmWeight(ctx, "elections", 3.5))

	table := triage.NewHarmWeightTable()
	require.NoError(t, LoadHarmWeights(ctx, repo, table))

	assert.Equal(t, 2.2, table.Get("crypto", nil))
	assert.Equal(t, 3.5, table.Get("elections", nil), "stored weights win over defaults")
	assert.Equal(t, 2.0, table.Get("health", nil), "untouched defaults survive")
}

func TestAdminAuditLog(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)

	err := repo.LogAdminMutation(context.Background(), "watchlist:acme", "upsert", "10.0.0.1")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM admin_audit_logs`).Scan(&count))
	assert.Equal(t, 1, count)
}
