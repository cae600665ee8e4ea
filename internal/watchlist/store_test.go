package watchlist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truthshield/triage/internal/types"
)

func strSlicePtr(v ...string) *[]string { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestMemoryStoreUpsert(t *testing.T) {
	store := NewMemoryStore()

	entry, err := store.Upsert("ClientA", Fields{Topics: strSlicePtr("elections")})
	require.NoError(t, err)
	assert.Equal(t, []string{"elections"}, entry.Topics)
	assert.Empty(t, entry.Accounts)
	assert.Equal(t, 1.0, entry.ROIThreshold, "new entries get the neutral multiplier")

	// A later upsert touches only the fields it carries.
	entry, err = store.Upsert("clienta", Fields{ROIThreshold: floatPtr(0.8)})
	require.NoError(t, err)
	assert.Equal(t, []string{"elections"}, entry.Topics)
	assert.Equal(t, 0.8, entry.ROIThreshold)

	got, ok := store.Get("  CLIENTA ")
	require.True(t, ok, "client keys are case-insensitive")
	assert.Equal(t, entry, got)
}

func TestMemoryStoreCopies(t *testing.T) {
	store := NewMemoryStore()

	topics := []string{"health"}
	_, err := store.Upsert("acme", Fields{Topics: &topics})
	require.NoError(t, err)

	// Mutating the caller's slice must not leak into the store.
	topics[0] = "mutated"
	entry, ok := store.Get("acme")
	require.True(t, ok)
	assert.Equal(t, []string{"health"}, entry.Topics)

	// Nor the other way around.
	entry.Topics[0] = "mutated"
	entry, _ = store.Get("acme")
	assert.Equal(t, []string{"health"}, entry.Topics)
}

func TestMemoryStoreList(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Upsert("a", Fields{Topics: strSlicePtr("elections")})
	require.NoError(t, err)
	_, err = store.Upsert("b", Fields{Accounts: strSlicePtr("@troll")})
	require.NoError(t, err)

	entries, err := store.List()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, []string{"elections"}, entries["a"].Topics)
}

func TestMatch(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Upsert("acme", Fields{
		Topics:       strSlicePtr("elections", "vaccine"),
		Accounts:     strSlicePtr("@KnownTroll"),
		ROIThreshold: floatPtr(0.7),
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		item      types.ContentItem
		wantMatch bool
	}{
		{
			name:      "harm topic matches tracked topic",
			item:      types.ContentItem{Client: "acme", HarmTopic: "elections"},
			wantMatch: true,
		},
		{
			name:      "tracked term inside text",
			item:      types.ContentItem{Client: "acme", Text: "new VACCINE claims circulating"},
			wantMatch: true,
		},
		{
			name:      "tracked account regardless of case",
			item:      types.ContentItem{Client: "acme", Author: "@knowntroll"},
			wantMatch: true,
		},
		{
			name:      "unrelated item",
			item:      types.ContentItem{Client: "acme", Text: "cat pictures", HarmTopic: "meme"},
			wantMatch: false,
		},
		{
			name:      "other client sees nothing",
			item:      types.ContentItem{Client: "rival", HarmTopic: "elections"},
			wantMatch: false,
		},
		{
			name:      "no client scans all entries",
			item:      types.ContentItem{HarmTopic: "elections"},
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := Match(store, tt.item)
			assert.Equal(t, tt.wantMatch, ok)
			if tt.wantMatch {
				assert.Equal(t, 0.7, entry.ROIThreshold)
			}
		})
	}
}

func TestMemoryStoreConcurrency(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = store.Upsert("acme", Fields{ROIThreshold: floatPtr(float64(j))})
				_, _ = store.Get("acme")
				_, _ = store.List()
			}
		}()
	}
	wg.Wait()
}
