package triage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/truthshield/triage/internal/types"
)

func TestPrioritize(t *testing.T) {
	prioritizer := NewPrioritizer(DefaultThresholds())

	tests := []struct {
		name          string
		item          types.ContentItem
		wantPriority  string
		wantWatchlist bool
		wantTrack     bool
		wantAccount   bool
	}{
		{
			name:         "quiet item stays low",
			item:         types.ContentItem{Views: 100, AuthorFollowers: 50},
			wantPriority: PriorityLow,
		},
		{
			name:          "track pool by views without coordination",
			item:          types.ContentItem{Views: 6000, CoordinationScore: 0.2},
			wantPriority:  PriorityMedium,
			wantWatchlist: true,
			wantTrack:     true,
		},
		{
			name:          "track pool with coordination goes high",
			item:          types.ContentItem{Views: 6000, CoordinationScore: 0.6},
			wantPriority:  PriorityHigh,
			wantWatchlist: true,
			wantTrack:     true,
		},
		{
			name:          "track pool by growth alone",
			item:          types.ContentItem{Views: 10, GrowthRate24h: 0.7},
			wantPriority:  PriorityMedium,
			wantWatchlist: true,
			wantTrack:     true,
		},
		{
			name:          "account pool by followers",
			item:          types.ContentItem{AuthorFollowers: 20000},
			wantPriority:  PriorityMedium,
			wantWatchlist: true,
			wantAccount:   true,
		},
		{
			name:          "account pool by follower spike",
			item:          types.ContentItem{FollowerSpike24h: 1.5, CoordinationScore: 0.9},
			wantPriority:  PriorityHigh,
			wantWatchlist: true,
			wantAccount:   true,
		},
		{
			name:         "coordination alone never escalates",
			item:         types.ContentItem{CoordinationScore: 0.99},
			wantPriority: PriorityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := prioritizer.Prioritize(tt.item)

			assert.Equal(t, tt.wantPriority, result.Priority)
			assert.Equal(t, tt.wantWatchlist, result.Watchlist)
			assert.Equal(t, tt.wantTrack, result.Pools.TrackPool)
			assert.Equal(t, tt.wantAccount, result.Pools.AccountPool)
		})
	}
}

func TestPrioritizeScoreComponents(t *testing.T) {
	prioritizer := NewPrioritizer(DefaultThresholds())

	result := prioritizer.Prioritize(types.ContentItem{
		Views:             10000,
		AuthorFollowers:   5000,
		CoordinationScore: 0.25,
	})

	assert.InDelta(t, 2.0, result.ScoreComponents.Reach, 1e-9)
	assert.InDelta(t, 0.5, result.ScoreComponents.Risk, 1e-9)
	assert.InDelta(t, 0.5, result.ScoreComponents.Coordination, 1e-9)
	assert.Equal(t, DefaultThresholds(), result.Thresholds)
}

func TestPrioritizeZeroThresholds(t *testing.T) {
	// Zero-configured thresholds must not divide by zero in the reported
	// components.
	prioritizer := NewPrioritizer(Thresholds{})

	result := prioritizer.Prioritize(types.ContentItem{Views: 100, GrowthRate24h: 0.1})
	assert.False(t, math.IsNaN(result.ScoreComponents.Reach), "reach component must not be NaN")
	assert.True(t, result.Watchlist)
}
