package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truthshield/triage/internal/types"
)

func TestScoreSignalsZeroVector(t *testing.T) {
	result := ScoreSignals(types.BehaviorSignals{})

	assert.Equal(t, 0.0, result.Score, "all-neutral signals must score exactly 0")
	assert.Empty(t, result.Notes)
	assert.Equal(t, CategoryScores{}, result.Categories)
}

func TestScoreSignalsMonotonic(t *testing.T) {
	// Raising any single signal, others held fixed, must never lower the
	// score.
	base := ScoreSignals(types.BehaviorSignals{NgramOverlapRatio: 0.2})

	tests := []struct {
		name    string
		signals types.BehaviorSignals
	}{
		{
			name:    "higher ngram overlap",
			signals: types.BehaviorSignals{NgramOverlapRatio: 0.9},
		},
		{
			name:    "added follower spike",
			signals: types.BehaviorSignals{NgramOverlapRatio: 0.2, FollowerSpike24h: 1.5},
		},
		{
			name:    "added shared device flag",
			signals: types.BehaviorSignals{NgramOverlapRatio: 0.2, SharedIPDeviceFlag: true},
		},
		{
			name:    "added bad domains",
			signals: types.BehaviorSignals{NgramOverlapRatio: 0.2, BadDomainRatio: 0.5},
		},
		{
			name:    "added reply stacking",
			signals: types.BehaviorSignals{NgramOverlapRatio: 0.2, ReplyStackingRatio: 0.9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ScoreSignals(tt.signals)
			assert.GreaterOrEqual(t, result.Score, base.Score)
		})
	}
}

func TestScoreSignalsBounds(t *testing.T) {
	// Saturate every signal; the score must stay inside 0-10.
	result := ScoreSignals(types.BehaviorSignals{
		FollowerSpike24h:       10,
		AccountAgeDays:         5,
		PostCount30d:           100,
		NewAccountsRatio:       1,
		OverlappingHashtags:    1,
		CrossPostClipCount1h:   20,
		NgramOverlapRatio:      1,
		TextReuseRatio:         1,
		UnnaturalPunctRatio:    1,
		EmotionalExtremaSigma:  5,
		ReplyClusterDensity:    1,
		ReplyStackingRatio:     1,
		PostingTimeSyncScore:   1,
		SharedIPDeviceFlag:     true,
		CommentLikeMultiplier:  8,
		LikeViewSigma:          4,
		BadDomainRatio:         1,
		MultilingualCopyFlag:   true,
		SyncedPostingRatio:     1,
		SharedFingerprintRatio: 1,
		IdenticalMediaRatio:    1,
	})

	assert.Greater(t, result.Score, 9.0)
	assert.LessOrEqual(t, result.Score, 10.0)
}

func TestScoreSignalsNotes(t *testing.T) {
	tests := []struct {
		name     string
		signals  types.BehaviorSignals
		expected string
	}{
		{
			name:     "follower spike saturated",
			signals:  types.BehaviorSignals{FollowerSpike24h: 2.5},
			expected: "Follower spike >200% in 24h",
		},
		{
			name:     "cross-posted clip",
			signals:  types.BehaviorSignals{CrossPostClipCount1h: 4},
			expected: "Cross-posting same clip across multiple accounts <1h",
		},
		{
			name:     "reply cluster density",
			signals:  types.BehaviorSignals{ReplyClusterDensity: 0.85},
			expected: "High reply/retweet cluster density",
		},
		{
			name:     "ngram overlap",
			signals:  types.BehaviorSignals{NgramOverlapRatio: 0.8},
			expected: "High n-gram overlap across posts",
		},
		{
			name:     "overlapping hashtags",
			signals:  types.BehaviorSignals{OverlappingHashtags: 0.9},
			expected: "Overlapping hashtags across new accounts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ScoreSignals(tt.signals)
			assert.Contains(t, result.Notes, tt.expected)
		})
	}
}

func TestScoreSignalsCategoryBreakdown(t *testing.T) {
	result := ScoreSignals(types.BehaviorSignals{
		FollowerSpike24h:    2, // normalizes to 1.0, weight 1.0
		NgramOverlapRatio:   0.5,
		ReplyClusterDensity: 0.4,
	})

	assert.InDelta(t, 1.0, result.Categories.AccountNetwork, 1e-9)
	assert.InDelta(t, 0.6, result.Categories.Content, 1e-9) // 1.2 * 0.5
	assert.InDelta(t, 0.6, result.Categories.TemporalNetwork, 1e-9)
	assert.Equal(t, 0.0, result.Categories.Engagement)
	assert.Equal(t, 0.0, result.Categories.Meta)
}

func TestScoreSignalsFreshSpawn(t *testing.T) {
	// A young account posting heavily is a distinct feature; an unset age
	// must not trip it.
	fresh := ScoreSignals(types.BehaviorSignals{AccountAgeDays: 10, PostCount30d: 20})
	require.Equal(t, 1.0, fresh.Signals["fresh_spawn_activity"])

	unset := ScoreSignals(types.BehaviorSignals{PostCount30d: 20})
	assert.Equal(t, 0.0, unset.Signals["fresh_spawn_activity"])
}

func TestNormalizeSignalsClipping(t *testing.T) {
	features := normalizeSignals(types.BehaviorSignals{
		FollowerSpike24h:      5,   // clipped at 2 then scaled
		NgramOverlapRatio:     1.7, // ratios clip to 1
		CommentLikeMultiplier: 0.5, // below the 1x median centers to 0
		CrossPostClipCount1h:  9,   // count normalized by 3, capped at 1
	})

	assert.Equal(t, 1.0, features["follower_spike_24h"])
	assert.Equal(t, 1.0, features["ngram_overlap_ratio"])
	assert.Equal(t, 0.0, features["comment_like_over_median_multiplier"])
	assert.Equal(t, 1.0, features["cross_post_clip_count_1h"])
}

func TestClip(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		lo, hi   float64
		expected float64
	}{
		{name: "below bound", value: -0.5, lo: 0, hi: 1, expected: 0},
		{name: "above bound", value: 1.5, lo: 0, hi: 1, expected: 1},
		{name: "within bounds", value: 0.4, lo: 0, hi: 1, expected: 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clip(tt.value, tt.lo, tt.hi))
		})
	}
}

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, sigmoid(0), 1e-12)
	assert.InDelta(t, 0.7310585786300049, sigmoid(1), 1e-12)
	assert.InDelta(t, 0.2689414213699951, sigmoid(-1), 1e-12)
}
