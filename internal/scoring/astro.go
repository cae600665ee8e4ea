package scoring

import (
	"math"

	"github.com/truthshield/triage/internal/types"
)

// Feature-level weights for the coordinated-behavior scorer, grouped by the
// category each feature reports under. Weights are fixed; tuning happens
// here, not at call sites.
var (
	accountNetworkWeights = map[string]float64{
		"follower_spike_24h":         1.0, // Δ > 200% / 24h saturates this feature
		"fresh_spawn_activity":       0.5, // account_age<30d & post_count>5
		"new_accounts_ratio":         0.7,
		"overlapping_hashtags_ratio": 0.8,
		"cross_post_clip_count_1h":   1.5, // same clip on >3 accounts inside 1h
		"shared_fingerprint_ratio":   0.9,
	}
	contentWeights = map[string]float64{
		"ngram_overlap_ratio":         1.2,
		"text_reuse_ratio":            0.8,
		"identical_media_ratio":       0.6,
		"unnatural_punctuation_ratio": 0.3,
		"emotional_extrema_sigma":     0.4,
	}
	engagementWeights = map[string]float64{
		"comment_like_over_median_multiplier": 0.5,
		"like_view_sigma":                     0.5,
	}
	temporalNetworkWeights = map[string]float64{
		"reply_cluster_density":      1.5,
		"reply_stacking_ratio":       0.6,
		"posting_time_sync_score":    1.0,
		"synchronized_posting_ratio": 0.8,
		"shared_ip_device_flag":      1.0,
	}
	metaWeights = map[string]float64{
		"bad_domain_ratio":       0.8,
		"multilingual_copy_flag": 0.7,
	}
)

func weightedSum(features map[string]float64, weights map[string]float64) float64 {
	s := 0.0
	for name, w := range weights {
		s += w * features[name]
	}
	return s
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }

// ScoreSignals computes the Astro-Score for one signal bundle. An all-zero
// bundle scores exactly 0 with no notes; the score is monotonic
// non-decreasing in every normalized feature.
func ScoreSignals(s types.BehaviorSignals) AstroScoreResult {
	features := normalizeSignals(s)

	categories := CategoryScores{
		AccountNetwork:  round3(weightedSum(features, accountNetworkWeights)),
		Content:         round3(weightedSum(features, contentWeights)),
		Engagement:      round3(weightedSum(features, engagementWeights)),
		TemporalNetwork: round3(weightedSum(features, temporalNetworkWeights)),
		Meta:            round3(weightedSum(features, metaWeights)),
	}

	sum := weightedSum(features, accountNetworkWeights) +
		weightedSum(features, contentWeights) +
		weightedSum(features, engagementWeights) +
		weightedSum(features, temporalNetworkWeights) +
		weightedSum(features, metaWeights)

	// Sigmoid centered so a zero signal vector lands at exactly 0, then
	// stretched back out to the 0..10 range.
	score := 10 * clip(sigmoid(sum)-0.5, 0, 0.5) * 2

	return AstroScoreResult{
		Score:      round2(score),
		Categories: categories,
		Signals:    features,
		Notes:      scoreNotes(features),
	}
}

// scoreNotes emits human-readable callouts for features past thresholds an
// analyst would want flagged explicitly.
func scoreNotes(features map[string]float64) []string {
	notes := []string{}
	if features["follower_spike_24h"] >= 1 {
		notes = append(notes, "Follower spike >200% in 24h")
	}
	if features["cross_post_clip_count_1h"] >= 1 {
		notes = append(notes, "Cross-posting same clip across multiple accounts <1h")
	}
	if features["reply_cluster_density"] > 0.7 {
		notes = append(notes, "High reply/retweet cluster density")
	}
	if features["ngram_overlap_ratio"] > 0.7 {
		notes = append(notes, "High n-gram overlap across posts")
	}
	if features["overlapping_hashtags_ratio"] > 0.8 {
		notes = append(notes, "Overlapping hashtags across new accounts")
	}
	return notes
}
