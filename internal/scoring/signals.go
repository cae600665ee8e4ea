package scoring

import (
	"math"

	"github.com/truthshield/triage/internal/types"
)

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clip01(x float64) float64 { return clip(x, 0, 1) }

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// normalizeSignals maps raw behavioral signals into bounded features keyed
// by feature name. Missing signals resolve to their neutral default; nothing
// here can fail.
func normalizeSignals(s types.BehaviorSignals) map[string]float64 {
	// Unset account age means nothing is known about the account; treat it
	// as an established account rather than a fresh spawn.
	accountAge := s.AccountAgeDays
	if accountAge == 0 {
		accountAge = 365
	}
	freshSpawn := 0.0
	if accountAge < 30 && s.PostCount30d > 5 {
		freshSpawn = 1.0
	}

	return map[string]float64{
		// Account / network
		"follower_spike_24h":         clip01(s.FollowerSpike24h / 2.0), // spike clipped to [0,2] then scaled
		"fresh_spawn_activity":       freshSpawn,
		"new_accounts_ratio":         clip01(s.NewAccountsRatio),
		"overlapping_hashtags_ratio": clip01(s.OverlappingHashtags),
		"cross_post_clip_count_1h":   math.Min(1, s.CrossPostClipCount1h/3.0),
		"shared_fingerprint_ratio":   clip01(s.SharedFingerprintRatio),

		// Content
		"ngram_overlap_ratio":         clip01(s.NgramOverlapRatio),
		"text_reuse_ratio":            clip01(s.TextReuseRatio),
		"identical_media_ratio":       clip01(s.IdenticalMediaRatio),
		"unnatural_punctuation_ratio": clip01(s.UnnaturalPunctRatio),
		"emotional_extrema_sigma":     math.Max(0, s.EmotionalExtremaSigma),

		// Engagement anomalies, centered at the 1x median
		"comment_like_over_median_multiplier": math.Max(0, s.CommentLikeMultiplier-1),
		"like_view_sigma":                     math.Max(0, s.LikeViewSigma),

		// Temporal / network
		"reply_cluster_density":      clip01(s.ReplyClusterDensity),
		"reply_stacking_ratio":       clip01(s.ReplyStackingRatio),
		"posting_time_sync_score":    clip01(s.PostingTimeSyncScore),
		"synchronized_posting_ratio": clip01(s.SyncedPostingRatio),
		"shared_ip_device_flag":      boolToFloat(s.SharedIPDeviceFlag),

		// Meta
		"bad_domain_ratio":       clip01(s.BadDomainRatio),
		"multilingual_copy_flag": boolToFloat(s.MultilingualCopyFlag),
	}
}
