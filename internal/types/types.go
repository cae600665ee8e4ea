package types

import (
	"bytes"
	"encoding/json"
	"io"
)

// ContentItem is one social-media post as delivered by the upstream
// collectors. Items are immutable once submitted to the pipeline.
type ContentItem struct {
	Platform          string           `json:"platform"`
	ContentID         string           `json:"content_id"`
	Text              string           `json:"text,omitempty"`
	URL               string           `json:"url,omitempty"`
	Author            string           `json:"author,omitempty"`
	Views             float64          `json:"views"`
	GrowthRate24h     float64          `json:"growth_rate_24h"`
	AuthorFollowers   float64          `json:"author_followers"`
	FollowerSpike24h  float64          `json:"follower_spike_24h"`
	CoordinationScore float64          `json:"coordination_score"`
	HarmTopic         string           `json:"harm_topic,omitempty"`
	Client            string           `json:"client,omitempty"`
	PreVerified       bool             `json:"pre_verified,omitempty"`
	Signals           *BehaviorSignals `json:"signals,omitempty"`
}

// BehaviorSignals is the measured behavioral signal bundle for one item.
// Every field is optional; a missing field means its zero/neutral default.
// Ratios are expected in [0,1], counts are non-negative; out-of-range
// values are clipped at scoring time, never rejected.
type BehaviorSignals struct {
	FollowerSpike24h       float64 `json:"follower_spike_24h,omitempty"`
	AccountAgeDays         float64 `json:"account_age_days,omitempty"`
	PostCount30d           float64 `json:"post_count_30d,omitempty"`
	NewAccountsRatio       float64 `json:"new_accounts_ratio,omitempty"`
	OverlappingHashtags    float64 `json:"overlapping_hashtags_ratio,omitempty"`
	CrossPostClipCount1h   float64 `json:"cross_post_clip_count_1h,omitempty"`
	NgramOverlapRatio      float64 `json:"ngram_overlap_ratio,omitempty"`
	TextReuseRatio         float64 `json:"text_reuse_ratio,omitempty"`
	UnnaturalPunctRatio    float64 `json:"unnatural_punctuation_ratio,omitempty"`
	EmotionalExtremaSigma  float64 `json:"emotional_extrema_sigma,omitempty"`
	ReplyClusterDensity    float64 `json:"reply_cluster_density,omitempty"`
	ReplyStackingRatio     float64 `json:"reply_stacking_ratio,omitempty"`
	PostingTimeSyncScore   float64 `json:"posting_time_sync_score,omitempty"`
	SharedIPDeviceFlag     bool    `json:"shared_ip_device_flag,omitempty"`
	CommentLikeMultiplier  float64 `json:"comment_like_over_median_multiplier,omitempty"`
	LikeViewSigma          float64 `json:"like_view_sigma,omitempty"`
	BadDomainRatio         float64 `json:"bad_domain_ratio,omitempty"`
	MultilingualCopyFlag   bool    `json:"multilingual_copy_flag,omitempty"`
	SyncedPostingRatio     float64 `json:"synchronized_posting_ratio,omitempty"`
	SharedFingerprintRatio float64 `json:"shared_fingerprint_ratio,omitempty"`
	IdenticalMediaRatio    float64 `json:"identical_media_ratio,omitempty"`
}

// DecodeStrict decodes JSON into v and rejects unknown fields. Upstream
// payloads are noisy, but silently swallowing misspelled signal names would
// hide real data loss, so the boundary is strict while values stay lenient.
func DecodeStrict(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// DecodeStrictBytes is DecodeStrict over a byte slice.
func DecodeStrictBytes(data []byte, v interface{}) error {
	return DecodeStrict(bytes.NewReader(data), v)
}

// ScoreRequest is the request body for the score endpoint.
type ScoreRequest struct {
	Signals BehaviorSignals `json:"signals"`
}

// PrioritizeRequest is the request body for the prioritize endpoint.
type PrioritizeRequest struct {
	Item ContentItem `json:"item"`
}

// DecideRequest is the request body for the decide endpoint. Cost inputs
// are optional; the CPR gate only engages when both analyst seconds and the
// salary rate are supplied.
type DecideRequest struct {
	Views              float64  `json:"views"`
	GrowthRate24h      float64  `json:"growth_rate_24h"`
	HarmTopic          string   `json:"harm_topic,omitempty"`
	HarmWeightOverride *float64 `json:"harm_weight_override,omitempty"`
	AstroScore         float64  `json:"astro_score"`
	AvgAnalystSeconds  *float64 `json:"avg_analyst_seconds,omitempty"`
	SalaryRatePerHour  *float64 `json:"salary_rate_per_hour,omitempty"`
	ClientMaxCPR       *float64 `json:"client_max_cpr,omitempty"`
}

// RouteRequest is the request body for the route endpoint.
type RouteRequest struct {
	Item ContentItem `json:"item"`
}

// RouteBatchRequest is the request body for the batch route endpoint.
type RouteBatchRequest struct {
	Items []ContentItem `json:"items"`
}

// QARequest is the request body for the QA evaluation endpoint.
type QARequest struct {
	Item       ContentItem `json:"item"`
	AstroScore float64     `json:"astro_score"`
}

// ArchiveRequest is the request body for the manual archive endpoint.
type ArchiveRequest struct {
	Item       ContentItem            `json:"item"`
	Decision   string                 `json:"decision"`
	Provenance map[string]interface{} `json:"provenance,omitempty"`
}

// ThreatScoreRequest is the request body for the ensemble score endpoint.
type ThreatScoreRequest struct {
	ViralityScore float64 `json:"virality_score"`
	HarmPotential float64 `json:"harm_potential"`
	AstroScore    float64 `json:"astro_score"`
}
