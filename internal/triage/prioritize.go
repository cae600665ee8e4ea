package triage

import (
	"math"

	"github.com/truthshield/triage/internal/types"
)

// Priority buckets an item lands in after reach/risk pooling.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Thresholds holds the pool gating configuration for prioritization.
type Thresholds struct {
	TrackPoolMinViews          float64 `json:"track_pool_min_views"`
	TrackPoolMinGrowthRate24h  float64 `json:"track_pool_min_growth_rate_24h"`
	AccountPoolMinFollowers    float64 `json:"account_pool_min_followers"`
	AccountPoolMinFollowerSpike float64 `json:"account_pool_min_follower_spike_24h"`
	CoordinationMinScore       float64 `json:"coordination_min_score"`
}

// DefaultThresholds returns the stock pool gates.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TrackPoolMinViews:           5000,
		TrackPoolMinGrowthRate24h:   0.5,
		AccountPoolMinFollowers:     10000,
		AccountPoolMinFollowerSpike: 1.0,
		CoordinationMinScore:        0.5,
	}
}

// Pools reports which reach/risk pools an item belongs to.
type Pools struct {
	TrackPool   bool `json:"track_pool"`
	AccountPool bool `json:"account_pool"`
}

// ScoreComponents are each raw metric expressed as a ratio of its threshold.
// Reported for transparency only; gating uses the raw comparisons.
type ScoreComponents struct {
	Reach        float64 `json:"reach"`
	Risk         float64 `json:"risk"`
	Coordination float64 `json:"coordination"`
}

// PrioritizedItem is the outcome of reach-first / risk-first pooling.
type PrioritizedItem struct {
	Priority        string          `json:"priority"`
	Watchlist       bool            `json:"watchlist"`
	Pools           Pools           `json:"pools"`
	ScoreComponents ScoreComponents `json:"score_components"`
	Thresholds      Thresholds      `json:"thresholds"`
}

// Prioritizer classifies items into reach/account pools and a priority tier.
type Prioritizer struct {
	thresholds Thresholds
}

// NewPrioritizer creates a prioritizer over the given thresholds.
func NewPrioritizer(thresholds Thresholds) *Prioritizer {
	return &Prioritizer{thresholds: thresholds}
}

// Prioritize pools one item. High priority requires both watchlist
// membership and a coordination score past the configured floor.
func (p *Prioritizer) Prioritize(item types.ContentItem) PrioritizedItem {
	th := p.thresholds

	inTrackPool := item.Views >= th.TrackPoolMinViews ||
		item.GrowthRate24h >= th.TrackPoolMinGrowthRate24h
	inAccountPool := item.AuthorFollowers >= th.AccountPoolMinFollowers ||
		item.FollowerSpike24h >= th.AccountPoolMinFollowerSpike

	watchlist := inTrackPool || inAccountPool

	priority := PriorityLow
	switch {
	case watchlist && item.CoordinationScore >= th.CoordinationMinScore:
		priority = PriorityHigh
	case watchlist:
		priority = PriorityMedium
	}

	// Epsilon floors keep the transparency ratios defined when a threshold
	// is configured to zero.
	components := ScoreComponents{
		Reach: math.Max(
			item.Views/math.Max(th.TrackPoolMinViews, 1),
			item.GrowthRate24h/math.Max(th.TrackPoolMinGrowthRate24h, 1e-6),
		),
		Risk: math.Max(
			item.AuthorFollowers/math.Max(th.AccountPoolMinFollowers, 1),
			item.FollowerSpike24h/math.Max(th.AccountPoolMinFollowerSpike, 1e-6),
		),
		Coordination: item.CoordinationScore / math.Max(th.CoordinationMinScore, 1e-6),
	}

	return PrioritizedItem{
		Priority:        priority,
		Watchlist:       watchlist,
		Pools:           Pools{TrackPool: inTrackPool, AccountPool: inAccountPool},
		ScoreComponents: components,
		Thresholds:      th,
	}
}
