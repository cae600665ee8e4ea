package scoring

import (
	"math"

	"github.com/truthshield/triage/internal/types"
)

// ViralityPredictor maps views, growth and follower counts onto a
// transparent 0-10 reach score. Pure; no side effects.
type ViralityPredictor struct {
	ViewsScale     float64
	FollowersScale float64
}

// NewViralityPredictor creates a predictor with the given scales, floored
// at 1 to keep the divisions defined.
func NewViralityPredictor(viewsScale, followersScale float64) *ViralityPredictor {
	return &ViralityPredictor{
		ViewsScale:     math.Max(1, viewsScale),
		FollowersScale: math.Max(1, followersScale),
	}
}

// DefaultViralityPredictor returns a predictor with the stock scales
// (5k views, 10k followers).
func DefaultViralityPredictor() *ViralityPredictor {
	return NewViralityPredictor(5000, 10000)
}

// Predict scores one item. Each input is scaled and capped at 1.5 to bound
// outlier influence, then blended 0.5 growth / 0.3 views / 0.2 followers.
func (p *ViralityPredictor) Predict(item types.ContentItem) float64 {
	views := math.Min(1.5, item.Views/p.ViewsScale)
	growth := math.Min(1.5, item.GrowthRate24h)
	followers := math.Min(1.5, item.AuthorFollowers/p.FollowersScale)

	score := math.Min(1, 0.5*growth+0.3*views+0.2*followers)
	return round2(score * 10)
}
