package pipeline

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/truthshield/triage/internal/triage"
	"github.com/truthshield/triage/internal/types"
)

// QA sampling reasons.
const (
	QAReasonNotEligible = "not_eligible"
	QAReasonRandomPick  = "random_pick"
	QAReasonRandomMiss  = "random_miss"
)

// Rand is the entropy source for QA sampling. Production uses a seeded
// math/rand generator; tests inject a fixed sequence for determinism.
type Rand interface {
	Float64() float64
}

// QAConfig bounds the "low-risk but high-spread" audit slice.
type QAConfig struct {
	LowScoreThreshold        float64
	HighSpreadProjectedReach float64
	SampleRate               float64
}

// DefaultQAConfig samples 10% of items that scored below 4.0 yet project
// past 100k viewers.
func DefaultQAConfig() QAConfig {
	return QAConfig{
		LowScoreThreshold:        4.0,
		HighSpreadProjectedReach: 100000,
		SampleRate:               0.1,
	}
}

// QADecision reports whether an item was picked for auditor review and why.
type QADecision struct {
	Selected          bool    `json:"selected"`
	ProjectedReach48h float64 `json:"projected_reach_48h"`
	AstroScore        float64 `json:"astro_score"`
	Reason            string  `json:"reason"`
}

// QASampler randomly selects items the scorer waved through despite a large
// projected audience. Misses here are exactly the ones nobody would review
// otherwise.
type QASampler struct {
	cfg QAConfig
	rng Rand
}

// NewQASampler creates a sampler with the given entropy source. A nil rng
// falls back to a time-seeded generator.
func NewQASampler(cfg QAConfig, rng Rand) *QASampler {
	if rng == nil {
		rng = newLockedRand()
	}
	return &QASampler{cfg: cfg, rng: rng}
}

// Evaluate recomputes projected reach from the item's raw metrics and
// applies the eligibility gate before drawing.
func (s *QASampler) Evaluate(item types.ContentItem, astroScore float64) QADecision {
	projected := triage.ProjectedReach48h(item.Views, item.GrowthRate24h)

	eligible := astroScore < s.cfg.LowScoreThreshold && projected >= s.cfg.HighSpreadProjectedReach
	if !eligible {
		return QADecision{ProjectedReach48h: projected, AstroScore: astroScore, Reason: QAReasonNotEligible}
	}

	rate := math.Max(0, math.Min(1, s.cfg.SampleRate))
	if s.rng.Float64() < rate {
		return QADecision{Selected: true, ProjectedReach48h: projected, AstroScore: astroScore, Reason: QAReasonRandomPick}
	}
	return QADecision{ProjectedReach48h: projected, AstroScore: astroScore, Reason: QAReasonRandomMiss}
}

// EvaluateBatch pairs items with their astro scores positionally. Extra
// entries on either side are ignored.
func (s *QASampler) EvaluateBatch(items []types.ContentItem, astroScores []float64) []QADecision {
	n := len(items)
	if len(astroScores) < n {
		n = len(astroScores)
	}

	out := make([]QADecision, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.Evaluate(items[i], astroScores[i]))
	}
	return out
}

// lockedRand makes a math/rand generator safe for concurrent route calls.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedRand() *lockedRand {
	return &lockedRand{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}
