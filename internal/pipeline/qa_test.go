package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/truthshield/triage/internal/types"
)

// fixedRand replays a predetermined draw sequence.
type fixedRand struct {
	values []float64
	index  int
}

func (r *fixedRand) Float64() float64 {
	v := r.values[r.index%len(r.values)]
	r.index++
	return v
}

func TestQAEvaluate(t *testing.T) {
	tests := []struct {
		name         string
		item         types.ContentItem
		astro        float64
		draw         float64
		wantSelected bool
		wantReason   string
	}{
		{
			name:         "high astro never selected regardless of reach",
			item:         types.ContentItem{Views: 1000000, GrowthRate24h: 0},
			astro:        9,
			draw:         0.0,
			wantSelected: false,
			wantReason:   QAReasonNotEligible,
		},
		{
			name:         "low reach not eligible",
			item:         types.ContentItem{Views: 1000, GrowthRate24h: 0.1},
			astro:        1,
			draw:         0.0,
			wantSelected: false,
			wantReason:   QAReasonNotEligible,
		},
		{
			name:         "eligible and lucky draw",
			item:         types.ContentItem{Views: 150000, GrowthRate24h: 0},
			astro:        2,
			draw:         0.05,
			wantSelected: true,
			wantReason:   QAReasonRandomPick,
		},
		{
			name:         "eligible but unlucky draw",
			item:         types.ContentItem{Views: 150000, GrowthRate24h: 0},
			astro:        2,
			draw:         0.95,
			wantSelected: false,
			wantReason:   QAReasonRandomMiss,
		},
		{
			name:         "boundary astro at threshold is ineligible",
			item:         types.ContentItem{Views: 150000, GrowthRate24h: 0},
			astro:        4.0,
			draw:         0.0,
			wantSelected: false,
			wantReason:   QAReasonNotEligible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler := NewQASampler(DefaultQAConfig(), &fixedRand{values: []float64{tt.draw}})
			decision := sampler.Evaluate(tt.item, tt.astro)

			assert.Equal(t, tt.wantSelected, decision.Selected)
			assert.Equal(t, tt.wantReason, decision.Reason)
			assert.Equal(t, tt.astro, decision.AstroScore)
		})
	}
}

func TestQAEvaluateRecomputesReach(t *testing.T) {
	sampler := NewQASampler(DefaultQAConfig(), &fixedRand{values: []float64{0.99}})

	decision := sampler.Evaluate(types.ContentItem{Views: 100000, GrowthRate24h: 0.4}, 1)
	assert.InDelta(t, 196000, decision.ProjectedReach48h, 1e-6)
}

func TestQAEvaluateBatch(t *testing.T) {
	sampler := NewQASampler(DefaultQAConfig(), &fixedRand{values: []float64{0.0}})

	items := []types.ContentItem{
		{Views: 150000},
		{Views: 10},
		{Views: 200000},
	}
	decisions := sampler.EvaluateBatch(items, []float64{1, 1})

	assert.Len(t, decisions, 2, "batch is trimmed to the shorter slice")
	assert.True(t, decisions[0].Selected)
	assert.Equal(t, QAReasonNotEligible, decisions[1].Reason)
}

func TestQASampleRateClamped(t *testing.T) {
	cfg := DefaultQAConfig()
	cfg.SampleRate = 7.5

	sampler := NewQASampler(cfg, &fixedRand{values: []float64{0.999}})
	decision := sampler.Evaluate(types.ContentItem{Views: 150000}, 1)
	assert.True(t, decision.Selected, "rates above 1 clamp to always-select")
}
