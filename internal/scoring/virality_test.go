package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/truthshield/triage/internal/types"
)

func TestViralityPredict(t *testing.T) {
	predictor := DefaultViralityPredictor()

	tests := []struct {
		name     string
		item     types.ContentItem
		expected float64
	}{
		{
			name:     "zero metrics",
			item:     types.ContentItem{},
			expected: 0,
		},
		{
			name: "moderate reach",
			item: types.ContentItem{
				Views:           6000,
				GrowthRate24h:   0.5,
				AuthorFollowers: 5000,
			},
			// 0.5*0.5 + 0.3*1.2 + 0.2*0.5
			expected: 7.1,
		},
		{
			name: "outliers capped at 1.5x then blended to the ceiling",
			item: types.ContentItem{
				Views:           1_000_000,
				GrowthRate24h:   3,
				AuthorFollowers: 1_000_000,
			},
			expected: 10,
		},
		{
			name: "growth dominates views",
			item: types.ContentItem{
				Views:         1000,
				GrowthRate24h: 1.0,
			},
			// 0.5*1.0 + 0.3*0.2
			expected: 5.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, predictor.Predict(tt.item), 1e-9)
		})
	}
}

func TestViralityScaleFloors(t *testing.T) {
	// Zero or negative scales would divide by zero; the constructor floors
	// them at 1.
	predictor := NewViralityPredictor(0, -5)
	assert.Equal(t, 1.0, predictor.ViewsScale)
	assert.Equal(t, 1.0, predictor.FollowersScale)
}

func TestThreatEnsemble(t *testing.T) {
	ensemble := DefaultThreatEnsemble()

	result := ensemble.Score(8, 6, 4)
	// 0.4*8 + 0.3*6 + 0.3*4
	assert.InDelta(t, 6.2, result.Score, 1e-9)
	assert.Equal(t, 8.0, result.Components["virality"])

	clipped := ensemble.Score(15, -2, 5)
	assert.Equal(t, 10.0, clipped.Components["virality"])
	assert.Equal(t, 0.0, clipped.Components["harm"])
}

func TestThreatEnsembleWeightNormalization(t *testing.T) {
	ensemble := NewThreatEnsemble(2, 1, 1)

	total := 0.0
	for _, w := range ensemble.weights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.InDelta(t, 0.5, ensemble.weights["virality"], 1e-9)
}
