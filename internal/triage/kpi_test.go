package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestProjectedReach48h(t *testing.T) {
	tests := []struct {
		name     string
		views    float64
		growth   float64
		expected float64
	}{
		{name: "no growth keeps views", views: 1000, growth: 0, expected: 1000},
		{name: "40 percent growth compounds twice", views: 100000, growth: 0.4, expected: 196000},
		{name: "negative growth floors at zero", views: 1000, growth: -0.5, expected: 1000},
		{name: "negative views floor at zero", views: -10, growth: 1, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProjectedReach48h(tt.views, tt.growth)
			assert.InDelta(t, tt.expected, got, 1e-6)
			if tt.growth >= 0 && tt.views >= 0 {
				assert.GreaterOrEqual(t, got, tt.views)
			}
		})
	}
}

func TestViralityProbability(t *testing.T) {
	assert.Equal(t, 0.0, ViralityProbability(0))
	assert.InDelta(t, 0.5, ViralityProbability(0.25), 1e-9)
	assert.Equal(t, 1.0, ViralityProbability(0.5))
	assert.Equal(t, 1.0, ViralityProbability(3))
	assert.Equal(t, 0.0, ViralityProbability(-1))
}

func TestCostPerReach(t *testing.T) {
	cpr := CostPerReach(1800, 60, 50000)
	require.NotNil(t, cpr)
	// 0.5h * 60/h / 50000 viewers
	assert.InDelta(t, 0.0006, *cpr, 1e-9)

	assert.Nil(t, CostPerReach(1800, 60, 0), "undefined at zero reach")
}

func TestDecidePrimaryRules(t *testing.T) {
	decider := NewKPIDecider(NewHarmWeightTable())

	tests := []struct {
		name       string
		views      float64
		growth     float64
		topic      string
		astro      float64
		wantAction string
		wantReason string
	}{
		{
			name:       "high reach harmful topic goes HITL",
			views:      100000,
			growth:     0.4,
			topic:      "elections",
			astro:      7,
			wantAction: ActionHITL,
			wantReason: "projected>50k_and_harm>=1.5",
		},
		{
			name:       "mid reach with coordination goes SEMI_HITL",
			views:      20000,
			growth:     0,
			topic:      "reputation",
			astro:      6.5,
			wantAction: ActionSemiHITL,
			wantReason: "projected_10_50k_and_astro>=6",
		},
		{
			name:       "mid reach without coordination prebunks",
			views:      20000,
			growth:     0,
			topic:      "reputation",
			astro:      3,
			wantAction: ActionPrebunk,
			wantReason: "did_not_meet_thresholds",
		},
		{
			name:       "high reach low harm prebunks",
			views:      100000,
			growth:     0.4,
			topic:      "meme",
			astro:      2,
			wantAction: ActionPrebunk,
			wantReason: "did_not_meet_thresholds",
		},
		{
			name:       "unknown topic defaults to weight 1",
			views:      100000,
			growth:     0.4,
			topic:      "gardening",
			astro:      2,
			wantAction: ActionPrebunk,
			wantReason: "did_not_meet_thresholds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := decider.Decide(tt.views, tt.growth, tt.topic, nil, tt.astro, CostInputs{})

			assert.Equal(t, tt.wantAction, decision.Action)
			assert.Equal(t, tt.wantReason, decision.Reasons["primary"])
			assert.NotContains(t, decision.Reasons, "secondary")
		})
	}
}

func TestDecideCostGateOverridesPrimary(t *testing.T) {
	decider := NewKPIDecider(NewHarmWeightTable())

	// Primary rule alone produces HITL.
	base := decider.Decide(100000, 0.4, "elections", nil, 7, CostInputs{})
	require.Equal(t, ActionHITL, base.Action)

	// Expensive analyst time against a tight client ceiling flips it.
	decision := decider.Decide(100000, 0.4, "elections", nil, 7, CostInputs{
		AvgAnalystSeconds: floatPtr(7200),
		SalaryRatePerHour: floatPtr(120),
		ClientMaxCPR:      floatPtr(0.001),
	})

	assert.Equal(t, ActionPrebunk, decision.Action)
	assert.Equal(t, "projected>50k_and_harm>=1.5", decision.Reasons["primary"])
	assert.Equal(t, "cpr_above_client_max", decision.Reasons["secondary"])
	require.NotNil(t, decision.CostPerReach)
	assert.Greater(t, *decision.CostPerReach, 0.001)
}

func TestDecideCostGateRequiresBothInputs(t *testing.T) {
	decider := NewKPIDecider(NewHarmWeightTable())

	decision := decider.Decide(100000, 0.4, "elections", nil, 7, CostInputs{
		AvgAnalystSeconds: floatPtr(7200),
		ClientMaxCPR:      floatPtr(0.000001),
	})

	assert.Equal(t, ActionHITL, decision.Action, "gate must not engage without a salary rate")
	assert.Nil(t, decision.CostPerReach)
}

func TestDecideHarmOverride(t *testing.T) {
	decider := NewKPIDecider(NewHarmWeightTable())

	decision := decider.Decide(100000, 0.4, "meme", floatPtr(2.5), 1, CostInputs{})
	assert.Equal(t, ActionHITL, decision.Action)
	assert.Equal(t, 2.5, decision.HarmWeight)
}

func TestHarmWeightTable(t *testing.T) {
	table := NewHarmWeightTable()

	assert.Equal(t, 3.0, table.Get("elections", nil))
	assert.Equal(t, 3.0, table.Get("  Elections ", nil), "topics are normalized")
	assert.Equal(t, 1.0, table.Get("unknown", nil))
	assert.Equal(t, 1.0, table.Get("", nil))

	table.Set("Crypto", 2.2)
	assert.Equal(t, 2.2, table.Get("crypto", nil))

	snapshot := table.All()
	snapshot["elections"] = 99
	assert.Equal(t, 3.0, table.Get("elections", nil), "All returns a copy")
}

func TestHarmWeightTableConcurrency(t *testing.T) {
	table := NewHarmWeightTable()
	done := make(chan struct{})

	go func() {
		for i := 0; i < 1000; i++ {
			table.Set("elections", float64(i))
		}
		close(done)
	}()

	for i := 0; i < 1000; i++ {
		_ = table.Get("elections", nil)
		_ = table.All()
	}
	<-done
}
