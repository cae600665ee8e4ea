package triage

import (
	"math"
)

// KPI actions in escalation order.
const (
	ActionHITL     = "HITL"
	ActionSemiHITL = "SEMI_HITL"
	ActionPrebunk  = "PREBUNK"
)

// Primary-rule thresholds. Reach above the HITL floor with a harmful topic
// demands a full analyst; the mid band only escalates when coordination is
// already suspected.
const (
	hitlReachFloor     = 50000.0
	hitlHarmFloor      = 1.5
	semiHITLReachFloor = 10000.0
	semiHITLAstroFloor = 6.0

	// 50% daily growth saturates the virality probability.
	viralityGrowthSaturation = 0.5
)

// CostInputs are the optional analyst-cost parameters for the secondary
// CPR gate. The gate only engages when both AvgAnalystSeconds and
// SalaryRatePerHour are present.
type CostInputs struct {
	AvgAnalystSeconds *float64
	SalaryRatePerHour *float64
	ClientMaxCPR      *float64
}

// KPIDecision is the outcome of the cost-aware action selection. Reasons
// always records the primary rule that fired; a secondary entry appears
// when the CPR gate overrode it.
type KPIDecision struct {
	Action             string            `json:"action"`
	ProjectedReach48h  float64           `json:"projected_reach_48h"`
	HarmWeight         float64           `json:"harm_weight"`
	ViralityProbability float64          `json:"virality_probability"`
	AstroScore         float64           `json:"astro_score"`
	CostPerReach       *float64          `json:"cost_per_reach,omitempty"`
	ClientMaxCPR       *float64          `json:"client_max_cpr,omitempty"`
	Reasons            map[string]string `json:"reasons"`
}

// KPIDecider converts projected reach, harm weight and astro score into an
// action, gated by a cost-per-reach ceiling.
type KPIDecider struct {
	harmWeights *HarmWeightTable
}

// NewKPIDecider creates a decider reading harm weights from the given table.
func NewKPIDecider(harmWeights *HarmWeightTable) *KPIDecider {
	return &KPIDecider{harmWeights: harmWeights}
}

// ProjectedReach48h estimates audience after two more growth periods:
// views * (1+r)^2. Negative inputs are floored at zero.
func ProjectedReach48h(views, growthRate24h float64) float64 {
	v := math.Max(0, views)
	r := math.Max(0, growthRate24h)
	return math.Round(v*(1+r)*(1+r)*100) / 100
}

// ViralityProbability maps a 24h growth rate onto [0,1], saturating at 50%
// growth.
func ViralityProbability(growthRate24h float64) float64 {
	r := math.Max(0, growthRate24h)
	return math.Min(1, r/viralityGrowthSaturation)
}

// CostPerReach computes analyst labor cost per projected viewer. Returns
// nil when projected reach is zero, since the ratio is undefined.
func CostPerReach(avgAnalystSeconds, salaryRatePerHour, projectedReach float64) *float64 {
	if projectedReach <= 0 {
		return nil
	}
	hours := math.Max(0, avgAnalystSeconds) / 3600
	cpr := math.Round(hours*salaryRatePerHour/projectedReach*1e6) / 1e6
	return &cpr
}

// Decide runs the primary KPI rules and the secondary cost gate. The cost
// gate always wins: when cost per reach exceeds the client ceiling the
// action is forced to PREBUNK with the override recorded in Reasons.
func (d *KPIDecider) Decide(views, growthRate24h float64, harmTopic string, harmOverride *float64, astroScore float64, cost CostInputs) KPIDecision {
	projected := ProjectedReach48h(views, growthRate24h)
	harmWeight := d.harmWeights.Get(harmTopic, harmOverride)
	virality := ViralityProbability(growthRate24h)

	action := ActionPrebunk
	reasons := map[string]string{"primary": "did_not_meet_thresholds"}

	switch {
	case projected > hitlReachFloor && harmWeight >= hitlHarmFloor:
		action = ActionHITL
		reasons["primary"] = "projected>50k_and_harm>=1.5"
	case projected >= semiHITLReachFloor && projected <= hitlReachFloor && astroScore >= semiHITLAstroFloor:
		action = ActionSemiHITL
		reasons["primary"] = "projected_10_50k_and_astro>=6"
	}

	var cpr *float64
	if cost.AvgAnalystSeconds != nil && cost.SalaryRatePerHour != nil {
		cpr = CostPerReach(*cost.AvgAnalystSeconds, *cost.SalaryRatePerHour, projected)
		if cpr != nil && cost.ClientMaxCPR != nil && *cpr > *cost.ClientMaxCPR {
			action = ActionPrebunk
			reasons["secondary"] = "cpr_above_client_max"
		}
	}

	return KPIDecision{
		Action:              action,
		ProjectedReach48h:   projected,
		HarmWeight:          harmWeight,
		ViralityProbability: virality,
		AstroScore:          astroScore,
		CostPerReach:        cpr,
		ClientMaxCPR:        cost.ClientMaxCPR,
		Reasons:             reasons,
	}
}
