package scoring

import "math"

// ThreatEnsemble blends virality, harm potential and astro score into a
// single 0-10 figure for dashboards. All inputs are expected in 0-10.
type ThreatEnsemble struct {
	weights map[string]float64
}

// NewThreatEnsemble creates an ensemble with the given component weights,
// renormalized so they sum to 1.
func NewThreatEnsemble(wVirality, wHarm, wAstro float64) *ThreatEnsemble {
	total := math.Max(1e-6, wVirality+wHarm+wAstro)
	return &ThreatEnsemble{
		weights: map[string]float64{
			"virality": wVirality / total,
			"harm":     wHarm / total,
			"astro":    wAstro / total,
		},
	}
}

// DefaultThreatEnsemble returns the stock 0.4/0.3/0.3 blend.
func DefaultThreatEnsemble() *ThreatEnsemble {
	return NewThreatEnsemble(0.4, 0.3, 0.3)
}

// Score blends the three components, clipping each into 0-10 first.
func (e *ThreatEnsemble) Score(virality, harm, astro float64) ThreatScore {
	v := clip(virality, 0, 10)
	h := clip(harm, 0, 10)
	a := clip(astro, 0, 10)

	blended := e.weights["virality"]*v + e.weights["harm"]*h + e.weights["astro"]*a

	return ThreatScore{
		Score:      round2(blended),
		Components: map[string]float64{"virality": v, "harm": h, "astro": a},
		Weights:    e.weights,
	}
}
