package scoring

// CategoryScores breaks the astro score into its weighted category
// sub-totals (unscaled, for UI breakdown).
type CategoryScores struct {
	AccountNetwork  float64 `json:"account_network"`
	Content         float64 `json:"content"`
	Engagement      float64 `json:"engagement"`
	TemporalNetwork float64 `json:"temporal_network"`
	Meta            float64 `json:"meta"`
}

// AstroScoreResult is the output of the coordinated-behavior scorer.
type AstroScoreResult struct {
	Score      float64            `json:"score_0_10"`
	Categories CategoryScores     `json:"category_scores"`
	Signals    map[string]float64 `json:"signals"`
	Notes      []string           `json:"notes"`
}

// ThreatScore is the dashboard ensemble blend of virality, harm and astro.
type ThreatScore struct {
	Score      float64            `json:"score_0_10"`
	Components map[string]float64 `json:"components"`
	Weights    map[string]float64 `json:"weights"`
}
