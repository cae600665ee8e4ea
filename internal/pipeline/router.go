package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/truthshield/triage/internal/evidence"
	"github.com/truthshield/triage/internal/scoring"
	"github.com/truthshield/triage/internal/triage"
	"github.com/truthshield/triage/internal/types"
	"github.com/truthshield/triage/internal/watchlist"
)

// Routed actions. KPI verdicts map onto these: HITL becomes ALERT_HITL,
// SEMI_HITL passes through and PREBUNK lands in the archive.
const (
	RouteActionAlertHITL = "ALERT_HITL"
	RouteActionSemiHITL  = "SEMI_HITL"
	RouteActionArchive   = "ARCHIVE"
)

// Item states as the router advances them.
const (
	StateReceived    = "received"
	StatePreFiltered = "pre_filtered"
	StateScored      = "scored"
	StateDecided     = "decided"
	StateArchived    = "archived"
	StateQASampled   = "qa_sampled"
)

const qaSampleLabel = "QA_SAMPLE"

// RouterConfig sets the pre-filter gate. The base virality threshold is
// scaled down by a matched watchlist entry's ROI multiplier.
type RouterConfig struct {
	BaseViralityThreshold float64
}

// DefaultRouterConfig gates at virality 5.0 of 10.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{BaseViralityThreshold: 5.0}
}

// EvidenceRef points a route decision at its archived record.
type EvidenceRef struct {
	SHA256 string `json:"sha256"`
	Key    string `json:"key"`
}

// RouteDecision is the terminal outcome for one item.
type RouteDecision struct {
	Action             string                 `json:"action"`
	State              string                 `json:"state"`
	Watchlist          bool                   `json:"watchlist"`
	AstroScore         float64                `json:"astro_score"`
	ViralityScore      float64                `json:"virality_score"`
	EffectiveThreshold float64                `json:"effective_virality_threshold"`
	Priority           string                 `json:"priority"`
	KPI                *triage.KPIDecision    `json:"kpi,omitempty"`
	QA                 QADecision             `json:"qa"`
	Reasons            map[string]string      `json:"reasons"`
	Evidence           *EvidenceRef           `json:"evidence,omitempty"`
	PublishEntry       *PublishEntry          `json:"publish_entry,omitempty"`
	Notes              []string               `json:"notes,omitempty"`
	Categories         scoring.CategoryScores `json:"category_scores"`
}

// Router walks each item through the triage state machine. All shared
// state (thresholds, harm weights, watchlists) is read-only or guarded by
// its own store, so items route concurrently without coordination.
type Router struct {
	cfg         RouterConfig
	virality    *scoring.ViralityPredictor
	prioritizer *triage.Prioritizer
	decider     *triage.KPIDecider
	qa          *QASampler
	watchlists  watchlist.Store
	archiver    *evidence.Archiver
	qaWriter    *evidence.Writer
	publish     PublishQueue
}

// NewRouter wires the orchestrator. The publish queue and QA writer are
// optional; a nil queue disables auto-publish and a nil writer archives QA
// samples inline.
func NewRouter(
	cfg RouterConfig,
	virality *scoring.ViralityPredictor,
	prioritizer *triage.Prioritizer,
	decider *triage.KPIDecider,
	qa *QASampler,
	watchlists watchlist.Store,
	archiver *evidence.Archiver,
	qaWriter *evidence.Writer,
	publish PublishQueue,
) *Router {
	return &Router{
		cfg:         cfg,
		virality:    virality,
		prioritizer: prioritizer,
		decider:     decider,
		qa:          qa,
		watchlists:  watchlists,
		archiver:    archiver,
		qaWriter:    qaWriter,
		publish:     publish,
	}
}

// Route advances one item Received through Archived. The returned error is
// non-nil only for evidence storage failures on escalated actions; the
// decision itself never fails.
func (r *Router) Route(ctx context.Context, item types.ContentItem, cost triage.CostInputs) (RouteDecision, error) {
	decision := RouteDecision{
		State:   StateReceived,
		Reasons: map[string]string{},
	}

	// Received -> PreFiltered.
	decision.ViralityScore = r.virality.Predict(item)
	prioritized := r.prioritizer.Prioritize(item)
	decision.Priority = prioritized.Priority

	decision.EffectiveThreshold = r.cfg.BaseViralityThreshold
	entry, matched := watchlist.Match(r.watchlists, item)
	if matched {
		decision.Watchlist = true
		decision.EffectiveThreshold = r.cfg.BaseViralityThreshold * entry.ROIThreshold
		decision.Reasons["watchlist"] = "matched_client_entry"
	} else if prioritized.Watchlist {
		decision.Watchlist = true
		decision.Reasons["watchlist"] = "pool_membership"
	}
	decision.State = StatePreFiltered

	// PreFiltered -> Scored, or straight to Decided when gated out.
	if decision.Watchlist || decision.ViralityScore >= decision.EffectiveThreshold {
		var signals types.BehaviorSignals
		if item.Signals != nil {
			signals = *item.Signals
		}
		scored := scoring.ScoreSignals(signals)
		decision.AstroScore = scored.Score
		decision.Categories = scored.Categories
		decision.Notes = scored.Notes
		decision.State = StateScored

		kpi := r.decider.Decide(item.Views, item.GrowthRate24h, item.HarmTopic, nil, scored.Score, cost)
		decision.KPI = &kpi
		decision.Action = mapKPIAction(kpi.Action)
		for k, v := range kpi.Reasons {
			decision.Reasons[k] = v
		}
	} else {
		decision.Action = RouteActionArchive
		decision.Reasons["pre_filter"] = "below_effective_virality_threshold"
	}
	decision.State = StateDecided

	// Decided -> Archived. Only escalations produce a primary evidence
	// record; a failed write on an escalation is surfaced, not swallowed.
	var archiveErr error
	if decision.Action != RouteActionArchive {
		record, err := r.archiver.Archive(ctx, item, decision.Action, provenanceFor(decision))
		if err != nil {
			archiveErr = err
			decision.Reasons["evidence"] = "archive_failed"
		} else {
			decision.Evidence = &EvidenceRef{SHA256: record.SHA256, Key: record.Key}
		}
	}
	decision.State = StateArchived

	// Independent QA pass. A selected item gets a second, separately
	// labeled record even when the primary action was ARCHIVE.
	decision.QA = r.qa.Evaluate(item, decision.AstroScore)
	if decision.QA.Selected {
		r.archiveQASample(ctx, item, decision)
		decision.State = StateQASampled
	}

	if r.publish != nil && item.PreVerified && decision.Action != RouteActionArchive {
		entry, err := r.publish.Enqueue(ctx, decision.Action, item)
		if err != nil {
			slog.Warn("Publish enqueue failed",
				"content_id", item.ContentID,
				"action", decision.Action,
				"error", err)
		} else {
			decision.PublishEntry = &entry
		}
	}

	return decision, archiveErr
}

func (r *Router) archiveQASample(ctx context.Context, item types.ContentItem, decision RouteDecision) {
	provenance := provenanceFor(decision)
	provenance["qa_reason"] = decision.QA.Reason

	if r.qaWriter != nil {
		if err := r.qaWriter.Enqueue(item, qaSampleLabel, provenance); err != nil {
			slog.Warn("QA sample enqueue failed, archiving inline",
				"content_id", item.ContentID,
				"error", err)
			if _, err := r.archiver.Archive(ctx, item, qaSampleLabel, provenance); err != nil {
				slog.Error("QA sample archive failed", "error", err)
			}
		}
		return
	}
	if _, err := r.archiver.Archive(ctx, item, qaSampleLabel, provenance); err != nil {
		slog.Error("QA sample archive failed", "error", err)
	}
}

// RouteBatch routes items concurrently with a bounded worker count,
// preserving input order in the result.
func (r *Router) RouteBatch(ctx context.Context, items []types.ContentItem, cost triage.CostInputs, maxConcurrent int) []RouteDecision {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	decisions := make([]RouteDecision, len(items))
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			decisions[i], _ = r.Route(ctx, items[i], cost)
		}(i)
	}
	wg.Wait()

	return decisions
}

func mapKPIAction(action string) string {
	switch action {
	case triage.ActionHITL:
		return RouteActionAlertHITL
	case triage.ActionSemiHITL:
		return RouteActionSemiHITL
	default:
		return RouteActionArchive
	}
}

func provenanceFor(decision RouteDecision) map[string]interface{} {
	return map[string]interface{}{
		"source":         "router",
		"astro_score":    decision.AstroScore,
		"virality_score": decision.ViralityScore,
		"priority":       decision.Priority,
		"watchlist":      decision.Watchlist,
		"primary_reason": decision.Reasons["primary"],
	}
}
