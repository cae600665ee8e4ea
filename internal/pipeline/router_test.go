package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truthshield/triage/internal/evidence"
	"github.com/truthshield/triage/internal/scoring"
	"github.com/truthshield/triage/internal/triage"
	"github.com/truthshield/triage/internal/types"
	"github.com/truthshield/triage/internal/watchlist"
)

func floatPtr(v float64) *float64 { return &v }

type routerFixture struct {
	router     *Router
	store      *evidence.MemoryStore
	watchlists *watchlist.MemoryStore
	publish    *MemoryPublishQueue
}

func newRouterFixture(t *testing.T, draws ...float64) routerFixture {
	t.Helper()
	if len(draws) == 0 {
		draws = []float64{0.99}
	}

	store := evidence.NewMemoryStore()
	watchlists := watchlist.NewMemoryStore()
	publish := NewMemoryPublishQueue()

	router := NewRouter(
		DefaultRouterConfig(),
		scoring.DefaultViralityPredictor(),
		triage.NewPrioritizer(triage.DefaultThresholds()),
		triage.NewKPIDecider(triage.NewHarmWeightTable()),
		NewQASampler(DefaultQAConfig(), &fixedRand{values: draws}),
		watchlists,
		evidence.NewArchiver(store),
		nil,
		publish,
	)

	return routerFixture{router: router, store: store, watchlists: watchlists, publish: publish}
}

func TestRouteHighReachHarmfulTopic(t *testing.T) {
	f := newRouterFixture(t)

	decision, err := f.router.Route(context.Background(), types.ContentItem{
		Platform:      "tiktok",
		ContentID:     "vid-1",
		Views:         100000,
		GrowthRate24h: 0.4,
		HarmTopic:     "elections",
	}, triage.CostInputs{})
	require.NoError(t, err)

	assert.Equal(t, RouteActionAlertHITL, decision.Action)
	assert.Equal(t, "projected>50k_and_harm>=1.5", decision.Reasons["primary"])
	require.NotNil(t, decision.KPI)
	assert.InDelta(t, 196000, decision.KPI.ProjectedReach48h, 1e-6)

	// Escalations always leave an audit trail.
	require.NotNil(t, decision.Evidence)
	record, ok, err := f.store.Get(context.Background(), decision.Evidence.SHA256)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RouteActionAlertHITL, record.Payload.Decision)
}

func TestRouteCostGateFlipsToArchive(t *testing.T) {
	f := newRouterFixture(t)

	decision, err := f.router.Route(context.Background(), types.ContentItem{
		Views:         100000,
		GrowthRate24h: 0.4,
		HarmTopic:     "elections",
	}, triage.CostInputs{
		AvgAnalystSeconds: floatPtr(7200),
		SalaryRatePerHour: floatPtr(120),
		ClientMaxCPR:      floatPtr(0.001),
	})
	require.NoError(t, err)

	assert.Equal(t, RouteActionArchive, decision.Action)
	assert.Equal(t, "cpr_above_client_max", decision.Reasons["secondary"])
	assert.Nil(t, decision.Evidence, "archived items produce no primary evidence record")
}

func TestRouteGatedOutSkipsScoring(t *testing.T) {
	f := newRouterFixture(t)

	// Quiet item, no pools, no watchlist, virality below the base gate.
	decision, err := f.router.Route(context.Background(), types.ContentItem{
		Views:           100,
		AuthorFollowers: 50,
		Signals: &types.BehaviorSignals{
			NgramOverlapRatio: 1.0,
			TextReuseRatio:    1.0,
		},
	}, triage.CostInputs{})
	require.NoError(t, err)

	assert.Equal(t, RouteActionArchive, decision.Action)
	assert.Equal(t, 0.0, decision.AstroScore, "gated-out items skip the scorer")
	assert.Nil(t, decision.KPI)
	assert.Equal(t, "below_effective_virality_threshold", decision.Reasons["pre_filter"])
}

func TestRouteWatchlistLowersGate(t *testing.T) {
	f := newRouterFixture(t)

	topics := []string{"vaccine"}
	roi := 0.5
	_, err := f.watchlists.Upsert("acme", watchlist.Fields{Topics: &topics, ROIThreshold: &roi})
	require.NoError(t, err)

	decision, err := f.router.Route(context.Background(), types.ContentItem{
		Client:    "acme",
		Text:      "vaccine rumors spreading",
		Views:     100,
		HarmTopic: "health",
	}, triage.CostInputs{})
	require.NoError(t, err)

	assert.True(t, decision.Watchlist)
	assert.Equal(t, "matched_client_entry", decision.Reasons["watchlist"])
	assert.InDelta(t, 2.5, decision.EffectiveThreshold, 1e-9)
	require.NotNil(t, decision.KPI, "watchlist matches always reach the scorer")
}

func TestRouteQASampleArchivesSecondRecord(t *testing.T) {
	// Draw below the sample rate forces selection.
	f := newRouterFixture(t, 0.01)

	decision, err := f.router.Route(context.Background(), types.ContentItem{
		Views:         100000,
		GrowthRate24h: 0.4,
		HarmTopic:     "meme",
	}, triage.CostInputs{})
	require.NoError(t, err)

	// meme weight 0.5 fails the harm floor, so the primary action archives,
	// yet the QA pass still writes its own record.
	assert.Equal(t, RouteActionArchive, decision.Action)
	assert.True(t, decision.QA.Selected)
	assert.Equal(t, StateQASampled, decision.State)

	keys, err := f.store.Keys(context.Background())
	require.NoError(t, err)
	assert.Len(t, keys, 1, "only the QA sample record is written")
}

func TestRouteQANeverSelectsHighScores(t *testing.T) {
	f := newRouterFixture(t, 0.0)

	signals := types.BehaviorSignals{
		FollowerSpike24h:     2.0,
		CrossPostClipCount1h: 5,
		NgramOverlapRatio:    1.0,
		ReplyClusterDensity:  1.0,
		PostingTimeSyncScore: 1.0,
		SharedIPDeviceFlag:   true,
	}

	decision, err := f.router.Route(context.Background(), types.ContentItem{
		Views:         1000000,
		GrowthRate24h: 0.4,
		HarmTopic:     "elections",
		Signals:       &signals,
	}, triage.CostInputs{})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, decision.AstroScore, 6.0)
	assert.False(t, decision.QA.Selected)
	assert.Equal(t, QAReasonNotEligible, decision.QA.Reason)
}

func TestRoutePreVerifiedEnqueuesPublish(t *testing.T) {
	f := newRouterFixture(t)

	decision, err := f.router.Route(context.Background(), types.ContentItem{
		Views:         100000,
		GrowthRate24h: 0.4,
		HarmTopic:     "elections",
		PreVerified:   true,
	}, triage.CostInputs{})
	require.NoError(t, err)

	require.NotNil(t, decision.PublishEntry)
	assert.Equal(t, PublishStatusQueued, decision.PublishEntry.Status)
	assert.Equal(t, RouteActionAlertHITL, decision.PublishEntry.Action)

	entries, err := f.publish.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRoutePreVerifiedArchiveDoesNotPublish(t *testing.T) {
	f := newRouterFixture(t)

	decision, err := f.router.Route(context.Background(), types.ContentItem{
		Views:       100,
		PreVerified: true,
	}, triage.CostInputs{})
	require.NoError(t, err)

	assert.Equal(t, RouteActionArchive, decision.Action)
	assert.Nil(t, decision.PublishEntry)
}

func TestRouteBatchPreservesOrder(t *testing.T) {
	f := newRouterFixture(t)

	items := []types.ContentItem{
		{Views: 100000, GrowthRate24h: 0.4, HarmTopic: "elections"},
		{Views: 100},
		{Views: 20000, HarmTopic: "reputation"},
	}

	decisions := f.router.RouteBatch(context.Background(), items, triage.CostInputs{}, 2)
	require.Len(t, decisions, 3)

	assert.Equal(t, RouteActionAlertHITL, decisions[0].Action)
	assert.Equal(t, RouteActionArchive, decisions[1].Action)
	assert.Equal(t, RouteActionArchive, decisions[2].Action)
}

func TestPublishQueueMarkProcessed(t *testing.T) {
	queue := NewMemoryPublishQueue()

	entry, err := queue.Enqueue(context.Background(), RouteActionSemiHITL, types.ContentItem{ContentID: "x"})
	require.NoError(t, err)

	ok, err := queue.MarkProcessed(context.Background(), entry.ID, "")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := queue.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, PublishStatusPosted, entries[0].Status)
	assert.NotNil(t, entries[0].ProcessedAt)

	ok, err = queue.MarkProcessed(context.Background(), "missing", "")
	require.NoError(t, err)
	assert.False(t, ok)
}
