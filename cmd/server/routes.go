package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/truthshield/triage/internal/database"
	"github.com/truthshield/triage/internal/errors"
	"github.com/truthshield/triage/internal/evidence"
	"github.com/truthshield/triage/internal/monitoring"
	"github.com/truthshield/triage/internal/pipeline"
	"github.com/truthshield/triage/internal/scoring"
	"github.com/truthshield/triage/internal/security"
	"github.com/truthshield/triage/internal/triage"
	"github.com/truthshield/triage/internal/types"
	"github.com/truthshield/triage/internal/watchlist"
)

const maxBatchItems = 500

// apiDeps bundles everything the /api/v1 surface needs. The repository is
// optional; without it harm weight changes stay in memory and admin
// mutations skip the audit log.
type apiDeps struct {
	logger      *monitoring.Logger
	metrics     *monitoring.Metrics
	validator   *security.SecurityMiddleware
	tokens      *security.TokenService
	repo        *database.Repository
	watchlists  watchlist.Store
	harmWeights *triage.HarmWeightTable
	prioritizer *triage.Prioritizer
	decider     *triage.KPIDecider
	qa          *pipeline.QASampler
	threat      *scoring.ThreatEnsemble
	router      *pipeline.Router
	archiver    *evidence.Archiver
	evidence    evidence.Store
	publish     pipeline.PublishQueue
}

func registerAPIRoutes(r *gin.Engine, d apiDeps) {
	api := r.Group("/api/v1")

	api.POST("/score", func(c *gin.Context) {
		var req types.ScoreRequest
		if err := types.DecodeStrict(c.Request.Body, &req); err != nil {
			abortWithValidation(c, "invalid request body", err)
			return
		}

		c.JSON(http.StatusOK, scoring.ScoreSignals(req.Signals))
	})

	api.POST("/prioritize", func(c *gin.Context) {
		var req types.PrioritizeRequest
		if err := types.DecodeStrict(c.Request.Body, &req); err != nil {
			abortWithValidation(c, "invalid request body", err)
			return
		}
		if appErr := validateItem(d.validator, req.Item); appErr != nil {
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, d.prioritizer.Prioritize(req.Item))
	})

	api.POST("/decide", func(c *gin.Context) {
		var req types.DecideRequest
		if err := types.DecodeStrict(c.Request.Body, &req); err != nil {
			abortWithValidation(c, "invalid request body", err)
			return
		}

		decision := d.decider.Decide(req.Views, req.GrowthRate24h, req.HarmTopic, req.HarmWeightOverride, req.AstroScore, triage.CostInputs{
			AvgAnalystSeconds: req.AvgAnalystSeconds,
			SalaryRatePerHour: req.SalaryRatePerHour,
			ClientMaxCPR:      req.ClientMaxCPR,
		})
		c.JSON(http.StatusOK, decision)
	})

	api.POST("/threat-score", func(c *gin.Context) {
		var req types.ThreatScoreRequest
		if err := types.DecodeStrict(c.Request.Body, &req); err != nil {
			abortWithValidation(c, "invalid request body", err)
			return
		}

		c.JSON(http.StatusOK, d.threat.Score(req.ViralityScore, req.HarmPotential, req.AstroScore))
	})

	api.POST("/route", func(c *gin.Context) {
		var req types.RouteRequest
		if err := types.DecodeStrict(c.Request.Body, &req); err != nil {
			abortWithValidation(c, "invalid request body", err)
			return
		}
		if appErr := validateItem(d.validator, req.Item); appErr != nil {
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		start := time.Now()
		decision, err := d.router.Route(c.Request.Context(), req.Item, triage.CostInputs{})
		recordRouteMetrics(d.metrics, decision)
		d.logger.RouteLogger(req.Item.Platform, req.Item.ContentID, decision.Action,
			decision.AstroScore, decision.ViralityScore, decision.Watchlist, time.Since(start))

		if err != nil {
			appErr := errors.NewStorageError("evidence archive failed", err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Msg, "decision": decision})
			return
		}

		c.JSON(http.StatusOK, decision)
	})

	api.POST("/route/batch", func(c *gin.Context) {
		var req types.RouteBatchRequest
		if err := types.DecodeStrict(c.Request.Body, &req); err != nil {
			abortWithValidation(c, "invalid request body", err)
			return
		}
		if len(req.Items) == 0 {
			appErr := errors.NewValidationError("items cannot be empty")
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if len(req.Items) > maxBatchItems {
			appErr := errors.NewValidationError("too many items in batch", maxBatchItems)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		for _, item := range req.Items {
			if appErr := validateItem(d.validator, item); appErr != nil {
				errors.LogError(c, appErr)
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
		}

		decisions := d.router.RouteBatch(c.Request.Context(), req.Items, triage.CostInputs{}, 8)
		for _, decision := range decisions {
			recordRouteMetrics(d.metrics, decision)
		}

		c.JSON(http.StatusOK, gin.H{"decisions": decisions})
	})

	api.POST("/qa/evaluate", func(c *gin.Context) {
		var req types.QARequest
		if err := types.DecodeStrict(c.Request.Body, &req); err != nil {
			abortWithValidation(c, "invalid request body", err)
			return
		}

		decision := d.qa.Evaluate(req.Item, req.AstroScore)
		d.logger.QALogger(req.Item.ContentID, decision.Reason, decision.Selected, decision.ProjectedReach48h)
		c.JSON(http.StatusOK, decision)
	})

	api.POST("/archive", func(c *gin.Context) {
		var req types.ArchiveRequest
		if err := types.DecodeStrict(c.Request.Body, &req); err != nil {
			abortWithValidation(c, "invalid request body", err)
			return
		}
		if req.Decision == "" {
			appErr := errors.NewValidationError("decision is required")
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		start := time.Now()
		record, err := d.archiver.Archive(c.Request.Context(), req.Item, req.Decision, req.Provenance)
		d.logger.ArchiveLogger(req.Decision, record.SHA256, err == nil, time.Since(start))
		if err != nil {
			appErr := errors.NewStorageError("evidence archive failed", err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, record)
	})

	api.GET("/evidence", func(c *gin.Context) {
		keys, err := d.evidence.Keys(c.Request.Context())
		if err != nil {
			appErr := errors.NewStorageError("failed to list evidence keys", err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"keys": keys, "count": len(keys)})
	})

	api.GET("/evidence/:hash", func(c *gin.Context) {
		record, found, err := d.archiver.Get(c.Request.Context(), c.Param("hash"))
		if err != nil {
			appErr := errors.NewStorageError("failed to read evidence record", err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "evidence record not found"})
			return
		}
		c.JSON(http.StatusOK, record)
	})

	api.GET("/publish/queue", func(c *gin.Context) {
		entries, err := d.publish.List(c.Request.Context())
		if err != nil {
			appErr := errors.NewStorageError("failed to list publish queue", err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
	})

	api.GET("/watchlists", func(c *gin.Context) {
		entries, err := d.watchlists.List()
		if err != nil {
			appErr := errors.NewStorageError("failed to list watchlists", err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"watchlists": entries})
	})

	api.GET("/watchlists/:client", func(c *gin.Context) {
		entry, found := d.watchlists.Get(c.Param("client"))
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "watchlist not found"})
			return
		}
		c.JSON(http.StatusOK, entry)
	})

	api.GET("/harm-weights", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"weights": d.harmWeights.All()})
	})

	// Mutations require an admin token and land in the audit log
	admin := api.Group("", d.tokens.RequireAdmin())

	admin.PUT("/watchlists/:client", func(c *gin.Context) {
		client := c.Param("client")

		var fields watchlist.Fields
		if err := types.DecodeStrict(c.Request.Body, &fields); err != nil {
			abortWithValidation(c, "invalid request body", err)
			return
		}

		entry, err := d.watchlists.Upsert(client, fields)
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		d.auditMutation(c, "watchlist_upsert:"+client)
		c.JSON(http.StatusOK, entry)
	})

	admin.PUT("/harm-weights/:topic", func(c *gin.Context) {
		topic := c.Param("topic")

		var req struct {
			Weight float64 `json:"weight"`
		}
		if err := types.DecodeStrict(c.Request.Body, &req); err != nil {
			abortWithValidation(c, "invalid request body", err)
			return
		}
		if req.Weight <= 0 {
			appErr := errors.NewValidationError("weight must be positive")
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		if d.repo != nil {
			if err := d.repo.UpsertHarmWeight(c.Request.Context(), topic, req.Weight); err != nil {
				appErr := errors.NewStorageError("failed to persist harm weight", err)
				errors.LogError(c, appErr)
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
		}
		d.harmWeights.Set(topic, req.Weight)

		d.auditMutation(c, "harm_weight_upsert:"+topic)
		c.JSON(http.StatusOK, gin.H{"topic": topic, "weight": req.Weight})
	})
}

func (d apiDeps) auditMutation(c *gin.Context, operation string) {
	if d.repo == nil {
		return
	}
	if err := d.repo.LogAdminMutation(c.Request.Context(), c.GetString("auth_subject"), operation, c.ClientIP()); err != nil {
		d.logger.Error("Audit log write failed", "error", err)
	}
}

func abortWithValidation(c *gin.Context, message string, err error) {
	appErr := errors.NewValidationError(message, err.Error())
	errors.LogError(c, appErr)
	c.JSON(appErr.HTTPStatus, appErr)
}

// validateItem applies the structural text checks to one submitted item.
func validateItem(sm *security.SecurityMiddleware, item types.ContentItem) *errors.AppError {
	if item.ContentID == "" {
		return errors.NewValidationError("content_id is required")
	}
	if err := sm.ValidateText(item.Text); err != nil {
		return errors.NewValidationError("invalid item text", err.Error())
	}
	return nil
}

func recordRouteMetrics(m *monitoring.Metrics, decision pipeline.RouteDecision) {
	_, gatedOut := decision.Reasons["pre_filter"]
	m.RecordRoutedItem(decision.Action, gatedOut)
	if decision.QA.Selected {
		m.IncrementQASelected()
	}
	if decision.PublishEntry != nil {
		m.IncrementPublishEnqueued()
	}
}
