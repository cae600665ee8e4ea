package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/truthshield/triage/internal/cache"
	"github.com/truthshield/triage/internal/database"
	"github.com/truthshield/triage/internal/encoding"
	"github.com/truthshield/triage/internal/errors"
	"github.com/truthshield/triage/internal/evidence"
	"github.com/truthshield/triage/internal/middleware"
	"github.com/truthshield/triage/internal/monitoring"
	"github.com/truthshield/triage/internal/pipeline"
	"github.com/truthshield/triage/internal/privacy"
	"github.com/truthshield/triage/internal/ratelimit"
	"github.com/truthshield/triage/internal/resilience"
	"github.com/truthshield/triage/internal/scoring"
	"github.com/truthshield/triage/internal/security"
	"github.com/truthshield/triage/internal/triage"
)

func main() {
	appLogger := monitoring.NewLogger()
	slog.SetDefault(appLogger.Logger)

	// Configuration from environment with defaults
	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	port := getEnvOrDefault("PORT", "8080")
	jwtSecret := getEnvOrDefault("JWT_SECRET", "change-me-in-production")
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	publishWebhookURL := os.Getenv("PUBLISH_WEBHOOK_URL")
	alertWebhookURL := os.Getenv("ALERT_WEBHOOK_URL")
	baseViralityThreshold := getEnvFloat("BASE_VIRALITY_THRESHOLD", pipeline.DefaultRouterConfig().BaseViralityThreshold)
	evidenceRetentionDays := int(getEnvFloat("EVIDENCE_RETENTION_DAYS", 365))

	// Database and persistent stores
	db, err := database.NewDB(dataDir)
	if err != nil {
		appLogger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	watchlists, err := database.NewWatchlistStore(startupCtx, repo)
	if err != nil {
		startupCancel()
		appLogger.Error("Failed to load watchlists", "error", err)
		os.Exit(1)
	}

	harmWeights := triage.NewHarmWeightTable()
	if err := database.LoadHarmWeights(startupCtx, repo, harmWeights); err != nil {
		startupCancel()
		appLogger.Error("Failed to load harm weights", "error", err)
		os.Exit(1)
	}
	startupCancel()

	// Monitoring
	appMetrics := monitoring.NewMetrics()
	tracer := monitoring.NewTracer("triage", appLogger)

	memoryMonitor := monitoring.NewMemoryMonitor(5*time.Second, 50*1024*1024, appMetrics, appLogger)
	memoryMonitor.Start()

	alertManager := monitoring.NewAlertManager(appMetrics, appLogger, 30*time.Second)
	for _, rule := range monitoring.DefaultAlertRules {
		alertManager.AddRule(rule)
	}
	alertManager.AddNotifier(monitoring.NewLogNotifier(appLogger))
	if alertWebhookURL != "" {
		alertManager.AddNotifier(monitoring.NewWebhookNotifier(alertWebhookURL, postAlertJSON))
	}

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()
	go alertManager.Start(backgroundCtx)

	// Evidence storage behind a circuit breaker; every write outcome feeds
	// the evidence failure-rate alert.
	evidenceStore := evidence.NewGuardedStore(database.NewEvidenceStore(repo), nil)
	evidenceStore.OnResult = appMetrics.RecordEvidenceWrite

	archiver := evidence.NewArchiver(evidenceStore)
	qaWriter := evidence.NewWriter(archiver, evidence.WriterConfig{
		OnFailure: func(err error) {
			appLogger.Error("QA sample archive failed", "error", err)
		},
	})

	// Scoring and triage pipeline
	viralityPredictor := scoring.DefaultViralityPredictor()
	prioritizer := triage.NewPrioritizer(triage.DefaultThresholds())
	decider := triage.NewKPIDecider(harmWeights)
	qaSampler := pipeline.NewQASampler(pipeline.DefaultQAConfig(), nil)
	threatEnsemble := scoring.DefaultThreatEnsemble()
	publishQueue := pipeline.NewMemoryPublishQueue()

	router := pipeline.NewRouter(
		pipeline.RouterConfig{BaseViralityThreshold: baseViralityThreshold},
		viralityPredictor,
		prioritizer,
		decider,
		qaSampler,
		watchlists,
		archiver,
		qaWriter,
		publishQueue,
	)

	// Prebunk delivery to the client webhook, when one is configured
	publishPool := resilience.NewConnectionPool(4, 16, 90*time.Second,
		resilience.GetCircuitBreaker("publish-webhook", resilience.CircuitBreakerConfig{}))
	if publishWebhookURL != "" {
		dispatcher := pipeline.NewPublishDispatcher(publishQueue, publishPool, publishWebhookURL, 30*time.Second)
		go dispatcher.Run(backgroundCtx)
	} else {
		appLogger.Warn("PUBLISH_WEBHOOK_URL not set, queued publish entries will not be delivered")
	}

	// Privacy / retention
	privacyService := privacy.NewService(db)
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-backgroundCtx.Done():
				return
			case <-ticker.C:
				deleted, err := privacyService.CleanupExpiredEvidence(evidenceRetentionDays)
				if err != nil {
					appLogger.Error("Evidence retention cleanup failed", "error", err)
				} else if deleted > 0 {
					appLogger.Info("Evidence retention cleanup", "deleted", deleted, "retention_days", evidenceRetentionDays)
				}
			}
		}
	}()

	// Rate limiting: Redis sliding window with in-memory fallback
	redisClient, err := ratelimit.NewRedisClient(redisAddr, redisPassword, 0)
	if err != nil {
		appLogger.Warn("Redis unavailable, rate limiting degrades to in-memory", "error", err)
	}
	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig(), appMetrics)

	// Auth and security
	tokenService := security.NewTokenService([]byte(jwtSecret), 24*time.Hour)
	securityConfig := security.DefaultSecurityConfig()
	securityMiddleware := security.NewSecurityMiddleware(securityConfig)

	compressionMiddleware := middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())

	// Scoring endpoints are pure functions of their request body, so their
	// responses cache safely. Routing archives evidence and must not.
	appCache := cache.NewCache(15 * time.Minute)

	// Degradation tracking for the stores the router depends on
	resilience.RegisterService("evidence-store", func(ctx context.Context) error {
		_, err := evidenceStore.Keys(ctx)
		return err
	})
	if redisClient.IsEnabled() {
		resilience.RegisterService("redis", redisClient.HealthCheck)
	}
	resilience.StartHealthChecks(backgroundCtx)

	r := gin.New()
	if err := r.SetTrustedProxies(securityConfig.TrustedProxies); err != nil {
		appLogger.Error("Invalid trusted proxy configuration", "error", err)
		os.Exit(1)
	}

	r.Use(compressionMiddleware.Handler())
	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))
	r.Use(monitoring.TracingMiddleware(tracer))
	r.Use(monitoring.SecurityMonitoringMiddleware(appLogger))
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())
	r.Use(security.SecurityHeadersMiddleware())
	r.Use(security.CSPMiddleware())
	if securityConfig.EnableCORS {
		r.Use(securityMiddleware.CORSConfig())
	}
	r.Use(securityMiddleware.MaxBodySize)
	r.Use(securityMiddleware.ValidateContentType)
	r.Use(securityMiddleware.RequestTimeout)
	r.Use(tokenService.AuthMiddleware())
	r.Use(limiter.IPRateLimitMiddleware())
	r.Use(limiter.ClientRateLimitMiddleware("/api/v1/route", "/api/v1/route/batch"))
	r.Use(appCache.Middleware(appMetrics, "/api/v1/score", "/api/v1/decide", "/api/v1/threat-score"))

	r.GET("/health", func(c *gin.Context) {
		services := resilience.GetAllServiceHealth()

		healthResponse := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   "1.0.0",
			"services":  services,
			"metrics":   appMetrics.GetStats(),
		}

		for _, service := range services {
			if service.Level == resilience.LevelEmergency {
				healthResponse["status"] = "degraded"
				c.JSON(http.StatusServiceUnavailable, healthResponse)
				return
			}
		}

		c.JSON(http.StatusOK, healthResponse)
	})

	r.GET("/health/services", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"services":         resilience.GetAllServiceHealth(),
			"circuit_breakers": resilience.GetCircuitBreakerStats(),
			"active_alerts":    alertManager.GetActiveAlerts(),
			"timestamp":        time.Now().Format(time.RFC3339),
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	r.GET("/metrics/pipeline", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetPipelineStats())
	})

	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, appCache.Stats())
	})

	r.GET("/pools/database", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pool": "database", "stats": db.GetPoolStats()})
	})

	r.GET("/pools/publish", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pool": "publish", "stats": publishPool.GetStats()})
	})

	r.GET("/pools/compression", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pool": "compression", "stats": compressionMiddleware.GetStats()})
	})

	r.GET("/pools/evidence-writer", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pool": "evidence-writer", "stats": qaWriter.Stats()})
	})

	r.GET("/memory", func(c *gin.Context) {
		c.JSON(http.StatusOK, memoryMonitor.GetStats())
	})

	r.POST("/memory/optimize", func(c *gin.Context) {
		memoryMonitor.OptimizeMemory()
		c.JSON(http.StatusOK, gin.H{"message": "memory optimization triggered"})
	})

	r.GET("/alerts", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"alerts":    alertManager.GetAlerts(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	r.POST("/alerts/:id/silence", func(c *gin.Context) {
		alertID := c.Param("id")
		duration := 30 * time.Minute
		if durationParam := c.Query("duration"); durationParam != "" {
			if d, err := time.ParseDuration(durationParam); err == nil {
				duration = d
			}
		}

		alertManager.SilenceAlert(alertID, duration)
		c.JSON(http.StatusOK, gin.H{
			"message":  "Alert silenced",
			"alert_id": alertID,
			"duration": duration.String(),
		})
	})

	r.GET("/debug/traces", func(c *gin.Context) {
		traces := make(map[string]interface{})
		for spanID, span := range tracer.GetSpans() {
			traces[string(spanID)] = span
		}
		c.JSON(http.StatusOK, gin.H{
			"traces":    traces,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	r.GET("/ratelimit/status", limiter.HandleRateLimitStatus())

	r.GET("/privacy/policy", func(c *gin.Context) {
		c.JSON(http.StatusOK, privacyService.GetDataRetentionInfo())
	})

	if os.Getenv("ENABLE_PROFILING") == "true" {
		appLogger.Info("Enabling performance profiling endpoints")
		r.GET("/debug/pprof/*filepath", gin.WrapF(pprof.Index))
		r.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		r.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		r.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		r.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	registerAPIRoutes(r, apiDeps{
		logger:      appLogger,
		metrics:     appMetrics,
		validator:   securityMiddleware,
		tokens:      tokenService,
		repo:        repo,
		watchlists:  watchlists,
		harmWeights: harmWeights,
		prioritizer: prioritizer,
		decider:     decider,
		qa:          qaSampler,
		threat:      threatEnsemble,
		router:      router,
		archiver:    archiver,
		evidence:    evidenceStore,
		publish:     publishQueue,
	})

	// Operational admin surface, same token gate as the API mutations
	adminOps := r.Group("/api/v1", tokenService.RequireAdmin())
	adminOps.GET("/ratelimits", limiter.HandleAdminRateLimits())
	adminOps.GET("/ratelimits/metrics", limiter.HandleAdminRateLimitMetrics())
	adminOps.POST("/ratelimits/client/:clientID/reset", limiter.HandleAdminResetClientLimit())
	adminOps.POST("/ratelimits/ip/:ip/invalidate", limiter.HandleAdminInvalidateIP())
	adminOps.POST("/privacy/cleanup", func(c *gin.Context) {
		deleted, err := privacyService.CleanupExpiredEvidence(evidenceRetentionDays)
		if err != nil {
			appErr := errors.NewStorageError("retention cleanup failed", err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted, "retention_days": evidenceRetentionDays})
	})

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		appLogger.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	// Drain in-flight QA archives before the database closes underneath them
	backgroundCancel()
	qaWriter.Close()
	limiter.Close()
	if err := redisClient.Close(); err != nil {
		appLogger.Error("Redis close failed", "error", err)
	}
	if err := publishPool.Close(); err != nil {
		appLogger.Error("Publish pool close failed", "error", err)
	}
	memoryMonitor.Stop()

	appLogger.Info("Server exited")
}

// postAlertJSON delivers a fired alert to the configured webhook.
func postAlertJSON(ctx context.Context, url string, alert *monitoring.Alert) error {
	payload, err := encoding.Marshal(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
