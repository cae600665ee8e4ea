package monitoring

import (
	"log/slog"
	"os"
	"time"
)

// Logger provides enhanced structured logging with context
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new enhanced logger
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Add timestamp in RFC3339 format
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(method, path, ip, userAgent string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// RouteLogger logs one routed item's outcome
func (l *Logger) RouteLogger(platform, contentID, action string, astroScore, viralityScore float64, watchlist bool, duration time.Duration) {
	l.Info("Item Routed",
		"platform", platform,
		"content_id", contentID,
		"action", action,
		"astro_score", astroScore,
		"virality_score", viralityScore,
		"watchlist", watchlist,
		"duration_ms", duration.Milliseconds(),
	)
}

// ArchiveLogger logs evidence archival operations
func (l *Logger) ArchiveLogger(decision, hash string, success bool, duration time.Duration) {
	hashPrefix := hash
	if len(hashPrefix) > 12 {
		hashPrefix = hashPrefix[:12]
	}

	if !success {
		l.Warn("Evidence Archive Failed",
			"decision", decision,
			"duration_ms", duration.Milliseconds(),
		)
		return
	}
	l.Info("Evidence Archived",
		"decision", decision,
		"sha256_prefix", hashPrefix,
		"duration_ms", duration.Milliseconds(),
	)
}

// QALogger logs QA sampling outcomes
func (l *Logger) QALogger(contentID, reason string, selected bool, projectedReach float64) {
	l.Info("QA Sample Evaluated",
		"content_id", contentID,
		"selected", selected,
		"reason", reason,
		"projected_reach_48h", projectedReach,
	)
}

// APIErrorLogger logs API errors with context
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
	)
}

// PerformanceLogger logs performance metrics
func (l *Logger) PerformanceLogger(metric string, value float64, unit string) {
	l.Info("Performance Metric",
		"metric", metric,
		"value", value,
		"unit", unit,
		"timestamp", time.Now().Format(time.RFC3339),
	)
}

// CacheLogger logs cache operations
func (l *Logger) CacheLogger(operation, key string, hit bool, itemCount int) {
	l.Debug("Cache Operation",
		"operation", operation,
		"key_hash", key[:8]+"...",
		"hit", hit,
		"cache_size", itemCount,
	)
}

// SystemLogger logs system-level events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

// SecurityLogger logs security-related events
func (l *Logger) SecurityLogger(event, ip, userAgent string, details map[string]interface{}) {
	attrs := []any{
		"event", event,
		"ip", ip,
		"user_agent", userAgent,
		"timestamp", time.Now().Format(time.RFC3339),
	}

	for key, value := range details {
		attrs = append(attrs, key, value)
	}

	l.Warn("Security Event", attrs...)
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})
	l.Logger = slog.New(handler)
}

var startTime = time.Now()
