package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityError    AlertSeverity = "error"
	SeverityCritical AlertSeverity = "critical"
)

// AlertStatus represents the status of an alert
type AlertStatus string

const (
	StatusActive     AlertStatus = "active"
	StatusResolved   AlertStatus = "resolved"
	StatusSuppressed AlertStatus = "suppressed"
)

// Alert represents a monitoring alert
type Alert struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Severity    AlertSeverity     `json:"severity"`
	Status      AlertStatus       `json:"status"`
	Service     string            `json:"service"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Value       float64           `json:"value,omitempty"`
	Threshold   float64           `json:"threshold,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ResolvedAt  *time.Time        `json:"resolved_at,omitempty"`
	FiredAt     time.Time         `json:"fired_at"`
}

// AlertRule defines a rule for generating alerts
type AlertRule struct {
	Name        string
	Query       string  // Metric query name
	Threshold   float64 // Threshold value
	Operator    string  // "gt", "lt", "eq", "ne", "gte", "lte"
	Severity    AlertSeverity
	Service     string
	Description string
	Labels      map[string]string
	Annotations map[string]string
	For         time.Duration // Grace period before an active alert can resolve
}

// AlertNotifier defines the interface for sending alert notifications
type AlertNotifier interface {
	SendAlert(ctx context.Context, alert *Alert) error
	ResolveAlert(ctx context.Context, alert *Alert) error
}

// LogNotifier emits alerts to the structured log stream. Operators tail
// the JSON log in deployment rather than running a separate pager.
type LogNotifier struct {
	logger *Logger
}

// NewLogNotifier creates a notifier backed by the service logger
func NewLogNotifier(logger *Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendAlert logs a fired alert
func (n *LogNotifier) SendAlert(ctx context.Context, alert *Alert) error {
	n.logger.Warn("Alert Fired",
		"alert", alert.Name,
		"severity", string(alert.Severity),
		"service", alert.Service,
		"value", alert.Value,
		"threshold", alert.Threshold,
	)
	return nil
}

// ResolveAlert logs an alert resolution
func (n *LogNotifier) ResolveAlert(ctx context.Context, alert *Alert) error {
	n.logger.Info("Alert Resolved",
		"alert", alert.Name,
		"service", alert.Service,
	)
	return nil
}

// WebhookNotifier posts alerts to an external webhook (e.g. the HITL
// analyst channel). The HTTP delivery is delegated to the configured
// sender so tests can capture payloads.
type WebhookNotifier struct {
	URL  string
	Send func(ctx context.Context, url string, alert *Alert) error
}

// NewWebhookNotifier creates a webhook notifier
func NewWebhookNotifier(url string, send func(ctx context.Context, url string, alert *Alert) error) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Send: send}
}

// SendAlert delivers a fired alert to the webhook
func (w *WebhookNotifier) SendAlert(ctx context.Context, alert *Alert) error {
	if w.Send == nil {
		slog.Info("Webhook alert skipped, no sender configured", "alert", alert.Name)
		return nil
	}
	return w.Send(ctx, w.URL, alert)
}

// ResolveAlert delivers a resolution notification to the webhook
func (w *WebhookNotifier) ResolveAlert(ctx context.Context, alert *Alert) error {
	if w.Send == nil {
		return nil
	}
	return w.Send(ctx, w.URL, alert)
}

// AlertManager evaluates rules against live metrics and notifies
type AlertManager struct {
	rules         []AlertRule
	alerts        map[string]*Alert
	notifiers     []AlertNotifier
	metrics       *Metrics
	logger        *Logger
	checkInterval time.Duration
	mutex         sync.RWMutex
}

// NewAlertManager creates a new alert manager bound to the metrics registry
func NewAlertManager(metrics *Metrics, logger *Logger, checkInterval time.Duration) *AlertManager {
	return &AlertManager{
		rules:         []AlertRule{},
		alerts:        make(map[string]*Alert),
		notifiers:     []AlertNotifier{},
		metrics:       metrics,
		logger:        logger,
		checkInterval: checkInterval,
	}
}

// AddRule adds an alert rule
func (am *AlertManager) AddRule(rule AlertRule) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.rules = append(am.rules, rule)
}

// AddNotifier adds a notifier
func (am *AlertManager) AddNotifier(notifier AlertNotifier) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.notifiers = append(am.notifiers, notifier)
}

// Start begins the alert evaluation loop
func (am *AlertManager) Start(ctx context.Context) {
	ticker := time.NewTicker(am.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			am.EvaluateRules(ctx)
		}
	}
}

// EvaluateRules evaluates all alert rules once
func (am *AlertManager) EvaluateRules(ctx context.Context) {
	am.mutex.RLock()
	rules := make([]AlertRule, len(am.rules))
	copy(rules, am.rules)
	am.mutex.RUnlock()

	for _, rule := range rules {
		am.evaluateRule(ctx, rule)
	}
}

// evaluateRule evaluates a single alert rule against live metrics
func (am *AlertManager) evaluateRule(ctx context.Context, rule AlertRule) {
	currentValue, ok := am.queryMetric(rule.Query)
	if !ok {
		am.logger.SystemLogger("unknown_alert_query", fmt.Sprintf("Unknown query type: %s", rule.Query))
		return
	}

	alertKey := fmt.Sprintf("%s:%s", rule.Service, rule.Name)

	am.mutex.Lock()
	defer am.mutex.Unlock()

	alert, exists := am.alerts[alertKey]
	conditionMet := checkCondition(currentValue, rule.Operator, rule.Threshold)

	switch {
	case conditionMet && !exists:
		alert = &Alert{
			ID:          alertKey,
			Name:        rule.Name,
			Description: rule.Description,
			Severity:    rule.Severity,
			Status:      StatusActive,
			Service:     rule.Service,
			Labels:      rule.Labels,
			Annotations: rule.Annotations,
			Value:       currentValue,
			Threshold:   rule.Threshold,
			CreatedAt:   time.Now(),
			FiredAt:     time.Now(),
		}
		am.alerts[alertKey] = alert
		am.fireAlert(ctx, alert)

	case conditionMet && alert.Status != StatusActive:
		alert.Status = StatusActive
		alert.FiredAt = time.Now()
		alert.Value = currentValue
		am.fireAlert(ctx, alert)

	case !conditionMet && exists && alert.Status == StatusActive:
		if time.Since(alert.FiredAt) > rule.For {
			now := time.Now()
			alert.Status = StatusResolved
			alert.ResolvedAt = &now
			am.resolveAlert(ctx, alert)
		}
	}
}

// queryMetric resolves a rule query name to a live metric value
func (am *AlertManager) queryMetric(query string) (float64, bool) {
	switch query {
	case "error_rate":
		requests := atomic.LoadInt64(&am.metrics.RequestCount)
		errors := atomic.LoadInt64(&am.metrics.ErrorCount)
		if requests == 0 {
			return 0, true
		}
		return float64(errors) / float64(requests) * 100, true

	case "response_time_p95_ms":
		return float64(am.metrics.GetPercentileResponseTime(95)) / 1e6, true

	case "evidence_failure_rate":
		writes := atomic.LoadInt64(&am.metrics.EvidenceWrites)
		failures := atomic.LoadInt64(&am.metrics.EvidenceFailures)
		total := writes + failures
		if total == 0 {
			return 0, true
		}
		return float64(failures) / float64(total) * 100, true

	case "rate_limit_redis_errors":
		return float64(atomic.LoadInt64(&am.metrics.RateLimitRedisErrors)), true

	case "heap_usage_percent":
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		if memStats.HeapSys == 0 {
			return 0, true
		}
		return float64(memStats.HeapInuse) / float64(memStats.HeapSys) * 100, true

	default:
		return 0, false
	}
}

// checkCondition checks if a condition is met
func checkCondition(value float64, operator string, threshold float64) bool {
	switch operator {
	case "gt":
		return value > threshold
	case "lt":
		return value < threshold
	case "eq":
		return value == threshold
	case "ne":
		return value != threshold
	case "gte":
		return value >= threshold
	case "lte":
		return value <= threshold
	default:
		return false
	}
}

// fireAlert fires an alert to all notifiers
func (am *AlertManager) fireAlert(ctx context.Context, alert *Alert) {
	am.logger.SystemLogger("alert_fired", fmt.Sprintf("Alert %s fired with severity %s", alert.Name, alert.Severity))

	for _, notifier := range am.notifiers {
		go func(n AlertNotifier) {
			if err := n.SendAlert(ctx, alert); err != nil {
				am.logger.SystemLogger("alert_notification_failed", fmt.Sprintf("Failed to send alert %s: %v", alert.Name, err))
			}
		}(notifier)
	}
}

// resolveAlert resolves an alert with all notifiers
func (am *AlertManager) resolveAlert(ctx context.Context, alert *Alert) {
	am.logger.SystemLogger("alert_resolved", fmt.Sprintf("Alert %s resolved", alert.Name))

	for _, notifier := range am.notifiers {
		go func(n AlertNotifier) {
			if err := n.ResolveAlert(ctx, alert); err != nil {
				am.logger.SystemLogger("alert_resolution_failed", fmt.Sprintf("Failed to resolve alert %s: %v", alert.Name, err))
			}
		}(notifier)
	}
}

// GetAlerts returns all current alerts
func (am *AlertManager) GetAlerts() map[string]*Alert {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	alerts := make(map[string]*Alert, len(am.alerts))
	for k, v := range am.alerts {
		alerts[k] = v
	}
	return alerts
}

// GetActiveAlerts returns only active alerts
func (am *AlertManager) GetActiveAlerts() map[string]*Alert {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	activeAlerts := make(map[string]*Alert)
	for k, v := range am.alerts {
		if v.Status == StatusActive {
			activeAlerts[k] = v
		}
	}
	return activeAlerts
}

// SilenceAlert silences an alert
func (am *AlertManager) SilenceAlert(alertID string, duration time.Duration) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	if alert, exists := am.alerts[alertID]; exists {
		alert.Status = StatusSuppressed
		am.logger.SystemLogger("alert_silenced", fmt.Sprintf("Alert %s silenced for %v", alert.Name, duration))
	}
}

// DefaultAlertRules covers the failure modes that matter for triage:
// dropped evidence records, degraded routing latency, and rate limiter
// falling back off Redis.
var DefaultAlertRules = []AlertRule{
	{
		Name:        "HighErrorRate",
		Query:       "error_rate",
		Threshold:   10.0,
		Operator:    "gt",
		Severity:    SeverityWarning,
		Service:     "api",
		Description: "Error rate is above 10%",
		For:         5 * time.Minute,
		Annotations: map[string]string{
			"summary": "High error rate on triage API",
		},
	},
	{
		Name:        "SlowRouting",
		Query:       "response_time_p95_ms",
		Threshold:   1000.0,
		Operator:    "gt",
		Severity:    SeverityWarning,
		Service:     "api",
		Description: "p95 response time is above 1000ms",
		For:         2 * time.Minute,
		Annotations: map[string]string{
			"summary": "Routing latency degraded",
		},
	},
	{
		Name:        "EvidenceWriteFailures",
		Query:       "evidence_failure_rate",
		Threshold:   1.0,
		Operator:    "gt",
		Severity:    SeverityCritical,
		Service:     "evidence",
		Description: "More than 1% of evidence archive writes are failing",
		For:         1 * time.Minute,
		Annotations: map[string]string{
			"summary": "Evidence archive is dropping records",
		},
	},
	{
		Name:        "RateLimitRedisErrors",
		Query:       "rate_limit_redis_errors",
		Threshold:   0.0,
		Operator:    "gt",
		Severity:    SeverityError,
		Service:     "ratelimit",
		Description: "Distributed rate limiter is hitting Redis errors",
		For:         5 * time.Minute,
		Annotations: map[string]string{
			"summary": "Rate limiter running on in-process fallback",
		},
	},
	{
		Name:        "HighHeapUsage",
		Query:       "heap_usage_percent",
		Threshold:   90.0,
		Operator:    "gt",
		Severity:    SeverityCritical,
		Service:     "system",
		Description: "Heap usage is above 90%",
		For:         1 * time.Minute,
		Annotations: map[string]string{
			"summary": "High memory pressure",
		},
	},
}
