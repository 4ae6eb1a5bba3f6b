package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/airport-borders/internal/config"
	"github.com/sells-group/airport-borders/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate       AlertType = "run_failure_rate"
	AlertUnassignedRate       AlertType = "unassigned_rate"
	AlertUnassignedRegression AlertType = "unassigned_regression"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.Policy
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	retry := resilience.DefaultPolicy()
	retry.OnRetry = resilience.LogRetries("monitoring webhook")
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  retry,
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Run failure rate, once enough runs have finished to mean something.
	finished := snap.RunsComplete + snap.RunsFailed
	if finished >= 5 && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Run failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.FailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.RunsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if snap.Latest == nil {
		return alerts
	}
	latest := snap.Latest.Stats

	if rate := snap.UnassignedRate(); a.cfg.UnassignedRateThreshold > 0 && rate > a.cfg.UnassignedRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertUnassignedRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Run %s left %d of %d airports unassigned (%.1f%%, threshold %.1f%%)",
				snap.Latest.ID, latest.Unassigned, latest.Points, rate*100, a.cfg.UnassignedRateThreshold*100,
			),
			Details: map[string]any{
				"run_id":     snap.Latest.ID,
				"unassigned": latest.Unassigned,
				"points":     latest.Points,
				"rate":       rate,
			},
			Timestamp: now,
		})
	}

	if snap.Previous != nil && a.cfg.MaxUnassignedIncrease > 0 {
		increase := latest.Unassigned - snap.Previous.Stats.Unassigned
		if increase > a.cfg.MaxUnassignedIncrease {
			alerts = append(alerts, Alert{
				Type:     AlertUnassignedRegression,
				Severity: "high",
				Message: fmt.Sprintf(
					"Unassigned airports rose by %d (from %d in run %s to %d in run %s)",
					increase, snap.Previous.Stats.Unassigned, snap.Previous.ID, latest.Unassigned, snap.Latest.ID,
				),
				Details: map[string]any{
					"run_id":          snap.Latest.ID,
					"previous_run_id": snap.Previous.ID,
					"increase":        increase,
					"max_increase":    a.cfg.MaxUnassignedIncrease,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := resilience.Retry(ctx, a.retry, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return &resilience.StatusError{URL: a.cfg.WebhookURL, StatusCode: resp.StatusCode}
	}
	return nil
}
