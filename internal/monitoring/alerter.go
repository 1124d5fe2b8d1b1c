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

	"github.com/sells-group/failure-kb/internal/config"
	"github.com/sells-group/failure-kb/internal/harvest"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertPendingBacklog   AlertType = "pending_classification_backlog"
	AlertRecurringFailure AlertType = "recurring_failure"
	AlertNewFailures      AlertType = "harvest_new_failures"
	AlertHarvestFetch     AlertType = "harvest_fetch_failure"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type" yaml:"type"`
	Severity  string         `json:"severity" yaml:"severity"`
	Message   string         `json:"message" yaml:"message"`
	Details   map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
}

// Alerter evaluates snapshots and harvest summaries against configured
// thresholds and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.PendingThreshold > 0 && snap.Pending >= a.cfg.PendingThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPendingBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d failures await classification (threshold %d, classification rate %.1f%%)",
				snap.Pending, a.cfg.PendingThreshold, snap.ClassificationRate,
			),
			Details: map[string]any{
				"pending":             snap.Pending,
				"threshold":           a.cfg.PendingThreshold,
				"classification_rate": snap.ClassificationRate,
			},
			Timestamp: now,
		})
	}

	if a.cfg.RecurrenceThreshold > 0 && snap.TopTestCaseFailures >= a.cfg.RecurrenceThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRecurringFailure,
			Severity: "high",
			Message: fmt.Sprintf(
				"Test case %q has failed %d times (threshold %d)",
				snap.TopTestCase, snap.TopTestCaseFailures, a.cfg.RecurrenceThreshold,
			),
			Details: map[string]any{
				"testCase":  snap.TopTestCase,
				"failures":  snap.TopTestCaseFailures,
				"threshold": a.cfg.RecurrenceThreshold,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// EvaluateHarvest checks a harvest summary and returns any alerts.
func (a *Alerter) EvaluateHarvest(s *harvest.Summary) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.NewFailureThreshold > 0 && s.New >= a.cfg.NewFailureThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertNewFailures,
			Severity: "high",
			Message: fmt.Sprintf(
				"Harvest found %d new failures across %d projects (threshold %d)",
				s.New, len(s.Projects), a.cfg.NewFailureThreshold,
			),
			Details: map[string]any{
				"new":         s.New,
				"recurrences": s.Recurrences,
				"threshold":   a.cfg.NewFailureThreshold,
			},
			Timestamp: now,
		})
	}

	if s.FetchErrors > 0 {
		var failed []string
		for _, p := range s.Projects {
			if p.FetchError != "" {
				failed = append(failed, p.ProjectName)
			}
		}
		alerts = append(alerts, Alert{
			Type:     AlertHarvestFetch,
			Severity: "high",
			Message:  fmt.Sprintf("%d project(s) could not be fetched", s.FetchErrors),
			Details: map[string]any{
				"projects": failed,
			},
			Timestamp: now,
		})
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
		if err := a.sendWebhook(ctx, alert); err != nil {
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
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
