package api

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/stayops/console/internal/alerts"
	"github.com/stayops/console/internal/session"
)

// Client talks to the platform's REST backend. Every call carries the bearer
// token; the server's response is authoritative and callers merge it into
// local state rather than mutating optimistically.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a REST client for the given base URL. The token is
// attached as an Authorization: Bearer header on every request.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, logger: logger}
}

// AlertSummary fetches the alert summary counts.
func (c *Client) AlertSummary(ctx context.Context) (alerts.Summary, error) {
	var summary alerts.Summary
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&summary).
		Get("/api/staff-alerts/summary")
	if err != nil {
		return alerts.Summary{}, fmt.Errorf("failed to fetch alert summary: %w", err)
	}
	if resp.IsError() {
		return alerts.Summary{}, fmt.Errorf("alert summary request failed: %s", resp.Status())
	}
	return summary, nil
}

// RecentAlerts fetches the most recent alerts, newest first, up to limit.
func (c *Client) RecentAlerts(ctx context.Context, limit int) ([]alerts.Alert, error) {
	var page []alerts.Alert
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&page).
		Get("/api/staff-alerts")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent alerts: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("recent alerts request failed: %s", resp.Status())
	}
	return page, nil
}

type actionRequest struct {
	Notes string `json:"notes,omitempty"`
}

// AlertAction executes a staff action against an alert and returns the
// updated alert as the server sees it.
func (c *Client) AlertAction(ctx context.Context, alertID string, action alerts.Action, notes string) (alerts.Alert, error) {
	var updated alerts.Alert
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(actionRequest{Notes: notes}).
		SetResult(&updated).
		Post(fmt.Sprintf("/api/staff-alerts/%s/%s", alertID, action))
	if err != nil {
		return alerts.Alert{}, fmt.Errorf("failed to %s alert %s: %w", action, alertID, err)
	}
	if resp.IsError() {
		return alerts.Alert{}, fmt.Errorf("%s on alert %s failed: %s", action, alertID, resp.Status())
	}

	c.logger.Info("Alert action applied",
		zap.String("alert_id", alertID),
		zap.String("action", string(action)),
		zap.String("status", string(updated.Status)))
	return updated, nil
}

// Sessions fetches the current login sessions with their risk records.
func (c *Client) Sessions(ctx context.Context) ([]session.Record, error) {
	var records []session.Record
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&records).
		Get("/api/sessions")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("sessions request failed: %s", resp.Status())
	}
	return records, nil
}

type riskScoreRequest struct {
	RiskScore int    `json:"risk_score"`
	Reason    string `json:"reason,omitempty"`
}

// UpdateRiskScore sets a session's risk score by administrative action.
func (c *Client) UpdateRiskScore(ctx context.Context, sessionID string, score int, reason string) (session.Record, error) {
	var record session.Record
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(riskScoreRequest{RiskScore: score, Reason: reason}).
		SetResult(&record).
		Patch(fmt.Sprintf("/api/sessions/%s/risk-score", sessionID))
	if err != nil {
		return session.Record{}, fmt.Errorf("failed to update risk score for session %s: %w", sessionID, err)
	}
	if resp.IsError() {
		return session.Record{}, fmt.Errorf("risk score update for session %s failed: %s", sessionID, resp.Status())
	}
	return record, nil
}

// EndSession terminates a login session by administrative action.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post(fmt.Sprintf("/api/sessions/%s/end", sessionID))
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("end session %s failed: %s", sessionID, resp.Status())
	}
	return nil
}
