package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/OldStager01/qps-autoscaler/internal/logger"
	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

const defaultTimeout = 10 * time.Second

// Notifier posts tick summaries that contain scaling actions to an optional
// webhook. Delivery failures are logged, never propagated: alerting must not
// fail a tick.
type Notifier struct {
	url        string
	httpClient *http.Client
}

func NewNotifier(url string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Notifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

type payload struct {
	Source    string             `json:"source"`
	Timestamp string             `json:"timestamp"`
	Totals    models.TickTotals  `json:"totals"`
	Actions   []*models.Decision `json:"actions"`
}

// NotifyTick sends a summary when at least one group scaled (or would have,
// under dry-run). Quiet ticks produce no traffic.
func (n *Notifier) NotifyTick(ctx context.Context, summary *models.TickSummary) {
	if !n.Enabled() || !summary.Actionable() {
		return
	}

	var actions []*models.Decision
	for _, d := range summary.Decisions {
		if d.Acted() {
			actions = append(actions, d)
		}
	}

	body, err := json.Marshal(payload{
		Source:    "qps-autoscaler",
		Timestamp: summary.StartedAt.Format(time.RFC3339),
		Totals:    summary.Totals,
		Actions:   actions,
	})
	if err != nil {
		logger.Errorf("Failed to encode alert payload: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		logger.Errorf("Failed to build alert request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		logger.Errorf("Failed to deliver alert: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Errorf("Alert webhook returned status %d", resp.StatusCode)
		return
	}
	logger.WithField("actions", len(actions)).Info("Alert delivered")
}
