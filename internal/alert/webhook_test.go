package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

func actionableSummary() *models.TickSummary {
	summary := &models.TickSummary{StartedAt: time.Now().UTC()}
	up := 5
	summary.Add(&models.Decision{
		GroupID:         1,
		Action:          models.ActionScaleUp,
		Reason:          models.ReasonDynamicScaleUp,
		DesiredCapacity: &up,
		ExecutionResult: &models.ExecutionResult{Status: models.ExecutionSuccess},
	})
	summary.Add(&models.Decision{GroupID: 2, Action: models.ActionNone, Reason: models.ReasonOptimalCountReached})
	return summary
}

func TestNotifyTickPostsActions(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	}))
	defer server.Close()

	n := NewNotifier(server.URL, time.Second)
	n.NotifyTick(context.Background(), actionableSummary())

	require.NotEmpty(t, body)
	var got struct {
		Source  string             `json:"source"`
		Actions []*models.Decision `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "qps-autoscaler", got.Source)
	require.Len(t, got.Actions, 1, "only acted-upon decisions are included")
	assert.Equal(t, 1, got.Actions[0].GroupID)
}

func TestNotifyTickSkipsQuietTicks(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	summary := &models.TickSummary{StartedAt: time.Now().UTC()}
	summary.Add(&models.Decision{GroupID: 1, Action: models.ActionNone, Reason: models.ReasonOptimalCountReached})

	NewNotifier(server.URL, time.Second).NotifyTick(context.Background(), summary)
	assert.Zero(t, calls)
}

func TestNotifyTickDisabledWithoutURL(t *testing.T) {
	n := NewNotifier("", time.Second)
	assert.False(t, n.Enabled())
	// Must not panic or attempt delivery.
	n.NotifyTick(context.Background(), actionableSummary())
}

func TestNotifyTickSurvivesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	// Failure is logged, not returned.
	NewNotifier(server.URL, time.Second).NotifyTick(context.Background(), actionableSummary())
}
