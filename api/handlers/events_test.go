package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/qps-autoscaler/internal/alert"
	"github.com/OldStager01/qps-autoscaler/internal/controller"
	"github.com/OldStager01/qps-autoscaler/internal/store"
	"github.com/OldStager01/qps-autoscaler/pkg/config"
	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

type stubEvaluator struct{}

func (stubEvaluator) Evaluate(ctx context.Context, group *models.ResourceGroup, prefetchedQPS *float64) *models.Decision {
	return &models.Decision{
		GroupID:   group.ID,
		Timestamp: time.Now().UTC(),
		Action:    models.ActionNone,
		Reason:    models.ReasonOptimalCountReached,
	}
}

type stubBatcher struct{}

func (stubBatcher) BatchAverageQPS(ctx context.Context, lbIDs []string, window time.Duration) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (stubBatcher) CheckAvailability(ctx context.Context) error { return nil }

type stubASGReader struct{}

func (stubASGReader) GetStatus(ctx context.Context, asgID string) (*models.ASGStatus, error) {
	return &models.ASGStatus{ASGID: asgID, MinInstances: 1, MaxInstances: 10, CurrentInstances: 2}, nil
}

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	st := store.NewMemoryStore(&models.ResourceGroup{
		ID:                   1,
		ALBID:                "alb-1",
		ASGID:                "asg-1",
		TargetQPSPerInstance: 50,
		ScaleUpThreshold:     0.8,
		ScaleDownThreshold:   0.6,
		MetricPeriodSec:      60,
		Enabled:              true,
	})
	ctrl := controller.New(st, st, stubEvaluator{}, stubBatcher{}, stubASGReader{}, config.ControllerConfig{
		Parallelism:  2,
		TickDeadline: 5 * time.Second,
		CallTimeout:  time.Second,
	})
	handler := NewEventHandler(ctrl, alert.NewNotifier("", 0))

	router := gin.New()
	router.POST("/v1/events", handler.Handle)
	return router
}

func post(t *testing.T, router *gin.Engine, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHandleScalingEvaluation(t *testing.T) {
	router := testRouter()
	rec, resp := post(t, router, `{"type": "scaling_evaluation"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.ExecutionID)
	require.NotNil(t, resp.Result)
	assert.Equal(t, EventScalingEvaluation, resp.Result.Action)
	assert.Equal(t, "success", resp.Result.Status)
	assert.Empty(t, resp.Error)
}

func TestHandleDefaultsToScalingEvaluation(t *testing.T) {
	router := testRouter()
	rec, resp := post(t, router, `{}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.Result)
	assert.Equal(t, EventScalingEvaluation, resp.Result.Action)
}

func TestHandleStatusEvent(t *testing.T) {
	router := testRouter()
	rec, resp := post(t, router, `{"type": "status"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.Result)
	assert.Equal(t, EventStatus, resp.Result.Action)
	assert.Equal(t, "success", resp.Result.Status)
	assert.NotNil(t, resp.Result.Results)
}

func TestHandleValidationEvent(t *testing.T) {
	router := testRouter()
	rec, resp := post(t, router, `{"type": "validation"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.Result)
	assert.Equal(t, EventValidation, resp.Result.Action)
	assert.Equal(t, "success", resp.Result.Status)
}

func TestHandleUnknownEventType(t *testing.T) {
	router := testRouter()
	rec, resp := post(t, router, `{"type": "reboot"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error, "unknown event type")
}

func TestHandleMalformedBody(t *testing.T) {
	router := testRouter()
	rec, resp := post(t, router, `{"type":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error, "invalid request body")
}
