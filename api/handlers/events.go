package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/qps-autoscaler/internal/alert"
	"github.com/OldStager01/qps-autoscaler/internal/controller"
	"github.com/OldStager01/qps-autoscaler/internal/logger"
	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

// Event types accepted by the invocation endpoint.
const (
	EventScalingEvaluation = "scaling_evaluation"
	EventStatus            = "status"
	EventValidation        = "validation"
)

type EventRequest struct {
	Type string `json:"type"`
}

// Result is the typed payload inside the response envelope.
type Result struct {
	Action  string `json:"action"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Results any    `json:"results,omitempty"`
}

// Response is the invocation envelope. statusCode mirrors the HTTP status so
// queue-based invokers that cannot see HTTP headers still get it.
type Response struct {
	StatusCode      int     `json:"statusCode"`
	ExecutionID     string  `json:"execution_id"`
	Timestamp       string  `json:"timestamp"`
	Result          *Result `json:"result,omitempty"`
	ExecutionTimeMS int64   `json:"execution_time_ms"`
	Error           string  `json:"error,omitempty"`
}

// EventHandler dispatches invocation events to the controller.
type EventHandler struct {
	controller *controller.Controller
	notifier   *alert.Notifier
}

func NewEventHandler(ctrl *controller.Controller, notifier *alert.Notifier) *EventHandler {
	return &EventHandler{controller: ctrl, notifier: notifier}
}

// Handle is the single invocation entrypoint. Per-group failures never turn
// into a non-200: only a tick that could not start at all does.
func (h *EventHandler) Handle(c *gin.Context) {
	started := time.Now().UTC()
	executionID := models.NewExecutionID()
	log := logger.WithExecution(executionID)

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.respond(c, started, executionID, http.StatusBadRequest, nil, "invalid request body: "+err.Error())
		return
	}
	if req.Type == "" {
		req.Type = EventScalingEvaluation
	}
	log.WithField("event_type", req.Type).Info("Handling invocation")

	switch req.Type {
	case EventScalingEvaluation:
		h.handleScalingEvaluation(c, started, executionID)
	case EventStatus:
		h.handleStatus(c, started, executionID)
	case EventValidation:
		h.handleValidation(c, started, executionID)
	default:
		h.respond(c, started, executionID, http.StatusBadRequest, nil, "unknown event type: "+req.Type)
	}
}

func (h *EventHandler) handleScalingEvaluation(c *gin.Context, started time.Time, executionID string) {
	summary, err := h.controller.RunTick(c.Request.Context())
	if err != nil {
		h.respond(c, started, executionID, http.StatusInternalServerError, nil, err.Error())
		return
	}

	if h.notifier.Enabled() {
		// Alert delivery runs on the request context but never fails the
		// invocation.
		h.notifier.NotifyTick(context.WithoutCancel(c.Request.Context()), summary)
	}

	status := "success"
	if summary.Totals.Errors > 0 {
		status = "completed_with_errors"
	}
	h.respond(c, started, executionID, http.StatusOK, &Result{
		Action:  EventScalingEvaluation,
		Status:  status,
		Message: tickMessage(summary),
		Results: summary,
	}, "")
}

func (h *EventHandler) handleStatus(c *gin.Context, started time.Time, executionID string) {
	report, err := h.controller.Status(c.Request.Context())
	if err != nil {
		h.respond(c, started, executionID, http.StatusInternalServerError, nil, err.Error())
		return
	}
	h.respond(c, started, executionID, http.StatusOK, &Result{
		Action:  EventStatus,
		Status:  "success",
		Results: report,
	}, "")
}

func (h *EventHandler) handleValidation(c *gin.Context, started time.Time, executionID string) {
	report := h.controller.Validate(c.Request.Context())
	status := "success"
	if !report.Valid {
		status = "invalid"
	}
	h.respond(c, started, executionID, http.StatusOK, &Result{
		Action:  EventValidation,
		Status:  status,
		Results: report,
	}, "")
}

func (h *EventHandler) respond(c *gin.Context, started time.Time, executionID string, code int, result *Result, errMsg string) {
	c.JSON(code, Response{
		StatusCode:      code,
		ExecutionID:     executionID,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Result:          result,
		ExecutionTimeMS: time.Since(started).Milliseconds(),
		Error:           errMsg,
	})
}

func tickMessage(summary *models.TickSummary) string {
	if summary.Totals.Groups == 0 {
		return "no enabled resource groups"
	}
	if summary.Actionable() {
		return "scaling actions taken"
	}
	return "no scaling action needed"
}
