package models

import (
	"fmt"
	"time"
)

type ScalingAction string

const (
	ActionNone      ScalingAction = "none"
	ActionScaleUp   ScalingAction = "scale_up"
	ActionScaleDown ScalingAction = "scale_down"
)

// Reason is the enumerated explanation attached to every Decision.
type Reason string

const (
	ReasonScalingInProgress    Reason = "scaling_in_progress"
	ReasonSuspended            Reason = "suspended"
	ReasonCircuitOpen          Reason = "circuit_open"
	ReasonMetricsUnavailable   Reason = "metrics_unavailable"
	ReasonDynamicScaleUp       Reason = "dynamic_scaling_scale_up"
	ReasonDynamicScaleDown     Reason = "dynamic_scaling_scale_down"
	ReasonQPSAboveThreshold    Reason = "qps_above_threshold"
	ReasonQPSBelowThreshold    Reason = "qps_below_threshold"
	ReasonAtASGMinCapacity     Reason = "at_asg_min_capacity"
	ReasonAtASGMaxCapacity     Reason = "at_asg_max_capacity"
	ReasonOptimalCountReached  Reason = "optimal_instance_count_reached"
	ReasonCooldownGeneral      Reason = "cooldown_general"
	ReasonCooldownScaleUp      Reason = "cooldown_scale_up"
	ReasonCooldownScaleDown    Reason = "cooldown_scale_down"
	ReasonDuplicateActivity    Reason = "duplicate_activity"
	ReasonASGStatusError       Reason = "asg_status_error"
	ReasonEvaluationError      Reason = "evaluation_error"
	ReasonTimeout              Reason = "timeout"
	ReasonMisconfiguredTarget  Reason = "misconfigured_target_qps"
)

type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionError   ExecutionStatus = "error"
	ExecutionDryRun  ExecutionStatus = "dry_run"
	ExecutionSkipped ExecutionStatus = "skipped"
)

// ExecutionResult records the outcome of the ASG write (or its dry-run stand-in).
type ExecutionResult struct {
	Status   ExecutionStatus `json:"status"`
	Message  string          `json:"message,omitempty"`
	Response string          `json:"response,omitempty"`
}

// Decision is the fixed per-group evaluation record. Optional fields are
// populated only when the evaluation reached the corresponding step.
type Decision struct {
	GroupID          int              `json:"group_id"`
	Timestamp        time.Time        `json:"timestamp"`
	Action           ScalingAction    `json:"action"`
	Reason           Reason           `json:"reason"`
	CurrentQPS       *float64         `json:"current_qps,omitempty"`
	CurrentInstances *int             `json:"current_instances,omitempty"`
	QPSPerInstance   *float64         `json:"qps_per_instance,omitempty"`
	OptimalInstances *int             `json:"optimal_instances,omitempty"`
	RequiredChange   *int             `json:"required_change,omitempty"`
	ScalingAmount    int              `json:"scaling_amount,omitempty"`
	DesiredCapacity  *int             `json:"desired_capacity,omitempty"`
	LimitedBySafety  bool             `json:"limited_by_safety,omitempty"`
	LimitedByASG     bool             `json:"limited_by_asg,omitempty"`
	CooldownRemain   *int             `json:"cooldown_remaining_seconds,omitempty"`
	ActivityKey      string           `json:"activity_key,omitempty"`
	DryRun           bool             `json:"dry_run"`
	ExecutionResult  *ExecutionResult `json:"execution_result,omitempty"`
	Error            string           `json:"error,omitempty"`
}

func (d *Decision) Acted() bool {
	return d.Action == ActionScaleUp || d.Action == ActionScaleDown
}

func (d *Decision) Failed() bool {
	if d.Error != "" {
		return true
	}
	return d.ExecutionResult != nil && d.ExecutionResult.Status == ExecutionError
}

// TimeBucket coarsens now to the idempotency window. Buckets never shrink
// below one minute regardless of the configured metric period.
func TimeBucket(now time.Time, metricPeriod time.Duration) int64 {
	bucket := metricPeriod
	if bucket < time.Minute {
		bucket = time.Minute
	}
	return now.Unix() / int64(bucket.Seconds())
}

// ActivityKey is the dedup token guarding duplicate resizes: identical intent
// (same group, same target capacity) within one time bucket maps to one key.
func ActivityKey(groupID, desiredCapacity int, now time.Time, metricPeriod time.Duration) string {
	return fmt.Sprintf("%d-%d-%d", groupID, desiredCapacity, TimeBucket(now, metricPeriod))
}
