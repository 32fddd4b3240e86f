package models

import "time"

type ActivityStatus string

const (
	ActivitySuccess ActivityStatus = "success"
	ActivityError   ActivityStatus = "error"
	ActivityDryRun  ActivityStatus = "dry_run"
	ActivitySkipped ActivityStatus = "skipped"
)

// ScalingActivity is one append-only audit row, written at the end of each
// acted-upon evaluation. (resource_group_id, activity_key) is unique.
type ScalingActivity struct {
	ID              int            `json:"id"`
	ResourceGroupID int            `json:"resource_group_id"`
	ActivityKey     string         `json:"activity_key"`
	Action          ScalingAction  `json:"action"`
	Status          ActivityStatus `json:"status"`
	EvalQPS         float64        `json:"eval_qps"`
	EvalCapacity    int            `json:"eval_capacity"`
	TargetQPS       float64        `json:"target_qps"`
	Response        string         `json:"response,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ErrorRecord is one append-only errors row. GroupID is nil for
// controller-level failures.
type ErrorRecord struct {
	ID        int       `json:"id"`
	GroupID   *int      `json:"resource_group_id,omitempty"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Context   string    `json:"context,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
