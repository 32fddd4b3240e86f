package models

import "time"

// ASGStatus is a read-only snapshot of a scaling group, fetched per decision.
// CurrentInstances is the healthy-equivalent count supplied by the provider.
type ASGStatus struct {
	ASGID            string `json:"asg_id"`
	LifecycleState   string `json:"lifecycle_state"`
	MinInstances     int    `json:"min_instances"`
	MaxInstances     int    `json:"max_instances"`
	DesiredInstances int    `json:"desired_instances"`
	CurrentInstances int    `json:"current_instances"`
}

// Clamp bounds n to [min, max] and reports which bound applied, if any.
func (s *ASGStatus) Clamp(n int) (clamped int, atMin, atMax bool) {
	if n < s.MinInstances {
		return s.MinInstances, true, false
	}
	if n > s.MaxInstances {
		return s.MaxInstances, false, true
	}
	return n, false, false
}

type ASGActivityType string

const (
	ActivityScaleOut ASGActivityType = "scale_out"
	ActivityScaleIn  ASGActivityType = "scale_in"
)

type ASGActivityStatus string

const (
	ActivityStatusInit           ASGActivityStatus = "Init"
	ActivityStatusRunning        ASGActivityStatus = "Running"
	ActivityStatusSuccess        ASGActivityStatus = "Success"
	ActivityStatusPartialSuccess ASGActivityStatus = "PartialSuccess"
	ActivityStatusFailed         ASGActivityStatus = "Failed"
	ActivityStatusRejected       ASGActivityStatus = "Rejected"
)

// ASGActivity is one entry of the provider's own activity log, newest first.
type ASGActivity struct {
	ActivityType ASGActivityType   `json:"activity_type"`
	StatusCode   ASGActivityStatus `json:"status_code"`
	CreatedAt    time.Time         `json:"created_at"`
}

// InProgress reports whether the activity is still being applied.
func (a *ASGActivity) InProgress() bool {
	return a.StatusCode == ActivityStatusInit || a.StatusCode == ActivityStatusRunning
}

// CountsForCooldown reports whether the activity extends the general cooldown
// window. Failed and Rejected activities never block new actions.
func (a *ASGActivity) CountsForCooldown() bool {
	switch a.StatusCode {
	case ActivityStatusSuccess, ActivityStatusPartialSuccess, ActivityStatusRunning, ActivityStatusInit:
		return true
	}
	return false
}

// Matches reports whether the activity is in the same direction as the
// intended scaling action.
func (a *ASGActivity) Matches(action ScalingAction) bool {
	switch action {
	case ActionScaleUp:
		return a.ActivityType == ActivityScaleOut
	case ActionScaleDown:
		return a.ActivityType == ActivityScaleIn
	}
	return false
}
