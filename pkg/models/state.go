package models

import "time"

// GroupRuntimeState is the per-group mutable row in resource_group_state.
// It is upserted after every evaluation and has no TTL.
type GroupRuntimeState struct {
	ResourceGroupID   int        `json:"resource_group_id"`
	LastEvaluatedAt   *time.Time `json:"last_evaluated_at,omitempty"`
	CooldownUntil     *time.Time `json:"cooldown_until,omitempty"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	CircuitOpenUntil  *time.Time `json:"circuit_open_until,omitempty"`
	Suspended         bool       `json:"suspended"`
	LatestQPS         *float64   `json:"latest_qps,omitempty"`
	LatestCapacity    *int       `json:"latest_capacity,omitempty"`
}

// InCooldown reports whether the locally recorded cooldown deadline is still
// in the future, and how long remains.
func (s *GroupRuntimeState) InCooldown(now time.Time) (bool, time.Duration) {
	if s == nil || s.CooldownUntil == nil || !s.CooldownUntil.After(now) {
		return false, 0
	}
	return true, s.CooldownUntil.Sub(now)
}

// CircuitOpen reports whether evaluations are short-circuited at time now.
func (s *GroupRuntimeState) CircuitOpen(now time.Time) bool {
	return s != nil && s.CircuitOpenUntil != nil && s.CircuitOpenUntil.After(now)
}

// StateFields is the whitelisted set of writable resource_group_state columns.
// Unknown keys passed to the store are dropped with a warning.
type StateFields map[string]any

const (
	FieldLastEvaluatedAt   = "last_evaluated_at"
	FieldCooldownUntil     = "cooldown_until"
	FieldConsecutiveErrors = "consecutive_errors"
	FieldCircuitOpenUntil  = "circuit_open_until"
	FieldSuspended         = "suspended"
	FieldLatestQPS         = "latest_qps"
	FieldLatestCapacity    = "latest_capacity"
)
