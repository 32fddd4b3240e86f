package models

import (
	"fmt"
	"time"
)

// ResourceGroup is one catalog row: a load balancer whose QPS drives an ASG.
// Rows are read at tick start and treated as immutable for the duration of
// the tick.
type ResourceGroup struct {
	ID                    int     `json:"id"`
	ALBID                 string  `json:"alb_id"`
	ASGID                 string  `json:"asg_id"`
	Region                string  `json:"region"`
	TargetQPSPerInstance  float64 `json:"target_qps_per_instance"`
	ScaleUpThreshold      float64 `json:"scale_up_threshold"`
	ScaleDownThreshold    float64 `json:"scale_down_threshold"`
	EnableDynamicScaling  bool    `json:"enable_dynamic_scaling"`
	MaxScaleUpPerAction   int     `json:"max_scale_up_per_action"`
	MaxScaleDownPerAction int     `json:"max_scale_down_per_action"`
	ScaleUpCooldownSec    int     `json:"scale_up_cooldown_seconds"`
	ScaleDownCooldownSec  int     `json:"scale_down_cooldown_seconds"`
	GeneralCooldownSec    int     `json:"general_cooldown_seconds"`
	MetricPeriodSec       int     `json:"metric_period_seconds"`
	DryRun                bool    `json:"dry_run"`
	Enabled               bool    `json:"enabled"`
}

func (g *ResourceGroup) Validate() error {
	if g.ALBID == "" {
		return fmt.Errorf("group %d: alb_id is required", g.ID)
	}
	if g.ASGID == "" {
		return fmt.Errorf("group %d: asg_id is required", g.ID)
	}
	if g.TargetQPSPerInstance <= 0 {
		return fmt.Errorf("group %d: target_qps_per_instance must be > 0", g.ID)
	}
	if g.ScaleUpThreshold <= 0 || g.ScaleUpThreshold > 1 {
		return fmt.Errorf("group %d: scale_up_threshold must be in (0, 1]", g.ID)
	}
	if g.ScaleDownThreshold <= 0 || g.ScaleDownThreshold >= g.ScaleUpThreshold {
		return fmt.Errorf("group %d: scale_down_threshold must be in (0, scale_up_threshold)", g.ID)
	}
	if g.MetricPeriodSec <= 0 {
		return fmt.Errorf("group %d: metric_period_seconds must be > 0", g.ID)
	}
	if g.ScaleUpCooldownSec < 0 || g.ScaleDownCooldownSec < 0 || g.GeneralCooldownSec < 0 {
		return fmt.Errorf("group %d: cooldown periods must be >= 0", g.ID)
	}
	if g.MaxScaleUpPerAction < 0 || g.MaxScaleDownPerAction < 0 {
		return fmt.Errorf("group %d: per-action caps must be >= 0 (0 = unbounded)", g.ID)
	}
	return nil
}

// ScaleUpQPSThreshold is the static-mode trigger level for adding capacity.
func (g *ResourceGroup) ScaleUpQPSThreshold() float64 {
	return g.TargetQPSPerInstance * g.ScaleUpThreshold
}

// ScaleDownQPSThreshold is the static-mode trigger level for removing capacity.
func (g *ResourceGroup) ScaleDownQPSThreshold() float64 {
	return g.TargetQPSPerInstance * g.ScaleDownThreshold
}

// CooldownFor returns the direction-specific cooldown applied after an action.
func (g *ResourceGroup) CooldownFor(action ScalingAction) time.Duration {
	switch action {
	case ActionScaleUp:
		return time.Duration(g.ScaleUpCooldownSec) * time.Second
	case ActionScaleDown:
		return time.Duration(g.ScaleDownCooldownSec) * time.Second
	default:
		return 0
	}
}

func (g *ResourceGroup) MetricPeriod() time.Duration {
	return time.Duration(g.MetricPeriodSec) * time.Second
}
