package controller

import (
	"context"
	"fmt"

	"github.com/OldStager01/qps-autoscaler/internal/logger"
	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

// GroupStatus is one entry of the status report: the catalog row, its runtime
// state, and a live ASG snapshot when reachable.
type GroupStatus struct {
	Group *models.ResourceGroup     `json:"group"`
	State *models.GroupRuntimeState `json:"state"`
	ASG   *models.ASGStatus         `json:"asg,omitempty"`
	Error string                    `json:"error,omitempty"`
}

// Status reports every enabled group without evaluating anything. ASG reads
// that fail degrade that entry rather than the whole report.
func (c *Controller) Status(ctx context.Context) ([]*GroupStatus, error) {
	groups, err := c.catalog.ListEnabledGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load resource groups: %w", err)
	}

	report := make([]*GroupStatus, 0, len(groups))
	for _, group := range groups {
		entry := &GroupStatus{Group: group}

		state, err := c.store.GetState(ctx, group.ID)
		if err != nil {
			entry.Error = err.Error()
			report = append(report, entry)
			continue
		}
		entry.State = state

		status, err := c.asg.GetStatus(ctx, group.ASGID)
		if err != nil {
			logger.WithGroup(group.ID).Warnf("Status read failed for %s: %v", group.ASGID, err)
			entry.Error = err.Error()
		} else {
			entry.ASG = status
		}
		report = append(report, entry)
	}
	return report, nil
}

// Check is one validation probe outcome.
type Check struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ValidationReport aggregates configuration and connectivity checks.
type ValidationReport struct {
	Valid  bool    `json:"valid"`
	Checks []Check `json:"checks"`
}

// Validate probes the catalog, the monitoring API and every configured
// scaling group. It never mutates anything.
func (c *Controller) Validate(ctx context.Context) *ValidationReport {
	report := &ValidationReport{Valid: true}
	add := func(name string, err error) {
		check := Check{Name: name, OK: err == nil}
		if err != nil {
			check.Error = err.Error()
			report.Valid = false
		}
		report.Checks = append(report.Checks, check)
	}

	if c.health != nil {
		add("database", c.health.HealthCheck(ctx))
	}

	groups, err := c.catalog.ListEnabledGroups(ctx)
	add("catalog", err)
	if err != nil {
		return report
	}

	for _, group := range groups {
		add(fmt.Sprintf("group_%d_config", group.ID), group.Validate())
	}

	add("monitoring_api", c.metrics.CheckAvailability(ctx))

	for _, group := range groups {
		_, err := c.asg.GetStatus(ctx, group.ASGID)
		add(fmt.Sprintf("group_%d_asg", group.ID), err)
	}
	return report
}
