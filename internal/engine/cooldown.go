package engine

import (
	"context"
	"time"

	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

// activityLookback bounds how much of the ASG activity log the gate reads.
const activityLookback = 20

// cooldownBlocked gates an intended action against two layers: the locally
// recorded cooldown deadline, and the ASG's own activity log as the
// authoritative cross-check. The general cooldown blocks either direction;
// the action-specific cooldown blocks the same direction only.
func (e *Engine) cooldownBlocked(
	ctx context.Context,
	group *models.ResourceGroup,
	state *models.GroupRuntimeState,
	action models.ScalingAction,
	now time.Time,
) (bool, models.Reason, time.Duration, error) {
	if inCooldown, remaining := state.InCooldown(now); inCooldown {
		return true, cooldownReason(action), remaining, nil
	}

	activities, err := e.asg.ListRecentActivities(ctx, group.ASGID, activityLookback)
	if err != nil {
		return false, "", 0, err
	}

	general := time.Duration(group.GeneralCooldownSec) * time.Second
	specific := group.CooldownFor(action)

	// Activities arrive newest first, so the first hit has the largest
	// remaining window.
	for _, activity := range activities {
		if !activity.CountsForCooldown() {
			continue
		}
		age := now.Sub(activity.CreatedAt)
		if general > 0 && age < general {
			return true, models.ReasonCooldownGeneral, general - age, nil
		}
		if specific > 0 && activity.Matches(action) && age < specific {
			return true, cooldownReason(action), specific - age, nil
		}
	}
	return false, "", 0, nil
}

func cooldownReason(action models.ScalingAction) models.Reason {
	if action == models.ActionScaleUp {
		return models.ReasonCooldownScaleUp
	}
	return models.ReasonCooldownScaleDown
}
