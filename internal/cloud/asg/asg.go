package asg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OldStager01/qps-autoscaler/internal/cloud/api"
	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

const (
	actionDescribeGroups     = "DescribeScalingGroups"
	actionDescribeActivities = "DescribeScalingActivities"
	actionModifyGroup        = "ModifyScalingGroup"
	apiVersion               = "2020-01-01"

	// Activity types as reported by the provider's activity log.
	providerScaleOut = "ScaleOut"
	providerScaleIn  = "ScaleIn"

	defaultActivityPageSize = 20
)

var ErrGroupNotFound = fmt.Errorf("scaling group not found")

// Groups wraps the auto scaling control-plane API.
type Groups struct {
	caller api.Caller
}

func New(caller api.Caller) *Groups {
	return &Groups{caller: caller}
}

type describeGroupsRequest struct {
	ScalingGroupIDs []string `json:"ScalingGroupIds"`
}

type describeGroupsResult struct {
	ScalingGroups []struct {
		ScalingGroupID       string `json:"ScalingGroupId"`
		LifecycleState       string `json:"LifecycleState"`
		MinInstanceNumber    int    `json:"MinInstanceNumber"`
		MaxInstanceNumber    int    `json:"MaxInstanceNumber"`
		DesireInstanceNumber int    `json:"DesireInstanceNumber"`
		TotalInstanceCount   int    `json:"TotalInstanceCount"`
	} `json:"ScalingGroups"`
}

// GetStatus reads the current capacity snapshot of one scaling group.
func (g *Groups) GetStatus(ctx context.Context, asgID string) (*models.ASGStatus, error) {
	req := describeGroupsRequest{ScalingGroupIDs: []string{asgID}}
	var result describeGroupsResult
	if err := g.caller.Call(ctx, api.ServiceAutoScaling, actionDescribeGroups, apiVersion, req, &result); err != nil {
		return nil, fmt.Errorf("failed to describe scaling group %s: %w", asgID, err)
	}
	if len(result.ScalingGroups) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, asgID)
	}

	sg := result.ScalingGroups[0]
	return &models.ASGStatus{
		ASGID:            sg.ScalingGroupID,
		LifecycleState:   sg.LifecycleState,
		MinInstances:     sg.MinInstanceNumber,
		MaxInstances:     sg.MaxInstanceNumber,
		DesiredInstances: sg.DesireInstanceNumber,
		CurrentInstances: sg.TotalInstanceCount,
	}, nil
}

type describeActivitiesRequest struct {
	ScalingGroupID string `json:"ScalingGroupId"`
	PageSize       int    `json:"PageSize"`
	PageNumber     int    `json:"PageNumber"`
}

type describeActivitiesResult struct {
	ScalingActivities []struct {
		ActivityType string `json:"ActivityType"`
		StatusCode   string `json:"StatusCode"`
		CreatedAt    string `json:"CreatedAt"`
	} `json:"ScalingActivities"`
}

// ListRecentActivities returns the newest entries of the group's own activity
// log, most recent first. The cooldown gate reads these.
func (g *Groups) ListRecentActivities(ctx context.Context, asgID string, pageSize int) ([]*models.ASGActivity, error) {
	if pageSize <= 0 {
		pageSize = defaultActivityPageSize
	}
	req := describeActivitiesRequest{ScalingGroupID: asgID, PageSize: pageSize, PageNumber: 1}
	var result describeActivitiesResult
	if err := g.caller.Call(ctx, api.ServiceAutoScaling, actionDescribeActivities, apiVersion, req, &result); err != nil {
		return nil, fmt.Errorf("failed to list activities for %s: %w", asgID, err)
	}

	activities := make([]*models.ASGActivity, 0, len(result.ScalingActivities))
	for _, raw := range result.ScalingActivities {
		activity := &models.ASGActivity{
			StatusCode: models.ASGActivityStatus(raw.StatusCode),
		}
		switch raw.ActivityType {
		case providerScaleOut:
			activity.ActivityType = models.ActivityScaleOut
		case providerScaleIn:
			activity.ActivityType = models.ActivityScaleIn
		default:
			continue
		}
		if ts, err := time.Parse(time.RFC3339, raw.CreatedAt); err == nil {
			activity.CreatedAt = ts
		}
		activities = append(activities, activity)
	}
	return activities, nil
}

// IsActivityInProgress reports whether the group's latest activity is still
// Init or Running. A group mid-scale must not receive another resize.
func (g *Groups) IsActivityInProgress(ctx context.Context, asgID string) (bool, error) {
	activities, err := g.ListRecentActivities(ctx, asgID, 1)
	if err != nil {
		return false, err
	}
	return len(activities) > 0 && activities[0].InProgress(), nil
}

type modifyGroupRequest struct {
	ScalingGroupID       string `json:"ScalingGroupId"`
	DesireInstanceNumber int    `json:"DesireInstanceNumber"`
}

type modifyGroupResult struct {
	ScalingGroupID string `json:"ScalingGroupId"`
}

// ModifyCapacity sets the group's desired instance count. desired must already
// be clamped to the group's [min, max]; the provider rejects out-of-range
// values, so this double-checks before issuing the write.
func (g *Groups) ModifyCapacity(ctx context.Context, status *models.ASGStatus, desired int) (string, error) {
	if desired < status.MinInstances || desired > status.MaxInstances {
		return "", fmt.Errorf("desired capacity %d outside [%d, %d] for %s",
			desired, status.MinInstances, status.MaxInstances, status.ASGID)
	}

	req := modifyGroupRequest{ScalingGroupID: status.ASGID, DesireInstanceNumber: desired}
	var result modifyGroupResult
	if err := g.caller.Call(ctx, api.ServiceAutoScaling, actionModifyGroup, apiVersion, req, &result); err != nil {
		return "", fmt.Errorf("failed to modify capacity of %s: %w", status.ASGID, err)
	}

	ack, _ := json.Marshal(map[string]any{
		"scaling_group_id": result.ScalingGroupID,
		"desired_capacity": desired,
	})
	return string(ack), nil
}
