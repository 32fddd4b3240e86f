package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/qps-autoscaler/internal/store"
	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

func TestCooldownGeneralBlocksAnyDirection(t *testing.T) {
	group := testGroup()
	group.GeneralCooldownSec = 180
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	asgClient := &fakeASG{activities: []*models.ASGActivity{
		{ActivityType: models.ActivityScaleOut, StatusCode: models.ActivityStatusSuccess, CreatedAt: now.Add(-60 * time.Second)},
	}}
	e := newTestEngine(store.NewMemoryStore(), asgClient, &fakeMetrics{})
	state := &models.GroupRuntimeState{ResourceGroupID: group.ID}

	for _, action := range []models.ScalingAction{models.ActionScaleUp, models.ActionScaleDown} {
		blocked, reason, remaining, err := e.cooldownBlocked(context.Background(), group, state, action, now)
		require.NoError(t, err)
		assert.True(t, blocked, "action %s", action)
		assert.Equal(t, models.ReasonCooldownGeneral, reason)
		assert.Equal(t, 120*time.Second, remaining)
	}
}

func TestCooldownSpecificBlocksSameDirectionOnly(t *testing.T) {
	group := testGroup()
	group.ScaleUpCooldownSec = 300
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	asgClient := &fakeASG{activities: []*models.ASGActivity{
		{ActivityType: models.ActivityScaleOut, StatusCode: models.ActivityStatusSuccess, CreatedAt: now.Add(-100 * time.Second)},
	}}
	e := newTestEngine(store.NewMemoryStore(), asgClient, &fakeMetrics{})
	state := &models.GroupRuntimeState{ResourceGroupID: group.ID}

	blocked, reason, remaining, err := e.cooldownBlocked(context.Background(), group, state, models.ActionScaleUp, now)
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, models.ReasonCooldownScaleUp, reason)
	assert.Equal(t, 200*time.Second, remaining)

	blocked, _, _, err = e.cooldownBlocked(context.Background(), group, state, models.ActionScaleDown, now)
	require.NoError(t, err)
	assert.False(t, blocked, "scale_out activity must not block scale_down")
}

func TestCooldownIgnoresFailedActivities(t *testing.T) {
	group := testGroup()
	group.GeneralCooldownSec = 180
	group.ScaleUpCooldownSec = 300
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	asgClient := &fakeASG{activities: []*models.ASGActivity{
		{ActivityType: models.ActivityScaleOut, StatusCode: models.ActivityStatusFailed, CreatedAt: now.Add(-10 * time.Second)},
		{ActivityType: models.ActivityScaleOut, StatusCode: models.ActivityStatusRejected, CreatedAt: now.Add(-20 * time.Second)},
	}}
	e := newTestEngine(store.NewMemoryStore(), asgClient, &fakeMetrics{})
	state := &models.GroupRuntimeState{ResourceGroupID: group.ID}

	blocked, _, _, err := e.cooldownBlocked(context.Background(), group, state, models.ActionScaleUp, now)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestCooldownExpiredActivityDoesNotBlock(t *testing.T) {
	group := testGroup()
	group.GeneralCooldownSec = 180
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	asgClient := &fakeASG{activities: []*models.ASGActivity{
		{ActivityType: models.ActivityScaleIn, StatusCode: models.ActivityStatusSuccess, CreatedAt: now.Add(-200 * time.Second)},
	}}
	e := newTestEngine(store.NewMemoryStore(), asgClient, &fakeMetrics{})
	state := &models.GroupRuntimeState{ResourceGroupID: group.ID}

	blocked, _, _, err := e.cooldownBlocked(context.Background(), group, state, models.ActionScaleUp, now)
	require.NoError(t, err)
	assert.False(t, blocked)
}
