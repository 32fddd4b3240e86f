package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

func TestListEnabledGroupsFiltersDisabled(t *testing.T) {
	s := NewMemoryStore(
		&models.ResourceGroup{ID: 1, Enabled: true},
		&models.ResourceGroup{ID: 2, Enabled: false},
		&models.ResourceGroup{ID: 3, Enabled: true},
	)

	groups, err := s.ListEnabledGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, 1, groups[0].ID)
	assert.Equal(t, 3, groups[1].ID)
}

func TestGetStateReturnsZeroValueForUnknownGroup(t *testing.T) {
	s := NewMemoryStore()

	state, err := s.GetState(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, state.ResourceGroupID)
	assert.Nil(t, state.CooldownUntil)
	assert.Zero(t, state.ConsecutiveErrors)
}

func TestUpsertStateDropsUnknownFields(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()

	err := s.UpsertState(context.Background(), 1, models.StateFields{
		models.FieldLastEvaluatedAt: now,
		models.FieldLatestQPS:       120.5,
		"bogus_column":              "ignored",
	})
	require.NoError(t, err)

	state, err := s.GetState(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, state.LastEvaluatedAt)
	assert.True(t, state.LastEvaluatedAt.Equal(now))
	require.NotNil(t, state.LatestQPS)
	assert.Equal(t, 120.5, *state.LatestQPS)
}

func TestUpsertStateCooldownNeverShrinks(t *testing.T) {
	s := NewMemoryStore()
	later := time.Now().UTC().Add(10 * time.Minute)
	earlier := later.Add(-5 * time.Minute)

	require.NoError(t, s.UpsertState(context.Background(), 1, models.StateFields{models.FieldCooldownUntil: later}))
	require.NoError(t, s.UpsertState(context.Background(), 1, models.StateFields{models.FieldCooldownUntil: earlier}))

	state, err := s.GetState(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, state.CooldownUntil)
	assert.True(t, state.CooldownUntil.Equal(later), "an earlier deadline must not overwrite a later one")
}

func TestIncrementConsecutiveErrors(t *testing.T) {
	s := NewMemoryStore()

	count, err := s.IncrementConsecutiveErrors(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.IncrementConsecutiveErrors(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRecordActivityEnforcesUniqueKey(t *testing.T) {
	s := NewMemoryStore()
	activity := &models.ScalingActivity{
		ResourceGroupID: 1,
		ActivityKey:     "1-5-123",
		Action:          models.ActionScaleUp,
		Status:          models.ActivitySuccess,
	}

	require.NoError(t, s.RecordActivity(context.Background(), activity))
	assert.NotZero(t, activity.ID)
	assert.False(t, activity.CreatedAt.IsZero())

	dup := &models.ScalingActivity{ResourceGroupID: 1, ActivityKey: "1-5-123"}
	assert.ErrorIs(t, s.RecordActivity(context.Background(), dup), ErrDuplicateActivity)

	// The same key is fine under a different group.
	other := &models.ScalingActivity{ResourceGroupID: 2, ActivityKey: "1-5-123"}
	assert.NoError(t, s.RecordActivity(context.Background(), other))
}

func TestRecordErrorNilGroup(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.RecordError(context.Background(), nil, "controller", "catalog unreachable", ""))
	groupID := 3
	require.NoError(t, s.RecordError(context.Background(), &groupID, "decision_engine", "boom", `{"qps":1}`))

	errs := s.Errors()
	require.Len(t, errs, 2)
	assert.Nil(t, errs[0].GroupID)
	require.NotNil(t, errs[1].GroupID)
	assert.Equal(t, 3, *errs[1].GroupID)
}
