package store

import (
	"context"
	"sync"
	"time"

	"github.com/OldStager01/qps-autoscaler/internal/logger"
	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

// MemoryStore is an in-memory Catalog + StateStore used by tests and local
// runs. It mirrors the Postgres implementation's semantics, including the
// unique (group, activity_key) constraint and the upsert field whitelist.
type MemoryStore struct {
	mu         sync.Mutex
	groups     []*models.ResourceGroup
	states     map[int]*models.GroupRuntimeState
	activities []*models.ScalingActivity
	activityBy map[int]map[string]bool
	errs       []*models.ErrorRecord
	nextID     int
}

func NewMemoryStore(groups ...*models.ResourceGroup) *MemoryStore {
	return &MemoryStore{
		groups:     groups,
		states:     make(map[int]*models.GroupRuntimeState),
		activityBy: make(map[int]map[string]bool),
		nextID:     1,
	}
}

func (s *MemoryStore) ListEnabledGroups(ctx context.Context) ([]*models.ResourceGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var enabled []*models.ResourceGroup
	for _, g := range s.groups {
		if g.Enabled {
			copied := *g
			enabled = append(enabled, &copied)
		}
	}
	return enabled, nil
}

func (s *MemoryStore) GetState(ctx context.Context, groupID int) (*models.GroupRuntimeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[groupID]; ok {
		copied := *st
		return &copied, nil
	}
	return &models.GroupRuntimeState{ResourceGroupID: groupID}, nil
}

// SetState seeds runtime state directly; test setup helper.
func (s *MemoryStore) SetState(st *models.GroupRuntimeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.ResourceGroupID] = st
}

func (s *MemoryStore) UpsertState(ctx context.Context, groupID int, fields models.StateFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[groupID]
	if !ok {
		st = &models.GroupRuntimeState{ResourceGroupID: groupID}
		s.states[groupID] = st
	}

	for key, value := range fields {
		switch key {
		case models.FieldLastEvaluatedAt:
			st.LastEvaluatedAt = toTimePtr(value)
		case models.FieldCooldownUntil:
			// Same rule as the SQL upsert: the later deadline wins.
			if next := toTimePtr(value); next != nil && (st.CooldownUntil == nil || next.After(*st.CooldownUntil)) {
				st.CooldownUntil = next
			}
		case models.FieldConsecutiveErrors:
			if n, ok := value.(int); ok {
				st.ConsecutiveErrors = n
			}
		case models.FieldCircuitOpenUntil:
			st.CircuitOpenUntil = toTimePtr(value)
		case models.FieldSuspended:
			if b, ok := value.(bool); ok {
				st.Suspended = b
			}
		case models.FieldLatestQPS:
			if f, ok := value.(float64); ok {
				st.LatestQPS = &f
			}
		case models.FieldLatestCapacity:
			if n, ok := value.(int); ok {
				st.LatestCapacity = &n
			}
		default:
			logger.WithGroup(groupID).Warnf("Dropping unknown state field %q", key)
		}
	}
	return nil
}

func (s *MemoryStore) IncrementConsecutiveErrors(ctx context.Context, groupID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[groupID]
	if !ok {
		st = &models.GroupRuntimeState{ResourceGroupID: groupID}
		s.states[groupID] = st
	}
	st.ConsecutiveErrors++
	return st.ConsecutiveErrors, nil
}

func (s *MemoryStore) RecordActivity(ctx context.Context, activity *models.ScalingActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.activityBy[activity.ResourceGroupID]
	if keys == nil {
		keys = make(map[string]bool)
		s.activityBy[activity.ResourceGroupID] = keys
	}
	if keys[activity.ActivityKey] {
		return ErrDuplicateActivity
	}
	keys[activity.ActivityKey] = true

	activity.ID = s.nextID
	s.nextID++
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	copied := *activity
	s.activities = append(s.activities, &copied)
	return nil
}

func (s *MemoryStore) RecordError(ctx context.Context, groupID *int, source, message, errContext string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errs = append(s.errs, &models.ErrorRecord{
		ID:        s.nextID,
		GroupID:   groupID,
		Source:    source,
		Message:   message,
		Context:   errContext,
		CreatedAt: time.Now().UTC(),
	})
	s.nextID++
	return nil
}

// Activities returns a snapshot of recorded audit rows.
func (s *MemoryStore) Activities() []*models.ScalingActivity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ScalingActivity, len(s.activities))
	copy(out, s.activities)
	return out
}

// Errors returns a snapshot of recorded error rows.
func (s *MemoryStore) Errors() []*models.ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ErrorRecord, len(s.errs))
	copy(out, s.errs)
	return out
}

func toTimePtr(value any) *time.Time {
	switch v := value.(type) {
	case time.Time:
		return &v
	case *time.Time:
		return v
	}
	return nil
}
