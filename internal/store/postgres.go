package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/OldStager01/qps-autoscaler/internal/logger"
	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

// uniqueViolation is the Postgres error code raised by the
// (resource_group_id, activity_key) constraint.
const uniqueViolation = "23505"

var writableStateColumns = map[string]bool{
	models.FieldLastEvaluatedAt:   true,
	models.FieldCooldownUntil:     true,
	models.FieldConsecutiveErrors: true,
	models.FieldCircuitOpenUntil:  true,
	models.FieldSuspended:         true,
	models.FieldLatestQPS:         true,
	models.FieldLatestCapacity:    true,
}

// PostgresStore implements Catalog and StateStore over the relational catalog.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListEnabledGroups(ctx context.Context) ([]*models.ResourceGroup, error) {
	query := `
		SELECT id, alb_id, asg_id, region, target_qps,
			   scale_up_threshold, scale_down_threshold, enable_dynamic_scaling,
			   max_scale_up_per_action, max_scale_down_per_action,
			   scale_up_cooldown_seconds, scale_down_cooldown_seconds,
			   general_cooldown_seconds, metric_period_seconds,
			   dry_run, enabled
		FROM resource_groups
		WHERE enabled = TRUE
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled resource groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.ResourceGroup
	for rows.Next() {
		var g models.ResourceGroup
		err := rows.Scan(
			&g.ID, &g.ALBID, &g.ASGID, &g.Region, &g.TargetQPSPerInstance,
			&g.ScaleUpThreshold, &g.ScaleDownThreshold, &g.EnableDynamicScaling,
			&g.MaxScaleUpPerAction, &g.MaxScaleDownPerAction,
			&g.ScaleUpCooldownSec, &g.ScaleDownCooldownSec,
			&g.GeneralCooldownSec, &g.MetricPeriodSec,
			&g.DryRun, &g.Enabled,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource group: %w", err)
		}
		groups = append(groups, &g)
	}

	return groups, rows.Err()
}

func (s *PostgresStore) GetState(ctx context.Context, groupID int) (*models.GroupRuntimeState, error) {
	query := `
		SELECT resource_group_id, last_evaluated_at, cooldown_until,
			   consecutive_errors, circuit_open_until, suspended,
			   latest_qps, latest_capacity
		FROM resource_group_state
		WHERE resource_group_id = $1`

	var st models.GroupRuntimeState
	err := s.db.QueryRowContext(ctx, query, groupID).Scan(
		&st.ResourceGroupID, &st.LastEvaluatedAt, &st.CooldownUntil,
		&st.ConsecutiveErrors, &st.CircuitOpenUntil, &st.Suspended,
		&st.LatestQPS, &st.LatestCapacity,
	)
	if err == sql.ErrNoRows {
		return &models.GroupRuntimeState{ResourceGroupID: groupID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state for group %d: %w", groupID, err)
	}
	return &st, nil
}

func (s *PostgresStore) UpsertState(ctx context.Context, groupID int, fields models.StateFields) error {
	columns := make([]string, 0, len(fields))
	values := make([]any, 0, len(fields)+1)
	values = append(values, groupID)

	for key, value := range fields {
		if !writableStateColumns[key] {
			logger.WithGroup(groupID).Warnf("Dropping unknown state field %q", key)
			continue
		}
		columns = append(columns, key)
		values = append(values, value)
	}

	if len(columns) == 0 {
		logger.WithGroup(groupID).Warn("No valid state fields to upsert")
		return nil
	}

	placeholders := make([]string, len(columns))
	setClauses := make([]string, len(columns))
	for i, col := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		if col == models.FieldCooldownUntil {
			// Concurrent invokers may race on the cooldown deadline; the
			// later deadline always wins.
			setClauses[i] = fmt.Sprintf(
				"%s = GREATEST(COALESCE(resource_group_state.%s, 'epoch'::timestamptz), EXCLUDED.%s)",
				col, col, col)
			continue
		}
		setClauses[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}

	query := fmt.Sprintf(`
		INSERT INTO resource_group_state (resource_group_id, %s)
		VALUES ($1, %s)
		ON CONFLICT (resource_group_id) DO UPDATE
		SET %s`,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(setClauses, ", "),
	)

	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to upsert state for group %d: %w", groupID, err)
	}
	return nil
}

func (s *PostgresStore) IncrementConsecutiveErrors(ctx context.Context, groupID int) (int, error) {
	query := `
		INSERT INTO resource_group_state (resource_group_id, consecutive_errors)
		VALUES ($1, 1)
		ON CONFLICT (resource_group_id) DO UPDATE
		SET consecutive_errors = resource_group_state.consecutive_errors + 1
		RETURNING consecutive_errors`

	var count int
	if err := s.db.QueryRowContext(ctx, query, groupID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment consecutive errors for group %d: %w", groupID, err)
	}
	return count, nil
}

func (s *PostgresStore) RecordActivity(ctx context.Context, activity *models.ScalingActivity) error {
	query := `
		INSERT INTO scaling_activities
			(resource_group_id, activity_key, action, status, eval_qps, eval_capacity, target_qps, response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	var response any
	if activity.Response != "" {
		response = activity.Response
	}

	err := s.db.QueryRowContext(ctx, query,
		activity.ResourceGroupID,
		activity.ActivityKey,
		activity.Action,
		activity.Status,
		activity.EvalQPS,
		activity.EvalCapacity,
		activity.TargetQPS,
		response,
	).Scan(&activity.ID, &activity.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return ErrDuplicateActivity
		}
		return fmt.Errorf("failed to record scaling activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordError(ctx context.Context, groupID *int, source, message, errContext string) error {
	query := `
		INSERT INTO errors (resource_group_id, source, message, context)
		VALUES ($1, $2, $3, $4)`

	var ctxBlob any
	if errContext != "" {
		ctxBlob = errContext
	}

	if _, err := s.db.ExecContext(ctx, query, groupID, source, message, ctxBlob); err != nil {
		return fmt.Errorf("failed to record error: %w", err)
	}
	return nil
}
