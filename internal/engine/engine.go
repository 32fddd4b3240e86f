package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/OldStager01/qps-autoscaler/internal/logger"
	"github.com/OldStager01/qps-autoscaler/internal/resilience"
	"github.com/OldStager01/qps-autoscaler/internal/store"
	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

const errorSource = "decision_engine"

// MetricsReader is the single-group metrics fallback used when the batched
// prefetch returned nothing for a group.
type MetricsReader interface {
	AverageQPS(ctx context.Context, lbID string, window time.Duration) (float64, bool, error)
}

// ASGClient is the slice of the ASG facade the engine consumes.
type ASGClient interface {
	GetStatus(ctx context.Context, asgID string) (*models.ASGStatus, error)
	IsActivityInProgress(ctx context.Context, asgID string) (bool, error)
	ListRecentActivities(ctx context.Context, asgID string, pageSize int) ([]*models.ASGActivity, error)
	ModifyCapacity(ctx context.Context, status *models.ASGStatus, desired int) (string, error)
}

// Engine evaluates one resource group per call: observe, size, gate, act,
// persist. It holds no per-group state between calls; everything durable
// lives in the store.
type Engine struct {
	store   store.StateStore
	asg     ASGClient
	metrics MetricsReader
	circuit *resilience.Policy
	now     func() time.Time
}

func New(st store.StateStore, asgClient ASGClient, metrics MetricsReader, circuit *resilience.Policy) *Engine {
	if circuit == nil {
		circuit = resilience.NewPolicy(0, 0)
	}
	return &Engine{
		store:   st,
		asg:     asgClient,
		metrics: metrics,
		circuit: circuit,
		now:     time.Now,
	}
}

// Evaluate runs the full decision sequence for one group. prefetchedQPS is
// the batched metrics value, nil when the prefetch had no datapoints for the
// group's load balancer. Evaluate never panics its caller: every failure is
// folded into the returned Decision.
func (e *Engine) Evaluate(ctx context.Context, group *models.ResourceGroup, prefetchedQPS *float64) *models.Decision {
	now := e.now().UTC()
	d := &models.Decision{
		GroupID:   group.ID,
		Timestamp: now,
		Action:    models.ActionNone,
		DryRun:    group.DryRun,
	}
	log := logger.WithGroup(group.ID)

	state, err := e.store.GetState(ctx, group.ID)
	if err != nil {
		return e.failed(ctx, group, d, models.ReasonEvaluationError, err)
	}

	// A resize already being applied wins over everything else.
	inProgress, err := e.asg.IsActivityInProgress(ctx, group.ASGID)
	if err != nil {
		return e.failed(ctx, group, d, models.ReasonASGStatusError, err)
	}
	if inProgress {
		d.Reason = models.ReasonScalingInProgress
		log.Info("Scaling activity already in progress, skipping evaluation")
		return d
	}

	if state.Suspended {
		d.Reason = models.ReasonSuspended
		return d
	}
	if state.CircuitOpen(now) {
		d.Reason = models.ReasonCircuitOpen
		remaining := int(math.Ceil(state.CircuitOpenUntil.Sub(now).Seconds()))
		d.CooldownRemain = &remaining
		return d
	}

	qps, ok, err := e.acquireQPS(ctx, group, prefetchedQPS)
	if err != nil {
		return e.failed(ctx, group, d, models.ReasonMetricsUnavailable, err)
	}
	if !ok {
		return e.failed(ctx, group, d, models.ReasonMetricsUnavailable,
			fmt.Errorf("no QPS datapoints for load balancer %s", group.ALBID))
	}
	d.CurrentQPS = &qps

	status, err := e.asg.GetStatus(ctx, group.ASGID)
	if err != nil {
		return e.failed(ctx, group, d, models.ReasonASGStatusError, err)
	}
	current := status.CurrentInstances
	d.CurrentInstances = &current

	var qpsPerInstance float64
	if current > 0 {
		qpsPerInstance = qps / float64(current)
	}
	d.QPSPerInstance = &qpsPerInstance

	optimal, atMin, atMax := e.size(group, status, qps, qpsPerInstance)
	d.OptimalInstances = &optimal
	requiredChange := optimal - current
	d.RequiredChange = &requiredChange
	d.LimitedByASG = atMin || atMax

	amount := requiredChange
	if amount < 0 {
		amount = -amount
	}
	switch {
	case requiredChange > 0 && group.MaxScaleUpPerAction > 0 && amount > group.MaxScaleUpPerAction:
		amount = group.MaxScaleUpPerAction
		d.LimitedBySafety = true
	case requiredChange < 0 && group.MaxScaleDownPerAction > 0 && amount > group.MaxScaleDownPerAction:
		amount = group.MaxScaleDownPerAction
		d.LimitedBySafety = true
	}
	d.ScalingAmount = amount

	switch {
	case requiredChange > 0:
		d.Action = models.ActionScaleUp
		d.Reason = models.ReasonDynamicScaleUp
		if !group.EnableDynamicScaling {
			d.Reason = models.ReasonQPSAboveThreshold
		}
	case requiredChange < 0:
		d.Action = models.ActionScaleDown
		d.Reason = models.ReasonDynamicScaleDown
		if !group.EnableDynamicScaling {
			d.Reason = models.ReasonQPSBelowThreshold
		}
	default:
		switch {
		case atMin:
			d.Reason = models.ReasonAtASGMinCapacity
		case atMax:
			d.Reason = models.ReasonAtASGMaxCapacity
		case group.EnableDynamicScaling && group.TargetQPSPerInstance <= 0:
			d.Reason = models.ReasonMisconfiguredTarget
		default:
			d.Reason = models.ReasonOptimalCountReached
		}
		e.persistOutcome(ctx, group, d, 0)
		return d
	}

	blocked, gateReason, remaining, err := e.cooldownBlocked(ctx, group, state, d.Action, now)
	if err != nil {
		return e.failed(ctx, group, d, models.ReasonASGStatusError, err)
	}
	if blocked {
		log.WithField("reason", gateReason).
			Infof("Action %s blocked by cooldown for %s", d.Action, remaining)
		d.Action = models.ActionNone
		d.Reason = gateReason
		secs := int(math.Ceil(remaining.Seconds()))
		d.CooldownRemain = &secs
		e.persistOutcome(ctx, group, d, 0)
		return d
	}

	desired := current + amount
	if d.Action == models.ActionScaleDown {
		desired = current - amount
		if desired < 0 {
			desired = 0
		}
	}
	d.DesiredCapacity = &desired
	d.ActivityKey = models.ActivityKey(group.ID, desired, now, group.MetricPeriod())

	result := e.execute(ctx, group, status, desired)
	d.ExecutionResult = result

	return e.record(ctx, group, d, result)
}

// acquireQPS prefers the batched prefetch and falls back to one single-group
// metrics call.
func (e *Engine) acquireQPS(ctx context.Context, group *models.ResourceGroup, prefetched *float64) (float64, bool, error) {
	if prefetched != nil {
		return *prefetched, true, nil
	}
	logger.WithGroup(group.ID).Debug("No prefetched QPS, falling back to single-group metrics call")
	return e.metrics.AverageQPS(ctx, group.ALBID, group.MetricPeriod())
}

// size computes the target instance count. Dynamic mode sizes directly from
// total QPS; static mode nudges by one instance on threshold crossings.
func (e *Engine) size(group *models.ResourceGroup, status *models.ASGStatus, qps, qpsPerInstance float64) (optimal int, atMin, atMax bool) {
	current := status.CurrentInstances

	if group.EnableDynamicScaling {
		raw := 0
		if group.TargetQPSPerInstance > 0 {
			raw = int(math.Ceil(qps / group.TargetQPSPerInstance))
		} else {
			logger.WithGroup(group.ID).Warnf(
				"target_qps_per_instance is %.2f, treating optimal capacity as 0",
				group.TargetQPSPerInstance)
		}
		return status.Clamp(raw)
	}

	switch {
	case qpsPerInstance > group.ScaleUpQPSThreshold():
		if current >= status.MaxInstances {
			return current, false, true
		}
		return current + 1, false, false
	case qpsPerInstance < group.ScaleDownQPSThreshold():
		if current <= status.MinInstances {
			return current, true, false
		}
		return current - 1, false, false
	}
	return current, false, false
}

// execute applies the resize, or fabricates the result under dry-run.
func (e *Engine) execute(ctx context.Context, group *models.ResourceGroup, status *models.ASGStatus, desired int) *models.ExecutionResult {
	if group.DryRun {
		logger.WithGroup(group.ID).Infof("Dry run: would set desired capacity of %s to %d", group.ASGID, desired)
		return &models.ExecutionResult{
			Status:  models.ExecutionDryRun,
			Message: fmt.Sprintf("dry run: desired capacity %d not applied", desired),
		}
	}

	response, err := e.asg.ModifyCapacity(ctx, status, desired)
	if err != nil {
		return &models.ExecutionResult{Status: models.ExecutionError, Message: err.Error()}
	}
	logger.WithGroup(group.ID).Infof("Desired capacity of %s set to %d", group.ASGID, desired)
	return &models.ExecutionResult{
		Status:   models.ExecutionSuccess,
		Message:  fmt.Sprintf("desired capacity set to %d", desired),
		Response: response,
	}
}

// record appends the audit row, then upserts runtime state. Activity before
// state: a crash in between leaves the cooldown unextended but the
// idempotency key already claimed.
func (e *Engine) record(ctx context.Context, group *models.ResourceGroup, d *models.Decision, result *models.ExecutionResult) *models.Decision {
	activity := &models.ScalingActivity{
		ResourceGroupID: group.ID,
		ActivityKey:     d.ActivityKey,
		Action:          d.Action,
		Status:          activityStatus(result.Status),
		EvalQPS:         deref(d.CurrentQPS),
		EvalCapacity:    derefInt(d.CurrentInstances),
		TargetQPS:       group.TargetQPSPerInstance,
		Response:        result.Response,
	}

	err := e.store.RecordActivity(ctx, activity)
	if errors.Is(err, store.ErrDuplicateActivity) {
		logger.WithGroup(group.ID).WithField("activity_key", d.ActivityKey).
			Info("Duplicate activity key, skipping")
		d.Reason = models.ReasonDuplicateActivity
		d.ExecutionResult = &models.ExecutionResult{
			Status:  models.ExecutionSkipped,
			Message: fmt.Sprintf("activity %s already recorded this window", d.ActivityKey),
		}
		e.persistOutcome(ctx, group, d, 0)
		return d
	}
	if err != nil {
		return e.failed(ctx, group, d, d.Reason, err)
	}

	if result.Status == models.ExecutionError {
		return e.failed(ctx, group, d, d.Reason, errors.New(result.Message))
	}

	e.persistOutcome(ctx, group, d, group.CooldownFor(d.Action))
	return d
}

// persistOutcome upserts runtime state after a completed evaluation and
// clears the consecutive error counter.
func (e *Engine) persistOutcome(ctx context.Context, group *models.ResourceGroup, d *models.Decision, cooldown time.Duration) {
	fields := models.StateFields{
		models.FieldLastEvaluatedAt:   d.Timestamp,
		models.FieldConsecutiveErrors: 0,
	}
	if d.CurrentQPS != nil {
		fields[models.FieldLatestQPS] = *d.CurrentQPS
	}
	if d.CurrentInstances != nil {
		fields[models.FieldLatestCapacity] = *d.CurrentInstances
	}
	if cooldown > 0 {
		fields[models.FieldCooldownUntil] = d.Timestamp.Add(cooldown)
	}
	if err := e.store.UpsertState(ctx, group.ID, fields); err != nil {
		logger.WithGroup(group.ID).Errorf("Failed to persist runtime state: %v", err)
	}
}

// failed folds err into the decision, records it, bumps the consecutive error
// counter and opens the circuit when the threshold is reached.
func (e *Engine) failed(ctx context.Context, group *models.ResourceGroup, d *models.Decision, reason models.Reason, err error) *models.Decision {
	d.Reason = reason
	d.Error = err.Error()
	log := logger.WithGroup(group.ID)
	log.Errorf("Evaluation failed: %v", err)

	groupID := group.ID
	if rerr := e.store.RecordError(ctx, &groupID, errorSource, err.Error(), ""); rerr != nil {
		log.Warnf("Failed to record error: %v", rerr)
	}

	count, cerr := e.store.IncrementConsecutiveErrors(ctx, group.ID)
	if cerr != nil {
		log.Warnf("Failed to increment consecutive errors: %v", cerr)
		return d
	}

	fields := models.StateFields{models.FieldLastEvaluatedAt: d.Timestamp}
	if until := e.circuit.Arm(count, d.Timestamp); until != nil {
		fields[models.FieldCircuitOpenUntil] = *until
		log.Warnf("Circuit opened after %d consecutive errors, until %s", count, until.Format(time.RFC3339))
	}
	if uerr := e.store.UpsertState(ctx, group.ID, fields); uerr != nil {
		log.Warnf("Failed to persist runtime state: %v", uerr)
	}
	return d
}

func activityStatus(s models.ExecutionStatus) models.ActivityStatus {
	switch s {
	case models.ExecutionSuccess:
		return models.ActivitySuccess
	case models.ExecutionDryRun:
		return models.ActivityDryRun
	case models.ExecutionSkipped:
		return models.ActivitySkipped
	default:
		return models.ActivityError
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
