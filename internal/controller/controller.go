package controller

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OldStager01/qps-autoscaler/internal/logger"
	"github.com/OldStager01/qps-autoscaler/internal/store"
	"github.com/OldStager01/qps-autoscaler/pkg/config"
	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

const errorSource = "controller"

// Evaluator is the per-group decision engine.
type Evaluator interface {
	Evaluate(ctx context.Context, group *models.ResourceGroup, prefetchedQPS *float64) *models.Decision
}

// MetricsBatcher prefetches QPS for all load balancers in one call.
type MetricsBatcher interface {
	BatchAverageQPS(ctx context.Context, lbIDs []string, window time.Duration) (map[string]float64, error)
	CheckAvailability(ctx context.Context) error
}

// ASGReader is the read-only slice of the ASG facade the status and
// validation operations use.
type ASGReader interface {
	GetStatus(ctx context.Context, asgID string) (*models.ASGStatus, error)
}

// HealthChecker reports whether the backing database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// TickObserver receives completed tick summaries; satisfied by the
// Prometheus collector.
type TickObserver interface {
	ObserveTick(summary *models.TickSummary)
}

// Controller runs one evaluation pass over every enabled resource group:
// one batched metrics prefetch, then bounded-parallel per-group evaluation
// under the tick deadline.
type Controller struct {
	catalog  store.Catalog
	store    store.StateStore
	engine   Evaluator
	metrics  MetricsBatcher
	asg      ASGReader
	health   HealthChecker
	observer TickObserver
	cfg      config.ControllerConfig
	now      func() time.Time
}

func New(
	catalog store.Catalog,
	st store.StateStore,
	eval Evaluator,
	metrics MetricsBatcher,
	asg ASGReader,
	cfg config.ControllerConfig,
) *Controller {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 5
	}
	if cfg.TickDeadline <= 0 {
		cfg.TickDeadline = 50 * time.Second
	}
	return &Controller{
		catalog: catalog,
		store:   st,
		engine:  eval,
		metrics: metrics,
		asg:     asg,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetHealthChecker wires the database health probe used by Validate.
func (c *Controller) SetHealthChecker(h HealthChecker) { c.health = h }

// SetObserver wires the Prometheus collector.
func (c *Controller) SetObserver(o TickObserver) { c.observer = o }

// RunTick evaluates every enabled group once. A non-nil error means the tick
// could not start at all (catalog unreachable); per-group failures are folded
// into the summary instead.
func (c *Controller) RunTick(ctx context.Context) (*models.TickSummary, error) {
	started := c.now().UTC()
	summary := &models.TickSummary{StartedAt: started}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TickDeadline)
	defer cancel()

	groups, err := c.catalog.ListEnabledGroups(ctx)
	if err != nil {
		c.recordControllerError(ctx, fmt.Errorf("failed to load resource groups: %w", err))
		return nil, err
	}
	if len(groups) == 0 {
		logger.Info("No enabled resource groups, nothing to evaluate")
		summary.Duration = c.now().UTC().Sub(started)
		return summary, nil
	}

	valid := groups[:0]
	for _, group := range groups {
		if err := group.Validate(); err != nil {
			logger.WithGroup(group.ID).Errorf("Skipping invalid resource group: %v", err)
			groupID := group.ID
			if rerr := c.store.RecordError(ctx, &groupID, errorSource, err.Error(), ""); rerr != nil {
				logger.WithGroup(group.ID).Warnf("Failed to record error: %v", rerr)
			}
			summary.Add(&models.Decision{
				GroupID:   group.ID,
				Timestamp: started,
				Action:    models.ActionNone,
				Reason:    models.ReasonEvaluationError,
				Error:     err.Error(),
			})
			continue
		}
		valid = append(valid, group)
	}

	prefetch := c.prefetchQPS(ctx, valid)
	decisions := c.evaluateAll(ctx, valid, prefetch)
	for _, d := range decisions {
		summary.Add(d)
	}

	summary.Duration = c.now().UTC().Sub(started)
	if c.observer != nil {
		c.observer.ObserveTick(summary)
	}
	logger.WithFields(map[string]interface{}{
		"groups":      summary.Totals.Groups,
		"scale_ups":   summary.Totals.ScaleUps,
		"scale_downs": summary.Totals.ScaleDowns,
		"errors":      summary.Totals.Errors,
		"duration_ms": summary.Duration.Milliseconds(),
	}).Info("Tick completed")
	return summary, nil
}

// prefetchQPS issues the single batched metrics call covering every load
// balancer, over the widest configured metric period. A failed prefetch is
// not fatal: the engine falls back to per-group calls.
func (c *Controller) prefetchQPS(ctx context.Context, groups []*models.ResourceGroup) map[string]float64 {
	window := time.Duration(0)
	seen := make(map[string]bool, len(groups))
	var lbIDs []string
	for _, group := range groups {
		if period := group.MetricPeriod(); period > window {
			window = period
		}
		if !seen[group.ALBID] {
			seen[group.ALBID] = true
			lbIDs = append(lbIDs, group.ALBID)
		}
	}

	prefetch, err := c.metrics.BatchAverageQPS(ctx, lbIDs, window)
	if err != nil {
		logger.Errorf("Batched QPS prefetch failed, falling back per group: %v", err)
		c.recordControllerError(ctx, err)
		return nil
	}
	logger.WithField("load_balancers", len(lbIDs)).
		Debugf("Prefetched QPS for %d of %d load balancers", len(prefetch), len(lbIDs))
	return prefetch
}

// evaluateAll fans groups out to at most Parallelism workers. Panics and
// errors stay inside their worker; a deadline hit converts the remaining
// groups into timeout decisions.
func (c *Controller) evaluateAll(ctx context.Context, groups []*models.ResourceGroup, prefetch map[string]float64) []*models.Decision {
	decisions := make([]*models.Decision, len(groups))

	var eg errgroup.Group
	eg.SetLimit(c.cfg.Parallelism)
	for i, group := range groups {
		i, group := i, group
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("panic during evaluation: %v", r)
					logger.WithGroup(group.ID).Errorf("%v", err)
					groupID := group.ID
					if rerr := c.store.RecordError(ctx, &groupID, errorSource, err.Error(), ""); rerr != nil {
						logger.WithGroup(group.ID).Warnf("Failed to record error: %v", rerr)
					}
					decisions[i] = &models.Decision{
						GroupID:   group.ID,
						Timestamp: c.now().UTC(),
						Action:    models.ActionNone,
						Reason:    models.ReasonEvaluationError,
						Error:     err.Error(),
					}
				}
			}()

			if ctx.Err() != nil {
				decisions[i] = c.timeoutDecision(ctx, group)
				return nil
			}

			var prefetched *float64
			if qps, ok := prefetch[group.ALBID]; ok {
				prefetched = &qps
			}
			d := c.engine.Evaluate(ctx, group, prefetched)
			if ctx.Err() != nil && d.Failed() && !d.Acted() {
				d.Reason = models.ReasonTimeout
			}
			decisions[i] = d
			return nil
		})
	}
	eg.Wait()
	return decisions
}

func (c *Controller) timeoutDecision(ctx context.Context, group *models.ResourceGroup) *models.Decision {
	logger.WithGroup(group.ID).Warn("Tick deadline reached before evaluation")
	groupID := group.ID
	if err := c.store.RecordError(context.WithoutCancel(ctx), &groupID, errorSource, "tick deadline reached before evaluation", ""); err != nil {
		logger.WithGroup(group.ID).Warnf("Failed to record error: %v", err)
	}
	return &models.Decision{
		GroupID:   group.ID,
		Timestamp: c.now().UTC(),
		Action:    models.ActionNone,
		Reason:    models.ReasonTimeout,
		Error:     "tick deadline reached before evaluation",
	}
}

func (c *Controller) recordControllerError(ctx context.Context, err error) {
	if rerr := c.store.RecordError(context.WithoutCancel(ctx), nil, errorSource, err.Error(), ""); rerr != nil {
		logger.Warnf("Failed to record controller error: %v", rerr)
	}
}
