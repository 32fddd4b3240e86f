package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

// Collector exposes controller health over Prometheus. One instance per
// process, registered on the default registry.
type Collector struct {
	tickDuration prometheus.Histogram
	tickTotal    prometheus.Counter
	evaluations  *prometheus.CounterVec
	actions      *prometheus.CounterVec
	errors       prometheus.Counter
	groupQPS     *prometheus.GaugeVec
	groupSize    *prometheus.GaugeVec
	circuitOpen  *prometheus.GaugeVec
}

func NewCollector() *Collector {
	return &Collector{
		tickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "autoscaler",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one full controller tick.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		tickTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "autoscaler",
			Name:      "ticks_total",
			Help:      "Completed controller ticks.",
		}),
		evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoscaler",
			Name:      "evaluations_total",
			Help:      "Per-group evaluations by reason.",
		}, []string{"reason"}),
		actions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoscaler",
			Name:      "scaling_actions_total",
			Help:      "Executed scaling actions by direction and status.",
		}, []string{"action", "status"}),
		errors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "autoscaler",
			Name:      "evaluation_errors_total",
			Help:      "Evaluations that ended in an error.",
		}),
		groupQPS: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "autoscaler",
			Name:      "group_qps",
			Help:      "Latest observed average QPS per resource group.",
		}, []string{"resource_group_id"}),
		groupSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "autoscaler",
			Name:      "group_instances",
			Help:      "Latest observed instance count per resource group.",
		}, []string{"resource_group_id"}),
		circuitOpen: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "autoscaler",
			Name:      "group_circuit_open",
			Help:      "1 while the group's circuit breaker is open.",
		}, []string{"resource_group_id"}),
	}
}

// ObserveTick records one completed tick and refreshes per-group gauges.
func (c *Collector) ObserveTick(summary *models.TickSummary) {
	c.tickTotal.Inc()
	c.tickDuration.Observe(summary.Duration.Seconds())

	for _, d := range summary.Decisions {
		groupLabel := strconv.Itoa(d.GroupID)
		c.evaluations.WithLabelValues(string(d.Reason)).Inc()

		if d.Failed() {
			c.errors.Inc()
		}
		if d.Acted() && d.ExecutionResult != nil {
			c.actions.WithLabelValues(string(d.Action), string(d.ExecutionResult.Status)).Inc()
		}
		if d.CurrentQPS != nil {
			c.groupQPS.WithLabelValues(groupLabel).Set(*d.CurrentQPS)
		}
		if d.CurrentInstances != nil {
			c.groupSize.WithLabelValues(groupLabel).Set(float64(*d.CurrentInstances))
		}
		open := 0.0
		if d.Reason == models.ReasonCircuitOpen {
			open = 1.0
		}
		c.circuitOpen.WithLabelValues(groupLabel).Set(open)
	}
}
