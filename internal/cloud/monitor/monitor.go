package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/OldStager01/qps-autoscaler/internal/cloud/api"
	"github.com/OldStager01/qps-autoscaler/internal/logger"
)

const (
	actionGetMetricData = "GetMetricData"
	apiVersion          = "2018-01-01"

	metricNamespace    = "VCM_ALB"
	metricSubNamespace = "load_balancer"
	metricName         = "qps"
	dimensionName      = "ResourceID"
)

// Metrics reads average QPS per load balancer from the cloud monitoring API.
type Metrics struct {
	caller api.Caller
	now    func() time.Time
}

func New(caller api.Caller) *Metrics {
	return &Metrics{caller: caller, now: time.Now}
}

type metricInstance struct {
	Dimensions []metricDimension `json:"Dimensions"`
}

type metricDimension struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type getMetricDataRequest struct {
	Namespace    string           `json:"Namespace"`
	SubNamespace string           `json:"SubNamespace"`
	MetricName   string           `json:"MetricName"`
	Instances    []metricInstance `json:"Instances"`
	StartTime    int64            `json:"StartTime"`
	EndTime      int64            `json:"EndTime"`
	Period       string           `json:"Period"`
}

type getMetricDataResult struct {
	Data struct {
		MetricDataResults []struct {
			Dimensions []metricDimension `json:"Dimensions"`
			DataPoints []struct {
				Timestamp int64   `json:"Timestamp"`
				Value     float64 `json:"Value"`
			} `json:"DataPoints"`
		} `json:"MetricDataResults"`
	} `json:"Data"`
}

// SamplePeriod picks the datapoint granularity for a lookback window. Short
// windows need fine periods or the API returns no points at all.
func SamplePeriod(window time.Duration) time.Duration {
	switch {
	case window <= 30*time.Second:
		return 15 * time.Second
	case window <= 2*time.Minute:
		return 30 * time.Second
	case window <= 10*time.Minute:
		return time.Minute
	default:
		return 5 * time.Minute
	}
}

// BatchAverageQPS fetches the mean QPS over the trailing window for every
// load balancer in one call. Balancers with no datapoints are absent from the
// returned map; callers fall back per group.
func (m *Metrics) BatchAverageQPS(ctx context.Context, lbIDs []string, window time.Duration) (map[string]float64, error) {
	if len(lbIDs) == 0 {
		return map[string]float64{}, nil
	}

	instances := make([]metricInstance, 0, len(lbIDs))
	for _, id := range lbIDs {
		instances = append(instances, metricInstance{
			Dimensions: []metricDimension{{Name: dimensionName, Value: id}},
		})
	}

	end := m.now().UTC()
	start := end.Add(-window)
	req := getMetricDataRequest{
		Namespace:    metricNamespace,
		SubNamespace: metricSubNamespace,
		MetricName:   metricName,
		Instances:    instances,
		StartTime:    start.Unix(),
		EndTime:      end.Unix(),
		Period:       fmt.Sprintf("%ds", int(SamplePeriod(window).Seconds())),
	}

	var result getMetricDataResult
	if err := m.caller.Call(ctx, api.ServiceCloudMonitor, actionGetMetricData, apiVersion, req, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch QPS metrics: %w", err)
	}

	averages := make(map[string]float64, len(lbIDs))
	for _, series := range result.Data.MetricDataResults {
		id := dimensionValue(series.Dimensions)
		if id == "" || len(series.DataPoints) == 0 {
			continue
		}
		var sum float64
		for _, point := range series.DataPoints {
			sum += point.Value
		}
		averages[id] = sum / float64(len(series.DataPoints))
	}

	if len(averages) < len(lbIDs) {
		logger.WithField("requested", len(lbIDs)).
			WithField("returned", len(averages)).
			Debug("Some load balancers returned no QPS datapoints")
	}
	return averages, nil
}

// AverageQPS is the single-balancer fallback used when the batched prefetch
// has no entry for a group.
func (m *Metrics) AverageQPS(ctx context.Context, lbID string, window time.Duration) (float64, bool, error) {
	averages, err := m.BatchAverageQPS(ctx, []string{lbID}, window)
	if err != nil {
		return 0, false, err
	}
	qps, ok := averages[lbID]
	return qps, ok, nil
}

// CheckAvailability probes the monitoring API with a minimal query. Used by
// the validation handler.
func (m *Metrics) CheckAvailability(ctx context.Context) error {
	end := m.now().UTC()
	req := getMetricDataRequest{
		Namespace:    metricNamespace,
		SubNamespace: metricSubNamespace,
		MetricName:   metricName,
		StartTime:    end.Add(-time.Minute).Unix(),
		EndTime:      end.Unix(),
		Period:       "60s",
	}
	if err := m.caller.Call(ctx, api.ServiceCloudMonitor, actionGetMetricData, apiVersion, req, nil); err != nil {
		return fmt.Errorf("monitoring API unavailable: %w", err)
	}
	return nil
}

func dimensionValue(dims []metricDimension) string {
	for _, d := range dims {
		if d.Name == dimensionName {
			return d.Value
		}
	}
	return ""
}
