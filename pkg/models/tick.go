package models

import "time"

// TickTotals aggregates per-group outcomes for one controller pass.
type TickTotals struct {
	Groups     int `json:"groups"`
	ScaleUps   int `json:"scale_ups"`
	ScaleDowns int `json:"scale_downs"`
	NoAction   int `json:"no_action"`
	Errors     int `json:"errors"`
	Skipped    int `json:"skipped"`
	DryRuns    int `json:"dry_runs"`
}

// TickSummary is the aggregate result of one run_tick invocation.
type TickSummary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"-"`
	Decisions []*Decision   `json:"results"`
	Totals    TickTotals    `json:"totals"`
}

func (s *TickSummary) Add(d *Decision) {
	s.Decisions = append(s.Decisions, d)
	s.Totals.Groups++
	switch {
	case d.Failed():
		s.Totals.Errors++
	case d.ExecutionResult != nil && d.ExecutionResult.Status == ExecutionSkipped:
		s.Totals.Skipped++
	}
	switch d.Action {
	case ActionScaleUp:
		s.Totals.ScaleUps++
	case ActionScaleDown:
		s.Totals.ScaleDowns++
	default:
		s.Totals.NoAction++
	}
	if d.ExecutionResult != nil && d.ExecutionResult.Status == ExecutionDryRun {
		s.Totals.DryRuns++
	}
}

// Actionable reports whether any group in the tick scaled (or would have,
// under dry-run). Drives the optional alert webhook.
func (s *TickSummary) Actionable() bool {
	return s.Totals.ScaleUps > 0 || s.Totals.ScaleDowns > 0
}
