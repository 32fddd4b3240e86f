package resilience

import (
	"time"

	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

const (
	DefaultErrorThreshold = 5
	DefaultOpenFor        = 15 * time.Minute
)

// Policy is the per-group circuit breaker. State lives in the database row,
// not in memory, so any number of controller replicas see the same circuit.
type Policy struct {
	ErrorThreshold int
	OpenFor        time.Duration
}

func NewPolicy(threshold int, openFor time.Duration) *Policy {
	if threshold <= 0 {
		threshold = DefaultErrorThreshold
	}
	if openFor <= 0 {
		openFor = DefaultOpenFor
	}
	return &Policy{ErrorThreshold: threshold, OpenFor: openFor}
}

// Blocked reports whether the group's circuit is open at time now, and how
// long remains until it half-opens.
func (p *Policy) Blocked(state *models.GroupRuntimeState, now time.Time) (bool, time.Duration) {
	if !state.CircuitOpen(now) {
		return false, 0
	}
	return true, state.CircuitOpenUntil.Sub(now)
}

// Arm is called with the consecutive error count after a failed evaluation.
// When the count reaches the threshold it returns the deadline to store in
// circuit_open_until; otherwise nil.
func (p *Policy) Arm(errorCount int, now time.Time) *time.Time {
	if errorCount < p.ErrorThreshold {
		return nil
	}
	until := now.Add(p.OpenFor)
	return &until
}
