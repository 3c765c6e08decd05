// Package budget enforces per-run resource limits: USD cost, wall-clock time,
// step count and capability-call count. A Tracker is exclusively owned by one
// run; its counters are monotonically increasing and never reset mid-run.
package budget

import (
	"fmt"
	"time"

	"github.com/weaveflow/weaveflow/ir"
)

// Dimension names one budget axis.
type Dimension string

const (
	// DimensionCost is the accumulated USD cost of model attempts.
	DimensionCost Dimension = "cost"
	// DimensionTime is wall-clock time elapsed since the run started.
	DimensionTime Dimension = "time"
	// DimensionSteps is the number of executed steps.
	DimensionSteps Dimension = "steps"
	// DimensionCapabilityCalls is the number of attempted capability calls.
	DimensionCapabilityCalls Dimension = "capability_calls"
)

// ExceededError reports a budget dimension pushed past its limit. The
// attempted value is the total that triggered the failure; the charge stands
// so partial work remains accounted for.
type ExceededError struct {
	Dimension Dimension
	Limit     float64
	Attempted float64
}

// Error implements the error interface.
func (e *ExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: %s limit %g, attempted %g", e.Dimension, e.Limit, e.Attempted)
}

// Limits are the effective caps for one run. Nil fields are unbounded.
type Limits struct {
	MaxCostUSD         *float64
	Timeout            *time.Duration
	MaxSteps           *int
	MaxCapabilityCalls *int
}

// FromPolicy converts a compiled policy into limits. A nil policy has no
// limits at all.
func FromPolicy(p *ir.Policy) Limits {
	if p == nil {
		return Limits{}
	}
	l := Limits{
		MaxCostUSD:         p.MaxCostUSDPerRun,
		MaxSteps:           p.MaxSteps,
		MaxCapabilityCalls: p.MaxCapabilityCalls,
	}
	if p.TimeoutSeconds != nil {
		d := time.Duration(*p.TimeoutSeconds * float64(time.Second))
		l.Timeout = &d
	}
	return l
}

// Tracker accumulates one run's charges and checks them against the limits.
// Charges are applied before a check so the attempted total is real; an
// over-limit charge stays on the counters and the run aborts.
type Tracker struct {
	limits Limits
	now    func() time.Time
	start  time.Time

	costUSD         float64
	steps           int
	capabilityCalls int
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker starts a tracker for one run. The time budget counts from now.
func NewTracker(limits Limits, opts ...Option) *Tracker {
	t := &Tracker{limits: limits, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.now()
	return t
}

// ChargeStep charges one step unit and checks the step ceiling.
func (t *Tracker) ChargeStep() error {
	t.steps++
	if t.limits.MaxSteps != nil && t.steps > *t.limits.MaxSteps {
		return &ExceededError{Dimension: DimensionSteps, Limit: float64(*t.limits.MaxSteps), Attempted: float64(t.steps)}
	}
	return nil
}

// ChargeCost charges a model attempt's USD cost and checks the cost cap.
func (t *Tracker) ChargeCost(usd float64) error {
	t.costUSD += usd
	if t.limits.MaxCostUSD != nil && t.costUSD > *t.limits.MaxCostUSD {
		return &ExceededError{Dimension: DimensionCost, Limit: *t.limits.MaxCostUSD, Attempted: t.costUSD}
	}
	return nil
}

// ChargeCapabilityCall charges one capability-call unit and checks the cap.
// Every attempted call is charged, approved or not.
func (t *Tracker) ChargeCapabilityCall() error {
	t.capabilityCalls++
	if t.limits.MaxCapabilityCalls != nil && t.capabilityCalls > *t.limits.MaxCapabilityCalls {
		return &ExceededError{Dimension: DimensionCapabilityCalls, Limit: float64(*t.limits.MaxCapabilityCalls), Attempted: float64(t.capabilityCalls)}
	}
	return nil
}

// CheckAgainst validates the counters against additional limits, for
// operations governed by a narrower policy than the run's. Nothing is
// charged; the shared counters are compared as they stand.
func (t *Tracker) CheckAgainst(l Limits) error {
	if l.MaxSteps != nil && t.steps > *l.MaxSteps {
		return &ExceededError{Dimension: DimensionSteps, Limit: float64(*l.MaxSteps), Attempted: float64(t.steps)}
	}
	if l.MaxCostUSD != nil && t.costUSD > *l.MaxCostUSD {
		return &ExceededError{Dimension: DimensionCost, Limit: *l.MaxCostUSD, Attempted: t.costUSD}
	}
	if l.MaxCapabilityCalls != nil && t.capabilityCalls > *l.MaxCapabilityCalls {
		return &ExceededError{Dimension: DimensionCapabilityCalls, Limit: float64(*l.MaxCapabilityCalls), Attempted: float64(t.capabilityCalls)}
	}
	if l.Timeout != nil {
		if elapsed := t.Elapsed(); elapsed > *l.Timeout {
			return &ExceededError{Dimension: DimensionTime, Limit: l.Timeout.Seconds(), Attempted: elapsed.Seconds()}
		}
	}
	return nil
}

// CheckTime verifies the wall-clock budget. It is called proactively before a
// potentially slow operation and reactively after one completes.
func (t *Tracker) CheckTime() error {
	if t.limits.Timeout == nil {
		return nil
	}
	elapsed := t.Elapsed()
	if elapsed > *t.limits.Timeout {
		return &ExceededError{Dimension: DimensionTime, Limit: t.limits.Timeout.Seconds(), Attempted: elapsed.Seconds()}
	}
	return nil
}

// Remaining returns the unspent time budget. ok is false when the run has no
// time limit.
func (t *Tracker) Remaining() (time.Duration, bool) {
	if t.limits.Timeout == nil {
		return 0, false
	}
	rem := *t.limits.Timeout - t.Elapsed()
	if rem < 0 {
		rem = 0
	}
	return rem, true
}

// Deadline returns the absolute time the run's time budget expires. ok is
// false when the run has no time limit.
func (t *Tracker) Deadline() (time.Time, bool) {
	if t.limits.Timeout == nil {
		return time.Time{}, false
	}
	return t.start.Add(*t.limits.Timeout), true
}

// Elapsed returns the wall-clock time since the run started.
func (t *Tracker) Elapsed() time.Duration { return t.now().Sub(t.start) }

// CostUSD returns the accumulated cost.
func (t *Tracker) CostUSD() float64 { return t.costUSD }

// Steps returns the number of charged steps.
func (t *Tracker) Steps() int { return t.steps }

// CapabilityCalls returns the number of charged capability calls.
func (t *Tracker) CapabilityCalls() int { return t.capabilityCalls }
