// Package wait is the single bounded polling primitive used by every
// component that has to wait on the browser.
package wait

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a budget is exhausted before the predicate
// reports success.
var ErrTimeout = errors.New("wait: budget exhausted")

// Budget is a fixed poll interval and a maximum number of evaluations.
// It carries no state between calls.
type Budget struct {
	Interval   time.Duration
	Iterations int
}

// NewBudget derives the iteration count from a maximum duration.
// A budget always allows at least one evaluation.
func NewBudget(maxDuration, interval time.Duration) Budget {
	if interval <= 0 {
		return Budget{Iterations: 1}
	}
	n := int(maxDuration / interval)
	if n < 1 {
		n = 1
	}
	return Budget{Interval: interval, Iterations: n}
}

// MaxDuration is the total time the budget may spend sleeping.
func (b Budget) MaxDuration() time.Duration {
	return b.Interval * time.Duration(b.Iterations)
}

// Until evaluates pred until it returns true or the budget runs out.
// pred is called at most b.Iterations times and there is no sleep after the
// last evaluation.
func Until(ctx context.Context, b Budget, pred func(context.Context) bool) error {
	n := b.Iterations
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		if pred(ctx) {
			return nil
		}
		if i == n-1 {
			break
		}
		if err := Sleep(ctx, b.Interval); err != nil {
			return err
		}
	}
	return ErrTimeout
}

// Until is shorthand for the package-level Until with this budget.
func (b Budget) Until(ctx context.Context, pred func(context.Context) bool) error {
	return Until(ctx, b, pred)
}

// Sleep blocks for d, returning early with the context error if ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
