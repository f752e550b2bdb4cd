package workflow

import (
	"context"
	"time"
)

// StatusMachine tracks the current status of one record and validates transitions
type StatusMachine interface {
	// Module returns the module the machine belongs to
	Module() Module

	// Status returns the current status
	Status() Status

	// CanFire returns true if the trigger is configured for the current status
	CanFire(trigger Trigger) bool

	// Fire executes the trigger, moving to the new status if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current status
	PermittedTriggers() []Trigger
}

// TransitionContext carries record facts that branch guards read during Fire
type TransitionContext struct {
	PlannedCloseDate *time.Time
	ClosingDate      *time.Time
}

type transitionContextKey struct{}

// WithTransitionContext attaches transition facts to the context
func WithTransitionContext(ctx context.Context, tc TransitionContext) context.Context {
	return context.WithValue(ctx, transitionContextKey{}, tc)
}

// TransitionContextFrom extracts transition facts from the context
func TransitionContextFrom(ctx context.Context) (TransitionContext, bool) {
	tc, ok := ctx.Value(transitionContextKey{}).(TransitionContext)
	return tc, ok
}

// ClosedOnTime is a guard that passes when the closing date is not after the planned date
func ClosedOnTime(ctx context.Context) bool {
	tc, ok := TransitionContextFrom(ctx)
	if !ok || tc.PlannedCloseDate == nil || tc.ClosingDate == nil {
		return false
	}
	return ClassifyClosure(*tc.PlannedCloseDate, *tc.ClosingDate) == StatusClosedOnTime
}

// ClosedLate is a guard that passes when the closing date is after the planned date
func ClosedLate(ctx context.Context) bool {
	tc, ok := TransitionContextFrom(ctx)
	if !ok || tc.PlannedCloseDate == nil || tc.ClosingDate == nil {
		return false
	}
	return ClassifyClosure(*tc.PlannedCloseDate, *tc.ClosingDate) == StatusClosedLate
}
