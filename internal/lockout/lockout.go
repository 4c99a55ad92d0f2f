package lockout

import (
	"time"

	"github.com/MrEthical07/kindauth/model"
)

// Policy is one lockout instance.
type Policy struct {
	Threshold int
	Window    time.Duration
}

// Status is the result of Check.
type Status struct {
	Locked    bool
	Remaining time.Duration
}

// Enabled reports whether the policy can ever lock.
func (p Policy) Enabled() bool {
	return p.Threshold > 0 && p.Window > 0
}

// Check returns LOCKED while now is before LockUntil.
func (p Policy) Check(st model.LockState, now time.Time) Status {
	if st.LockUntil.IsZero() || !now.Before(st.LockUntil) {
		return Status{}
	}
	return Status{Locked: true, Remaining: st.LockUntil.Sub(now)}
}

// Normalize clears a lock whose window has elapsed. The counter was already
// reset when the lock was set, so a cleared state starts at zero.
func (p Policy) Normalize(st model.LockState, now time.Time) model.LockState {
	if !st.LockUntil.IsZero() && !now.Before(st.LockUntil) {
		return model.LockState{}
	}
	return st
}

// RecordFailure counts one failure. Reaching the threshold sets
// LockUntil = now+Window and resets the counter so the next window starts
// clean.
func (p Policy) RecordFailure(st model.LockState, now time.Time) (model.LockState, bool) {
	st = p.Normalize(st, now)
	st.Count++
	if !p.Enabled() || st.Count < p.Threshold {
		return st, false
	}
	return model.LockState{LockUntil: now.Add(p.Window)}, true
}

// RecordSuccess resets the counter. An active lock is left untouched.
func (p Policy) RecordSuccess(st model.LockState) model.LockState {
	st.Count = 0
	return st
}

// Remaining is the number of failures still allowed before the lock.
func (p Policy) Remaining(st model.LockState) int {
	if p.Threshold <= 0 {
		return 0
	}
	r := p.Threshold - st.Count
	if r < 0 {
		return 0
	}
	return r
}

// Step applies one outcome to st. An unexpired lock refuses the step and
// leaves the state as found; otherwise a failure counts toward the threshold
// and a success resets the counter.
func (p Policy) Step(st model.LockState, now time.Time, failure bool) model.LockTransition {
	st = p.Normalize(st, now)
	if p.Check(st, now).Locked {
		return model.LockTransition{State: st, Locked: true}
	}
	if !failure {
		return model.LockTransition{State: p.RecordSuccess(st)}
	}
	next, tripped := p.RecordFailure(st, now)
	return model.LockTransition{State: next, Tripped: tripped}
}

// StepFor builds the store request for one outcome under p.
func (p Policy) StepFor(c model.LockCounter, now time.Time, failure bool) model.LockStep {
	return model.LockStep{Counter: c, Failure: failure, Threshold: p.Threshold, Window: p.Window, Now: now}
}

// FromStep is the policy a store should apply for step.
func FromStep(step model.LockStep) Policy {
	return Policy{Threshold: step.Threshold, Window: step.Window}
}
