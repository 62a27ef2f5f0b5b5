// Package timelock holds values whose changes take effect only after a
// cooldown.
package timelock

import "time"

// Value is a parameter with an active value and at most one pending change.
// The pending value becomes visible at its effective time; reads resolve it
// lazily, so no background work is needed.
type Value[T any] struct {
	active      T
	pending     T
	hasPending  bool
	effectiveAt time.Time
}

// New returns a Value with v active and nothing pending.
func New[T any](v T) Value[T] {
	return Value[T]{active: v}
}

// Get returns the value in force at now.
func (v Value[T]) Get(now time.Time) T {
	if v.hasPending && !now.Before(v.effectiveAt) {
		return v.pending
	}
	return v.active
}

// Latest returns the most recently scheduled value, pending or not.
func (v Value[T]) Latest() T {
	if v.hasPending {
		return v.pending
	}
	return v.active
}

// Pending reports the queued value and when it takes effect. ok is false once
// the change is in force or when nothing is queued.
func (v Value[T]) Pending(now time.Time) (value T, effectiveAt time.Time, ok bool) {
	if !v.hasPending || !now.Before(v.effectiveAt) {
		return value, time.Time{}, false
	}
	return v.pending, v.effectiveAt, true
}

// Propose queues val to take effect at now+delay. A change already in force
// is promoted first; a change still cooling down is replaced and its
// cooldown restarts.
func (v *Value[T]) Propose(val T, now time.Time, delay time.Duration) {
	v.settle(now)
	v.pending = val
	v.hasPending = true
	v.effectiveAt = now.Add(delay)
}

// Set replaces the active value immediately and drops any pending change.
func (v *Value[T]) Set(val T) {
	var zero T
	v.active = val
	v.pending = zero
	v.hasPending = false
	v.effectiveAt = time.Time{}
}

func (v *Value[T]) settle(now time.Time) {
	if v.hasPending && !now.Before(v.effectiveAt) {
		v.Set(v.pending)
	}
}
