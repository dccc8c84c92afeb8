package auth

import "time"

// LockoutPolicy decides lock state from a principal's failure counter. It holds no state
// and never clears a lock in the background: an expired lock is cleared by the next success.
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// Locked reports whether the lock is in force at now.
func (p LockoutPolicy) Locked(state LoginState, now time.Time) (time.Time, bool) {
	if !state.IsLocked || state.LockUntil == nil {
		return time.Time{}, false
	}
	if now.Before(*state.LockUntil) {
		return *state.LockUntil, true
	}
	return time.Time{}, false
}

// RecordFailure counts a failed verification and locks once the counter reaches MaxAttempts.
func (p LockoutPolicy) RecordFailure(state LoginState, now time.Time) LoginState {
	next := state
	next.FailedAttempts++
	if next.FailedAttempts >= p.MaxAttempts {
		until := now.Add(p.LockDuration)
		next.IsLocked = true
		next.LockUntil = &until
	}
	return next
}

func (p LockoutPolicy) RecordSuccess(state LoginState, now time.Time) LoginState {
	next := state
	next.FailedAttempts = 0
	next.IsLocked = false
	next.LockUntil = nil
	next.LastLoginAt = &now
	return next
}
