package models

import "time"

// Policy is the lockout policy: Threshold consecutive failures spanning less than Window
// lock the account for Duration, counted from the failure that completed the streak.
type Policy struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Threshold: 5,
		Window:    15 * time.Minute,
		Duration:  30 * time.Minute,
	}
}

// Lookback is how far back the history must reach to decide a lock at any instant.
func (p Policy) Lookback() time.Duration {
	return p.Duration + p.Window
}

// LockState is the outcome of evaluating a history.
type LockState struct {
	Locked      bool
	LockedUntil time.Time
	// Streak is the number of counted failures since the last success.
	Streak int
}

// Streak returns the counted failures since the most recent success, newest first.
// history must be ordered newest first.
func Streak(history []LoginAttempt) []LoginAttempt {
	var out []LoginAttempt
	for _, a := range history {
		if a.Success {
			break
		}
		if a.FailureReason.CountsTowardLockout() {
			out = append(out, a)
		}
	}
	return out
}

// Evaluate decides the lock state at now from a newest-first history.
func (p Policy) Evaluate(history []LoginAttempt, now time.Time) LockState {
	streak := Streak(history)
	state := LockState{Streak: len(streak)}
	if p.Threshold <= 0 {
		return state
	}
	// The newest qualifying run yields the latest lock; older runs cannot outlast it.
	for i := 0; i+p.Threshold-1 < len(streak); i++ {
		newest := streak[i].Timestamp
		oldest := streak[i+p.Threshold-1].Timestamp
		if newest.Sub(oldest) >= p.Window {
			continue
		}
		until := newest.Add(p.Duration)
		if now.Before(until) {
			state.Locked = true
			state.LockedUntil = until
		}
		return state
	}
	return state
}

// FailuresWithin counts streak failures at or after since.
func FailuresWithin(history []LoginAttempt, since time.Time) int {
	n := 0
	for _, a := range Streak(history) {
		if a.Timestamp.Before(since) {
			break
		}
		n++
	}
	return n
}
