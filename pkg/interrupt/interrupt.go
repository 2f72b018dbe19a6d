// Package interrupt provides the shared stop latch observed by every
// long-running speech and motion operation.
//
// Cancellation is cooperative: waits poll the latch at short intervals
// instead of sleeping for their full duration.
package interrupt

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is how often Wait checks the latch.
const DefaultPollInterval = 100 * time.Millisecond

// Signal is a boolean latch with an epoch counter.
// Every Raise bumps the epoch, so work stamped before a stop can be recognized
// as stale even after a later command clears the latch.
type Signal struct {
	set   atomic.Bool
	epoch atomic.Uint64
	poll  time.Duration
}

// New creates a cleared signal polling at the given interval.
// A non-positive interval selects DefaultPollInterval.
func New(poll time.Duration) *Signal {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Signal{poll: poll}
}

// Raise sets the latch and starts a new epoch.
func (s *Signal) Raise() {
	s.epoch.Add(1)
	s.set.Store(true)
}

// Clear resets the latch. Called when the next speak/act is accepted.
func (s *Signal) Clear() {
	s.set.Store(false)
}

// IsSet reports whether a stop is pending.
func (s *Signal) IsSet() bool {
	return s.set.Load()
}

// Epoch returns the number of Raise calls so far.
func (s *Signal) Epoch() uint64 {
	return s.epoch.Load()
}

// PollInterval returns the polling step used by Wait.
func (s *Signal) PollInterval() time.Duration {
	return s.poll
}

// Wait blocks for d, checking the latch every poll interval.
// It returns false if the latch was raised or ctx ended before d elapsed.
func (s *Signal) Wait(ctx context.Context, d time.Duration) bool {
	return s.WaitSince(ctx, d, s.Epoch())
}

// WaitSince is Wait for work stamped with epoch. It also returns false when a
// Raise happened after the stamp, even if the latch has since been cleared.
func (s *Signal) WaitSince(ctx context.Context, d time.Duration, epoch uint64) bool {
	if s.Stale(epoch) {
		return false
	}
	deadline := time.Now().Add(d)
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return !s.Stale(epoch)
		}
		if remaining < s.poll {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-timer.C:
				return !s.Stale(epoch)
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if s.Stale(epoch) {
				return false
			}
		}
	}
}

// Stale reports whether work stamped with epoch must not proceed: the latch
// is set or a stop happened after the stamp.
func (s *Signal) Stale(epoch uint64) bool {
	return s.set.Load() || s.epoch.Load() != epoch
}
