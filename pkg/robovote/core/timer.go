package core

import (
	"sync"
	"time"
)

// ConsensusTimer is the fleet-wide deadline origin of spec.md §3: a wall
// clock T0, fixed once by whichever peer adopts it first (the initiator at
// poll creation, or the first recipient to see that poll), plus a bound Δ.
// The peer checks it only from its watchdog loop (Peer.RunWatchdog), on a
// fixed interval; message handling, accepts and outbound sends do not
// consult it.
type ConsensusTimer struct {
	mu     sync.Mutex
	origin time.Time
	set    bool
	bound  time.Duration
}

// NewConsensusTimer builds a timer with bound Δ and no origin yet adopted.
func NewConsensusTimer(bound time.Duration) *ConsensusTimer {
	return &ConsensusTimer{bound: bound}
}

// Adopt sets the origin if, and only if, it is not already set — spec.md
// §3's "subsequent poll messages do not overwrite it".
func (c *ConsensusTimer) Adopt(origin time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set {
		return
	}
	c.origin = origin
	c.set = true
}

// Origin returns the adopted deadline origin and whether one has been
// adopted yet.
func (c *ConsensusTimer) Origin() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.origin, c.set
}

// Deadline returns T0 + Δ. The zero time is returned if no origin has been
// adopted yet, in which case Expired is always false.
func (c *ConsensusTimer) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return time.Time{}
	}
	return c.origin.Add(c.bound)
}

// Expired reports whether now is past the deadline. A timer with no
// adopted origin never expires — a peer that has not yet seen a poll has
// nothing to bound.
func (c *ConsensusTimer) Expired(now time.Time) bool {
	c.mu.Lock()
	set := c.set
	deadline := c.origin.Add(c.bound)
	c.mu.Unlock()
	if !set {
		return false
	}
	return now.After(deadline)
}

// Bound returns Δ.
func (c *ConsensusTimer) Bound() time.Duration {
	return c.bound
}
