// Package test provides a small multi-peer ring fixture used by the
// end-to-end scenarios under fuzzy/. Adapted
// from the teacher's own UnityCluster harness: build N peers, wire them
// into a ring over real listeners, and give the caller a way to shut the
// whole thing down deterministically.
package test

import (
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/ringfleet/robovote/pkg/robovote/core"
	"github.com/ringfleet/robovote/pkg/robovote/types"
)

// Ring is a fleet of peers bound to real loopback listeners and wired into
// a single ring, ready to exercise spec.md §4's message-passing protocol
// end to end.
type Ring struct {
	T     *testing.T
	Peers []*core.Peer

	servers []*core.InboundServer
}

// RingOption customizes a single peer's construction before the ring is
// wired up.
type RingOption func(self types.RobotID, peer *core.Peer)

// WithVotePolicy pins every non-initiator peer's vote decision, letting a
// test drive the accept/reject/exhaust scenarios of spec.md §8
// deterministically instead of rolling a Bernoulli trial.
func WithVotePolicy(policy core.VotePolicy) RingOption {
	return func(_ types.RobotID, peer *core.Peer) {
		peer.VotePolicy = policy
	}
}

// WithoutPerform strips the simulated physical-action delay, keeping
// scenario tests fast.
func WithoutPerform() RingOption {
	return func(_ types.RobotID, peer *core.Peer) {
		peer.Perform = func(types.Topic) {}
	}
}

// NewRing builds size peers, each bound to an OS-assigned loopback port and
// pointed at the next peer in id order (size wraps back to 1).
func NewRing(t *testing.T, size int, timeout time.Duration, opts ...RingOption) *Ring {
	t.Helper()
	listeners := make([]net.Listener, size)
	table := make(map[types.RobotID]types.PeerInfo, size)

	for i := 0; i < size; i++ {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed binding peer %d: %v", i+1, err)
		}
		listeners[i] = listener
		self := types.RobotID(i + 1)
		successor := types.RobotID((i+1)%size + 1)
		port := listener.Addr().(*net.TCPAddr).Port
		table[self] = types.PeerInfo{Host: "127.0.0.1", Port: port, Successor: successor}
	}

	ring := &Ring{T: t}
	for i := 0; i < size; i++ {
		self := types.RobotID(i + 1)
		info := table[self]

		membership := core.NewMembership(table)
		timer := core.NewConsensusTimer(timeout)
		sender := core.NewSender(membership, self, info.Host, info.Port, nil)
		sender.Jitter = core.NoJitter

		repairer := &core.Repairer{
			Membership: membership,
			Self:       self,
			SelfHost:   info.Host,
			SelfPort:   info.Port,
			Ping:       sender.Ping,
			SendUpdate: func(candidate types.RobotID, update types.Message) error {
				return sender.SendDirect(candidate, update, 2*time.Second)
			},
		}
		sender.Repair = repairer.Run

		policy := core.NewBernoulliPolicy(false, 0.5, int64(self))
		peer := core.NewPeer(self, info.Host, info.Port, membership, timer, sender, repairer, policy, nil, core.NoopMetrics)
		for _, opt := range opts {
			opt(self, peer)
		}

		server := core.NewInboundServer(listeners[i], core.InvokerInstance(), nil, peer.Deliver)
		peer.CloseListener = server.Close

		ring.Peers = append(ring.Peers, peer)
		ring.servers = append(ring.servers, server)

		go server.Serve()
		go peer.Run()
		go peer.RunWatchdog(20 * time.Millisecond)
	}
	return ring
}

// Kill closes dead's listener without touching anyone's membership table,
// simulating the hard failure scenarios of spec.md §8: the ring repair
// protocol itself is responsible for detecting the dead link and evicting
// its table row, so the fixture must not short-circuit that walk.
func (r *Ring) Kill(dead types.RobotID) {
	for _, peer := range r.Peers {
		if peer.Self == dead {
			peer.CloseListener()
			return
		}
	}
}

// WaitAllDone blocks until every peer's Done channel has closed, or
// reports false on timeout.
func (r *Ring) WaitAllDone(timeout time.Duration) bool {
	all := make([]types.RobotID, len(r.Peers))
	for i, peer := range r.Peers {
		all[i] = peer.Self
	}
	return r.WaitDone(timeout, all...)
}

// WaitDone blocks until every peer named in ids has terminated, or reports
// false on timeout. Used by scenarios that kill a peer's listener outright
// (test.Ring.Kill): a peer that never receives anything never terminates
// on its own, so waiting on it would hang forever.
func (r *Ring) WaitDone(timeout time.Duration, ids ...types.RobotID) bool {
	wanted := map[types.RobotID]*core.Peer{}
	for _, peer := range r.Peers {
		for _, id := range ids {
			if peer.Self == id {
				wanted[id] = peer
			}
		}
	}
	done := make(chan struct{})
	go func() {
		for _, peer := range wanted {
			<-peer.Done()
		}
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Shutdown force-terminates every peer still running, used in test cleanup
// so a failed assertion doesn't leak goroutines into the next test.
func (r *Ring) Shutdown() {
	for _, peer := range r.Peers {
		peer.GracefulShutdown()
	}
}

// WaitThisOrTimeout runs cb and reports whether it finished inside
// duration.
func WaitThisOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan bool, 1)
	go func() {
		cb()
		done <- true
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}

// PrintStackTrace dumps every goroutine's stack, used to diagnose a
// fixture that failed to shut down in time.
func PrintStackTrace(t *testing.T) {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Errorf("%s", buf[:n])
}
