package fuzzy

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ringfleet/robovote/pkg/robovote/core"
	"github.com/ringfleet/robovote/pkg/robovote/types"
	"github.com/ringfleet/robovote/test"
)

// Test_HappyPathAcceptance exercises spec.md §8's baseline scenario: every
// peer votes for, the poll is accepted somewhere in the first lap, the
// action message circulates once more, and the fleet shuts itself down.
func Test_HappyPathAcceptance(t *testing.T) {
	defer goleak.VerifyNone(t)

	ring := test.NewRing(t, 5, 10*time.Second, test.WithVotePolicy(core.FixedPolicy{For: true}), test.WithoutPerform())
	defer ring.Shutdown()

	if err := ring.Peers[0].InitiatePoll(types.MoveUp); err != nil {
		t.Fatalf("failed initiating poll: %v", err)
	}

	if !ring.WaitAllDone(5 * time.Second) {
		test.PrintStackTrace(t)
		t.Fatalf("fleet did not shut down after an accepted poll")
	}
	for _, peer := range ring.Peers {
		if peer.ExitCode() != 0 {
			t.Errorf("peer %d: expected a graceful exit code 0, got %d", peer.Self, peer.ExitCode())
		}
	}
}

// Test_MajorityAgainstThenTimeout exercises the rejection half of spec.md
// §8: every peer votes against, the poll dies silently partway around the
// ring, and the fleet only winds down once the consensus deadline expires.
func Test_MajorityAgainstThenTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	ring := test.NewRing(t, 5, 150*time.Millisecond, test.WithVotePolicy(core.FixedPolicy{For: false}), test.WithoutPerform())
	defer ring.Shutdown()

	if err := ring.Peers[0].InitiatePoll(types.MoveDown); err != nil {
		t.Fatalf("failed initiating poll: %v", err)
	}

	if !ring.WaitAllDone(3 * time.Second) {
		test.PrintStackTrace(t)
		t.Fatalf("fleet did not shut down after its consensus deadline expired")
	}
	for _, peer := range ring.Peers {
		if peer.ExitCode() != 0 {
			t.Errorf("peer %d: expected a graceful timeout exit code 0, got %d", peer.Self, peer.ExitCode())
		}
	}
}

// Test_SuccessorFailureIsRepaired exercises spec.md §8's single-hop repair
// scenario: one peer's listener is killed before the poll starts, and the
// ring must route around it without the fleet falling over.
func Test_SuccessorFailureIsRepaired(t *testing.T) {
	defer goleak.VerifyNone(t)

	ring := test.NewRing(t, 4, 10*time.Second, test.WithVotePolicy(core.FixedPolicy{For: true}), test.WithoutPerform())
	defer ring.Shutdown()

	ring.Kill(3)

	if err := ring.Peers[0].InitiatePoll(types.MoveLeft); err != nil {
		t.Fatalf("failed initiating poll: %v", err)
	}

	// Peer 3's listener is dead; it never receives anything and never
	// terminates on its own, so only wait on the peers still reachable.
	if !ring.WaitDone(5*time.Second, 1, 2, 4) {
		test.PrintStackTrace(t)
		t.Fatalf("fleet did not shut down after repairing around the dead peer")
	}
	for _, peer := range ring.Peers {
		if peer.Self == 3 {
			continue
		}
		if peer.ExitCode() != 0 {
			t.Errorf("peer %d: expected a graceful exit code 0, got %d", peer.Self, peer.ExitCode())
		}
	}

	succ, err := ring.Peers[1].Membership.SuccessorOf(2)
	if err != nil || succ != 4 {
		t.Errorf("expected peer 2's successor repaired to 4, got %v (err %v)", succ, err)
	}
}

// Test_CascadingFailureWalksPastMultipleDeadHops exercises spec.md §8's
// multi-hop repair scenario: two consecutive peers are killed, and the
// repair walk must skip both before landing on a live candidate.
func Test_CascadingFailureWalksPastMultipleDeadHops(t *testing.T) {
	defer goleak.VerifyNone(t)

	ring := test.NewRing(t, 5, 10*time.Second, test.WithVotePolicy(core.FixedPolicy{For: true}), test.WithoutPerform())
	defer ring.Shutdown()

	ring.Kill(2)
	ring.Kill(3)

	if err := ring.Peers[0].InitiatePoll(types.MoveRight); err != nil {
		t.Fatalf("failed initiating poll: %v", err)
	}

	if !ring.WaitDone(5*time.Second, 1, 4, 5) {
		test.PrintStackTrace(t)
		t.Fatalf("fleet did not shut down after repairing past two dead hops")
	}

	succ, err := ring.Peers[0].Membership.SuccessorOf(1)
	if err != nil || succ != 4 {
		t.Errorf("expected peer 1's successor repaired to 4, got %v (err %v)", succ, err)
	}
}

// Test_ConsensusTimeoutTriggersFanOutShutdown exercises spec.md §4.7
// directly: a peer whose timer has silently expired must fan out a
// shutdown to the rest of the fleet, not just terminate itself.
func Test_ConsensusTimeoutTriggersFanOutShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	ring := test.NewRing(t, 3, time.Hour, test.WithoutPerform())
	defer ring.Shutdown()

	ring.Peers[0].Timer.Adopt(time.Now().Add(-time.Hour))

	if !ring.WaitAllDone(3 * time.Second) {
		test.PrintStackTrace(t)
		t.Fatalf("fleet did not shut down after one peer's deadline silently expired")
	}
	for _, peer := range ring.Peers {
		if peer.ExitCode() != 0 {
			t.Errorf("peer %d: expected a graceful exit code 0, got %d", peer.Self, peer.ExitCode())
		}
	}
}
