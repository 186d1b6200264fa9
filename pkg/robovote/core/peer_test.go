package core

import (
	"testing"
	"time"

	"github.com/ringfleet/robovote/pkg/robovote/definition"
	"github.com/ringfleet/robovote/pkg/robovote/types"
)

func newTestPeer(self types.RobotID, policy VotePolicy) *Peer {
	membership := ring5()
	timer := NewConsensusTimer(30 * time.Second)
	sender := NewSender(membership, self, "localhost", 8000+int(self), nil)
	peer := NewPeer(self, "localhost", 8000+int(self), membership, timer, sender, nil, policy, nil, nil)
	peer.Perform = func(types.Topic) {}
	return peer
}

func TestPeer_HandlePoll_InitiatorPassesThroughWithoutVoting(t *testing.T) {
	peer := newTestPeer(1, FixedPolicy{For: true})
	msg := types.Message{Type: types.KindPoll, Topic: types.MoveUp, InitiatorID: 1, SenderID: 5, CountFor: 1}

	out, pendingShutdown, receivedShutdown := peer.handlePoll(msg)
	if out == nil {
		t.Fatalf("expected the initiator to pass the poll on when it returns home")
	}
	if out.SenderID != 1 || out.CountFor != 1 || out.CountAgainst != 0 {
		t.Fatalf("expected the poll forwarded unchanged apart from the sender fields, got %#v", out)
	}
	if pendingShutdown || receivedShutdown {
		t.Fatalf("expected no shutdown signal from a lapped poll")
	}
}

func TestPeer_HandlePoll_AcceptsOnMajority(t *testing.T) {
	peer := newTestPeer(2, FixedPolicy{For: true})
	msg := types.Message{
		Type:        types.KindPoll,
		Topic:       types.MoveUp,
		InitiatorID: 1,
		CountFor:    2, // two prior "for" votes in a 5-peer ring
	}

	out, pendingShutdown, receivedShutdown := peer.handlePoll(msg)
	if out == nil {
		t.Fatalf("expected an action message once the majority is reached")
	}
	if out.Type != types.KindAction {
		t.Fatalf("expected action message, got %s", out.Type)
	}
	if out.ProtocolVersion != definition.ProtocolVersion {
		t.Fatalf("expected action message stamped with the protocol version")
	}
	if !pendingShutdown {
		t.Fatalf("expected acceptance to flag a pending shutdown")
	}
	if receivedShutdown {
		t.Fatalf("did not expect receivedShutdown to be set")
	}
}

func TestPeer_HandlePoll_RejectsOnMajorityAgainst(t *testing.T) {
	peer := newTestPeer(2, FixedPolicy{For: false})
	msg := types.Message{
		Type:         types.KindPoll,
		Topic:        types.MoveUp,
		InitiatorID:  1,
		CountAgainst: 2,
	}

	out, pendingShutdown, receivedShutdown := peer.handlePoll(msg)
	if out != nil {
		t.Fatalf("expected the poll to die once rejected, got forwarded message %#v", out)
	}
	if pendingShutdown || receivedShutdown {
		t.Fatalf("expected no shutdown signal from a rejected poll")
	}
}

func TestPeer_HandlePoll_ExhaustsWithoutMajority(t *testing.T) {
	peer := newTestPeer(5, FixedPolicy{For: false})
	// Exhaustion without a majority only arises with an even N; a 5-ring's
	// last vote always decides one way or the other.
	m4 := NewMembership(map[types.RobotID]types.PeerInfo{
		1: {Host: "localhost", Port: 8001, Successor: 2},
		2: {Host: "localhost", Port: 8002, Successor: 3},
		3: {Host: "localhost", Port: 8003, Successor: 4},
		4: {Host: "localhost", Port: 8004, Successor: 1},
	})
	peer.Membership = m4
	msg := types.Message{
		Type:         types.KindPoll,
		InitiatorID:  1,
		Topic:        types.MoveUp,
		CountFor:     2,
		CountAgainst: 1,
	}

	out, pendingShutdown, receivedShutdown := peer.handlePoll(msg)
	if out != nil {
		t.Fatalf("expected no forwarded message once the vote is exhausted, got %#v", out)
	}
	if pendingShutdown || receivedShutdown {
		t.Fatalf("expected no shutdown signal from an exhausted poll")
	}
}

func TestPeer_HandleAction_InitiatorEndsTheLap(t *testing.T) {
	peer := newTestPeer(1, nil)
	msg := types.Message{Type: types.KindAction, InitiatorID: 1, Topic: types.MoveUp}
	out, pendingShutdown, receivedShutdown := peer.handleAction(msg)
	if out != nil || pendingShutdown || receivedShutdown {
		t.Fatalf("expected the action to simply stop once it returns to its initiator")
	}
}

func TestPeer_HandleAction_ForwardsAndPerforms(t *testing.T) {
	performed := false
	peer := newTestPeer(2, nil)
	peer.Perform = func(types.Topic) { performed = true }
	msg := types.Message{Type: types.KindAction, InitiatorID: 1, Topic: types.MoveUp}

	out, _, _ := peer.handleAction(msg)
	if out == nil {
		t.Fatalf("expected the action message to be forwarded")
	}
	if out.SenderID != 2 {
		t.Fatalf("expected forwarded action stamped with the relaying peer's id, got %d", out.SenderID)
	}
	if !performed {
		t.Fatalf("expected Perform to be invoked for a non-initiator relaying an action")
	}
}

func TestPeer_HandleUpdate_AppliesAndForwards(t *testing.T) {
	peer := newTestPeer(4, nil)
	msg := types.Message{
		Type:         types.KindUpdate,
		InitiatorID:  2,
		Successor:    4,
		FaultyRobots: []types.RobotID{3},
	}

	out, _, _ := peer.handleUpdate(msg)
	if out == nil {
		t.Fatalf("expected the update to be forwarded")
	}
	succ, err := peer.Membership.SuccessorOf(2)
	if err != nil || succ != 4 {
		t.Fatalf("expected peer 2's successor updated locally to 4, got %v (err %v)", succ, err)
	}
	if _, err := peer.Membership.Lookup(3); err != types.ErrUnknownPeer {
		t.Fatalf("expected peer 3 evicted from the local table")
	}
}

func TestPeer_TerminateLocalIsIdempotent(t *testing.T) {
	peer := newTestPeer(1, nil)
	closed := 0
	peer.CloseListener = func() { closed++ }

	peer.terminateLocal(1)
	peer.terminateLocal(0)

	if closed != 1 {
		t.Fatalf("expected CloseListener invoked exactly once, got %d", closed)
	}
	if peer.ExitCode() != 1 {
		t.Fatalf("expected the first terminateLocal's exit code to stick, got %d", peer.ExitCode())
	}
	select {
	case <-peer.Done():
	default:
		t.Fatalf("expected Done() to be closed after termination")
	}
}

func TestPeer_UnixTimeRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	roundTripped := unixToTime(toUnixFloat(now))
	if roundTripped.Sub(now) > time.Millisecond || now.Sub(roundTripped) > time.Millisecond {
		t.Fatalf("expected sub-millisecond round trip, got %v vs %v", now, roundTripped)
	}
}
