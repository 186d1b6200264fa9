package core

import (
	"sync"

	"github.com/ringfleet/robovote/pkg/robovote/types"
)

// Membership is the authoritative local table of peers (spec.md §4.2). It
// is mutated only by the state machine handling an update message, or by a
// local repair run; the outbound sender only ever reads from it.
//
// A single sync.RWMutex is enough to serialize those readers/writer: the
// state machine already processes one inbound message at a time (see
// core/peer.go's poll loop), so in practice there is never more than one
// writer active, but the mutex keeps the type safe to share with a
// concurrently-running repair goroutine and the outbound sender.
type Membership struct {
	mu    sync.RWMutex
	table map[types.RobotID]types.PeerInfo
}

// NewMembership builds a membership view from an initial table, typically
// loaded from the fleet config file.
func NewMembership(initial map[types.RobotID]types.PeerInfo) *Membership {
	table := make(map[types.RobotID]types.PeerInfo, len(initial))
	for id, info := range initial {
		table[id] = info
	}
	return &Membership{table: table}
}

// Lookup resolves id's endpoint.
func (m *Membership) Lookup(id types.RobotID) (types.Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.table[id]
	if !ok {
		return types.Endpoint{}, types.ErrUnknownPeer
	}
	return info.Endpoint(), nil
}

// SuccessorOf returns the successor id currently recorded for id.
func (m *Membership) SuccessorOf(id types.RobotID) (types.RobotID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.table[id]
	if !ok {
		return 0, types.ErrUnknownPeer
	}
	return info.Successor, nil
}

// AdvanceSuccessor returns successor_of(successor_of(from)) — the "skip
// one" repair candidate of spec.md §4.6 step 1.
func (m *Membership) AdvanceSuccessor(from types.RobotID) (types.RobotID, error) {
	next, err := m.SuccessorOf(from)
	if err != nil {
		return 0, err
	}
	return m.SuccessorOf(next)
}

// ApplyUpdate implements spec.md §4.2's apply_update: sets the initiator's
// successor pointer and evicts every faulty id. Applying the same update
// twice is idempotent: the second application sets the same successor and
// deletes ids already absent, a no-op either way.
func (m *Membership) ApplyUpdate(initiator, successor types.RobotID, faulty []types.RobotID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.table[initiator]
	if !ok {
		return types.ErrUnknownPeer
	}
	info.Successor = successor
	m.table[initiator] = info
	for _, id := range faulty {
		delete(m.table, id)
	}
	return nil
}

// Remove deletes a single id from the table, used mid-repair before the
// update announcement has circulated (spec.md §4.6 step 5).
func (m *Membership) Remove(id types.RobotID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.table, id)
}

// SetSuccessor rewrites id's successor pointer directly, used by the local
// repairing peer before it has built the update message to broadcast.
func (m *Membership) SetSuccessor(id, successor types.RobotID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.table[id]
	if !ok {
		return types.ErrUnknownPeer
	}
	info.Successor = successor
	m.table[id] = info
	return nil
}

// Size returns N, the live membership count used by the vote-termination
// arithmetic of spec.md §4.4.
func (m *Membership) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.table)
}

// Snapshot returns a defensive copy of the full table, used by tests that
// assert ring-closure invariants and by the shutdown fan-out which needs a
// stable id list to iterate without holding the lock.
func (m *Membership) Snapshot() map[types.RobotID]types.PeerInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[types.RobotID]types.PeerInfo, len(m.table))
	for id, info := range m.table {
		out[id] = info
	}
	return out
}

// Alone reports whether id is the only entry left, or points at itself —
// the degenerate terminal ring state of spec.md §3.
func (m *Membership) Alone(id types.RobotID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.table) <= 1 {
		return true
	}
	info, ok := m.table[id]
	return ok && info.Successor == id
}
