package core

import (
	"github.com/ringfleet/robovote/pkg/robovote/types"
)

// Repairer implements the failure detector and ring-repair protocol of
// spec.md §4.6, executed locally by the peer whose outbound send just
// failed.
type Repairer struct {
	Membership *Membership
	Self       types.RobotID
	SelfHost   string
	SelfPort   int
	Ping       func(types.RobotID) error
	SendUpdate func(candidate types.RobotID, update types.Message) error
	Log        types.Logger
}

// Run executes spec.md §4.6 steps 1-6 and returns the new successor
// candidate, or ErrAloneInRing if the walk came back to Self. The walk
// starts at deadSuccessor itself, so the peer that triggered the repair is
// pinged, recorded as faulty, and evicted along with anything else found
// dead along the way.
func (r *Repairer) Run(deadSuccessor types.RobotID) (types.RobotID, error) {
	candidate := deadSuccessor
	var faulty []types.RobotID
	for candidate != r.Self {
		if r.Ping(candidate) == nil {
			if err := r.Membership.SetSuccessor(r.Self, candidate); err != nil {
				return 0, err
			}
			for _, id := range faulty {
				r.Membership.Remove(id)
			}
			update := types.Message{
				Type:         types.KindUpdate,
				InitiatorID:  r.Self,
				Successor:    candidate,
				FaultyRobots: faulty,
			}.WithSender(r.Self, r.SelfHost, r.SelfPort)

			if err := r.SendUpdate(candidate, update); err != nil && r.Log != nil {
				r.Log.Errorf("repair: failed broadcasting update %#v: %v", update, err)
			}
			return candidate, nil
		}

		faulty = append(faulty, candidate)
		next, err := r.Membership.SuccessorOf(candidate)
		if err != nil {
			return 0, err
		}
		candidate = next
	}

	if r.Log != nil {
		r.Log.Warnf("peer %d is alone in the ring after repair", r.Self)
	}
	return 0, types.ErrAloneInRing
}
