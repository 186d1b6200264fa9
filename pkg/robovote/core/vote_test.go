package core

import (
	"testing"

	"github.com/ringfleet/robovote/pkg/robovote/types"
)

func TestBernoulliPolicy_ForceAgainst(t *testing.T) {
	policy := NewBernoulliPolicy(true, 1.0, 42)
	for i := 0; i < 20; i++ {
		if policy.Decide(types.Message{}) {
			t.Fatalf("--all_vote_against must never return a for vote, even with PFor=1.0")
		}
	}
}

func TestBernoulliPolicy_ExtremesAreDeterministic(t *testing.T) {
	always := NewBernoulliPolicy(false, 1.0, 1)
	never := NewBernoulliPolicy(false, 0.0, 1)

	for i := 0; i < 20; i++ {
		if !always.Decide(types.Message{}) {
			t.Fatalf("PFor=1.0 must always vote for")
		}
		if never.Decide(types.Message{}) {
			t.Fatalf("PFor=0.0 must never vote for")
		}
	}
}

func TestFixedPolicy(t *testing.T) {
	if !(FixedPolicy{For: true}).Decide(types.Message{}) {
		t.Fatalf("expected FixedPolicy{For: true} to vote for")
	}
	if (FixedPolicy{For: false}).Decide(types.Message{}) {
		t.Fatalf("expected FixedPolicy{For: false} to vote against")
	}
}
