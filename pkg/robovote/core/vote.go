package core

import (
	"math/rand"

	"github.com/ringfleet/robovote/pkg/robovote/types"
)

// VotePolicy decides how a non-initiator peer casts its vote on a
// circulating poll. Spec.md §9 explicitly calls for this to be an injected
// strategy rather than a hardcoded coin flip, so tests can pin the
// decision deterministically.
type VotePolicy interface {
	// Decide returns true for a "for" vote, false for "against".
	Decide(msg types.Message) bool
}

// BernoulliPolicy is the reference policy of spec.md §4.4: force-against
// if configured, otherwise a Bernoulli trial with P(for) = PFor.
type BernoulliPolicy struct {
	// ForceAgainst always votes against, modeling the --all_vote_against
	// CLI flag of spec.md §6.
	ForceAgainst bool

	// PFor is the probability of casting a "for" vote when ForceAgainst is
	// false. Spec.md §9 notes the reference is internally inconsistent
	// between 0.5 and 0.7-ish; there is no canonical default, so this is
	// always explicit at construction.
	PFor float64

	// Rand is the source of randomness. Defaults to the package-level
	// source via rand.Float64 if nil, but is overridable so tests can pin
	// the sequence without touching PFor.
	Rand *rand.Rand
}

// NewBernoulliPolicy builds the reference policy with an independently
// seeded source, so concurrently-running peers in a single test process
// don't share (and therefore serialize on) the global rand source.
func NewBernoulliPolicy(forceAgainst bool, pFor float64, seed int64) *BernoulliPolicy {
	return &BernoulliPolicy{
		ForceAgainst: forceAgainst,
		PFor:         pFor,
		Rand:         rand.New(rand.NewSource(seed)),
	}
}

func (b *BernoulliPolicy) Decide(types.Message) bool {
	if b.ForceAgainst {
		return false
	}
	if b.Rand != nil {
		return b.Rand.Float64() < b.PFor
	}
	return rand.Float64() < b.PFor
}

// FixedPolicy always returns For, regardless of message content — used by
// tests pinning the happy-path acceptance scenario of spec.md §8.
type FixedPolicy struct{ For bool }

func (f FixedPolicy) Decide(types.Message) bool { return f.For }
