// Package candidate holds candidate identities, the pool collaborator that
// enumerates them, and the deterministic successor selector.
package candidate

import (
	"fmt"

	"regent/internal/detrand"
)

// ID identifies a candidate. Streak state lives in the eligibility tracker,
// never on the identity.
type ID string

// Pool enumerates candidates in a fixed order. Eligible returns, in pool
// order, the candidates for which isEligible holds at the given epoch.
type Pool interface {
	Eligible(epoch uint64, isEligible func(ID) bool) []ID
	All() []ID
	Contains(id ID) bool
}

// StaticPool is a fixed, ordered candidate list.
type StaticPool struct {
	ids []ID
}

// NewStaticPool builds a pool from ids. Duplicates and empty IDs are rejected.
func NewStaticPool(ids ...ID) (*StaticPool, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("candidate pool is empty")
	}
	seen := make(map[ID]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("candidate pool contains an empty id")
		}
		if seen[id] {
			return nil, fmt.Errorf("candidate %q listed twice", id)
		}
		seen[id] = true
	}
	out := make([]ID, len(ids))
	copy(out, ids)
	return &StaticPool{ids: out}, nil
}

// All returns a copy of the pool in order.
func (p *StaticPool) All() []ID {
	out := make([]ID, len(p.ids))
	copy(out, p.ids)
	return out
}

// Eligible filters the pool by isEligible, keeping pool order.
func (p *StaticPool) Eligible(_ uint64, isEligible func(ID) bool) []ID {
	var out []ID
	for _, id := range p.ids {
		if isEligible(id) {
			out = append(out, id)
		}
	}
	return out
}

// Contains reports whether id is in the pool.
func (p *StaticPool) Contains(id ID) bool {
	for _, x := range p.ids {
		if x == id {
			return true
		}
	}
	return false
}

// Policy is the frozen tie-break rule used to pick a successor.
type Policy string

const (
	PolicyPoolOrder Policy = "pool_order"
	PolicySeeded    Policy = "seeded"
)

// ParsePolicy maps a config string to a Policy. Empty means pool order.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyPoolOrder:
		return PolicyPoolOrder, nil
	case PolicySeeded:
		return PolicySeeded, nil
	default:
		return "", fmt.Errorf("unknown selection policy %q (available: pool_order, seeded)", s)
	}
}

// Selector picks one successor from an ordered eligible list. It only reads
// its own seed, so selection never touches interference randomness.
type Selector struct {
	policy Policy
	seed   uint64
}

// NewSelector returns a selector for policy using the candidate-selection seed.
func NewSelector(policy Policy, seed uint64) Selector {
	return Selector{policy: policy, seed: seed}
}

// Select returns the chosen successor among eligible, skipping exclude.
// The second result is false when nothing is selectable.
func (s Selector) Select(epoch uint64, eligible []ID, exclude ID) (ID, bool) {
	var (
		best     ID
		bestRank uint64
		found    bool
	)
	for _, id := range eligible {
		if exclude != "" && id == exclude {
			continue
		}
		if s.policy != PolicySeeded {
			return id, true
		}
		// Strict less-than keeps the earlier pool entry on equal ranks.
		r := detrand.Hash(s.seed, epoch, detrand.Label(string(id)))
		if !found || r < bestRank {
			best, bestRank, found = id, r, true
		}
	}
	return best, found
}
