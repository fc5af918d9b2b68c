// Package eligibility owns candidate failure streaks: the tracker that moves
// them on evaluated epochs and the amnesty that decays them during lapse.
package eligibility

import (
	"fmt"
	"sort"

	"regent/internal/candidate"
)

// Tracker holds every candidate's consecutive semantic-failure streak.
// A candidate is eligible iff its streak is below K.
type Tracker struct {
	k       int
	streaks map[candidate.ID]int
}

// NewTracker returns a tracker with threshold k for the given candidates.
func NewTracker(k int, ids []candidate.ID) (*Tracker, error) {
	if k < 1 {
		return nil, fmt.Errorf("eligibility threshold k = %d, want >= 1", k)
	}
	t := &Tracker{k: k, streaks: make(map[candidate.ID]int, len(ids))}
	for _, id := range ids {
		t.streaks[id] = 0
	}
	return t, nil
}

// Record applies the post-interference SEM_PASS of an evaluated holder:
// a pass resets the streak, a failure extends it. It returns the new streak.
func (t *Tracker) Record(id candidate.ID, semPass bool) int {
	if semPass {
		t.streaks[id] = 0
	} else {
		t.streaks[id]++
	}
	return t.streaks[id]
}

func (t *Tracker) streak(id candidate.ID) int { return t.streaks[id] }

// Eligible reports whether id's streak is below K.
func (t *Tracker) Eligible(id candidate.ID) bool { return t.streak(id) < t.k }

// Ineligible returns the ineligible candidates in ID order.
func (t *Tracker) Ineligible() []candidate.ID {
	var out []candidate.ID
	for id, s := range t.streaks {
		if s >= t.k {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// decay lowers id's streak by n, stopping at zero.
func (t *Tracker) decay(id candidate.ID, n int) {
	s := t.streaks[id] - n
	if s < 0 {
		s = 0
	}
	t.streaks[id] = s
}
