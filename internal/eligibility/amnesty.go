package eligibility

import (
	"fmt"

	"regent/internal/candidate"
)

// Amnesty is Constitutional Temporal Amnesty: while no one holds authority,
// every Interval epochs each ineligible candidate's streak drops by Decay.
// The schedule depends on the epoch index only, never on interference.
type Amnesty struct {
	Enabled  bool
	Interval uint64
	Decay    int
}

// Validate checks an enabled amnesty has a usable schedule.
func (a Amnesty) Validate() error {
	if !a.Enabled {
		return nil
	}
	if a.Interval == 0 {
		return fmt.Errorf("amnesty_interval must be positive when CTA is enabled")
	}
	if a.Decay < 1 {
		return fmt.Errorf("amnesty_decay = %d, want >= 1 when CTA is enabled", a.Decay)
	}
	return nil
}

// Due reports whether epoch is an amnesty tick.
func (a Amnesty) Due(epoch uint64) bool {
	return a.Enabled && a.Interval > 0 && epoch%a.Interval == 0
}

// Tick applies the decay for a lapse epoch and returns the candidates whose
// streaks were lowered. Callers invoke it only during NullAuthority.
func (a Amnesty) Tick(epoch uint64, t *Tracker) []candidate.ID {
	if !a.Due(epoch) {
		return nil
	}
	ids := t.Ineligible()
	for _, id := range ids {
		t.decay(id, a.Decay)
	}
	return ids
}
