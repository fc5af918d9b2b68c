package interference

import (
	"fmt"

	"regent/internal/detrand"
)

// CheckExercised proves from configuration alone that the model can visit at
// least two states or phases and produce at least two distinct decisions.
// Disabled and null specs pass: the first has nothing to exercise and the
// second is held to baseline equivalence instead.
//
// Stateless models have a single state, so for them the requirement reduces
// to both decisions being possible: 0 < p < 1_000_000.
func CheckExercised(spec Spec) error {
	if !spec.Active() || spec.Null() {
		return nil
	}
	switch m := spec.Model.(type) {
	case Bernoulli:
		return checkTwoDecisions(m.Kind(), m.PPM)
	case KeyTargeted:
		return checkTwoDecisions(m.Kind(), m.PPM)
	case Burst:
		if m.Width == 0 || m.Width >= m.Period {
			return fmt.Errorf("%w: burst schedule period=%d width=%d never leaves one phase",
				ErrDegenerateAdversary, m.Period, m.Width)
		}
		if m.ActivePPM == m.QuietPPM {
			return fmt.Errorf("%w: burst phases share probability %d ppm", ErrDegenerateAdversary, m.ActivePPM)
		}
		return nil
	case FSM:
		reach := m.Reachable()
		if len(reach) < 2 {
			return fmt.Errorf("%w: fsm with %d configured states reaches only %d", ErrDegenerateAdversary, m.States(), len(reach))
		}
		distinct := map[uint32]bool{}
		for _, s := range reach {
			distinct[m.SelectPPM(s, false)] = true
			distinct[m.SelectPPM(s, true)] = true
		}
		if len(distinct) < 2 {
			return fmt.Errorf("%w: every reachable fsm state selects the same probability", ErrDegenerateAdversary)
		}
		return nil
	default:
		return fmt.Errorf("%w: unhandled model %T", ErrInvalidConfig, m)
	}
}

func checkTwoDecisions(k Kind, p uint32) error {
	if p >= detrand.PPMScale {
		return fmt.Errorf("%w: %s with p=%d ppm flips every target", ErrDegenerateAdversary, k, p)
	}
	return nil
}
