package metrics

// Class is the frozen failure classification of a run.
type Class string

const (
	ClassStable    Class = "STABLE_AUTHORITY"
	ClassBounded   Class = "BOUNDED_DEGRADATION"
	ClassThrashing Class = "STRUCTURAL_THRASHING"
	ClassDoS       Class = "ASYMPTOTIC_DOS"
	ClassTerminal  Class = "TERMINAL_COLLAPSE"
)

// Frozen classifier thresholds.
const (
	// DoSTailAuthorityPPM: below this tail availability, lapse dominates.
	DoSTailAuthorityPPM = 100_000
	// ThrashingTailAuthorityPPM: thrashing needs tail availability below this.
	ThrashingTailAuthorityPPM = 800_000
	// ThrashingMinTailLapses: lapses that must begin inside the tail window.
	ThrashingMinTailLapses = 3
	// HeavyTailFactor: the RTD is heavy-tailed when the longest closed lapse
	// is at least this many times the median closed lapse.
	HeavyTailFactor = 10
	// StableTailAuthorityPPM: tail availability at or above this is stable.
	StableTailAuthorityPPM = 900_000
	// TerminalWindowDivisor: an open lapse at the horizon is terminal once it
	// covers at least 1/TerminalWindowDivisor of the effective tail window.
	TerminalWindowDivisor = 2
)

// TerminalThreshold is the open-lapse length at which a run is a terminal
// collapse: ceil(effective tail / TerminalWindowDivisor), at least 1.
func TerminalThreshold(horizon uint64) uint64 {
	t := (effectiveTail(horizon) + TerminalWindowDivisor - 1) / TerminalWindowDivisor
	if t == 0 {
		t = 1
	}
	return t
}

// Classify applies the precedence Terminal Collapse, Asymptotic DoS,
// Structural Thrashing, Bounded Degradation, Stable Authority. It returns
// exactly one label.
func Classify(s Summary) Class {
	switch {
	case s.TerminalLapseEpochs > 0 && s.TerminalLapseEpochs >= TerminalThreshold(s.HorizonEpochs):
		return ClassTerminal
	case s.AAAPPM < DoSTailAuthorityPPM:
		return ClassDoS
	case s.AAAPPM < ThrashingTailAuthorityPPM &&
		s.AAAPPM < s.AAPPM &&
		s.TailLapseEntries >= ThrashingMinTailLapses &&
		HeavyTailed(s):
		return ClassThrashing
	case s.AAAPPM < StableTailAuthorityPPM:
		return ClassBounded
	default:
		return ClassStable
	}
}

// HeavyTailed reports whether the longest closed lapse dwarfs the median.
func HeavyTailed(s Summary) bool {
	if s.LapseCount == 0 || s.MedianLapseEpochs == 0 {
		return false
	}
	return s.MaxSingleLapseEpochs >= HeavyTailFactor*s.MedianLapseEpochs
}
