// Package verifier defines the commitment-verifier collaborator consumed by
// the kernel and a synthetic probabilistic oracle that implements it.
//
// The kernel never judges commitments itself. It asks a Verifier for the raw
// per-key booleans of the current holder and, when it needs SEM_PASS, calls
// the aggregation function the verifier handed back with them.
package verifier

import (
	"errors"
	"fmt"
	"sort"

	"regent/internal/candidate"
	"regent/internal/detrand"
)

// Key names one commitment.
type Key uint8

const (
	C0 Key = iota
	C1
	C2
)

// NumKeys is the number of commitment keys evaluated per epoch.
const NumKeys = 3

func (k Key) String() string {
	switch k {
	case C0:
		return "C0"
	case C1:
		return "C1"
	case C2:
		return "C2"
	default:
		return fmt.Sprintf("C?%d", uint8(k))
	}
}

// ParseKey maps "C0".."C2" to a Key.
func ParseKey(s string) (Key, error) {
	for k := Key(0); k < NumKeys; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown commitment key %q (available: C0, C1, C2)", s)
}

// AggregateFunc combines per-key booleans into SEM_PASS.
type AggregateFunc func(keys [NumKeys]bool) bool

// All is the conjunctive aggregate: SEM_PASS iff every key passes.
func All(keys [NumKeys]bool) bool {
	for _, k := range keys {
		if !k {
			return false
		}
	}
	return true
}

// Evaluation is the raw result for one candidate at one epoch.
type Evaluation struct {
	Keys      [NumKeys]bool
	Aggregate AggregateFunc
}

// SemPass recomputes SEM_PASS_raw from Keys.
func (e Evaluation) SemPass() bool { return e.Aggregate(e.Keys) }

// Verifier produces raw commitment outcomes. Implementations must be pure
// functions of (candidate, epoch) and their construction-time inputs.
type Verifier interface {
	Evaluate(c candidate.ID, epoch uint64) Evaluation
}

// Calibrator is implemented by verifiers that can prove, before a run, that
// their outcomes discriminate between pass and fail for every candidate.
type Calibrator interface {
	Calibrate(ids []candidate.ID) error
}

// ErrMiscalibrated marks a verifier whose SEM_PASS is constant for some
// candidate, which makes every downstream metric meaningless.
var ErrMiscalibrated = errors.New("verifier is not discriminative")

// Synthetic is a probabilistic oracle: key k of candidate c passes at epoch e
// iff UniformPPM(seed, e, c, k) < pass rate. The seed must be the verifier's
// own derived seed.
type Synthetic struct {
	seed      uint64
	base      [NumKeys]uint32
	overrides map[candidate.ID][NumKeys]uint32
}

// NewSynthetic builds an oracle with default per-key pass rates and optional
// per-candidate overrides. All rates are ppm in [0, 1_000_000].
func NewSynthetic(seed uint64, base [NumKeys]uint32, overrides map[candidate.ID][NumKeys]uint32) (*Synthetic, error) {
	if err := checkRates("default", base); err != nil {
		return nil, err
	}
	cp := make(map[candidate.ID][NumKeys]uint32, len(overrides))
	for id, r := range overrides {
		if err := checkRates(string(id), r); err != nil {
			return nil, err
		}
		cp[id] = r
	}
	return &Synthetic{seed: seed, base: base, overrides: cp}, nil
}

func checkRates(who string, r [NumKeys]uint32) error {
	for k, v := range r {
		if v > detrand.PPMScale {
			return fmt.Errorf("%s: pass rate for %s is %d ppm, above %d", who, Key(k), v, detrand.PPMScale)
		}
	}
	return nil
}

func (s *Synthetic) rates(c candidate.ID) [NumKeys]uint32 {
	if r, ok := s.overrides[c]; ok {
		return r
	}
	return s.base
}

// Evaluate draws the three keys for c at epoch.
func (s *Synthetic) Evaluate(c candidate.ID, epoch uint64) Evaluation {
	r := s.rates(c)
	label := detrand.Label(string(c))
	var ev Evaluation
	for k := 0; k < NumKeys; k++ {
		ev.Keys[k] = detrand.Flip(s.seed, epoch, label, uint64(k), r[k])
	}
	ev.Aggregate = All
	return ev
}

// AggregatePassPPM is the exact probability, in ppm and rounded down, that
// All passes for c.
func (s *Synthetic) AggregatePassPPM(c candidate.ID) uint32 {
	r := s.rates(c)
	p := uint64(detrand.PPMScale)
	for _, v := range r {
		p = p * uint64(v) / detrand.PPMScale
	}
	return uint32(p)
}

// Calibrate fails when SEM_PASS can only ever take one value for some
// candidate: a key that never passes, or every key always passing.
func (s *Synthetic) Calibrate(ids []candidate.ID) error {
	var bad []string
	for _, id := range ids {
		r := s.rates(id)
		never, always := false, true
		for _, v := range r {
			if v == 0 {
				never = true
			}
			if v < detrand.PPMScale {
				always = false
			}
		}
		switch {
		case never:
			bad = append(bad, fmt.Sprintf("%s (never passes)", id))
		case always:
			bad = append(bad, fmt.Sprintf("%s (always passes)", id))
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("%w: %v", ErrMiscalibrated, bad)
	}
	return nil
}
