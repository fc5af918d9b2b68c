// Package interference corrupts post-verification booleans according to one
// of a closed set of non-adaptive models.
//
// Every flip decision is detrand.Flip(seed_i, epoch, target, modelTag, p) where
// seed_i is the run's interference seed and p is the effective probability for
// the epoch. The only state any model may carry is the bounded FSM state.
package interference

import (
	"errors"
	"fmt"

	"regent/internal/detrand"
	"regent/internal/verifier"
)

// Kind names an interference model.
type Kind string

const (
	KindNone        Kind = "none"
	KindBernoulli   Kind = "stateless_bernoulli"
	KindKeyTargeted Kind = "key_targeted"
	KindBurst       Kind = "burst_periodic"
	KindFSM         Kind = "bounded_fsm"
)

// Scope selects which booleans a model targets.
type Scope string

const (
	// ScopeSemPass targets the aggregate outcome once per epoch.
	ScopeSemPass Scope = "sem_pass"
	// ScopePerKey targets each commitment key independently.
	ScopePerKey Scope = "per_key"
	// ScopeKey targets the single key named by a KeyTargeted model.
	ScopeKey Scope = "key"
)

// AggregateTarget is the target index used for the aggregate outcome.
// Indices below it are commitment keys.
const AggregateTarget = verifier.NumKeys

// NumTargets is the size of per-target counter arrays.
const NumTargets = verifier.NumKeys + 1

// Phase labels reported on records.
const (
	PhaseDisabled  = "DISABLED"
	PhaseIdle      = "IDLE"
	PhaseStateless = "STATELESS"
	PhaseActive    = "ACTIVE"
	PhaseQuiet     = "QUIET"
)

var (
	// ErrInvalidConfig marks an interference configuration that cannot be built.
	ErrInvalidConfig = errors.New("invalid interference config")
	// ErrDegenerateAdversary marks a model that cannot exercise two states
	// producing two distinct decisions.
	ErrDegenerateAdversary = errors.New("degenerate adversary")
)

// Model is the closed set of interference models. The unexported method
// keeps implementations inside this package.
type Model interface {
	Kind() Kind
	// Null reports whether every probability the model can use is zero.
	Null() bool
	sealed()
}

// Bernoulli flips each target with a fixed probability.
type Bernoulli struct {
	PPM uint32
}

func (Bernoulli) Kind() Kind   { return KindBernoulli }
func (m Bernoulli) Null() bool { return m.PPM == 0 }
func (Bernoulli) sealed()      {}

// KeyTargeted flips exactly one commitment key with a fixed probability.
// SEM_PASS is then recomputed with the verifier's own aggregate.
type KeyTargeted struct {
	Key verifier.Key
	PPM uint32
}

func (KeyTargeted) Kind() Kind   { return KindKeyTargeted }
func (m KeyTargeted) Null() bool { return m.PPM == 0 }
func (KeyTargeted) sealed()      {}

// Burst alternates an ACTIVE and a QUIET phase on a fixed epoch schedule.
type Burst struct {
	Period    uint64
	Width     uint64
	Offset    uint64
	ActivePPM uint32
	QuietPPM  uint32
}

func (Burst) Kind() Kind   { return KindBurst }
func (m Burst) Null() bool { return m.ActivePPM == 0 && m.QuietPPM == 0 }
func (Burst) sealed()      {}

// Active reports whether epoch falls in the ACTIVE phase. It depends on the
// epoch and the schedule parameters only.
func (m Burst) Active(epoch uint64) bool {
	return (epoch+m.Offset)%m.Period < m.Width
}

// PhaseAt returns the phase label and effective probability for epoch.
func (m Burst) PhaseAt(epoch uint64) (string, uint32) {
	if m.Active(epoch) {
		return PhaseActive, m.ActivePPM
	}
	return PhaseQuiet, m.QuietPPM
}

// Spec is a validated interference configuration.
type Spec struct {
	Enabled     bool
	Model       Model
	Scope       Scope
	StreamLabel string
}

// Disabled is the Spec for a run without interference.
func Disabled() Spec { return Spec{} }

// Active reports whether the layer will target anything at all.
func (s Spec) Active() bool { return s.Enabled && s.Model != nil }

// Null reports whether s is enabled but can never flip. Such a run
// must reproduce the disabled baseline bit for bit.
func (s Spec) Null() bool { return s.Active() && s.Model.Null() }

// Kind returns the model kind, or KindNone when interference is off.
func (s Spec) Kind() Kind {
	if !s.Active() {
		return KindNone
	}
	return s.Model.Kind()
}

// targets lists the target indices s corrupts each evaluated epoch.
func (s Spec) targets() []int {
	switch s.Scope {
	case ScopePerKey:
		return []int{int(verifier.C0), int(verifier.C1), int(verifier.C2)}
	case ScopeKey:
		if m, ok := s.Model.(KeyTargeted); ok {
			return []int{int(m.Key)}
		}
	}
	return []int{AggregateTarget}
}

// TargetName returns "C0".."C2" or "SEM_PASS".
func TargetName(i int) string {
	if i == AggregateTarget {
		return "SEM_PASS"
	}
	return verifier.Key(i).String()
}

func checkPPM(field string, v uint32) error {
	if v > detrand.PPMScale {
		return fmt.Errorf("%w: %s = %d exceeds %d ppm", ErrInvalidConfig, field, v, detrand.PPMScale)
	}
	return nil
}
