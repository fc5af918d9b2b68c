package interference

import (
	"fmt"
	"sort"

	"regent/internal/detrand"
	"regent/internal/verifier"
)

// Outcome is the post-interference view of one evaluation. SEM_PASS is not
// stored: SemPass recomputes it from the current keys with the verifier's
// aggregate every time it is read.
type Outcome struct {
	Keys      [verifier.NumKeys]bool
	aggregate verifier.AggregateFunc
	inverted  bool
}

// NewOutcome wraps a raw evaluation without any corruption.
func NewOutcome(ev verifier.Evaluation) Outcome {
	return Outcome{Keys: ev.Keys, aggregate: ev.Aggregate}
}

// SemPass returns aggregate(Keys), negated when an aggregate-scope flip hit.
func (o Outcome) SemPass() bool {
	v := o.aggregate(o.Keys)
	if o.inverted {
		return !v
	}
	return v
}

// AggregateInverted reports whether a sem_pass-scope flip was applied.
func (o Outcome) AggregateInverted() bool { return o.inverted }

// Record describes what the layer did in one epoch.
type Record struct {
	Model        Kind             `json:"model"`
	Phase        string           `json:"phase"`
	Targets      int              `json:"targets"`
	Flips        int              `json:"flips"`
	FlipsByKey   [NumTargets]int  `json:"flips_by_key"`
	Flipped      [NumTargets]bool `json:"-"`
	EffectivePPM uint32           `json:"effective_probability_ppm"`
}

// Layer applies one Spec across a run. It is not safe for concurrent use;
// each run owns its own Layer.
type Layer struct {
	spec     Spec
	seed     uint64
	tag      uint64
	state    State
	counters Counters
}

// NewLayer returns a layer drawing from the run's interference seed.
func NewLayer(spec Spec, seed uint64) *Layer {
	l := &Layer{
		spec:     spec,
		seed:     seed,
		tag:      detrand.Label(string(spec.Kind())),
		counters: newCounters(spec.Kind()),
	}
	if m, ok := spec.Model.(FSM); ok {
		l.state = m.Initial()
	}
	return l
}

// Apply intercepts the raw evaluation of the authority holder at epoch.
func (l *Layer) Apply(epoch uint64, ev verifier.Evaluation) (Outcome, Record) {
	out := NewOutcome(ev)
	if !l.spec.Active() {
		return out, Record{Model: KindNone, Phase: PhaseDisabled}
	}

	phase, p := l.plan(epoch, ev.SemPass())
	rec := Record{Model: l.spec.Kind(), Phase: phase, EffectivePPM: p}
	l.counters.observeSchedule(l.spec.Model, epoch)
	l.counters.Phases[phase]++

	for _, t := range l.spec.targets() {
		rec.Targets++
		flip := detrand.Flip(l.seed, epoch, uint64(t), l.tag, p)
		l.counters.observeDecision(t, phase, flip)
		if !flip {
			continue
		}
		rec.Flips++
		rec.FlipsByKey[t]++
		rec.Flipped[t] = true
		if t == AggregateTarget {
			out.inverted = !out.inverted
		} else {
			out.Keys[t] = !out.Keys[t]
		}
	}

	if m, ok := l.spec.Model.(FSM); ok {
		l.state = m.Transition(l.state, ev.SemPass())
	}
	return out, rec
}

// Idle records an epoch without an authority holder: nothing is evaluated,
// nothing is targeted, and the FSM does not advance.
func (l *Layer) Idle(epoch uint64) Record {
	if !l.spec.Active() {
		return Record{Model: KindNone, Phase: PhaseDisabled}
	}
	l.counters.observeSchedule(l.spec.Model, epoch)
	return Record{Model: l.spec.Kind(), Phase: PhaseIdle}
}

// plan returns the phase label and effective probability for this epoch.
// obs is the raw SEM_PASS, read only by the FSM.
func (l *Layer) plan(epoch uint64, obs bool) (string, uint32) {
	switch m := l.spec.Model.(type) {
	case Bernoulli:
		return PhaseStateless, m.PPM
	case KeyTargeted:
		return PhaseStateless, m.PPM
	case Burst:
		return m.PhaseAt(epoch)
	case FSM:
		return l.state.String(), m.SelectPPM(l.state, obs)
	default:
		panic(fmt.Sprintf("interference: unhandled model %T", m))
	}
}

// Counters returns a snapshot of the integrity counters.
func (l *Layer) Counters() Counters {
	c := l.counters
	c.Phases = make(map[string]uint64, len(l.counters.Phases))
	for k, v := range l.counters.Phases {
		c.Phases[k] = v
	}
	return c
}

// Counters are the run-level interference integrity counters.
type Counters struct {
	Model          Kind               `json:"model"`
	Targets        uint64             `json:"total_targets"`
	Flips          uint64             `json:"total_flips"`
	TargetsByKey   [NumTargets]uint64 `json:"targets_by_key"`
	FlipsByKey     [NumTargets]uint64 `json:"flips_by_key"`
	ActiveTargets  uint64             `json:"active_phase_targets"`
	ActiveFlips    uint64             `json:"active_phase_flips"`
	QuietTargets   uint64             `json:"quiet_phase_targets"`
	QuietFlips     uint64             `json:"quiet_phase_flips"`
	ScheduleEpochs uint64             `json:"schedule_epochs"`
	ActiveEpochs   uint64             `json:"active_epochs"`

	// Phases counts evaluated epochs per phase or FSM state label.
	Phases map[string]uint64 `json:"phases"`
}

func newCounters(k Kind) Counters {
	return Counters{Model: k, Phases: map[string]uint64{}}
}

func (c *Counters) observeSchedule(m Model, epoch uint64) {
	c.ScheduleEpochs++
	if b, ok := m.(Burst); ok && b.Active(epoch) {
		c.ActiveEpochs++
	}
}

func (c *Counters) observeDecision(target int, phase string, flip bool) {
	c.Targets++
	c.TargetsByKey[target]++
	switch phase {
	case PhaseActive:
		c.ActiveTargets++
	case PhaseQuiet:
		c.QuietTargets++
	}
	if !flip {
		return
	}
	c.Flips++
	c.FlipsByKey[target]++
	switch phase {
	case PhaseActive:
		c.ActiveFlips++
	case PhaseQuiet:
		c.QuietFlips++
	}
}

// ObservedFlipRatePPM is total_flips / total_targets in ppm.
func (c Counters) ObservedFlipRatePPM() uint32 { return detrand.Rate(c.Flips, c.Targets) }

// QuietPhaseFlipRatePPM is the flip rate over QUIET-phase targets.
func (c Counters) QuietPhaseFlipRatePPM() uint32 { return detrand.Rate(c.QuietFlips, c.QuietTargets) }

// ActivePhaseFlipRatePPM is the flip rate over ACTIVE-phase targets.
func (c Counters) ActivePhaseFlipRatePPM() uint32 { return detrand.Rate(c.ActiveFlips, c.ActiveTargets) }

// BurstDutyCyclePPM is the share of horizon epochs scheduled ACTIVE.
func (c Counters) BurstDutyCyclePPM() uint32 { return detrand.Rate(c.ActiveEpochs, c.ScheduleEpochs) }

// PhaseLabels returns the observed phase labels, sorted.
func (c Counters) PhaseLabels() []string {
	out := make([]string, 0, len(c.Phases))
	for k := range c.Phases {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Exercised is the run-end half of the exercised-state contract: the model
// must have been seen in two phases or states (stateful models only) and
// must have produced both a flip and a keep decision.
func (c Counters) Exercised(spec Spec) error {
	if !spec.Active() || spec.Null() {
		return nil
	}
	switch spec.Model.(type) {
	case Burst, FSM:
		if len(c.Phases) < 2 {
			return fmt.Errorf("%w: only phases %v observed on evaluated epochs", ErrDegenerateAdversary, c.PhaseLabels())
		}
	}
	if c.Flips == 0 || c.Flips == c.Targets {
		return fmt.Errorf("%w: observed %d flips over %d targets", ErrDegenerateAdversary, c.Flips, c.Targets)
	}
	return nil
}
