package kernel

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"

	"regent/internal/candidate"
	"regent/internal/eligibility"
	"regent/internal/interference"
	"regent/internal/lease"
	"regent/internal/logging"
	"regent/internal/metrics"
	"regent/internal/verifier"
)

var (
	// ErrAggregatorDivergence is fatal: the post-interference SEM_PASS no
	// longer matches the verifier's aggregate over the post-interference keys.
	ErrAggregatorDivergence = errors.New("SEM_PASS diverged from the verifier aggregate")

	// ErrEquivalenceViolation marks a null interference model whose run is
	// not bit-identical to the disabled baseline.
	ErrEquivalenceViolation = errors.New("null interference diverged from the disabled baseline")

	// ErrGate wraps every pre-run validity failure.
	ErrGate = errors.New("pre-run gate")
)

// Environment carries the collaborators the kernel consumes but does not own.
type Environment struct {
	Pool candidate.Pool
	// NewVerifier is called once per run with the run's verifier seed.
	NewVerifier func(seed uint64) (verifier.Verifier, error)
}

const (
	flagAuth byte = 1 << iota
	flagSemPass
	flagFlip0
)

type state struct {
	verifier verifier.Verifier
	tracker  *eligibility.Tracker
	amnesty  eligibility.Amnesty
	machine  *lease.Machine
	layer    *interference.Layer
}

// Preflight runs the pre-run gate for one seed without executing any epoch.
func Preflight(seed uint64, cfg Config, spec interference.Spec, env Environment) error {
	_, err := prepare(cfg, spec, env, DeriveSeeds(seed, spec.StreamLabel))
	return err
}

func prepare(cfg Config, spec interference.Spec, env Environment, seeds Seeds) (*state, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: config: %v", ErrGate, err)
	}
	if err := interference.CheckExercised(spec); err != nil {
		return nil, fmt.Errorf("%w: interference: %w", ErrGate, err)
	}
	if env.Pool == nil || env.NewVerifier == nil {
		return nil, fmt.Errorf("%w: environment needs a pool and a verifier", ErrGate)
	}
	ids := env.Pool.All()
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: candidate pool is empty", ErrGate)
	}

	v, err := env.NewVerifier(seeds.Verifier)
	if err != nil {
		return nil, fmt.Errorf("%w: verifier: %v", ErrGate, err)
	}
	if c, ok := v.(verifier.Calibrator); ok {
		if err := c.Calibrate(ids); err != nil {
			return nil, fmt.Errorf("%w: verifier: %w", ErrGate, err)
		}
	}

	tracker, err := eligibility.NewTracker(cfg.EligibilityK, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: eligibility: %v", ErrGate, err)
	}
	policy, _ := candidate.ParsePolicy(cfg.Selection)
	initial := candidate.ID(cfg.InitialCandidate)
	if initial == "" {
		initial = ids[0]
	}
	m, err := lease.New(cfg.Lease(), initial, env.Pool, candidate.NewSelector(policy, seeds.Selection), tracker)
	if err != nil {
		return nil, fmt.Errorf("%w: lease: %v", ErrGate, err)
	}

	return &state{
		verifier: v,
		tracker:  tracker,
		amnesty:  cfg.Amnesty(),
		machine:  m,
		layer:    interference.NewLayer(spec, seeds.Interference),
	}, nil
}

// Run executes one seed to the horizon. Once epoch 0 starts the loop runs
// to completion; there is no mid-run cancellation. Gate failures and
// degenerate adversaries come back as an INVALID_RUN result with a nil
// error; the error is reserved for fatal conditions (sink failures,
// aggregator divergence). A null interference model is additionally
// replayed against the disabled baseline and must match it bit for bit.
func Run(seed uint64, cfg Config, spec interference.Spec, env Environment, sink Sink) (*RunResult, error) {
	res, err := execute(seed, cfg, spec, env, sink)
	if err != nil || !res.Valid() || !spec.Null() {
		return res, err
	}

	base, err := execute(seed, cfg, interference.Disabled(), env, nil)
	if err != nil {
		return nil, fmt.Errorf("baseline replay: %w", err)
	}
	if base.TraceDigest != res.TraceDigest {
		res.Status = StatusInvalid
		res.InvalidReason = fmt.Errorf("%w: digest %s, baseline %s", ErrEquivalenceViolation, res.TraceDigest, base.TraceDigest).Error()
		res.Summary, res.LapseStats, res.Lapses = nil, nil, nil
	}
	return res, nil
}

func execute(seed uint64, cfg Config, spec interference.Spec, env Environment, sink Sink) (*RunResult, error) {
	log := logging.New("kernel")

	st, err := prepare(cfg, spec, env, DeriveSeeds(seed, spec.StreamLabel))
	if err != nil {
		log.Warn("run rejected before epoch 0", "seed", seed, "error", err)
		return invalid(seed, err), nil
	}

	trace := make(metrics.Trace, 0, cfg.MaxCycles)
	digest := sha3.New256()
	transitions := map[lease.Kind]uint64{}
	for e := uint64(0); e < cfg.MaxCycles; e++ {
		rec, err := st.step(seed, e, digest)
		if err != nil {
			return nil, fmt.Errorf("seed %d epoch %d: %w", seed, e, err)
		}
		trace = append(trace, rec.Auth)
		if rec.Transition != lease.KindNone {
			transitions[rec.Transition]++
		}
		if sink != nil {
			if err := sink.RecordEpoch(rec); err != nil {
				return nil, fmt.Errorf("record epoch %d: %w", e, err)
			}
		}
	}

	counters := st.layer.Counters()
	res := &RunResult{
		Seed:         seed,
		Status:       StatusValid,
		Interference: summarizeInterference(spec, counters),
		TraceDigest:  hex.EncodeToString(digest.Sum(nil)),
		Transitions:  transitions,
	}
	if err := counters.Exercised(spec); err != nil {
		res.Status = StatusInvalid
		res.InvalidReason = err.Error()
		log.Warn("run invalidated after horizon", "seed", seed, "error", err)
		return res, nil
	}

	sum := metrics.Summarize(trace)
	res.Summary = &sum
	res.Lapses = metrics.Lapses(trace)
	if ls, err := metrics.DescribeLapses(res.Lapses); err == nil {
		res.LapseStats = &ls
	}
	log.Debug("run complete", "seed", seed, "aa_ppm", sum.AAPPM, "aaa_ppm", sum.AAAPPM, "class", sum.FailureClass)
	return res, nil
}

// step runs one epoch: evaluation and interference when someone holds
// authority, amnesty when no one does, then the lease boundary.
func (st *state) step(seed, e uint64, digest hash.Hash) (EpochRecord, error) {
	rec := EpochRecord{Seed: seed, Epoch: e}
	var flags byte

	if holder, ok := st.machine.State().Holder(); ok {
		ev := st.verifier.Evaluate(holder, e)
		out, irec := st.layer.Apply(e, ev)
		if err := checkAggregate(ev, out, irec); err != nil {
			return rec, err
		}
		post := out.SemPass()
		rec.Holder = holder
		rec.Auth = true
		rec.Raw = commitment(ev.Keys, ev.SemPass())
		rec.Post = commitment(out.Keys, post)
		rec.Interference = irec
		rec.Streak = st.tracker.Record(holder, post)

		flags = flagAuth
		if post {
			flags |= flagSemPass
		}
		for t, hit := range irec.Flipped {
			if hit {
				flags |= flagFlip0 << t
			}
		}
	} else {
		rec.Interference = st.layer.Idle(e)
		rec.Amnesty = st.amnesty.Tick(e, st.tracker)
	}

	tr := st.machine.Boundary(e)
	rec.Transition = tr.Kind
	if tr.Kind != lease.KindNone {
		rec.NextHolder, _ = tr.To.Holder()
	}
	rec.Renewals = st.machine.Renewals()

	digest.Write([]byte{flags})
	digest.Write([]byte(rec.Holder))
	digest.Write([]byte{0})
	return rec, nil
}

// checkAggregate rebuilds the post-interference commitments from the raw
// evaluation and the layer's flip record, aggregates them with the
// verifier's function, and requires the outcome to report the same keys and
// SEM_PASS.
func checkAggregate(ev verifier.Evaluation, out interference.Outcome, irec interference.Record) error {
	keys := ev.Keys
	for k := range keys {
		if irec.Flipped[k] {
			keys[k] = !keys[k]
		}
	}
	if keys != out.Keys {
		return fmt.Errorf("%w: flip record gives keys %v, outcome carries %v", ErrAggregatorDivergence, keys, out.Keys)
	}
	want := ev.Aggregate(keys)
	if irec.Flipped[interference.AggregateTarget] {
		want = !want
	}
	if got := out.SemPass(); got != want {
		return fmt.Errorf("%w: keys %v give %t, outcome reports %t", ErrAggregatorDivergence, keys, want, got)
	}
	return nil
}

func commitment(keys [verifier.NumKeys]bool, semPass bool) *CommitmentOutcome {
	return &CommitmentOutcome{C0: keys[verifier.C0], C1: keys[verifier.C1], C2: keys[verifier.C2], SemPass: semPass}
}
