package kernel

import (
	"errors"
	"fmt"

	"regent/internal/candidate"
	"regent/internal/interference"
	"regent/internal/lease"
	"regent/internal/metrics"
)

// Status tells whether a run produced trusted metrics.
type Status string

const (
	StatusValid   Status = "VALID"
	StatusInvalid Status = "INVALID_RUN"
)

// InterferenceSummary is the run's interference integrity report.
type InterferenceSummary struct {
	interference.Counters
	Scope                  interference.Scope `json:"scope,omitempty"`
	ObservedFlipRatePPM    uint32             `json:"observed_flip_rate_ppm"`
	ActivePhaseFlipRatePPM uint32             `json:"active_phase_flip_rate_ppm"`
	QuietPhaseFlipRatePPM  uint32             `json:"quiet_phase_flip_rate_ppm"`
	BurstDutyCyclePPM      uint32             `json:"burst_duty_cycle_ppm"`
}

func summarizeInterference(spec interference.Spec, c interference.Counters) InterferenceSummary {
	return InterferenceSummary{
		Counters:               c,
		Scope:                  spec.Scope,
		ObservedFlipRatePPM:    c.ObservedFlipRatePPM(),
		ActivePhaseFlipRatePPM: c.ActivePhaseFlipRatePPM(),
		QuietPhaseFlipRatePPM:  c.QuietPhaseFlipRatePPM(),
		BurstDutyCyclePPM:      c.BurstDutyCyclePPM(),
	}
}

// RunResult is computed once, at run end, from the full epoch trace.
// Summary is nil for INVALID_RUN. Transitions counts boundary transitions
// by kind.
type RunResult struct {
	Seed          uint64                `json:"seed"`
	Status        Status                `json:"status"`
	InvalidReason string                `json:"invalid_reason,omitempty"`
	Summary       *metrics.Summary      `json:"summary,omitempty"`
	LapseStats    *metrics.LapseStats   `json:"lapse_stats,omitempty"`
	Interference  InterferenceSummary   `json:"interference"`
	TraceDigest   string                `json:"trace_digest,omitempty"`
	Transitions   map[lease.Kind]uint64 `json:"transitions,omitempty"`
	Lapses        []metrics.Lapse       `json:"-"`
}

// Valid reports whether the run's metrics may be trusted.
func (r *RunResult) Valid() bool { return r.Status == StatusValid }

// Class returns the failure class, or "" for an invalid run.
func (r *RunResult) Class() metrics.Class {
	if r.Summary == nil {
		return ""
	}
	return r.Summary.FailureClass
}

// Err returns an *InvalidRunError for an invalid run, nil otherwise.
func (r *RunResult) Err() error {
	if r.Valid() {
		return nil
	}
	return &InvalidRunError{Seed: r.Seed, Reason: r.InvalidReason}
}

// InvalidRunError reports a run whose metrics must not be used.
type InvalidRunError struct {
	Seed   uint64
	Reason string
}

func (e *InvalidRunError) Error() string {
	return fmt.Sprintf("seed %d: %s: %s", e.Seed, StatusInvalid, e.Reason)
}

// IsInvalidRun reports whether err is or wraps an *InvalidRunError.
func IsInvalidRun(err error) bool {
	var ie *InvalidRunError
	return errors.As(err, &ie)
}

func invalid(seed uint64, err error) *RunResult {
	return &RunResult{Seed: seed, Status: StatusInvalid, InvalidReason: err.Error()}
}

// CommitmentOutcome is one set of commitment booleans.
type CommitmentOutcome struct {
	C0      bool `json:"c0"`
	C1      bool `json:"c1"`
	C2      bool `json:"c2"`
	SemPass bool `json:"sem_pass"`
}

// EpochRecord is what a Sink receives for every epoch.
type EpochRecord struct {
	Seed         uint64              `json:"seed"`
	Epoch        uint64              `json:"epoch"`
	Holder       candidate.ID        `json:"holder,omitempty"`
	Auth         bool                `json:"auth"`
	Raw          *CommitmentOutcome  `json:"raw,omitempty"`
	Post         *CommitmentOutcome  `json:"post,omitempty"`
	Interference interference.Record `json:"interference"`
	Streak       int                 `json:"streak"`
	Transition   lease.Kind          `json:"transition"`
	NextHolder   candidate.ID        `json:"next_holder,omitempty"`
	Renewals     int                 `json:"renewals"`
	Amnesty      []candidate.ID      `json:"amnesty,omitempty"`
}

// Sink consumes per-epoch records, e.g. for persistence.
type Sink interface {
	RecordEpoch(rec EpochRecord) error
}
