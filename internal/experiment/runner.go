package experiment

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"regent/internal/kernel"
	"regent/internal/logging"
	"regent/internal/metrics"
)

// Options control how an experiment is executed. None of them can change a
// run's outcome.
type Options struct {
	// ID names the experiment execution; a random UUID when empty.
	ID string
	// Parallel bounds concurrent seeds; <= 0 means GOMAXPROCS.
	Parallel int
	// Sink receives every epoch of every seed. It must be safe for
	// concurrent use when Parallel > 1.
	Sink kernel.Sink
}

// Result holds one RunResult per seed, in the experiment's seed order.
type Result struct {
	ID         string              `json:"id"`
	Experiment *Experiment         `json:"experiment"`
	Runs       []*kernel.RunResult `json:"runs"`
	StartedAt  time.Time           `json:"started_at"`
	Elapsed    time.Duration       `json:"elapsed_ns"`
}

// Run executes every seed. Seeds are independent and share no mutable
// state, so they run concurrently; the result order never depends on
// scheduling. A fatal kernel error cancels the remaining seeds.
func Run(ctx context.Context, exp *Experiment, opts Options) (*Result, error) {
	setup, err := exp.Setup()
	if err != nil {
		return nil, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}

	logger := logging.New("experiment")
	logger.Info("experiment started", "id", id, "name", exp.Name, "seeds", len(exp.Seeds), "parallel", parallel)

	res := &Result{ID: id, Experiment: exp, Runs: make([]*kernel.RunResult, len(exp.Seeds)), StartedAt: time.Now()}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, seed := range exp.Seeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := kernel.Run(seed, setup.Kernel, setup.Interference, setup.Env, opts.Sink)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			res.Runs[i] = r
			if !r.Valid() {
				logger.Warn("invalid run", "seed", seed, "reason", r.InvalidReason)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("experiment %q: %w", exp.Name, err)
	}
	res.Elapsed = time.Since(res.StartedAt)

	t := res.Totals()
	logger.Info("experiment finished", "id", id, "valid", t.Valid, "invalid", t.Invalid,
		"mean_aa_ppm", t.MeanAAPPM, "mean_aaa_ppm", t.MeanAAAPPM, "elapsed", res.Elapsed)
	return res, nil
}

// Err joins the InvalidRunError of every invalid seed, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, run := range r.Runs {
		if err := run.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Totals aggregates the valid runs of an experiment. Invalid runs are
// counted but contribute no metrics.
type Totals struct {
	Runs       int                   `json:"runs"`
	Valid      int                   `json:"valid"`
	Invalid    int                   `json:"invalid"`
	Classes    map[metrics.Class]int `json:"classes"`
	MeanAAPPM  uint32                `json:"mean_aa_ppm"`
	MeanAAAPPM uint32                `json:"mean_aaa_ppm"`
	LapseCount uint64                `json:"lapse_count"`
	RTD        metrics.RTD           `json:"rtd"`
	Flips      uint64                `json:"flips"`
	Targets    uint64                `json:"targets"`
}

// Totals computes integer means over valid runs.
func (r *Result) Totals() Totals {
	t := Totals{Runs: len(r.Runs), Classes: map[metrics.Class]int{}}
	var aa, aaa uint64
	for _, run := range r.Runs {
		if run == nil {
			continue
		}
		t.Flips += run.Interference.Flips
		t.Targets += run.Interference.Targets
		if !run.Valid() {
			t.Invalid++
			continue
		}
		t.Valid++
		s := run.Summary
		t.Classes[s.FailureClass]++
		aa += uint64(s.AAPPM)
		aaa += uint64(s.AAAPPM)
		t.LapseCount += s.LapseCount
		for i, n := range s.RTD {
			t.RTD[i] += n
		}
	}
	if t.Valid > 0 {
		t.MeanAAPPM = uint32(aa / uint64(t.Valid))
		t.MeanAAAPPM = uint32(aaa / uint64(t.Valid))
	}
	return t
}
