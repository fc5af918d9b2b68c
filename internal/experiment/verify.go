package experiment

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"regent/internal/interference"
	"regent/internal/kernel"
	"regent/internal/logging"
)

// ErrDeterminismViolation is fatal: replaying a seed with the same
// configuration produced a different trace.
var ErrDeterminismViolation = errors.New("determinism violation")

// Check is the replay record of one seed.
type Check struct {
	Seed     uint64        `json:"seed"`
	Status   kernel.Status `json:"status"`
	Digest   string        `json:"digest"`
	Replay   string        `json:"replay"`
	Baseline string        `json:"baseline,omitempty"`
}

// Verification is the outcome of Verify. Any error from Verify is fatal;
// a returned Verification always passed both gates.
type Verification struct {
	Experiment string  `json:"experiment"`
	NullModel  bool    `json:"null_model"`
	Checks     []Check `json:"checks"`
}

// Verify replays every seed twice and requires identical digests. For a
// null interference model each seed is also run with interference disabled
// and must match that baseline bit for bit.
func Verify(ctx context.Context, exp *Experiment, parallel int) (*Verification, error) {
	setup, err := exp.Setup()
	if err != nil {
		return nil, err
	}
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	null := setup.Interference.Null()
	out := &Verification{Experiment: exp.Name, NullModel: null, Checks: make([]Check, len(exp.Seeds))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, seed := range exp.Seeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := verifySeed(seed, setup, null)
			if err != nil {
				return err
			}
			out.Checks[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("verify %q: %w", exp.Name, err)
	}
	logging.New("experiment").Info("replay verified", "name", exp.Name, "seeds", len(exp.Seeds), "null_model", null)
	return out, nil
}

func verifySeed(seed uint64, setup *Setup, null bool) (Check, error) {
	first, err := kernel.Run(seed, setup.Kernel, setup.Interference, setup.Env, nil)
	if err != nil {
		return Check{}, fmt.Errorf("seed %d: %w", seed, err)
	}
	second, err := kernel.Run(seed, setup.Kernel, setup.Interference, setup.Env, nil)
	if err != nil {
		return Check{}, fmt.Errorf("seed %d replay: %w", seed, err)
	}
	c := Check{Seed: seed, Status: first.Status, Digest: first.TraceDigest, Replay: second.TraceDigest}
	if first.TraceDigest != second.TraceDigest || first.Status != second.Status {
		return c, fmt.Errorf("%w: seed %d: %s %s, replay %s %s",
			ErrDeterminismViolation, seed, first.Status, first.TraceDigest, second.Status, second.TraceDigest)
	}
	if !null {
		return c, nil
	}

	base, err := kernel.Run(seed, setup.Kernel, interference.Disabled(), setup.Env, nil)
	if err != nil {
		return c, fmt.Errorf("seed %d baseline: %w", seed, err)
	}
	c.Baseline = base.TraceDigest
	if base.TraceDigest != first.TraceDigest {
		return c, fmt.Errorf("%w: seed %d: %s, baseline %s", kernel.ErrEquivalenceViolation, seed, first.TraceDigest, base.TraceDigest)
	}
	return c, nil
}
