// Package experiment loads experiment files, resolves them into kernel
// inputs, and runs their seeds in parallel.
package experiment

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"regent/internal/candidate"
	"regent/internal/detrand"
	"regent/internal/interference"
	"regent/internal/kernel"
	"regent/internal/verifier"
)

// ErrInvalidExperiment marks an experiment file that cannot be run at all.
var ErrInvalidExperiment = errors.New("invalid experiment")

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("ppm", validatePPM)
}

// validatePPM accepts integer probabilities in [0, 1_000_000].
func validatePPM(fl validator.FieldLevel) bool {
	return fl.Field().Uint() <= detrand.PPMScale
}

// Experiment is one experiment file: a frozen configuration and the explicit
// seeds to run it with.
type Experiment struct {
	Name         string              `yaml:"name" json:"name" validate:"required"`
	Description  string              `yaml:"description" json:"description,omitempty"`
	Seeds        []uint64            `yaml:"seeds" json:"seeds" validate:"required,min=1,unique"`
	Kernel       kernel.Config       `yaml:"kernel" json:"kernel"`
	Interference interference.Config `yaml:"interference" json:"interference"`
	Verifier     VerifierConfig      `yaml:"verifier" json:"verifier"`
	Pool         PoolConfig          `yaml:"pool" json:"pool"`
}

// VerifierConfig configures the synthetic oracle. Rates are per key, in ppm.
type VerifierConfig struct {
	PassPPM   [verifier.NumKeys]uint32            `yaml:"pass_ppm" json:"pass_ppm" validate:"dive,ppm"`
	Overrides map[string][verifier.NumKeys]uint32 `yaml:"overrides" json:"overrides,omitempty"`
}

// PoolConfig lists the candidates in pool order.
type PoolConfig struct {
	Candidates []string `yaml:"candidates" json:"candidates" validate:"required,min=1,unique,dive,required"`
}

// Parse decodes and validates an experiment. Unknown keys are rejected.
func Parse(data []byte) (*Experiment, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var e Experiment
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidExperiment, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Load reads an experiment file from disk.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment: %w", err)
	}
	return Parse(data)
}

// Validate checks the schema. It does not run the pre-run gate: a
// well-formed experiment whose adversary is degenerate still loads and
// yields INVALID_RUN per seed.
func (e *Experiment) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w %q: %s", ErrInvalidExperiment, e.Name, describe(err))
	}
	pool := map[string]bool{}
	for _, c := range e.Pool.Candidates {
		pool[c] = true
	}
	if c := e.Kernel.InitialCandidate; c != "" && !pool[c] {
		return fmt.Errorf("%w %q: initial_candidate %q is not in the pool", ErrInvalidExperiment, e.Name, c)
	}
	for _, id := range sortedKeys(e.Verifier.Overrides) {
		if !pool[id] {
			return fmt.Errorf("%w %q: verifier override for unknown candidate %q", ErrInvalidExperiment, e.Name, id)
		}
		for k, v := range e.Verifier.Overrides[id] {
			if v > detrand.PPMScale {
				return fmt.Errorf("%w %q: override %s.%s = %d ppm", ErrInvalidExperiment, e.Name, id, verifier.Key(k), v)
			}
		}
	}
	if _, err := interference.Build(e.Interference); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidExperiment, e.Name, err)
	}
	return nil
}

// describe flattens validator errors into one line, one clause per field.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Experiment.")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s fails %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s fails %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// Setup is the resolved, runnable form of an experiment.
type Setup struct {
	Kernel       kernel.Config
	Interference interference.Spec
	Env          kernel.Environment
}

// Setup resolves the experiment into kernel inputs.
func (e *Experiment) Setup() (*Setup, error) {
	spec, err := interference.Build(e.Interference)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidExperiment, e.Name, err)
	}
	ids := make([]candidate.ID, len(e.Pool.Candidates))
	for i, c := range e.Pool.Candidates {
		ids[i] = candidate.ID(c)
	}
	pool, err := candidate.NewStaticPool(ids...)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidExperiment, e.Name, err)
	}
	overrides := make(map[candidate.ID][verifier.NumKeys]uint32, len(e.Verifier.Overrides))
	for id, r := range e.Verifier.Overrides {
		overrides[candidate.ID(id)] = r
	}
	base := e.Verifier.PassPPM
	return &Setup{
		Kernel:       e.Kernel,
		Interference: spec,
		Env: kernel.Environment{
			Pool: pool,
			NewVerifier: func(seed uint64) (verifier.Verifier, error) {
				return verifier.NewSynthetic(seed, base, overrides)
			},
		},
	}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
