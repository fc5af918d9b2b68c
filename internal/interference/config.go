package interference

import (
	"fmt"

	"regent/internal/verifier"
)

// Config is the interference section of an experiment file. Build turns it
// into a Spec; nothing else reads these strings.
type Config struct {
	Enabled           bool        `yaml:"enabled" json:"enabled"`
	Model             string      `yaml:"model" json:"model" validate:"omitempty,oneof=stateless_bernoulli key_targeted burst_periodic bounded_fsm"`
	Scope             string      `yaml:"scope" json:"scope" validate:"omitempty,oneof=sem_pass per_key key"`
	StreamLabel       string      `yaml:"rng_stream_label" json:"rng_stream_label"`
	ProbabilityPPM    uint32      `yaml:"probability_ppm" json:"probability_ppm" validate:"ppm"`
	TargetKey         string      `yaml:"target_key" json:"target_key"`
	Burst             BurstConfig `yaml:"burst" json:"burst"`
	MaxInternalStates int         `yaml:"max_internal_states" json:"max_internal_states" validate:"gte=0,lte=16"`
	FSM               FSMConfig   `yaml:"fsm" json:"fsm"`
}

// BurstConfig holds the periodic schedule.
type BurstConfig struct {
	Period    uint64 `yaml:"period" json:"period"`
	Width     uint64 `yaml:"width" json:"width"`
	Offset    uint64 `yaml:"offset" json:"offset"`
	ActivePPM uint32 `yaml:"active_ppm" json:"active_ppm" validate:"ppm"`
	QuietPPM  uint32 `yaml:"quiet_ppm" json:"quiet_ppm" validate:"ppm"`
}

// FSMConfig holds optional explicit tables. When Transitions is empty the
// ratchet adversary is built from max_internal_states and the probabilities
// ActivePPM/QuietPPM.
type FSMConfig struct {
	Initial     int         `yaml:"initial" json:"initial"`
	Transitions [][2]int    `yaml:"transitions" json:"transitions"`
	SelectPPM   [][2]uint32 `yaml:"select_ppm" json:"select_ppm"`
	ActivePPM   uint32      `yaml:"active_ppm" json:"active_ppm" validate:"ppm"`
	QuietPPM    uint32      `yaml:"quiet_ppm" json:"quiet_ppm" validate:"ppm"`
}

// Build validates cfg and returns the tagged model. It is exhaustive over the
// model names; an unknown name is a configuration error, never a fallback.
func Build(cfg Config) (Spec, error) {
	if !cfg.Enabled {
		return Disabled(), nil
	}
	spec := Spec{Enabled: true, StreamLabel: cfg.StreamLabel}

	switch Kind(cfg.Model) {
	case KindBernoulli:
		if err := checkPPM("probability_ppm", cfg.ProbabilityPPM); err != nil {
			return Spec{}, err
		}
		spec.Model = Bernoulli{PPM: cfg.ProbabilityPPM}

	case KindKeyTargeted:
		if err := checkPPM("probability_ppm", cfg.ProbabilityPPM); err != nil {
			return Spec{}, err
		}
		key, err := verifier.ParseKey(cfg.TargetKey)
		if err != nil {
			return Spec{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		spec.Model = KeyTargeted{Key: key, PPM: cfg.ProbabilityPPM}

	case KindBurst:
		b := cfg.Burst
		if b.Period == 0 {
			return Spec{}, fmt.Errorf("%w: burst period must be positive", ErrInvalidConfig)
		}
		if b.Width > b.Period {
			return Spec{}, fmt.Errorf("%w: burst width %d exceeds period %d", ErrInvalidConfig, b.Width, b.Period)
		}
		if err := checkPPM("burst.active_ppm", b.ActivePPM); err != nil {
			return Spec{}, err
		}
		if err := checkPPM("burst.quiet_ppm", b.QuietPPM); err != nil {
			return Spec{}, err
		}
		spec.Model = Burst{Period: b.Period, Width: b.Width, Offset: b.Offset % b.Period,
			ActivePPM: b.ActivePPM, QuietPPM: b.QuietPPM}

	case KindFSM:
		var (
			m   FSM
			err error
		)
		if len(cfg.FSM.Transitions) == 0 {
			m, err = RatchetFSM(cfg.MaxInternalStates, cfg.FSM.ActivePPM, cfg.FSM.QuietPPM)
		} else {
			m, err = NewFSM(cfg.MaxInternalStates, cfg.FSM.Initial, cfg.FSM.Transitions, cfg.FSM.SelectPPM)
		}
		if err != nil {
			return Spec{}, err
		}
		spec.Model = m

	default:
		return Spec{}, fmt.Errorf("%w: unknown model %q (available: %s, %s, %s, %s)",
			ErrInvalidConfig, cfg.Model, KindBernoulli, KindKeyTargeted, KindBurst, KindFSM)
	}

	scope, err := resolveScope(spec.Model, Scope(cfg.Scope))
	if err != nil {
		return Spec{}, err
	}
	spec.Scope = scope
	return spec, nil
}

func resolveScope(m Model, s Scope) (Scope, error) {
	if _, ok := m.(KeyTargeted); ok {
		if s != "" && s != ScopeKey {
			return "", fmt.Errorf("%w: key_targeted requires scope %q, got %q", ErrInvalidConfig, ScopeKey, s)
		}
		return ScopeKey, nil
	}
	switch s {
	case "", ScopeSemPass:
		return ScopeSemPass, nil
	case ScopePerKey:
		return ScopePerKey, nil
	default:
		return "", fmt.Errorf("%w: scope %q is only valid for key_targeted", ErrInvalidConfig, s)
	}
}
