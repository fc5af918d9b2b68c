// Package kernel runs one deterministic authority-governance simulation:
// verifier -> interference -> streak tracker -> lease machine (with amnesty
// during lapse) -> metrics, once per epoch from 0 to the horizon.
package kernel

import (
	"fmt"

	"regent/internal/candidate"
	"regent/internal/detrand"
	"regent/internal/eligibility"
	"regent/internal/lease"
)

// Config is the kernel section of an experiment file.
type Config struct {
	// MaxCycles is the horizon in epochs.
	MaxCycles             uint64 `yaml:"max_cycles" json:"max_cycles" validate:"gte=1"`
	EligibilityK          int    `yaml:"eligibility_threshold_k" json:"eligibility_threshold_k" validate:"gte=1"`
	MaxSuccessiveRenewals int    `yaml:"max_successive_renewals" json:"max_successive_renewals" validate:"gte=0"`
	AmnestyInterval       uint64 `yaml:"amnesty_interval" json:"amnesty_interval"`
	AmnestyDecay          int    `yaml:"amnesty_decay" json:"amnesty_decay" validate:"gte=0"`
	CTAEnabled            bool   `yaml:"cta_enabled" json:"cta_enabled"`
	RenewalCheckInterval  uint64 `yaml:"renewal_check_interval" json:"renewal_check_interval" validate:"gte=1"`
	InitialCandidate      string `yaml:"initial_candidate" json:"initial_candidate"`
	Selection             string `yaml:"selection" json:"selection" validate:"omitempty,oneof=pool_order seeded"`
}

// Amnesty returns the CTA schedule for this config.
func (c Config) Amnesty() eligibility.Amnesty {
	return eligibility.Amnesty{Enabled: c.CTAEnabled, Interval: c.AmnestyInterval, Decay: c.AmnestyDecay}
}

// Lease returns the lease timing for this config.
func (c Config) Lease() lease.Config {
	return lease.Config{RenewalCheckInterval: c.RenewalCheckInterval, MaxSuccessiveRenewals: c.MaxSuccessiveRenewals}
}

// Validate checks the values the kernel cannot run without.
func (c Config) Validate() error {
	if c.MaxCycles == 0 {
		return fmt.Errorf("max_cycles must be positive")
	}
	if c.EligibilityK < 1 {
		return fmt.Errorf("eligibility_threshold_k = %d, want >= 1", c.EligibilityK)
	}
	if c.RenewalCheckInterval == 0 {
		return fmt.Errorf("renewal_check_interval must be positive")
	}
	if c.MaxSuccessiveRenewals < 0 {
		return fmt.Errorf("max_successive_renewals = %d, want >= 0", c.MaxSuccessiveRenewals)
	}
	if _, err := candidate.ParsePolicy(c.Selection); err != nil {
		return err
	}
	return c.Amnesty().Validate()
}

// Seeds are the per-run streams derived from the top-level seed. Each
// consumer gets its own; none is ever shared.
type Seeds struct {
	Interference uint64
	Selection    uint64
	Verifier     uint64
}

// DeriveSeeds derives every stream once, at run start.
func DeriveSeeds(seed uint64, streamLabel string) Seeds {
	return Seeds{
		Interference: detrand.Derive(seed, "interference", streamLabel),
		Selection:    detrand.Derive(seed, "selection", ""),
		Verifier:     detrand.Derive(seed, "verifier", ""),
	}
}
