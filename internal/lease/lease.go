// Package lease is the authority state machine. It is the only writer of the
// authority state; it reads eligibility and never changes streaks.
package lease

import (
	"fmt"

	"regent/internal/candidate"
)

// Authority is HasAuthority(id) or NullAuthority. The zero value is
// NullAuthority, and HasAuthority always carries a non-empty holder.
type Authority struct {
	holder candidate.ID
}

// HasAuthority grants authority to id.
func HasAuthority(id candidate.ID) Authority {
	if id == "" {
		panic("lease: HasAuthority with empty candidate id")
	}
	return Authority{holder: id}
}

// NullAuthority is the lapse state.
func NullAuthority() Authority { return Authority{} }

// Holder returns the holder and true, or "" and false during lapse.
func (a Authority) Holder() (candidate.ID, bool) { return a.holder, a.holder != "" }

// IsNull reports whether no one holds authority.
func (a Authority) IsNull() bool { return a.holder == "" }

func (a Authority) String() string {
	if a.IsNull() {
		return "NullAuthority"
	}
	return fmt.Sprintf("HasAuthority(%s)", a.holder)
}

// Kind classifies a boundary transition.
type Kind string

const (
	KindNone       Kind = "none"
	KindRenew      Kind = "renew"
	KindSuccession Kind = "succession"
	KindLapse      Kind = "lapse"
	KindRecover    Kind = "recover"
	// KindRegrant starts a fresh term for a term-limited incumbent that is
	// the only eligible candidate.
	KindRegrant Kind = "regrant"
)

// Transition is the result of one boundary evaluation. To takes effect from
// the next epoch.
type Transition struct {
	Kind  Kind      `json:"kind"`
	Epoch uint64    `json:"epoch"`
	From  Authority `json:"-"`
	To    Authority `json:"-"`
}

// Eligibility answers the streak gate. *eligibility.Tracker implements it.
type Eligibility interface {
	Eligible(id candidate.ID) bool
}

// Config holds the lease timing parameters.
type Config struct {
	RenewalCheckInterval uint64
	// MaxSuccessiveRenewals caps renewals of one grant; 0 means no cap.
	MaxSuccessiveRenewals int
}

// Machine evaluates renewal, succession, lapse and recovery.
type Machine struct {
	cfg      Config
	state    Authority
	renewals int
	pool     candidate.Pool
	selector candidate.Selector
	elig     Eligibility
}

// New starts the machine in HasAuthority(initial).
func New(cfg Config, initial candidate.ID, pool candidate.Pool, sel candidate.Selector, elig Eligibility) (*Machine, error) {
	if cfg.RenewalCheckInterval == 0 {
		return nil, fmt.Errorf("renewal_check_interval must be positive")
	}
	if cfg.MaxSuccessiveRenewals < 0 {
		return nil, fmt.Errorf("max_successive_renewals = %d, want >= 0", cfg.MaxSuccessiveRenewals)
	}
	if initial == "" {
		return nil, fmt.Errorf("initial candidate is required")
	}
	if !pool.Contains(initial) {
		return nil, fmt.Errorf("initial candidate %q is not in the pool", initial)
	}
	return &Machine{
		cfg:      cfg,
		state:    HasAuthority(initial),
		pool:     pool,
		selector: sel,
		elig:     elig,
	}, nil
}

// State returns the authority state for the current epoch.
func (m *Machine) State() Authority { return m.state }

// Renewals returns how many times the current grant has been renewed.
func (m *Machine) Renewals() int { return m.renewals }

// AtBoundary reports whether epoch closes a renewal check interval.
func (m *Machine) AtBoundary(epoch uint64) bool {
	return (epoch+1)%m.cfg.RenewalCheckInterval == 0
}

// Boundary runs the transition rules at the end of epoch. Off-boundary
// epochs return KindNone and leave the state unchanged.
func (m *Machine) Boundary(epoch uint64) Transition {
	tr := Transition{Kind: KindNone, Epoch: epoch, From: m.state, To: m.state}
	if !m.AtBoundary(epoch) {
		return tr
	}

	holder, held := m.state.Holder()
	if !held {
		next, ok := m.selector.Select(epoch, m.pool.Eligible(epoch, m.elig.Eligible), "")
		if ok {
			m.grant(next)
			tr.Kind = KindRecover
		}
		tr.To = m.state
		return tr
	}

	if m.elig.Eligible(holder) && (m.cfg.MaxSuccessiveRenewals == 0 || m.renewals < m.cfg.MaxSuccessiveRenewals) {
		m.renewals++
		tr.Kind = KindRenew
		return tr
	}

	next, ok := m.selector.Select(epoch, m.pool.Eligible(epoch, m.elig.Eligible), holder)
	switch {
	case ok:
		m.grant(next)
		tr.Kind = KindSuccession
	case m.elig.Eligible(holder):
		m.grant(holder)
		tr.Kind = KindRegrant
	default:
		m.state = NullAuthority()
		m.renewals = 0
		tr.Kind = KindLapse
	}
	tr.To = m.state
	return tr
}

func (m *Machine) grant(id candidate.ID) {
	m.state = HasAuthority(id)
	m.renewals = 0
}
