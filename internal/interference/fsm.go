package interference

import (
	"fmt"
	"sort"
)

// MaxFSMStates bounds max_internal_states.
const MaxFSMStates = 16

// State is an FSM state index. Only FSM methods produce States, and they keep
// the value below the machine's state count.
type State struct {
	v uint8
}

// Index returns the state number.
func (s State) Index() int { return int(s.v) }

func (s State) String() string { return fmt.Sprintf("S%d", s.v) }

// FSM is a bounded finite-state adversary. Both the transition and the
// selection read only the current state and the current raw SEM_PASS.
type FSM struct {
	n       uint8
	initial State
	next    [MaxFSMStates][2]State
	sel     [MaxFSMStates][2]uint32
}

func (FSM) Kind() Kind { return KindFSM }

func (m FSM) Null() bool {
	for s := uint8(0); s < m.n; s++ {
		if m.sel[s][0] != 0 || m.sel[s][1] != 0 {
			return false
		}
	}
	return true
}

func (FSM) sealed() {}

// States returns the configured state count.
func (m FSM) States() int { return int(m.n) }

// Initial returns the start state.
func (m FSM) Initial() State { return m.initial }

func obsIndex(obs bool) int {
	if obs {
		return 1
	}
	return 0
}

// Transition returns the state after observing obs in s.
func (m FSM) Transition(s State, obs bool) State { return m.next[s.v][obsIndex(obs)] }

// SelectPPM returns the flip probability for (s, obs).
func (m FSM) SelectPPM(s State, obs bool) uint32 { return m.sel[s.v][obsIndex(obs)] }

// NewFSM validates explicit tables. transitions[s][o] is the next state and
// selectPPM[s][o] the flip probability in state s with observable o (0 =
// SEM_PASS false, 1 = true).
func NewFSM(maxStates, initial int, transitions [][2]int, selectPPM [][2]uint32) (FSM, error) {
	if maxStates < 1 || maxStates > MaxFSMStates {
		return FSM{}, fmt.Errorf("%w: max_internal_states = %d, want 1..%d", ErrInvalidConfig, maxStates, MaxFSMStates)
	}
	if len(transitions) != maxStates || len(selectPPM) != maxStates {
		return FSM{}, fmt.Errorf("%w: fsm tables need %d rows (transitions %d, select %d)",
			ErrInvalidConfig, maxStates, len(transitions), len(selectPPM))
	}
	if initial < 0 || initial >= maxStates {
		return FSM{}, fmt.Errorf("%w: fsm initial state %d outside [0, %d)", ErrInvalidConfig, initial, maxStates)
	}
	m := FSM{n: uint8(maxStates), initial: State{uint8(initial)}}
	for s := 0; s < maxStates; s++ {
		for o := 0; o < 2; o++ {
			nx := transitions[s][o]
			if nx < 0 || nx >= maxStates {
				return FSM{}, fmt.Errorf("%w: fsm transition S%d/%d -> %d outside [0, %d)", ErrInvalidConfig, s, o, nx, maxStates)
			}
			if err := checkPPM(fmt.Sprintf("fsm select S%d/%d", s, o), selectPPM[s][o]); err != nil {
				return FSM{}, err
			}
			m.next[s][o] = State{uint8(nx)}
			m.sel[s][o] = selectPPM[s][o]
		}
	}
	return m, nil
}

// RatchetFSM is the built-in adversary used when no tables are configured.
// Each observed pass moves one state up, capped at the top; a failure drops
// back to S0. Only the top state attacks, with activePPM; every other state
// uses quietPPM. With a single state the top and bottom coincide.
func RatchetFSM(maxStates int, activePPM, quietPPM uint32) (FSM, error) {
	if maxStates < 1 || maxStates > MaxFSMStates {
		return FSM{}, fmt.Errorf("%w: max_internal_states = %d, want 1..%d", ErrInvalidConfig, maxStates, MaxFSMStates)
	}
	trans := make([][2]int, maxStates)
	sel := make([][2]uint32, maxStates)
	top := maxStates - 1
	for s := 0; s < maxStates; s++ {
		up := s + 1
		if up > top {
			up = top
		}
		trans[s] = [2]int{0, up}
		p := quietPPM
		if s == top {
			p = activePPM
		}
		sel[s] = [2]uint32{p, p}
	}
	return NewFSM(maxStates, 0, trans, sel)
}

// Reachable returns the states reachable from the initial state under any
// observable sequence, in ascending order.
func (m FSM) Reachable() []State {
	seen := map[State]bool{m.initial: true}
	queue := []State{m.initial}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, obs := range []bool{false, true} {
			nx := m.Transition(s, obs)
			if !seen[nx] {
				seen[nx] = true
				queue = append(queue, nx)
			}
		}
	}
	out := make([]State, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].v < out[j].v })
	return out
}
