package analysis

import "fmt"

// State is a step of an analysis run.
type State int

const (
	StatePlanning State = iota
	StateInvoking
	StateRecovering
	StateMerging
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePlanning:
		return "planning"
	case StateInvoking:
		return "invoking"
	case StateRecovering:
		return "recovering"
	case StateMerging:
		return "merging"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Nothing returns to Planning. Invoking may follow itself when a batch is
// skipped before any response arrived.
var transitions = map[State][]State{
	StatePlanning:   {StateInvoking, StateMerging, StateFailed},
	StateInvoking:   {StateRecovering, StateInvoking, StateMerging, StateFailed},
	StateRecovering: {StateInvoking, StateMerging, StateFailed},
	StateMerging:    {StateDone},
}

// CanTransition reports whether a run may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition is reported to an Observer on every state change. Batch is the
// plan index for Invoking and Recovering, -1 otherwise.
type Transition struct {
	From  State
	To    State
	Batch int
}

// Observer receives state changes. It runs on the analysis goroutine and
// must not block.
type Observer func(Transition)

type machine struct {
	state    State
	observer Observer
}

func newMachine(observer Observer) *machine {
	return &machine{state: StatePlanning, observer: observer}
}

func (m *machine) to(next State, batchIndex int) error {
	if !m.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
	}
	t := Transition{From: m.state, To: next, Batch: batchIndex}
	m.state = next
	if m.observer != nil {
		m.observer(t)
	}
	return nil
}

// fail moves to Failed when allowed. Terminal states are left alone.
func (m *machine) fail() {
	if m.state.CanTransition(StateFailed) {
		_ = m.to(StateFailed, -1)
	}
}
