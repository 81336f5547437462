package report

import "fmt"

// State is a step of one render call.
type State uint8

const (
	Idle State = iota
	Binding
	Expanding
	LayingOut
	Writing
	Done
	Failed
)

var stateNames = [...]string{"idle", "binding", "expanding", "laying-out", "writing", "done", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == Done || s == Failed }

// next is the only forward transition out of each working state. Failed is
// reachable from every non-terminal state.
var next = map[State]State{
	Idle:      Binding,
	Binding:   Expanding,
	Expanding: LayingOut,
	LayingOut: Writing,
	Writing:   Done,
}

// machine tracks one render call. It is not safe for concurrent use and is
// never shared between calls.
type machine struct {
	state State
	trace []State
}

func newMachine() *machine {
	return &machine{state: Idle, trace: []State{Idle}}
}

// advance moves to the successor of the current state.
func (m *machine) advance(to State) error {
	if want, ok := next[m.state]; !ok || want != to {
		return fmt.Errorf("report: illegal transition %s -> %s", m.state, to)
	}
	m.state = to
	m.trace = append(m.trace, to)
	return nil
}

// fail moves to Failed from any non-terminal state.
func (m *machine) fail() error {
	if m.state.Terminal() {
		return fmt.Errorf("report: illegal transition %s -> %s", m.state, Failed)
	}
	m.state = Failed
	m.trace = append(m.trace, Failed)
	return nil
}

func (m *machine) Trace() []State {
	return append([]State(nil), m.trace...)
}
