// Package lifecycle starts, stops and reports on the stack's containers.
package lifecycle

import (
	"fmt"
	"time"
)

// State is the progress of one start invocation.
type State string

const (
	StateNotStarted       State = "NOT_STARTED"
	StateStoppingExisting State = "STOPPING_EXISTING"
	StateStartingCore     State = "STARTING_CORE"
	StateStartingSelected State = "STARTING_SELECTED"
	StateRunning          State = "RUNNING"
	StateFailed           State = "FAILED"
)

var transitions = map[State][]State{
	StateNotStarted:       {StateStoppingExisting},
	StateStoppingExisting: {StateStartingCore},
	StateStartingCore:     {StateStartingSelected, StateFailed},
	StateStartingSelected: {StateRunning, StateFailed},
}

// Transition records one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Machine enforces the start sequence. FAILED and RUNNING are terminal.
type Machine struct {
	state   State
	history []Transition
	now     func() time.Time
}

// NewMachine returns a machine in NOT_STARTED.
func NewMachine() *Machine {
	return &Machine{state: StateNotStarted, now: time.Now}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// History returns the transitions taken so far.
func (m *Machine) History() []Transition {
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// To moves the machine to next if the edge exists.
func (m *Machine) To(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.history = append(m.history, Transition{From: m.state, To: next, At: m.now()})
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", m.state, next)
}
