package installer

import (
	"fmt"
	"log/slog"
	"slices"
)

// State is a step of the install state machine.
type State string

const (
	StateInit                 State = "init"
	StateProbing              State = "probing"
	StatePlanning             State = "planning"
	StateAwaitingSelection    State = "awaiting_user_selection"
	StateInstalling           State = "installing"
	StateFetchingDependency   State = "fetching_dependency"
	StateExtractingDependency State = "extracting_dependency"
	StateWritingMetadata      State = "writing_metadata"
	StateRollingBack          State = "rolling_back"
	StateDone                 State = "done"
	StateAborted              State = "aborted"
	StateFailed               State = "failed"
)

var transitions = map[State][]State{
	StateInit:                 {StateProbing, StateFailed},
	StateProbing:              {StatePlanning, StateFailed},
	StatePlanning:             {StateAwaitingSelection, StateFailed},
	StateAwaitingSelection:    {StateInstalling, StateFailed},
	StateInstalling:           {StateFetchingDependency, StateWritingMetadata, StateFailed},
	StateFetchingDependency:   {StateExtractingDependency, StateRollingBack},
	StateExtractingDependency: {StateWritingMetadata, StateRollingBack},
	StateWritingMetadata:      {StateDone, StateFailed},
	StateRollingBack:          {StateAborted},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StateFailed
}

// Mutable
type machine struct {
	state   State
	history []State
}

func newMachine() *machine {
	return &machine{state: StateInit, history: []State{StateInit}}
}

// to moves to next. An edge missing from the table is a programming error.
func (m *machine) to(next State) {
	if !slices.Contains(transitions[m.state], next) {
		panic(fmt.Sprintf("illegal install transition %s -> %s", m.state, next))
	}
	slog.Info("Install state", "from", m.state, "to", next)
	m.state = next
	m.history = append(m.history, next)
}
