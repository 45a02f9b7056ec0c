package build

import "fmt"

// State is the state of a session.
type State string

const (
	StateCreated         State = "created"
	StateSettingsWritten State = "settings_written"
	StateSpawned         State = "spawned"
	StateRunning         State = "running"
	StateCompleted       State = "completed"
	StateOutputLoaded    State = "output_loaded"
	StateCanceled        State = "canceled"
	StateFailed          State = "failed"
)

var transitions = map[State][]State{
	StateCreated:         {StateSettingsWritten, StateFailed},
	StateSettingsWritten: {StateSpawned, StateFailed},
	StateSpawned:         {StateRunning, StateFailed},
	StateRunning:         {StateCompleted, StateCanceled, StateFailed},
	StateCompleted:       {StateOutputLoaded, StateFailed},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateOutputLoaded || s == StateCanceled || s == StateFailed
}

// CanTransition reports whether a session in state s may move to state to.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type transitionError struct {
	From State
	To   State
}

func (e *transitionError) Error() string {
	return fmt.Sprintf("invalid session transition from %s to %s", e.From, e.To)
}
