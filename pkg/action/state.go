package action

import "fmt"

// State is the lifecycle state of a wrapped Action.
type State string

const (
	// Uncompleted actions execute on install and are a no-op on uninstall.
	Uncompleted State = "uncompleted"

	// Progress means execution or reversal is underway, or was underway when
	// a failure occurred. It is never a planned terminal state; finding it in
	// a receipt means the previous attempt did not finish cleanly, so the
	// action is re-attempted on both install and uninstall.
	Progress State = "progress"

	// Completed actions are a no-op on install and revert on uninstall.
	Completed State = "completed"

	// Skipped is decided once at plan time, when probing finds the target
	// state already satisfied or structurally inapplicable. It is absorbing:
	// both install and uninstall leave a Skipped action untouched.
	Skipped State = "skipped"
)

// Valid reports whether s is one of the known lifecycle states.
func (s State) Valid() bool {
	switch s {
	case Uncompleted, Progress, Completed, Skipped:
		return true
	}
	return false
}

func (s State) String() string { return string(s) }

// ParseState converts a serialized state back into a State, rejecting
// anything a newer or corrupted receipt might carry.
func ParseState(v string) (State, error) {
	s := State(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown action state %q", v)
	}
	return s, nil
}
