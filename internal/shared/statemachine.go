package shared

import "fmt"

// InvalidTransitionError reports a document status change that is not part
// of the lifecycle table, naming the attempted edge.
type InvalidTransitionError struct {
	Document string
	From     string
	To       string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: invalid state transition %s -> %s", e.Document, e.From, e.To)
}

// StateMachine is a transition table keyed by current state.
type StateMachine struct {
	Document    string
	Transitions map[string][]string
}

// CanTransition reports whether the edge exists in the table.
func (m StateMachine) CanTransition(from, to string) bool {
	for _, next := range m.Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Validate returns an InvalidTransitionError when the edge is not allowed.
func (m StateMachine) Validate(from, to string) error {
	if !m.CanTransition(from, to) {
		return &InvalidTransitionError{Document: m.Document, From: from, To: to}
	}
	return nil
}
