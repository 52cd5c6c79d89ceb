package workflows

import (
	"errors"
	"fmt"
	"sort"
)

// ErrTransitionNotAllowed is returned when a status change is not in the table.
var ErrTransitionNotAllowed = errors.New("transition not allowed")

// StateMachine enforces status transitions
type StateMachine struct {
	initial            string
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine that starts in initial and allows
// the given transitions. Terminal states may be listed with no targets.
func NewStateMachine(initial string, transitions map[string][]string) *StateMachine {
	table := make(map[string][]string, len(transitions))
	for from, to := range transitions {
		table[from] = append([]string(nil), to...)
	}
	if _, ok := table[initial]; !ok {
		table[initial] = nil
	}
	return &StateMachine{initial: initial, allowedTransitions: table}
}

// Initial returns the status new entities start in.
func (sm *StateMachine) Initial() string {
	return sm.initial
}

// Known reports whether status appears in the table.
func (sm *StateMachine) Known(status string) bool {
	_, ok := sm.allowedTransitions[status]
	return ok
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// Transition returns ErrTransitionNotAllowed unless from -> to is allowed.
func (sm *StateMachine) Transition(from, to string) error {
	if !sm.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	return nil
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return append([]string(nil), allowed...)
}

// States lists every known status in sorted order.
func (sm *StateMachine) States() []string {
	states := make([]string, 0, len(sm.allowedTransitions))
	for s := range sm.allowedTransitions {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}
