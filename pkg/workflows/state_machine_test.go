package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func registration() *StateMachine {
	return NewStateMachine("pending", map[string][]string{
		"pending":   {"approved", "rejected"},
		"approved":  {"suspended", "dissolved"},
		"suspended": {"approved", "dissolved"},
		"rejected":  {},
		"dissolved": {},
	})
}

func TestStateMachine_Transitions(t *testing.T) {
	sm := registration()

	assert.Equal(t, "pending", sm.Initial())
	assert.True(t, sm.CanTransition("pending", "approved"))
	assert.True(t, sm.CanTransition("suspended", "approved"))
	assert.False(t, sm.CanTransition("rejected", "approved"))
	assert.False(t, sm.CanTransition("unknown", "approved"))

	assert.NoError(t, sm.Transition("approved", "dissolved"))
	assert.ErrorIs(t, sm.Transition("dissolved", "approved"), ErrTransitionNotAllowed)
}

func TestStateMachine_AllowedTransitionsAreCopies(t *testing.T) {
	sm := registration()

	next := sm.GetAllowedTransitions("pending")
	next[0] = "dissolved"
	assert.Equal(t, []string{"approved", "rejected"}, sm.GetAllowedTransitions("pending"))
	assert.Empty(t, sm.GetAllowedTransitions("nope"))
}

func TestStateMachine_States(t *testing.T) {
	sm := registration()
	assert.Equal(t, []string{"approved", "dissolved", "pending", "rejected", "suspended"}, sm.States())
	assert.True(t, sm.Known("rejected"))
	assert.False(t, sm.Known("archived"))
}
