// Package statemachine implements the two declarative transition graphs
// that gate every campaign and attack mutation (spec §4.3). Both machines
// share one generic shape — a transitions table and an actions table — built
// once as package-level immutable data, per the teacher's "State-machine
// tables as static data" design note (no inheritance; Campaign and Attack
// are two independent values of the same generic shape).
package statemachine

import "github.com/ouroboros-project/ouroboros/internal/apperr"

// Machine is a closed transition graph over state type S plus a dictionary
// of named actions, each mapping a "from" state to a "to" state.
type Machine[S comparable] struct {
	entityType  string
	transitions map[S]map[S]struct{}
	actions     map[string]map[S]S
	stateName   func(S) string
}

// New builds an immutable Machine. transitions and actions are copied so the
// caller's maps may be discarded; stateName renders S for error messages.
func New[S comparable](entityType string, transitions map[S]map[S]struct{}, actions map[string]map[S]S, stateName func(S) string) *Machine[S] {
	m := &Machine[S]{
		entityType:  entityType,
		transitions: make(map[S]map[S]struct{}, len(transitions)),
		actions:     make(map[string]map[S]S, len(actions)),
		stateName:   stateName,
	}
	for from, tos := range transitions {
		set := make(map[S]struct{}, len(tos))
		for to := range tos {
			set[to] = struct{}{}
		}
		m.transitions[from] = set
	}
	for action, byFrom := range actions {
		cp := make(map[S]S, len(byFrom))
		for from, to := range byFrom {
			cp[from] = to
		}
		m.actions[action] = cp
	}
	return m
}

// CanTransition reports whether the from->to edge exists in the graph.
func (m *Machine[S]) CanTransition(from, to S) bool {
	_, ok := m.transitions[from][to]
	return ok
}

// ValidateTransition fails with apperr.InvalidStateTransition unless
// from->to is a valid edge. action, if non-empty, is recorded on the error.
func (m *Machine[S]) ValidateTransition(from, to S, action string) error {
	if m.CanTransition(from, to) {
		return nil
	}
	return m.transitionError(from, to, action, "")
}

// ValidateAction resolves action for the current state: looks up
// ACTIONS[action][current]. An unknown action, or an action not defined for
// current, fails with InvalidStateTransition — carrying the action name and,
// when the action is known for some other state, a representative target
// state for diagnostics.
func (m *Machine[S]) ValidateAction(current S, action string) (S, error) {
	var zero S
	byFrom, known := m.actions[action]
	if !known {
		return zero, m.unknownActionError(current, action)
	}
	to, ok := byFrom[current]
	if !ok {
		return zero, m.actionNotDefinedError(current, action, byFrom)
	}
	return to, nil
}

// GetValidTransitions returns the successor-state set for from.
func (m *Machine[S]) GetValidTransitions(from S) map[S]struct{} {
	out := make(map[S]struct{}, len(m.transitions[from]))
	for s := range m.transitions[from] {
		out[s] = struct{}{}
	}
	return out
}

// IsTerminalState reports whether from has no outgoing edges.
func (m *Machine[S]) IsTerminalState(from S) bool {
	return len(m.transitions[from]) == 0
}

func (m *Machine[S]) validTransitionNames(from S) []string {
	names := make([]string, 0, len(m.transitions[from]))
	for s := range m.transitions[from] {
		names = append(names, m.stateName(s))
	}
	return names
}

func (m *Machine[S]) transitionError(from, to S, action, detail string) error {
	if detail == "" {
		detail = "transition from '" + m.stateName(from) + "' to '" + m.stateName(to) + "' is not allowed."
		if action != "" {
			detail = "Cannot perform action '" + action + "' on " + m.entityType + ": " + detail
		}
	}
	return apperr.NewStateTransition(apperr.StateTransitionParams{
		CurrentState:     m.stateName(from),
		AttemptedState:   m.stateName(to),
		Action:           action,
		EntityType:       m.entityType,
		ValidTransitions: m.validTransitionNames(from),
		Detail:           detail,
	})
}

func (m *Machine[S]) unknownActionError(current S, action string) error {
	return apperr.NewStateTransition(apperr.StateTransitionParams{
		CurrentState:     m.stateName(current),
		Action:           action,
		EntityType:       m.entityType,
		ValidTransitions: m.validTransitionNames(current),
		Detail:           "unknown action '" + action + "' for " + m.entityType,
	})
}

func (m *Machine[S]) actionNotDefinedError(current S, action string, byFrom map[S]S) error {
	// Representative target: any state the action maps to, for diagnostics.
	var sample S
	for _, to := range byFrom {
		sample = to
		break
	}
	return apperr.NewStateTransition(apperr.StateTransitionParams{
		CurrentState:     m.stateName(current),
		AttemptedState:   m.stateName(sample),
		Action:           action,
		EntityType:       m.entityType,
		ValidTransitions: m.validTransitionNames(current),
		Detail:           "Cannot perform action '" + action + "' on " + m.entityType + " in state '" + m.stateName(current) + "'.",
	})
}
