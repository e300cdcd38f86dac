package workflow

import (
	"fmt"
	"sort"
)

// Lifecycle is a frozen table of permitted transitions.
// Machines started from it share the table and never modify it.
type Lifecycle struct {
	transitions map[State]map[Trigger]State
}

// LifecycleBuilder collects transitions until Build freezes them
type LifecycleBuilder struct {
	transitions map[State]map[Trigger]State
}

// NewLifecycleBuilder creates an empty builder
func NewLifecycleBuilder() *LifecycleBuilder {
	return &LifecycleBuilder{transitions: make(map[State]map[Trigger]State)}
}

// Permit allows trigger to move a machine from one state to another.
// It panics on unknown states, on transitions out of a terminal state and on a
// trigger registered twice for the same state.
func (b *LifecycleBuilder) Permit(from State, trigger Trigger, to State) *LifecycleBuilder {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	if from.IsTerminal() {
		panic(fmt.Sprintf("terminal state %s cannot have transitions", from))
	}

	byTrigger, ok := b.transitions[from]
	if !ok {
		byTrigger = make(map[Trigger]State)
		b.transitions[from] = byTrigger
	}
	if existing, dup := byTrigger[trigger]; dup {
		panic(fmt.Sprintf("trigger %s from %s already leads to %s", trigger, from, existing))
	}
	byTrigger[trigger] = to
	return b
}

// Build freezes a copy of the configured transitions
func (b *LifecycleBuilder) Build() *Lifecycle {
	frozen := make(map[State]map[Trigger]State, len(b.transitions))
	for from, byTrigger := range b.transitions {
		cp := make(map[Trigger]State, len(byTrigger))
		for trigger, to := range byTrigger {
			cp[trigger] = to
		}
		frozen[from] = cp
	}
	return &Lifecycle{transitions: frozen}
}

// Start returns a machine positioned at state. It panics if state is unknown.
func (l *Lifecycle) Start(state State) *Machine {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", state))
	}
	return &Machine{lifecycle: l, current: state}
}

// Machine tracks one claim's position within a Lifecycle
type Machine struct {
	lifecycle *Lifecycle
	current   State
}

// State returns the current state
func (m *Machine) State() State {
	return m.current
}

// CanFire reports whether trigger is permitted from the current state
func (m *Machine) CanFire(trigger Trigger) bool {
	_, ok := m.lifecycle.transitions[m.current][trigger]
	return ok
}

// Fire moves the machine along trigger, or returns ErrInvalidTransition and stays put
func (m *Machine) Fire(trigger Trigger) error {
	to, ok := m.lifecycle.transitions[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, m.current)
	}
	m.current = to
	return nil
}

// PermittedTriggers lists the triggers available from the current state, sorted
func (m *Machine) PermittedTriggers() []Trigger {
	byTrigger := m.lifecycle.transitions[m.current]
	triggers := make([]Trigger, 0, len(byTrigger))
	for trigger := range byTrigger {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
