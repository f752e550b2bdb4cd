package workflow

import (
	"context"
	"fmt"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StatusMachineBuilder builds a configured status machine for one module
type StatusMachineBuilder interface {
	// Configure returns the configuration for the given status
	Configure(status Status) StatusConfiguration

	// Build creates a new machine positioned at the given status
	Build(initial Status) StatusMachine
}

// StatusConfiguration configures transitions out of a specific status
type StatusConfiguration interface {
	// Permit allows a trigger to move the record to the target status
	Permit(trigger Trigger, to Status) StatusConfiguration

	// PermitIf allows a trigger to move the record to the target status if the guard passes
	PermitIf(trigger Trigger, to Status, guard GuardFunc) StatusConfiguration
}

type transition struct {
	to    Status
	guard GuardFunc
}

type statusConfig struct {
	module      Module
	from        Status
	transitions map[Trigger][]transition
}

type statusMachineBuilder struct {
	module         Module
	configurations map[Status]*statusConfig
}

type statusMachine struct {
	module         Module
	current        Status
	configurations map[Status]*statusConfig
}

// NewBuilder creates a builder whose statuses are checked against the module's enum
func NewBuilder(m Module) StatusMachineBuilder {
	if !m.IsValid() {
		panic(fmt.Sprintf("invalid module: %s", m))
	}
	return &statusMachineBuilder{
		module:         m,
		configurations: make(map[Status]*statusConfig),
	}
}

// Configure returns the configuration for the given status
func (b *statusMachineBuilder) Configure(status Status) StatusConfiguration {
	if !b.module.IsValidStatus(status) {
		panic(fmt.Sprintf("invalid %s status: %s", b.module, status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &statusConfig{
			module:      b.module,
			from:        status,
			transitions: make(map[Trigger][]transition),
		}
		b.configurations[status] = config
	}

	return config
}

// Build creates a new machine positioned at the given status
func (b *statusMachineBuilder) Build(initial Status) StatusMachine {
	if !b.module.IsValidStatus(initial) {
		panic(fmt.Sprintf("invalid initial %s status: %s", b.module, initial))
	}

	// copy so later Configure calls do not leak into built machines
	configsCopy := make(map[Status]*statusConfig, len(b.configurations))
	for status, config := range b.configurations {
		transitionsCopy := make(map[Trigger][]transition, len(config.transitions))
		for trigger, transitions := range config.transitions {
			transitionsCopy[trigger] = append([]transition{}, transitions...)
		}
		configsCopy[status] = &statusConfig{
			module:      b.module,
			from:        status,
			transitions: transitionsCopy,
		}
	}

	return &statusMachine{
		module:         b.module,
		current:        initial,
		configurations: configsCopy,
	}
}

// Permit allows a trigger to move the record to the target status
func (c *statusConfig) Permit(trigger Trigger, to Status) StatusConfiguration {
	return c.PermitIf(trigger, to, nil)
}

// PermitIf allows a trigger to move the record to the target status if the guard passes
func (c *statusConfig) PermitIf(trigger Trigger, to Status, guard GuardFunc) StatusConfiguration {
	if !c.module.IsValidStatus(to) {
		panic(fmt.Sprintf("invalid target %s status: %s", c.module, to))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition{
		to:    to,
		guard: guard,
	})

	return c
}

// Module returns the module the machine belongs to
func (m *statusMachine) Module() Module {
	return m.module
}

// Status returns the current status
func (m *statusMachine) Status() Status {
	return m.current
}

// CanFire returns true if the trigger is configured for the current status.
// Guards are not evaluated.
func (m *statusMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}
	return len(config.transitions[trigger]) > 0
}

// Fire executes the trigger. The first transition whose guard passes wins.
func (m *statusMachine) Fire(ctx context.Context, trigger Trigger) error {
	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: %s cannot %s from %s", ErrInvalidTransition, m.module, trigger, m.current)
	}

	transitions := config.transitions[trigger]
	if len(transitions) == 0 {
		return fmt.Errorf("%w: %s cannot %s from %s", ErrInvalidTransition, m.module, trigger, m.current)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: %s %s from %s", ErrGuardFailed, m.module, trigger, m.current)
}

// PermittedTriggers returns all triggers configured for the current status
func (m *statusMachine) PermittedTriggers() []Trigger {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		triggers = append(triggers, trigger)
	}

	return triggers
}
