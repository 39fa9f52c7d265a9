package workorder

import (
	"fmt"

	"github.com/fieldserve/workorder/internal/domain/entity"
)

// GuardFunc evaluates whether a transition should be allowed for the given
// work order. It returns nil to allow, or a *ValidationError describing why
// the transition is blocked.
type GuardFunc func(order *entity.WorkOrder) *ValidationError

// Machine validates status transitions against a configured transition table
type Machine interface {
	// CanTransition returns true if the target is reachable from the current status
	CanTransition(from, to Status) bool

	// Validate checks whether the given work order may move to the target
	// status, evaluating any guard configured for that edge
	Validate(order *entity.WorkOrder, to Status) error

	// PermittedTargets returns all statuses reachable from the given status
	PermittedTargets(from Status) []Status
}

// Builder builds a configured transition table
type Builder interface {
	// Configure returns a status configuration for the given status
	Configure(status Status) StatusConfiguration

	// Build creates an immutable machine from the configured table
	Build() Machine
}

// StatusConfiguration configures outgoing transitions for one status
type StatusConfiguration interface {
	// Permit allows a direct transition to the target status
	Permit(to Status) StatusConfiguration

	// PermitIf allows a transition to the target status if the guard passes
	PermitIf(to Status, guard GuardFunc) StatusConfiguration
}

type transition struct {
	to    Status
	guard GuardFunc
}

type statusConfig struct {
	from        Status
	transitions map[Status]transition
}

type machineBuilder struct {
	configurations map[Status]*statusConfig
}

type machine struct {
	configurations map[Status]*statusConfig
}

// NewBuilder creates a new transition table builder
func NewBuilder() Builder {
	return &machineBuilder{
		configurations: make(map[Status]*statusConfig),
	}
}

// Configure returns a status configuration for the given status
func (b *machineBuilder) Configure(status Status) StatusConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &statusConfig{
			from:        status,
			transitions: make(map[Status]transition),
		}
		b.configurations[status] = config
	}

	return config
}

// Build creates an immutable machine from the configured table
func (b *machineBuilder) Build() Machine {
	// Deep copy configurations to keep the machine immutable
	configsCopy := make(map[Status]*statusConfig)
	for status, config := range b.configurations {
		transitionsCopy := make(map[Status]transition, len(config.transitions))
		for to, t := range config.transitions {
			transitionsCopy[to] = t
		}
		configsCopy[status] = &statusConfig{
			from:        status,
			transitions: transitionsCopy,
		}
	}

	return &machine{configurations: configsCopy}
}

// Permit allows a direct transition to the target status
func (c *statusConfig) Permit(to Status) StatusConfiguration {
	return c.PermitIf(to, nil)
}

// PermitIf allows a transition to the target status if the guard passes
func (c *statusConfig) PermitIf(to Status, guard GuardFunc) StatusConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}

	c.transitions[to] = transition{to: to, guard: guard}
	return c
}

// CanTransition returns true if the target is reachable from the current status
func (m *machine) CanTransition(from, to Status) bool {
	config, exists := m.configurations[from]
	if !exists {
		return false
	}

	_, exists = config.transitions[to]
	return exists
}

// Validate checks whether the given work order may move to the target status
func (m *machine) Validate(order *entity.WorkOrder, to Status) error {
	from := Status(order.Status)

	if !to.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, to)
	}

	config, exists := m.configurations[from]
	if !exists {
		return fmt.Errorf("%w: no transitions from %s", ErrInvalidTransition, from)
	}

	t, exists := config.transitions[to]
	if !exists {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, from, to)
	}

	if t.guard != nil {
		if verr := t.guard(order); verr != nil {
			return verr
		}
	}

	return nil
}

// PermittedTargets returns all statuses reachable from the given status
func (m *machine) PermittedTargets(from Status) []Status {
	config, exists := m.configurations[from]
	if !exists {
		return []Status{}
	}

	targets := make([]Status, 0, len(config.transitions))
	for to := range config.transitions {
		targets = append(targets, to)
	}

	return targets
}
