package workflow

import (
	"fmt"

	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Input holds the facts a transition guard is evaluated against
type Input struct {
	RequestType entity.RequestType
	Role        entity.Role
	Amount      decimal.Decimal
}

// GuardFunc evaluates whether a transition applies to the given input
type GuardFunc func(in Input) bool

// TableBuilder builds an immutable transition table
type TableBuilder interface {
	// Configure returns the configuration for transitions leaving the given status
	Configure(status entity.RequestStatus) StateConfiguration

	// Build creates the transition table
	Build() TransitionTable
}

// StateConfiguration configures transitions for a specific status
type StateConfiguration interface {
	// Permit allows an action to move to the target status unconditionally
	Permit(action Action, to entity.RequestStatus) StateConfiguration

	// PermitIf allows an action to move to the target status if the guard passes.
	// Guards for the same action are tried in registration order.
	PermitIf(action Action, to entity.RequestStatus, guard GuardFunc) StateConfiguration
}

type transition struct {
	to    entity.RequestStatus
	guard GuardFunc
}

type stateConfig struct {
	from        entity.RequestStatus
	transitions map[Action][]transition
	order       []Action
}

type tableBuilder struct {
	configurations map[entity.RequestStatus]*stateConfig
}

// NewBuilder creates a new transition table builder
func NewBuilder() TableBuilder {
	return &tableBuilder{
		configurations: make(map[entity.RequestStatus]*stateConfig),
	}
}

// Configure returns the configuration for the given status
func (b *tableBuilder) Configure(status entity.RequestStatus) StateConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &stateConfig{
			from:        status,
			transitions: make(map[Action][]transition),
		}
		b.configurations[status] = config
	}

	return config
}

// Build copies the configured transitions into a table so later Configure calls cannot change it
func (b *tableBuilder) Build() TransitionTable {
	configs := make(map[entity.RequestStatus]*stateConfig, len(b.configurations))
	for status, config := range b.configurations {
		transitions := make(map[Action][]transition, len(config.transitions))
		for action, ts := range config.transitions {
			transitions[action] = append([]transition{}, ts...)
		}
		configs[status] = &stateConfig{
			from:        status,
			transitions: transitions,
			order:       append([]Action{}, config.order...),
		}
	}

	return &transitionTable{configurations: configs}
}

// Permit allows an action to move to the target status unconditionally
func (c *stateConfig) Permit(action Action, to entity.RequestStatus) StateConfiguration {
	return c.PermitIf(action, to, nil)
}

// PermitIf allows an action to move to the target status if the guard passes
func (c *stateConfig) PermitIf(action Action, to entity.RequestStatus, guard GuardFunc) StateConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}
	if c.from.IsTerminal() {
		panic(fmt.Sprintf("terminal status %s cannot have outgoing transitions", c.from))
	}

	if _, exists := c.transitions[action]; !exists {
		c.order = append(c.order, action)
	}
	c.transitions[action] = append(c.transitions[action], transition{to: to, guard: guard})

	return c
}

// RoleIs passes when the acting role equals role
func RoleIs(role entity.Role) GuardFunc {
	return func(in Input) bool {
		return in.Role == role
	}
}

// TypeIs passes when the request type equals t
func TypeIs(t entity.RequestType) GuardFunc {
	return func(in Input) bool {
		return in.RequestType == t
	}
}

// All passes when every guard passes
func All(guards ...GuardFunc) GuardFunc {
	return func(in Input) bool {
		for _, g := range guards {
			if !g(in) {
				return false
			}
		}
		return true
	}
}

// Not inverts a guard
func Not(guard GuardFunc) GuardFunc {
	return func(in Input) bool {
		return !guard(in)
	}
}
