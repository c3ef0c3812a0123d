package workflow

import (
	"fmt"

	"github.com/garyjia/disbursement/internal/domain/entity"
)

// TransitionTable resolves status transitions; it holds no per-request state
type TransitionTable interface {
	// Resolve returns the status reached by applying action from the given status
	Resolve(from entity.RequestStatus, action Action, in Input) (entity.RequestStatus, error)

	// CanFire returns true if any rule exists for the action in the given status
	CanFire(from entity.RequestStatus, action Action) bool

	// PermittedActions returns the actions with rules in the given status, in registration order
	PermittedActions(from entity.RequestStatus) []Action
}

type transitionTable struct {
	configurations map[entity.RequestStatus]*stateConfig
}

// Resolve tries each rule for the action in order and returns the first whose guard passes
func (t *transitionTable) Resolve(from entity.RequestStatus, action Action, in Input) (entity.RequestStatus, error) {
	config, exists := t.configurations[from]
	if !exists {
		return "", fmt.Errorf("%w: cannot apply %s from %s (no configuration)", ErrInvalidTransition, action, from)
	}

	transitions, exists := config.transitions[action]
	if !exists || len(transitions) == 0 {
		return "", fmt.Errorf("%w: cannot apply %s from %s", ErrInvalidTransition, action, from)
	}

	for _, tr := range transitions {
		if tr.guard == nil || tr.guard(in) {
			return tr.to, nil
		}
	}

	return "", fmt.Errorf("%w: %w: %s from %s by %s on %s", ErrInvalidTransition, ErrGuardFailed, action, from, in.Role, in.RequestType)
}

// CanFire returns true if any rule exists for the action in the given status
func (t *transitionTable) CanFire(from entity.RequestStatus, action Action) bool {
	config, exists := t.configurations[from]
	if !exists {
		return false
	}
	return len(config.transitions[action]) > 0
}

// PermittedActions returns the actions configured for the given status
func (t *transitionTable) PermittedActions(from entity.RequestStatus) []Action {
	config, exists := t.configurations[from]
	if !exists {
		return []Action{}
	}
	return append([]Action{}, config.order...)
}
