package workflow

import (
	"fmt"
	"time"

	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/google/uuid"
)

// Aggregate owns a request's status, next-action set and timeline while a transition is applied.
// It is not safe for concurrent use; the engine serializes access per request.
type Aggregate struct {
	request *entity.Request
	policy  *Policy
	now     func() time.Time
	newID   func() string
	events  []*entity.TimelineEvent
}

// AggregateOption configures an aggregate
type AggregateOption func(*Aggregate)

// WithClock sets the time source used for timestamps
func WithClock(now func() time.Time) AggregateOption {
	return func(a *Aggregate) {
		a.now = now
	}
}

// WithIDGenerator sets the timeline event id generator
func WithIDGenerator(newID func() string) AggregateOption {
	return func(a *Aggregate) {
		a.newID = newID
	}
}

// NewAggregate wraps a request for mutation under the given policy
func NewAggregate(request *entity.Request, policy *Policy, opts ...AggregateOption) *Aggregate {
	a := &Aggregate{
		request: request,
		policy:  policy,
		now:     time.Now,
		newID:   uuid.NewString,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Request returns the wrapped request
func (a *Aggregate) Request() *entity.Request {
	return a.request
}

// Events returns the timeline events produced since the aggregate was created
func (a *Aggregate) Events() []*entity.TimelineEvent {
	return append([]*entity.TimelineEvent{}, a.events...)
}

// Submit places a new request in its initial status and records the submission
func (a *Aggregate) Submit(submitter entity.Actor, comment string) (*entity.TimelineEvent, error) {
	if a.request.Status != "" {
		return nil, fmt.Errorf("%w: request %s already submitted", ErrInvalidTransition, a.request.ID)
	}

	route, err := a.policy.Initial(a.request.RequestType, submitter.Role, a.request.Amount)
	if err != nil {
		return nil, err
	}

	now := a.now()
	a.request.CreatedAt = now
	return a.transition(ActionSubmit, route, submitter, comment, entity.EventTypeUser, now)
}

// Apply runs a user action: terminal check, authorization, routing, then timeline append
func (a *Aggregate) Apply(action Action, actor entity.Actor, comment string) (*entity.TimelineEvent, error) {
	if a.request.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: request %s is %s", ErrAlreadyTerminal, a.request.ID, a.request.Status)
	}
	if !action.IsUserAction() {
		return nil, fmt.Errorf("%w: %s is not a user action", ErrInvalidTransition, action)
	}
	if !a.request.CanBeActedOnBy(actor.Role) {
		return nil, fmt.Errorf("%w: %s cannot act on %s in %s (next action by %v)",
			ErrUnauthorized, actor.Role, a.request.ID, a.request.Status, a.request.NextActionBy)
	}

	return a.apply(action, actor, comment, entity.EventTypeUser)
}

// ApplySystem runs a system-generated transition; it bypasses the next-action check
func (a *Aggregate) ApplySystem(action Action, comment string) (*entity.TimelineEvent, error) {
	if a.request.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: request %s is %s", ErrAlreadyTerminal, a.request.ID, a.request.Status)
	}

	return a.apply(action, entity.SystemActor(), comment, entity.EventTypeSystem)
}

func (a *Aggregate) apply(action Action, actor entity.Actor, comment, eventType string) (*entity.TimelineEvent, error) {
	route, err := a.policy.Next(a.request.Status, a.request.RequestType, actor.Role, action, a.request.Amount)
	if err != nil {
		return nil, err
	}

	return a.transition(action, route, actor, comment, eventType, a.now())
}

func (a *Aggregate) transition(action Action, route Route, actor entity.Actor, comment, eventType string, now time.Time) (*entity.TimelineEvent, error) {
	stage, err := Describe(action, route.Status, a.request.RequestType)
	if err != nil {
		return nil, err
	}

	event := &entity.TimelineEvent{
		ID:         a.newID(),
		RequestID:  a.request.ID,
		Stage:      stage.Label,
		Decision:   stage.Decision,
		Actor:      actor,
		Comment:    comment,
		FromStatus: a.request.Status,
		ToStatus:   route.Status,
		Type:       eventType,
		Timestamp:  now,
	}

	a.request.Status = route.Status
	a.request.NextActionBy = route.NextActionBy
	a.request.UpdatedAt = now
	a.events = append(a.events, event)

	return event, nil
}
