package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/disbursement/internal/application/dispatcher"
	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/garyjia/disbursement/internal/domain/event"
	domainwf "github.com/garyjia/disbursement/internal/domain/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of engine spans
const TracerName = "github.com/garyjia/disbursement/internal/application/workflow"

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	requests  port.RequestRepository
	timeline  port.TimelineRepository
	users     port.UserRepository
	txManager port.TransactionManager
	policy    *domainwf.Policy

	dispatcher      dispatcher.Dispatcher
	logger          Logger
	tracer          trace.Tracer
	validate        *validator.Validate
	locks           *keyedLocker
	now             func() time.Time
	newID           func() string
	defaultCurrency string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithTracer overrides the tracer taken from the global provider
func WithTracer(tracer trace.Tracer) EngineOption {
	return func(e *engineImpl) {
		e.tracer = tracer
	}
}

// WithClock sets the time source for timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithEventIDs sets the timeline event id generator
func WithEventIDs(newID func() string) EngineOption {
	return func(e *engineImpl) {
		e.newID = newID
	}
}

// WithDefaultCurrency sets the currency used when a submission leaves it empty
func WithDefaultCurrency(currency string) EngineOption {
	return func(e *engineImpl) {
		e.defaultCurrency = currency
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	requests port.RequestRepository,
	timeline port.TimelineRepository,
	users port.UserRepository,
	txManager port.TransactionManager,
	policy *domainwf.Policy,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		requests:        requests,
		timeline:        timeline,
		users:           users,
		txManager:       txManager,
		policy:          policy,
		logger:          nopLogger{},
		tracer:          otel.Tracer(TracerName),
		validate:        NewValidator(),
		locks:           newKeyedLocker(),
		now:             time.Now,
		newID:           uuid.NewString,
		defaultCurrency: "PHP",
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// change is one persisted transition, kept for event publication after commit
type change struct {
	request *entity.Request
	event   *entity.TimelineEvent
	action  domainwf.Action
}

// SubmitRequest validates the input, resolves the submitter and stores the request in its initial status
func (e *engineImpl) SubmitRequest(ctx context.Context, in SubmitInput) (req *entity.Request, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.SubmitRequest", trace.WithAttributes(
		attribute.String("request.type", string(in.RequestType)),
		attribute.Int64("submitter.id", in.SubmitterID),
	))
	defer func() { endSpan(span, err) }()

	if err := validateInput(e.validate, in); err != nil {
		return nil, err
	}

	submitter, err := e.users.GetByID(ctx, in.SubmitterID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve submitter: %w", err)
	}

	req = e.newRequest(in, submitter)

	if req.RequestType == entity.RequestTypeLiquidation {
		unlock := e.locks.Lock(req.AdvanceID)
		defer unlock()
	}

	var changes []change
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if req.RequestType == entity.RequestTypeLiquidation {
			advance, err := e.checkAdvance(txCtx, req)
			if err != nil {
				return err
			}
			if err := e.ensureNoOpenLiquidation(txCtx, req.AdvanceID); err != nil {
				return err
			}
			remaining := advance.Amount.Sub(*req.ActualAmount)
			req.RemainingAmount = &remaining
		}

		id, err := e.requests.NextID(txCtx)
		if err != nil {
			return err
		}
		req.ID = id

		agg := e.aggregate(req)
		evt, err := agg.Submit(submitter.Actor(), in.Comment)
		if err != nil {
			return err
		}

		if err := e.requests.Create(txCtx, req); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if err := e.timeline.Append(txCtx, evt); err != nil {
			return fmt.Errorf("failed to append timeline event: %w", err)
		}

		changes = append(changes, change{request: req.Clone(), event: evt, action: domainwf.ActionSubmit})
		return nil
	})
	if err != nil {
		e.logFailure("Failed to submit request", err,
			"submitter_id", in.SubmitterID,
			"request_type", in.RequestType,
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("request.id", req.ID), attribute.String("request.status", string(req.Status)))
	e.logger.Info("Request submitted",
		"request_id", req.ID,
		"request_type", req.RequestType,
		"status", req.Status,
		"amount", req.Amount.String(),
	)
	e.publish(ctx, changes)

	return req, nil
}

// ApplyAction runs a user action on a request and, for an approved liquidation, closes the linked advance
func (e *engineImpl) ApplyAction(ctx context.Context, requestID string, action domainwf.Action, actorID int64, comment string) (req *entity.Request, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.ApplyAction", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("action", string(action)),
		attribute.Int64("actor.id", actorID),
	))
	defer func() { endSpan(span, err) }()

	if !action.IsUserAction() {
		return nil, fmt.Errorf("%w: %s is not a user action", domainwf.ErrInvalidTransition, action)
	}

	user, err := e.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, domainwf.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown actor %d", domainwf.ErrUnauthorized, actorID)
		}
		return nil, fmt.Errorf("failed to resolve actor: %w", err)
	}
	actor := user.Actor()
	span.SetAttributes(attribute.String("actor.role", string(actor.Role)))

	// Peek to learn which advance, if any, must be locked with the request
	current, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(requestID, current.AdvanceID)
	defer unlock()

	var changes []change
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err = e.requests.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}

		agg := e.aggregate(req)
		evt, err := agg.Apply(action, actor, comment)
		if err != nil {
			return err
		}

		if req.RequestType == entity.RequestTypeLiquidation && req.Status == entity.StatusApproved {
			advanceChange, err := e.liquidateAdvance(txCtx, req)
			if err != nil {
				return err
			}
			changes = append(changes, advanceChange)
		}

		if err := e.save(txCtx, req, evt); err != nil {
			return err
		}

		changes = append([]change{{request: req.Clone(), event: evt, action: action}}, changes...)
		return nil
	})
	if err != nil {
		e.logFailure("Failed to apply action", err,
			"request_id", requestID,
			"action", action,
			"actor_id", actorID,
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("request.status", string(req.Status)))
	e.logger.Info("Action applied",
		"request_id", req.ID,
		"action", action,
		"actor_role", actor.Role,
		"status", req.Status,
	)
	e.publish(ctx, changes)

	return req, nil
}

// GetInbox returns open requests whose next-action set contains role
func (e *engineImpl) GetInbox(ctx context.Context, role entity.Role) ([]*entity.Request, error) {
	if !role.IsValid() {
		return nil, domainwf.NewValidationError("role", fmt.Sprintf("unknown role %q", role))
	}

	requests, _, err := e.requests.List(ctx, entity.RequestFilter{ActionBy: role, OpenOnly: true}, port.Page{})
	if err != nil {
		return nil, fmt.Errorf("failed to load inbox: %w", err)
	}
	return nonNil(requests), nil
}

// GetRequestsFor returns an employee's own requests, or every request for Manager, Finance and CEO
func (e *engineImpl) GetRequestsFor(ctx context.Context, userID int64) ([]*entity.Request, error) {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	filter := entity.RequestFilter{}
	if !user.Role.IsPrivileged() {
		filter.EmployeeID = user.ID
	}

	requests, _, err := e.requests.List(ctx, filter, port.Page{})
	if err != nil {
		return nil, fmt.Errorf("failed to load requests: %w", err)
	}
	return nonNil(requests), nil
}

func (e *engineImpl) aggregate(req *entity.Request) *domainwf.Aggregate {
	return domainwf.NewAggregate(req, e.policy,
		domainwf.WithClock(e.now),
		domainwf.WithIDGenerator(e.newID),
	)
}

func (e *engineImpl) newRequest(in SubmitInput, submitter *entity.User) *entity.Request {
	req := &entity.Request{
		RequestType:             in.RequestType,
		EmployeeID:              submitter.ID,
		EmployeeName:            submitter.Name,
		EmployeeRole:            submitter.Role,
		Amount:                  in.Amount,
		Currency:                in.Currency,
		Category:                in.Category,
		Description:             in.Description,
		Priority:                in.Priority,
		Department:              in.Department,
		Company:                 in.Company,
		BusinessPurpose:         in.BusinessPurpose,
		ExpenseStartDate:        in.ExpenseStartDate,
		ExpenseEndDate:          in.ExpenseEndDate,
		AdvancePurpose:          in.AdvancePurpose,
		ExpectedLiquidationDate: in.ExpectedLiquidationDate,
		PlannedExpenseDate:      in.PlannedExpenseDate,
		Destination:             in.Destination,
		Remarks:                 in.Remarks,
		AdvanceID:               in.AdvanceID,
		ActualAmount:            in.ActualAmount,
	}

	if req.Currency == "" {
		req.Currency = e.defaultCurrency
	}
	if req.Priority == "" {
		req.Priority = entity.PriorityMedium
	}
	if req.Department == "" {
		req.Department = submitter.Department
	}
	if req.RequestType == entity.RequestTypeLiquidation && req.ActualAmount != nil {
		req.Amount = *req.ActualAmount
	}

	return req
}

// checkAdvance loads the cash advance a liquidation points at and verifies it can still be liquidated
func (e *engineImpl) checkAdvance(ctx context.Context, liquidation *entity.Request) (*entity.Request, error) {
	advance, err := e.requests.GetByID(ctx, liquidation.AdvanceID)
	if err != nil {
		return nil, fmt.Errorf("advance %s: %w", liquidation.AdvanceID, err)
	}

	if advance.RequestType != entity.RequestTypeCashAdvance {
		return nil, domainwf.NewValidationError("advanceId", fmt.Sprintf("%s is not a cash advance", advance.ID))
	}
	if advance.EmployeeID != liquidation.EmployeeID {
		return nil, domainwf.NewValidationError("advanceId", fmt.Sprintf("%s belongs to another employee", advance.ID))
	}
	if advance.Status != entity.StatusPendingLiquidation {
		return nil, fmt.Errorf("%w: advance %s is %s, not %s",
			domainwf.ErrInvalidTransition, advance.ID, advance.Status, entity.StatusPendingLiquidation)
	}

	return advance, nil
}

func (e *engineImpl) ensureNoOpenLiquidation(ctx context.Context, advanceID string) error {
	open, _, err := e.requests.List(ctx, entity.RequestFilter{
		RequestType: entity.RequestTypeLiquidation,
		AdvanceID:   advanceID,
		OpenOnly:    true,
	}, port.Page{Limit: 1})
	if err != nil {
		return fmt.Errorf("failed to look up liquidations: %w", err)
	}
	if len(open) > 0 {
		return fmt.Errorf("%w: advance %s already has open liquidation %s",
			domainwf.ErrInvalidTransition, advanceID, open[0].ID)
	}
	return nil
}

// liquidateAdvance applies the system LIQUIDATE action to the advance of an approved liquidation
func (e *engineImpl) liquidateAdvance(ctx context.Context, liquidation *entity.Request) (change, error) {
	advance, err := e.checkAdvance(ctx, liquidation)
	if err != nil {
		return change{}, err
	}

	agg := e.aggregate(advance)
	evt, err := agg.ApplySystem(domainwf.ActionLiquidate, fmt.Sprintf("Liquidated by %s", liquidation.ID))
	if err != nil {
		return change{}, err
	}

	if err := e.save(ctx, advance, evt); err != nil {
		return change{}, err
	}

	return change{request: advance.Clone(), event: evt, action: domainwf.ActionLiquidate}, nil
}

func (e *engineImpl) save(ctx context.Context, req *entity.Request, evt *entity.TimelineEvent) error {
	if err := e.requests.Update(ctx, req); err != nil {
		if errors.Is(err, port.ErrStaleRequest) {
			return fmt.Errorf("%w: %w", domainwf.ErrInvalidTransition, err)
		}
		return fmt.Errorf("failed to update request: %w", err)
	}
	if err := e.timeline.Append(ctx, evt); err != nil {
		return fmt.Errorf("failed to append timeline event: %w", err)
	}
	return nil
}

// publish emits domain events for committed changes
func (e *engineImpl) publish(ctx context.Context, changes []change) {
	if e.dispatcher == nil {
		return
	}

	correlationID := event.CorrelationIDFrom(ctx)
	for _, c := range changes {
		payload := map[string]interface{}{
			event.KeyFromStatus:   string(c.event.FromStatus),
			event.KeyToStatus:     string(c.event.ToStatus),
			event.KeyAction:       string(c.action),
			event.KeyActorID:      c.event.Actor.ID,
			event.KeyActorRole:    string(c.event.Actor.Role),
			event.KeyRequestType:  string(c.request.RequestType),
			event.KeyAmount:       c.request.Amount.String(),
			event.KeyNextActionBy: roleNames(c.request.NextActionBy),
		}
		if c.request.AdvanceID != "" {
			payload[event.KeyAdvanceID] = c.request.AdvanceID
		}

		for _, typ := range eventTypes(c) {
			e.dispatcher.DispatchAsync(ctx, event.NewEventWithCorrelation(typ, c.request.ID, payload, correlationID))
		}
	}
}

func eventTypes(c change) []event.Type {
	if c.action == domainwf.ActionSubmit {
		return []event.Type{event.TypeRequestSubmitted}
	}

	types := []event.Type{event.TypeStatusChanged}
	switch c.request.Status {
	case entity.StatusApproved:
		types = append(types, event.TypeRequestApproved)
	case entity.StatusRejected:
		types = append(types, event.TypeRequestRejected)
	case entity.StatusPaid, entity.StatusPendingLiquidation:
		types = append(types, event.TypePaymentReleased)
	case entity.StatusLiquidated:
		types = append(types, event.TypeAdvanceLiquidated)
	}
	return types
}

// logFailure reports internal failures at error level; rejected commands are only info
func (e *engineImpl) logFailure(msg string, err error, keysAndValues ...interface{}) {
	keysAndValues = append(keysAndValues, "error", err)
	if isDomainError(err) {
		e.logger.Info(msg, keysAndValues...)
		return
	}
	e.logger.Error(msg, keysAndValues...)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domainwf.ErrValidation,
		domainwf.ErrUnauthorized,
		domainwf.ErrInvalidTransition,
		domainwf.ErrAlreadyTerminal,
		domainwf.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func roleNames(roles []entity.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func nonNil(requests []*entity.Request) []*entity.Request {
	if requests == nil {
		return []*entity.Request{}
	}
	return requests
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
