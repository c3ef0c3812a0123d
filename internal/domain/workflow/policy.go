package workflow

import (
	"fmt"

	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// DefaultCEOThreshold is the amount above which a request needs CEO approval
var DefaultCEOThreshold = decimal.NewFromInt(20000)

// Route is the outcome of a routing decision
type Route struct {
	Status       entity.RequestStatus
	NextActionBy []entity.Role
}

// responsible maps each status to the roles that act next. Terminal statuses map to nobody.
var responsible = map[entity.RequestStatus][]entity.Role{
	entity.StatusPendingValidation:  {entity.RoleManager},
	entity.StatusPendingFinance:     {entity.RoleFinance},
	entity.StatusPendingCEO:         {entity.RoleCEO},
	entity.StatusApproved:           {entity.RoleFinance},
	entity.StatusProcessingPayment:  {entity.RoleFinance},
	entity.StatusPendingLiquidation: {entity.RoleEmployee},
	entity.StatusPaid:               {},
	entity.StatusRejected:           {},
	entity.StatusLiquidated:         {},
}

// Policy is the routing policy: a pure mapping from
// (status, request type, role, action, amount) to the next status and responsible roles.
type Policy struct {
	threshold decimal.Decimal
	table     TransitionTable
}

// NewPolicy creates a routing policy with the given CEO approval threshold
func NewPolicy(threshold decimal.Decimal) *Policy {
	p := &Policy{threshold: threshold}
	p.table = p.buildTable()
	return p
}

// Threshold returns the CEO approval threshold
func (p *Policy) Threshold() decimal.Decimal {
	return p.threshold
}

// Table returns the transition table backing the policy
func (p *Policy) Table() TransitionTable {
	return p.table
}

// Responsible returns the roles authorized to act on a request in the given status
func (p *Policy) Responsible(status entity.RequestStatus) []entity.Role {
	return append([]entity.Role{}, responsible[status]...)
}

// Initial computes the status a new request starts in
func (p *Policy) Initial(requestType entity.RequestType, submitter entity.Role, amount decimal.Decimal) (Route, error) {
	if err := validateAmount(amount); err != nil {
		return Route{}, err
	}
	if !requestType.IsValid() {
		return Route{}, NewValidationError("requestType", fmt.Sprintf("unknown request type %q", requestType))
	}

	var status entity.RequestStatus
	switch {
	case requestType == entity.RequestTypeLiquidation:
		status = entity.StatusPendingFinance
	case submitter == entity.RoleEmployee:
		status = entity.StatusPendingValidation
	case submitter == entity.RoleManager:
		status = entity.StatusPendingFinance
	case submitter == entity.RoleFinance, submitter == entity.RoleCEO:
		status = p.afterFinanceReview(amount)
	default:
		return Route{}, NewValidationError("submitter.role", fmt.Sprintf("unknown role %q", submitter))
	}

	return p.route(status), nil
}

// Next computes the status and responsible roles after action is applied
func (p *Policy) Next(status entity.RequestStatus, requestType entity.RequestType, role entity.Role, action Action, amount decimal.Decimal) (Route, error) {
	if err := validateAmount(amount); err != nil {
		return Route{}, err
	}
	if !status.IsValid() {
		return Route{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	to, err := p.table.Resolve(status, action, Input{
		RequestType: requestType,
		Role:        role,
		Amount:      amount,
	})
	if err != nil {
		return Route{}, err
	}

	return p.route(to), nil
}

func (p *Policy) route(status entity.RequestStatus) Route {
	return Route{Status: status, NextActionBy: p.Responsible(status)}
}

func (p *Policy) exceedsThreshold(in Input) bool {
	return in.Amount.GreaterThan(p.threshold)
}

func (p *Policy) afterFinanceReview(amount decimal.Decimal) entity.RequestStatus {
	if amount.GreaterThan(p.threshold) {
		return entity.StatusPendingCEO
	}
	return entity.StatusApproved
}

func (p *Policy) buildTable() TransitionTable {
	builder := NewBuilder()

	builder.Configure(entity.StatusPendingValidation).
		PermitIf(ActionApprove, entity.StatusPendingFinance, All(RoleIs(entity.RoleManager), Not(TypeIs(entity.RequestTypeLiquidation)))).
		Permit(ActionReject, entity.StatusRejected)

	builder.Configure(entity.StatusPendingFinance).
		PermitIf(ActionApprove, entity.StatusApproved, All(RoleIs(entity.RoleFinance), TypeIs(entity.RequestTypeLiquidation))).
		PermitIf(ActionApprove, entity.StatusPendingCEO, All(RoleIs(entity.RoleFinance), p.exceedsThreshold)).
		PermitIf(ActionApprove, entity.StatusApproved, RoleIs(entity.RoleFinance)).
		Permit(ActionReject, entity.StatusRejected)

	builder.Configure(entity.StatusPendingCEO).
		PermitIf(ActionApprove, entity.StatusApproved, RoleIs(entity.RoleCEO)).
		Permit(ActionReject, entity.StatusRejected)

	builder.Configure(entity.StatusApproved).
		PermitIf(ActionProcessPayment, entity.StatusPendingLiquidation, All(RoleIs(entity.RoleFinance), TypeIs(entity.RequestTypeCashAdvance))).
		PermitIf(ActionProcessPayment, entity.StatusProcessingPayment, RoleIs(entity.RoleFinance))

	builder.Configure(entity.StatusProcessingPayment).
		PermitIf(ActionMarkPaid, entity.StatusPaid, All(RoleIs(entity.RoleFinance), Not(TypeIs(entity.RequestTypeCashAdvance))))

	builder.Configure(entity.StatusPendingLiquidation).
		PermitIf(ActionLiquidate, entity.StatusLiquidated, TypeIs(entity.RequestTypeCashAdvance))

	// PAID, REJECTED and LIQUIDATED are terminal - no outgoing transitions

	return builder.Build()
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("amount", "must be greater than 0")
	}
	return nil
}
