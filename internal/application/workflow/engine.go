package workflow

import (
	"context"
	"time"

	"github.com/garyjia/disbursement/internal/domain/entity"
	domainwf "github.com/garyjia/disbursement/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

// Engine is the single entry point for changing a request's status
type Engine interface {
	// SubmitRequest creates a request and places it in its initial status
	SubmitRequest(ctx context.Context, in SubmitInput) (*entity.Request, error)

	// ApplyAction runs a user action on a request on behalf of actorID
	ApplyAction(ctx context.Context, requestID string, action domainwf.Action, actorID int64, comment string) (*entity.Request, error)

	// GetInbox returns open requests awaiting role, newest first
	GetInbox(ctx context.Context, role entity.Role) ([]*entity.Request, error)

	// GetRequestsFor returns the user's own requests, or all requests for privileged roles
	GetRequestsFor(ctx context.Context, userID int64) ([]*entity.Request, error)
}

// SubmitInput is a new request as entered by its submitter
type SubmitInput struct {
	RequestType entity.RequestType `json:"requestType" validate:"required,oneof=REIMBURSEMENT CASH_ADVANCE LIQUIDATION"`
	SubmitterID int64              `json:"submitterId" validate:"required,gt=0"`
	Amount      decimal.Decimal    `json:"amount"`
	Currency    string             `json:"currency" validate:"omitempty,iso4217"`
	Category    string             `json:"category" validate:"required,category"`
	Description string             `json:"description" validate:"max=2000"`
	Priority    string             `json:"priority" validate:"omitempty,priority"`
	Comment     string             `json:"comment" validate:"max=1000"`
	Department  string             `json:"department" validate:"max=100"`
	Company     string             `json:"company" validate:"max=100"`

	BusinessPurpose  string     `json:"businessPurpose" validate:"required_if=RequestType REIMBURSEMENT"`
	ExpenseStartDate *time.Time `json:"expenseStartDate"`
	ExpenseEndDate   *time.Time `json:"expenseEndDate"`

	AdvancePurpose          string     `json:"advancePurpose" validate:"required_if=RequestType CASH_ADVANCE"`
	ExpectedLiquidationDate *time.Time `json:"expectedLiquidationDate" validate:"required_if=RequestType CASH_ADVANCE"`
	PlannedExpenseDate      *time.Time `json:"plannedExpenseDate"`
	Destination             string     `json:"destination" validate:"max=200"`
	Remarks                 string     `json:"remarks" validate:"max=1000"`

	AdvanceID    string           `json:"advanceId" validate:"required_if=RequestType LIQUIDATION"`
	ActualAmount *decimal.Decimal `json:"actualAmount" validate:"required_if=RequestType LIQUIDATION"`
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
