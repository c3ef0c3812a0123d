package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request is a disbursement request and the unit of consistency of the workflow
type Request struct {
	ID           string          `json:"id"`
	RequestType  RequestType     `json:"requestType"`
	EmployeeID   int64           `json:"employeeId"`
	EmployeeName string          `json:"employeeName"`
	EmployeeRole Role            `json:"employeeRole"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Priority     string          `json:"priority"`
	Status       RequestStatus   `json:"status"`
	NextActionBy []Role          `json:"nextActionBy"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`

	// Shared optional fields
	Department string `json:"department,omitempty"`
	Company    string `json:"company,omitempty"`

	// Reimbursement
	BusinessPurpose  string     `json:"businessPurpose,omitempty"`
	ExpenseStartDate *time.Time `json:"expenseStartDate,omitempty"`
	ExpenseEndDate   *time.Time `json:"expenseEndDate,omitempty"`

	// Cash advance
	AdvancePurpose          string     `json:"advancePurpose,omitempty"`
	ExpectedLiquidationDate *time.Time `json:"expectedLiquidationDate,omitempty"`
	PlannedExpenseDate      *time.Time `json:"plannedExpenseDate,omitempty"`
	Destination             string     `json:"destination,omitempty"`
	Remarks                 string     `json:"remarks,omitempty"`

	// Liquidation
	AdvanceID       string           `json:"advanceId,omitempty"`
	ActualAmount    *decimal.Decimal `json:"actualAmount,omitempty"`
	RemainingAmount *decimal.Decimal `json:"remainingAmount,omitempty"`
}

// CanBeActedOnBy reports whether role is in the request's next-action set
func (r *Request) CanBeActedOnBy(role Role) bool {
	for _, candidate := range r.NextActionBy {
		if candidate == role {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the request
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.NextActionBy = append([]Role{}, r.NextActionBy...)
	c.ExpenseStartDate = cloneTime(r.ExpenseStartDate)
	c.ExpenseEndDate = cloneTime(r.ExpenseEndDate)
	c.ExpectedLiquidationDate = cloneTime(r.ExpectedLiquidationDate)
	c.PlannedExpenseDate = cloneTime(r.PlannedExpenseDate)
	if r.ActualAmount != nil {
		v := *r.ActualAmount
		c.ActualAmount = &v
	}
	if r.RemainingAmount != nil {
		v := *r.RemainingAmount
		c.RemainingAmount = &v
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// RequestFilter narrows a request listing. Zero values match everything.
type RequestFilter struct {
	Status      RequestStatus
	RequestType RequestType
	Category    string
	Priority    string
	EmployeeID  int64
	ActionBy    Role
	AdvanceID   string
	OpenOnly    bool
}

// Matches reports whether the request satisfies every set criterion
func (f RequestFilter) Matches(r *Request) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.RequestType != "" && r.RequestType != f.RequestType {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if f.EmployeeID != 0 && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.ActionBy != "" && !r.CanBeActedOnBy(f.ActionBy) {
		return false
	}
	if f.AdvanceID != "" && r.AdvanceID != f.AdvanceID {
		return false
	}
	if f.OpenOnly && r.Status.IsTerminal() {
		return false
	}
	return true
}
