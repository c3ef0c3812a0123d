package workflow

import (
	"errors"
	"testing"

	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPolicy_Initial(t *testing.T) {
	policy := NewPolicy(DefaultCEOThreshold)

	tests := []struct {
		name        string
		requestType entity.RequestType
		role        entity.Role
		amount      string
		wantStatus  entity.RequestStatus
		wantNext    []entity.Role
	}{
		{"employee goes to manager validation", entity.RequestTypeReimbursement, entity.RoleEmployee, "5000", entity.StatusPendingValidation, []entity.Role{entity.RoleManager}},
		{"manager skips validation", entity.RequestTypeReimbursement, entity.RoleManager, "5000", entity.StatusPendingFinance, []entity.Role{entity.RoleFinance}},
		{"finance under threshold is approved", entity.RequestTypeReimbursement, entity.RoleFinance, "20000", entity.StatusApproved, []entity.Role{entity.RoleFinance}},
		{"finance over threshold needs CEO", entity.RequestTypeCashAdvance, entity.RoleFinance, "20000.01", entity.StatusPendingCEO, []entity.Role{entity.RoleCEO}},
		{"CEO under threshold is approved", entity.RequestTypeReimbursement, entity.RoleCEO, "100", entity.StatusApproved, []entity.Role{entity.RoleFinance}},
		{"CEO over threshold needs CEO", entity.RequestTypeReimbursement, entity.RoleCEO, "30000", entity.StatusPendingCEO, []entity.Role{entity.RoleCEO}},
		{"liquidation goes to finance", entity.RequestTypeLiquidation, entity.RoleEmployee, "24000", entity.StatusPendingFinance, []entity.Role{entity.RoleFinance}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := policy.Initial(tt.requestType, tt.role, amount(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, route.Status)
			assert.Equal(t, tt.wantNext, route.NextActionBy)
		})
	}
}

func TestPolicy_Initial_RejectsNonPositiveAmount(t *testing.T) {
	policy := NewPolicy(DefaultCEOThreshold)

	for _, a := range []string{"0", "-1", "-0.01"} {
		_, err := policy.Initial(entity.RequestTypeReimbursement, entity.RoleEmployee, amount(a))
		assert.ErrorIs(t, err, ErrValidation, "amount %s", a)
	}
}

func TestPolicy_Next(t *testing.T) {
	policy := NewPolicy(DefaultCEOThreshold)

	tests := []struct {
		name        string
		status      entity.RequestStatus
		requestType entity.RequestType
		role        entity.Role
		action      Action
		amount      string
		wantStatus  entity.RequestStatus
		wantNext    []entity.Role
	}{
		{"manager validates", entity.StatusPendingValidation, entity.RequestTypeReimbursement, entity.RoleManager, ActionApprove, "5000", entity.StatusPendingFinance, []entity.Role{entity.RoleFinance}},
		{"finance approves at threshold", entity.StatusPendingFinance, entity.RequestTypeReimbursement, entity.RoleFinance, ActionApprove, "20000", entity.StatusApproved, []entity.Role{entity.RoleFinance}},
		{"finance escalates above threshold", entity.StatusPendingFinance, entity.RequestTypeCashAdvance, entity.RoleFinance, ActionApprove, "20000.01", entity.StatusPendingCEO, []entity.Role{entity.RoleCEO}},
		{"finance approves liquidation regardless of amount", entity.StatusPendingFinance, entity.RequestTypeLiquidation, entity.RoleFinance, ActionApprove, "50000", entity.StatusApproved, []entity.Role{entity.RoleFinance}},
		{"CEO approves", entity.StatusPendingCEO, entity.RequestTypeReimbursement, entity.RoleCEO, ActionApprove, "25000", entity.StatusApproved, []entity.Role{entity.RoleFinance}},
		{"CEO rejects", entity.StatusPendingCEO, entity.RequestTypeReimbursement, entity.RoleCEO, ActionReject, "25000", entity.StatusRejected, []entity.Role{}},
		{"manager rejects", entity.StatusPendingValidation, entity.RequestTypeCashAdvance, entity.RoleManager, ActionReject, "100", entity.StatusRejected, []entity.Role{}},
		{"finance rejects", entity.StatusPendingFinance, entity.RequestTypeLiquidation, entity.RoleFinance, ActionReject, "100", entity.StatusRejected, []entity.Role{}},
		{"cash advance payment awaits liquidation", entity.StatusApproved, entity.RequestTypeCashAdvance, entity.RoleFinance, ActionProcessPayment, "25000", entity.StatusPendingLiquidation, []entity.Role{entity.RoleEmployee}},
		{"reimbursement payment processing", entity.StatusApproved, entity.RequestTypeReimbursement, entity.RoleFinance, ActionProcessPayment, "5000", entity.StatusProcessingPayment, []entity.Role{entity.RoleFinance}},
		{"finance marks paid", entity.StatusProcessingPayment, entity.RequestTypeReimbursement, entity.RoleFinance, ActionMarkPaid, "5000", entity.StatusPaid, []entity.Role{}},
		{"system liquidates advance", entity.StatusPendingLiquidation, entity.RequestTypeCashAdvance, "", ActionLiquidate, "25000", entity.StatusLiquidated, []entity.Role{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := policy.Next(tt.status, tt.requestType, tt.role, tt.action, amount(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, route.Status)
			assert.Equal(t, tt.wantNext, route.NextActionBy)
		})
	}
}

func TestPolicy_Next_InvalidTransitions(t *testing.T) {
	policy := NewPolicy(DefaultCEOThreshold)

	tests := []struct {
		name        string
		status      entity.RequestStatus
		requestType entity.RequestType
		role        entity.Role
		action      Action
	}{
		{"reject after approval", entity.StatusApproved, entity.RequestTypeReimbursement, entity.RoleFinance, ActionReject},
		{"mark paid before processing", entity.StatusApproved, entity.RequestTypeReimbursement, entity.RoleFinance, ActionMarkPaid},
		{"approve a paid request", entity.StatusPaid, entity.RequestTypeReimbursement, entity.RoleFinance, ActionApprove},
		{"liquidate an already liquidated advance", entity.StatusLiquidated, entity.RequestTypeCashAdvance, "", ActionLiquidate},
		{"liquidate a reimbursement", entity.StatusPendingLiquidation, entity.RequestTypeReimbursement, "", ActionLiquidate},
		{"employee acts on pending liquidation", entity.StatusPendingLiquidation, entity.RequestTypeCashAdvance, entity.RoleEmployee, ActionApprove},
		{"wrong role approves", entity.StatusPendingCEO, entity.RequestTypeReimbursement, entity.RoleFinance, ActionApprove},
		{"unknown status", entity.RequestStatus("DRAFT"), entity.RequestTypeReimbursement, entity.RoleFinance, ActionApprove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := policy.Next(tt.status, tt.requestType, tt.role, tt.action, amount("100"))
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestPolicy_Next_ValidatesAmountFirst(t *testing.T) {
	policy := NewPolicy(DefaultCEOThreshold)

	_, err := policy.Next(entity.StatusPendingValidation, entity.RequestTypeReimbursement, entity.RoleManager, ActionApprove, decimal.Zero)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrInvalidTransition))
}

func TestPolicy_ConfigurableThreshold(t *testing.T) {
	policy := NewPolicy(decimal.NewFromInt(1000))

	route, err := policy.Next(entity.StatusPendingFinance, entity.RequestTypeReimbursement, entity.RoleFinance, ActionApprove, amount("1000.01"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingCEO, route.Status)
	assert.True(t, policy.Threshold().Equal(decimal.NewFromInt(1000)))
}

// Every status in the closed set has a responsible-role entry, and it is empty exactly for terminal statuses.
func TestPolicy_ResponsibleMatchesTerminality(t *testing.T) {
	policy := NewPolicy(DefaultCEOThreshold)

	for _, status := range entity.AllStatuses {
		_, mapped := responsible[status]
		require.True(t, mapped, "status %s has no responsible roles entry", status)
		assert.Equal(t, status.IsTerminal(), len(policy.Responsible(status)) == 0, "status %s", status)
	}
}

// Every transition the policy can produce lands on a status the timeline recorder can describe.
func TestPolicy_EveryTargetHasStage(t *testing.T) {
	policy := NewPolicy(DefaultCEOThreshold)
	types := []entity.RequestType{entity.RequestTypeReimbursement, entity.RequestTypeCashAdvance, entity.RequestTypeLiquidation}
	roles := []entity.Role{"", entity.RoleEmployee, entity.RoleManager, entity.RoleFinance, entity.RoleCEO}
	actions := []Action{ActionApprove, ActionReject, ActionProcessPayment, ActionMarkPaid, ActionLiquidate}
	amounts := []decimal.Decimal{amount("1"), amount("20000"), amount("20000.01")}

	for _, status := range entity.AllStatuses {
		for _, rt := range types {
			for _, role := range roles {
				for _, action := range actions {
					for _, a := range amounts {
						route, err := policy.Next(status, rt, role, action, a)
						if err != nil {
							continue
						}
						_, err = Describe(action, route.Status, rt)
						assert.NoError(t, err, "%s --%s/%s--> %s for %s", status, action, role, route.Status, rt)
					}
				}
			}
		}
	}
}
