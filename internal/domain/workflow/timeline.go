package workflow

import (
	"fmt"

	"github.com/garyjia/disbursement/internal/domain/entity"
)

// Stage is the human label and decision code recorded for a transition
type Stage struct {
	Label    string
	Decision string
}

type stageKey struct {
	status      entity.RequestStatus
	requestType entity.RequestType
}

var submittedStage = Stage{Label: "Request Submitted", Decision: entity.DecisionSubmitted}

// stages lists every (status, type) pair reachable through a non-submit transition.
// Anything missing here is a policy/recorder mismatch and is reported, not guessed.
var stages = map[stageKey]Stage{
	{entity.StatusPendingFinance, entity.RequestTypeReimbursement}: {"Validated by Manager", entity.DecisionValidated},
	{entity.StatusPendingFinance, entity.RequestTypeCashAdvance}:   {"Validated by Manager", entity.DecisionValidated},

	{entity.StatusPendingCEO, entity.RequestTypeReimbursement}: {"Reviewed by Finance, Pending CEO Approval", entity.DecisionValidated},
	{entity.StatusPendingCEO, entity.RequestTypeCashAdvance}:   {"Reviewed by Finance, Pending CEO Approval", entity.DecisionValidated},

	{entity.StatusApproved, entity.RequestTypeReimbursement}: {"Approved", entity.DecisionApproved},
	{entity.StatusApproved, entity.RequestTypeCashAdvance}:   {"Approved", entity.DecisionApproved},
	{entity.StatusApproved, entity.RequestTypeLiquidation}:   {"Liquidation Approved", entity.DecisionApproved},

	{entity.StatusProcessingPayment, entity.RequestTypeReimbursement}: {"Processing Payment", entity.DecisionValidated},
	{entity.StatusProcessingPayment, entity.RequestTypeLiquidation}:   {"Processing Settlement", entity.DecisionValidated},

	{entity.StatusPaid, entity.RequestTypeReimbursement}: {"Payment Released", entity.DecisionReleased},
	{entity.StatusPaid, entity.RequestTypeLiquidation}:   {"Settlement Released", entity.DecisionReleased},

	{entity.StatusPendingLiquidation, entity.RequestTypeCashAdvance}: {"Cash Released, Pending Liquidation", entity.DecisionReleased},
	{entity.StatusLiquidated, entity.RequestTypeCashAdvance}:         {"Advance Liquidated", entity.DecisionLiquidated},

	{entity.StatusRejected, entity.RequestTypeReimbursement}: {"Request Rejected", entity.DecisionRejected},
	{entity.StatusRejected, entity.RequestTypeCashAdvance}:   {"Request Rejected", entity.DecisionRejected},
	{entity.StatusRejected, entity.RequestTypeLiquidation}:   {"Request Rejected", entity.DecisionRejected},
}

// Describe returns the stage label and decision code for a transition into status
func Describe(action Action, status entity.RequestStatus, requestType entity.RequestType) (Stage, error) {
	if action == ActionSubmit {
		return submittedStage, nil
	}

	stage, ok := stages[stageKey{status: status, requestType: requestType}]
	if !ok {
		return Stage{}, fmt.Errorf("%w: %s for %s", ErrUnmappedStage, status, requestType)
	}
	return stage, nil
}
