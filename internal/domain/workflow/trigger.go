package workflow

// Action is what an actor does to a request; it drives a status transition
type Action string

const (
	ActionSubmit         Action = "SUBMIT"
	ActionApprove        Action = "APPROVE"
	ActionReject         Action = "REJECT"
	ActionProcessPayment Action = "PROCESS_PAYMENT"
	ActionMarkPaid       Action = "MARK_PAID"

	// ActionLiquidate is system-only: it closes a cash advance once its liquidation is approved
	ActionLiquidate Action = "LIQUIDATE"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// IsUserAction returns true for the actions a user may request through applyAction
func (a Action) IsUserAction() bool {
	switch a {
	case ActionApprove, ActionReject, ActionProcessPayment, ActionMarkPaid:
		return true
	default:
		return false
	}
}

// ParseAction converts user input into an Action; ok is false for unknown or non-user actions
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	return a, a.IsUserAction()
}
