package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestSubmitted  Type = "request.submitted"
	TypeStatusChanged     Type = "request.status_changed"
	TypeRequestApproved   Type = "request.approved"
	TypeRequestRejected   Type = "request.rejected"
	TypePaymentReleased   Type = "request.payment_released"
	TypeAdvanceLiquidated Type = "advance.liquidated"
	TypeRequestDeleted    Type = "request.deleted"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestSubmitted,
		TypeStatusChanged,
		TypeRequestApproved,
		TypeRequestRejected,
		TypePaymentReleased,
		TypeAdvanceLiquidated,
		TypeRequestDeleted:
		return true
	default:
		return false
	}
}
