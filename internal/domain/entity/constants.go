package entity

// Role is an organizational role that can submit or act on requests
type Role string

const (
	RoleEmployee Role = "Employee"
	RoleManager  Role = "Manager"
	RoleFinance  Role = "Finance"
	RoleCEO      Role = "CEO"
)

var roleRank = map[Role]int{
	RoleEmployee: 0,
	RoleManager:  1,
	RoleFinance:  2,
	RoleCEO:      3,
}

// IsValid returns true if the role is one of the defined roles
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank returns the escalation rank of the role (Employee < Manager < Finance < CEO).
// Unknown roles rank below Employee.
func (r Role) Rank() int {
	if rank, ok := roleRank[r]; ok {
		return rank
	}
	return -1
}

// IsPrivileged reports whether the role may see every request
func (r Role) IsPrivileged() bool {
	return r.Rank() >= RoleManager.Rank()
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// RequestType identifies the kind of disbursement
type RequestType string

const (
	RequestTypeReimbursement RequestType = "REIMBURSEMENT"
	RequestTypeCashAdvance   RequestType = "CASH_ADVANCE"
	RequestTypeLiquidation   RequestType = "LIQUIDATION"
)

// IsValid returns true if the request type is one of the defined types
func (t RequestType) IsValid() bool {
	switch t {
	case RequestTypeReimbursement, RequestTypeCashAdvance, RequestTypeLiquidation:
		return true
	default:
		return false
	}
}

// String returns the string representation of the request type
func (t RequestType) String() string {
	return string(t)
}

// RequestStatus is the lifecycle state of a request
type RequestStatus string

const (
	StatusPendingValidation  RequestStatus = "PENDING_VALIDATION"
	StatusPendingFinance     RequestStatus = "PENDING_FINANCE"
	StatusPendingCEO         RequestStatus = "PENDING_CEO"
	StatusApproved           RequestStatus = "APPROVED"
	StatusProcessingPayment  RequestStatus = "PROCESSING_PAYMENT"
	StatusPaid               RequestStatus = "PAID"
	StatusRejected           RequestStatus = "REJECTED"
	StatusPendingLiquidation RequestStatus = "PENDING_LIQUIDATION"
	StatusLiquidated         RequestStatus = "LIQUIDATED"
)

// AllStatuses lists every request status in lifecycle order
var AllStatuses = []RequestStatus{
	StatusPendingValidation,
	StatusPendingFinance,
	StatusPendingCEO,
	StatusApproved,
	StatusProcessingPayment,
	StatusPaid,
	StatusRejected,
	StatusPendingLiquidation,
	StatusLiquidated,
}

var validStatuses = map[RequestStatus]bool{
	StatusPendingValidation:  true,
	StatusPendingFinance:     true,
	StatusPendingCEO:         true,
	StatusApproved:           true,
	StatusProcessingPayment:  true,
	StatusPaid:               true,
	StatusRejected:           true,
	StatusPendingLiquidation: true,
	StatusLiquidated:         true,
}

var terminalStatuses = map[RequestStatus]bool{
	StatusPaid:       true,
	StatusRejected:   true,
	StatusLiquidated: true,
}

// IsTerminal returns true if no further transition is defined from the status
func (s RequestStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is a member of the closed status set
func (s RequestStatus) IsValid() bool {
	return validStatuses[s]
}

// IsPendingReview returns true for the three review stages a request can be rejected from
func (s RequestStatus) IsPendingReview() bool {
	return s == StatusPendingValidation || s == StatusPendingFinance || s == StatusPendingCEO
}

// String returns the string representation of the status
func (s RequestStatus) String() string {
	return string(s)
}

// Priority constants
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Category constants
const (
	CategoryOfficeSupplies = "Office Supplies"
	CategoryTravel         = "Travel"
	CategoryMarketing      = "Marketing"
	CategorySoftware       = "Software"
	CategoryEquipment      = "Equipment"
	CategoryOther          = "Other"
)

// Categories lists the accepted expense categories
var Categories = []string{
	CategoryOfficeSupplies,
	CategoryTravel,
	CategoryMarketing,
	CategorySoftware,
	CategoryEquipment,
	CategoryOther,
}

// Priorities lists the accepted priorities, lowest first
var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}

// Decision constants recorded on timeline events
const (
	DecisionSubmitted  = "submitted"
	DecisionValidated  = "validated"
	DecisionApproved   = "approved"
	DecisionRejected   = "rejected"
	DecisionReleased   = "released"
	DecisionLiquidated = "liquidated"
)

// Timeline event type constants
const (
	EventTypeUser   = "user"
	EventTypeSystem = "system"
)
