package domain

// RequestType is the declared kind of a service request.
type RequestType string

const (
	RequestTypeFeeReceipt RequestType = "FEE_RECEIPT"
	RequestTypeBonafide   RequestType = "BONAFIDE"
	RequestTypeWifi       RequestType = "WIFI"
	RequestTypeLab        RequestType = "LAB"
	RequestTypeIDCard     RequestType = "ID_CARD"
)

// Department names an office queue a request is routed to.
type Department string

const (
	DepartmentAdmin    Department = "Admin"
	DepartmentAccounts Department = "Accounts"
	DepartmentIT       Department = "IT"
)

// Sender returns the chat sender that speaks for the office.
func (d Department) Sender() Sender {
	switch d {
	case DepartmentAccounts:
		return SenderAccounts
	case DepartmentIT:
		return SenderIT
	default:
		return SenderAdmin
	}
}

// OfficeAction is a decision taken by a department handler.
type OfficeAction string

const (
	ActionApprove     OfficeAction = "Approve"
	ActionReject      OfficeAction = "Reject"
	ActionRequestInfo OfficeAction = "RequestInfo"
)

// Valid reports whether a is one of the supported actions.
func (a OfficeAction) Valid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionRequestInfo:
		return true
	}
	return false
}
