// Package routing classifies incoming requests into office queues.
package routing

import "github.com/spec-kit/campus-desk/internal/domain"

// Route is the queue assignment for a request type.
type Route struct {
	Department     domain.Department
	Prefix         string
	Acknowledgment string
}

// Department prefixes embedded in ticket ids.
const (
	PrefixAdmin    = "ADM"
	PrefixFinance  = "FIN"
	PrefixIT       = "IT"
	PrefixGeneral  = "GEN"
	defaultAckText = "Request received."
)

var (
	feeReceiptRoute = Route{
		Department:     domain.DepartmentAccounts,
		Prefix:         PrefixFinance,
		Acknowledgment: "Fee receipt request forwarded to Accounts Office.",
	}
	bonafideRoute = Route{
		Department:     domain.DepartmentAdmin,
		Prefix:         PrefixAdmin,
		Acknowledgment: "Bonafide request forwarded to Admin Office.",
	}
	itRoute = Route{
		Department:     domain.DepartmentIT,
		Prefix:         PrefixIT,
		Acknowledgment: "Support ticket forwarded to IT Helpdesk.",
	}
	defaultRoute = Route{
		Department:     domain.DepartmentAdmin,
		Prefix:         PrefixGeneral,
		Acknowledgment: defaultAckText,
	}
)

var routes = map[domain.RequestType]Route{
	domain.RequestTypeFeeReceipt: feeReceiptRoute,
	domain.RequestTypeBonafide:   bonafideRoute,
	domain.RequestTypeWifi:       itRoute,
	domain.RequestTypeLab:        itRoute,
	domain.RequestTypeIDCard:     itRoute,
}

// For returns the route for requestType. Unknown and empty types fall back to the
// general Admin queue, so routing never fails.
func For(requestType domain.RequestType) Route {
	if r, ok := routes[requestType]; ok {
		return r
	}
	return defaultRoute
}

// Known reports whether requestType has a dedicated route.
func Known(requestType domain.RequestType) bool {
	_, ok := routes[requestType]
	return ok
}
