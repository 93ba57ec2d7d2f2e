package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/spec-kit/campus-desk/internal/domain"
)

// Office permissions checked against a ticket's routed department.
const (
	ActDecide = "decide"
	ActView   = "view"
)

const anyOffice = "*"

const officeModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.obj == "*" || r.obj == p.obj) && r.act == p.act
`

// OfficePolicy decides which roles may work a department's queue.
// Admin staff may act on every office; Accounts and IT only on their own.
type OfficePolicy struct {
	enforcer *casbin.Enforcer
}

// NewOfficePolicy builds the policy with the built-in rules.
func NewOfficePolicy() (*OfficePolicy, error) {
	m, err := model.NewModelFromString(officeModel)
	if err != nil {
		return nil, fmt.Errorf("office policy model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("office policy enforcer: %w", err)
	}

	rules := [][]string{
		{string(domain.RoleAdmin), anyOffice, ActDecide},
		{string(domain.RoleAdmin), anyOffice, ActView},
		{string(domain.RoleAccounts), string(domain.DepartmentAccounts), ActDecide},
		{string(domain.RoleAccounts), string(domain.DepartmentAccounts), ActView},
		{string(domain.RoleIT), string(domain.DepartmentIT), ActDecide},
		{string(domain.RoleIT), string(domain.DepartmentIT), ActView},
	}
	if _, err := enforcer.AddPolicies(rules); err != nil {
		return nil, fmt.Errorf("office policy rules: %w", err)
	}
	return &OfficePolicy{enforcer: enforcer}, nil
}

// Allowed reports whether role may perform act on office.
func (p *OfficePolicy) Allowed(role domain.Role, office domain.Department, act string) bool {
	ok, err := p.enforcer.Enforce(string(role), string(office), act)
	return err == nil && ok
}

// Offices lists the departments role may view.
func (p *OfficePolicy) Offices(role domain.Role) []domain.Department {
	var out []domain.Department
	for _, office := range []domain.Department{domain.DepartmentAdmin, domain.DepartmentAccounts, domain.DepartmentIT} {
		if p.Allowed(role, office, ActView) {
			out = append(out, office)
		}
	}
	return out
}
