// Package access maps staff profiles to the set of tickets they may touch.
package access

import "github.com/spec-kit/triage-service/internal/domain"

type scopeKind int

const (
	kindDenied scopeKind = iota
	kindDepartment
	kindUnrestricted
)

// Scope bounds repository access. The zero value denies everything.
type Scope struct {
	kind       scopeKind
	department domain.Department
	system     bool
}

// ScopeFor derives the scope of a staff profile. A nil profile or a profile without a
// department is denied; the All Departments wildcard is unrestricted.
func ScopeFor(p *domain.Profile) Scope {
	if p == nil || p.Department == nil {
		return Denied()
	}
	if *p.Department == domain.DepartmentAll {
		return Scope{kind: kindUnrestricted}
	}
	return ForDepartment(*p.Department)
}

// ForDepartment restricts access to a single department.
func ForDepartment(d domain.Department) Scope {
	return Scope{kind: kindDepartment, department: d}
}

// System is the scope used by the engine for its own writes.
func System() Scope {
	return Scope{kind: kindUnrestricted, system: true}
}

// Denied grants nothing.
func Denied() Scope {
	return Scope{}
}

func (s Scope) IsDenied() bool     { return s.kind == kindDenied }
func (s Scope) Unrestricted() bool { return s.kind == kindUnrestricted }
func (s Scope) IsSystem() bool     { return s.system }

// Department returns the restricting department, if any.
func (s Scope) Department() (domain.Department, bool) {
	if s.kind != kindDepartment {
		return "", false
	}
	return s.department, true
}

// Allows reports whether the ticket is inside the scope. Tickets without a department
// (still classifying) are only visible to unrestricted scopes.
func (s Scope) Allows(t *domain.Ticket) bool {
	switch s.kind {
	case kindUnrestricted:
		return t != nil
	case kindDepartment:
		return t != nil && t.Department != nil && *t.Department == s.department
	default:
		return false
	}
}

func (s Scope) String() string {
	switch s.kind {
	case kindUnrestricted:
		if s.system {
			return "system"
		}
		return "all"
	case kindDepartment:
		return "department:" + string(s.department)
	default:
		return "denied"
	}
}
