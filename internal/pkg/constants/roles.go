package constants

import (
	"errors"
	"strings"
)

// Role is a user's role inside one school (tenant).
type Role string

const (
	Student    Role = "student"
	Admin      Role = "admin"
	Teacher    Role = "teacher"
	Finance    Role = "finance"
	Librarian  Role = "librarian"
	Parent     Role = "parent"
	SuperAdmin Role = "super_admin"
	Other      Role = "other"
	Edustack   Role = "edustack"
)

// ErrUnknownRole is returned by ParseRole for values outside the enumeration.
var ErrUnknownRole = errors.New("unknown role")

// ValidRoles is the closed set of roles the auth service may assign.
var ValidRoles = []Role{Student, Admin, Teacher, Finance, Librarian, Parent, SuperAdmin, Other, Edustack}

// StaffRoles are employment-type roles (everything except students and parents).
var StaffRoles = []Role{Admin, Teacher, Finance, Librarian, SuperAdmin, Other, Edustack}

// AdminRoles may administer a school.
var AdminRoles = []Role{Edustack, SuperAdmin, Admin}

// ParseRole converts a wire value into a Role. Case and surrounding space are ignored.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// Valid reports whether r is one of ValidRoles.
func (r Role) Valid() bool {
	return contains(ValidRoles, r)
}

func (r Role) String() string { return string(r) }

// IsStaffRole reports whether r belongs to StaffRoles.
func IsStaffRole(r Role) bool {
	return contains(StaffRoles, r)
}

// IsAdminRole reports whether r belongs to AdminRoles.
func IsAdminRole(r Role) bool {
	return contains(AdminRoles, r)
}

// RoleStrings renders roles for logs and audit rows.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func contains(set []Role, r Role) bool {
	for _, s := range set {
		if s == r {
			return true
		}
	}
	return false
}
