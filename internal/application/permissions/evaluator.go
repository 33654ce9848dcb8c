// Package permissions derives role answers from a session snapshot.
//
// The Evaluator never caches: every call reads a fresh snapshot from its
// Source, so a tenant switch or logout is visible on the very next call.
package permissions

import (
	"edustack-web/internal/application/session"
	"edustack-web/internal/pkg/constants"
)

// Source is anything that can produce a session snapshot
// (*session.State, or a fixed session.Snapshot in tests).
type Source interface {
	Snapshot() session.Snapshot
}

// Evaluator answers permission questions about a Source.
type Evaluator struct {
	src Source
}

// New returns an Evaluator reading from src.
func New(src Source) *Evaluator {
	return &Evaluator{src: src}
}

// IsSuperAdmin reports whether the user is a global super admin.
func (e *Evaluator) IsSuperAdmin() bool {
	return superAdmin(e.src.Snapshot())
}

// CurrentRole is the user's role in the selected school. ok is false when no
// school is selected or the user has no membership there. On duplicate
// memberships the first one wins.
func (e *Evaluator) CurrentRole() (constants.Role, bool) {
	return currentRole(e.src.Snapshot())
}

// HasRole is true for super admins, otherwise when the selected school's
// role equals role.
func (e *Evaluator) HasRole(role constants.Role) bool {
	snap := e.src.Snapshot()
	if superAdmin(snap) {
		return true
	}
	r, ok := currentRole(snap)
	return ok && r == role
}

// HasAny is true when HasRole holds for at least one of roles, judged
// against a single snapshot.
func (e *Evaluator) HasAny(roles ...constants.Role) bool {
	snap := e.src.Snapshot()
	if superAdmin(snap) {
		return true
	}
	r, ok := currentRole(snap)
	if !ok {
		return false
	}
	for _, want := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// IsStaff reports whether the selected school's role is a staff role.
// Super admin status alone does not make a user staff.
// TODO: confirm with product whether super admins should pass staff checks.
func (e *Evaluator) IsStaff() bool {
	r, ok := currentRole(e.src.Snapshot())
	return ok && constants.IsStaffRole(r)
}

func (e *Evaluator) IsAdmin() bool     { return e.HasRole(constants.Admin) }
func (e *Evaluator) IsTeacher() bool   { return e.HasRole(constants.Teacher) }
func (e *Evaluator) IsFinance() bool   { return e.HasRole(constants.Finance) }
func (e *Evaluator) IsLibrarian() bool { return e.HasRole(constants.Librarian) }

// Authenticated reports whether the snapshot carries a logged-in user.
func (e *Evaluator) Authenticated() bool {
	return e.src.Snapshot().Authenticated
}

func superAdmin(snap session.Snapshot) bool {
	return snap.Authenticated && snap.User != nil && snap.User.IsSuperAdmin
}

func currentRole(snap session.Snapshot) (constants.Role, bool) {
	if snap.SelectedSchoolID == "" {
		return "", false
	}
	for _, m := range snap.Memberships {
		if m.SchoolID == snap.SelectedSchoolID {
			return m.Role, true
		}
	}
	return "", false
}
