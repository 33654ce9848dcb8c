// Package gate decides whether a protected page renders or redirects.
package gate

import (
	"context"

	"edustack-web/internal/application/permissions"
	"edustack-web/internal/application/session"
	"edustack-web/internal/pkg/constants"
)

// Decision is the outcome of checking a session against a page's roles.
type Decision int

const (
	// Pending: the session is still loading; neither render nor redirect.
	Pending Decision = iota
	Allow
	// Deny: authenticated but no required role; go to the not-authorized page.
	Deny
	// Login: nobody is logged in; go to the login page.
	Login
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Login:
		return "login"
	default:
		return "unknown"
	}
}

// Redirects reports whether d ends in a navigation.
func (d Decision) Redirects() bool {
	return d == Deny || d == Login
}

// Target is the route a redirecting decision navigates to.
func (d Decision) Target() string {
	switch d {
	case Deny:
		return constants.NotAuthorizedRoute
	case Login:
		return constants.LoginRoute
	default:
		return ""
	}
}

// Decide checks snap against required (any one role suffices). Super admins
// are allowed whatever required contains, including nothing.
func Decide(snap session.Snapshot, required []constants.Role) Decision {
	if snap.Phase != session.Ready {
		return Pending
	}
	ev := permissions.New(snap)
	if ev.IsSuperAdmin() {
		return Allow
	}
	if !snap.Authenticated {
		return Login
	}
	if ev.HasAny(required...) {
		return Allow
	}
	return Deny
}

// Rule decides one page's access for a snapshot.
type Rule func(session.Snapshot) Decision

// Roles is the rule of a page that any of required opens.
func Roles(required ...constants.Role) Rule {
	return func(snap session.Snapshot) Decision {
		return Decide(snap, required)
	}
}

// SignedIn is the rule of a page every signed-in user may see: the only
// redirect left is to the login page.
func SignedIn() Rule {
	return func(snap session.Snapshot) Decision {
		if d := Decide(snap, nil); d != Deny {
			return d
		}
		return Allow
	}
}

// Await waits for src to be Ready and decides. If ctx ends first the
// decision is Pending together with ctx.Err().
func Await(ctx context.Context, src Readier, required []constants.Role) (Decision, session.Snapshot, error) {
	snap, err := src.WaitReady(ctx)
	if err != nil {
		return Pending, snap, err
	}
	return Decide(snap, required), snap, nil
}

// Readier is satisfied by *session.State.
type Readier interface {
	WaitReady(ctx context.Context) (session.Snapshot, error)
}
