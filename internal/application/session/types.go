package session

import (
	"context"
	"fmt"

	"edustack-web/internal/pkg/constants"
)

// Phase is the lifecycle position of a State.
type Phase int

const (
	Uninitialized Phase = iota
	Loading
	Ready
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// User is the authenticated identity as returned by the auth service.
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Username         string `json:"username"`
	IsSuperAdmin     bool   `json:"isSuperAdmin"`
	HasVerifiedEmail bool   `json:"hasVerifiedEmail"`
}

// Membership binds the user to one school with exactly one role.
type Membership struct {
	SchoolID string         `json:"schoolId"`
	Role     constants.Role `json:"role"`
	Active   bool           `json:"active"`
}

// Identity is the payload shared by the persisted copy and the auth service.
type Identity struct {
	Token            string       `json:"token"`
	User             User         `json:"user"`
	Memberships      []Membership `json:"memberships"`
	SelectedSchoolID string       `json:"selectedSchoolId,omitempty"`
}

// Validate checks the fields the session relies on.
func (id *Identity) Validate() error {
	if id == nil {
		return fmt.Errorf("%w: empty identity", ErrMalformedIdentity)
	}
	if id.User.ID == "" {
		return fmt.Errorf("%w: missing user id", ErrMalformedIdentity)
	}
	for i, m := range id.Memberships {
		if m.SchoolID == "" {
			return fmt.Errorf("%w: membership %d has no school id", ErrMalformedIdentity, i)
		}
		if !m.Role.Valid() {
			return fmt.Errorf("%w: membership %d has role %q", ErrMalformedIdentity, i, m.Role)
		}
	}
	return nil
}

// Snapshot is an immutable copy of a State, safe to read without locking.
type Snapshot struct {
	Phase            Phase
	Authenticated    bool
	User             *User
	Memberships      []Membership
	SelectedSchoolID string
	Generation       uint64
}

// Snapshot lets a fixed Snapshot act as its own source.
func (s Snapshot) Snapshot() Snapshot { return s }

// HasMembership reports whether schoolID is one of the snapshot's memberships.
func (s Snapshot) HasMembership(schoolID string) bool {
	return hasSchool(s.Memberships, schoolID)
}

// Store keeps the durable copy of a session's identity.
// Load returns (nil, nil) when nothing is stored.
type Store interface {
	Load(ctx context.Context) (*Identity, error)
	Save(ctx context.Context, id *Identity) error
	Erase(ctx context.Context) error
}

// Verifier asks the auth service for the authoritative identity behind a token.
// It returns ErrUnauthenticated when the token is no longer accepted.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

func hasSchool(ms []Membership, schoolID string) bool {
	if schoolID == "" {
		return false
	}
	for _, m := range ms {
		if m.SchoolID == schoolID {
			return true
		}
	}
	return false
}

// defaultSelection keeps preferred if it is still a membership, otherwise
// picks the first active school, otherwise the first school.
func defaultSelection(ms []Membership, preferred string) string {
	if hasSchool(ms, preferred) {
		return preferred
	}
	for _, m := range ms {
		if m.Active {
			return m.SchoolID
		}
	}
	if len(ms) > 0 {
		return ms[0].SchoolID
	}
	return ""
}
