package session

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated     = errors.New("session is not authenticated")
	ErrMalformedIdentity   = errors.New("malformed identity payload")
	ErrDuplicateMembership = errors.New("duplicate membership for school")
)

// ValidateMemberships reports a data-integrity error when two memberships
// share a school id. Callers log it; the memberships are kept as delivered.
func ValidateMemberships(ms []Membership) error {
	seen := make(map[string]struct{}, len(ms))
	for _, m := range ms {
		if _, dup := seen[m.SchoolID]; dup {
			return fmt.Errorf("%w %s", ErrDuplicateMembership, m.SchoolID)
		}
		seen[m.SchoolID] = struct{}{}
	}
	return nil
}
