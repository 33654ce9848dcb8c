package navigation

import (
	"edustack-web/internal/application/permissions"
	"edustack-web/internal/pkg/constants"
)

// Access describes who may see a menu entry or open its page.
type Access struct {
	Roles            []constants.Role `json:"roles"`
	Staff            bool             `json:"staff,omitempty"`
	AllAuthenticated bool             `json:"allAuthenticated,omitempty"`
}

// Link is one dashboard page.
type Link struct {
	Href  string `json:"href"`
	Label string `json:"label"`
	Access
}

// Category groups links under a heading.
type Category struct {
	Title string `json:"title"`
	Access
	Links []Link `json:"links"`
}

// Visible reports whether ev may see an entry with access a.
func (a Access) Visible(ev *permissions.Evaluator) bool {
	if !ev.Authenticated() {
		return false
	}
	if a.AllAuthenticated {
		return true
	}
	if a.Staff && ev.IsStaff() {
		return true
	}
	return ev.HasAny(a.Roles...)
}

// Required is the role list the page gate checks for a link. Staff pages
// accept every staff role. Pages open to all authenticated users return nil
// and are guarded by authentication alone.
func (a Access) Required() []constants.Role {
	if a.AllAuthenticated {
		return nil
	}
	if a.Staff {
		return mergeRoles(a.Roles, constants.StaffRoles)
	}
	return a.Roles
}

// Menu returns the categories and links ev may see. Categories left without
// links are dropped.
func Menu(ev *permissions.Evaluator, cats []Category) []Category {
	out := make([]Category, 0, len(cats))
	for _, c := range cats {
		if !c.Visible(ev) {
			continue
		}
		visible := make([]Link, 0, len(c.Links))
		for _, l := range c.Links {
			if l.Visible(ev) {
				visible = append(visible, l)
			}
		}
		if len(visible) == 0 {
			continue
		}
		c.Links = visible
		out = append(out, c)
	}
	return out
}

// Pages flattens cats into their links, first occurrence of an href wins.
func Pages(cats []Category) []Link {
	seen := make(map[string]bool)
	var out []Link
	for _, c := range cats {
		for _, l := range c.Links {
			if seen[l.Href] {
				continue
			}
			seen[l.Href] = true
			out = append(out, l)
		}
	}
	return out
}

func mergeRoles(a, b []constants.Role) []constants.Role {
	out := append([]constants.Role(nil), a...)
	for _, r := range b {
		dup := false
		for _, have := range out {
			if have == r {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}
