package validation

import (
	"regexp"
	"strings"
)

var (
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{1,63}$`)
	schoolIDRe = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)
)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

func IsValidUsername(username string) bool {
	return usernameRe.MatchString(username)
}

// IsValidLoginHandle accepts an email address or a username.
func IsValidLoginHandle(handle string) bool {
	if strings.Contains(handle, "@") {
		return IsValidEmail(handle)
	}
	return IsValidUsername(handle)
}

// IsValidSchoolID rejects ids that cannot come from the API (whitespace,
// path separators, overlong input).
func IsValidSchoolID(id string) bool {
	return schoolIDRe.MatchString(id)
}
