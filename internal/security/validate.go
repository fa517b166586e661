package security

import (
	"errors"
	"strings"
)

var ErrInvalidEmail = errors.New("invalid email address format")

// ValidateEmail checks that a notification address is plausible and cannot
// smuggle extra headers into the outgoing mail.
func ValidateEmail(email string) error {
	if strings.ContainsAny(email, "\r\n") {
		return ErrInvalidEmail
	}

	atIdx := strings.Index(email, "@")
	dotIdx := strings.LastIndex(email, ".")
	if atIdx < 1 || dotIdx < atIdx+2 || dotIdx == len(email)-1 {
		return ErrInvalidEmail
	}
	return nil
}
