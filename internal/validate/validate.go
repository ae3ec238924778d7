package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	usernameMin = 3
	usernameMax = 32
	passwordMin = 8
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Username checks signup username rules: lowercase letters, digits and
// underscores, length bounds.
func Username(username string) error {
	if len(username) < usernameMin || len(username) > usernameMax {
		return fmt.Errorf("username must be %d-%d characters", usernameMin, usernameMax)
	}
	if !usernamePattern.MatchString(username) {
		return errors.New("username may only contain lowercase letters, digits and underscores")
	}
	return nil
}

// Email checks the address shape. Deliverability is proven by the
// verification mail, not here.
func Email(email string) error {
	if !emailPattern.MatchString(email) {
		return errors.New("invalid e-mail address")
	}
	return nil
}

// Password checks the minimum password length.
func Password(password string) error {
	if len(password) < passwordMin {
		return fmt.Errorf("password must be at least %d characters", passwordMin)
	}
	return nil
}

// Signup validates a full registration request.
func Signup(username, password, email string) error {
	if err := Username(strings.TrimSpace(username)); err != nil {
		return err
	}
	if err := Email(strings.TrimSpace(email)); err != nil {
		return err
	}
	return Password(password)
}
