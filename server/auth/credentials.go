package auth

import (
	"regexp"
	"strings"
	"unicode"

	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
)

const (
	// MinUsernameLength is the shortest accepted username.
	MinUsernameLength = 3
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Registration is the sign-up form.
type Registration struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate checks the form in field order and returns the first failure.
func (r *Registration) Validate() error {
	if r.Email == "" || r.Username == "" || r.Password == "" || r.ConfirmPassword == "" {
		return apperrors.InvalidArgument("All fields are required")
	}
	if len(strings.TrimSpace(r.Username)) < MinUsernameLength {
		return apperrors.InvalidArgument("Username must be at least 3 characters long")
	}
	if !ValidEmail(r.Email) {
		return apperrors.InvalidArgument("Invalid email format")
	}
	if err := ValidatePassword(r.Password); err != nil {
		return err
	}
	if r.Password != r.ConfirmPassword {
		return apperrors.InvalidArgument("Passwords do not match")
	}
	return nil
}

// ValidEmail reports whether email looks like an address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePassword enforces length and character class rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperrors.InvalidArgument("Password must be at least 8 characters long")
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower {
		return apperrors.InvalidArgument("Password must contain at least one lowercase letter")
	}
	if !upper {
		return apperrors.InvalidArgument("Password must contain at least one uppercase letter")
	}
	if !digit {
		return apperrors.InvalidArgument("Password must contain at least one number")
	}
	return nil
}
