package usecase

import (
	"net/mail"
	"strings"

	"github.com/fastygo/taskhub/domain"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// NormalizeName trims name and rejects an empty result.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.Invalid("name is required")
	}
	return name, nil
}

// NormalizeEmail validates a bare address and returns it lower-cased.
func NormalizeEmail(email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", domain.Invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.Invalid("email is invalid")
	}
	return email, nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("password must be at least 6 characters")
	}
	return nil
}

// NormalizeTitle trims a project or task title and rejects an empty result.
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", domain.Invalid("title is required")
	}
	return title, nil
}
