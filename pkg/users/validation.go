package users

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/auth"
)

const (
	maxUsernameLength = 150
	maxEmailLength    = 254
	maxNameLength     = 150

	// ReservedUsername collides with the /users/me route
	ReservedUsername = "me"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

func invalidField(field string) *apperrors.Error {
	return apperrors.Validation(field, fmt.Sprintf("field %s is missing or invalid", field))
}

func tooLong(field string, max int) *apperrors.Error {
	return apperrors.Validation(field, fmt.Sprintf("ensure this field has no more than %d characters", max))
}

// ValidateUsername checks the username format and the reserved name
func ValidateUsername(username string) error {
	if username == "" {
		return apperrors.Validation("username", "this field may not be blank")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return tooLong("username", maxUsernameLength)
	}
	if strings.EqualFold(username, ReservedUsername) {
		return invalidField("username")
	}
	if !usernamePattern.MatchString(username) {
		return apperrors.Validation("username",
			"enter a valid username: letters, digits and @/./+/-/_ only")
	}
	return nil
}

// ValidateEmail checks that email is a bare address
func ValidateEmail(email string) error {
	if email == "" {
		return apperrors.Validation("email", "this field may not be blank")
	}
	if len(email) > maxEmailLength {
		return tooLong("email", maxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperrors.Validation("email", "enter a valid email address")
	}
	return nil
}

func validateName(field, value string) error {
	if utf8.RuneCountInString(value) > maxNameLength {
		return tooLong(field, maxNameLength)
	}
	return nil
}

func parseRole(value string) (auth.Role, error) {
	role, err := auth.ParseRole(value)
	if err != nil {
		return "", apperrors.ValidationWrap("role", err.Error(), err)
	}
	return role, nil
}

// validatePatch checks every present field and returns the parsed role when one is set
func validatePatch(p *Patch) error {
	if p == nil {
		return nil
	}
	if p.Username != nil {
		if err := ValidateUsername(*p.Username); err != nil {
			return err
		}
	}
	if p.Email != nil {
		if err := ValidateEmail(*p.Email); err != nil {
			return err
		}
	}
	if p.FirstName != nil {
		if err := validateName("first_name", *p.FirstName); err != nil {
			return err
		}
	}
	if p.LastName != nil {
		if err := validateName("last_name", *p.LastName); err != nil {
			return err
		}
	}
	if p.Role != nil {
		if *p.Role == "" {
			return invalidField("role")
		}
		if _, err := parseRole(*p.Role); err != nil {
			return err
		}
	}
	return nil
}

func validateCreate(req CreateRequest) (auth.Role, error) {
	if err := ValidateUsername(req.Username); err != nil {
		return "", err
	}
	if err := ValidateEmail(req.Email); err != nil {
		return "", err
	}
	if err := validateName("first_name", req.FirstName); err != nil {
		return "", err
	}
	if err := validateName("last_name", req.LastName); err != nil {
		return "", err
	}
	return parseRole(req.Role)
}

// uniqueViolation converts a storage uniqueness failure on users into a field error
func uniqueViolation(err error) error {
	switch col := violatedUserColumn(err); col {
	case "username":
		return apperrors.ValidationWrap(col, "a user with that username already exists", err)
	case "email":
		return apperrors.ValidationWrap(col, "a user with that email already exists", err)
	default:
		return err
	}
}
