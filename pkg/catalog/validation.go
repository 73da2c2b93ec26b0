package catalog

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/platinummonkey/verdict/pkg/apperrors"
)

const (
	maxNameLength = 256
	maxSlugLength = 50
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

func validateName(name string) error {
	if name == "" {
		return apperrors.Validation("name", "this field may not be blank")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return apperrors.Validation("name", fmt.Sprintf("ensure this field has no more than %d characters", maxNameLength))
	}
	return nil
}

func validateSlug(slug string) error {
	if slug == "" {
		return apperrors.Validation("slug", "this field may not be blank")
	}
	if len(slug) > maxSlugLength {
		return apperrors.Validation("slug", fmt.Sprintf("ensure this field has no more than %d characters", maxSlugLength))
	}
	if !slugPattern.MatchString(slug) {
		return apperrors.Validation("slug", "enter a valid slug consisting of letters, numbers, underscores or hyphens")
	}
	return nil
}

func validateTerm(in TermInput) error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	return validateSlug(in.Slug)
}

// validateYear rejects years in the future relative to now
func validateYear(year int, now time.Time) error {
	if year < 0 {
		return apperrors.Validation("year", "ensure this value is greater than or equal to 0")
	}
	if year > now.Year() {
		return apperrors.Validation("year", fmt.Sprintf("year cannot be later than %d", now.Year()))
	}
	return nil
}

func missingSlug(field, slug string) error {
	return apperrors.Validation(field, fmt.Sprintf("object with slug=%s does not exist", slug))
}
