package reviews

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/verdict/pkg/apperrors"
)

const (
	// DuplicateReviewMessage rejects a second review of the same title by the same author
	DuplicateReviewMessage = "only one review per title is allowed"

	minScore = 1
	maxScore = 10
)

func duplicateReview(err error) *apperrors.Error {
	return apperrors.ValidationWrap(apperrors.NonFieldErrors, DuplicateReviewMessage, err)
}

func validateText(text *string, required bool) error {
	if text == nil {
		if required {
			return apperrors.Validation("text", "this field is required")
		}
		return nil
	}
	if strings.TrimSpace(*text) == "" {
		return apperrors.Validation("text", "this field may not be blank")
	}
	return nil
}

func validateScore(score *int, required bool) error {
	if score == nil {
		if required {
			return apperrors.Validation("score", "this field is required")
		}
		return nil
	}
	if *score < minScore || *score > maxScore {
		return apperrors.Validation("score", "score must be between 1 and 10")
	}
	return nil
}

// validateReview checks a review payload. PATCH may omit fields; POST and PUT may not.
// Only POST checks for an existing review by the same author.
func (s *Service) validateReview(ctx context.Context, store *ReviewStore, vc ValidationContext, in ReviewInput) error {
	required := vc.Method != http.MethodPatch
	if err := validateText(in.Text, required); err != nil {
		return err
	}
	if err := validateScore(in.Score, required); err != nil {
		return err
	}

	if vc.Method != http.MethodPost {
		return nil
	}
	exists, err := store.ExistsForAuthor(ctx, vc.TitleID, vc.Actor.UserID)
	if err != nil {
		return err
	}
	if exists {
		s.metrics.DuplicateReviews.Inc()
		return duplicateReview(nil)
	}
	return nil
}

func validateComment(in CommentInput, method string) error {
	return validateText(in.Text, method != http.MethodPatch)
}
