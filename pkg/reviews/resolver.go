package reviews

import (
	"context"
	"errors"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/catalog"
	"github.com/platinummonkey/verdict/pkg/observability"
	"github.com/platinummonkey/verdict/pkg/storage"
)

// Causes of a broken title → review → comment chain. All of them surface as 404.
var (
	ErrTitleNotFound      = catalog.ErrTitleNotFound
	ErrReviewNotFound     = errors.New("review not found")
	ErrReviewNotInTitle   = errors.New("review does not belong to this title")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrCommentNotInReview = errors.New("comment does not belong to this review")
)

// Resolver walks nested paths and fails closed when a link is missing or points elsewhere
type Resolver struct {
	titles   *catalog.TitleStore
	reviews  *ReviewStore
	comments *CommentStore
	metrics  *observability.Metrics
}

// NewResolver creates a resolver over q. metrics may be nil.
func NewResolver(q storage.Querier, metrics *observability.Metrics) *Resolver {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Resolver{
		titles:   catalog.NewTitleStore(q),
		reviews:  NewReviewStore(q),
		comments: NewCommentStore(q),
		metrics:  metrics,
	}
}

// ResolveTitle returns the title or a not found error
func (r *Resolver) ResolveTitle(ctx context.Context, titleID int64) (*catalog.Title, error) {
	return r.titles.Get(ctx, titleID)
}

func (r *Resolver) requireTitle(ctx context.Context, titleID int64) error {
	ok, err := r.titles.Exists(ctx, titleID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound(ErrTitleNotFound)
	}
	return nil
}

// ResolveReview returns the review only if both exist and the review belongs to the title
func (r *Resolver) ResolveReview(ctx context.Context, titleID, reviewID int64) (*Review, error) {
	if err := r.requireTitle(ctx, titleID); err != nil {
		return nil, err
	}

	review, err := r.reviews.Get(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.TitleID != titleID {
		r.metrics.IntegrityViolations.WithLabelValues("review_not_in_title").Inc()
		return nil, apperrors.NotFound(ErrReviewNotInTitle)
	}
	return review, nil
}

// ResolveComment resolves the review chain and then the comment within that review
func (r *Resolver) ResolveComment(ctx context.Context, titleID, reviewID, commentID int64) (*Review, *Comment, error) {
	review, err := r.ResolveReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, nil, err
	}

	comment, err := r.comments.Get(ctx, commentID)
	if err != nil {
		return nil, nil, err
	}
	if comment.ReviewID != review.ID {
		r.metrics.IntegrityViolations.WithLabelValues("comment_not_in_review").Inc()
		return nil, nil, apperrors.NotFound(ErrCommentNotInReview)
	}
	return review, comment, nil
}
