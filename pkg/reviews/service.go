package reviews

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/platinummonkey/verdict/pkg/audit"
	"github.com/platinummonkey/verdict/pkg/auth"
	"github.com/platinummonkey/verdict/pkg/observability"
	"github.com/platinummonkey/verdict/pkg/rbac"
	"github.com/platinummonkey/verdict/pkg/storage"
)

// Service implements reviews and comments under a title. Every operation checks the
// collection permission, then resolves the path, then checks the object permission.
type Service struct {
	db       *sql.DB
	resolver *Resolver
	checker  *rbac.Checker
	audit    audit.Logger
	metrics  *observability.Metrics
	policy   rbac.AuthorModeratorAdminOrReadOnly
	now      func() time.Time
}

// NewService creates the review service. checker, auditLogger and metrics may be nil.
func NewService(db *sql.DB, checker *rbac.Checker, auditLogger audit.Logger, metrics *observability.Metrics) *Service {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	if checker == nil {
		checker = rbac.NewChecker(metrics)
	}
	if auditLogger == nil {
		auditLogger = audit.NoopLogger{}
	}
	return &Service{
		db:       db,
		resolver: NewResolver(db, metrics),
		checker:  checker,
		audit:    auditLogger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Resolver exposes the path resolver
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// recordModeration audits changes made by someone other than the author
func (s *Service) recordModeration(ctx context.Context, actor *auth.Actor, eventType audit.EventType, resource audit.ResourceType, target rbac.Owned, id int64) {
	if actor == nil || target.OwnerID() == actor.UserID {
		return
	}
	event := audit.NewEvent(ctx, actor, eventType, audit.EventStatusSuccess).
		On(resource, strconv.FormatInt(id, 10)).
		With("author_id", target.OwnerID()).
		With("role", string(actor.Role))
	if err := s.audit.Log(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to record audit event")
	}
}

// ListReviews lists the reviews of a title
func (s *Service) ListReviews(ctx context.Context, actor *auth.Actor, titleID int64, page Page) ([]*Review, int, error) {
	if err := s.checker.CheckCollection(ctx, s.policy, actor, http.MethodGet); err != nil {
		return nil, 0, err
	}
	if err := s.resolver.requireTitle(ctx, titleID); err != nil {
		return nil, 0, err
	}
	return NewReviewStore(s.db).ListByTitle(ctx, titleID, page)
}

// GetReview returns a review of a title
func (s *Service) GetReview(ctx context.Context, actor *auth.Actor, titleID, reviewID int64) (*Review, error) {
	if err := s.checker.CheckCollection(ctx, s.policy, actor, http.MethodGet); err != nil {
		return nil, err
	}
	review, err := s.resolver.ResolveReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckObject(ctx, s.policy, actor, http.MethodGet, review); err != nil {
		return nil, err
	}
	return review, nil
}

// CreateReview adds the actor's review of a title. An author reviews a title at most once.
func (s *Service) CreateReview(ctx context.Context, actor *auth.Actor, titleID int64, in ReviewInput) (*Review, error) {
	if err := s.checker.CheckCollection(ctx, s.policy, actor, http.MethodPost); err != nil {
		return nil, err
	}
	if err := s.resolver.requireTitle(ctx, titleID); err != nil {
		return nil, err
	}

	var id int64
	err := storage.WithTx(ctx, s.db, func(q storage.Querier) error {
		store := NewReviewStore(q)
		vc := ValidationContext{Method: http.MethodPost, TitleID: titleID, Actor: actor}
		if err := s.validateReview(ctx, store, vc, in); err != nil {
			return err
		}

		review := &Review{
			TitleID:  titleID,
			AuthorID: actor.UserID,
			Text:     *in.Text,
			Score:    *in.Score,
			PubDate:  s.now().UTC(),
		}
		if err := store.Create(ctx, review); err != nil {
			if storage.IsUniqueViolation(err) {
				s.metrics.DuplicateReviews.Inc()
				return duplicateReview(err)
			}
			return err
		}
		id = review.ID
		return nil
	})
	if err != nil {
		// the title may have been deleted after it was checked
		if storage.IsForeignKeyViolation(err) {
			if terr := s.resolver.requireTitle(ctx, titleID); terr != nil {
				return nil, terr
			}
		}
		return nil, err
	}

	s.metrics.ReviewsCreated.Inc()
	return NewReviewStore(s.db).Get(ctx, id)
}

// UpdateReview replaces (PUT) or patches (PATCH) a review. Uniqueness is not re-checked.
func (s *Service) UpdateReview(ctx context.Context, actor *auth.Actor, method string, titleID, reviewID int64, in ReviewInput) (*Review, error) {
	if err := s.checker.CheckCollection(ctx, s.policy, actor, method); err != nil {
		return nil, err
	}
	review, err := s.resolver.ResolveReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckObject(ctx, s.policy, actor, method, review); err != nil {
		return nil, err
	}

	store := NewReviewStore(s.db)
	vc := ValidationContext{Method: method, TitleID: titleID, Actor: actor}
	if err := s.validateReview(ctx, store, vc, in); err != nil {
		return nil, err
	}

	text, score := review.Text, review.Score
	if in.Text != nil {
		text = *in.Text
	}
	if in.Score != nil {
		score = *in.Score
	}
	if err := store.Update(ctx, review.ID, text, score); err != nil {
		return nil, err
	}

	s.recordModeration(ctx, actor, audit.EventTypeModerationEdit, audit.ResourceTypeReview, review, review.ID)
	return store.Get(ctx, review.ID)
}

// DeleteReview deletes a review and its comments
func (s *Service) DeleteReview(ctx context.Context, actor *auth.Actor, titleID, reviewID int64) error {
	if err := s.checker.CheckCollection(ctx, s.policy, actor, http.MethodDelete); err != nil {
		return err
	}
	review, err := s.resolver.ResolveReview(ctx, titleID, reviewID)
	if err != nil {
		return err
	}
	if err := s.checker.CheckObject(ctx, s.policy, actor, http.MethodDelete, review); err != nil {
		return err
	}
	if err := NewReviewStore(s.db).Delete(ctx, review.ID); err != nil {
		return err
	}

	s.recordModeration(ctx, actor, audit.EventTypeModerationDelete, audit.ResourceTypeReview, review, review.ID)
	return nil
}

// ListComments lists the comments of a review
func (s *Service) ListComments(ctx context.Context, actor *auth.Actor, titleID, reviewID int64, page Page) ([]*Comment, int, error) {
	if err := s.checker.CheckCollection(ctx, s.policy, actor, http.MethodGet); err != nil {
		return nil, 0, err
	}
	review, err := s.resolver.ResolveReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, 0, err
	}
	return NewCommentStore(s.db).ListByReview(ctx, review.ID, page)
}

// GetComment returns a comment of a review
func (s *Service) GetComment(ctx context.Context, actor *auth.Actor, titleID, reviewID, commentID int64) (*Comment, error) {
	if err := s.checker.CheckCollection(ctx, s.policy, actor, http.MethodGet); err != nil {
		return nil, err
	}
	_, comment, err := s.resolver.ResolveComment(ctx, titleID, reviewID, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckObject(ctx, s.policy, actor, http.MethodGet, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateComment adds the actor's comment to a review
func (s *Service) CreateComment(ctx context.Context, actor *auth.Actor, titleID, reviewID int64, in CommentInput) (*Comment, error) {
	if err := s.checker.CheckCollection(ctx, s.policy, actor, http.MethodPost); err != nil {
		return nil, err
	}
	review, err := s.resolver.ResolveReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	if err := validateComment(in, http.MethodPost); err != nil {
		return nil, err
	}

	store := NewCommentStore(s.db)
	comment := &Comment{
		ReviewID: review.ID,
		AuthorID: actor.UserID,
		Text:     *in.Text,
		PubDate:  s.now().UTC(),
	}
	if err := store.Create(ctx, comment); err != nil {
		if storage.IsForeignKeyViolation(err) {
			if _, rerr := s.resolver.ResolveReview(ctx, titleID, reviewID); rerr != nil {
				return nil, rerr
			}
		}
		return nil, err
	}

	s.metrics.CommentsCreated.Inc()
	return store.Get(ctx, comment.ID)
}

// UpdateComment replaces or patches the text of a comment
func (s *Service) UpdateComment(ctx context.Context, actor *auth.Actor, method string, titleID, reviewID, commentID int64, in CommentInput) (*Comment, error) {
	if err := s.checker.CheckCollection(ctx, s.policy, actor, method); err != nil {
		return nil, err
	}
	_, comment, err := s.resolver.ResolveComment(ctx, titleID, reviewID, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckObject(ctx, s.policy, actor, method, comment); err != nil {
		return nil, err
	}
	if err := validateComment(in, method); err != nil {
		return nil, err
	}

	store := NewCommentStore(s.db)
	if in.Text != nil {
		if err := store.Update(ctx, comment.ID, *in.Text); err != nil {
			return nil, err
		}
	}

	s.recordModeration(ctx, actor, audit.EventTypeModerationEdit, audit.ResourceTypeComment, comment, comment.ID)
	return store.Get(ctx, comment.ID)
}

// DeleteComment deletes a comment
func (s *Service) DeleteComment(ctx context.Context, actor *auth.Actor, titleID, reviewID, commentID int64) error {
	if err := s.checker.CheckCollection(ctx, s.policy, actor, http.MethodDelete); err != nil {
		return err
	}
	_, comment, err := s.resolver.ResolveComment(ctx, titleID, reviewID, commentID)
	if err != nil {
		return err
	}
	if err := s.checker.CheckObject(ctx, s.policy, actor, http.MethodDelete, comment); err != nil {
		return err
	}
	if err := NewCommentStore(s.db).Delete(ctx, comment.ID); err != nil {
		return err
	}

	s.recordModeration(ctx, actor, audit.EventTypeModerationDelete, audit.ResourceTypeComment, comment, comment.ID)
	return nil
}
