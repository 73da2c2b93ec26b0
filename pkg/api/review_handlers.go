package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/verdict/pkg/httputil"
	"github.com/platinummonkey/verdict/pkg/middleware"
	"github.com/platinummonkey/verdict/pkg/reviews"
)

// ReviewHandlers handles reviews and comments nested under titles
type ReviewHandlers struct {
	reviews *reviews.Service
}

// NewReviewHandlers creates a new ReviewHandlers
func NewReviewHandlers(svc *reviews.Service) *ReviewHandlers {
	return &ReviewHandlers{reviews: svc}
}

// RegisterRoutes registers review and comment routes
func (h *ReviewHandlers) RegisterRoutes(router *mux.Router) {
	const (
		reviewsPath  = "/titles/{title_id}/reviews"
		reviewPath   = reviewsPath + "/{review_id}"
		commentsPath = reviewPath + "/comments"
		commentPath  = commentsPath + "/{comment_id}"
	)

	router.HandleFunc(reviewsPath, h.ListReviews).Methods("GET")
	router.HandleFunc(reviewsPath, h.CreateReview).Methods("POST")
	router.HandleFunc(reviewPath, h.GetReview).Methods("GET")
	router.HandleFunc(reviewPath, h.UpdateReview).Methods("PUT", "PATCH")
	router.HandleFunc(reviewPath, h.DeleteReview).Methods("DELETE")

	router.HandleFunc(commentsPath, h.ListComments).Methods("GET")
	router.HandleFunc(commentsPath, h.CreateComment).Methods("POST")
	router.HandleFunc(commentPath, h.GetComment).Methods("GET")
	router.HandleFunc(commentPath, h.UpdateComment).Methods("PUT", "PATCH")
	router.HandleFunc(commentPath, h.DeleteComment).Methods("DELETE")
}

func parsePage(r *http.Request) (reviews.Page, error) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		return reviews.Page{}, err
	}
	return reviews.Page{Limit: page.Limit, Offset: page.Offset}, nil
}

// ListReviews lists the reviews of a title
func (h *ReviewHandlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	list, count, err := h.reviews.ListReviews(r.Context(), middleware.ActorFromRequest(r), pathID(r, "title_id"), page)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteList(w, count, list)
}

// CreateReview adds the caller's review of a title
func (h *ReviewHandlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	var in reviews.ReviewInput
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	review, err := h.reviews.CreateReview(r.Context(), middleware.ActorFromRequest(r), pathID(r, "title_id"), in)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, review)
}

// GetReview returns one review of a title
func (h *ReviewHandlers) GetReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.reviews.GetReview(r.Context(), middleware.ActorFromRequest(r),
		pathID(r, "title_id"), pathID(r, "review_id"))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, review)
}

// UpdateReview replaces or patches a review
func (h *ReviewHandlers) UpdateReview(w http.ResponseWriter, r *http.Request) {
	var in reviews.ReviewInput
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	review, err := h.reviews.UpdateReview(r.Context(), middleware.ActorFromRequest(r), r.Method,
		pathID(r, "title_id"), pathID(r, "review_id"), in)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, review)
}

// DeleteReview deletes a review
func (h *ReviewHandlers) DeleteReview(w http.ResponseWriter, r *http.Request) {
	err := h.reviews.DeleteReview(r.Context(), middleware.ActorFromRequest(r),
		pathID(r, "title_id"), pathID(r, "review_id"))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListComments lists the comments of a review
func (h *ReviewHandlers) ListComments(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	list, count, err := h.reviews.ListComments(r.Context(), middleware.ActorFromRequest(r),
		pathID(r, "title_id"), pathID(r, "review_id"), page)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteList(w, count, list)
}

// CreateComment adds the caller's comment to a review
func (h *ReviewHandlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	var in reviews.CommentInput
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	comment, err := h.reviews.CreateComment(r.Context(), middleware.ActorFromRequest(r),
		pathID(r, "title_id"), pathID(r, "review_id"), in)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, comment)
}

// GetComment returns one comment
func (h *ReviewHandlers) GetComment(w http.ResponseWriter, r *http.Request) {
	comment, err := h.reviews.GetComment(r.Context(), middleware.ActorFromRequest(r),
		pathID(r, "title_id"), pathID(r, "review_id"), pathID(r, "comment_id"))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, comment)
}

// UpdateComment replaces or patches a comment
func (h *ReviewHandlers) UpdateComment(w http.ResponseWriter, r *http.Request) {
	var in reviews.CommentInput
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	comment, err := h.reviews.UpdateComment(r.Context(), middleware.ActorFromRequest(r), r.Method,
		pathID(r, "title_id"), pathID(r, "review_id"), pathID(r, "comment_id"), in)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, comment)
}

// DeleteComment deletes a comment
func (h *ReviewHandlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	err := h.reviews.DeleteComment(r.Context(), middleware.ActorFromRequest(r),
		pathID(r, "title_id"), pathID(r, "review_id"), pathID(r, "comment_id"))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
