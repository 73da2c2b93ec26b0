package reviews

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/storage"
)

// ReviewStore persists reviews
type ReviewStore struct {
	q storage.Querier
}

// NewReviewStore creates a review store
func NewReviewStore(q storage.Querier) *ReviewStore {
	return &ReviewStore{q: q}
}

const reviewSelect = `
	SELECT r.id, r.title_id, r.author_id, u.username, r.text, r.score, r.pub_date
	FROM reviews r
	JOIN users u ON u.id = r.author_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReview(row rowScanner) (*Review, error) {
	var r Review
	if err := row.Scan(&r.ID, &r.TitleID, &r.AuthorID, &r.Author, &r.Text, &r.Score, &r.PubDate); err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts r and sets its ID
func (s *ReviewStore) Create(ctx context.Context, r *Review) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO reviews (title_id, author_id, text, score, pub_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, r.TitleID, r.AuthorID, r.Text, r.Score, r.PubDate.UTC()).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// Get retrieves a review by id, whatever title it belongs to
func (s *ReviewStore) Get(ctx context.Context, id int64) (*Review, error) {
	r, err := scanReview(s.q.QueryRowContext(ctx, reviewSelect+` WHERE r.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(ErrReviewNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return r, nil
}

// ExistsForAuthor reports whether author already reviewed the title
func (s *ReviewStore) ExistsForAuthor(ctx context.Context, titleID, authorID int64) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE title_id = $1 AND author_id = $2`, titleID, authorID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check existing review: %w", err)
	}
	return n > 0, nil
}

// ListByTitle returns one page of a title's reviews, oldest first, plus the total count
func (s *ReviewStore) ListByTitle(ctx context.Context, titleID int64, page Page) ([]*Review, int, error) {
	var count int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE title_id = $1`, titleID).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, reviewSelect+`
		WHERE r.title_id = $1
		ORDER BY r.pub_date DESC, r.id DESC
		LIMIT $2 OFFSET $3`, titleID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]*Review, 0)
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return reviews, count, nil
}

// Update stores new text and score
func (s *ReviewStore) Update(ctx context.Context, id int64, text string, score int) error {
	result, err := s.q.ExecContext(ctx, `UPDATE reviews SET text = $1, score = $2 WHERE id = $3`, text, score, id)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	return expectOneRow(result, ErrReviewNotFound)
}

// Delete removes a review and its comments
func (s *ReviewStore) Delete(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return expectOneRow(result, ErrReviewNotFound)
}

// CommentStore persists comments
type CommentStore struct {
	q storage.Querier
}

// NewCommentStore creates a comment store
func NewCommentStore(q storage.Querier) *CommentStore {
	return &CommentStore{q: q}
}

const commentSelect = `
	SELECT c.id, c.review_id, c.author_id, u.username, c.text, c.pub_date
	FROM comments c
	JOIN users u ON u.id = c.author_id`

func scanComment(row rowScanner) (*Comment, error) {
	var c Comment
	if err := row.Scan(&c.ID, &c.ReviewID, &c.AuthorID, &c.Author, &c.Text, &c.PubDate); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts c and sets its ID
func (s *CommentStore) Create(ctx context.Context, c *Comment) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO comments (review_id, author_id, text, pub_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, c.ReviewID, c.AuthorID, c.Text, c.PubDate.UTC()).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// Get retrieves a comment by id, whatever review it belongs to
func (s *CommentStore) Get(ctx context.Context, id int64) (*Comment, error) {
	c, err := scanComment(s.q.QueryRowContext(ctx, commentSelect+` WHERE c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(ErrCommentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return c, nil
}

// ListByReview returns one page of a review's comments, oldest first, plus the total count
func (s *CommentStore) ListByReview(ctx context.Context, reviewID int64, page Page) ([]*Comment, int, error) {
	var count int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE review_id = $1`, reviewID).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, commentSelect+`
		WHERE c.review_id = $1
		ORDER BY c.pub_date DESC, c.id DESC
		LIMIT $2 OFFSET $3`, reviewID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, count, nil
}

// Update stores new comment text
func (s *CommentStore) Update(ctx context.Context, id int64, text string) error {
	result, err := s.q.ExecContext(ctx, `UPDATE comments SET text = $1 WHERE id = $2`, text, id)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return expectOneRow(result, ErrCommentNotFound)
}

// Delete removes a comment
func (s *CommentStore) Delete(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return expectOneRow(result, ErrCommentNotFound)
}

func expectOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound(notFound)
	}
	return nil
}
