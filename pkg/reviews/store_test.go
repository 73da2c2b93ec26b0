package reviews

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/auth"
	"github.com/platinummonkey/verdict/pkg/observability"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock, *observability.Metrics) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	metrics := observability.NewNopMetrics()
	return NewService(db, nil, nil, metrics), mock, metrics
}

// A concurrent writer can insert between the duplicate check and our insert; the
// UNIQUE constraint error must come back as the same validation error.
func TestCreateReview_UniqueConstraintRace(t *testing.T) {
	svc, mock, _ := newMockService(t)
	actor := &auth.Actor{UserID: 7, Username: "ann", Role: auth.RoleUser}

	mock.ExpectQuery(`SELECT 1 FROM titles WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reviews WHERE title_id = \$1 AND author_id = \$2`).
		WithArgs(int64(3), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO reviews`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "reviews_title_author_key"})
	mock.ExpectRollback()

	_, err := svc.CreateReview(context.Background(), actor, 3, review("late", 5))
	appErr := assertField(t, err, apperrors.NonFieldErrors)
	assert.Equal(t, DuplicateReviewMessage, appErr.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A title or review deleted between resolution and insert surfaces as a foreign key
// failure; the caller sees the same not found it would have seen a moment later.
func TestCreate_ParentDeletedRace(t *testing.T) {
	ctx := context.Background()
	actor := &auth.Actor{UserID: 7, Username: "ann", Role: auth.RoleUser}
	fkErr := &pq.Error{Code: "23503", Constraint: "reviews_title_id_fkey"}

	t.Run("review on a deleted title", func(t *testing.T) {
		svc, mock, _ := newMockService(t)

		mock.ExpectQuery(`SELECT 1 FROM titles WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reviews`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(`INSERT INTO reviews`).WillReturnError(fkErr)
		mock.ExpectRollback()
		mock.ExpectQuery(`SELECT 1 FROM titles WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"one"}))

		_, err := svc.CreateReview(ctx, actor, 3, review("late", 5))
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
		assert.ErrorIs(t, err, ErrTitleNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("comment on a deleted review", func(t *testing.T) {
		svc, mock, _ := newMockService(t)
		reviewCols := []string{"id", "title_id", "author_id", "username", "text", "score", "pub_date"}

		mock.ExpectQuery(`SELECT 1 FROM titles WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
		mock.ExpectQuery(`FROM reviews r\s+JOIN users u ON u.id = r.author_id WHERE r.id = \$1`).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(reviewCols).AddRow(9, 3, 8, "bob", "fine", 6, time.Now().UTC()))
		mock.ExpectQuery(`INSERT INTO comments`).WillReturnError(fkErr)
		mock.ExpectQuery(`SELECT 1 FROM titles WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
		mock.ExpectQuery(`FROM reviews r\s+JOIN users u ON u.id = r.author_id WHERE r.id = \$1`).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(reviewCols))

		_, err := svc.CreateComment(ctx, actor, 3, 9, CommentInput{Text: strPtr("late")})
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
		assert.ErrorIs(t, err, ErrReviewNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other foreign key failures pass through", func(t *testing.T) {
		svc, mock, _ := newMockService(t)

		mock.ExpectQuery(`SELECT 1 FROM titles WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reviews`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(`INSERT INTO reviews`).WillReturnError(fkErr)
		mock.ExpectRollback()
		mock.ExpectQuery(`SELECT 1 FROM titles WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

		_, err := svc.CreateReview(ctx, actor, 3, review("late", 5))
		require.Error(t, err)
		assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReviewStore_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("get wraps driver errors", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`FROM reviews r\s+JOIN users u ON u.id = r.author_id WHERE r.id = \$1`).
			WithArgs(int64(1)).
			WillReturnError(sql.ErrConnDone)

		_, err = NewReviewStore(db).Get(ctx, 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrConnDone))
		assert.Contains(t, err.Error(), "failed to get review")
	})

	t.Run("update of a vanished review is not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`UPDATE reviews SET text = \$1, score = \$2 WHERE id = \$3`).
			WithArgs("t", 5, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = NewReviewStore(db).Update(ctx, 1, "t", 5)
		assert.True(t, errors.Is(err, ErrReviewNotFound))
	})

	t.Run("comment list count failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM comments WHERE review_id = \$1`).
			WithArgs(int64(1)).
			WillReturnError(sql.ErrConnDone)

		_, _, err = NewCommentStore(db).ListByReview(ctx, 1, Page{Limit: 10})
		assert.Contains(t, err.Error(), "failed to count comments")
	})
}
