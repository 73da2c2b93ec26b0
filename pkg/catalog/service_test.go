package catalog

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/auth"
	"github.com/platinummonkey/verdict/pkg/storage"
)

var (
	admin     = &auth.Actor{UserID: 1, Username: "admin", Role: auth.RoleAdmin}
	superuser = &auth.Actor{UserID: 2, Username: "root", Role: auth.RoleUser, IsSuperuser: true}
	moderator = &auth.Actor{UserID: 3, Username: "mod", Role: auth.RoleModerator}
	reader    = &auth.Actor{UserID: 4, Username: "reader", Role: auth.RoleUser, IsStaff: true}
)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func slugs(values ...string) *[]string { return &values }

func newTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	db := storage.NewTestDB(t)
	return NewService(db, nil, nil), db
}

func insertUser(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`INSERT INTO users (username, email, date_joined) VALUES ($1, $2, $3) RETURNING id`,
		username, username+"@example.com", time.Now().UTC()).Scan(&id)
	require.NoError(t, err)
	return id
}

func insertReview(t *testing.T, db *sql.DB, titleID, authorID int64, score int) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO reviews (title_id, author_id, text, score, pub_date) VALUES ($1, $2, $3, $4, $5)`,
		titleID, authorID, "text", score, time.Now().UTC())
	require.NoError(t, err)
}

func seedCatalog(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	for _, in := range []TermInput{{Name: "Books", Slug: "books"}, {Name: "Films", Slug: "films"}} {
		_, err := svc.CreateTerm(ctx, admin, KindCategory, in)
		require.NoError(t, err)
	}
	for _, in := range []TermInput{{Name: "Drama", Slug: "drama"}, {Name: "Comedy", Slug: "comedy"}} {
		_, err := svc.CreateTerm(ctx, admin, KindGenre, in)
		require.NoError(t, err)
	}
}

func TestCatalogGate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedCatalog(t, svc)

	t.Run("anyone reads", func(t *testing.T) {
		for _, actor := range []*auth.Actor{nil, reader, moderator, admin} {
			terms, count, err := svc.ListTerms(ctx, actor, KindGenre, TermFilter{Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, 2, count)
			assert.Len(t, terms, 2)
		}
	})

	t.Run("anonymous writes are unauthorized", func(t *testing.T) {
		_, err := svc.CreateTerm(ctx, nil, KindGenre, TermInput{Name: "Horror", Slug: "horror"})
		assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

		_, err = svc.CreateTitle(ctx, nil, TitleInput{Name: strPtr("X")})
		assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	})

	t.Run("non admin writes are forbidden", func(t *testing.T) {
		for _, actor := range []*auth.Actor{reader, moderator} {
			_, err := svc.CreateTerm(ctx, actor, KindGenre, TermInput{Name: "Horror", Slug: "horror"})
			assert.True(t, errors.Is(err, apperrors.ErrForbidden))

			err = svc.DeleteTerm(ctx, actor, KindGenre, "drama")
			assert.True(t, errors.Is(err, apperrors.ErrForbidden))
		}
	})

	t.Run("superuser writes", func(t *testing.T) {
		_, err := svc.CreateTerm(ctx, superuser, KindGenre, TermInput{Name: "Horror", Slug: "horror"})
		require.NoError(t, err)
	})
}

func TestTerms(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedCatalog(t, svc)

	t.Run("validation", func(t *testing.T) {
		_, err := svc.CreateTerm(ctx, admin, KindCategory, TermInput{Name: "Music", Slug: "bad slug"})
		assertField(t, err, "slug")

		_, err = svc.CreateTerm(ctx, admin, KindCategory, TermInput{Slug: "music"})
		assertField(t, err, "name")

		_, err = svc.CreateTerm(ctx, admin, KindCategory, TermInput{Name: "Other", Slug: "books"})
		assertField(t, err, "slug")

		_, err = svc.CreateTerm(ctx, admin, KindCategory, TermInput{Name: "Books", Slug: "books-2"})
		assertField(t, err, "name")
	})

	t.Run("search by name contains", func(t *testing.T) {
		terms, count, err := svc.ListTerms(ctx, nil, KindCategory, TermFilter{Search: "OOK", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		require.Len(t, terms, 1)
		assert.Equal(t, Term{ID: terms[0].ID, Name: "Books", Slug: "books"}, terms[0])
	})

	t.Run("delete unknown slug", func(t *testing.T) {
		err := svc.DeleteTerm(ctx, admin, KindCategory, "nope")
		assert.True(t, errors.Is(err, ErrCategoryNotFound))
	})
}

func assertField(t *testing.T, err error, field string) {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected a domain error, got %v", err)
	assert.Equal(t, apperrors.KindValidation, appErr.Kind)
	assert.Equal(t, field, appErr.Field)
}

func TestTitleWrites(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedCatalog(t, svc)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

	title, err := svc.CreateTitle(ctx, admin, TitleInput{
		Name:        strPtr("The Trial"),
		Year:        intPtr(1925),
		Description: strPtr("Josef K."),
		Genres:      slugs("drama", "comedy", "drama"),
		Category:    strPtr("books"),
	})
	require.NoError(t, err)
	assert.Equal(t, "The Trial", title.Name)
	assert.Equal(t, 1925, *title.Year)
	require.NotNil(t, title.Category)
	assert.Equal(t, "books", title.Category.Slug)
	require.Len(t, title.Genres, 2)
	assert.Equal(t, "comedy", title.Genres[0].Slug)
	assert.Equal(t, "drama", title.Genres[1].Slug)
	assert.Nil(t, title.Rating)

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := svc.CreateTitle(ctx, admin, TitleInput{Year: intPtr(2000)})
		assertField(t, err, "name")

		_, err = svc.CreateTitle(ctx, admin, TitleInput{Name: strPtr("Future"), Year: intPtr(2027)})
		assertField(t, err, "year")

		_, err = svc.CreateTitle(ctx, admin, TitleInput{Name: strPtr("X"), Genres: slugs("jazz")})
		assertField(t, err, "genre")

		_, err = svc.CreateTitle(ctx, admin, TitleInput{Name: strPtr("X"), Category: strPtr("games")})
		assertField(t, err, "category")
	})

	t.Run("patch keeps absent fields", func(t *testing.T) {
		updated, err := svc.UpdateTitle(ctx, admin, http.MethodPatch, title.ID, TitleInput{Year: intPtr(1926)})
		require.NoError(t, err)
		assert.Equal(t, "The Trial", updated.Name)
		assert.Equal(t, 1926, *updated.Year)
		assert.Equal(t, "Josef K.", *updated.Description)
		assert.Len(t, updated.Genres, 2)
		require.NotNil(t, updated.Category)
	})

	t.Run("put replaces every field", func(t *testing.T) {
		updated, err := svc.UpdateTitle(ctx, admin, http.MethodPut, title.ID, TitleInput{Name: strPtr("Der Process")})
		require.NoError(t, err)
		assert.Equal(t, "Der Process", updated.Name)
		assert.Nil(t, updated.Year)
		assert.Nil(t, updated.Description)
		assert.Nil(t, updated.Category)
		assert.Empty(t, updated.Genres)

		_, err = svc.UpdateTitle(ctx, admin, http.MethodPut, title.ID, TitleInput{})
		assertField(t, err, "name")
	})

	t.Run("collection check precedes lookup", func(t *testing.T) {
		_, err := svc.UpdateTitle(ctx, reader, http.MethodPatch, 9999, TitleInput{})
		assert.True(t, errors.Is(err, apperrors.ErrForbidden))

		_, err = svc.UpdateTitle(ctx, admin, http.MethodPatch, 9999, TitleInput{})
		assert.True(t, errors.Is(err, ErrTitleNotFound))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.DeleteTitle(ctx, admin, title.ID))
		_, err := svc.GetTitle(ctx, nil, title.ID)
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	})
}

func TestTermDeletionDetachesTitles(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedCatalog(t, svc)

	title, err := svc.CreateTitle(ctx, admin, TitleInput{
		Name: strPtr("Heat"), Genres: slugs("drama"), Category: strPtr("films"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTerm(ctx, admin, KindCategory, "films"))
	require.NoError(t, svc.DeleteTerm(ctx, admin, KindGenre, "drama"))

	got, err := svc.GetTitle(ctx, nil, title.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Category)
	assert.Empty(t, got.Genres)
}

func TestRating(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)
	seedCatalog(t, svc)

	rated, err := svc.CreateTitle(ctx, admin, TitleInput{Name: strPtr("Rated")})
	require.NoError(t, err)
	unrated, err := svc.CreateTitle(ctx, admin, TitleInput{Name: strPtr("Unrated")})
	require.NoError(t, err)

	insertReview(t, db, rated.ID, insertUser(t, db, "ann"), 6)
	insertReview(t, db, rated.ID, insertUser(t, db, "bob"), 8)

	got, err := svc.GetTitle(ctx, nil, rated.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.InDelta(t, 7.0, *got.Rating, 1e-9)

	got, err = svc.GetTitle(ctx, nil, unrated.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Rating)

	titles, count, err := svc.ListTitles(ctx, nil, TitleFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, titles, 2)
	require.NotNil(t, titles[0].Rating)
	assert.InDelta(t, 7.0, *titles[0].Rating, 1e-9)
	assert.Nil(t, titles[1].Rating)
}

func TestTitleFilters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedCatalog(t, svc)

	mk := func(in TitleInput) {
		_, err := svc.CreateTitle(ctx, admin, in)
		require.NoError(t, err)
	}
	mk(TitleInput{Name: strPtr("Dune"), Year: intPtr(1965), Category: strPtr("books"), Genres: slugs("drama")})
	mk(TitleInput{Name: strPtr("Dune Messiah"), Year: intPtr(1969), Category: strPtr("books")})
	mk(TitleInput{Name: strPtr("Airplane!"), Year: intPtr(1980), Category: strPtr("films"), Genres: slugs("comedy")})

	cases := []struct {
		name   string
		filter TitleFilter
		want   []string
	}{
		{"no filter", TitleFilter{}, []string{"Dune", "Dune Messiah", "Airplane!"}},
		{"genre", TitleFilter{Genre: "comedy"}, []string{"Airplane!"}},
		{"category", TitleFilter{Category: "books"}, []string{"Dune", "Dune Messiah"}},
		{"name contains", TitleFilter{Name: "messiah"}, []string{"Dune Messiah"}},
		{"year", TitleFilter{Year: intPtr(1965)}, []string{"Dune"}},
		{"combined", TitleFilter{Category: "books", Genre: "drama"}, []string{"Dune"}},
		{"nothing", TitleFilter{Genre: "horror"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.filter.Limit = 10
			titles, count, err := svc.ListTitles(ctx, nil, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, len(tc.want), count)
			names := make([]string, 0, len(titles))
			for _, title := range titles {
				names = append(names, title.Name)
			}
			assert.Equal(t, tc.want, names)
		})
	}

	t.Run("pagination", func(t *testing.T) {
		titles, count, err := svc.ListTitles(ctx, nil, TitleFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		require.Len(t, titles, 1)
		assert.Equal(t, "Dune Messiah", titles[0].Name)
	})
}
