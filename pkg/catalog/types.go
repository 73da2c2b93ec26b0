package catalog

import (
	"errors"
	"fmt"

	"github.com/platinummonkey/verdict/pkg/audit"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrGenreNotFound    = errors.New("genre not found")
	ErrTitleNotFound    = errors.New("title not found")
)

// TermKind selects between the two flat taxonomies, which share one shape
type TermKind string

const (
	KindCategory TermKind = "category"
	KindGenre    TermKind = "genre"
)

func (k TermKind) table() string {
	switch k {
	case KindCategory:
		return "categories"
	case KindGenre:
		return "genres"
	default:
		panic(fmt.Sprintf("unknown term kind %q", string(k)))
	}
}

func (k TermKind) notFound() error {
	switch k {
	case KindCategory:
		return ErrCategoryNotFound
	case KindGenre:
		return ErrGenreNotFound
	default:
		panic(fmt.Sprintf("unknown term kind %q", string(k)))
	}
}

func (k TermKind) resource() audit.ResourceType {
	switch k {
	case KindCategory:
		return audit.ResourceTypeCategory
	case KindGenre:
		return audit.ResourceTypeGenre
	default:
		panic(fmt.Sprintf("unknown term kind %q", string(k)))
	}
}

// Term is a category or a genre
type Term struct {
	ID   int64  `json:"-"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// TermInput creates a category or genre
type TermInput struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// TermFilter narrows a term listing
type TermFilter struct {
	Search string // name contains, case-insensitive
	Limit  int
	Offset int
}

// Title is a catalogued work. Rating is the live mean of its review scores, nil
// without reviews.
type Title struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Year        *int     `json:"year"`
	Description *string  `json:"description"`
	Genres      []Term   `json:"genre"`
	Category    *Term    `json:"category"`
	Rating      *float64 `json:"rating"`
}

// OwnerID implements rbac.Owned; titles have no author
func (t *Title) OwnerID() int64 {
	return 0
}

// TitleInput is a title write payload. Genres and category are referenced by slug.
// On partial updates nil fields are left unchanged; an empty category clears it.
type TitleInput struct {
	Name        *string   `json:"name"`
	Year        *int      `json:"year"`
	Description *string   `json:"description"`
	Genres      *[]string `json:"genre"`
	Category    *string   `json:"category"`
}

// TitleFilter narrows a title listing
type TitleFilter struct {
	Genre    string // genre slug
	Category string // category slug
	Name     string // name contains, case-insensitive
	Year     *int
	Limit    int
	Offset   int
}
