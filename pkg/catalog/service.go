package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/audit"
	"github.com/platinummonkey/verdict/pkg/auth"
	"github.com/platinummonkey/verdict/pkg/observability"
	"github.com/platinummonkey/verdict/pkg/rbac"
	"github.com/platinummonkey/verdict/pkg/storage"
)

// Service manages categories, genres and titles behind the catalog gate
type Service struct {
	db      *sql.DB
	checker *rbac.Checker
	audit   audit.Logger
	gate    rbac.CatalogGate
	now     func() time.Time
}

// NewService creates the catalog service. checker and auditLogger may be nil.
func NewService(db *sql.DB, checker *rbac.Checker, auditLogger audit.Logger) *Service {
	if checker == nil {
		checker = rbac.NewChecker(nil)
	}
	if auditLogger == nil {
		auditLogger = audit.NoopLogger{}
	}
	return &Service{
		db:      db,
		checker: checker,
		audit:   auditLogger,
		now:     time.Now,
	}
}

// Titles exposes read access to titles for other packages
func (s *Service) Titles() *TitleStore {
	return NewTitleStore(s.db)
}

func (s *Service) record(ctx context.Context, actor *auth.Actor, eventType audit.EventType, resource audit.ResourceType, id string) {
	event := audit.NewEvent(ctx, actor, eventType, audit.EventStatusSuccess).On(resource, id)
	if err := s.audit.Log(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to record audit event")
	}
}

// ListTerms lists categories or genres
func (s *Service) ListTerms(ctx context.Context, actor *auth.Actor, kind TermKind, filter TermFilter) ([]Term, int, error) {
	if err := s.checker.CheckCollection(ctx, s.gate, actor, http.MethodGet); err != nil {
		return nil, 0, err
	}
	return NewTermStore(s.db, kind).List(ctx, filter)
}

// CreateTerm creates a category or genre
func (s *Service) CreateTerm(ctx context.Context, actor *auth.Actor, kind TermKind, in TermInput) (*Term, error) {
	if err := s.checker.CheckCollection(ctx, s.gate, actor, http.MethodPost); err != nil {
		return nil, err
	}
	if err := validateTerm(in); err != nil {
		return nil, err
	}

	term := &Term{Name: in.Name, Slug: in.Slug}
	if err := NewTermStore(s.db, kind).Create(ctx, term); err != nil {
		if col := storage.ViolatedColumn(err, "name", "slug"); col != "" {
			return nil, apperrors.ValidationWrap(col, fmt.Sprintf("%s with this %s already exists", kind, col), err)
		}
		return nil, err
	}

	s.record(ctx, actor, audit.EventTypeCatalogCreate, kind.resource(), term.Slug)
	return term, nil
}

// DeleteTerm deletes a category or genre by slug
func (s *Service) DeleteTerm(ctx context.Context, actor *auth.Actor, kind TermKind, slug string) error {
	if err := s.checker.CheckCollection(ctx, s.gate, actor, http.MethodDelete); err != nil {
		return err
	}

	store := NewTermStore(s.db, kind)
	if _, err := store.GetBySlug(ctx, slug); err != nil {
		return err
	}
	if err := s.checker.CheckObject(ctx, s.gate, actor, http.MethodDelete, nil); err != nil {
		return err
	}
	if err := store.DeleteBySlug(ctx, slug); err != nil {
		return err
	}

	s.record(ctx, actor, audit.EventTypeCatalogDelete, kind.resource(), slug)
	return nil
}

// ListTitles lists titles with their live rating
func (s *Service) ListTitles(ctx context.Context, actor *auth.Actor, filter TitleFilter) ([]*Title, int, error) {
	if err := s.checker.CheckCollection(ctx, s.gate, actor, http.MethodGet); err != nil {
		return nil, 0, err
	}
	return NewTitleStore(s.db).List(ctx, filter)
}

// GetTitle returns one title with its live rating
func (s *Service) GetTitle(ctx context.Context, actor *auth.Actor, id int64) (*Title, error) {
	if err := s.checker.CheckCollection(ctx, s.gate, actor, http.MethodGet); err != nil {
		return nil, err
	}
	title, err := NewTitleStore(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckObject(ctx, s.gate, actor, http.MethodGet, title); err != nil {
		return nil, err
	}
	return title, nil
}

// CreateTitle creates a title. Name is required; genre and category slugs must exist.
func (s *Service) CreateTitle(ctx context.Context, actor *auth.Actor, in TitleInput) (*Title, error) {
	if err := s.checker.CheckCollection(ctx, s.gate, actor, http.MethodPost); err != nil {
		return nil, err
	}

	var id int64
	err := storage.WithTx(ctx, s.db, func(q storage.Querier) error {
		row, genreIDs, _, err := s.buildTitle(ctx, q, nil, in)
		if err != nil {
			return err
		}
		titles := NewTitleStore(q)
		if id, err = titles.Create(ctx, row); err != nil {
			return err
		}
		return titles.SetGenres(ctx, id, genreIDs)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, audit.EventTypeCatalogCreate, audit.ResourceTypeTitle, strconv.FormatInt(id, 10))
	return NewTitleStore(s.db).Get(ctx, id)
}

// UpdateTitle replaces (PUT) or patches (PATCH) a title
func (s *Service) UpdateTitle(ctx context.Context, actor *auth.Actor, method string, id int64, in TitleInput) (*Title, error) {
	if err := s.checker.CheckCollection(ctx, s.gate, actor, method); err != nil {
		return nil, err
	}
	current, err := NewTitleStore(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckObject(ctx, s.gate, actor, method, current); err != nil {
		return nil, err
	}

	base := current
	if method != http.MethodPatch {
		base = nil
	}

	err = storage.WithTx(ctx, s.db, func(q storage.Querier) error {
		row, genreIDs, replaceGenres, err := s.buildTitle(ctx, q, base, in)
		if err != nil {
			return err
		}
		titles := NewTitleStore(q)
		if err := titles.Replace(ctx, id, row); err != nil {
			return err
		}
		if replaceGenres {
			return titles.SetGenres(ctx, id, genreIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, audit.EventTypeCatalogUpdate, audit.ResourceTypeTitle, strconv.FormatInt(id, 10))
	return NewTitleStore(s.db).Get(ctx, id)
}

// DeleteTitle deletes a title together with its reviews and comments
func (s *Service) DeleteTitle(ctx context.Context, actor *auth.Actor, id int64) error {
	if err := s.checker.CheckCollection(ctx, s.gate, actor, http.MethodDelete); err != nil {
		return err
	}
	titles := NewTitleStore(s.db)
	current, err := titles.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checker.CheckObject(ctx, s.gate, actor, http.MethodDelete, current); err != nil {
		return err
	}
	if err := titles.Delete(ctx, id); err != nil {
		return err
	}

	s.record(ctx, actor, audit.EventTypeCatalogDelete, audit.ResourceTypeTitle, strconv.FormatInt(id, 10))
	return nil
}

// buildTitle validates in and resolves slugs to ids. With a nil base every field is
// taken from in (a full write); otherwise absent fields keep base's values. The
// returned flag reports whether the genre links should be rewritten.
func (s *Service) buildTitle(ctx context.Context, q storage.Querier, base *Title, in TitleInput) (titleRow, []int64, bool, error) {
	var row titleRow
	if base != nil {
		row = titleRow{Name: base.Name, Year: base.Year, Description: base.Description}
		if base.Category != nil {
			id := base.Category.ID
			row.CategoryID = &id
		}
	}

	switch {
	case in.Name != nil:
		if err := validateName(*in.Name); err != nil {
			return row, nil, false, err
		}
		row.Name = *in.Name
	case base == nil:
		return row, nil, false, apperrors.Validation("name", "this field is required")
	}

	if in.Year != nil {
		if err := validateYear(*in.Year, s.now()); err != nil {
			return row, nil, false, err
		}
		row.Year = in.Year
	} else if base == nil {
		row.Year = nil
	}

	if in.Description != nil {
		row.Description = in.Description
	} else if base == nil {
		row.Description = nil
	}

	if in.Category != nil {
		row.CategoryID = nil
		if slug := *in.Category; slug != "" {
			ids, err := NewTermStore(q, KindCategory).IDsBySlugs(ctx, []string{slug})
			if err != nil {
				return row, nil, false, err
			}
			id, ok := ids[slug]
			if !ok {
				return row, nil, false, missingSlug("category", slug)
			}
			row.CategoryID = &id
		}
	}

	if in.Genres == nil {
		// A full write without genres clears them.
		return row, nil, base == nil, nil
	}

	slugs := dedupe(*in.Genres)
	ids, err := NewTermStore(q, KindGenre).IDsBySlugs(ctx, slugs)
	if err != nil {
		return row, nil, false, err
	}
	genreIDs := make([]int64, 0, len(slugs))
	for _, slug := range slugs {
		id, ok := ids[slug]
		if !ok {
			return row, nil, false, missingSlug("genre", slug)
		}
		genreIDs = append(genreIDs, id)
	}
	return row, genreIDs, true, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
