package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/storage"
)

// TermStore persists categories or genres
type TermStore struct {
	q     storage.Querier
	kind  TermKind
	table string
}

// NewTermStore creates a store for one term kind
func NewTermStore(q storage.Querier, kind TermKind) *TermStore {
	return &TermStore{q: q, kind: kind, table: kind.table()}
}

// Create inserts t and sets its ID
func (s *TermStore) Create(ctx context.Context, t *Term) error {
	query := fmt.Sprintf(`INSERT INTO %s (name, slug) VALUES ($1, $2) RETURNING id`, s.table)
	if err := s.q.QueryRowContext(ctx, query, t.Name, t.Slug).Scan(&t.ID); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.kind, err)
	}
	return nil
}

// GetBySlug retrieves a term by slug
func (s *TermStore) GetBySlug(ctx context.Context, slug string) (*Term, error) {
	var t Term
	query := fmt.Sprintf(`SELECT id, name, slug FROM %s WHERE slug = $1`, s.table)
	err := s.q.QueryRowContext(ctx, query, slug).Scan(&t.ID, &t.Name, &t.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(s.kind.notFound())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", s.kind, err)
	}
	return &t, nil
}

// DeleteBySlug removes a term. Titles lose a deleted category and drop a deleted genre.
func (s *TermStore) DeleteBySlug(ctx context.Context, slug string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE slug = $1`, s.table)
	result, err := s.q.ExecContext(ctx, query, slug)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", s.kind, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound(s.kind.notFound())
	}
	return nil
}

// List returns one page of terms ordered by name, plus the total matching count
func (s *TermStore) List(ctx context.Context, filter TermFilter) ([]Term, int, error) {
	where := ""
	var args []interface{}
	if filter.Search != "" {
		where = ` WHERE LOWER(name) LIKE LOWER($1) ESCAPE '\'`
		args = append(args, storage.ContainsPattern(filter.Search))
	}

	var count int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, s.table, where)
	if err := s.q.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", s.table, err)
	}

	query := fmt.Sprintf(`SELECT id, name, slug FROM %s%s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		s.table, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", s.table, err)
	}
	defer rows.Close()

	terms := make([]Term, 0)
	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s: %w", s.kind, err)
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate %s: %w", s.table, err)
	}
	return terms, count, nil
}

// IDsBySlugs maps every existing slug among slugs to its id
func (s *TermStore) IDsBySlugs(ctx context.Context, slugs []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(slugs))
	if len(slugs) == 0 {
		return ids, nil
	}

	placeholders := make([]string, len(slugs))
	args := make([]interface{}, len(slugs))
	for i, slug := range slugs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = slug
	}
	query := fmt.Sprintf(`SELECT id, slug FROM %s WHERE slug IN (%s)`, s.table, strings.Join(placeholders, ", "))

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s slugs: %w", s.kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var slug string
		if err := rows.Scan(&id, &slug); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", s.kind, err)
		}
		ids[slug] = id
	}
	return ids, rows.Err()
}
